package routing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uzsupport/murojaat/internal/profile"
	"github.com/uzsupport/murojaat/store"
)

func TestRetrieverEmptyIndex(t *testing.T) {
	driver := newFakeDriver()
	driver.profileCount = 0
	retriever := NewCandidateRetriever(store.New(driver, &profile.Profile{}))

	_, err := retriever.Retrieve(context.Background(), []float32{0.1}, "uz")
	require.ErrorIs(t, err, ErrEmptyIndex)
}

func TestRetrieverCapsAndOrders(t *testing.T) {
	driver := newFakeDriver()
	driver.profileCount = 4
	driver.candidates = []*store.DepartmentCandidate{
		{DepartmentID: 1, Name: "A", Score: 0.9},
		{DepartmentID: 2, Name: "B", Score: 0.8},
		{DepartmentID: 3, Name: "C", Score: 0.7},
		{DepartmentID: 4, Name: "D", Score: 0.6},
	}
	retriever := NewCandidateRetriever(store.New(driver, &profile.Profile{}))

	candidates, err := retriever.Retrieve(context.Background(), []float32{0.1}, "uz")
	require.NoError(t, err)
	require.LessOrEqual(t, len(candidates), TopK)
	for i := 1; i < len(candidates); i++ {
		require.GreaterOrEqual(t, candidates[i-1].Score, candidates[i].Score)
	}
}

func TestRetrieverFallsBackWhenLanguageFilterEmpty(t *testing.T) {
	driver := newFakeDriver()
	driver.profileCount = 2
	// The fake returns its fixed candidate set regardless of filter, so
	// simulate the empty filtered result by starting with none and
	// refilling on the second call via the recorded search args.
	retriever := NewCandidateRetriever(store.New(driver, &profile.Profile{}))

	_, err := retriever.Retrieve(context.Background(), []float32{0.1}, "ru")
	require.ErrorIs(t, err, ErrEmptyIndex)

	// Both the filtered and the unfiltered query ran.
	require.Len(t, driver.searchCalls, 2)
	require.Equal(t, "ru", driver.searchCalls[0].Lang)
	require.Equal(t, "", driver.searchCalls[1].Lang)
}
