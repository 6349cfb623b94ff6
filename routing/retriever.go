package routing

import (
	"context"
	"log/slog"

	"github.com/uzsupport/murojaat/store"
)

// TopK is the candidate list size handed to the arbiter.
const TopK = 3

// CandidateRetriever queries the department vector index for the nearest
// department profiles.
type CandidateRetriever struct {
	store *store.Store
}

// NewCandidateRetriever creates a retriever over the department index.
func NewCandidateRetriever(s *store.Store) *CandidateRetriever {
	return &CandidateRetriever{store: s}
}

// Retrieve returns up to TopK candidates by descending cosine similarity,
// ties broken by ascending department id. An empty index fails with
// ErrEmptyIndex so operators can tell "ingestion has not run" apart from
// provider trouble. When the language-filtered query matches nothing the
// retriever falls back to an unfiltered query.
func (r *CandidateRetriever) Retrieve(ctx context.Context, vector []float32, lang string) ([]*store.DepartmentCandidate, error) {
	count, err := r.store.CountDepartmentProfiles(ctx)
	if err != nil {
		return nil, &ProviderError{Stage: string(StateRetrieving), Err: err}
	}
	if count == 0 {
		return nil, ErrEmptyIndex
	}

	candidates, err := r.store.SearchDepartmentProfiles(ctx, &store.SearchDepartmentProfiles{
		Vector: vector,
		Lang:   lang,
		Limit:  TopK,
	})
	if err != nil {
		return nil, &ProviderError{Stage: string(StateRetrieving), Err: err}
	}

	if len(candidates) == 0 && lang != "" {
		slog.Debug("retriever: no candidates for language, retrying unfiltered", "lang", lang)
		candidates, err = r.store.SearchDepartmentProfiles(ctx, &store.SearchDepartmentProfiles{
			Vector: vector,
			Limit:  TopK,
		})
		if err != nil {
			return nil, &ProviderError{Stage: string(StateRetrieving), Err: err}
		}
	}

	if len(candidates) == 0 {
		return nil, ErrEmptyIndex
	}
	return candidates, nil
}
