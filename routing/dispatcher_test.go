package routing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/uzsupport/murojaat/internal/profile"
	"github.com/uzsupport/murojaat/plugin/notify"
	"github.com/uzsupport/murojaat/store"
)

func TestDispatcherAssignmentIsIdempotent(t *testing.T) {
	driver := newFakeDriver()
	driver.memberships = []*store.AdminMembership{
		{ID: 1, DepartmentID: 3, AdminName: "a", ChatID: 100},
	}
	session := &store.Session{UID: "s1", UserUID: "u1"}
	driver.sessions["s1"] = session
	message := &store.Message{UID: "m1", SessionUID: "s1", Text: "hello", SentAt: time.Now()}

	sink := notify.NewStubSink()
	dispatcher := NewDispatcher(store.New(driver, &profile.Profile{}), sink)

	require.NoError(t, dispatcher.Dispatch(context.Background(), session, message, 3))
	require.NoError(t, dispatcher.Dispatch(context.Background(), session, message, 3))

	// Exactly one state transition; the lost race degrades to notify-only.
	require.NotNil(t, driver.sessions["s1"].AssignedDepartmentID)
	require.Equal(t, int32(3), *driver.sessions["s1"].AssignedDepartmentID)
	require.Equal(t, 2, driver.assignCalls)

	// Notifications per invocation are bounded by the admin set size.
	var channel int
	for _, n := range sink.Sent() {
		if n.Kind == "channel" {
			channel++
		}
	}
	require.Equal(t, 2, channel)
}

func TestDispatcherNotifyOnlySkipsAssignment(t *testing.T) {
	driver := newFakeDriver()
	driver.memberships = []*store.AdminMembership{
		{ID: 1, DepartmentID: 2, AdminName: "a", ChatID: 200},
		{ID: 2, DepartmentID: 2, AdminName: "b", ChatID: 201},
	}
	session := &store.Session{UID: "s1", UserUID: "u1"}
	driver.sessions["s1"] = session
	message := &store.Message{UID: "m1", SessionUID: "s1", Text: "hello", SentAt: time.Now()}

	sink := notify.NewStubSink()
	dispatcher := NewDispatcher(store.New(driver, &profile.Profile{}), sink)

	require.NoError(t, dispatcher.NotifyOnly(context.Background(), message, 2))
	require.Equal(t, 0, driver.assignCalls)
	require.Nil(t, driver.sessions["s1"].AssignedDepartmentID)

	var chatIDs []int64
	for _, n := range sink.Sent() {
		if n.Kind == "channel" {
			chatIDs = append(chatIDs, n.ChatID)
		}
	}
	require.Equal(t, []int64{200, 201}, chatIDs)
}
