package routing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/uzsupport/murojaat/plugin/notify"
	"github.com/uzsupport/murojaat/store"
)

// Dispatcher commits the department assignment and fans out
// notifications. It is the only writer of Session.AssignedDepartmentID.
type Dispatcher struct {
	store *store.Store
	sink  notify.Sink
}

// NewDispatcher creates a dispatcher over the given store and sink.
func NewDispatcher(s *store.Store, sink notify.Sink) *Dispatcher {
	return &Dispatcher{store: s, sink: sink}
}

// Dispatch assigns the session to the department with compare-and-set
// semantics and notifies the department's admins. Losing the CAS race
// (a concurrent routing or manual action assigned first) is not an
// error: the write degrades to a no-op and the fan-out still happens,
// so invoking Dispatch twice never double-assigns and never errors.
func (d *Dispatcher) Dispatch(ctx context.Context, session *store.Session, message *store.Message, departmentID int32) error {
	assigned, err := d.store.AssignSessionDepartment(ctx, session.UID, departmentID)
	if err != nil {
		return fmt.Errorf("assign session department: %w", err)
	}
	if !assigned {
		slog.Info("dispatcher: lost assignment race, notify-only",
			"session_uid", session.UID,
			"department_id", departmentID,
		)
	}

	return d.NotifyOnly(ctx, message, departmentID)
}

// NotifyOnly fans the message out to the department's admins and posts
// to the dashboard, without touching the session. Serves the
// already-assigned short-circuit path.
func (d *Dispatcher) NotifyOnly(ctx context.Context, message *store.Message, departmentID int32) error {
	memberships, err := d.store.ListAdminMemberships(ctx, departmentID)
	if err != nil {
		return fmt.Errorf("list admin memberships: %w", err)
	}

	text := adminNotificationText(message)
	for _, membership := range memberships {
		if err := d.sink.NotifyChannel(ctx, membership.ChatID, text); err != nil {
			// One unreachable admin must not block the rest of the set.
			slog.Warn("dispatcher: admin notification failed",
				"chat_id", membership.ChatID,
				"department_id", departmentID,
				"error", err,
			)
		}
	}

	if err := d.sink.NotifyDashboard(ctx, departmentID, text); err != nil {
		slog.Warn("dispatcher: dashboard notification failed",
			"department_id", departmentID,
			"error", err,
		)
	}
	return nil
}

func adminNotificationText(message *store.Message) string {
	return fmt.Sprintf("New support message %s:\n%s", message.UID, message.Text)
}
