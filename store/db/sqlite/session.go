package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/uzsupport/murojaat/store"
)

// GetSessionByUID returns a session, or nil when it does not exist.
func (d *DB) GetSessionByUID(ctx context.Context, uid string) (*store.Session, error) {
	query := `
		SELECT uid, user_uid, assigned_department_id, created_ts, updated_ts
		FROM session
		WHERE uid = ?
	`

	var session store.Session
	err := d.db.QueryRowContext(ctx, query, uid).Scan(
		&session.UID,
		&session.UserUID,
		&session.AssignedDepartmentID,
		&session.CreatedTs,
		&session.UpdatedTs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get session")
	}

	return &session, nil
}

// FindSessionByUserUID returns the most recent session of a user, or nil.
func (d *DB) FindSessionByUserUID(ctx context.Context, userUID string) (*store.Session, error) {
	query := `
		SELECT uid, user_uid, assigned_department_id, created_ts, updated_ts
		FROM session
		WHERE user_uid = ?
		ORDER BY created_ts DESC
		LIMIT 1
	`

	var session store.Session
	err := d.db.QueryRowContext(ctx, query, userUID).Scan(
		&session.UID,
		&session.UserUID,
		&session.AssignedDepartmentID,
		&session.CreatedTs,
		&session.UpdatedTs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find session by user")
	}

	return &session, nil
}

// CreateSession creates a new session.
func (d *DB) CreateSession(ctx context.Context, create *store.Session) (*store.Session, error) {
	stmt := `
		INSERT INTO session (uid, user_uid, assigned_department_id, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?)
	`

	now := time.Now().Unix()
	if _, err := d.db.ExecContext(ctx, stmt,
		create.UID,
		create.UserUID,
		create.AssignedDepartmentID,
		now,
		now,
	); err != nil {
		return nil, errors.Wrap(err, "failed to create session")
	}

	create.CreatedTs = now
	create.UpdatedTs = now
	return create, nil
}

// AssignSessionDepartment performs the compare-and-set assignment:
// NULL -> departmentID. Returns ok=false when the session was already
// assigned.
func (d *DB) AssignSessionDepartment(ctx context.Context, sessionUID string, departmentID int32) (bool, error) {
	stmt := `
		UPDATE session
		SET assigned_department_id = ?, updated_ts = ?
		WHERE uid = ? AND assigned_department_id IS NULL
	`

	result, err := d.db.ExecContext(ctx, stmt, departmentID, time.Now().Unix(), sessionUID)
	if err != nil {
		return false, errors.Wrap(err, "failed to assign session department")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read affected rows")
	}
	return rows == 1, nil
}
