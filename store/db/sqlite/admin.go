package sqlite

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/uzsupport/murojaat/store"
)

// CreateAdminMembership creates a new admin membership.
func (d *DB) CreateAdminMembership(ctx context.Context, create *store.AdminMembership) (*store.AdminMembership, error) {
	stmt := `
		INSERT INTO admin_membership (department_id, admin_name, chat_id, created_ts)
		VALUES (?, ?, ?, ?)
		RETURNING id, created_ts
	`

	err := d.db.QueryRowContext(ctx, stmt,
		create.DepartmentID,
		create.AdminName,
		create.ChatID,
		time.Now().Unix(),
	).Scan(&create.ID, &create.CreatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create admin membership")
	}

	return create, nil
}

// ListAdminMemberships lists all admin memberships of a department.
func (d *DB) ListAdminMemberships(ctx context.Context, departmentID int32) ([]*store.AdminMembership, error) {
	query := `
		SELECT id, department_id, admin_name, chat_id, created_ts
		FROM admin_membership
		WHERE department_id = ?
		ORDER BY id ASC
	`

	rows, err := d.db.QueryContext(ctx, query, departmentID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list admin memberships")
	}
	defer rows.Close()

	list := []*store.AdminMembership{}
	for rows.Next() {
		var membership store.AdminMembership
		err := rows.Scan(
			&membership.ID,
			&membership.DepartmentID,
			&membership.AdminName,
			&membership.ChatID,
			&membership.CreatedTs,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan admin membership")
		}
		list = append(list, &membership)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
