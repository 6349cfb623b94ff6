package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/uzsupport/murojaat/store"
)

const departmentFields = "id, name, description, keywords, is_active, created_ts, updated_ts"

func scanDepartment(row interface{ Scan(...any) error }) (*store.Department, error) {
	var department store.Department
	err := row.Scan(
		&department.ID,
		&department.Name,
		&department.Description,
		&department.Keywords,
		&department.IsActive,
		&department.CreatedTs,
		&department.UpdatedTs,
	)
	if err != nil {
		return nil, err
	}
	return &department, nil
}

// GetDepartmentByID returns a department, or nil when it does not exist.
func (d *DB) GetDepartmentByID(ctx context.Context, id int32) (*store.Department, error) {
	query := `SELECT ` + departmentFields + ` FROM department WHERE id = ?`

	department, err := scanDepartment(d.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get department")
	}
	return department, nil
}

// GetDepartmentByName resolves a department by its canonical name or by
// any of its localized profile names, case-insensitively.
func (d *DB) GetDepartmentByName(ctx context.Context, name string) (*store.Department, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	query := `
		SELECT ` + departmentFields + `
		FROM department
		WHERE LOWER(name) = LOWER(?) AND is_active = 1
	`
	department, err := scanDepartment(d.db.QueryRowContext(ctx, query, name))
	if err == nil {
		return department, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(err, "failed to get department by name")
	}

	query = `
		SELECT d.id, d.name, d.description, d.keywords, d.is_active, d.created_ts, d.updated_ts
		FROM department d
		INNER JOIN department_profile p ON p.department_id = d.id
		WHERE LOWER(p.name) = LOWER(?) AND d.is_active = 1
		LIMIT 1
	`
	department, err = scanDepartment(d.db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get department by profile name")
	}
	return department, nil
}

// ListDepartments lists departments.
func (d *DB) ListDepartments(ctx context.Context, find *store.FindDepartment) ([]*store.Department, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find != nil && find.IsActive != nil {
		where, args = append(where, "is_active = ?"), append(args, *find.IsActive)
	}

	query := `
		SELECT ` + departmentFields + `
		FROM department
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY id ASC
	`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list departments")
	}
	defer rows.Close()

	list := []*store.Department{}
	for rows.Next() {
		department, err := scanDepartment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan department")
		}
		list = append(list, department)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// UpsertDepartment creates or refreshes a department keyed by name.
func (d *DB) UpsertDepartment(ctx context.Context, upsert *store.UpsertDepartment) (*store.Department, error) {
	stmt := `
		INSERT INTO department (name, description, keywords, is_active, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (name)
		DO UPDATE SET
			description = EXCLUDED.description,
			keywords = EXCLUDED.keywords,
			is_active = EXCLUDED.is_active,
			updated_ts = EXCLUDED.updated_ts
		RETURNING ` + departmentFields

	now := time.Now().Unix()
	department, err := scanDepartment(d.db.QueryRowContext(ctx, stmt,
		upsert.Name,
		upsert.Description,
		upsert.Keywords,
		upsert.IsActive,
		now,
		now,
	))
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert department")
	}
	return department, nil
}
