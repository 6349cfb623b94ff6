package postgres

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/uzsupport/murojaat/store"
)

// UpsertUser creates or refreshes a user keyed by UID.
func (d *DB) UpsertUser(ctx context.Context, upsert *store.UpsertUser) (*store.User, error) {
	stmt := `
		INSERT INTO "user" (uid, full_name, telegram_user_id, email, created_ts, updated_ts)
		VALUES (` + placeholders(6) + `)
		ON CONFLICT (uid)
		DO UPDATE SET
			full_name = EXCLUDED.full_name,
			telegram_user_id = EXCLUDED.telegram_user_id,
			email = EXCLUDED.email,
			updated_ts = EXCLUDED.updated_ts
		RETURNING uid, full_name, telegram_user_id, email, created_ts, updated_ts
	`

	now := time.Now().Unix()
	var user store.User
	err := d.db.QueryRowContext(ctx, stmt,
		upsert.UID,
		upsert.FullName,
		upsert.TelegramUserID,
		upsert.Email,
		now,
		now,
	).Scan(
		&user.UID,
		&user.FullName,
		&user.TelegramUserID,
		&user.Email,
		&user.CreatedTs,
		&user.UpdatedTs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert user")
	}

	return &user, nil
}
