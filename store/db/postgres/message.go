package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/uzsupport/murojaat/store"
)

// UpsertMessage stores an inbound message. A transport retry with the
// same UID is a no-op that returns the stored row.
func (d *DB) UpsertMessage(ctx context.Context, upsert *store.Message) (*store.Message, error) {
	stmt := `
		INSERT INTO message (uid, session_uid, user_uid, text, sent_at, created_ts)
		VALUES (` + placeholders(6) + `)
		ON CONFLICT (uid) DO UPDATE SET uid = EXCLUDED.uid
		RETURNING uid, session_uid, user_uid, text, sent_at, created_ts
	`

	var message store.Message
	err := d.db.QueryRowContext(ctx, stmt,
		upsert.UID,
		upsert.SessionUID,
		upsert.UserUID,
		upsert.Text,
		upsert.SentAt,
		time.Now().Unix(),
	).Scan(
		&message.UID,
		&message.SessionUID,
		&message.UserUID,
		&message.Text,
		&message.SentAt,
		&message.CreatedTs,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert message")
	}

	return &message, nil
}

// GetMessageByUID returns a message, or nil when it does not exist.
func (d *DB) GetMessageByUID(ctx context.Context, uid string) (*store.Message, error) {
	query := `
		SELECT uid, session_uid, user_uid, text, sent_at, created_ts
		FROM message
		WHERE uid = ` + placeholder(1)

	var message store.Message
	err := d.db.QueryRowContext(ctx, query, uid).Scan(
		&message.UID,
		&message.SessionUID,
		&message.UserUID,
		&message.Text,
		&message.SentAt,
		&message.CreatedTs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get message")
	}

	return &message, nil
}
