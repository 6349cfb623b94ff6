// Package postgres implements the store driver on PostgreSQL with pgvector.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/uzsupport/murojaat/internal/profile"
	"github.com/uzsupport/murojaat/store"
)

// DB is the PostgreSQL driver.
type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a connection to the PostgreSQL database.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)

	return &DB{db: db, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Migrate creates the schema. Statements are idempotent so startup can
// always run them.
func (d *DB) Migrate(ctx context.Context) error {
	dimensions := d.profile.EmbeddingDimensions

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS "user" (
			uid TEXT PRIMARY KEY,
			full_name TEXT NOT NULL DEFAULT '',
			telegram_user_id BIGINT NOT NULL DEFAULT 0,
			email TEXT,
			created_ts BIGINT NOT NULL,
			updated_ts BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS session (
			uid TEXT PRIMARY KEY,
			user_uid TEXT NOT NULL REFERENCES "user"(uid),
			assigned_department_id INTEGER,
			created_ts BIGINT NOT NULL,
			updated_ts BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS message (
			uid TEXT PRIMARY KEY,
			session_uid TEXT NOT NULL REFERENCES session(uid),
			user_uid TEXT NOT NULL REFERENCES "user"(uid),
			text TEXT NOT NULL DEFAULT '',
			sent_at TIMESTAMPTZ NOT NULL,
			created_ts BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS department (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			keywords TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_ts BIGINT NOT NULL,
			updated_ts BIGINT NOT NULL
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS department_profile (
			id SERIAL PRIMARY KEY,
			department_id INTEGER NOT NULL REFERENCES department(id) ON DELETE CASCADE,
			lang TEXT NOT NULL DEFAULT 'uz',
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			keywords TEXT NOT NULL DEFAULT '',
			embedding vector(%d),
			model TEXT NOT NULL DEFAULT '',
			updated_ts BIGINT NOT NULL,
			UNIQUE (department_id, lang)
		)`, dimensions),
		`CREATE TABLE IF NOT EXISTS admin_membership (
			id SERIAL PRIMARY KEY,
			department_id INTEGER NOT NULL REFERENCES department(id) ON DELETE CASCADE,
			admin_name TEXT NOT NULL DEFAULT '',
			chat_id BIGINT NOT NULL,
			created_ts BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_admin_membership_department ON admin_membership (department_id)`,
		`CREATE TABLE IF NOT EXISTS injection_record (
			id SERIAL PRIMARY KEY,
			message_uid TEXT NOT NULL UNIQUE,
			verdict BOOLEAN NOT NULL,
			score DOUBLE PRECISION NOT NULL DEFAULT 0,
			detail TEXT NOT NULL DEFAULT '',
			created_ts BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS decision_record (
			id SERIAL PRIMARY KEY,
			message_uid TEXT NOT NULL UNIQUE,
			session_uid TEXT NOT NULL DEFAULT '',
			prompt TEXT NOT NULL DEFAULT '',
			message_type TEXT NOT NULL DEFAULT '',
			routing_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			suggested_department_id INTEGER,
			suggested_department_name TEXT NOT NULL DEFAULT '',
			reason TEXT NOT NULL DEFAULT '',
			raw_model_output TEXT NOT NULL DEFAULT '',
			vector_similarity_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			top_candidates JSONB,
			raw_embedding JSONB,
			is_injection BOOLEAN NOT NULL DEFAULT FALSE,
			state TEXT NOT NULL DEFAULT '',
			corrected_by_operator BOOLEAN NOT NULL DEFAULT FALSE,
			operator_uid TEXT,
			operator_department_id INTEGER,
			operator_department_name TEXT,
			operator_explanation TEXT,
			process_duration_ms BIGINT NOT NULL DEFAULT 0,
			created_ts BIGINT NOT NULL,
			updated_ts BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decision_record_department ON decision_record (suggested_department_id)`,
		`CREATE INDEX IF NOT EXISTS idx_decision_record_created ON decision_record (created_ts)`,
	}

	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "failed to execute migration statement: %s", firstLine(stmt))
		}
	}
	return nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}

// placeholder returns the positional parameter for 1-based index n.
func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

// placeholders returns "$1, $2, ..., $n".
func placeholders(n int) string {
	list := make([]string, n)
	for i := range list {
		list[i] = placeholder(i + 1)
	}
	return strings.Join(list, ", ")
}
