// Package sqlite implements the store driver on SQLite.
//
// SQLite is supported on a best-effort basis for development and testing
// only. Vector search runs in the application layer (O(n) cosine over the
// department index), which is fine for a catalog of tens of departments
// but is not the production path; use the postgres driver with pgvector
// for real deployments.
package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/uzsupport/murojaat/internal/profile"
	"github.com/uzsupport/murojaat/store"
)

// DB is the SQLite driver.
type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the SQLite database.
//
// Notes:
//   - WAL journal mode prevents most locking issues.
//   - busy_timeout covers the remaining write contention.
//   - When using the modernc.org/sqlite driver, each pragma must be
//     prefixed with `_pragma=`.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	sqliteDB, err := sql.Open("sqlite", profile.DSN+"?_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	return &DB{db: sqliteDB, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Migrate creates the schema. Embeddings are stored as JSON text since
// SQLite has no vector type.
func (d *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS user (
			uid TEXT PRIMARY KEY,
			full_name TEXT NOT NULL DEFAULT '',
			telegram_user_id INTEGER NOT NULL DEFAULT 0,
			email TEXT,
			created_ts INTEGER NOT NULL,
			updated_ts INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS session (
			uid TEXT PRIMARY KEY,
			user_uid TEXT NOT NULL,
			assigned_department_id INTEGER,
			created_ts INTEGER NOT NULL,
			updated_ts INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS message (
			uid TEXT PRIMARY KEY,
			session_uid TEXT NOT NULL,
			user_uid TEXT NOT NULL,
			text TEXT NOT NULL DEFAULT '',
			sent_at TIMESTAMP NOT NULL,
			created_ts INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS department (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			keywords TEXT NOT NULL DEFAULT '',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_ts INTEGER NOT NULL,
			updated_ts INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS department_profile (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			department_id INTEGER NOT NULL,
			lang TEXT NOT NULL DEFAULT 'uz',
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			keywords TEXT NOT NULL DEFAULT '',
			embedding TEXT,
			model TEXT NOT NULL DEFAULT '',
			updated_ts INTEGER NOT NULL,
			UNIQUE (department_id, lang)
		)`,
		`CREATE TABLE IF NOT EXISTS admin_membership (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			department_id INTEGER NOT NULL,
			admin_name TEXT NOT NULL DEFAULT '',
			chat_id INTEGER NOT NULL,
			created_ts INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS injection_record (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			message_uid TEXT NOT NULL UNIQUE,
			verdict INTEGER NOT NULL,
			score REAL NOT NULL DEFAULT 0,
			detail TEXT NOT NULL DEFAULT '',
			created_ts INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS decision_record (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			message_uid TEXT NOT NULL UNIQUE,
			session_uid TEXT NOT NULL DEFAULT '',
			prompt TEXT NOT NULL DEFAULT '',
			message_type TEXT NOT NULL DEFAULT '',
			routing_confidence REAL NOT NULL DEFAULT 0,
			suggested_department_id INTEGER,
			suggested_department_name TEXT NOT NULL DEFAULT '',
			reason TEXT NOT NULL DEFAULT '',
			raw_model_output TEXT NOT NULL DEFAULT '',
			vector_similarity_score REAL NOT NULL DEFAULT 0,
			top_candidates TEXT,
			raw_embedding TEXT,
			is_injection INTEGER NOT NULL DEFAULT 0,
			state TEXT NOT NULL DEFAULT '',
			corrected_by_operator INTEGER NOT NULL DEFAULT 0,
			operator_uid TEXT,
			operator_department_id INTEGER,
			operator_department_name TEXT,
			operator_explanation TEXT,
			process_duration_ms INTEGER NOT NULL DEFAULT 0,
			created_ts INTEGER NOT NULL,
			updated_ts INTEGER NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to execute migration statement")
		}
	}
	return nil
}
