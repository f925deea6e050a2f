package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	// Import the CGO-free SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/fieldops/remindd/internal/profile"
	"github.com/fieldops/remindd/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens (and if needed initializes) the SQLite database at the
// profile's DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	db, err := sql.Open("sqlite", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", profile.DSN)
	}

	// A single writer avoids SQLITE_BUSY under the scheduler's write bursts.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000; PRAGMA foreign_keys = ON;"); err != nil {
		return nil, errors.Wrap(err, "failed to set pragmas")
	}

	d := &DB{
		db:      db,
		profile: profile,
	}
	if err := d.Migrate(context.Background()); err != nil {
		return nil, errors.Wrap(err, "failed to migrate database")
	}
	return d, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) IsInitialized(ctx context.Context) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = 'task')").Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check if database is initialized")
	}
	return exists, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS task (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	uid TEXT NOT NULL UNIQUE,
	created_ts BIGINT NOT NULL DEFAULT (strftime('%s', 'now')),
	raw_text TEXT NOT NULL DEFAULT '',
	task TEXT NOT NULL,
	assignee_id TEXT NOT NULL,
	assigner_id TEXT NOT NULL DEFAULT '',
	due_ts BIGINT NOT NULL,
	reminder_ts BIGINT NOT NULL,
	timezone TEXT NOT NULL DEFAULT 'UTC',
	provenance TEXT NOT NULL DEFAULT '',
	repeat_interval TEXT NOT NULL DEFAULT '',
	recurrence_rule TEXT,
	site TEXT NOT NULL DEFAULT '',
	confidence REAL NOT NULL DEFAULT 0,
	correction_history TEXT
);

CREATE TABLE IF NOT EXISTS schedule_entry (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	uid TEXT NOT NULL UNIQUE,
	created_ts BIGINT NOT NULL DEFAULT (strftime('%s', 'now')),
	updated_ts BIGINT NOT NULL DEFAULT (strftime('%s', 'now')),
	task_id INTEGER NOT NULL REFERENCES task (id),
	recipient_id TEXT NOT NULL,
	fire_ts BIGINT NOT NULL,
	status TEXT NOT NULL DEFAULT 'PENDING',
	reason TEXT NOT NULL DEFAULT '',
	attempts INTEGER NOT NULL DEFAULT 0,
	idempotency_token TEXT NOT NULL DEFAULT '',
	parent_uid TEXT,
	delivered_ts BIGINT,
	ack_ts BIGINT
);

CREATE INDEX IF NOT EXISTS idx_schedule_entry_status_fire ON schedule_entry (status, fire_ts);
CREATE INDEX IF NOT EXISTS idx_schedule_entry_task ON schedule_entry (task_id);
`

// Migrate applies the schema. Statements are idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to apply schema")
	}
	return nil
}
