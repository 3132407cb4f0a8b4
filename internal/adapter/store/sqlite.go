package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// timeFormat is fixed-width, unlike RFC3339Nano which drops trailing
// fractional zeros. Timestamp columns are TEXT compared byte-wise, so the
// representation must sort chronologically: "…00.1Z" would otherwise sort
// after "…00.15Z". All stored times are UTC.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// DB wraps the shared SQLite handle used by all stores.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and runs migrations.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// WAL mode for better concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	return &DB{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			display_name     TEXT NOT NULL DEFAULT '',
			phone_number     TEXT UNIQUE,
			telegram_chat_id TEXT UNIQUE,
			status           TEXT NOT NULL DEFAULT 'pending',
			is_admin         INTEGER NOT NULL DEFAULT 0,
			created_at       TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS messages (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id       INTEGER NOT NULL,
			group_chat_id TEXT,
			role          TEXT NOT NULL,
			content       TEXT,
			tool_calls    TEXT,
			tool_call_id  TEXT,
			name          TEXT,
			created_at    TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_user
			ON messages(user_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_messages_group
			ON messages(group_chat_id, created_at);

		CREATE TABLE IF NOT EXISTS pending_actions (
			user_id     INTEGER PRIMARY KEY,
			tool_name   TEXT NOT NULL,
			arguments   TEXT NOT NULL,
			prompt_text TEXT NOT NULL,
			expires_at  TEXT NOT NULL,
			created_at  TEXT NOT NULL
		);
	`)
	return err
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}
