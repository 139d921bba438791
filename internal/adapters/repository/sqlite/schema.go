package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open opens (or creates) the database file at path and ensures the schema
// exists. A single connection is kept so concurrent archive writes queue
// instead of failing with SQLITE_BUSY.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// CreateSchema is safe to call multiple times.
func CreateSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Timestamps are stored as unix nanoseconds.
const schema = `
CREATE TABLE IF NOT EXISTS poll_archive (
    id TEXT PRIMARY KEY,
    question TEXT NOT NULL,
    total_votes INTEGER NOT NULL DEFAULT 0,
    correct_option_index INTEGER,
    reason TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    end_time INTEGER NOT NULL,
    ended_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_poll_archive_ended_at ON poll_archive(ended_at);

CREATE TABLE IF NOT EXISTS poll_archive_options (
    poll_id TEXT NOT NULL REFERENCES poll_archive(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    text TEXT NOT NULL,
    votes INTEGER NOT NULL DEFAULT 0,
    percentage INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (poll_id, position)
);

CREATE TABLE IF NOT EXISTS chat_messages (
    id TEXT PRIMARY KEY,
    sender_id TEXT NOT NULL,
    sender_name TEXT NOT NULL,
    sender_role TEXT NOT NULL,
    text TEXT NOT NULL,
    sent_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_sent_at ON chat_messages(sent_at);
`
