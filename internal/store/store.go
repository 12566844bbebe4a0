package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store wraps the single relational database file that holds users,
// episodes, blobs and notifications. It is opened once at startup and owned
// by the engine facade; all access goes through short synchronous queries.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS User (
	user_id    INTEGER PRIMARY KEY AUTOINCREMENT,
	user_name  TEXT NOT NULL,
	twitch_id  INTEGER NOT NULL UNIQUE,
	is_mod     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS Episode (
	episode_id  INTEGER PRIMARY KEY AUTOINCREMENT,
	game_engine TEXT NOT NULL,
	user_id     INTEGER NOT NULL REFERENCES User(user_id),
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS EpisodeVersion (
	episode_id      INTEGER NOT NULL REFERENCES Episode(episode_id),
	version         INTEGER NOT NULL,
	state           TEXT NOT NULL DEFAULT 'DRAFT',
	data            TEXT NOT NULL DEFAULT '',
	version_updated TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (episode_id, version)
);

CREATE TABLE IF NOT EXISTS Blob (
	blob_id TEXT PRIMARY KEY,
	mime    TEXT NOT NULL,
	width   INTEGER NOT NULL,
	height  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS Notification (
	notification_id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id         INTEGER NOT NULL REFERENCES User(user_id),
	created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	is_read         INTEGER NOT NULL DEFAULT 0,
	data            TEXT NOT NULL
);
`

// Open opens (creating if necessary) the database file at path and ensures
// the schema exists. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single writer keeps the short-synchronous-query model honest.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
