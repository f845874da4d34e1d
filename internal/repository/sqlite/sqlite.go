// Package sqlite implements the repository interfaces on SQLite.
//
// The store is embedded (modernc.org/sqlite is a pure-Go driver, no CGo),
// which keeps deployment to a single binary plus a database file. Use
// ":memory:" as the path in tests. All access goes through database/sql;
// WAL mode allows concurrent reads while a write is in flight, which
// matters because every HTTP request touches this store.
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql at init time.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements
// repository.ProfileRepository and repository.OutboxRepository.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath, configures it, and runs migrations.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Force an immediate connection so a bad path surfaces here, not on
	// the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Defer it wherever New is called.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	// external_id is the provider's identifier and our primary key; email
	// carries its own UNIQUE constraint. Both uniqueness invariants from
	// the data model live here, not in application code.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS profiles (
			external_id   TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			display_name  TEXT NOT NULL,
			phone_number  TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating profiles table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS mail_outbox (
			id              TEXT PRIMARY KEY,
			recipient       TEXT NOT NULL,
			subject         TEXT NOT NULL,
			body            TEXT NOT NULL,
			status          TEXT NOT NULL DEFAULT 'pending',
			attempts        INTEGER NOT NULL DEFAULT 0,
			last_error      TEXT NOT NULL DEFAULT '',
			next_attempt_at DATETIME NOT NULL,
			created_at      DATETIME NOT NULL,
			updated_at      DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_mail_outbox_due
			ON mail_outbox(status, next_attempt_at);
	`)
	if err != nil {
		return fmt.Errorf("creating mail_outbox table: %w", err)
	}

	return nil
}
