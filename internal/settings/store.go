// Package settings persists per-user editor settings outside the sandbox.
package settings

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("settings not found")

// isBusyLock reports whether err indicates SQLite database lock (SQLITE_BUSY).
func isBusyLock(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "database is locked") || strings.Contains(s, "SQLITE_BUSY")
}

// retryOnBusy runs fn and retries on SQLITE_BUSY with exponential backoff.
func retryOnBusy(fn func() error) error {
	const maxAttempts = 4
	backoff := 25 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil || !isBusyLock(lastErr) {
			return lastErr
		}
		if attempt < maxAttempts-1 {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return lastErr
}

type Store struct {
	db *sql.DB
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS user_settings (
	user_id    TEXT PRIMARY KEY,
	settings   TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// dsnWithPragmas applies WAL and busy_timeout pragmas per-connection.
func dsnWithPragmas(dbPath string) string {
	return dbPath + "?_pragma=busy_timeout(15000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)"
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dsnWithPragmas(dbPath))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the stored settings text for a user, or ErrNotFound.
func (s *Store) Get(userID string) (string, error) {
	row := s.db.QueryRow(`SELECT settings FROM user_settings WHERE user_id = ?`, userID)
	var text string
	err := row.Scan(&text)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	if err != nil {
		return "", fmt.Errorf("reading settings: %w", err)
	}
	return text, nil
}

// Set stores the settings text for a user, replacing any prior value.
func (s *Store) Set(userID, text string) error {
	err := retryOnBusy(func() error {
		_, e := s.db.Exec(
			`INSERT INTO user_settings (user_id, settings, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(user_id) DO UPDATE SET settings = excluded.settings, updated_at = excluded.updated_at`,
			userID, text, time.Now().UTC(),
		)
		return e
	})
	if err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	return nil
}

// Delete removes a user's settings. Deleting absent settings is not an error.
func (s *Store) Delete(userID string) error {
	err := retryOnBusy(func() error {
		_, e := s.db.Exec(`DELETE FROM user_settings WHERE user_id = ?`, userID)
		return e
	})
	if err != nil {
		return fmt.Errorf("deleting settings: %w", err)
	}
	return nil
}
