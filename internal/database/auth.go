package database

import (
	"database/sql"
	"fmt"
	"time"
)

// HasToken reports whether an API token has been configured. Until one is
// set, the HTTP API runs unauthenticated.
func (d *Database) HasToken() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var count int
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM auth_token`).Scan(&count); err != nil {
		return false
	}
	return count > 0
}

// TokenHash returns the bcrypt hash of the configured API token, or an empty
// string when no token is set.
func (d *Database) TokenHash() (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var hash string
	err := d.db.QueryRow(`SELECT token_hash FROM auth_token WHERE id = 1`).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading token hash: %w", err)
	}
	return hash, nil
}

// SetTokenHash stores the bcrypt hash of the API token, replacing any
// existing one.
func (d *Database) SetTokenHash(hash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(
		`INSERT INTO auth_token (id, token_hash, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET token_hash = excluded.token_hash, updated_at = excluded.updated_at`,
		hash, time.Now().Unix(),
	)
	recordQuery("set_token_hash", err)
	if err != nil {
		return fmt.Errorf("storing token hash: %w", err)
	}
	return nil
}

// ClearToken removes the configured API token, disabling authentication.
func (d *Database) ClearToken() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(`DELETE FROM auth_token`)
	recordQuery("clear_token", err)
	if err != nil {
		return fmt.Errorf("clearing token: %w", err)
	}
	return nil
}
