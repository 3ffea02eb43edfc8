package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// GetProfileKey returns a single profile value.
func (s *Store) GetProfileKey(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM profile WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return value, err
}

// GetAllProfileKeys returns every profile key/value pair.
func (s *Store) GetAllProfileKeys() (map[string]string, error) {
	rows, err := s.db.Query("SELECT key, value FROM profile")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		result[k] = v
	}
	return result, rows.Err()
}

// ProfileVersion returns the current profile version counter.
func (s *Store) ProfileVersion() (int, error) {
	var v int
	err := s.db.QueryRow("SELECT version FROM profile_meta WHERE id = 1").Scan(&v)
	return v, err
}

// UpdateProfile applies a batch of key upserts under a compare-and-swap on the
// profile version counter. The update succeeds only when the stored version
// matches expectedVersion; otherwise ErrVersionConflict is returned and the
// caller must re-fetch and retry by hand. Conflicts are never retried
// silently across field merges.
func (s *Store) UpdateProfile(expectedVersion int, updates map[string]string) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning profile transaction: %w", err)
	}
	defer tx.Rollback()

	var current int
	if err := tx.QueryRow("SELECT version FROM profile_meta WHERE id = 1").Scan(&current); err != nil {
		return 0, fmt.Errorf("reading profile version: %w", err)
	}
	if current != expectedVersion {
		return current, ErrVersionConflict
	}

	now := formatTime(time.Now())
	for k, v := range updates {
		if _, err := tx.Exec(`
			INSERT INTO profile (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			k, v, now,
		); err != nil {
			return 0, fmt.Errorf("upserting profile key %q: %w", k, err)
		}
	}

	next := current + 1
	if _, err := tx.Exec("UPDATE profile_meta SET version = ? WHERE id = 1", next); err != nil {
		return 0, fmt.Errorf("bumping profile version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return next, nil
}
