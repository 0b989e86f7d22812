package store

import (
	"context"
	"fmt"
	"time"
)

// SetPreference writes an owner-scoped key/value preference. Last write wins.
func (s *Store) SetPreference(ctx context.Context, ownerID, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (owner_id, key, value, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(owner_id, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		ownerID, key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set preference: %w", err)
	}
	return nil
}

// Preferences returns the full preference map for an owner.
func (s *Store) Preferences(ctx context.Context, ownerID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM preferences WHERE owner_id = ?`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("preferences: %w", err)
	}
	defer rows.Close()

	prefs := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		prefs[k] = v
	}
	return prefs, rows.Err()
}
