package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertAPIKey persists a key record. The record carries only the hash and
// display prefix; raw secrets never reach this layer.
func (s *Store) InsertAPIKey(ctx context.Context, k *APIKey) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, owner_id, key_hash, key_prefix, name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		k.ID, k.OwnerID, k.KeyHash, k.KeyPrefix, k.Name, k.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

// GetAPIKeyByHash looks up a key by its SHA-256 digest. The key_hash column
// is unique-indexed, so this is an O(1) expected lookup.
func (s *Store) GetAPIKeyByHash(ctx context.Context, hash string) (*APIKey, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, key_hash, key_prefix, name, created_at, last_used, revoked_at
		 FROM api_keys WHERE key_hash = ?`, hash,
	)
	return scanAPIKey(row)
}

// ListAPIKeys returns all keys for an owner, newest first. Hashes are
// populated on the returned records but excluded from JSON serialization.
func (s *Store) ListAPIKeys(ctx context.Context, ownerID string) ([]*APIKey, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, key_hash, key_prefix, name, created_at, last_used, revoked_at
		 FROM api_keys WHERE owner_id = ? ORDER BY created_at DESC`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// RevokeAPIKey sets revoked_at if unset. Idempotent: revoking an already
// revoked key succeeds without changing the original timestamp. Returns
// ErrNotFound when the key does not exist or belongs to another owner.
func (s *Store) RevokeAPIKey(ctx context.Context, ownerID, keyID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET revoked_at = ?
		 WHERE id = ? AND owner_id = ? AND revoked_at IS NULL`,
		time.Now().UTC(), keyID, ownerID,
	)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	// Nothing updated: either already revoked (fine) or not owned/missing.
	var one int
	err = s.db.QueryRowContext(ctx,
		`SELECT 1 FROM api_keys WHERE id = ? AND owner_id = ?`, keyID, ownerID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	return err
}

// TouchAPIKey updates last_used. Callers treat this as best-effort; a miss
// or failure is not an error worth surfacing.
func (s *Store) TouchAPIKey(ctx context.Context, keyID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET last_used = ? WHERE id = ?`,
		time.Now().UTC(), keyID,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAPIKey(row rowScanner) (*APIKey, error) {
	var (
		k         APIKey
		lastUsed  sql.NullTime
		revokedAt sql.NullTime
	)
	err := row.Scan(&k.ID, &k.OwnerID, &k.KeyHash, &k.KeyPrefix, &k.Name,
		&k.CreatedAt, &lastUsed, &revokedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan api key: %w", err)
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		k.LastUsed = &t
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		k.RevokedAt = &t
	}
	return &k, nil
}
