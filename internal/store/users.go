package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateUser inserts a user. The id must be unique; tier defaults to base
// when empty.
func (s *Store) CreateUser(ctx context.Context, id string, tier Tier) (*User, error) {
	if tier == "" {
		tier = TierBase
	}
	u := &User{ID: id, Tier: tier, CreatedAt: time.Now().UTC()}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, tier, created_at) VALUES (?, ?, ?)`,
		u.ID, string(u.Tier), u.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUser retrieves a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	var (
		u    User
		tier string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tier, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &tier, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Tier = Tier(tier)
	return &u, nil
}

// SetUserTier updates a user's tier.
func (s *Store) SetUserTier(ctx context.Context, id string, tier Tier) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET tier = ? WHERE id = ?`, string(tier), id,
	)
	if err != nil {
		return fmt.Errorf("set tier: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
