package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(Options{Path: filepath.Join(t.TempDir(), "continuity.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestUser(t *testing.T, s *Store, id string, tier Tier) *User {
	t.Helper()

	u, err := s.CreateUser(context.Background(), id, tier)
	require.NoError(t, err)
	return u
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Options{}, zap.NewNop())
	require.Error(t, err)
}

func TestOpen_MigrationIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "continuity.db")

	s, err := Open(Options{Path: path}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening the same file must not fail on existing tables or triggers.
	s, err = Open(Options{Path: path}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestUsers_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := newTestUser(t, s, "user-1", TierPro)
	require.Equal(t, TierPro, u.Tier)

	got, err := s.GetUser(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, "user-1", got.ID)
	require.Equal(t, TierPro, got.Tier)
}

func TestUsers_DefaultTierIsBase(t *testing.T) {
	s := newTestStore(t)

	u := newTestUser(t, s, "user-1", "")
	require.Equal(t, TierBase, u.Tier)
}

func TestUsers_GetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetUser(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUsers_SetTier(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	newTestUser(t, s, "user-1", TierBase)
	require.NoError(t, s.SetUserTier(ctx, "user-1", TierTeam))

	got, err := s.GetUser(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, TierTeam, got.Tier)

	require.ErrorIs(t, s.SetUserTier(ctx, "ghost", TierPro), ErrNotFound)
}
