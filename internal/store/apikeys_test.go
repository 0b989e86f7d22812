package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertTestKey(t *testing.T, s *Store, ownerID, hash string) *APIKey {
	t.Helper()

	k := &APIKey{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		KeyHash:   hash,
		KeyPrefix: "sk_test12345",
		Name:      "laptop",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.InsertAPIKey(context.Background(), k))
	return k
}

func TestGetAPIKeyByHash(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestUser(t, s, "owner", TierBase)

	k := insertTestKey(t, s, "owner", "hash-1")

	got, err := s.GetAPIKeyByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, k.ID, got.ID)
	assert.Equal(t, "owner", got.OwnerID)
	assert.False(t, got.Revoked())
	assert.Nil(t, got.LastUsed)

	_, err = s.GetAPIKeyByHash(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRevokeAPIKey_IsIdempotentAndTerminal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestUser(t, s, "owner", TierBase)

	k := insertTestKey(t, s, "owner", "hash-1")

	require.NoError(t, s.RevokeAPIKey(ctx, "owner", k.ID))

	got, err := s.GetAPIKeyByHash(ctx, "hash-1")
	require.NoError(t, err)
	require.True(t, got.Revoked())
	first := *got.RevokedAt

	// Second revoke succeeds without moving the timestamp.
	require.NoError(t, s.RevokeAPIKey(ctx, "owner", k.ID))
	got, err = s.GetAPIKeyByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.True(t, got.RevokedAt.Equal(first))
}

func TestRevokeAPIKey_RequiresOwnership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestUser(t, s, "alice", TierBase)
	newTestUser(t, s, "bob", TierBase)

	k := insertTestKey(t, s, "alice", "hash-1")

	require.ErrorIs(t, s.RevokeAPIKey(ctx, "bob", k.ID), ErrNotFound)

	got, err := s.GetAPIKeyByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.False(t, got.Revoked())
}

func TestTouchAPIKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestUser(t, s, "owner", TierBase)

	k := insertTestKey(t, s, "owner", "hash-1")
	require.NoError(t, s.TouchAPIKey(ctx, k.ID))

	got, err := s.GetAPIKeyByHash(ctx, "hash-1")
	require.NoError(t, err)
	require.NotNil(t, got.LastUsed)
	assert.WithinDuration(t, time.Now().UTC(), *got.LastUsed, 5*time.Second)
}

func TestListAPIKeys_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	newTestUser(t, s, "owner", TierBase)
	newTestUser(t, s, "other", TierBase)

	a := &APIKey{ID: uuid.New().String(), OwnerID: "owner", KeyHash: "h1",
		KeyPrefix: "sk_aaaa", Name: "old", CreatedAt: time.Now().UTC().Add(-time.Hour)}
	b := &APIKey{ID: uuid.New().String(), OwnerID: "owner", KeyHash: "h2",
		KeyPrefix: "sk_bbbb", Name: "new", CreatedAt: time.Now().UTC()}
	require.NoError(t, s.InsertAPIKey(ctx, a))
	require.NoError(t, s.InsertAPIKey(ctx, b))
	insertTestKey(t, s, "other", "h3")

	keys, err := s.ListAPIKeys(ctx, "owner")
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "new", keys[0].Name)
	assert.Equal(t, "old", keys[1].Name)
}
