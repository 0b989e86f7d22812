package apikey

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/continuityd/internal/store"
)

func newTestService(t *testing.T) (Service, *store.Store) {
	t.Helper()

	st, err := store.Open(store.Options{Path: filepath.Join(t.TempDir(), "keys.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	_, err = st.CreateUser(context.Background(), "owner", store.TierBase)
	require.NoError(t, err)

	svc, err := NewService(st, zap.NewNop())
	require.NoError(t, err)
	return svc, st
}

func TestNewService_RequiresStore(t *testing.T) {
	_, err := NewService(nil, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store is required")
}

func TestGenerate_SecretShape(t *testing.T) {
	svc, _ := newTestService(t)

	raw, rec, err := svc.Generate(context.Background(), "owner", "laptop")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(raw, SecretPrefix))
	assert.Len(t, raw, len(SecretPrefix)+40)
	assert.True(t, WellFormed(raw))

	assert.Equal(t, "laptop", rec.Name)
	assert.Equal(t, raw[:12], rec.KeyPrefix)
	assert.NotEqual(t, raw, rec.KeyHash, "stored hash must never equal the raw secret")
	assert.Equal(t, HashSecret(raw), rec.KeyHash)
}

func TestGenerate_SecretsAreUnique(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		raw, _, err := svc.Generate(ctx, "owner", "k")
		require.NoError(t, err)
		require.False(t, seen[raw], "duplicate secret issued")
		seen[raw] = true
	}
}

func TestValidate_Lifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	raw, rec, err := svc.Generate(ctx, "owner", "laptop")
	require.NoError(t, err)

	// Fresh key validates to its owner.
	p, err := svc.Validate(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "owner", p.OwnerID)
	assert.Equal(t, rec.ID, p.KeyID)

	// Revocation is terminal.
	require.NoError(t, svc.Revoke(ctx, "owner", rec.ID))

	_, err = svc.Validate(ctx, raw)
	require.ErrorIs(t, err, ErrInvalidKey)

	// A second revoke is a no-op, and the key never comes back.
	require.NoError(t, svc.Revoke(ctx, "owner", rec.ID))
	_, err = svc.Validate(ctx, raw)
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestValidate_RejectsMalformedShapes(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"wrong prefix", "pk_" + strings.Repeat("a", 40)},
		{"too short", "sk_abc"},
		{"too long", "sk_" + strings.Repeat("a", 41)},
		{"bad characters", "sk_" + strings.Repeat("a", 39) + "!"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Validate(ctx, tc.raw)
			require.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

func TestValidate_UnknownKeyIsRejected(t *testing.T) {
	svc, _ := newTestService(t)

	// Well-formed but never issued.
	_, err := svc.Validate(context.Background(), SecretPrefix+strings.Repeat("A", 40))
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestRevoke_RequiresOwnership(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	_, err := st.CreateUser(ctx, "intruder", store.TierBase)
	require.NoError(t, err)

	raw, rec, err := svc.Generate(ctx, "owner", "laptop")
	require.NoError(t, err)

	require.ErrorIs(t, svc.Revoke(ctx, "intruder", rec.ID), store.ErrNotFound)

	// The key still works for its real owner.
	_, err = svc.Validate(ctx, raw)
	require.NoError(t, err)
}

func TestList_NeverExposesSecretMaterial(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	raw, _, err := svc.Generate(ctx, "owner", "laptop")
	require.NoError(t, err)

	keys, err := svc.List(ctx, "owner")
	require.NoError(t, err)
	require.Len(t, keys, 1)

	k := keys[0]
	assert.Equal(t, "laptop", k.Name)
	assert.Equal(t, raw[:12], k.KeyPrefix)
	assert.NotEqual(t, raw, k.KeyHash)
	assert.NotContains(t, k.KeyHash, raw)
}

func TestHashSecret_OneWayProperty(t *testing.T) {
	raws := []string{
		SecretPrefix + strings.Repeat("a", 40),
		SecretPrefix + strings.Repeat("b", 40),
	}
	for _, raw := range raws {
		h := HashSecret(raw)
		assert.NotEqual(t, raw, h)
		assert.Len(t, h, 64) // hex sha-256
		// Deterministic, so lookups by digest work.
		assert.Equal(t, h, HashSecret(raw))
	}
}
