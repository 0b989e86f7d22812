package bridge

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/continuityd/internal/store"
)

func newTestBridge(t *testing.T) (*Service, *store.Store) {
	t.Helper()

	st, err := store.Open(store.Options{Path: filepath.Join(t.TempDir(), "bridge.db")}, zap.NewNop())
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

func TestCompose_BrandNewOwner(t *testing.T) {
	svc, _ := newTestBridge(t)

	res, err := svc.Compose(context.Background(), "owner")
	require.NoError(t, err)

	assert.Nil(t, res.Snapshot)
	assert.Empty(t, res.RecentMemories)
	assert.Empty(t, res.Preferences)
	assert.NotNil(t, res.Narratives)
	assert.Empty(t, res.Narratives)
}

func TestCompose_MissingNarrativesStillReturnsTheRest(t *testing.T) {
	svc, st := newTestBridge(t)
	ctx := context.Background()

	_, err := st.InsertSnapshot(ctx, &store.Snapshot{
		OwnerID: "owner", ProjectPath: "/p", Summary: "working on the gateway", Context: "c",
	})
	require.NoError(t, err)
	_, err = st.InsertMemory(ctx, &store.Memory{OwnerID: "owner", Content: "remembers the port is 9090"})
	require.NoError(t, err)
	require.NoError(t, st.SetPreference(ctx, "owner", "editor", "vim"))

	res, err := svc.Compose(ctx, "owner")
	require.NoError(t, err)

	require.NotNil(t, res.Snapshot)
	assert.Equal(t, "working on the gateway", res.Snapshot.Summary)
	require.Len(t, res.RecentMemories, 1)
	assert.Equal(t, map[string]string{"editor": "vim"}, res.Preferences)
	assert.Empty(t, res.Narratives)
}

func TestCompose_TakesTenMostRecentMemories(t *testing.T) {
	svc, st := newTestBridge(t)
	ctx := context.Background()

	base := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 15; i++ {
		_, err := st.InsertMemory(ctx, &store.Memory{
			OwnerID:   "owner",
			Content:   fmt.Sprintf("memory %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	res, err := svc.Compose(ctx, "owner")
	require.NoError(t, err)

	require.Len(t, res.RecentMemories, 10)
	assert.Equal(t, "memory 14", res.RecentMemories[0].Content)
	assert.Equal(t, "memory 5", res.RecentMemories[9].Content)
}

func TestCompose_ProjectsMemoriesToSummaryFields(t *testing.T) {
	svc, st := newTestBridge(t)
	ctx := context.Background()

	_, err := st.InsertMemory(ctx, &store.Memory{
		OwnerID:    "owner",
		Content:    "uses conventional commits",
		Importance: "high",
		Tags:       []string{"git"},
	})
	require.NoError(t, err)

	res, err := svc.Compose(ctx, "owner")
	require.NoError(t, err)

	require.Len(t, res.RecentMemories, 1)
	m := res.RecentMemories[0]
	assert.Equal(t, "uses conventional commits", m.Content)
	assert.Equal(t, "high", m.Importance)
	assert.Equal(t, []string{"git"}, m.Tags)
}

func TestCompose_LatestNarrativePerType(t *testing.T) {
	svc, st := newTestBridge(t)
	ctx := context.Background()

	base := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	_, err := st.InsertNarrative(ctx, &store.Narrative{
		OwnerID: "owner", Type: store.NarrativeIdentity,
		Title: "old self", Text: "x", CreatedAt: base,
	})
	require.NoError(t, err)
	_, err = st.InsertNarrative(ctx, &store.Narrative{
		OwnerID: "owner", Type: store.NarrativeIdentity,
		Title: "current self", Text: "x", CreatedAt: base.Add(time.Hour),
	})
	require.NoError(t, err)

	res, err := svc.Compose(ctx, "owner")
	require.NoError(t, err)

	require.Len(t, res.Narratives, 1)
	assert.Equal(t, store.NarrativeIdentity, res.Narratives[0].Type)
	assert.Equal(t, "current self", res.Narratives[0].Title)
}

func TestCompose_IsReadOnly(t *testing.T) {
	svc, st := newTestBridge(t)
	ctx := context.Background()

	id, err := st.InsertMemory(ctx, &store.Memory{OwnerID: "owner", Content: "untouched"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.Compose(ctx, "owner")
		require.NoError(t, err)
	}

	m, err := st.GetMemory(ctx, id, "owner")
	require.NoError(t, err)
	assert.Equal(t, 0, m.AccessCount, "compose must not count as recall")
	assert.Nil(t, m.LastAccessed)
}
