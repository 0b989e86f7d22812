package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/continuityd/internal/store"
)

// maxBatchSize caps bulk-sync requests.
const maxBatchSize = 100

// handleHealth returns the unauthenticated health check.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
	})
}

// handleSnapshotSync inserts exactly one snapshot, or fails atomically.
func (s *Server) handleSnapshotSync(c echo.Context) error {
	var req snapshotPayload
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if !req.valid() {
		return fail(c, http.StatusBadRequest, "projectPath, summary, and context are required")
	}

	p := principal(c)
	id, err := s.store.InsertSnapshot(c.Request().Context(), snapshotFromPayload(p.OwnerID, &req))
	if err != nil {
		return s.storageError(c, "snapshot sync", err)
	}

	return c.JSON(http.StatusCreated, snapshotSyncResponse{Success: true, SnapshotID: id})
}

// handleSnapshotBulkSync processes a capped batch sequentially. Malformed
// entries are skipped rather than aborting the batch, and a storage failure
// on one item does not roll back the others; partial success is a
// first-class outcome reported through the synced/total counts.
func (s *Server) handleSnapshotBulkSync(c echo.Context) error {
	var req bulkSnapshotRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Snapshots == nil {
		return fail(c, http.StatusBadRequest, "snapshots must be an array")
	}
	if len(req.Snapshots) > maxBatchSize {
		return fail(c, http.StatusBadRequest, "batch size exceeds maximum of 100")
	}

	p := principal(c)
	ctx := c.Request().Context()

	synced := 0
	for i := range req.Snapshots {
		entry := &req.Snapshots[i]
		if !entry.valid() {
			continue
		}
		if _, err := s.store.InsertSnapshot(ctx, snapshotFromPayload(p.OwnerID, entry)); err != nil {
			s.logger.Warn("bulk sync item failed",
				zap.Int("index", i),
				zap.Error(err),
			)
			continue
		}
		synced++
	}

	return c.JSON(http.StatusOK, bulkSyncResponse{
		Success: true,
		Synced:  synced,
		Total:   len(req.Snapshots),
	})
}

// handleSnapshotList returns the owner's snapshots, most recent first.
func (s *Server) handleSnapshotList(c echo.Context) error {
	p := principal(c)
	limit := intQuery(c, "limit", 20)
	offset := intQuery(c, "offset", 0)

	snaps, err := s.store.ListSnapshots(c.Request().Context(), p.OwnerID, limit, offset)
	if err != nil {
		return s.storageError(c, "snapshot list", err)
	}
	if snaps == nil {
		snaps = []*store.Snapshot{}
	}
	return c.JSON(http.StatusOK, snaps)
}

func (s *Server) handleSnapshotDelete(c echo.Context) error {
	p := principal(c)
	err := s.store.DeleteSnapshot(c.Request().Context(), c.Param("id"), p.OwnerID)
	if errors.Is(err, store.ErrNotFound) {
		return fail(c, http.StatusNotFound, "snapshot not found")
	}
	if err != nil {
		return s.storageError(c, "snapshot delete", err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// handleMemorySync inserts one memory after the quota check. The check and
// the insert are two separate statements; the cap is soft under concurrent
// writers from multiple devices.
func (s *Server) handleMemorySync(c echo.Context) error {
	var req memoryPayload
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Content == "" {
		return fail(c, http.StatusBadRequest, "content is required")
	}

	p := principal(c)
	ctx := c.Request().Context()

	decision, err := s.quota.Check(ctx, p.OwnerID)
	if err != nil {
		return s.storageError(c, "quota check", err)
	}
	if !decision.Allowed {
		return c.JSON(http.StatusForbidden, quotaExceededResponse{
			Success: false,
			Error:   decision.Reason,
			Limit:   decision.Limit,
			Current: decision.Current,
		})
	}

	m := &store.Memory{
		OwnerID:    p.OwnerID,
		Content:    req.Content,
		Context:    req.Context,
		Importance: store.CoerceMemoryImportance(req.Importance),
		Tags:       req.Tags,
	}
	if req.CreatedAt != nil {
		m.CreatedAt = *req.CreatedAt
	}

	id, err := s.store.InsertMemory(ctx, m)
	if err != nil {
		return s.storageError(c, "memory sync", err)
	}

	return c.JSON(http.StatusCreated, memorySyncResponse{Success: true, MemoryID: id})
}

func (s *Server) handleMemoryList(c echo.Context) error {
	p := principal(c)
	opts := store.ListOptions{
		Limit:   intQuery(c, "limit", 20),
		Offset:  intQuery(c, "offset", 0),
		OrderBy: c.QueryParam("orderBy"),
		Order:   c.QueryParam("order"),
	}

	mems, err := s.store.ListMemories(c.Request().Context(), p.OwnerID, opts)
	if err != nil {
		return s.storageError(c, "memory list", err)
	}
	if mems == nil {
		mems = []*store.Memory{}
	}
	return c.JSON(http.StatusOK, mems)
}

func (s *Server) handleMemorySearch(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return fail(c, http.StatusBadRequest, "q is required")
	}

	p := principal(c)
	mems, err := s.store.SearchMemories(c.Request().Context(), p.OwnerID, q, intQuery(c, "limit", 10))
	if err != nil {
		return s.storageError(c, "memory search", err)
	}
	if mems == nil {
		mems = []*store.Memory{}
	}
	return c.JSON(http.StatusOK, mems)
}

// handleMemoryRecall is the only read that mutates: it bumps access_count
// and last_accessed as a side effect of this specific operation.
func (s *Server) handleMemoryRecall(c echo.Context) error {
	p := principal(c)
	m, err := s.store.RecallMemory(c.Request().Context(), c.Param("id"), p.OwnerID)
	if errors.Is(err, store.ErrNotFound) {
		return fail(c, http.StatusNotFound, "memory not found")
	}
	if err != nil {
		return s.storageError(c, "memory recall", err)
	}
	return c.JSON(http.StatusOK, m)
}

func (s *Server) handleMemoryDelete(c echo.Context) error {
	p := principal(c)
	err := s.store.DeleteMemory(c.Request().Context(), c.Param("id"), p.OwnerID)
	if errors.Is(err, store.ErrNotFound) {
		return fail(c, http.StatusNotFound, "memory not found")
	}
	if err != nil {
		return s.storageError(c, "memory delete", err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// handleNarrativeSync appends a narrative row; narratives are never updated
// in place.
func (s *Server) handleNarrativeSync(c echo.Context) error {
	var req narrativePayload
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Title == "" || req.Text == "" {
		return fail(c, http.StatusBadRequest, "title and text are required")
	}
	typ := store.NarrativeType(req.Type)
	if !store.ValidNarrativeType(typ) {
		return fail(c, http.StatusBadRequest, "type must be one of identity, capability, relationship, trajectory, milestone")
	}

	p := principal(c)
	id, err := s.store.InsertNarrative(c.Request().Context(), &store.Narrative{
		OwnerID:   p.OwnerID,
		Type:      typ,
		Title:     req.Title,
		Text:      req.Text,
		Sources:   req.Sources,
		SpanStart: req.SpanStart,
		SpanEnd:   req.SpanEnd,
	})
	if err != nil {
		return s.storageError(c, "narrative sync", err)
	}

	return c.JSON(http.StatusCreated, narrativeSyncResponse{Success: true, NarrativeID: id})
}

func (s *Server) handlePreferenceList(c echo.Context) error {
	p := principal(c)
	prefs, err := s.store.Preferences(c.Request().Context(), p.OwnerID)
	if err != nil {
		return s.storageError(c, "preference list", err)
	}
	return c.JSON(http.StatusOK, prefs)
}

func (s *Server) handlePreferenceSet(c echo.Context) error {
	key := c.Param("key")
	var req preferencePayload
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}

	p := principal(c)
	if err := s.store.SetPreference(c.Request().Context(), p.OwnerID, key, req.Value); err != nil {
		return s.storageError(c, "preference set", err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

// handleContextBridge composes the wake-up payload. Read-only and safe to
// repeat.
func (s *Server) handleContextBridge(c echo.Context) error {
	p := principal(c)
	res, err := s.bridge.Compose(c.Request().Context(), p.OwnerID)
	if err != nil {
		return s.storageError(c, "context bridge", err)
	}
	return c.JSON(http.StatusOK, res)
}

// handleKeyList returns the caller's key records; hashes never serialize.
func (s *Server) handleKeyList(c echo.Context) error {
	p := principal(c)
	keys, err := s.keys.List(c.Request().Context(), p.OwnerID)
	if err != nil {
		return s.storageError(c, "key list", err)
	}
	if keys == nil {
		keys = []*store.APIKey{}
	}
	return c.JSON(http.StatusOK, keys)
}

func (s *Server) handleKeyRevoke(c echo.Context) error {
	p := principal(c)
	err := s.keys.Revoke(c.Request().Context(), p.OwnerID, c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return fail(c, http.StatusNotFound, "key not found")
	}
	if err != nil {
		return s.storageError(c, "key revoke", err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}

func snapshotFromPayload(ownerID string, p *snapshotPayload) *store.Snapshot {
	snap := &store.Snapshot{
		OwnerID:      ownerID,
		ProjectPath:  p.ProjectPath,
		Summary:      p.Summary,
		Context:      p.Context,
		Decisions:    p.Decisions,
		NextSteps:    p.NextSteps,
		FilesTouched: p.FilesTouched,
		Importance:   store.CoerceSnapshotImportance(p.Importance),
	}
	if p.CreatedAt != nil {
		snap.CreatedAt = *p.CreatedAt
	}
	return snap
}

func intQuery(c echo.Context, name string, def int) int {
	v := c.QueryParam(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
