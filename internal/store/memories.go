package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ListOptions controls memory listing.
type ListOptions struct {
	Limit   int
	Offset  int
	OrderBy string // createdAt | lastAccessed | accessCount | importance
	Order   string // asc | desc
}

// InsertMemory persists a memory and returns its generated id. CreatedAt is
// honored when the caller set it, otherwise stamped now.
func (s *Store) InsertMemory(ctx context.Context, m *Memory) (string, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	m.Importance = CoerceMemoryImportance(m.Importance)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memories
		 (public_id, owner_id, content, context, importance, tags, access_count, synced, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, 1, ?)`,
		m.ID, m.OwnerID, m.Content, nullIfEmpty(m.Context), m.Importance,
		marshalList(m.Tags), m.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert memory: %w", err)
	}
	return m.ID, nil
}

// GetMemory retrieves a memory by public id, scoped to its owner.
func (s *Store) GetMemory(ctx context.Context, id, ownerID string) (*Memory, error) {
	row := s.db.QueryRowContext(ctx,
		memorySelect+` WHERE public_id = ? AND owner_id = ?`, id, ownerID,
	)
	return scanMemory(row)
}

// ListMemories returns an owner's memories ordered per opts.
func (s *Store) ListMemories(ctx context.Context, ownerID string, opts ListOptions) ([]*Memory, error) {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}

	query := memorySelect + ` WHERE owner_id = ? ORDER BY ` +
		orderColumn(opts.OrderBy) + ` ` + orderDirection(opts.Order) +
		` LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, ownerID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	return collectMemories(rows)
}

// SearchMemories runs an owner-scoped full-text search over memory content
// and context. Ranking is delegated to FTS5; the owner filter is applied in
// the join so another tenant's rows can never surface.
func (s *Store) SearchMemories(ctx context.Context, ownerID, query string, limit int) ([]*Memory, error) {
	if limit <= 0 {
		limit = 10
	}
	ftsQuery := sanitizeFTS(query)
	if ftsQuery == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT m.public_id, m.owner_id, m.content, m.context, m.importance, m.tags,
		        m.access_count, m.last_accessed, m.synced, m.created_at
		 FROM memories_fts fts
		 JOIN memories m ON m.id = fts.rowid
		 WHERE memories_fts MATCH ? AND m.owner_id = ?
		 ORDER BY fts.rank LIMIT ?`,
		ftsQuery, ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	defer rows.Close()

	return collectMemories(rows)
}

// RecallMemory marks an explicit recall: it increments access_count and sets
// last_accessed, then returns the updated memory. List and search never touch
// these fields. Returns ErrNotFound for missing or foreign ids.
func (s *Store) RecallMemory(ctx context.Context, id, ownerID string) (*Memory, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET access_count = access_count + 1, last_accessed = ?
		 WHERE public_id = ? AND owner_id = ?`,
		time.Now().UTC(), id, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("recall memory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.GetMemory(ctx, id, ownerID)
}

// DeleteMemory hard-deletes a memory. Foreign ids report ErrNotFound.
func (s *Store) DeleteMemory(ctx context.Context, id, ownerID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM memories WHERE public_id = ? AND owner_id = ?`, id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
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

// CountMemories returns the number of memories an owner currently holds.
// The quota enforcer reads this before inserts; the check-then-insert pair is
// deliberately not transactional (soft cap).
func (s *Store) CountMemories(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memories WHERE owner_id = ?`, ownerID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count memories: %w", err)
	}
	return n, nil
}

// RecentMemories returns the n most recently created memories for an owner.
func (s *Store) RecentMemories(ctx context.Context, ownerID string, n int) ([]*Memory, error) {
	return s.ListMemories(ctx, ownerID, ListOptions{
		Limit:   n,
		OrderBy: "createdAt",
		Order:   "desc",
	})
}

const memorySelect = `SELECT public_id, owner_id, content, context, importance, tags,
	access_count, last_accessed, synced, created_at FROM memories`

// orderColumn maps the API ordering vocabulary onto columns. Importance
// orders by enum weight so "critical" sorts above "normal" regardless of
// lexical order. Unknown values fall back to creation time.
func orderColumn(orderBy string) string {
	switch orderBy {
	case "lastAccessed":
		return "last_accessed"
	case "accessCount":
		return "access_count"
	case "importance":
		return `CASE importance
			WHEN 'critical' THEN 3
			WHEN 'high' THEN 2
			WHEN 'important' THEN 2
			WHEN 'normal' THEN 1
			ELSE 0 END`
	default:
		return "created_at"
	}
}

func orderDirection(order string) string {
	if strings.EqualFold(order, "asc") {
		return "ASC"
	}
	return "DESC"
}

// sanitizeFTS quotes each term so user input cannot inject FTS5 syntax.
func sanitizeFTS(query string) string {
	words := strings.Fields(query)
	for i, w := range words {
		w = strings.Trim(w, `"`)
		words[i] = `"` + w + `"`
	}
	return strings.Join(words, " ")
}

func collectMemories(rows *sql.Rows) ([]*Memory, error) {
	var mems []*Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		mems = append(mems, m)
	}
	return mems, rows.Err()
}

func scanMemory(row rowScanner) (*Memory, error) {
	var (
		m            Memory
		mctx         sql.NullString
		tags         sql.NullString
		lastAccessed sql.NullTime
		synced       int
	)
	err := row.Scan(&m.ID, &m.OwnerID, &m.Content, &mctx, &m.Importance, &tags,
		&m.AccessCount, &lastAccessed, &synced, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan memory: %w", err)
	}
	if mctx.Valid {
		m.Context = mctx.String
	}
	m.Tags = unmarshalList(tags)
	if lastAccessed.Valid {
		t := lastAccessed.Time
		m.LastAccessed = &t
	}
	m.Synced = synced != 0
	return &m, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
