package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InsertNarrative appends a narrative row. Narratives are an append-only log:
// there is no update-in-place, the latest row per (owner, type) wins.
func (s *Store) InsertNarrative(ctx context.Context, n *Narrative) (string, error) {
	if !ValidNarrativeType(n.Type) {
		return "", fmt.Errorf("insert narrative: unknown type %q", n.Type)
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO narratives (id, owner_id, type, title, text, sources, span_start, span_end, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.OwnerID, string(n.Type), n.Title, n.Text, marshalList(n.Sources),
		nullIfZeroTime(n.SpanStart), nullIfZeroTime(n.SpanEnd), n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert narrative: %w", err)
	}
	return n.ID, nil
}

// LatestNarratives returns the most recently created narrative per type for
// an owner. Types with no rows are simply absent from the result.
func (s *Store) LatestNarratives(ctx context.Context, ownerID string) ([]*Narrative, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, type, title, text, sources, span_start, span_end, created_at, updated_at
		 FROM narratives
		 WHERE owner_id = ?
		   AND id IN (
		     SELECT id FROM narratives n2
		     WHERE n2.owner_id = narratives.owner_id AND n2.type = narratives.type
		     ORDER BY n2.created_at DESC LIMIT 1
		   )
		 ORDER BY type`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("latest narratives: %w", err)
	}
	defer rows.Close()

	var out []*Narrative
	for rows.Next() {
		n, err := scanNarrative(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// ListNarratives returns the full narrative log for one type, newest first.
func (s *Store) ListNarratives(ctx context.Context, ownerID string, typ NarrativeType, limit int) ([]*Narrative, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, type, title, text, sources, span_start, span_end, created_at, updated_at
		 FROM narratives WHERE owner_id = ? AND type = ?
		 ORDER BY created_at DESC LIMIT ?`,
		ownerID, string(typ), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list narratives: %w", err)
	}
	defer rows.Close()

	var out []*Narrative
	for rows.Next() {
		n, err := scanNarrative(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanNarrative(row rowScanner) (*Narrative, error) {
	var (
		n         Narrative
		typ       string
		sources   sql.NullString
		spanStart sql.NullTime
		spanEnd   sql.NullTime
	)
	err := row.Scan(&n.ID, &n.OwnerID, &typ, &n.Title, &n.Text, &sources,
		&spanStart, &spanEnd, &n.CreatedAt, &n.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan narrative: %w", err)
	}
	n.Type = NarrativeType(typ)
	n.Sources = unmarshalList(sources)
	if spanStart.Valid {
		t := spanStart.Time
		n.SpanStart = &t
	}
	if spanEnd.Valid {
		t := spanEnd.Time
		n.SpanEnd = &t
	}
	return &n, nil
}

func nullIfZeroTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return *t
}
