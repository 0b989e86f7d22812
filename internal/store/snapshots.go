package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InsertSnapshot persists a snapshot and returns its generated id. CreatedAt
// is honored when set by the caller (backdated import), otherwise stamped now.
func (s *Store) InsertSnapshot(ctx context.Context, snap *Snapshot) (string, error) {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	snap.Importance = CoerceSnapshotImportance(snap.Importance)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots
		 (id, owner_id, project_path, summary, context, decisions, next_steps, files_touched, importance, synced, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		snap.ID, snap.OwnerID, snap.ProjectPath, snap.Summary, snap.Context,
		marshalList(snap.Decisions), marshalList(snap.NextSteps), marshalList(snap.FilesTouched),
		snap.Importance, snap.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert snapshot: %w", err)
	}
	return snap.ID, nil
}

// ListSnapshots returns an owner's snapshots, most recent first.
func (s *Store) ListSnapshots(ctx context.Context, ownerID string, limit, offset int) ([]*Snapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, project_path, summary, context, decisions, next_steps, files_touched, importance, synced, created_at
		 FROM snapshots WHERE owner_id = ?
		 ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		ownerID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// LatestSnapshot returns the most recent snapshot for an owner, or
// ErrNotFound when the owner has none.
func (s *Store) LatestSnapshot(ctx context.Context, ownerID string) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, project_path, summary, context, decisions, next_steps, files_touched, importance, synced, created_at
		 FROM snapshots WHERE owner_id = ?
		 ORDER BY created_at DESC LIMIT 1`, ownerID,
	)
	return scanSnapshot(row)
}

// DeleteSnapshot hard-deletes a snapshot. Ownership is part of the WHERE
// clause, so a foreign id reports ErrNotFound rather than forbidden.
func (s *Store) DeleteSnapshot(ctx context.Context, id, ownerID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE id = ? AND owner_id = ?`, id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
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

func scanSnapshot(row rowScanner) (*Snapshot, error) {
	var (
		snap      Snapshot
		decisions sql.NullString
		nextSteps sql.NullString
		files     sql.NullString
		synced    int
	)
	err := row.Scan(&snap.ID, &snap.OwnerID, &snap.ProjectPath, &snap.Summary, &snap.Context,
		&decisions, &nextSteps, &files, &snap.Importance, &synced, &snap.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	snap.Decisions = unmarshalList(decisions)
	snap.NextSteps = unmarshalList(nextSteps)
	snap.FilesTouched = unmarshalList(files)
	snap.Synced = synced != 0
	return &snap, nil
}

// marshalList serializes an ordered string list as JSON, or NULL when empty.
func marshalList(list []string) any {
	if len(list) == 0 {
		return nil
	}
	b, err := json.Marshal(list)
	if err != nil {
		return nil
	}
	return string(b)
}

func unmarshalList(v sql.NullString) []string {
	if !v.Valid || v.String == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(v.String), &list); err != nil {
		return nil
	}
	return list
}
