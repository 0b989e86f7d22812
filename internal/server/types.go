package server

import "time"

// snapshotPayload is the request body for snapshot ingestion. Importance is
// coerced to "normal" when it is not in the snapshot vocabulary; CreatedAt is
// honored when supplied so historical imports keep their timestamps.
type snapshotPayload struct {
	ProjectPath  string     `json:"projectPath"`
	Summary      string     `json:"summary"`
	Context      string     `json:"context"`
	Decisions    []string   `json:"decisions,omitempty"`
	NextSteps    []string   `json:"nextSteps,omitempty"`
	FilesTouched []string   `json:"filesTouched,omitempty"`
	Importance   string     `json:"importance,omitempty"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
}

// valid reports whether the payload carries all required fields.
func (p *snapshotPayload) valid() bool {
	return p.ProjectPath != "" && p.Summary != "" && p.Context != ""
}

type bulkSnapshotRequest struct {
	Snapshots []snapshotPayload `json:"snapshots"`
}

type memoryPayload struct {
	Content    string     `json:"content"`
	Context    string     `json:"context,omitempty"`
	Importance string     `json:"importance,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
	CreatedAt  *time.Time `json:"createdAt,omitempty"`
}

type narrativePayload struct {
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Text      string     `json:"text"`
	Sources   []string   `json:"sources,omitempty"`
	SpanStart *time.Time `json:"spanStart,omitempty"`
	SpanEnd   *time.Time `json:"spanEnd,omitempty"`
}

type preferencePayload struct {
	Value string `json:"value"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type snapshotSyncResponse struct {
	Success    bool   `json:"success"`
	SnapshotID string `json:"snapshotId"`
}

type bulkSyncResponse struct {
	Success bool `json:"success"`
	Synced  int  `json:"synced"`
	Total   int  `json:"total"`
}

type memorySyncResponse struct {
	Success  bool   `json:"success"`
	MemoryID string `json:"memoryId"`
}

type narrativeSyncResponse struct {
	Success     bool   `json:"success"`
	NarrativeID string `json:"narrativeId"`
}

type quotaExceededResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Limit   int    `json:"limit"`
	Current int    `json:"current"`
}
