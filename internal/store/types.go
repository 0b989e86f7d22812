package store

import "time"

// Tier is a user's service level.
type Tier string

const (
	TierBase Tier = "base"
	TierPro  Tier = "pro"
	TierTeam Tier = "team"
)

// NarrativeType classifies a narrative row.
type NarrativeType string

const (
	NarrativeIdentity     NarrativeType = "identity"
	NarrativeCapability   NarrativeType = "capability"
	NarrativeRelationship NarrativeType = "relationship"
	NarrativeTrajectory   NarrativeType = "trajectory"
	NarrativeMilestone    NarrativeType = "milestone"
)

// NarrativeTypes lists the fixed narrative types in their canonical order.
var NarrativeTypes = []NarrativeType{
	NarrativeIdentity,
	NarrativeCapability,
	NarrativeRelationship,
	NarrativeTrajectory,
	NarrativeMilestone,
}

// User is the owning identity for all other entities.
type User struct {
	ID        string    `json:"id"`
	Tier      Tier      `json:"tier"`
	CreatedAt time.Time `json:"created_at"`
}

// APIKey is a stored credential record. The raw secret is never persisted;
// KeyHash holds its SHA-256 hex digest and KeyPrefix the short display form.
type APIKey struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	KeyHash   string     `json:"-"`
	KeyPrefix string     `json:"key_prefix"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	LastUsed  *time.Time `json:"last_used,omitempty"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// Revoked reports whether the key has been revoked.
func (k *APIKey) Revoked() bool {
	return k.RevokedAt != nil
}

// Snapshot is a point-in-time record of a working session. Immutable after
// creation except for deletion.
type Snapshot struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	ProjectPath  string    `json:"project_path"`
	Summary      string    `json:"summary"`
	Context      string    `json:"context"`
	Decisions    []string  `json:"decisions,omitempty"`
	NextSteps    []string  `json:"next_steps,omitempty"`
	FilesTouched []string  `json:"files_touched,omitempty"`
	Importance   string    `json:"importance"`
	Synced       bool      `json:"synced"`
	CreatedAt    time.Time `json:"created_at"`
}

// Memory is a persistent fact with importance and usage tracking.
// AccessCount and LastAccessed change only through Store.RecallMemory.
type Memory struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"owner_id"`
	Content      string     `json:"content"`
	Context      string     `json:"context,omitempty"`
	Importance   string     `json:"importance"`
	Tags         []string   `json:"tags,omitempty"`
	AccessCount  int        `json:"access_count"`
	LastAccessed *time.Time `json:"last_accessed,omitempty"`
	Synced       bool       `json:"synced"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Narrative is one row of the append-only per-type narrative log.
type Narrative struct {
	ID        string        `json:"id"`
	OwnerID   string        `json:"owner_id"`
	Type      NarrativeType `json:"type"`
	Title     string        `json:"title"`
	Text      string        `json:"text"`
	Sources   []string      `json:"sources,omitempty"`
	SpanStart *time.Time    `json:"span_start,omitempty"`
	SpanEnd   *time.Time    `json:"span_end,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Snapshot importance vocabulary.
var snapshotImportance = map[string]bool{
	"critical":  true,
	"important": true,
	"normal":    true,
	"reference": true,
}

// Memory importance vocabulary.
var memoryImportance = map[string]bool{
	"critical": true,
	"high":     true,
	"normal":   true,
	"low":      true,
}

// CoerceSnapshotImportance maps unknown importance values to "normal" so
// minor client drift does not break ingestion.
func CoerceSnapshotImportance(v string) string {
	if snapshotImportance[v] {
		return v
	}
	return "normal"
}

// CoerceMemoryImportance maps unknown importance values to "normal".
func CoerceMemoryImportance(v string) string {
	if memoryImportance[v] {
		return v
	}
	return "normal"
}

// ValidNarrativeType reports whether t is one of the five fixed types.
func ValidNarrativeType(t NarrativeType) bool {
	for _, n := range NarrativeTypes {
		if n == t {
			return true
		}
	}
	return false
}
