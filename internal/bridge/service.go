// Package bridge implements the context bridge aggregator: the read-only
// composite query an agent runs on restart to recover its working state.
package bridge

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/continuityd/internal/store"
)

const instrumentationName = "github.com/fyrsmithlabs/continuityd/internal/bridge"

// recentMemoryCount is how many memories the bridge carries.
const recentMemoryCount = 10

// MemorySummary is the projection of a Memory carried by the bridge.
type MemorySummary struct {
	Content    string   `json:"content"`
	Importance string   `json:"importance"`
	Tags       []string `json:"tags,omitempty"`
}

// Result is the composed continuity payload. Narrative types without a row
// are simply absent; nothing is substituted with placeholders.
type Result struct {
	Snapshot       *store.Snapshot    `json:"snapshot,omitempty"`
	RecentMemories []MemorySummary    `json:"recent_memories"`
	Preferences    map[string]string  `json:"preferences"`
	Narratives     []*store.Narrative `json:"narratives"`
}

// Service composes continuity payloads.
type Service struct {
	store  *store.Store
	logger *zap.Logger

	tracer         trace.Tracer
	meter          metric.Meter
	composeCounter metric.Int64Counter
}

// NewService creates the aggregator.
func NewService(st *store.Store, logger *zap.Logger) (*Service, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		store:  st,
		logger: logger,
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
	}
	s.initMetrics()

	return s, nil
}

func (s *Service) initMetrics() {
	var err error

	s.composeCounter, err = s.meter.Int64Counter(
		"continuityd.bridge.composes_total",
		metric.WithDescription("Total context bridge compositions"),
		metric.WithUnit("{compose}"),
	)
	if err != nil {
		s.logger.Warn("failed to create compose counter", zap.Error(err))
	}
}

// Compose assembles the continuity payload for an owner. It performs no
// mutation and is safe to repeat; this is the canonical wake-up query.
func (s *Service) Compose(ctx context.Context, ownerID string) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "bridge.compose")
	defer span.End()
	span.SetAttributes(attribute.String("owner_id", ownerID))

	res := &Result{
		RecentMemories: []MemorySummary{},
		Preferences:    map[string]string{},
		Narratives:     []*store.Narrative{},
	}

	snap, err := s.store.LatestSnapshot(ctx, ownerID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		span.RecordError(err)
		return nil, err
	}
	res.Snapshot = snap // nil when the owner has no snapshots

	memories, err := s.store.RecentMemories(ctx, ownerID, recentMemoryCount)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	for _, m := range memories {
		res.RecentMemories = append(res.RecentMemories, MemorySummary{
			Content:    m.Content,
			Importance: m.Importance,
			Tags:       m.Tags,
		})
	}

	prefs, err := s.store.Preferences(ctx, ownerID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	res.Preferences = prefs

	narratives, err := s.store.LatestNarratives(ctx, ownerID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if narratives != nil {
		res.Narratives = narratives
	}

	if s.composeCounter != nil {
		s.composeCounter.Add(ctx, 1)
	}

	span.SetAttributes(
		attribute.Bool("has_snapshot", res.Snapshot != nil),
		attribute.Int("memory_count", len(res.RecentMemories)),
		attribute.Int("narrative_count", len(res.Narratives)),
	)
	return res, nil
}
