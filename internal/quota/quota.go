// Package quota implements the tier-based admission check consulted before
// memory inserts.
//
// The check is a plain read followed by a separate write in the caller, not a
// transaction. Concurrent writers from multiple devices can overshoot the cap
// by a small, bounded margin; that is an accepted soft-limit property, not a
// bug to fix with locking.
package quota

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/continuityd/internal/store"
)

const instrumentationName = "github.com/fyrsmithlabs/continuityd/internal/quota"

// DefaultBaseTierMemoryLimit caps memories for base-tier owners.
const DefaultBaseTierMemoryLimit = 500

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
	Limit   int    `json:"limit"`
	Current int    `json:"current"`
}

// Config configures the enforcer.
type Config struct {
	// BaseTierMemoryLimit is the memory cap for base-tier owners.
	BaseTierMemoryLimit int
}

// DefaultConfig returns the default limits.
func DefaultConfig() *Config {
	return &Config{BaseTierMemoryLimit: DefaultBaseTierMemoryLimit}
}

// Enforcer answers whether an owner may store another memory.
type Enforcer struct {
	config *Config
	store  *store.Store
	logger *zap.Logger

	tracer        trace.Tracer
	meter         metric.Meter
	deniedCounter metric.Int64Counter
}

// NewEnforcer creates a quota enforcer.
func NewEnforcer(cfg *Config, st *store.Store, logger *zap.Logger) (*Enforcer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if st == nil {
		return nil, errors.New("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Enforcer{
		config: cfg,
		store:  st,
		logger: logger,
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
	}
	e.initMetrics()

	return e, nil
}

func (e *Enforcer) initMetrics() {
	var err error

	e.deniedCounter, err = e.meter.Int64Counter(
		"continuityd.quota.denials_total",
		metric.WithDescription("Total memory inserts rejected by the tier quota"),
		metric.WithUnit("{denial}"),
	)
	if err != nil {
		e.logger.Warn("failed to create denial counter", zap.Error(err))
	}
}

// Check returns the admission decision for one more memory insert by ownerID.
// Privileged tiers (pro, team) are always allowed; base-tier owners are
// counted against the configured cap.
func (e *Enforcer) Check(ctx context.Context, ownerID string) (*Decision, error) {
	ctx, span := e.tracer.Start(ctx, "quota.check")
	defer span.End()
	span.SetAttributes(attribute.String("owner_id", ownerID))

	u, err := e.store.GetUser(ctx, ownerID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("quota: resolve owner: %w", err)
	}

	if u.Tier == store.TierPro || u.Tier == store.TierTeam {
		return &Decision{Allowed: true, Limit: -1}, nil
	}

	current, err := e.store.CountMemories(ctx, ownerID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("quota: count memories: %w", err)
	}

	limit := e.config.BaseTierMemoryLimit
	if current >= limit {
		if e.deniedCounter != nil {
			e.deniedCounter.Add(ctx, 1)
		}
		e.logger.Info("memory quota reached",
			zap.String("owner_id", ownerID),
			zap.Int("current", current),
			zap.Int("limit", limit),
		)
		return &Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("base tier limit of %d memories reached (%d stored); upgrade to pro for unlimited memories", limit, current),
			Limit:   limit,
			Current: current,
		}, nil
	}

	return &Decision{Allowed: true, Limit: limit, Current: current}, nil
}
