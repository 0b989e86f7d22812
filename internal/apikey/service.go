// Package apikey implements the credential manager for continuityd.
//
// Keys are bearer secrets of the form "sk_" + 40 alphanumeric characters.
// Only the SHA-256 digest of a secret is ever stored; the raw value exists
// exactly once, in the Generate response. Validation looks the digest up in
// the store, so a leaked database reveals no usable credentials.
package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/continuityd/internal/store"
)

const instrumentationName = "github.com/fyrsmithlabs/continuityd/internal/apikey"

const (
	// SecretPrefix is the recognizable prefix of every issued secret.
	SecretPrefix = "sk_"

	// secretBodyLen is the number of random alphanumeric characters after
	// the prefix.
	secretBodyLen = 40

	// displayPrefixLen is how many leading characters of the secret are
	// stored for display in key listings.
	displayPrefixLen = 12

	secretAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// ErrInvalidKey is the single rejection for malformed, unknown, and revoked
// credentials. Callers cannot distinguish the cases, which keeps key
// enumeration blind.
var ErrInvalidKey = errors.New("apikey: invalid key")

// Principal identifies the authenticated caller after a successful Validate.
type Principal struct {
	OwnerID string
	KeyID   string
}

// Service manages the API key lifecycle.
type Service interface {
	// Generate creates a key for the owner and returns the raw secret and
	// the stored record. The secret is not recoverable afterwards.
	Generate(ctx context.Context, ownerID, name string) (string, *store.APIKey, error)

	// Validate resolves a raw secret to its owner, or ErrInvalidKey.
	Validate(ctx context.Context, raw string) (*Principal, error)

	// Revoke permanently disables a key. Idempotent; ownership-checked.
	Revoke(ctx context.Context, ownerID, keyID string) error

	// List returns the owner's key records (prefix, name, timestamps only).
	List(ctx context.Context, ownerID string) ([]*store.APIKey, error)
}

type service struct {
	store  *store.Store
	logger *zap.Logger

	tracer            trace.Tracer
	meter             metric.Meter
	validationCounter metric.Int64Counter

	// touchTimeout bounds the background lastUsed update.
	touchTimeout time.Duration
}

// NewService creates the credential manager.
func NewService(st *store.Store, logger *zap.Logger) (Service, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &service{
		store:        st,
		logger:       logger,
		tracer:       otel.Tracer(instrumentationName),
		meter:        otel.Meter(instrumentationName),
		touchTimeout: 5 * time.Second,
	}
	s.initMetrics()

	return s, nil
}

func (s *service) initMetrics() {
	var err error

	s.validationCounter, err = s.meter.Int64Counter(
		"continuityd.apikey.validations_total",
		metric.WithDescription("Total credential validations labeled by outcome (ok, rejected)"),
		metric.WithUnit("{validation}"),
	)
	if err != nil {
		s.logger.Warn("failed to create validation counter", zap.Error(err))
	}
}

// Generate creates a new key for the owner.
func (s *service) Generate(ctx context.Context, ownerID, name string) (string, *store.APIKey, error) {
	ctx, span := s.tracer.Start(ctx, "apikey.generate")
	defer span.End()
	span.SetAttributes(attribute.String("owner_id", ownerID))

	if ownerID == "" {
		return "", nil, errors.New("apikey: owner id is required")
	}
	if name == "" {
		return "", nil, errors.New("apikey: name is required")
	}

	raw, err := newSecret()
	if err != nil {
		span.RecordError(err)
		return "", nil, fmt.Errorf("apikey: generate secret: %w", err)
	}

	rec := &store.APIKey{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		KeyHash:   HashSecret(raw),
		KeyPrefix: raw[:displayPrefixLen],
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.InsertAPIKey(ctx, rec); err != nil {
		span.RecordError(err)
		return "", nil, err
	}

	s.logger.Info("generated api key",
		zap.String("key_id", rec.ID),
		zap.String("owner_id", ownerID),
		zap.String("prefix", rec.KeyPrefix),
	)

	return raw, rec, nil
}

// Validate resolves a raw secret to a principal.
//
// The shape check runs before any storage access, so garbage input never
// costs a query. On success the lastUsed timestamp is touched in the
// background; that update is best-effort and can never fail the caller.
func (s *service) Validate(ctx context.Context, raw string) (*Principal, error) {
	ctx, span := s.tracer.Start(ctx, "apikey.validate")
	defer span.End()

	if !WellFormed(raw) {
		s.countValidation(ctx, "rejected")
		return nil, ErrInvalidKey
	}

	rec, err := s.store.GetAPIKeyByHash(ctx, HashSecret(raw))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.countValidation(ctx, "rejected")
			return nil, ErrInvalidKey
		}
		span.RecordError(err)
		return nil, err
	}
	if rec.Revoked() {
		// Revoked and unknown are the same answer at this boundary.
		s.countValidation(ctx, "rejected")
		return nil, ErrInvalidKey
	}

	go s.touchLastUsed(rec.ID)

	s.countValidation(ctx, "ok")
	span.SetAttributes(attribute.String("owner_id", rec.OwnerID))
	return &Principal{OwnerID: rec.OwnerID, KeyID: rec.ID}, nil
}

// Revoke disables a key. A second revoke of the same key succeeds without
// effect; a key the caller does not own reports store.ErrNotFound.
func (s *service) Revoke(ctx context.Context, ownerID, keyID string) error {
	ctx, span := s.tracer.Start(ctx, "apikey.revoke")
	defer span.End()
	span.SetAttributes(
		attribute.String("owner_id", ownerID),
		attribute.String("key_id", keyID),
	)

	if err := s.store.RevokeAPIKey(ctx, ownerID, keyID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			span.RecordError(err)
		}
		return err
	}

	s.logger.Info("revoked api key",
		zap.String("key_id", keyID),
		zap.String("owner_id", ownerID),
	)
	return nil
}

// List returns the owner's key records.
func (s *service) List(ctx context.Context, ownerID string) ([]*store.APIKey, error) {
	ctx, span := s.tracer.Start(ctx, "apikey.list")
	defer span.End()
	span.SetAttributes(attribute.String("owner_id", ownerID))

	return s.store.ListAPIKeys(ctx, ownerID)
}

// touchLastUsed runs detached from the request. Losing the update under
// concurrency is fine; access control never depends on lastUsed.
func (s *service) touchLastUsed(keyID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.touchTimeout)
	defer cancel()

	if err := s.store.TouchAPIKey(ctx, keyID); err != nil {
		s.logger.Debug("last_used touch failed", zap.String("key_id", keyID), zap.Error(err))
	}
}

func (s *service) countValidation(ctx context.Context, outcome string) {
	if s.validationCounter != nil {
		s.validationCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("outcome", outcome),
		))
	}
}

// WellFormed reports whether raw has the issued-key shape: the sk_ prefix
// followed by exactly secretBodyLen alphanumeric characters.
func WellFormed(raw string) bool {
	if len(raw) != len(SecretPrefix)+secretBodyLen {
		return false
	}
	if raw[:len(SecretPrefix)] != SecretPrefix {
		return false
	}
	for _, c := range raw[len(SecretPrefix):] {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}

// HashSecret returns the hex SHA-256 digest of a raw secret. The digest is
// the only form a secret ever takes at rest.
func HashSecret(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// newSecret draws a fresh secret from crypto/rand.
func newSecret() (string, error) {
	buf := make([]byte, secretBodyLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	body := make([]byte, secretBodyLen)
	for i, b := range buf {
		body[i] = secretAlphabet[int(b)%len(secretAlphabet)]
	}
	return SecretPrefix + string(body), nil
}
