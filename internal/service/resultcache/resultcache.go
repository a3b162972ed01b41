package resultcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"StockPulse/internal/calendar"
	domrepo "StockPulse/internal/domain/repository"
	"StockPulse/pkg/cache"
	applogger "StockPulse/pkg/logger"
)

// Service caches expensive computation results (predictions, backtest
// runs, universe snapshots) under parameter fingerprints. Concurrent
// requests for the same fingerprint share one computation.
type Service struct {
	store   cache.Store
	clock   calendar.Clock
	metrics domrepo.Metrics
	l       *applogger.Logger
	group   singleflight.Group
}

type envelope struct {
	Payload json.RawMessage `json:"payload"`
	SavedAt time.Time       `json:"saved_at"`
}

// New creates a result cache. A nil clock defaults to the system clock.
func New(store cache.Store, clock calendar.Clock, metrics domrepo.Metrics, l *applogger.Logger) *Service {
	if clock == nil {
		clock = calendar.RealClock()
	}
	return &Service{store: store, clock: clock, metrics: metrics, l: l}
}

// Fingerprint derives a stable cache key from a kind and its
// parameters. Params must marshal deterministically (structs, not maps).
func Fingerprint(kind string, params interface{}) string {
	raw, err := json.Marshal(params)
	if err != nil {
		raw = []byte(fmt.Sprintf("%+v", params))
	}
	sum := sha256.Sum256(append([]byte(kind+"|"), raw...))
	return kind + ":" + hex.EncodeToString(sum[:])
}

// GetOrCompute returns the cached result for (kind, params) when it is
// younger than ttl, otherwise runs compute once, caches its result and
// unmarshals it into dest. dest must be a pointer.
func (s *Service) GetOrCompute(
	ctx context.Context,
	kind string,
	params interface{},
	ttl time.Duration,
	dest interface{},
	compute func(ctx context.Context) (interface{}, error),
) error {
	key := Fingerprint(kind, params)

	if raw, ok := s.lookup(ctx, key, ttl); ok {
		s.metrics.RecordCacheLookup(kind, "hit")
		return json.Unmarshal(raw, dest)
	}
	s.metrics.RecordCacheLookup(kind, "miss")

	payload, err, _ := s.group.Do(key, func() (interface{}, error) {
		// a concurrent flight may have filled the cache while we queued
		if raw, ok := s.lookup(ctx, key, ttl); ok {
			return []byte(raw), nil
		}
		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal %s result: %w", kind, err)
		}
		s.save(ctx, key, raw, ttl)
		return raw, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(payload.([]byte), dest)
}

// Invalidate drops the cached result for (kind, params).
func (s *Service) Invalidate(ctx context.Context, kind string, params interface{}) error {
	return s.store.Delete(ctx, Fingerprint(kind, params))
}

func (s *Service) lookup(ctx context.Context, key string, ttl time.Duration) (json.RawMessage, bool) {
	raw, err := s.store.GetBytes(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.l.Warn("result cache read failed", applogger.String("key", key), applogger.Error(err))
		}
		return nil, false
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false
	}
	if s.clock.Now().Sub(env.SavedAt) > ttl {
		return nil, false
	}
	return env.Payload, true
}

func (s *Service) save(ctx context.Context, key string, payload json.RawMessage, ttl time.Duration) {
	raw, err := json.Marshal(envelope{Payload: payload, SavedAt: s.clock.Now()})
	if err != nil {
		return
	}
	if err := s.store.SetBytes(ctx, key, raw, ttl); err != nil {
		s.l.Warn("result cache write failed", applogger.String("key", key), applogger.Error(err))
	}
}
