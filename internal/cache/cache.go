// Package cache provides the pipeline's key/value cache service. Lookups
// are single-flight per key: concurrent misses for the same key share one
// computation, so expensive directory calls never run twice for the same
// normalized domain or BvD ID.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Service wraps a Store with single-flight computation. Construct once per
// process and pass into the orchestrator; Close on shutdown.
type Service struct {
	store Store
	group singleflight.Group
}

// New creates a Service over the given backend.
func New(store Store) *Service {
	return &Service{store: store}
}

// GetOrCompute returns the cached value for key, or runs compute exactly
// once per in-flight key and caches its result for ttl. The returned bool
// reports whether the value came from cache. Backend failures degrade to a
// direct computation; they never fail the pipeline.
func (s *Service) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) ([]byte, error)) ([]byte, bool, error) {
	if val, ok := s.lookup(ctx, key); ok {
		return val, true, nil
	}

	type computed struct {
		value []byte
		hit   bool
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		// A concurrent winner may have populated the key while this call
		// waited on the flight group.
		if val, ok := s.lookup(ctx, key); ok {
			return computed{value: val, hit: true}, nil
		}

		val, err := compute(ctx)
		if err != nil {
			return nil, err
		}

		if setErr := s.store.Set(ctx, key, val, ttl); setErr != nil {
			zap.L().Warn("cache: set failed", zap.String("key", key), zap.Error(setErr))
		}
		return computed{value: val}, nil
	})
	if err != nil {
		return nil, false, err
	}

	c := v.(computed)
	return c.value, c.hit, nil
}

// Delete removes a key, forcing the next lookup to recompute.
func (s *Service) Delete(ctx context.Context, key string) error {
	return s.store.Delete(ctx, key)
}

// PurgeExpired removes dead entries from the backend.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	return s.store.PurgeExpired(ctx)
}

// Close releases the backend.
func (s *Service) Close() error {
	return s.store.Close()
}

func (s *Service) lookup(ctx context.Context, key string) ([]byte, bool) {
	val, ok, err := s.store.Get(ctx, key)
	if err != nil {
		zap.L().Warn("cache: get failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return val, ok
}

// GetOrComputeJSON is GetOrCompute for a typed value, (de)serialized as JSON.
func GetOrComputeJSON[T any](ctx context.Context, s *Service, key string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, bool, error) {
	var zero T

	raw, hit, err := s.GetOrCompute(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		val, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(val)
	})
	if err != nil {
		return zero, false, err
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		// A poisoned entry: drop it and recompute directly.
		zap.L().Warn("cache: corrupt entry", zap.String("key", key), zap.Error(err))
		_ = s.store.Delete(ctx, key)
		val, err := compute(ctx)
		if err != nil {
			return zero, false, err
		}
		return val, false, nil
	}
	return out, hit, nil
}
