// Package multi provides a multi-store wrapper that supports fallback
// patterns: combining several snapshot stores so that if one fails, the
// next is tried.
//
// # Consistency Model
//
// Writes go to ALL stores to keep replicas consistent; a write succeeds if
// at least one store accepts it, so the system stays available when some
// stores are temporarily down. For Delete, NotFound errors from individual
// stores are ignored since the key may not exist everywhere.
//
// Reads try stores in order and return the first successful result. With
// StrategyReadThrough, a hit from store N also populates stores 0..N-1.
package multi

import (
	"context"
	"errors"

	"github.com/rbaliyan/flatwire/snapshot"
)

// Strategy defines how the multi-store handles reads.
type Strategy int

const (
	// StrategyFallback reads from the first available store.
	// Best for: primary + backup scenarios.
	StrategyFallback Strategy = iota

	// StrategyReadThrough reads from stores in order, populating earlier
	// stores on a hit from a later one.
	// Best for: cache + backend scenarios where the cache store is first.
	StrategyReadThrough
)

// Store wraps multiple snapshot stores with configurable fallback behavior.
// The stores slice is immutable after construction; each underlying store
// provides its own concurrency protection.
type Store struct {
	stores   []snapshot.Store
	strategy Strategy
}

// Option configures the multi store.
type Option func(*Store)

// WithStrategy sets the read strategy.
func WithStrategy(strategy Strategy) Option {
	return func(s *Store) {
		s.strategy = strategy
	}
}

// NewStore creates a multi store over the given stores, tried in order.
func NewStore(stores []snapshot.Store, opts ...Option) *Store {
	s := &Store{
		stores:   stores,
		strategy: StrategyFallback,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compile-time interface checks
var (
	_ snapshot.Store         = (*Store)(nil)
	_ snapshot.HealthChecker = (*Store)(nil)
)

// Connect connects all underlying stores. At least one must succeed.
func (s *Store) Connect(ctx context.Context) error {
	var errs []error
	connected := 0
	for _, store := range s.stores {
		if err := store.Connect(ctx); err != nil {
			errs = append(errs, err)
			continue
		}
		connected++
	}
	if connected == 0 {
		return snapshot.WrapStoreError("connect", "multi", "", errors.Join(errs...))
	}
	return nil
}

// Close closes all underlying stores.
func (s *Store) Close(ctx context.Context) error {
	var errs []error
	for _, store := range s.stores {
		if err := store.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Load retrieves a snapshot from the first store that has it.
func (s *Store) Load(ctx context.Context, namespace, key string) (*snapshot.Snapshot, error) {
	var errs []error
	for i, store := range s.stores {
		snap, err := store.Load(ctx, namespace, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if s.strategy == StrategyReadThrough {
			// Populate earlier stores so the next read hits sooner.
			for _, earlier := range s.stores[:i] {
				_, _ = earlier.Save(ctx, namespace, key, snap, snapshot.WriteModeUpsert)
			}
		}
		return snap, nil
	}
	// All stores failed. Preserve NotFound if every store reported it.
	allNotFound := len(errs) > 0
	for _, err := range errs {
		if !snapshot.IsNotFound(err) {
			allNotFound = false
			break
		}
	}
	if allNotFound {
		return nil, &snapshot.KeyNotFoundError{Key: key, Namespace: namespace}
	}
	return nil, snapshot.WrapStoreError("load", "multi", key, errors.Join(errs...))
}

// Save writes to all stores. At least one must succeed; the first
// successful result is returned.
func (s *Store) Save(ctx context.Context, namespace, key string, snap *snapshot.Snapshot, mode snapshot.WriteMode) (*snapshot.Snapshot, error) {
	var stored *snapshot.Snapshot
	var errs []error
	for _, store := range s.stores {
		result, err := store.Save(ctx, namespace, key, snap, mode)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if stored == nil {
			stored = result
		}
	}
	if stored == nil {
		return nil, snapshot.WrapStoreError("save", "multi", key, errors.Join(errs...))
	}
	return stored, nil
}

// Delete removes the key from all stores. NotFound from individual stores
// is tolerated; ErrNotFound is returned only when no store had the key.
func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	var errs []error
	deleted := false
	for _, store := range s.stores {
		err := store.Delete(ctx, namespace, key)
		switch {
		case err == nil:
			deleted = true
		case snapshot.IsNotFound(err):
			// Key may not exist in all replicas.
		default:
			errs = append(errs, err)
		}
	}
	if deleted {
		return nil
	}
	if len(errs) > 0 {
		return snapshot.WrapStoreError("delete", "multi", key, errors.Join(errs...))
	}
	return &snapshot.KeyNotFoundError{Key: key, Namespace: namespace}
}

// List returns results from the first store that answers.
func (s *Store) List(ctx context.Context, namespace string, filter snapshot.Filter) (snapshot.Page, error) {
	var errs []error
	for _, store := range s.stores {
		page, err := store.List(ctx, namespace, filter)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return page, nil
	}
	return nil, snapshot.WrapStoreError("list", "multi", "", errors.Join(errs...))
}

// Health returns success if at least one store is healthy.
func (s *Store) Health(ctx context.Context) error {
	var errs []error
	for _, store := range s.stores {
		hc, ok := store.(snapshot.HealthChecker)
		if !ok {
			return nil // Store without health checks is assumed healthy
		}
		if err := hc.Health(ctx); err != nil {
			errs = append(errs, err)
			continue
		}
		return nil
	}
	return snapshot.WrapStoreError("health", "multi", "", errors.Join(errs...))
}
