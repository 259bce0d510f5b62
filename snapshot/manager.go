package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rbaliyan/flatwire"
)

// manager status values.
const (
	statusCreated int32 = iota
	statusConnected
	statusClosed
)

// DefaultCacheSize is the default number of decoded graphs kept by a
// Manager's LRU cache.
const DefaultCacheSize = 128

// CacheStats contains decode-cache statistics.
type CacheStats struct {
	Hits   int64 // Number of cache hits
	Misses int64 // Number of cache misses
	Size   int64 // Number of cached graphs
}

// Manager couples a graph codec with a snapshot store and an LRU cache of
// decoded graphs.
//
// Cache entries are keyed by (namespace, key, version), so a hit never
// serves stale data: Fetch always asks the store for the current snapshot
// metadata and only skips the decode step. Decoded graphs are shared between
// callers; treat fetched graphs as read-only or copy before mutating.
type Manager struct {
	status atomic.Int32
	store  Store
	codec  *flatwire.Codec
	cache  *lru.Cache[string, any]
	logger *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// ManagerOption configures a Manager during construction.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	codec     *flatwire.Codec
	cacheSize int
	logger    *slog.Logger
}

// WithCodec sets the graph codec used to encode and decode snapshots.
func WithCodec(c *flatwire.Codec) ManagerOption {
	return func(o *managerOptions) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithCacheSize sets the decode-cache capacity.
func WithCacheSize(size int) ManagerOption {
	return func(o *managerOptions) {
		if size > 0 {
			o.cacheSize = size
		}
	}
}

// WithLogger sets the logger for the manager.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(o *managerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewManager creates a Manager over the given store.
func NewManager(store Store, opts ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("snapshot: NewManager store is nil")
	}
	o := managerOptions{
		codec:     flatwire.Default(),
		cacheSize: DefaultCacheSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	cache, err := lru.New[string, any](o.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("snapshot: decode cache: %w", err)
	}

	return &Manager{
		store:  store,
		codec:  o.codec,
		cache:  cache,
		logger: o.logger,
	}, nil
}

// Store returns the underlying store, for operations the manager does not
// wrap (conditional writes, listing).
func (m *Manager) Store() Store { return m.store }

// Connect establishes the store connection.
func (m *Manager) Connect(ctx context.Context) error {
	if m.status.Load() == statusClosed {
		return ErrManagerClosed
	}
	if err := m.store.Connect(ctx); err != nil {
		return err
	}
	m.status.Store(statusConnected)
	return nil
}

// Close releases the store connection and drops all cached graphs.
func (m *Manager) Close(ctx context.Context) error {
	if m.status.Swap(statusClosed) == statusClosed {
		return nil
	}
	m.cache.Purge()
	return m.store.Close(ctx)
}

// Save encodes root and stores it under namespace and key, returning the
// stored snapshot with its new version.
func (m *Manager) Save(ctx context.Context, namespace, key string, root any) (*Snapshot, error) {
	if m.status.Load() == statusClosed {
		return nil, ErrManagerClosed
	}
	snap, err := New(m.codec, root)
	if err != nil {
		return nil, err
	}
	stored, err := m.store.Save(ctx, namespace, key, snap, WriteModeUpsert)
	if err != nil {
		return nil, err
	}
	m.logger.DebugContext(ctx, "snapshot saved",
		"namespace", namespace, "key", key, "version", stored.Version, "bytes", len(stored.Payload))
	return stored, nil
}

// Fetch loads the current snapshot for namespace and key and returns its
// decoded graph, serving the decode from cache when the stored version has
// been seen before.
func (m *Manager) Fetch(ctx context.Context, namespace, key string) (any, error) {
	if m.status.Load() == statusClosed {
		return nil, ErrManagerClosed
	}
	snap, err := m.store.Load(ctx, namespace, key)
	if err != nil {
		return nil, err
	}

	ck := cacheKey(namespace, key, snap.Version)
	if v, ok := m.cache.Get(ck); ok {
		m.hits.Add(1)
		return v, nil
	}
	m.misses.Add(1)

	decoded, err := snap.Decode(m.codec)
	if err != nil {
		return nil, err
	}
	m.cache.Add(ck, decoded)
	return decoded, nil
}

// Delete removes the snapshot under namespace and key.
func (m *Manager) Delete(ctx context.Context, namespace, key string) error {
	if m.status.Load() == statusClosed {
		return ErrManagerClosed
	}
	return m.store.Delete(ctx, namespace, key)
}

// Purge drops all cached decoded graphs.
func (m *Manager) Purge() {
	m.cache.Purge()
}

// Health checks the underlying store when it supports health checks.
func (m *Manager) Health(ctx context.Context) error {
	if m.status.Load() == statusClosed {
		return ErrManagerClosed
	}
	if hc, ok := m.store.(HealthChecker); ok {
		return hc.Health(ctx)
	}
	return nil
}

// CacheStats returns decode-cache statistics for observability.
func (m *Manager) CacheStats() CacheStats {
	return CacheStats{
		Hits:   m.hits.Load(),
		Misses: m.misses.Load(),
		Size:   int64(m.cache.Len()),
	}
}

func cacheKey(namespace, key string, version int64) string {
	return fmt.Sprintf("%s:%s@%d", namespace, key, version)
}
