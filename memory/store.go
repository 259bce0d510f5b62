// Package memory provides an in-memory snapshot store.
// Suitable for testing and single-instance deployments.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbaliyan/flatwire/snapshot"
)

// entry is the internal storage representation.
type entry struct {
	id        string // Unique ID for pagination
	key       string
	namespace string
	payload   []byte
	codec     string
	version   int64
	createdAt time.Time
	updatedAt time.Time
}

func (e *entry) toSnapshot() *snapshot.Snapshot {
	payload := make([]byte, len(e.payload))
	copy(payload, e.payload)
	return &snapshot.Snapshot{
		Payload:   payload,
		Codec:     e.codec,
		Version:   e.version,
		CreatedAt: e.createdAt,
		UpdatedAt: e.updatedAt,
		EntryID:   e.id,
	}
}

// Store is an in-memory snapshot store implementation.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry // key format: "namespace:key"
	nextID  int64             // Auto-increment ID for pagination
	closed  atomic.Bool
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
	}
}

// Compile-time interface checks
var (
	_ snapshot.Store         = (*Store)(nil)
	_ snapshot.HealthChecker = (*Store)(nil)
	_ snapshot.StatsProvider = (*Store)(nil)
)

func storageKey(namespace, key string) string {
	return namespace + ":" + key
}

// Connect is a no-op for the memory store.
func (s *Store) Connect(ctx context.Context) error {
	if s.closed.Load() {
		return snapshot.ErrStoreClosed
	}
	return nil
}

// Close releases all entries.
func (s *Store) Close(ctx context.Context) error {
	if s.closed.Swap(true) {
		return nil // Already closed
	}
	s.mu.Lock()
	s.entries = make(map[string]*entry)
	s.mu.Unlock()
	return nil
}

// Load retrieves a snapshot by namespace and key.
func (s *Store) Load(ctx context.Context, namespace, key string) (*snapshot.Snapshot, error) {
	if s.closed.Load() {
		return nil, snapshot.ErrStoreClosed
	}
	if err := snapshot.ValidateNamespace(namespace); err != nil {
		return nil, err
	}

	s.mu.RLock()
	e, ok := s.entries[storageKey(namespace, key)]
	s.mu.RUnlock()

	if !ok {
		return nil, &snapshot.KeyNotFoundError{Key: key, Namespace: namespace}
	}
	return e.toSnapshot(), nil
}

// Save stores a snapshot, incrementing its version.
func (s *Store) Save(ctx context.Context, namespace, key string, snap *snapshot.Snapshot, mode snapshot.WriteMode) (*snapshot.Snapshot, error) {
	if s.closed.Load() {
		return nil, snapshot.ErrStoreClosed
	}
	if err := snapshot.ValidateNamespace(namespace); err != nil {
		return nil, err
	}
	if err := snapshot.ValidateKey(key); err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, snapshot.WrapStoreError("save", "memory", key, fmt.Errorf("snapshot is nil"))
	}

	now := time.Now().UTC()
	payload := make([]byte, len(snap.Payload))
	copy(payload, snap.Payload)

	s.mu.Lock()
	defer s.mu.Unlock()

	sk := storageKey(namespace, key)
	existing, exists := s.entries[sk]

	switch mode {
	case snapshot.WriteModeCreate:
		if exists {
			return nil, &snapshot.KeyExistsError{Key: key, Namespace: namespace}
		}
	case snapshot.WriteModeUpdate:
		if !exists {
			return nil, &snapshot.KeyNotFoundError{Key: key, Namespace: namespace}
		}
	}

	if exists {
		existing.payload = payload
		existing.codec = snap.Codec
		existing.version++
		existing.updatedAt = now
		return existing.toSnapshot(), nil
	}

	s.nextID++
	e := &entry{
		id:        strconv.FormatInt(s.nextID, 10),
		key:       key,
		namespace: namespace,
		payload:   payload,
		codec:     snap.Codec,
		version:   1,
		createdAt: now,
		updatedAt: now,
	}
	s.entries[sk] = e
	return e.toSnapshot(), nil
}

// Delete removes a snapshot by namespace and key.
func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	if s.closed.Load() {
		return snapshot.ErrStoreClosed
	}
	if err := snapshot.ValidateNamespace(namespace); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sk := storageKey(namespace, key)
	if _, ok := s.entries[sk]; !ok {
		return &snapshot.KeyNotFoundError{Key: key, Namespace: namespace}
	}
	delete(s.entries, sk)
	return nil
}

// List returns a page of snapshots matching the filter within a namespace.
// Results are ordered by entry ID, which is also the pagination cursor.
func (s *Store) List(ctx context.Context, namespace string, filter snapshot.Filter) (snapshot.Page, error) {
	if s.closed.Load() {
		return nil, snapshot.ErrStoreClosed
	}
	if err := snapshot.ValidateNamespace(namespace); err != nil {
		return nil, err
	}
	if filter == nil {
		filter = snapshot.NewFilter().Build()
	}

	var cursor int64
	if c := filter.Cursor(); c != "" {
		var err error
		cursor, err = strconv.ParseInt(c, 10, 64)
		if err != nil {
			return nil, snapshot.WrapStoreError("list", "memory", "", fmt.Errorf("invalid cursor %q", c))
		}
	}

	s.mu.RLock()
	matched := make([]*entry, 0)
	for _, e := range s.entries {
		if e.namespace != namespace {
			continue
		}
		if len(filter.Keys()) > 0 {
			if !slices.Contains(filter.Keys(), e.key) {
				continue
			}
		} else if p := filter.Prefix(); p != "" && !strings.HasPrefix(e.key, p) {
			continue
		}
		id, _ := strconv.ParseInt(e.id, 10, 64)
		if id <= cursor {
			continue
		}
		matched = append(matched, e)
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b *entry) int {
		ai, _ := strconv.ParseInt(a.id, 10, 64)
		bi, _ := strconv.ParseInt(b.id, 10, 64)
		return int(ai - bi)
	})

	limit := filter.Limit()
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	results := make(map[string]*snapshot.Snapshot, len(matched))
	nextCursor := ""
	for _, e := range matched {
		results[e.key] = e.toSnapshot()
		nextCursor = e.id
	}
	return snapshot.NewPage(results, nextCursor, limit), nil
}

// Health reports whether the store is usable.
func (s *Store) Health(ctx context.Context) error {
	if s.closed.Load() {
		return snapshot.ErrStoreClosed
	}
	return nil
}

// Stats returns store statistics.
func (s *Store) Stats(ctx context.Context) (*snapshot.StoreStats, error) {
	if s.closed.Load() {
		return nil, snapshot.ErrStoreClosed
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &snapshot.StoreStats{
		TotalSnapshots:       int64(len(s.entries)),
		SnapshotsByNamespace: make(map[string]int64),
	}
	for _, e := range s.entries {
		stats.SnapshotsByNamespace[e.namespace]++
		stats.PayloadBytes += int64(len(e.payload))
	}
	return stats, nil
}
