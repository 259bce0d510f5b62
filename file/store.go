// Package file provides a snapshot store backed by a directory of
// human-readable files, one per key. The file format is chosen by codec
// name (json, yaml or toml), making stored graphs reviewable and diffable.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbaliyan/flatwire/codec"
	"github.com/rbaliyan/flatwire/snapshot"
)

// defaultNamespaceDir is the directory used for the default (empty) namespace.
const defaultNamespaceDir = "_default"

// fileEntry is the on-disk envelope for one stored snapshot. Payload holds
// the wire-encoded serialized graph as text.
type fileEntry struct {
	Codec     string    `json:"codec" yaml:"codec" toml:"codec"`
	Version   int64     `json:"version" yaml:"version" toml:"version"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at" toml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at" toml:"updated_at"`
	Payload   string    `json:"payload" yaml:"payload" toml:"payload"`
}

func (e *fileEntry) toSnapshot(key string) *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Payload:   []byte(e.Payload),
		Codec:     e.Codec,
		Version:   e.Version,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
		EntryID:   key,
	}
}

// Store is a directory-backed snapshot store.
type Store struct {
	dir    string
	format string
	ext    string
	mu     sync.Mutex
	closed atomic.Bool
}

// Option configures the file store.
type Option func(*Store)

// WithFormat sets the file format by codec name ("json", "yaml" or "toml").
// Default is "json". Note that TOML cannot represent graphs containing nil
// entries; see the toml codec documentation.
func WithFormat(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.format = name
		}
	}
}

// NewStore creates a file store rooted at dir. The directory is created on
// Connect if it does not exist.
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{
		dir:    dir,
		format: "json",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ext = "." + s.format
	if s.format == "yaml" {
		s.ext = ".yml"
	}
	return s
}

// Compile-time interface checks.
var (
	_ snapshot.Store         = (*Store)(nil)
	_ snapshot.HealthChecker = (*Store)(nil)
	_ snapshot.StatsProvider = (*Store)(nil)
)

// Connect validates the format and creates the root directory.
func (s *Store) Connect(ctx context.Context) error {
	if s.closed.Load() {
		return snapshot.ErrStoreClosed
	}
	if codec.Get(s.format) == nil {
		return snapshot.WrapStoreError("connect", "file", "", fmt.Errorf("unknown format %q", s.format))
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return snapshot.WrapStoreError("connect", "file", "", err)
	}
	return nil
}

// Close marks the store closed.
func (s *Store) Close(ctx context.Context) error {
	s.closed.Swap(true)
	return nil
}

func namespaceDir(namespace string) string {
	if namespace == snapshot.DefaultNamespace {
		return defaultNamespaceDir
	}
	return namespace
}

func (s *Store) pathFor(namespace, key string) string {
	return filepath.Join(s.dir, namespaceDir(namespace), filepath.FromSlash(key)+s.ext)
}

func (s *Store) readEntry(namespace, key string) (*fileEntry, error) {
	data, err := os.ReadFile(s.pathFor(namespace, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &snapshot.KeyNotFoundError{Key: key, Namespace: namespace}
	}
	if err != nil {
		return nil, snapshot.WrapStoreError("load", "file", key, err)
	}

	var e fileEntry
	if err := codec.Get(s.format).Decode(data, &e); err != nil {
		return nil, snapshot.WrapStoreError("load", "file", key, err)
	}
	return &e, nil
}

// writeEntry writes the envelope atomically via a temp file and rename.
func (s *Store) writeEntry(namespace, key string, e *fileEntry) error {
	data, err := codec.Get(s.format).Encode(e)
	if err != nil {
		return snapshot.WrapStoreError("save", "file", key, err)
	}

	path := s.pathFor(namespace, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return snapshot.WrapStoreError("save", "file", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return snapshot.WrapStoreError("save", "file", key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return snapshot.WrapStoreError("save", "file", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return snapshot.WrapStoreError("save", "file", key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return snapshot.WrapStoreError("save", "file", key, err)
	}
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
	if err := snapshot.ValidateKey(key); err != nil {
		return nil, err
	}

	e, err := s.readEntry(namespace, key)
	if err != nil {
		return nil, err
	}
	return e.toSnapshot(key), nil
}

// Save stores a snapshot subject to the write mode.
// Returns the stored snapshot with updated metadata (version, timestamps).
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
		return nil, snapshot.WrapStoreError("save", "file", key, fmt.Errorf("snapshot is nil"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	existing, err := s.readEntry(namespace, key)
	exists := err == nil
	if err != nil && !snapshot.IsNotFound(err) {
		return nil, err
	}

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

	e := &fileEntry{
		Codec:     snap.Codec,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		Payload:   string(snap.Payload),
	}
	if exists {
		e.Version = existing.Version + 1
		e.CreatedAt = existing.CreatedAt
	}

	if err := s.writeEntry(namespace, key, e); err != nil {
		return nil, err
	}
	return e.toSnapshot(key), nil
}

// Delete removes a snapshot by namespace and key.
func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	if s.closed.Load() {
		return snapshot.ErrStoreClosed
	}
	if err := snapshot.ValidateNamespace(namespace); err != nil {
		return err
	}
	if err := snapshot.ValidateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.pathFor(namespace, key))
	if errors.Is(err, fs.ErrNotExist) {
		return &snapshot.KeyNotFoundError{Key: key, Namespace: namespace}
	}
	if err != nil {
		return snapshot.WrapStoreError("delete", "file", key, err)
	}
	return nil
}

// List returns a page of snapshots matching the filter within a namespace.
// Keys are ordered lexicographically; the cursor is the last returned key.
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

	keys, err := s.listKeys(namespace)
	if err != nil {
		return nil, err
	}

	matched := make([]string, 0, len(keys))
	for _, k := range keys {
		if len(filter.Keys()) > 0 {
			if !slices.Contains(filter.Keys(), k) {
				continue
			}
		} else if p := filter.Prefix(); p != "" && !strings.HasPrefix(k, p) {
			continue
		}
		if c := filter.Cursor(); c != "" && k <= c {
			continue
		}
		matched = append(matched, k)
	}
	slices.Sort(matched)

	limit := filter.Limit()
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	results := make(map[string]*snapshot.Snapshot, len(matched))
	nextCursor := ""
	for _, k := range matched {
		e, err := s.readEntry(namespace, k)
		if err != nil {
			if snapshot.IsNotFound(err) {
				continue // Deleted between listing and reading
			}
			return nil, err
		}
		results[k] = e.toSnapshot(k)
		nextCursor = k
	}
	return snapshot.NewPage(results, nextCursor, limit), nil
}

func (s *Store) listKeys(namespace string) ([]string, error) {
	root := filepath.Join(s.dir, namespaceDir(namespace))
	var keys []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, s.ext) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(strings.TrimSuffix(rel, s.ext)))
		return nil
	})
	if err != nil {
		return nil, snapshot.WrapStoreError("list", "file", "", err)
	}
	return keys, nil
}

// Health reports whether the root directory is accessible.
func (s *Store) Health(ctx context.Context) error {
	if s.closed.Load() {
		return snapshot.ErrStoreClosed
	}
	info, err := os.Stat(s.dir)
	if err != nil {
		return snapshot.WrapStoreError("health", "file", "", err)
	}
	if !info.IsDir() {
		return snapshot.WrapStoreError("health", "file", "", fmt.Errorf("%s is not a directory", s.dir))
	}
	return nil
}

// Stats returns store statistics.
func (s *Store) Stats(ctx context.Context) (*snapshot.StoreStats, error) {
	if s.closed.Load() {
		return nil, snapshot.ErrStoreClosed
	}

	stats := &snapshot.StoreStats{
		SnapshotsByNamespace: make(map[string]int64),
	}

	dirs, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return stats, nil
	}
	if err != nil {
		return nil, snapshot.WrapStoreError("stats", "file", "", err)
	}

	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		ns := d.Name()
		if ns == defaultNamespaceDir {
			ns = snapshot.DefaultNamespace
		}
		keys, err := s.listKeys(ns)
		if err != nil {
			return nil, err
		}
		stats.SnapshotsByNamespace[ns] = int64(len(keys))
		stats.TotalSnapshots += int64(len(keys))
		for _, k := range keys {
			if info, err := os.Stat(s.pathFor(ns, k)); err == nil {
				stats.PayloadBytes += info.Size()
			}
		}
	}
	return stats, nil
}
