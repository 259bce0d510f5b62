package snapshot

import (
	"context"
	"regexp"
	"strings"
)

// DefaultNamespace is the default namespace (empty string).
// Use this when you don't need namespace separation.
const DefaultNamespace = ""

// validNamespace matches valid namespace names: alphanumeric, underscore, dash.
// Empty namespace is allowed (represents default namespace).
// Non-empty namespaces must start with an alphanumeric character.
var validNamespace = regexp.MustCompile(`^([a-zA-Z0-9][a-zA-Z0-9_-]*)?$`)

// validKey matches valid key characters: alphanumeric, underscore, dash, dot, slash.
var validKey = regexp.MustCompile(`^[a-zA-Z0-9_.\-/]+$`)

// ValidateNamespace validates a namespace name.
// Empty namespaces are allowed (represents the default namespace).
// Returns ErrInvalidNamespace if the namespace contains invalid characters.
func ValidateNamespace(namespace string) error {
	if !validNamespace.MatchString(namespace) {
		return ErrInvalidNamespace
	}
	return nil
}

// ValidateKey validates a snapshot key.
// Keys must:
//   - Not be empty
//   - Contain only alphanumeric characters, underscores, dashes, dots, and slashes
//   - Not contain path traversal sequences (..)
//   - Not start or end with a slash
//
// Returns an InvalidKeyError if the key is invalid.
func ValidateKey(key string) error {
	if key == "" {
		return &InvalidKeyError{Key: key, Reason: "key cannot be empty"}
	}
	if strings.Contains(key, "..") {
		return &InvalidKeyError{Key: key, Reason: "key cannot contain path traversal (..)"}
	}
	if strings.HasPrefix(key, "/") || strings.HasSuffix(key, "/") {
		return &InvalidKeyError{Key: key, Reason: "key cannot start or end with slash"}
	}
	if !validKey.MatchString(key) {
		return &InvalidKeyError{Key: key, Reason: "key contains invalid characters"}
	}
	return nil
}

// Store defines the interface for snapshot storage backends.
//
// Implementations must be safe for concurrent use by multiple goroutines.
// The store is responsible for persistence and version increments. Snapshots
// are immutable artifacts; stores do not offer change notification.
//
// Implementations:
//   - memory.Store: testing and single-instance deployments
//   - sqlite.Store: embedded deployments
//   - postgres.Store, mongodb.Store: shared backends
//   - file.Store: human-readable snapshot files
//   - multi.Store: primary/fallback composition of the above
type Store interface {
	// Connect establishes connection to the storage backend.
	// Must be called before any other operations.
	Connect(ctx context.Context) error

	// Close releases resources and closes the connection.
	Close(ctx context.Context) error

	// Load retrieves a snapshot by namespace and key.
	// Returns ErrNotFound if the entry does not exist.
	Load(ctx context.Context, namespace, key string) (*Snapshot, error)

	// Save stores a snapshot under namespace and key, subject to the write
	// mode. The version is incremented on each write. Returns the stored
	// snapshot with updated metadata (version, timestamps).
	Save(ctx context.Context, namespace, key string, snap *Snapshot, mode WriteMode) (*Snapshot, error)

	// Delete removes a snapshot by namespace and key.
	// Returns ErrNotFound if the entry does not exist.
	Delete(ctx context.Context, namespace, key string) error

	// List returns a page of keys and snapshots matching the filter within
	// a namespace. Use Page.NextCursor() to paginate through results.
	List(ctx context.Context, namespace string, filter Filter) (Page, error)
}

// HealthChecker is an optional interface for stores that support health checks.
type HealthChecker interface {
	// Health performs a health check on the store.
	// Returns nil if healthy, or an error describing the issue.
	Health(ctx context.Context) error
}

// StatsProvider is an optional interface for stores that provide statistics.
type StatsProvider interface {
	// Stats returns store statistics.
	Stats(ctx context.Context) (*StoreStats, error)
}

// StoreStats contains storage statistics.
type StoreStats struct {
	TotalSnapshots       int64            `json:"total_snapshots"`
	SnapshotsByNamespace map[string]int64 `json:"snapshots_by_namespace"`
	PayloadBytes         int64            `json:"payload_bytes"`
}

// Filter defines criteria for listing snapshots.
// Use NewFilter() to create a FilterBuilder and construct filters.
//
// Filters support two mutually exclusive modes:
//   - Keys mode: retrieve specific keys by exact match
//   - Prefix mode: retrieve all keys matching a prefix
type Filter interface {
	// Keys returns specific keys to retrieve (mutually exclusive with Prefix).
	Keys() []string

	// Prefix returns the prefix to match (mutually exclusive with Keys).
	Prefix() string

	// Limit returns the maximum number of results (0 = no limit).
	Limit() int

	// Cursor returns the pagination cursor (entry ID) for continuing from
	// a previous result.
	Cursor() string
}

// Page represents a page of results from a List operation.
type Page interface {
	// Results returns the snapshots in this page as a map of key -> Snapshot.
	Results() map[string]*Snapshot

	// NextCursor returns the cursor for fetching the next page.
	NextCursor() string

	// Limit returns the actual limit used by the store. Clients should
	// check len(Results()) < Limit() to determine if more results exist.
	Limit() int
}

// page is the default Page implementation.
type page struct {
	results    map[string]*Snapshot
	nextCursor string
	limit      int
}

func (p *page) Results() map[string]*Snapshot { return p.results }
func (p *page) NextCursor() string            { return p.nextCursor }
func (p *page) Limit() int                    { return p.limit }

// NewPage creates a new Page with the given results and pagination info.
// This is used by Store implementations to create List results.
func NewPage(results map[string]*Snapshot, nextCursor string, limit int) Page {
	return &page{
		results:    results,
		nextCursor: nextCursor,
		limit:      limit,
	}
}

// FilterBuilder builds Filter instances using a fluent API.
type FilterBuilder struct {
	keys   []string
	prefix string
	limit  int
	cursor string
}

// NewFilter creates a new FilterBuilder.
func NewFilter() *FilterBuilder {
	return &FilterBuilder{}
}

// WithKeys sets specific keys to retrieve.
// Cannot be used with WithPrefix - calling this clears any prefix.
func (b *FilterBuilder) WithKeys(keys ...string) *FilterBuilder {
	b.keys = keys
	b.prefix = ""
	return b
}

// WithPrefix sets a prefix to match keys.
// Cannot be used with WithKeys - calling this clears any keys.
func (b *FilterBuilder) WithPrefix(prefix string) *FilterBuilder {
	b.prefix = prefix
	b.keys = nil
	return b
}

// WithLimit sets the maximum number of results.
func (b *FilterBuilder) WithLimit(limit int) *FilterBuilder {
	b.limit = limit
	return b
}

// WithCursor sets the pagination cursor for continuing from a previous result.
func (b *FilterBuilder) WithCursor(cursor string) *FilterBuilder {
	b.cursor = cursor
	return b
}

// Build creates the Filter.
func (b *FilterBuilder) Build() Filter {
	return &filter{
		keys:   b.keys,
		prefix: b.prefix,
		limit:  b.limit,
		cursor: b.cursor,
	}
}

// filter implements Filter.
type filter struct {
	keys   []string
	prefix string
	limit  int
	cursor string
}

func (f *filter) Keys() []string { return f.keys }
func (f *filter) Prefix() string { return f.prefix }
func (f *filter) Limit() int     { return f.limit }
func (f *filter) Cursor() string { return f.cursor }
