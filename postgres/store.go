// Package postgres provides a PostgreSQL-backed snapshot store using lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lib/pq"

	"github.com/rbaliyan/flatwire/snapshot"
)

// validIdentifier matches valid PostgreSQL identifiers.
var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Store is a PostgreSQL snapshot store implementation.
// The store does not manage the database connection lifecycle - the
// integrating application is responsible for creating and closing the
// connection.
type Store struct {
	db     *sql.DB
	closed atomic.Bool
	cfg    Config
}

// Config holds PostgreSQL store configuration.
type Config struct {
	// Table is the table name for snapshot entries.
	Table string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Table: "snapshots",
	}
}

// Option configures the PostgreSQL store.
type Option func(*Store)

// WithTable sets the table name.
func WithTable(name string) Option {
	return func(s *Store) {
		s.cfg.Table = name
	}
}

// NewStore creates a new PostgreSQL store with the provided database
// connection. The db must be connected and ready to use; the caller is
// responsible for closing it when done.
func NewStore(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:  db,
		cfg: DefaultConfig(),
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
	_ snapshot.StatsProvider = (*Store)(nil)
)

// Connect validates configuration and creates the schema.
func (s *Store) Connect(ctx context.Context) error {
	if s.db == nil {
		return snapshot.WrapStoreError("connect", "postgres", "", fmt.Errorf("db is nil"))
	}
	if !validIdentifier.MatchString(s.cfg.Table) {
		return snapshot.WrapStoreError("connect", "postgres", "", fmt.Errorf("invalid table name: %q", s.cfg.Table))
	}

	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			key TEXT NOT NULL,
			namespace TEXT NOT NULL,
			payload BYTEA NOT NULL,
			codec TEXT NOT NULL DEFAULT 'json',
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE(namespace, key)
		)
	`, s.cfg.Table)
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return snapshot.WrapStoreError("create_schema", "postgres", "", err)
	}

	index := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_namespace ON %s(namespace)`, s.cfg.Table, s.cfg.Table)
	if _, err := s.db.ExecContext(ctx, index); err != nil {
		return snapshot.WrapStoreError("create_schema", "postgres", "", err)
	}
	return nil
}

// Close marks the store closed. It does NOT close the database connection -
// that is the caller's responsibility.
func (s *Store) Close(ctx context.Context) error {
	s.closed.Swap(true)
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

	query := fmt.Sprintf(`
		SELECT id, payload, codec, version, created_at, updated_at
		FROM %s WHERE namespace = $1 AND key = $2
	`, s.cfg.Table)

	var (
		id                   int64
		payload              []byte
		codecName            string
		version              int64
		createdAt, updatedAt time.Time
	)
	err := s.db.QueryRowContext(ctx, query, namespace, key).Scan(
		&id, &payload, &codecName, &version, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, &snapshot.KeyNotFoundError{Key: key, Namespace: namespace}
	}
	if err != nil {
		return nil, snapshot.WrapStoreError("load", "postgres", key, err)
	}

	return &snapshot.Snapshot{
		Payload:   payload,
		Codec:     codecName,
		Version:   version,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		EntryID:   fmt.Sprintf("%d", id),
	}, nil
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
		return nil, snapshot.WrapStoreError("save", "postgres", key, fmt.Errorf("snapshot is nil"))
	}

	returning := "RETURNING id, version, created_at, updated_at"

	var (
		id                   int64
		version              int64
		createdAt, updatedAt time.Time
	)

	switch mode {
	case snapshot.WriteModeCreate:
		query := fmt.Sprintf(`
			INSERT INTO %s (key, namespace, payload, codec)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (namespace, key) DO NOTHING
			%s
		`, s.cfg.Table, returning)

		err := s.db.QueryRowContext(ctx, query, key, namespace, snap.Payload, snap.Codec).
			Scan(&id, &version, &createdAt, &updatedAt)
		if err == sql.ErrNoRows {
			return nil, &snapshot.KeyExistsError{Key: key, Namespace: namespace}
		}
		if err != nil {
			return nil, snapshot.WrapStoreError("save", "postgres", key, err)
		}

	case snapshot.WriteModeUpdate:
		query := fmt.Sprintf(`
			UPDATE %s SET
				payload = $1,
				codec = $2,
				version = version + 1,
				updated_at = now()
			WHERE namespace = $3 AND key = $4
			%s
		`, s.cfg.Table, returning)

		err := s.db.QueryRowContext(ctx, query, snap.Payload, snap.Codec, namespace, key).
			Scan(&id, &version, &createdAt, &updatedAt)
		if err == sql.ErrNoRows {
			return nil, &snapshot.KeyNotFoundError{Key: key, Namespace: namespace}
		}
		if err != nil {
			return nil, snapshot.WrapStoreError("save", "postgres", key, err)
		}

	default:
		query := fmt.Sprintf(`
			INSERT INTO %s (key, namespace, payload, codec)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (namespace, key) DO UPDATE SET
				payload = EXCLUDED.payload,
				codec = EXCLUDED.codec,
				version = %s.version + 1,
				updated_at = now()
			%s
		`, s.cfg.Table, s.cfg.Table, returning)

		err := s.db.QueryRowContext(ctx, query, key, namespace, snap.Payload, snap.Codec).
			Scan(&id, &version, &createdAt, &updatedAt)
		if err != nil {
			return nil, snapshot.WrapStoreError("save", "postgres", key, err)
		}
	}

	stored := snap.Clone()
	stored.Version = version
	stored.CreatedAt = createdAt
	stored.UpdatedAt = updatedAt
	stored.EntryID = fmt.Sprintf("%d", id)
	return stored, nil
}

// Delete removes a snapshot by namespace and key.
func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	if s.closed.Load() {
		return snapshot.ErrStoreClosed
	}
	if err := snapshot.ValidateNamespace(namespace); err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE namespace = $1 AND key = $2`, s.cfg.Table)
	result, err := s.db.ExecContext(ctx, query, namespace, key)
	if err != nil {
		return snapshot.WrapStoreError("delete", "postgres", key, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return &snapshot.KeyNotFoundError{Key: key, Namespace: namespace}
	}
	return nil
}

// List returns a page of snapshots matching the filter within a namespace.
// Results are ordered by storage ID, which is also the pagination cursor.
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

	query := fmt.Sprintf(`
		SELECT id, key, payload, codec, version, created_at, updated_at
		FROM %s WHERE namespace = $1
	`, s.cfg.Table)
	args := []any{namespace}
	arg := 2

	if keys := filter.Keys(); len(keys) > 0 {
		query += fmt.Sprintf(" AND key = ANY($%d)", arg)
		args = append(args, pq.Array(keys))
		arg++
	} else if p := filter.Prefix(); p != "" {
		query += fmt.Sprintf(" AND key LIKE $%d", arg)
		args = append(args, escapeLike(p)+"%")
		arg++
	}

	if c := filter.Cursor(); c != "" {
		query += fmt.Sprintf(" AND id > $%d", arg)
		args = append(args, c)
		arg++
	}

	query += " ORDER BY id"
	if limit := filter.Limit(); limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", arg)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, snapshot.WrapStoreError("list", "postgres", "", err)
	}
	defer rows.Close()

	results := make(map[string]*snapshot.Snapshot)
	nextCursor := ""
	for rows.Next() {
		var (
			id                   int64
			key, codecName       string
			payload              []byte
			version              int64
			createdAt, updatedAt time.Time
		)
		if err := rows.Scan(&id, &key, &payload, &codecName, &version, &createdAt, &updatedAt); err != nil {
			return nil, snapshot.WrapStoreError("list", "postgres", "", err)
		}
		results[key] = &snapshot.Snapshot{
			Payload:   payload,
			Codec:     codecName,
			Version:   version,
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
			EntryID:   fmt.Sprintf("%d", id),
		}
		nextCursor = fmt.Sprintf("%d", id)
	}
	if err := rows.Err(); err != nil {
		return nil, snapshot.WrapStoreError("list", "postgres", "", err)
	}

	return snapshot.NewPage(results, nextCursor, filter.Limit()), nil
}

// Health pings the database.
func (s *Store) Health(ctx context.Context) error {
	if s.closed.Load() {
		return snapshot.ErrStoreClosed
	}
	return s.db.PingContext(ctx)
}

// Stats returns store statistics.
func (s *Store) Stats(ctx context.Context) (*snapshot.StoreStats, error) {
	if s.closed.Load() {
		return nil, snapshot.ErrStoreClosed
	}

	stats := &snapshot.StoreStats{
		SnapshotsByNamespace: make(map[string]int64),
	}

	query := fmt.Sprintf(`SELECT namespace, COUNT(*), COALESCE(SUM(LENGTH(payload)), 0) FROM %s GROUP BY namespace`, s.cfg.Table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, snapshot.WrapStoreError("stats", "postgres", "", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ns string
		var count, bytes int64
		if err := rows.Scan(&ns, &count, &bytes); err != nil {
			return nil, snapshot.WrapStoreError("stats", "postgres", "", err)
		}
		stats.SnapshotsByNamespace[ns] = count
		stats.TotalSnapshots += count
		stats.PayloadBytes += bytes
	}
	if err := rows.Err(); err != nil {
		return nil, snapshot.WrapStoreError("stats", "postgres", "", err)
	}
	return stats, nil
}

// escapeLike escapes LIKE wildcards in a prefix.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
