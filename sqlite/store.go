// Package sqlite provides a SQLite-backed snapshot store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/rbaliyan/flatwire/snapshot"
)

// validIdentifier matches valid SQLite identifiers (alphanumeric and underscore, not starting with digit).
var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// sqliteTimestampFormat is the format used by SQLite's datetime() function.
const sqliteTimestampFormat = "2006-01-02 15:04:05"

// Store is a SQLite snapshot store implementation.
// The store does not manage the database connection lifecycle - the
// integrating application is responsible for creating and closing the
// connection.
type Store struct {
	db     *sql.DB
	closed atomic.Bool
	cfg    Config
}

// Config holds SQLite store configuration.
type Config struct {
	// Table is the table name for snapshot entries.
	Table string

	// EnableWAL enables WAL journal mode for better concurrent read performance.
	EnableWAL bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Table:     "snapshots",
		EnableWAL: true,
	}
}

// Option configures the SQLite store.
type Option func(*Store)

// WithTable sets the table name.
func WithTable(name string) Option {
	return func(s *Store) {
		s.cfg.Table = name
	}
}

// WithWAL enables or disables WAL journal mode.
func WithWAL(enable bool) Option {
	return func(s *Store) {
		s.cfg.EnableWAL = enable
	}
}

// NewStore creates a new SQLite store with the provided database connection.
// The db must be connected and ready to use; the caller is responsible for
// closing it when done.
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

// Connect initializes the store (enables WAL mode and creates schema).
// The database connection must already be established.
func (s *Store) Connect(ctx context.Context) error {
	if s.db == nil {
		return snapshot.WrapStoreError("connect", "sqlite", "", fmt.Errorf("db is nil"))
	}

	// Validate table name to prevent SQL injection
	if !validIdentifier.MatchString(s.cfg.Table) {
		return snapshot.WrapStoreError("connect", "sqlite", "", fmt.Errorf("invalid table name: %q", s.cfg.Table))
	}

	if s.cfg.EnableWAL {
		if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			return snapshot.WrapStoreError("connect", "sqlite", "", err)
		}
	}

	if err := s.createSchema(ctx); err != nil {
		return snapshot.WrapStoreError("create_schema", "sqlite", "", err)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			key TEXT NOT NULL,
			namespace TEXT NOT NULL,
			payload BLOB NOT NULL,
			codec TEXT NOT NULL DEFAULT 'json',
			version INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now')),
			UNIQUE(namespace, key)
		)
	`, s.cfg.Table)

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	indexes := []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_namespace ON %s(namespace)`, s.cfg.Table, s.cfg.Table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_namespace_key ON %s(namespace, key)`, s.cfg.Table, s.cfg.Table),
	}
	for _, idx := range indexes {
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			return err
		}
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
		FROM %s WHERE namespace = ? AND key = ?
	`, s.cfg.Table)

	var (
		id                         int64
		payload                    []byte
		codecName                  string
		version                    int64
		createdAtStr, updatedAtStr string
	)

	err := s.db.QueryRowContext(ctx, query, namespace, key).Scan(
		&id, &payload, &codecName, &version, &createdAtStr, &updatedAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, &snapshot.KeyNotFoundError{Key: key, Namespace: namespace}
	}
	if err != nil {
		return nil, snapshot.WrapStoreError("load", "sqlite", key, err)
	}

	createdAt, _ := time.Parse(sqliteTimestampFormat, createdAtStr)
	updatedAt, _ := time.Parse(sqliteTimestampFormat, updatedAtStr)

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
		return nil, snapshot.WrapStoreError("save", "sqlite", key, fmt.Errorf("snapshot is nil"))
	}

	switch mode {
	case snapshot.WriteModeCreate:
		query := fmt.Sprintf(`
			INSERT OR IGNORE INTO %s (key, namespace, payload, codec, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, 1, datetime('now'), datetime('now'))
		`, s.cfg.Table)

		result, err := s.db.ExecContext(ctx, query, key, namespace, snap.Payload, snap.Codec)
		if err != nil {
			return nil, snapshot.WrapStoreError("save", "sqlite", key, err)
		}
		rowsAffected, _ := result.RowsAffected()
		if rowsAffected == 0 {
			return nil, &snapshot.KeyExistsError{Key: key, Namespace: namespace}
		}

	case snapshot.WriteModeUpdate:
		query := fmt.Sprintf(`
			UPDATE %s SET
				payload = ?,
				codec = ?,
				version = version + 1,
				updated_at = datetime('now')
			WHERE namespace = ? AND key = ?
		`, s.cfg.Table)

		result, err := s.db.ExecContext(ctx, query, snap.Payload, snap.Codec, namespace, key)
		if err != nil {
			return nil, snapshot.WrapStoreError("save", "sqlite", key, err)
		}
		rowsAffected, _ := result.RowsAffected()
		if rowsAffected == 0 {
			return nil, &snapshot.KeyNotFoundError{Key: key, Namespace: namespace}
		}

	default:
		query := fmt.Sprintf(`
			INSERT INTO %s (key, namespace, payload, codec, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, 1, datetime('now'), datetime('now'))
			ON CONFLICT (namespace, key) DO UPDATE SET
				payload = excluded.payload,
				codec = excluded.codec,
				version = %s.version + 1,
				updated_at = datetime('now')
		`, s.cfg.Table, s.cfg.Table)

		if _, err := s.db.ExecContext(ctx, query, key, namespace, snap.Payload, snap.Codec); err != nil {
			return nil, snapshot.WrapStoreError("save", "sqlite", key, err)
		}
	}

	// Fetch the stored snapshot with updated metadata
	return s.Load(ctx, namespace, key)
}

// Delete removes a snapshot by namespace and key.
func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	if s.closed.Load() {
		return snapshot.ErrStoreClosed
	}
	if err := snapshot.ValidateNamespace(namespace); err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE namespace = ? AND key = ?`, s.cfg.Table)
	result, err := s.db.ExecContext(ctx, query, namespace, key)
	if err != nil {
		return snapshot.WrapStoreError("delete", "sqlite", key, err)
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
		FROM %s WHERE namespace = ?
	`, s.cfg.Table)
	args := []any{namespace}

	if keys := filter.Keys(); len(keys) > 0 {
		placeholders := ""
		for i, k := range keys {
			if i > 0 {
				placeholders += ", "
			}
			placeholders += "?"
			args = append(args, k)
		}
		query += fmt.Sprintf(" AND key IN (%s)", placeholders)
	} else if p := filter.Prefix(); p != "" {
		query += " AND key LIKE ? ESCAPE '\\'"
		args = append(args, escapeLike(p)+"%")
	}

	if c := filter.Cursor(); c != "" {
		query += " AND id > ?"
		args = append(args, c)
	}

	query += " ORDER BY id"
	if limit := filter.Limit(); limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, snapshot.WrapStoreError("list", "sqlite", "", err)
	}
	defer rows.Close()

	results := make(map[string]*snapshot.Snapshot)
	nextCursor := ""
	for rows.Next() {
		var (
			id                         int64
			key, codecName             string
			payload                    []byte
			version                    int64
			createdAtStr, updatedAtStr string
		)
		if err := rows.Scan(&id, &key, &payload, &codecName, &version, &createdAtStr, &updatedAtStr); err != nil {
			return nil, snapshot.WrapStoreError("list", "sqlite", "", err)
		}
		createdAt, _ := time.Parse(sqliteTimestampFormat, createdAtStr)
		updatedAt, _ := time.Parse(sqliteTimestampFormat, updatedAtStr)
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
		return nil, snapshot.WrapStoreError("list", "sqlite", "", err)
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
		return nil, snapshot.WrapStoreError("stats", "sqlite", "", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ns string
		var count, bytes int64
		if err := rows.Scan(&ns, &count, &bytes); err != nil {
			return nil, snapshot.WrapStoreError("stats", "sqlite", "", err)
		}
		stats.SnapshotsByNamespace[ns] = count
		stats.TotalSnapshots += count
		stats.PayloadBytes += bytes
	}
	if err := rows.Err(); err != nil {
		return nil, snapshot.WrapStoreError("stats", "sqlite", "", err)
	}
	return stats, nil
}

// escapeLike escapes LIKE wildcards in a prefix.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
