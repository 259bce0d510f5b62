// Package mongodb provides a MongoDB-backed snapshot store.
package mongodb

import (
	"context"
	"fmt"
	"regexp"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/rbaliyan/flatwire/snapshot"
)

// mongoEntry is the document representation of a stored snapshot.
type mongoEntry struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Key       string        `bson:"key"`
	Namespace string        `bson:"namespace"`
	Payload   []byte        `bson:"payload"`
	Codec     string        `bson:"codec"`
	Version   int64         `bson:"version"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

func (d *mongoEntry) toSnapshot() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Payload:   d.Payload,
		Codec:     d.Codec,
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
		EntryID:   d.ID.Hex(),
	}
}

// Store is a MongoDB snapshot store implementation.
// The store does not manage the client lifecycle - the caller is responsible
// for closing the client when done.
type Store struct {
	client     *mongo.Client
	database   *mongo.Database
	collection *mongo.Collection
	closed     atomic.Bool
	cfg        Config
}

// Config holds MongoDB store configuration.
type Config struct {
	// Database is the database name.
	Database string

	// Collection is the collection name for snapshot entries.
	Collection string

	// AutoCreateIndexes creates the (namespace, key) unique index on Connect.
	AutoCreateIndexes bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Database:          "flatwire",
		Collection:        "snapshots",
		AutoCreateIndexes: true,
	}
}

// Option configures the MongoDB store.
type Option func(*Store)

// WithDatabase sets the database name.
func WithDatabase(name string) Option {
	return func(s *Store) {
		s.cfg.Database = name
	}
}

// WithCollection sets the collection name.
func WithCollection(name string) Option {
	return func(s *Store) {
		s.cfg.Collection = name
	}
}

// WithAutoCreateIndexes enables or disables index creation on Connect.
func WithAutoCreateIndexes(enable bool) Option {
	return func(s *Store) {
		s.cfg.AutoCreateIndexes = enable
	}
}

// NewStore creates a new MongoDB store with the provided client.
// The client must be connected and ready to use.
func NewStore(client *mongo.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		cfg:    DefaultConfig(),
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

// Connect initializes the store and optionally creates indexes.
// The MongoDB client must already be connected.
func (s *Store) Connect(ctx context.Context) error {
	if s.client == nil {
		return snapshot.WrapStoreError("connect", "mongodb", "", fmt.Errorf("client is nil"))
	}

	s.database = s.client.Database(s.cfg.Database)
	s.collection = s.database.Collection(s.cfg.Collection)

	if s.cfg.AutoCreateIndexes {
		if err := s.EnsureIndexes(ctx); err != nil {
			return snapshot.WrapStoreError("create_indexes", "mongodb", "", err)
		}
	}
	return nil
}

// EnsureIndexes creates the unique (namespace, key) index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "namespace", Value: 1},
				{Key: "key", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "namespace", Value: 1}},
		},
	}
	_, err := s.collection.Indexes().CreateMany(ctx, models)
	return err
}

// Close marks the store closed. It does NOT disconnect the client - that is
// the caller's responsibility.
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

	filter := bson.M{
		"namespace": namespace,
		"key":       key,
	}

	var doc mongoEntry
	err := s.collection.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, &snapshot.KeyNotFoundError{Key: key, Namespace: namespace}
	}
	if err != nil {
		return nil, snapshot.WrapStoreError("load", "mongodb", key, err)
	}
	return doc.toSnapshot(), nil
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
		return nil, snapshot.WrapStoreError("save", "mongodb", key, fmt.Errorf("snapshot is nil"))
	}

	now := time.Now().UTC()

	switch mode {
	case snapshot.WriteModeCreate:
		// Insert only - fails if document exists due to unique index
		doc := mongoEntry{
			Key:       key,
			Namespace: namespace,
			Payload:   snap.Payload,
			Codec:     snap.Codec,
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
		}

		result, err := s.collection.InsertOne(ctx, doc)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, &snapshot.KeyExistsError{Key: key, Namespace: namespace}
			}
			return nil, snapshot.WrapStoreError("save", "mongodb", key, err)
		}
		if oid, ok := result.InsertedID.(bson.ObjectID); ok {
			doc.ID = oid
		}
		return doc.toSnapshot(), nil

	case snapshot.WriteModeUpdate:
		filter := bson.M{
			"namespace": namespace,
			"key":       key,
		}
		update := bson.M{
			"$set": bson.M{
				"payload":    snap.Payload,
				"codec":      snap.Codec,
				"updated_at": now,
			},
			"$inc": bson.M{"version": int64(1)},
		}

		opts := options.FindOneAndUpdate().
			SetUpsert(false).
			SetReturnDocument(options.After)

		var doc mongoEntry
		err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				return nil, &snapshot.KeyNotFoundError{Key: key, Namespace: namespace}
			}
			return nil, snapshot.WrapStoreError("save", "mongodb", key, err)
		}
		return doc.toSnapshot(), nil

	default:
		filter := bson.M{
			"namespace": namespace,
			"key":       key,
		}
		update := bson.M{
			"$set": bson.M{
				"key":        key,
				"namespace":  namespace,
				"payload":    snap.Payload,
				"codec":      snap.Codec,
				"updated_at": now,
			},
			"$inc": bson.M{"version": int64(1)},
			"$setOnInsert": bson.M{
				"created_at": now,
			},
		}

		opts := options.FindOneAndUpdate().
			SetUpsert(true).
			SetReturnDocument(options.After)

		var doc mongoEntry
		err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
		if err != nil {
			return nil, snapshot.WrapStoreError("save", "mongodb", key, err)
		}
		return doc.toSnapshot(), nil
	}
}

// Delete removes a snapshot by namespace and key.
func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	if s.closed.Load() {
		return snapshot.ErrStoreClosed
	}
	if err := snapshot.ValidateNamespace(namespace); err != nil {
		return err
	}

	filter := bson.M{
		"namespace": namespace,
		"key":       key,
	}

	result, err := s.collection.DeleteOne(ctx, filter)
	if err != nil {
		return snapshot.WrapStoreError("delete", "mongodb", key, err)
	}
	if result.DeletedCount == 0 {
		return &snapshot.KeyNotFoundError{Key: key, Namespace: namespace}
	}
	return nil
}

// List returns a page of snapshots matching the filter within a namespace.
// Uses ObjectID-based pagination for consistent ordering.
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

	mongoFilter := bson.M{"namespace": namespace}

	if keys := filter.Keys(); len(keys) > 0 {
		mongoFilter["key"] = bson.M{"$in": keys}
	} else if p := filter.Prefix(); p != "" {
		mongoFilter["key"] = bson.M{"$regex": "^" + regexp.QuoteMeta(p)}
	}

	if c := filter.Cursor(); c != "" {
		oid, err := bson.ObjectIDFromHex(c)
		if err != nil {
			return nil, snapshot.WrapStoreError("list", "mongodb", "", fmt.Errorf("invalid cursor %q", c))
		}
		mongoFilter["_id"] = bson.M{"$gt": oid}
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit := filter.Limit(); limit > 0 {
		findOpts.SetLimit(int64(limit))
	}

	cursor, err := s.collection.Find(ctx, mongoFilter, findOpts)
	if err != nil {
		return nil, snapshot.WrapStoreError("list", "mongodb", "", err)
	}
	defer cursor.Close(ctx)

	results := make(map[string]*snapshot.Snapshot)
	nextCursor := ""
	for cursor.Next(ctx) {
		var doc mongoEntry
		if err := cursor.Decode(&doc); err != nil {
			return nil, snapshot.WrapStoreError("list", "mongodb", "", err)
		}
		results[doc.Key] = doc.toSnapshot()
		nextCursor = doc.ID.Hex()
	}
	if err := cursor.Err(); err != nil {
		return nil, snapshot.WrapStoreError("list", "mongodb", "", err)
	}

	return snapshot.NewPage(results, nextCursor, filter.Limit()), nil
}

// Health pings the MongoDB deployment.
func (s *Store) Health(ctx context.Context) error {
	if s.closed.Load() {
		return snapshot.ErrStoreClosed
	}
	return s.client.Ping(ctx, nil)
}

// Stats returns store statistics.
func (s *Store) Stats(ctx context.Context) (*snapshot.StoreStats, error) {
	if s.closed.Load() {
		return nil, snapshot.ErrStoreClosed
	}

	pipeline := []bson.M{
		{"$group": bson.M{
			"_id":   "$namespace",
			"count": bson.M{"$sum": 1},
			"bytes": bson.M{"$sum": bson.M{"$bsonSize": "$$ROOT"}},
		}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, snapshot.WrapStoreError("stats", "mongodb", "", err)
	}
	defer cursor.Close(ctx)

	stats := &snapshot.StoreStats{
		SnapshotsByNamespace: make(map[string]int64),
	}
	for cursor.Next(ctx) {
		var row struct {
			ID    string `bson:"_id"`
			Count int64  `bson:"count"`
			Bytes int64  `bson:"bytes"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, snapshot.WrapStoreError("stats", "mongodb", "", err)
		}
		stats.SnapshotsByNamespace[row.ID] = row.Count
		stats.TotalSnapshots += row.Count
		stats.PayloadBytes += row.Bytes
	}
	if err := cursor.Err(); err != nil {
		return nil, snapshot.WrapStoreError("stats", "mongodb", "", err)
	}
	return stats, nil
}
