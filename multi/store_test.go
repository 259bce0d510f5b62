package multi_test

import (
	"context"
	"testing"

	"github.com/rbaliyan/flatwire"
	"github.com/rbaliyan/flatwire/memory"
	"github.com/rbaliyan/flatwire/multi"
	"github.com/rbaliyan/flatwire/snapshot"
)

func testSnapshot(t *testing.T, root any) *snapshot.Snapshot {
	t.Helper()
	snap, err := snapshot.New(flatwire.Default(), root)
	if err != nil {
		t.Fatalf("snapshot.New failed: %v", err)
	}
	return snap
}

func newConnectedPair(t *testing.T, opts ...multi.Option) (*multi.Store, *memory.Store, *memory.Store) {
	t.Helper()

	primary := memory.NewStore()
	backup := memory.NewStore()
	store := multi.NewStore([]snapshot.Store{primary, backup}, opts...)

	ctx := context.Background()
	if err := store.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() {
		store.Close(context.Background())
	})
	return store, primary, backup
}

func TestMultiStore_SaveWritesAll(t *testing.T) {
	store, primary, backup := newConnectedPair(t)
	ctx := context.Background()

	snap := testSnapshot(t, "v")
	if _, err := store.Save(ctx, "ns", "key", snap, snapshot.WriteModeUpsert); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := primary.Load(ctx, "ns", "key"); err != nil {
		t.Errorf("Primary missing the key: %v", err)
	}
	if _, err := backup.Load(ctx, "ns", "key"); err != nil {
		t.Errorf("Backup missing the key: %v", err)
	}
}

func TestMultiStore_LoadFallback(t *testing.T) {
	store, _, backup := newConnectedPair(t)
	ctx := context.Background()

	// Key only in the backup store.
	snap := testSnapshot(t, "backup only")
	if _, err := backup.Save(ctx, "ns", "key", snap, snapshot.WriteModeUpsert); err != nil {
		t.Fatalf("Save to backup failed: %v", err)
	}

	got, err := store.Load(ctx, "ns", "key")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	decoded, _ := got.Decode(nil)
	if decoded != "backup only" {
		t.Errorf("Got %v", decoded)
	}
}

func TestMultiStore_ReadThroughBackfill(t *testing.T) {
	store, primary, backup := newConnectedPair(t, multi.WithStrategy(multi.StrategyReadThrough))
	ctx := context.Background()

	snap := testSnapshot(t, "v")
	if _, err := backup.Save(ctx, "ns", "key", snap, snapshot.WriteModeUpsert); err != nil {
		t.Fatalf("Save to backup failed: %v", err)
	}

	if _, err := store.Load(ctx, "ns", "key"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// The hit from the backup must have populated the primary.
	if _, err := primary.Load(ctx, "ns", "key"); err != nil {
		t.Errorf("Primary not backfilled: %v", err)
	}
}

func TestMultiStore_LoadNotFound(t *testing.T) {
	store, _, _ := newConnectedPair(t)

	_, err := store.Load(context.Background(), "ns", "missing")
	if !snapshot.IsNotFound(err) {
		t.Errorf("Expected NotFound, got: %v", err)
	}
}

func TestMultiStore_DeleteTolerant(t *testing.T) {
	store, primary, _ := newConnectedPair(t)
	ctx := context.Background()

	// Key only in the primary.
	snap := testSnapshot(t, "v")
	if _, err := primary.Save(ctx, "ns", "key", snap, snapshot.WriteModeUpsert); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Delete succeeds even though the backup never had the key.
	if err := store.Delete(ctx, "ns", "key"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	// All replicas missing => NotFound.
	if err := store.Delete(ctx, "ns", "key"); !snapshot.IsNotFound(err) {
		t.Errorf("Expected NotFound, got: %v", err)
	}
}

func TestMultiStore_ConnectNeedsOne(t *testing.T) {
	closed := memory.NewStore()
	_ = closed.Close(context.Background())
	healthy := memory.NewStore()

	store := multi.NewStore([]snapshot.Store{closed, healthy})
	if err := store.Connect(context.Background()); err != nil {
		t.Errorf("Connect should succeed with one healthy store: %v", err)
	}

	alsoClosed := memory.NewStore()
	_ = alsoClosed.Close(context.Background())
	store = multi.NewStore([]snapshot.Store{closed, alsoClosed})
	if err := store.Connect(context.Background()); err == nil {
		t.Error("Connect should fail with no healthy store")
	}
}

func TestMultiStore_List(t *testing.T) {
	store, primary, _ := newConnectedPair(t)
	ctx := context.Background()

	_, _ = primary.Save(ctx, "ns", "a", testSnapshot(t, 1), snapshot.WriteModeUpsert)
	_, _ = primary.Save(ctx, "ns", "b", testSnapshot(t, 2), snapshot.WriteModeUpsert)

	page, err := store.List(ctx, "ns", snapshot.NewFilter().Build())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page.Results()) != 2 {
		t.Errorf("Got %d results, want 2", len(page.Results()))
	}
}

func TestMultiStore_Health(t *testing.T) {
	store, primary, backup := newConnectedPair(t)
	ctx := context.Background()

	if err := store.Health(ctx); err != nil {
		t.Errorf("Health failed: %v", err)
	}

	// One healthy replica is enough.
	_ = primary.Close(ctx)
	if err := store.Health(ctx); err != nil {
		t.Errorf("Health with one healthy store failed: %v", err)
	}

	_ = backup.Close(ctx)
	if err := store.Health(ctx); err == nil {
		t.Error("Health with no healthy store succeeded")
	}
}
