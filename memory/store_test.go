package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rbaliyan/flatwire"
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

func TestNewStore(t *testing.T) {
	store := NewStore()
	if store == nil {
		t.Fatal("NewStore returned nil")
	}
}

func TestStore_ConnectClose(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if err := store.Connect(ctx); err != nil {
		t.Errorf("Connect failed: %v", err)
	}
	if err := store.Close(ctx); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	// Operations after close fail.
	if _, err := store.Load(ctx, "ns", "key"); err != snapshot.ErrStoreClosed {
		t.Errorf("Expected ErrStoreClosed, got: %v", err)
	}
}

func TestStore_SaveLoad(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_ = store.Connect(ctx)
	defer store.Close(ctx)

	snap := testSnapshot(t, map[string]any{"value": "hello"})
	stored, err := store.Save(ctx, "ns", "key", snap, snapshot.WriteModeUpsert)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if stored.Version != 1 {
		t.Errorf("First version: got %d, want 1", stored.Version)
	}

	got, err := store.Load(ctx, "ns", "key")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(got.Payload) != string(snap.Payload) {
		t.Error("Payload mismatch after round trip")
	}
	if got.Codec != "json" {
		t.Errorf("Codec: got %q, want json", got.Codec)
	}

	decoded, err := got.Decode(nil)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.(map[string]any)["value"] != "hello" {
		t.Errorf("Decoded graph mismatch: %v", decoded)
	}
}

func TestStore_VersionIncrement(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_ = store.Connect(ctx)
	defer store.Close(ctx)

	snap := testSnapshot(t, "v")
	for want := int64(1); want <= 3; want++ {
		stored, err := store.Save(ctx, "ns", "key", snap, snapshot.WriteModeUpsert)
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if stored.Version != want {
			t.Errorf("Version: got %d, want %d", stored.Version, want)
		}
	}
}

func TestStore_WriteModes(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_ = store.Connect(ctx)
	defer store.Close(ctx)

	snap := testSnapshot(t, "v")

	// Update on a missing key fails.
	if _, err := store.Save(ctx, "ns", "key", snap, snapshot.WriteModeUpdate); !snapshot.IsNotFound(err) {
		t.Errorf("Expected NotFound for update of missing key, got: %v", err)
	}

	// Create succeeds once.
	if _, err := store.Save(ctx, "ns", "key", snap, snapshot.WriteModeCreate); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Create on an existing key fails.
	if _, err := store.Save(ctx, "ns", "key", snap, snapshot.WriteModeCreate); !snapshot.IsKeyExists(err) {
		t.Errorf("Expected KeyExists, got: %v", err)
	}

	// Update now succeeds and bumps the version.
	stored, err := store.Save(ctx, "ns", "key", snap, snapshot.WriteModeUpdate)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if stored.Version != 2 {
		t.Errorf("Version after update: got %d, want 2", stored.Version)
	}
}

func TestStore_LoadNotFound(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_ = store.Connect(ctx)
	defer store.Close(ctx)

	_, err := store.Load(ctx, "ns", "nonexistent")
	if !snapshot.IsNotFound(err) {
		t.Errorf("Expected NotFound error, got: %v", err)
	}
}

func TestStore_Delete(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_ = store.Connect(ctx)
	defer store.Close(ctx)

	snap := testSnapshot(t, "v")
	_, _ = store.Save(ctx, "ns", "key", snap, snapshot.WriteModeUpsert)

	if err := store.Delete(ctx, "ns", "key"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Load(ctx, "ns", "key"); !snapshot.IsNotFound(err) {
		t.Error("Expected NotFound after delete")
	}
	if err := store.Delete(ctx, "ns", "key"); !snapshot.IsNotFound(err) {
		t.Errorf("Expected NotFound for second delete, got: %v", err)
	}
}

func TestStore_InvalidKey(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_ = store.Connect(ctx)
	defer store.Close(ctx)

	snap := testSnapshot(t, "v")
	tests := []string{"", "../escape", "/leading", "trailing/", "bad char"}
	for _, key := range tests {
		t.Run(key, func(t *testing.T) {
			if _, err := store.Save(ctx, "ns", key, snap, snapshot.WriteModeUpsert); !snapshot.IsInvalidKey(err) {
				t.Errorf("Expected InvalidKey for %q, got: %v", key, err)
			}
		})
	}
}

func TestStore_NamespaceIsolation(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_ = store.Connect(ctx)
	defer store.Close(ctx)

	_, _ = store.Save(ctx, "ns1", "key", testSnapshot(t, "one"), snapshot.WriteModeUpsert)
	_, _ = store.Save(ctx, "ns2", "key", testSnapshot(t, "two"), snapshot.WriteModeUpsert)

	got, err := store.Load(ctx, "ns1", "key")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	decoded, _ := got.Decode(nil)
	if decoded != "one" {
		t.Errorf("Namespace isolation broken: got %v", decoded)
	}
}

func TestStore_List(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_ = store.Connect(ctx)
	defer store.Close(ctx)

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("app/config-%d", i)
		_, _ = store.Save(ctx, "ns", key, testSnapshot(t, i), snapshot.WriteModeUpsert)
	}
	_, _ = store.Save(ctx, "ns", "other", testSnapshot(t, "x"), snapshot.WriteModeUpsert)

	t.Run("prefix", func(t *testing.T) {
		page, err := store.List(ctx, "ns", snapshot.NewFilter().WithPrefix("app/").Build())
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(page.Results()) != 5 {
			t.Errorf("Got %d results, want 5", len(page.Results()))
		}
	})

	t.Run("keys", func(t *testing.T) {
		page, err := store.List(ctx, "ns", snapshot.NewFilter().WithKeys("app/config-1", "other").Build())
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(page.Results()) != 2 {
			t.Errorf("Got %d results, want 2", len(page.Results()))
		}
	})

	t.Run("pagination", func(t *testing.T) {
		seen := make(map[string]bool)
		cursor := ""
		for {
			page, err := store.List(ctx, "ns", snapshot.NewFilter().WithLimit(2).WithCursor(cursor).Build())
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			for key := range page.Results() {
				if seen[key] {
					t.Errorf("Key %q returned twice", key)
				}
				seen[key] = true
			}
			if len(page.Results()) < 2 {
				break
			}
			cursor = page.NextCursor()
		}
		if len(seen) != 6 {
			t.Errorf("Pagination covered %d keys, want 6", len(seen))
		}
	})
}

func TestStore_Stats(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_ = store.Connect(ctx)
	defer store.Close(ctx)

	_, _ = store.Save(ctx, "a", "k1", testSnapshot(t, "v"), snapshot.WriteModeUpsert)
	_, _ = store.Save(ctx, "a", "k2", testSnapshot(t, "v"), snapshot.WriteModeUpsert)
	_, _ = store.Save(ctx, "b", "k1", testSnapshot(t, "v"), snapshot.WriteModeUpsert)

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalSnapshots != 3 {
		t.Errorf("TotalSnapshots: got %d, want 3", stats.TotalSnapshots)
	}
	if stats.SnapshotsByNamespace["a"] != 2 || stats.SnapshotsByNamespace["b"] != 1 {
		t.Errorf("SnapshotsByNamespace: %v", stats.SnapshotsByNamespace)
	}
	if stats.PayloadBytes == 0 {
		t.Error("PayloadBytes is zero")
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_ = store.Connect(ctx)
	defer store.Close(ctx)

	snap := testSnapshot(t, "v")
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", n)
			for j := 0; j < 20; j++ {
				_, _ = store.Save(ctx, "ns", key, snap, snapshot.WriteModeUpsert)
				_, _ = store.Load(ctx, "ns", key)
			}
		}(i)
	}
	wg.Wait()

	stats, _ := store.Stats(ctx)
	if stats.TotalSnapshots != 10 {
		t.Errorf("TotalSnapshots: got %d, want 10", stats.TotalSnapshots)
	}
}

func TestStore_SnapshotIsCopy(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	_ = store.Connect(ctx)
	defer store.Close(ctx)

	snap := testSnapshot(t, "v")
	_, _ = store.Save(ctx, "ns", "key", snap, snapshot.WriteModeUpsert)

	got, _ := store.Load(ctx, "ns", "key")
	got.Payload[0] = 'X'

	again, _ := store.Load(ctx, "ns", "key")
	if again.Payload[0] == 'X' {
		t.Error("Load returned the internal payload slice")
	}
}
