package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rbaliyan/flatwire"
	"github.com/rbaliyan/flatwire/file"
	"github.com/rbaliyan/flatwire/snapshot"
)

func newTestStore(t *testing.T, opts ...file.Option) *file.Store {
	t.Helper()

	store := file.NewStore(t.TempDir(), opts...)
	if err := store.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() {
		store.Close(context.Background())
	})
	return store
}

func testSnapshot(t *testing.T, root any) *snapshot.Snapshot {
	t.Helper()
	snap, err := snapshot.New(flatwire.Default(), root)
	if err != nil {
		t.Fatalf("snapshot.New failed: %v", err)
	}
	return snap
}

func TestFileStore_SaveLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	snap := testSnapshot(t, map[string]any{"value": "state"})
	stored, err := store.Save(ctx, "test", "app/state", snap, snapshot.WriteModeUpsert)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if stored.Version != 1 {
		t.Errorf("First version: got %d, want 1", stored.Version)
	}

	got, err := store.Load(ctx, "test", "app/state")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	decoded, err := got.Decode(nil)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.(map[string]any)["value"] != "state" {
		t.Errorf("Decoded graph mismatch: %v", decoded)
	}
}

func TestFileStore_Formats(t *testing.T) {
	for _, format := range []string{"json", "yaml", "toml"} {
		t.Run(format, func(t *testing.T) {
			store := newTestStore(t, file.WithFormat(format))
			ctx := context.Background()

			snap := testSnapshot(t, map[string]any{"n": "v"})
			if _, err := store.Save(ctx, "", "key", snap, snapshot.WriteModeUpsert); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			got, err := store.Load(ctx, "", "key")
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			decoded, err := got.Decode(nil)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if decoded.(map[string]any)["n"] != "v" {
				t.Errorf("Decoded graph mismatch: %v", decoded)
			}
		})
	}
}

func TestFileStore_UnknownFormat(t *testing.T) {
	store := file.NewStore(t.TempDir(), file.WithFormat("xml"))
	if err := store.Connect(context.Background()); err == nil {
		t.Error("Connect accepted an unknown format")
	}
}

func TestFileStore_VersionIncrement(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	snap := testSnapshot(t, "v")
	for want := int64(1); want <= 3; want++ {
		stored, err := store.Save(ctx, "test", "key", snap, snapshot.WriteModeUpsert)
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if stored.Version != want {
			t.Errorf("Version: got %d, want %d", stored.Version, want)
		}
	}
}

func TestFileStore_WriteModes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	snap := testSnapshot(t, "v")

	if _, err := store.Save(ctx, "test", "key", snap, snapshot.WriteModeUpdate); !snapshot.IsNotFound(err) {
		t.Errorf("Expected NotFound for update of missing key, got: %v", err)
	}
	if _, err := store.Save(ctx, "test", "key", snap, snapshot.WriteModeCreate); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.Save(ctx, "test", "key", snap, snapshot.WriteModeCreate); !snapshot.IsKeyExists(err) {
		t.Errorf("Expected KeyExists, got: %v", err)
	}
}

func TestFileStore_NestedKeys(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Save(ctx, "test", "a/b/c/deep", testSnapshot(t, "v"), snapshot.WriteModeUpsert); err != nil {
		t.Fatalf("Save with nested key failed: %v", err)
	}
	if _, err := store.Load(ctx, "test", "a/b/c/deep"); err != nil {
		t.Fatalf("Load with nested key failed: %v", err)
	}
}

func TestFileStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, _ = store.Save(ctx, "test", "key", testSnapshot(t, "v"), snapshot.WriteModeUpsert)

	if err := store.Delete(ctx, "test", "key"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "test", "key"); !snapshot.IsNotFound(err) {
		t.Errorf("Expected NotFound for second delete, got: %v", err)
	}
}

func TestFileStore_List(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	keys := []string{"app/a", "app/b", "app/c", "other"}
	for _, key := range keys {
		_, _ = store.Save(ctx, "test", key, testSnapshot(t, key), snapshot.WriteModeUpsert)
	}

	t.Run("prefix", func(t *testing.T) {
		page, err := store.List(ctx, "test", snapshot.NewFilter().WithPrefix("app/").Build())
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(page.Results()) != 3 {
			t.Errorf("Got %d results, want 3", len(page.Results()))
		}
	})

	t.Run("pagination", func(t *testing.T) {
		page, err := store.List(ctx, "test", snapshot.NewFilter().WithLimit(3).Build())
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(page.Results()) != 3 {
			t.Fatalf("First page: got %d results, want 3", len(page.Results()))
		}

		page, err = store.List(ctx, "test", snapshot.NewFilter().WithLimit(3).WithCursor(page.NextCursor()).Build())
		if err != nil {
			t.Fatalf("Second page failed: %v", err)
		}
		if len(page.Results()) != 1 {
			t.Errorf("Second page: got %d results, want 1", len(page.Results()))
		}
	})
}

func TestFileStore_FilesOnDisk(t *testing.T) {
	dir := t.TempDir()
	store := file.NewStore(dir)
	ctx := context.Background()
	if err := store.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer store.Close(ctx)

	_, _ = store.Save(ctx, "ns", "key", testSnapshot(t, "v"), snapshot.WriteModeUpsert)
	if _, err := os.Stat(filepath.Join(dir, "ns", "key.json")); err != nil {
		t.Errorf("Expected file on disk: %v", err)
	}

	// Default namespace files land in a reserved directory.
	_, _ = store.Save(ctx, "", "key", testSnapshot(t, "v"), snapshot.WriteModeUpsert)
	if _, err := os.Stat(filepath.Join(dir, "_default", "key.json")); err != nil {
		t.Errorf("Expected default-namespace file on disk: %v", err)
	}
}

func TestFileStore_Stats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, _ = store.Save(ctx, "a", "k1", testSnapshot(t, "v"), snapshot.WriteModeUpsert)
	_, _ = store.Save(ctx, "b", "k1", testSnapshot(t, "v"), snapshot.WriteModeUpsert)

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalSnapshots != 2 {
		t.Errorf("TotalSnapshots: got %d, want 2", stats.TotalSnapshots)
	}
	if stats.SnapshotsByNamespace["a"] != 1 || stats.SnapshotsByNamespace["b"] != 1 {
		t.Errorf("SnapshotsByNamespace: %v", stats.SnapshotsByNamespace)
	}
}
