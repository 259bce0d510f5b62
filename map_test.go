package flatwire

import "testing"

func TestMap_SetGet(t *testing.T) {
	m := NewMap()
	m.Set("a", 1).Set(2, "b").Set(true, 3.0)

	if m.Len() != 3 {
		t.Fatalf("Len: got %d, want 3", m.Len())
	}

	tests := []struct {
		key  any
		want any
	}{
		{"a", 1},
		{2, "b"},
		{true, 3.0},
	}
	for _, tt := range tests {
		got, ok := m.Get(tt.key)
		if !ok {
			t.Errorf("Get(%v) missed", tt.key)
			continue
		}
		if got != tt.want {
			t.Errorf("Get(%v): got %v, want %v", tt.key, got, tt.want)
		}
	}

	if _, ok := m.Get("missing"); ok {
		t.Error("Get found a missing key")
	}
}

func TestMap_OverwriteKeepsPosition(t *testing.T) {
	m := NewMap()
	m.Set("first", 1)
	m.Set("second", 2)
	m.Set("first", 10)

	if m.Len() != 2 {
		t.Fatalf("Len: got %d, want 2", m.Len())
	}
	keys := m.Keys()
	if keys[0] != "first" || keys[1] != "second" {
		t.Errorf("Overwrite moved the key: %v", keys)
	}
	if v, _ := m.Get("first"); v != 10 {
		t.Errorf("Get after overwrite: got %v, want 10", v)
	}
}

func TestMap_ReferenceKey(t *testing.T) {
	k1 := []any{"k"}
	k2 := []any{"k"}

	m := NewMap()
	m.Set(k1, "one")
	m.Set(k2, "two")

	if m.Len() != 2 {
		t.Fatalf("Equal but distinct slice keys merged: Len %d", m.Len())
	}
	if v, _ := m.Get(k1); v != "one" {
		t.Errorf("Get(k1): got %v", v)
	}
	if v, _ := m.Get(k2); v != "two" {
		t.Errorf("Get(k2): got %v", v)
	}
}

func TestMap_Range(t *testing.T) {
	m := NewMap()
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("c", 3)

	var keys []any
	m.Range(func(k, _ any) bool {
		keys = append(keys, k)
		return len(keys) < 2
	})
	if len(keys) != 2 {
		t.Fatalf("Range ignored the stop signal: visited %d", len(keys))
	}
	if keys[0] != "a" || keys[1] != "b" {
		t.Errorf("Range order: %v", keys)
	}
}

func TestMap_NilKey(t *testing.T) {
	m := NewMap()
	m.Set(nil, "null")
	if v, ok := m.Get(nil); !ok || v != "null" {
		t.Errorf("Get(nil): got %v, %v", v, ok)
	}
}
