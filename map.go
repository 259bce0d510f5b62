package flatwire

import "reflect"

// Map is an insertion-ordered mapping with arbitrary keys, the codec's
// analog of a native ordered map type. Key lookup follows the same rules as
// Set membership: comparable keys by equality, reference-bearing keys by
// identity.
//
// A Map is not safe for concurrent mutation.
type Map struct {
	keys []any
	vals []any
	idx  map[any]int
	refs map[refKey]int
}

// NewMap creates an empty Map.
func NewMap() *Map {
	return &Map{
		idx:  make(map[any]int),
		refs: make(map[refKey]int),
	}
}

func (m *Map) lookup(key any) (int, bool) {
	if k, ok := identityOf(key); ok {
		i, found := m.refs[k]
		return i, found
	}
	if key == nil || reflect.TypeOf(key).Comparable() {
		i, found := m.idx[key]
		return i, found
	}
	return 0, false
}

// Set stores value under key, keeping the key's original insertion position
// on overwrite.
func (m *Map) Set(key, value any) *Map {
	if i, ok := m.lookup(key); ok {
		m.vals[i] = value
		return m
	}
	i := len(m.keys)
	m.keys = append(m.keys, key)
	m.vals = append(m.vals, value)
	if k, ok := identityOf(key); ok {
		m.refs[k] = i
	} else if key == nil || reflect.TypeOf(key).Comparable() {
		m.idx[key] = i
	}
	return m
}

// Get returns the value stored under key.
func (m *Map) Get(key any) (any, bool) {
	i, ok := m.lookup(key)
	if !ok {
		return nil, false
	}
	return m.vals[i], true
}

// Has reports whether key is present.
func (m *Map) Has(key any) bool {
	_, ok := m.lookup(key)
	return ok
}

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.keys) }

// Keys returns the keys in insertion order. The returned slice is a copy.
func (m *Map) Keys() []any {
	out := make([]any, len(m.keys))
	copy(out, m.keys)
	return out
}

// Range calls fn for each entry in insertion order until fn returns false.
func (m *Map) Range(fn func(key, value any) bool) {
	for i, k := range m.keys {
		if !fn(k, m.vals[i]) {
			return
		}
	}
}

// mapExtension handles *Map values. The payload is a list of
// [keyIndex, valueIndex] pairs in insertion order.
type mapExtension struct{}

var _ Extension = mapExtension{}

func (mapExtension) Name() string { return "map" }

func (mapExtension) Check(v any) bool {
	m, ok := v.(*Map)
	return ok && m != nil
}

func (mapExtension) Encode(v any, child EncodeChild) (any, error) {
	m := v.(*Map)
	pairs := make([][2]int, 0, m.Len())
	for i, k := range m.keys {
		ki, err := child(k)
		if err != nil {
			return nil, err
		}
		vi, err := child(m.vals[i])
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, [2]int{ki, vi})
	}
	return pairs, nil
}

func (mapExtension) Decode(payload any, child DecodeChild) (any, error) {
	pairs, err := IndexPairs(payload)
	if err != nil {
		return nil, err
	}
	m := NewMap()
	for _, pair := range pairs {
		k, err := child(pair[0])
		if err != nil {
			return nil, err
		}
		v, err := child(pair[1])
		if err != nil {
			return nil, err
		}
		m.Set(k, v)
	}
	return m, nil
}
