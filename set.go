package flatwire

import "reflect"

// Set is an insertion-ordered collection of unique values, the codec's
// analog of a native set type. Comparable values deduplicate by equality;
// reference-bearing values (slices, maps, pointers) deduplicate by identity,
// so adding the same slice twice stores it once while two equal but distinct
// slices both remain.
//
// A Set is not safe for concurrent mutation.
type Set struct {
	elems []any
	vals  map[any]struct{}
	refs  map[refKey]struct{}
}

// NewSet creates a Set containing the given elements in order.
func NewSet(elems ...any) *Set {
	s := &Set{
		vals: make(map[any]struct{}),
		refs: make(map[refKey]struct{}),
	}
	for _, el := range elems {
		s.Add(el)
	}
	return s
}

// Add inserts v, returning false if an equal or identical element is
// already present.
func (s *Set) Add(v any) bool {
	if s.Has(v) {
		return false
	}
	if key, ok := identityOf(v); ok {
		s.refs[key] = struct{}{}
	} else if v == nil || reflect.TypeOf(v).Comparable() {
		s.vals[v] = struct{}{}
	}
	// Non-comparable values without identity (empty slices, nil maps) are
	// indistinguishable anyway; they are kept without an index entry.
	s.elems = append(s.elems, v)
	return true
}

// Has reports whether an equal or identical element is present.
func (s *Set) Has(v any) bool {
	if key, ok := identityOf(v); ok {
		_, found := s.refs[key]
		return found
	}
	if v == nil || reflect.TypeOf(v).Comparable() {
		_, found := s.vals[v]
		return found
	}
	return false
}

// Delete removes an element, returning true if it was present.
func (s *Set) Delete(v any) bool {
	if !s.Has(v) {
		return false
	}
	if key, ok := identityOf(v); ok {
		delete(s.refs, key)
		for i, el := range s.elems {
			if k2, ok2 := identityOf(el); ok2 && k2 == key {
				s.elems = append(s.elems[:i], s.elems[i+1:]...)
				break
			}
		}
		return true
	}
	delete(s.vals, v)
	for i, el := range s.elems {
		if _, hasID := identityOf(el); !hasID && el == v {
			s.elems = append(s.elems[:i], s.elems[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of elements.
func (s *Set) Len() int { return len(s.elems) }

// Values returns the elements in insertion order. The returned slice is a
// copy.
func (s *Set) Values() []any {
	out := make([]any, len(s.elems))
	copy(out, s.elems)
	return out
}

// setExtension handles *Set values. The payload is the list of element
// entry indices in insertion order; elements take part in deduplication and
// cycle handling like any other child value.
type setExtension struct{}

var _ Extension = setExtension{}

func (setExtension) Name() string { return "set" }

func (setExtension) Check(v any) bool {
	s, ok := v.(*Set)
	return ok && s != nil
}

func (setExtension) Encode(v any, child EncodeChild) (any, error) {
	set := v.(*Set)
	ids := make([]int, 0, set.Len())
	for _, el := range set.elems {
		id, err := child(el)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (setExtension) Decode(payload any, child DecodeChild) (any, error) {
	ids, err := Indices(payload)
	if err != nil {
		return nil, err
	}
	set := NewSet()
	for _, id := range ids {
		el, err := child(id)
		if err != nil {
			return nil, err
		}
		set.Add(el)
	}
	return set, nil
}
