package flatwire

import "reflect"

// refKey identifies a reference-bearing runtime value for deduplication.
// Maps and pointers are keyed by their pointer; slices additionally carry
// their length, since two distinct slices may share a backing array.
type refKey struct {
	kind reflect.Kind
	ptr  uintptr
	len  int
}

// identityOf returns the identity key for a reference-bearing value.
// ok is false for value types (primitives, time.Time), which have no
// identity, and for zero-pointer cases (nil or empty slices and nil maps)
// where pointer equality would spuriously merge independent values.
func identityOf(v any) (refKey, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.Len() == 0 {
			return refKey{}, false
		}
		return refKey{kind: reflect.Slice, ptr: rv.Pointer(), len: rv.Len()}, true
	case reflect.Map:
		if rv.Pointer() == 0 {
			return refKey{}, false
		}
		return refKey{kind: reflect.Map, ptr: rv.Pointer()}, true
	case reflect.Pointer:
		if rv.Pointer() == 0 {
			return refKey{}, false
		}
		return refKey{kind: reflect.Pointer, ptr: rv.Pointer()}, true
	default:
		return refKey{}, false
	}
}

// isPrimitive reports whether v is stored verbatim as an entry.
func isPrimitive(v any) bool {
	switch v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}
