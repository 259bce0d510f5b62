package flatwire

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// encodeState holds the call-local state of one Serialize invocation.
type encodeState struct {
	exts    []Extension
	entries []any
	extIdx  [][]int

	// seenVals deduplicates comparable values (primitives and value-typed
	// extension instances such as time.Time) by value.
	seenVals map[any]int

	// seenRefs deduplicates reference-bearing values by identity.
	seenRefs map[refKey]int

	// path tracks the location of the value currently being encoded, for
	// error reporting.
	path []string
}

func newEncodeState(exts []Extension) *encodeState {
	extIdx := make([][]int, len(exts))
	for i := range extIdx {
		extIdx[i] = []int{}
	}
	return &encodeState{
		exts:     exts,
		extIdx:   extIdx,
		seenVals: make(map[any]int),
		seenRefs: make(map[refKey]int),
	}
}

// add assigns v an entry index, reusing the index of an already-seen value.
// Indices are assigned in pre-order, depth-first first-visit order, so the
// root of the graph is always index 0.
func (e *encodeState) add(v any) (int, error) {
	if isPrimitive(v) {
		if idx, ok := e.seenVals[v]; ok {
			return idx, nil
		}
		idx := len(e.entries)
		e.entries = append(e.entries, v)
		e.seenVals[v] = idx
		return idx, nil
	}

	for i, ext := range e.exts {
		if !ext.Check(v) {
			continue
		}
		key, hasIdentity := identityOf(v)
		if hasIdentity {
			if idx, ok := e.seenRefs[key]; ok {
				return idx, nil
			}
		} else if reflect.TypeOf(v).Comparable() {
			if idx, ok := e.seenVals[v]; ok {
				return idx, nil
			}
		}

		// Reserve the index before recursing so a self-referential
		// instance encodes to its own index instead of recursing forever.
		idx := len(e.entries)
		e.entries = append(e.entries, nil)
		if hasIdentity {
			e.seenRefs[key] = idx
		} else if reflect.TypeOf(v).Comparable() {
			e.seenVals[v] = idx
		}

		e.path = append(e.path, ext.Name())
		payload, err := ext.Encode(v, e.add)
		e.path = e.path[:len(e.path)-1]
		if err != nil {
			return 0, err
		}
		e.entries[idx] = payload
		e.extIdx[i] = append(e.extIdx[i], idx)
		return idx, nil
	}

	switch vv := v.(type) {
	case []any:
		return e.addArray(vv)
	case map[string]any:
		return e.addObject(vv)
	}
	return 0, &UnsupportedValueError{Kind: fmt.Sprintf("%T", v), Path: strings.Join(e.path, ".")}
}

func (e *encodeState) addArray(arr []any) (int, error) {
	key, hasIdentity := identityOf(arr)
	if hasIdentity {
		if idx, ok := e.seenRefs[key]; ok {
			return idx, nil
		}
	}

	idx := len(e.entries)
	e.entries = append(e.entries, nil)
	if hasIdentity {
		e.seenRefs[key] = idx
	}

	ids := make([]int, len(arr))
	for i, el := range arr {
		e.path = append(e.path, strconv.Itoa(i))
		id, err := e.add(el)
		e.path = e.path[:len(e.path)-1]
		if err != nil {
			return 0, err
		}
		ids[i] = id
	}
	e.entries[idx] = ids
	return idx, nil
}

// addObject encodes a plain object. Keys are visited in sorted order: Go
// maps carry no insertion order, and a fixed order keeps the encoded shape
// deterministic across runs.
func (e *encodeState) addObject(obj map[string]any) (int, error) {
	key, hasIdentity := identityOf(obj)
	if hasIdentity {
		if idx, ok := e.seenRefs[key]; ok {
			return idx, nil
		}
	}

	idx := len(e.entries)
	e.entries = append(e.entries, nil)
	if hasIdentity {
		e.seenRefs[key] = idx
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	fields := make(map[string]int, len(obj))
	for _, k := range keys {
		e.path = append(e.path, k)
		id, err := e.add(obj[k])
		e.path = e.path[:len(e.path)-1]
		if err != nil {
			return 0, err
		}
		fields[k] = id
	}
	e.entries[idx] = fields
	return idx, nil
}

// serialize linearizes root into the flat wire form. Encoding is
// all-or-nothing: on error no partial output is returned.
func serialize(root any, exts []Extension) (*Serialized, error) {
	e := newEncodeState(exts)
	if _, err := e.add(root); err != nil {
		return nil, err
	}
	return &Serialized{Extensions: e.extIdx, Entries: e.entries}, nil
}
