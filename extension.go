package flatwire

import (
	"encoding/json"
	"fmt"
	"math"
)

// EncodeChild tracks a nested value during encoding and returns its assigned
// entry index. Extensions call it for every child value that must take part
// in deduplication and cycle handling.
type EncodeChild func(v any) (int, error)

// DecodeChild resolves an entry index to its reconstructed value during
// decoding.
type DecodeChild func(idx int) (any, error)

// Extension is a pluggable handler for a type that is not natively
// representable as a primitive, array or object.
//
// Check must be a pure predicate independent of reference identity. Encode
// reduces an instance to a JSON-safe payload, using child for any nested
// values. Decode rebuilds the instance from the raw payload.
//
// Extensions are tried in registration order; the first whose Check returns
// true claims the value. The order is part of the wire contract: the decoder
// must be configured with the same ordered extension list as the encoder.
type Extension interface {
	// Name returns the extension identifier (e.g. "time", "set", "map").
	Name() string

	// Check reports whether this extension owns the given runtime value.
	Check(v any) bool

	// Encode reduces the instance to a JSON-safe payload.
	Encode(v any, child EncodeChild) (any, error)

	// Decode reconstructs the instance from the raw payload.
	Decode(payload any, child DecodeChild) (any, error)
}

// Builtin returns the builtin extension list: time, set, map, in that order.
// The returned slice is freshly allocated and may be reordered or extended
// by the caller, with the wire-contract caveat documented on Extension.
func Builtin() []Extension {
	return []Extension{timeExtension{}, setExtension{}, mapExtension{}}
}

// Indices interprets an extension payload as a flat list of entry indices.
// It accepts the typed form produced by the encoder ([]int) as well as the
// loose forms produced by the wire codecs ([]any of numbers).
func Indices(payload any) ([]int, error) {
	switch p := payload.(type) {
	case []int:
		return p, nil
	case []any:
		out := make([]int, len(p))
		for i, el := range p {
			n, ok := asIndex(el)
			if !ok {
				return nil, fmt.Errorf("flatwire: payload element %d is not an index (%T)", i, el)
			}
			out[i] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("flatwire: payload is not an index list (%T)", payload)
	}
}

// IndexPairs interprets an extension payload as a list of [key, value] entry
// index pairs, accepting both the typed encoder form and wire-decoded forms.
func IndexPairs(payload any) ([][2]int, error) {
	switch p := payload.(type) {
	case [][2]int:
		return p, nil
	case []any:
		out := make([][2]int, len(p))
		for i, el := range p {
			pair, err := Indices(el)
			if err != nil {
				return nil, err
			}
			if len(pair) != 2 {
				return nil, fmt.Errorf("flatwire: payload element %d is not an index pair", i)
			}
			out[i] = [2]int{pair[0], pair[1]}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("flatwire: payload is not an index pair list (%T)", payload)
	}
}

// asIndex converts the numeric representations the wire codecs produce into
// an entry index. Fractional or negative numbers are rejected.
func asIndex(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, n >= 0
	case int64:
		return int(n), n >= 0
	case uint64:
		return int(n), n <= math.MaxInt
	case float64:
		if n < 0 || n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil || i < 0 {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}
