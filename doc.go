// Package flatwire serializes arbitrarily cyclic, reference-sharing value
// graphs into a flat, index-addressed form that survives any JSON-safe
// transport, and reconstructs them with exact reference topology.
//
// A value graph is linearized into an entry table: every distinct
// reference-bearing value (slice, map, special type) is assigned one integer
// index, and references between values are replaced by those indices. Two
// paths that reach the same runtime reference encode to the same index, so
// shared references and cycles round-trip faithfully. Index 0 is always the
// root value.
//
// The wire form is a two-element JSON array:
//
//	[extensionIndexLists, entries]
//
// where extensionIndexLists records, per registered extension, which entry
// indices that extension produced, and entries is the flat entry table.
// Each entry is a primitive stored verbatim, a list of child indices (array),
// a map from field name to child index (object), or an extension-defined
// payload.
//
// # Value model
//
// Supported inputs are nil, bool, string, integer and float primitives,
// []any, map[string]any, and the special types handled by the builtin
// extensions: time.Time, *Set and *Map. Primitives are deduplicated by
// value (they carry no identity); slices and maps are deduplicated by
// reference identity. nil is a directly storable primitive. Functions,
// channels, structs and other values are rejected with
// UnsupportedValueError.
//
// Plain map[string]any objects encode their keys in sorted order, since Go
// maps carry no insertion order; *Map preserves insertion order and admits
// non-string keys.
//
// # Extensions
//
// Special types plug in through the Extension interface: a Check predicate,
// an Encode that reduces an instance to a JSON-safe payload, and a Decode
// that rebuilds the instance. Extensions are tried in registration order and
// the first match wins. The registration order is part of the wire contract:
// decoding with a different extension list than was used to encode produces
// wrong results without any codec-level error.
//
// # Usage
//
//	shared := map[string]any{"v": 42}
//	root := map[string]any{"left": shared, "right": shared}
//
//	data, err := flatwire.Marshal(root)
//	...
//	out, err := flatwire.Unmarshal(data)
//	// out.(map[string]any)["left"] and ["right"] are the same map again
//
// Both Marshal and Unmarshal run synchronously to completion; the codec
// keeps no state across calls and a Codec is safe for concurrent use.
package flatwire
