package flatwire

import (
	"encoding/json"
	"fmt"
)

// Serialized is the flat wire form of an encoded value graph.
//
// Extensions holds, per registered extension (by position), the entry
// indices that extension produced, in ascending first-seen order. Entries is
// the entry table; Entries[0] is the root value. The serialized form is a
// transient wire artifact produced once per Serialize call and consumed once
// per Deserialize call.
//
// In JSON it marshals to the canonical two-element array
// [extensionIndexLists, entries]. YAML and TOML render it as a two-field
// document via the struct tags, since those formats cannot express a
// top-level heterogeneous array.
type Serialized struct {
	Extensions [][]int `yaml:"extensions" toml:"extensions"`
	Entries    []any   `yaml:"entries" toml:"entries"`
}

// MarshalJSON renders the canonical [extensionIndexLists, entries] array.
func (s *Serialized) MarshalJSON() ([]byte, error) {
	exts := s.Extensions
	if exts == nil {
		exts = [][]int{}
	}
	entries := s.Entries
	if entries == nil {
		entries = []any{}
	}
	return json.Marshal([2]any{exts, entries})
}

// UnmarshalJSON parses the canonical two-element array form.
func (s *Serialized) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("flatwire: invalid wire form: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("flatwire: invalid wire form: expected 2 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &s.Extensions); err != nil {
		return fmt.Errorf("flatwire: invalid extension index lists: %w", err)
	}
	if err := json.Unmarshal(raw[1], &s.Entries); err != nil {
		return fmt.Errorf("flatwire: invalid entry table: %w", err)
	}
	return nil
}

// asIndexList interprets an entry as an array entry (a list of child entry
// indices). It recognizes the typed form the encoder produces and the loose
// forms the wire codecs produce. ok is false when the entry is not index
// shaped, which the decoder reports as malformed.
func asIndexList(entry any) ([]int, bool) {
	switch e := entry.(type) {
	case []int:
		return e, true
	case []any:
		out := make([]int, len(e))
		for i, el := range e {
			n, ok := asIndex(el)
			if !ok {
				return nil, false
			}
			out[i] = n
		}
		return out, true
	default:
		return nil, false
	}
}

// asIndexMap interprets an entry as an object entry (field name to child
// entry index).
func asIndexMap(entry any) (map[string]int, bool) {
	switch e := entry.(type) {
	case map[string]int:
		return e, true
	case map[string]any:
		out := make(map[string]int, len(e))
		for k, el := range e {
			n, ok := asIndex(el)
			if !ok {
				return nil, false
			}
			out[k] = n
		}
		return out, true
	default:
		return nil, false
	}
}
