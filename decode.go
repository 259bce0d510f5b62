package flatwire

import "fmt"

// decodeState holds the call-local state of one Deserialize invocation.
type decodeState struct {
	entries []any

	// extFor maps an entry index to the extension that produced it,
	// reconstructed from the serialized extension index lists.
	extFor map[int]Extension

	// resolved memoizes reconstructed values by entry index. Containers
	// are inserted before their children are resolved, mirroring the
	// encoder's placeholder strategy; that pre-insertion is what makes
	// cycles terminate.
	resolved map[int]any

	// resolving tracks extension entries currently being decoded. An
	// extension cannot publish its instance before Decode returns, so a
	// cycle that passes through an extension entry is unresolvable.
	resolving map[int]bool
}

func (d *decodeState) resolve(idx int) (any, error) {
	if idx < 0 || idx >= len(d.entries) {
		return nil, &MalformedError{Index: idx, Reason: fmt.Sprintf("index out of range [0, %d)", len(d.entries))}
	}
	if v, ok := d.resolved[idx]; ok {
		return v, nil
	}

	if ext, ok := d.extFor[idx]; ok {
		if d.resolving[idx] {
			return nil, &MalformedError{Index: idx, Reason: fmt.Sprintf("unresolvable cycle through %q extension entry", ext.Name())}
		}
		d.resolving[idx] = true
		v, err := ext.Decode(d.entries[idx], d.resolve)
		delete(d.resolving, idx)
		if err != nil {
			return nil, err
		}
		d.resolved[idx] = v
		return v, nil
	}

	entry := d.entries[idx]
	if isPrimitive(entry) {
		d.resolved[idx] = entry
		return entry, nil
	}

	if ids, ok := asIndexList(entry); ok {
		arr := make([]any, len(ids))
		d.resolved[idx] = arr
		for i, id := range ids {
			v, err := d.resolve(id)
			if err != nil {
				return nil, err
			}
			arr[i] = v
		}
		return arr, nil
	}

	if fields, ok := asIndexMap(entry); ok {
		obj := make(map[string]any, len(fields))
		d.resolved[idx] = obj
		for k, id := range fields {
			v, err := d.resolve(id)
			if err != nil {
				return nil, err
			}
			obj[k] = v
		}
		return obj, nil
	}

	return nil, &MalformedError{Index: idx, Reason: fmt.Sprintf("entry has unrecognized shape (%T)", entry)}
}

// deserialize reconstructs the value graph from its flat wire form.
// Decoding is all-or-nothing: on error no partial graph is returned.
func deserialize(s *Serialized, exts []Extension) (any, error) {
	if s == nil || len(s.Entries) == 0 {
		return nil, &MalformedError{Index: -1, Reason: "empty entry table"}
	}
	if len(s.Extensions) > len(exts) {
		return nil, &MalformedError{Index: -1, Reason: fmt.Sprintf("%d extension index lists but only %d registered extensions", len(s.Extensions), len(exts))}
	}

	d := &decodeState{
		entries:   s.Entries,
		extFor:    make(map[int]Extension),
		resolved:  make(map[int]any),
		resolving: make(map[int]bool),
	}
	for pos, ids := range s.Extensions {
		for _, id := range ids {
			if id < 0 || id >= len(s.Entries) {
				return nil, &MalformedError{Index: id, Reason: fmt.Sprintf("extension index list %d references out-of-range entry", pos)}
			}
			d.extFor[id] = exts[pos]
		}
	}

	return d.resolve(0)
}
