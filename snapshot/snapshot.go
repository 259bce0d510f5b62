// Package snapshot defines persistence for serialized value graphs.
//
// A Snapshot is an encoded graph payload plus storage metadata (codec name,
// version, timestamps). Stores persist snapshots by (namespace, key) with
// server-side version increments, so callers can keep point-in-time copies
// of application state and detect changes cheaply by version.
//
// Backends live in their own packages (memory, sqlite, postgres, mongodb,
// file, multi); Manager couples a store with a graph codec and an LRU cache
// of decoded graphs.
package snapshot

import (
	"time"

	"github.com/rbaliyan/flatwire"
	"github.com/rbaliyan/flatwire/codec"
)

// Snapshot is one stored rendition of a serialized value graph.
type Snapshot struct {
	// Payload is the wire-encoded serialized form.
	Payload []byte

	// Codec names the byte codec the payload was encoded with.
	Codec string

	// Version is incremented by the store on every write. Zero on
	// snapshots that have not been stored yet.
	Version int64

	// CreatedAt and UpdatedAt are set by the store.
	CreatedAt time.Time
	UpdatedAt time.Time

	// EntryID is the backend storage identifier, used for pagination.
	// Not meaningful to end-user code.
	EntryID string
}

// New encodes root with the given graph codec and wraps the result in an
// unstored Snapshot.
func New(c *flatwire.Codec, root any) (*Snapshot, error) {
	if c == nil {
		c = flatwire.Default()
	}
	payload, err := c.Marshal(root)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Payload: payload, Codec: c.WireCodec().Name()}, nil
}

// Decode reconstructs the value graph held by the snapshot.
func (s *Snapshot) Decode(c *flatwire.Codec) (any, error) {
	if c == nil {
		c = flatwire.Default()
	}
	wc := codec.Get(s.Codec)
	if wc == nil {
		return nil, &StoreError{Op: "decode", Backend: "snapshot", Err: ErrCodecNotFound}
	}
	var ser flatwire.Serialized
	if err := wc.Decode(s.Payload, &ser); err != nil {
		return nil, err
	}
	return c.Deserialize(&ser)
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	clone := *s
	if s.Payload != nil {
		clone.Payload = make([]byte, len(s.Payload))
		copy(clone.Payload, s.Payload)
	}
	return &clone
}
