package flatwire

import (
	"github.com/rbaliyan/flatwire/codec"
)

// Codec serializes and deserializes value graphs. The zero configuration
// (via New with no options) uses the builtin extensions and the JSON wire
// codec.
//
// A Codec is immutable after construction and safe for concurrent use; each
// Serialize/Deserialize call keeps all of its state call-local.
type Codec struct {
	exts []Extension
	wire codec.Codec
}

// Option configures a Codec during construction.
type Option func(*Codec)

// WithExtensions replaces the extension list. Order matters: it determines
// both encode-time dispatch and the positional wire contract.
func WithExtensions(exts ...Extension) Option {
	return func(c *Codec) {
		c.exts = exts
	}
}

// WithExtension appends an extension after the already-configured ones.
func WithExtension(ext Extension) Option {
	return func(c *Codec) {
		if ext != nil {
			c.exts = append(c.exts, ext)
		}
	}
}

// WithWireCodec sets the byte codec used by Marshal and Unmarshal.
func WithWireCodec(wc codec.Codec) Option {
	return func(c *Codec) {
		if wc != nil {
			c.wire = wc
		}
	}
}

// New creates a Codec with the builtin extensions and JSON wire codec,
// then applies the given options.
func New(opts ...Option) *Codec {
	c := &Codec{
		exts: Builtin(),
		wire: codec.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WireCodec returns the byte codec used by Marshal and Unmarshal.
func (c *Codec) WireCodec() codec.Codec { return c.wire }

// Extensions returns the configured extension list. The returned slice is a
// copy.
func (c *Codec) Extensions() []Extension {
	out := make([]Extension, len(c.exts))
	copy(out, c.exts)
	return out
}

// Serialize linearizes root into its flat wire form. Every distinct
// reference-bearing value gets exactly one entry; repeated references and
// cycles resolve to already-assigned indices. Returns UnsupportedValueError
// for values outside the supported model.
func (c *Codec) Serialize(root any) (*Serialized, error) {
	return serialize(root, c.exts)
}

// Deserialize reconstructs the value graph from its flat wire form,
// restoring the exact reference topology: entries reached through multiple
// paths decode to the same runtime reference. Returns MalformedError for
// structurally invalid input; extension decode errors propagate as-is.
func (c *Codec) Deserialize(s *Serialized) (any, error) {
	return deserialize(s, c.exts)
}

// Marshal serializes root and encodes the result with the wire codec.
func (c *Codec) Marshal(root any) ([]byte, error) {
	s, err := c.Serialize(root)
	if err != nil {
		return nil, err
	}
	return c.wire.Encode(s)
}

// Unmarshal decodes data with the wire codec and reconstructs the value
// graph.
func (c *Codec) Unmarshal(data []byte) (any, error) {
	s := new(Serialized)
	if err := c.wire.Decode(data, s); err != nil {
		return nil, err
	}
	return c.Deserialize(s)
}

// defaultCodec backs the package-level convenience functions.
var defaultCodec = New()

// Default returns the shared default Codec (builtin extensions, JSON wire
// codec).
func Default() *Codec { return defaultCodec }

// Marshal serializes root with the default Codec.
func Marshal(root any) ([]byte, error) { return defaultCodec.Marshal(root) }

// Unmarshal reconstructs a value graph with the default Codec.
func Unmarshal(data []byte) (any, error) { return defaultCodec.Unmarshal(data) }

// Serialize linearizes root with the default Codec.
func Serialize(root any) (*Serialized, error) { return defaultCodec.Serialize(root) }

// Deserialize reconstructs a value graph with the default Codec.
func Deserialize(s *Serialized) (any, error) { return defaultCodec.Deserialize(s) }
