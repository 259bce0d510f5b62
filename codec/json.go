package codec

import (
	"encoding/json"
)

func init() {
	Register(&jsonCodec{})
}

// jsonCodec implements Codec using JSON encoding. Envelopes that implement
// json.Marshaler (like the serialized graph form) control their own shape,
// which is how the canonical [extensions, entries] array is produced.
type jsonCodec struct{}

// Compile-time interface check
var _ Codec = (*jsonCodec)(nil)

func (c *jsonCodec) Name() string {
	return "json"
}

func (c *jsonCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *jsonCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// JSON returns the JSON codec instance.
func JSON() Codec {
	return &jsonCodec{}
}
