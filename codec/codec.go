// Package codec provides the pluggable byte codecs that render a serialized
// graph envelope to and from its on-wire or on-disk text form.
//
// JSON is the canonical wire format (the two-element [extensions, entries]
// array); YAML and TOML are offered for human-readable snapshot files. All
// codecs operate on any value so snapshot stores can also use them for
// their own envelopes.
package codec

import (
	"slices"
	"sync"
)

// Codec defines the interface for encoding and decoding wire envelopes.
type Codec interface {
	// Name returns the codec identifier (e.g., "json", "yaml").
	Name() string

	// Encode serializes a value to bytes.
	Encode(v any) ([]byte, error)

	// Decode deserializes bytes into the target.
	Decode(data []byte, v any) error
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Codec)
)

// Register adds a codec to the global registry.
// Panics if name is empty or codec is nil.
func Register(codec Codec) {
	if codec == nil {
		panic("codec: Register codec is nil")
	}
	name := codec.Name()
	if name == "" {
		panic("codec: Register codec name is empty")
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	registry[name] = codec
}

// Get retrieves a codec by name from the registry.
// Returns nil if not found.
func Get(name string) Codec {
	registryMu.RLock()
	defer registryMu.RUnlock()

	return registry[name]
}

// Names returns the sorted names of all registered codecs.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Default returns the default codec (JSON, the canonical wire format).
func Default() Codec {
	return Get("json")
}
