// Package bind maps decoded value graphs onto Go structs. It sits on top of
// the flatwire codec: Unmarshal reconstructs the graph, bind flattens it into
// struct fields with optional schema validation.
//
// Decoded graphs can carry shared references freely; binding duplicates them.
// Cyclic graphs cannot be flattened and are rejected with ErrCyclicValue
// before any field is written.
package bind

import (
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/rbaliyan/flatwire"
)

// Binder binds decoded value graphs to structs.
type Binder struct {
	codec      *flatwire.Codec
	tagName    string
	strict     bool
	validators []Validator
	hooks      []mapstructure.DecodeHookFunc
}

// New creates a new Binder.
func New(opts ...Option) *Binder {
	b := &Binder{
		codec:   flatwire.Default(),
		tagName: "mapstructure",
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Bind maps a decoded value graph onto target, which must be a non-nil
// pointer to a struct. Validators run against the decoded graph before any
// field is written; a validation failure leaves target untouched.
func (b *Binder) Bind(decoded any, target any) error {
	if err := checkCycles(decoded); err != nil {
		return err
	}

	for _, v := range b.validators {
		if err := v.Validate(decoded); err != nil {
			return err
		}
	}

	if err := b.decode(decoded, target); err != nil {
		return &BindError{Op: "decode", Err: err}
	}

	return nil
}

// Unmarshal decodes wire data with the configured codec and binds the
// resulting graph onto target.
func (b *Binder) Unmarshal(data []byte, target any) error {
	decoded, err := b.codec.Unmarshal(data)
	if err != nil {
		return err
	}
	return b.Bind(decoded, target)
}

// Codec returns the codec used by Unmarshal.
func (b *Binder) Codec() *flatwire.Codec {
	return b.codec
}

// decode uses mapstructure to decode a raw value into a target struct.
func (b *Binder) decode(input, output any) error {
	hooks := []mapstructure.DecodeHookFunc{
		flatContainerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToTimeHookFunc(time.RFC3339),
		mapstructure.TextUnmarshallerHookFunc(),
	}
	hooks = append(hooks, b.hooks...)

	config := &mapstructure.DecoderConfig{
		Result:           output,
		TagName:          b.tagName,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(hooks...),
		ErrorUnused:      b.strict,
	}

	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return err
	}

	return decoder.Decode(input)
}

// flatContainerHookFunc converts Set and Map containers into the plain
// slices and maps mapstructure understands. Map keys must be strings to
// land in a struct; non-string keys pass through untouched and fail later
// with a type error.
func flatContainerHookFunc() mapstructure.DecodeHookFunc {
	return func(_, _ reflect.Type, data any) (any, error) {
		switch v := data.(type) {
		case *flatwire.Set:
			if v == nil {
				return data, nil
			}
			return v.Values(), nil
		case *flatwire.Map:
			if v == nil {
				return data, nil
			}
			out := make(map[string]any, v.Len())
			ok := true
			v.Range(func(key, value any) bool {
				s, isStr := key.(string)
				if !isStr {
					ok = false
					return false
				}
				out[s] = value
				return true
			})
			if !ok {
				return data, nil
			}
			return out, nil
		}
		return data, nil
	}
}
