package bind

import (
	"github.com/go-viper/mapstructure/v2"

	"github.com/rbaliyan/flatwire"
)

// Option configures the Binder.
type Option func(*Binder)

// WithCodec sets the codec used by Unmarshal.
func WithCodec(c *flatwire.Codec) Option {
	return func(b *Binder) {
		if c != nil {
			b.codec = c
		}
	}
}

// WithTagName sets the struct tag used for field mapping.
// Defaults to "mapstructure".
func WithTagName(tag string) Option {
	return func(b *Binder) {
		if tag != "" {
			b.tagName = tag
		}
	}
}

// WithStrict makes binding fail when the decoded graph carries keys that
// have no matching struct field.
func WithStrict() Option {
	return func(b *Binder) {
		b.strict = true
	}
}

// WithDecodeHook appends a custom mapstructure decode hook.
func WithDecodeHook(hook mapstructure.DecodeHookFunc) Option {
	return func(b *Binder) {
		if hook != nil {
			b.hooks = append(b.hooks, hook)
		}
	}
}

// WithValidator adds a validator to the binder.
// Multiple validators can be added and will be run in order.
func WithValidator(v Validator) Option {
	return func(b *Binder) {
		if v != nil {
			b.validators = append(b.validators, v)
		}
	}
}

// WithJSONSchema adds JSON Schema validation of the decoded graph.
// The schema must be valid JSON Schema bytes; an invalid schema makes the
// first Bind call fail with ErrInvalidSchema.
func WithJSONSchema(schema []byte) Option {
	return func(b *Binder) {
		v, err := NewJSONSchemaValidator(schema)
		if err != nil {
			b.validators = append(b.validators, ValidatorFunc(func(any) error {
				return err
			}))
			return
		}
		b.validators = append(b.validators, v)
	}
}
