package flatwire

import (
	"errors"
	"fmt"
)

// Sentinel errors for codec operations.
// Use errors.Is() to check for these errors as they may be wrapped.
var (
	// ErrUnsupportedValue is returned during encode when a value has no
	// primitive, extension, array or object representation.
	ErrUnsupportedValue = errors.New("flatwire: unsupported value")

	// ErrMalformed is returned during decode when the serialized form is
	// structurally invalid (empty entry table, out-of-range index, entry
	// of an unrecognized shape).
	ErrMalformed = errors.New("flatwire: malformed serialized data")
)

// UnsupportedValueError provides details about a value the encoder rejected.
// Encoding is all-or-nothing: when this error is returned no partial output
// is produced.
type UnsupportedValueError struct {
	// Kind describes the runtime type of the offending value.
	Kind string

	// Path locates the value within the root graph: object keys, array
	// indices and extension names joined with dots. Empty when the root
	// itself is the offending value.
	Path string
}

func (e *UnsupportedValueError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("flatwire: cannot encode value of type %s", e.Kind)
	}
	return fmt.Sprintf("flatwire: cannot encode value of type %s at %s", e.Kind, e.Path)
}

func (e *UnsupportedValueError) Unwrap() error {
	return ErrUnsupportedValue
}

// IsUnsupportedValue checks if an error indicates an unencodable value.
func IsUnsupportedValue(err error) bool {
	return errors.Is(err, ErrUnsupportedValue)
}

// MalformedError provides details about invalid serialized data.
// Decoding is all-or-nothing: no partial graph is ever returned.
type MalformedError struct {
	// Index is the entry index at which decoding failed, or -1 when the
	// failure is not tied to a single entry.
	Index int

	// Reason describes the structural problem.
	Reason string
}

func (e *MalformedError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("flatwire: malformed data: %s", e.Reason)
	}
	return fmt.Sprintf("flatwire: malformed data at entry %d: %s", e.Index, e.Reason)
}

func (e *MalformedError) Unwrap() error {
	return ErrMalformed
}

// IsMalformed checks if an error indicates structurally invalid input.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformed)
}
