package bind

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// JSONSchemaValidator validates decoded graphs against a JSON Schema.
//
// Validation normalizes the value through encoding/json, so the graph must
// be acyclic and limited to JSON-expressible values. Set and Map containers
// are not JSON-expressible and fail normalization.
type JSONSchemaValidator struct {
	schema *jsonschema.Schema
}

// NewJSONSchemaValidator creates a new JSON Schema validator.
// The schema should be valid JSON Schema bytes.
func NewJSONSchemaValidator(schemaBytes []byte) (*JSONSchemaValidator, error) {
	compiler := jsonschema.NewCompiler()

	if err := compiler.AddResource("schema.json", bytes.NewReader(schemaBytes)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}

	return &JSONSchemaValidator{schema: schema}, nil
}

// MustNewJSONSchemaValidator creates a new JSON Schema validator and panics on error.
func MustNewJSONSchemaValidator(schemaBytes []byte) *JSONSchemaValidator {
	v, err := NewJSONSchemaValidator(schemaBytes)
	if err != nil {
		panic(err)
	}
	return v
}

// Validate validates a value against the JSON Schema.
func (v *JSONSchemaValidator) Validate(value any) error {
	// Round-trip through encoding/json so numbers and nested containers
	// carry the types the schema library expects.
	jsonBytes, err := json.Marshal(value)
	if err != nil {
		return &ValidationError{
			Value:  value,
			Reason: "failed to marshal value",
			Err:    err,
		}
	}

	var jsonValue any
	if err := json.Unmarshal(jsonBytes, &jsonValue); err != nil {
		return &ValidationError{
			Value:  value,
			Reason: "failed to unmarshal value",
			Err:    err,
		}
	}

	if err := v.schema.Validate(jsonValue); err != nil {
		return &ValidationError{
			Value:  value,
			Reason: "schema validation failed",
			Err:    err,
		}
	}

	return nil
}
