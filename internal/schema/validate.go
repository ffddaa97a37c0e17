package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator checks tool arguments against the structure of JSONSchema. It says
// nothing about whether values are well-formed dates, diagnoses and so on.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles JSONSchema.
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("add_to_database.json", bytes.NewReader(JSONSchema())); err != nil {
		return nil, fmt.Errorf("failed to load tool schema: %w", err)
	}
	compiled, err := compiler.Compile("add_to_database.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile tool schema: %w", err)
	}
	return &Validator{schema: compiled}, nil
}

// Validate reports whether args has the declared shape.
func (v *Validator) Validate(args map[string]any) error {
	// Normalise through JSON so values decoded from protobuf structs compare as
	// plain JSON types.
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to encode tool arguments: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to decode tool arguments: %w", err)
	}

	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("tool arguments do not match schema: %w", err)
	}
	return nil
}
