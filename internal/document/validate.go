package document

import (
	"bytes"
	"context"

	"github.com/localnerve/casedocs/internal/types"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ContentValidator is the collaborator that checks a candidate JSON
// instance against a schema. Invoked on create and content modification,
// never inside the query compiler.
type ContentValidator interface {
	Validate(ctx context.Context, schema, content []byte) error
}

// SchemaValidator is the default validator, backed by a JSON Schema
// compiler. Schemas are compiled per call; definitions change rarely enough
// that hosts wanting a cache can wrap this.
type SchemaValidator struct{}

// Validate compiles the schema and validates content against it.
func (SchemaValidator) Validate(_ context.Context, schema, content []byte) error {
	schemaDoc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schema))
	if err != nil {
		return types.NewValidationError("schema is not valid JSON: %v", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("definition.schema.json", schemaDoc); err != nil {
		return types.NewValidationError("schema does not compile: %v", err)
	}
	compiled, err := compiler.Compile("definition.schema.json")
	if err != nil {
		return types.NewValidationError("schema does not compile: %v", err)
	}

	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(content))
	if err != nil {
		return types.NewValidationError("content is not valid JSON: %v", err)
	}
	if err := compiled.Validate(instance); err != nil {
		return types.NewValidationError("content does not conform to schema: %v", err)
	}
	return nil
}

// NoopValidator skips instance validation entirely, for hosts that validate
// upstream.
type NoopValidator struct{}

func (NoopValidator) Validate(context.Context, []byte, []byte) error {
	return nil
}
