package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// CompileSchema compiles schemaMap into a reusable validator.
func CompileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ValidateJSON decodes data and validates it against schema, returning the decoded value.
func ValidateJSON(schema *jsonschema.Schema, data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("unmarshal data: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("unmarshal data: trailing content after JSON value")
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("json does not match schema: %w", err)
	}
	return v, nil
}

var (
	noteSchemaOnce sync.Once
	noteSchema     *jsonschema.Schema
	noteSchemaErr  error
)

func compiledNoteSchema() (*jsonschema.Schema, error) {
	noteSchemaOnce.Do(func() {
		noteSchema, noteSchemaErr = CompileSchema(BuildNoteJSONSchema())
	})
	return noteSchema, noteSchemaErr
}
