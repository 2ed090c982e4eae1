package agent

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaValidator compiles and caches each tool's JSON Schema so a tool
// call's arguments can be validated against it before PreValidate runs,
// per SPEC_FULL.md §11 (tool parameter validation via jsonschema/v5).
// Grounded on pkg/pluginsdk/validation.go's compileSchema cache pattern.
type schemaValidator struct {
	mu     sync.Mutex
	cached map[string]*jsonschema.Schema
}

func newSchemaValidator() *schemaValidator {
	return &schemaValidator{cached: make(map[string]*jsonschema.Schema)}
}

// Validate compiles (once, cached) the tool's schema and checks args
// against it, returning a human-readable error on mismatch.
func (v *schemaValidator) Validate(toolName string, schema, args []byte) error {
	compiled, err := v.compiled(toolName, schema)
	if err != nil {
		// A tool with a malformed schema should not block execution; the
		// schema is this repo's own static declaration, not model input.
		return nil
	}
	var doc any
	if err := json.Unmarshal(args, &doc); err != nil {
		return fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	if err := compiled.Validate(doc); err != nil {
		return fmt.Errorf("arguments do not match tool schema: %w", err)
	}
	return nil
}

func (v *schemaValidator) compiled(toolName string, schema []byte) (*jsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if s, ok := v.cached[toolName]; ok {
		return s, nil
	}
	compiled, err := jsonschema.CompileString(toolName+".schema.json", string(schema))
	if err != nil {
		return nil, err
	}
	v.cached[toolName] = compiled
	return compiled, nil
}
