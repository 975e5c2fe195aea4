package tool

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// ValidationError reports malformed tool input. A schema violation fails
// fast; the input never reaches the handler.
type ValidationError struct {
	Tool    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid input for tool %s: %s", e.Tool, e.Message)
}

// IsValidationError checks if an error is an input validation failure.
func IsValidationError(err error) bool {
	_, ok := err.(*ValidationError)
	return ok
}

// validator checks raw input against a tool's declared JSON schema.
type validator struct {
	resolved *jsonschema.Resolved
}

// newValidator compiles a tool's parameter schema. Tools with no schema or
// an uncompilable schema get a nil validator: dispatch proceeds unchecked
// rather than bricking the tool.
func newValidator(schemaJSON json.RawMessage) *validator {
	if len(schemaJSON) == 0 {
		return nil
	}

	var schema jsonschema.Schema
	if err := json.Unmarshal(schemaJSON, &schema); err != nil {
		return nil
	}

	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil
	}

	return &validator{resolved: resolved}
}

// validate checks raw input. A nil validator accepts everything.
func (v *validator) validate(toolID string, raw json.RawMessage) error {
	if v == nil {
		return nil
	}

	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return &ValidationError{Tool: toolID, Message: fmt.Sprintf("not valid JSON: %v", err)}
	}

	if err := v.resolved.Validate(instance); err != nil {
		return &ValidationError{Tool: toolID, Message: err.Error()}
	}

	return nil
}
