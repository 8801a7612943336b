package actionplan

import (
	"fmt"
	"sort"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/voxbridge/voicecore/internal/types"
)

// schemaLoader is built once from AllowedActionTypes and reused across
// calls; gojsonschema compiles the schema document on first use.
var (
	schemaOnce   sync.Once
	schema       *gojsonschema.Schema
	schemaBuildErr error
)

// allowedTypeList returns AllowedActionTypes's members in a stable order,
// for a deterministic schema document (map iteration order is not).
func allowedTypeList() []string {
	allowed := make([]string, 0, len(types.AllowedActionTypes))
	for t := range types.AllowedActionTypes {
		allowed = append(allowed, string(t))
	}
	sort.Strings(allowed)
	return allowed
}

func buildSchema() (*gojsonschema.Schema, error) {
	document := map[string]any{
		"type":     "object",
		"required": []string{"tenant_id", "intent", "steps"},
		"properties": map[string]any{
			"tenant_id": map[string]any{"type": "string", "minLength": 1},
			"intent":    map[string]any{"type": "string", "minLength": 1},
			"steps": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"type"},
					"properties": map[string]any{
						"type": map[string]any{
							"type": "string",
							"enum": allowedTypeList(),
						},
						"condition": map[string]any{
							"type": "string",
							"enum": []string{"always", "if_previous_success", "if_previous_failed", ""},
						},
					},
				},
			},
		},
	}
	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(document))
}

// ValidateJSON checks raw plan JSON against the allowlisted-step-type
// schema before it is unmarshaled into an ActionPlan. This is the schema
// form of the same allowlist Validate enforces on an already-parsed
// ActionPlan; it exists for callers that receive a plan as JSON from an
// external boundary and want to reject malformed or disallowed plans
// before paying for a full unmarshal.
func ValidateJSON(raw []byte) error {
	schemaOnce.Do(func() {
		schema, schemaBuildErr = buildSchema()
	})
	if schemaBuildErr != nil {
		return fmt.Errorf("actionplan: build schema: %w", schemaBuildErr)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("actionplan: schema validate: %w", err)
	}
	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("actionplan: schema validation failed: %s", errs[0].String())
		}
		return fmt.Errorf("actionplan: plan failed schema validation")
	}
	return nil
}
