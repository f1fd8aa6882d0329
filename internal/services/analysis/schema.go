package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/jobcopilot/internal/parser/jobdesc"
)

// BuildExtractedJSONSchema describes the extracted document we are willing to persist.
func BuildExtractedJSONSchema() map[string]any {
	skillList := map[string]any{
		"type":        "array",
		"items":       map[string]any{"type": "string", "enum": jobdesc.Skills()},
		"uniqueItems": true,
	}
	props := map[string]any{
		"seniority":        map[string]any{"type": "string", "enum": jobdesc.Seniorities()},
		"domain":           map[string]any{"type": "string", "enum": jobdesc.Domains()},
		"required_skills":  skillList,
		"preferred_skills": skillList,
		"tech_stack":       skillList,
		"responsibilities": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string", "minLength": 1},
		},
		"signals": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"seniority_reason": map[string]any{"type": "string"},
				"domain_reason":    map[string]any{"type": "string"},
			},
			"additionalProperties": false,
		},
		"raw": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"skill_mentions": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"name":  map[string]any{"type": "string", "enum": jobdesc.Skills()},
							"count": map[string]any{"type": "integer", "minimum": 1},
						},
						"required":             []string{"name", "count"},
						"additionalProperties": false,
					},
				},
			},
			"additionalProperties": false,
		},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             []string{"seniority", "domain"},
	}
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("extracted.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("extracted.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// validateDocument round-trips v through JSON and checks it against schema.
func validateDocument(schema *jsonschema.Schema, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("unmarshal document: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
