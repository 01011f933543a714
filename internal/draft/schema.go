package draft

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildSpecDraftSchema returns the JSON-Schema (draft 2020-12 subset) the
// lock step validates ParsedSpecDraft payloads against.
func BuildSpecDraftSchema() map[string]any {
	criterion := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"acCode":      map[string]any{"type": "string", "pattern": `^[PMD]\d{1,2}$`},
			"gradeBand":   map[string]any{"type": "string", "enum": []string{"PASS", "MERIT", "DISTINCTION"}},
			"description": map[string]any{"type": "string"},
		},
		"required": []string{"acCode", "gradeBand", "description"},
	}
	lo := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"loCode":           map[string]any{"type": "string", "pattern": `^LO\d{1,2}$`},
			"description":      map[string]any{"type": "string"},
			"essentialContent": map[string]any{"type": "string"},
			"criteria":         map[string]any{"type": "array", "items": criterion},
		},
		"required": []string{"loCode", "description", "criteria"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"unit": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"unitCode":  map[string]any{"type": "string"},
					"unitTitle": map[string]any{"type": "string"},
					"level":     map[string]any{"type": "integer"},
					"credits":   map[string]any{"type": "integer"},
					"specIssue": map[string]any{"type": "string"},
				},
				"required": []string{"unitCode", "unitTitle"},
			},
			"learningOutcomes": map[string]any{"type": "array", "items": lo},
		},
		"required": []string{"unit", "learningOutcomes"},
	}
}

// BuildBriefDraftSchema returns the schema for ParsedBriefDraft payloads.
func BuildBriefDraftSchema() map[string]any {
	part := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"key":  map[string]any{"type": "string", "pattern": `^[a-z](\.(i|ii|iii|iv|v|vi|vii|viii|ix|x))?$`},
			"text": map[string]any{"type": "string"},
		},
		"required": []string{"key", "text"},
	}
	task := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"n":     map[string]any{"type": "integer", "minimum": 1},
			"label": map[string]any{"type": "string"},
			"title": map[string]any{"type": "string"},
			"pages": map[string]any{"type": "array", "items": map[string]any{"type": "integer"}},
			"text":  map[string]any{"type": "string"},
			"parts": map[string]any{"type": "array", "items": part},
		},
		"required": []string{"n", "label", "text"},
	}
	table := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"kind":    map[string]any{"type": "string", "enum": []string{TableKindStructured, TableKindUnstructured}},
			"caption": map[string]any{"type": "string"},
			"headers": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"rows": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			},
			"text":    map[string]any{"type": "string"},
			"warning": map[string]any{"type": "string"},
		},
		"required": []string{"kind"},
	}
	header := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"qualification":      map[string]any{"type": "string"},
			"unitNumberAndTitle": map[string]any{"type": "string"},
			"assignmentTitle":    map[string]any{"type": "string"},
			"assessor":           map[string]any{"type": "string"},
			"internalVerifier":   map[string]any{"type": "string"},
			"issueDate":          map[string]any{"type": "string"},
			"submissionDate":     map[string]any{"type": "string"},
			"academicYear":       map[string]any{"type": "string"},
		},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"header":                 header,
			"tasks":                  map[string]any{"type": "array", "items": task},
			"tables":                 map[string]any{"type": "array", "items": table},
			"detectedCriterionCodes": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"endMatter":              map[string]any{"type": "string"},
			"warnings":               map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"header", "tasks", "detectedCriterionCodes"},
	}
}

// ValidateAgainstSchema validates data against schemaMap.
func ValidateAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// MarshalSpecDraft serializes and self-validates a spec draft before it is
// handed to the lock step.
func MarshalSpecDraft(d ParsedSpecDraft) ([]byte, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	if err := ValidateAgainstSchema(BuildSpecDraftSchema(), b); err != nil {
		return nil, err
	}
	return b, nil
}

// MarshalBriefDraft serializes and self-validates a brief draft.
func MarshalBriefDraft(d ParsedBriefDraft) ([]byte, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	if err := ValidateAgainstSchema(BuildBriefDraftSchema(), b); err != nil {
		return nil, err
	}
	return b, nil
}
