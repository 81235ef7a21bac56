package extract

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// presetsSchema describes the presets file after TOML decoding.
func presetsSchema() map[string]any {
	intRange := func(min, max int) map[string]any {
		return map[string]any{"type": "integer", "minimum": min, "maximum": max}
	}
	region := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"left", "top", "right", "bottom"},
		"properties": map[string]any{
			"left":   map[string]any{"type": "integer"},
			"top":    map[string]any{"type": "integer"},
			"right":  map[string]any{"type": "integer"},
			"bottom": map[string]any{"type": "integer"},
		},
	}
	field := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"name", "pattern"},
		"properties": map[string]any{
			"name":    map[string]any{"type": "string", "minLength": 1},
			"pattern": map[string]any{"type": "string", "minLength": 1},
			"label":   map[string]any{"type": "string"},
			"kind":    map[string]any{"enum": []string{"auto", "text", "process_number", "currency"}},
		},
	}
	mode := map[string]any{"enum": []string{"line", "label"}}

	preset := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"name"},
		"properties": map[string]any{
			"name":        map[string]any{"type": "string", "minLength": 1},
			"base":        map[string]any{"type": "string"},
			"page_index":  intRange(0, 1<<16),
			"dpi":         intRange(50, 1200),
			"policy":      map[string]any{"enum": []string{"fallback", "always", "never"}},
			"text_mode":   mode,
			"ocr_mode":    mode,
			"ocr_timeout": map[string]any{"type": "string", "pattern": `^[0-9]+(\.[0-9]+)?(ms|s|m|h)$`},
			"regions":     map[string]any{"type": "array", "items": region},
			"fields":      map[string]any{"type": "array", "items": field},
			"enhance": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"threshold":    intRange(0, 255),
					"skip":         map[string]any{"type": "boolean"},
					"sharpen_only": map[string]any{"type": "boolean"},
				},
			},
			"ocr": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"language":                   map[string]any{"type": "string", "minLength": 1},
					"psm":                        intRange(0, 13),
					"oem":                        intRange(0, 3),
					"whitelist":                  map[string]any{"type": "string"},
					"preserve_interword_spacing": map[string]any{"type": "boolean"},
				},
			},
		},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"preset"},
		"properties": map[string]any{
			"preset": map[string]any{"type": "array", "minItems": 1, "items": preset},
		},
	}
}

// ValidatePresetsJSON validates a presets document against the schema.
func ValidatePresetsJSON(data []byte) error {
	b, err := json.Marshal(presetsSchema())
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("presets.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("presets.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal presets: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("presets do not match schema: %w", err)
	}
	return nil
}
