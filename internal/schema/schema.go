// Package schema maps profile field declarations to the structured-output
// schema sent with the generation request, and to a JSON Schema used to
// validate the response locally. Both functions are pure.
package schema

import (
	"sort"
	"strings"

	"github.com/paperflow/paperflow/internal/config"
)

// Build converts field declarations into the generative-API response schema.
// Every declared field is required, at every nesting level.
func Build(fields map[string]*config.FieldSpec) map[string]any {
	props := make(map[string]any, len(fields))
	required := make([]string, 0, len(fields))
	for name, f := range fields {
		props[name] = mapField(f)
		required = append(required, name)
	}
	sort.Strings(required)

	return map[string]any{
		"type":       "OBJECT",
		"properties": props,
		"required":   required,
	}
}

func mapField(f *config.FieldSpec) map[string]any {
	kind := strings.ToLower(strings.TrimSpace(f.Type))

	if kind == "object" {
		if len(f.Properties) == 0 {
			// Untyped placeholder when no structure is declared.
			return map[string]any{"type": "OBJECT", "description": f.Description}
		}
		props := make(map[string]any, len(f.Properties))
		required := make([]string, 0, len(f.Properties))
		for name, nested := range f.Properties {
			props[name] = mapField(nested)
			required = append(required, name)
		}
		sort.Strings(required)
		return map[string]any{
			"type":        "OBJECT",
			"description": f.Description,
			"properties":  props,
			"required":    required,
		}
	}

	if kind == "list" || kind == "array" {
		var items map[string]any
		if f.Items != nil {
			items = mapField(f.Items)
		} else {
			items = map[string]any{"type": "STRING"}
		}
		return map[string]any{
			"type":        "ARRAY",
			"description": f.Description,
			"items":       items,
		}
	}

	// Legacy syntax: list[string], list[object], ...
	if inner, ok := strings.CutPrefix(kind, "list["); ok && strings.HasSuffix(inner, "]") {
		inner = strings.TrimSuffix(inner, "]")
		if inner == "object" && f.Items != nil {
			return map[string]any{
				"type":        "ARRAY",
				"description": f.Description,
				"items":       mapField(f.Items),
			}
		}
		return map[string]any{
			"type":        "ARRAY",
			"description": f.Description,
			"items":       mapSimple(inner, ""),
		}
	}

	return mapSimple(kind, f.Description)
}

func mapSimple(kind, description string) map[string]any {
	var t string
	switch kind {
	case "string":
		t = "STRING"
	case "integer", "int":
		t = "INTEGER"
	case "number", "float":
		t = "NUMBER"
	case "boolean", "bool":
		t = "BOOLEAN"
	default:
		// Unrecognized kinds degrade to string.
		t = "STRING"
	}
	return map[string]any{"type": t, "description": description}
}

// JSONSchema lowers the same field tree to a draft-2020-12 shape suitable for
// local validation of the model output. Structure and required-ness mirror
// Build; descriptions are omitted since they carry no constraint. Every type
// also admits null: the model emits null for absent values and the pipeline
// tolerates that, so null must not count as a shape violation.
func JSONSchema(fields map[string]*config.FieldSpec) map[string]any {
	return lower(Build(fields))
}

var typeNames = map[string]string{
	"OBJECT":  "object",
	"ARRAY":   "array",
	"STRING":  "string",
	"INTEGER": "integer",
	"NUMBER":  "number",
	"BOOLEAN": "boolean",
}

func lower(node map[string]any) map[string]any {
	out := make(map[string]any, len(node))
	if t, ok := node["type"].(string); ok {
		out["type"] = []string{typeNames[t], "null"}
	}
	if req, ok := node["required"].([]string); ok {
		out["required"] = req
	}
	if props, ok := node["properties"].(map[string]any); ok {
		lowered := make(map[string]any, len(props))
		for name, p := range props {
			lowered[name] = lower(p.(map[string]any))
		}
		out["properties"] = lowered
	}
	if items, ok := node["items"].(map[string]any); ok {
		out["items"] = lower(items)
	}
	return out
}
