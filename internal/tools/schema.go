package tools

import (
	"encoding/json"
	"fmt"
	"math"
)

// FieldType is the JSON primitive a schema field accepts.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
)

// Field describes one input parameter: its type, whether the caller must
// supply it, the default applied when absent, and value constraints.
type Field struct {
	Type        FieldType
	Description string
	Required    bool
	Default     any
	Enum        []string
	Minimum     *float64
	Items       FieldType
}

// Schema maps parameter names to their field constraints. It is interpreted
// by one generic validator; handlers never parse raw arguments themselves.
type Schema map[string]Field

// Args holds validated arguments with defaults applied. Accessors assume the
// validator already enforced the declared type.
type Args map[string]any

func (a Args) String(key string) string {
	v, _ := a[key].(string)
	return v
}

func (a Args) Int(key string) int {
	v, _ := a[key].(float64)
	return int(v)
}

func (a Args) Bool(key string) bool {
	v, _ := a[key].(bool)
	return v
}

func (a Args) Strings(key string) []string {
	raw, ok := a[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, _ := item.(string)
		out = append(out, s)
	}
	return out
}

func (a Args) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// Validate parses raw JSON arguments against the schema. It fails closed: a
// missing required field, a wrong primitive type, an unknown enum value, or
// a sub-minimum number all produce an error naming the offending field,
// before any handler code runs.
func (s Schema) Validate(raw json.RawMessage) (Args, error) {
	supplied := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &supplied); err != nil {
			return nil, fmt.Errorf("arguments must be a JSON object: %v", err)
		}
	}

	args := Args{}
	for name, field := range s {
		value, ok := supplied[name]
		if !ok || value == nil {
			if field.Required {
				return nil, fmt.Errorf("missing required parameter %q", name)
			}
			if field.Default != nil {
				args[name] = field.Default
			}
			continue
		}
		if err := field.check(name, value); err != nil {
			return nil, err
		}
		args[name] = value
	}
	return args, nil
}

func (f Field) check(name string, value any) error {
	switch f.Type {
	case TypeString:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("parameter %q must be a string", name)
		}
		if len(f.Enum) > 0 && !contains(f.Enum, s) {
			return fmt.Errorf("parameter %q must be one of %v", name, f.Enum)
		}
	case TypeNumber:
		n, ok := value.(float64)
		if !ok {
			return fmt.Errorf("parameter %q must be a number", name)
		}
		if n != math.Trunc(n) {
			return fmt.Errorf("parameter %q must be an integer", name)
		}
		if f.Minimum != nil && n < *f.Minimum {
			return fmt.Errorf("parameter %q must be at least %d", name, int(*f.Minimum))
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("parameter %q must be a boolean", name)
		}
	case TypeArray:
		items, ok := value.([]any)
		if !ok {
			return fmt.Errorf("parameter %q must be an array", name)
		}
		if f.Minimum != nil && float64(len(items)) < *f.Minimum {
			return fmt.Errorf("parameter %q must contain at least %d item(s)", name, int(*f.Minimum))
		}
		for i, item := range items {
			if f.Items == TypeString {
				if _, ok := item.(string); !ok {
					return fmt.Errorf("parameter %q item %d must be a string", name, i)
				}
			}
		}
	default:
		return fmt.Errorf("parameter %q has unsupported type %q", name, f.Type)
	}
	return nil
}

// JSONSchema renders the schema as a JSON-schema object for tool listings.
func (s Schema) JSONSchema() map[string]any {
	properties := map[string]any{}
	required := []string{}
	for name, field := range s {
		prop := map[string]any{
			"type":        jsonType(field.Type),
			"description": field.Description,
		}
		if len(field.Enum) > 0 {
			prop["enum"] = field.Enum
		}
		if field.Default != nil {
			prop["default"] = field.Default
		}
		if field.Minimum != nil {
			prop["minimum"] = *field.Minimum
		}
		if field.Type == TypeArray {
			prop["items"] = map[string]any{"type": jsonType(field.Items)}
		}
		properties[name] = prop
		if field.Required {
			required = append(required, name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func jsonType(t FieldType) string {
	if t == TypeNumber {
		return "number"
	}
	return string(t)
}

func contains(vals []string, target string) bool {
	for _, v := range vals {
		if v == target {
			return true
		}
	}
	return false
}

func minOf(n float64) *float64 {
	return &n
}
