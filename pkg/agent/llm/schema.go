package llm

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
)

// SchemaType names a JSON value type.
type SchemaType string

// Supported schema types.
const (
	TypeObject  SchemaType = "object"
	TypeArray   SchemaType = "array"
	TypeString  SchemaType = "string"
	TypeNumber  SchemaType = "number"
	TypeInteger SchemaType = "integer"
	TypeBoolean SchemaType = "boolean"
)

// Schema is a provider-neutral subset of JSON Schema. Adapters translate it
// into their native structured-output parameter; the validation middleware
// checks responses against it.
type Schema struct {
	Type        SchemaType
	Description string
	Properties  map[string]*Schema
	Required    []string
	Items       *Schema
	Enum        []string
}

// Object builds an object schema; every listed required name must appear in props.
func Object(props map[string]*Schema, required ...string) *Schema {
	return &Schema{Type: TypeObject, Properties: props, Required: required}
}

// ArrayOf builds an array schema.
func ArrayOf(items *Schema) *Schema {
	return &Schema{Type: TypeArray, Items: items}
}

// String builds a string schema.
func String() *Schema {
	return &Schema{Type: TypeString}
}

// Enum builds a string schema restricted to values.
func Enum(values ...string) *Schema {
	return &Schema{Type: TypeString, Enum: values}
}

// ToJSONSchema renders the schema as a JSON Schema document.
func (s *Schema) ToJSONSchema() map[string]any {
	if s == nil {
		return nil
	}
	out := map[string]any{"type": string(s.Type)}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		out["enum"] = slices.Clone(s.Enum)
	}
	if s.Items != nil {
		out["items"] = s.Items.ToJSONSchema()
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name, p := range s.Properties {
			props[name] = p.ToJSONSchema()
		}
		out["properties"] = props
	}
	if len(s.Required) > 0 {
		out["required"] = slices.Clone(s.Required)
	}
	return out
}

// MarshalJSON encodes the schema as JSON Schema.
func (s *Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.ToJSONSchema())
}

// ValidateJSON parses raw and validates it against the schema.
func (s *Schema) ValidateJSON(raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return s.Validate(v)
}

// Validate checks a decoded JSON value (as produced by encoding/json into any).
// Unknown object properties are allowed.
func (s *Schema) Validate(v any) error {
	return s.validate(v, "$")
}

func (s *Schema) validate(v any, path string) error {
	if s == nil {
		return nil
	}
	switch s.Type {
	case TypeObject:
		obj, ok := v.(map[string]any)
		if !ok {
			return typeErr(path, s.Type, v)
		}
		for _, name := range s.Required {
			if val, present := obj[name]; !present || val == nil {
				return fmt.Errorf("%s: missing required property %q", path, name)
			}
		}
		for name, prop := range s.Properties {
			val, present := obj[name]
			if !present || val == nil {
				continue
			}
			if err := prop.validate(val, path+"."+name); err != nil {
				return err
			}
		}
	case TypeArray:
		arr, ok := v.([]any)
		if !ok {
			return typeErr(path, s.Type, v)
		}
		for i, item := range arr {
			if err := s.Items.validate(item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case TypeString:
		str, ok := v.(string)
		if !ok {
			return typeErr(path, s.Type, v)
		}
		if len(s.Enum) > 0 && !slices.Contains(s.Enum, str) {
			return fmt.Errorf("%s: %q is not one of [%s]", path, str, strings.Join(s.Enum, ", "))
		}
	case TypeNumber:
		if _, ok := v.(float64); !ok {
			return typeErr(path, s.Type, v)
		}
	case TypeInteger:
		f, ok := v.(float64)
		if !ok || f != math.Trunc(f) {
			return typeErr(path, s.Type, v)
		}
	case TypeBoolean:
		if _, ok := v.(bool); !ok {
			return typeErr(path, s.Type, v)
		}
	default:
		return fmt.Errorf("%s: unsupported schema type %q", path, s.Type)
	}
	return nil
}

func typeErr(path string, want SchemaType, got any) error {
	return fmt.Errorf("%s: expected %s, got %T", path, want, got)
}

// AppendJSONInstruction appends a JSON-only output directive to a system
// instruction, for providers without native schema-constrained decoding.
func AppendJSONInstruction(system string, s *Schema) string {
	if s == nil {
		return system
	}
	doc, err := json.Marshal(s)
	if err != nil {
		return system
	}
	directive := "Respond with a single JSON value and nothing else. It must conform to this JSON Schema: " + string(doc)
	if system == "" {
		return directive
	}
	return system + "\n\n" + directive
}
