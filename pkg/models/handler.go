package models

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// FieldType is the declared JSON type of an output field.
type FieldType string

const (
	// FieldString is a JSON string.
	FieldString FieldType = "string"
	// FieldNumber is any JSON number.
	FieldNumber FieldType = "number"
	// FieldInteger is a JSON number with no fractional part.
	FieldInteger FieldType = "integer"
	// FieldBoolean is a JSON boolean.
	FieldBoolean FieldType = "boolean"
	// FieldArray is a JSON array.
	FieldArray FieldType = "array"
	// FieldObject is a JSON object.
	FieldObject FieldType = "object"
)

// Valid returns true if the field type is a known value.
func (t FieldType) Valid() bool {
	switch t {
	case FieldString, FieldNumber, FieldInteger, FieldBoolean, FieldArray, FieldObject:
		return true
	default:
		return false
	}
}

// FieldSpec declares one named field of a handler's output.
type FieldSpec struct {
	// Name is the JSON key of the field.
	Name string `json:"name" yaml:"name"`
	// Type is the JSON type the value must have.
	Type FieldType `json:"type" yaml:"type"`
	// Required marks fields that must be present and non-null.
	Required bool `json:"required,omitempty" yaml:"required,omitempty"`
	// Description is passed to the model as a schema hint.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Items is the element type for array fields. Empty means any.
	Items FieldType `json:"items,omitempty" yaml:"items,omitempty"`
}

// OutputShape is the schema a handler's output must satisfy.
type OutputShape struct {
	Fields []FieldSpec `json:"fields" yaml:"fields"`
}

// Field returns the spec for the named field.
func (s OutputShape) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Check reports structural problems in the shape itself.
func (s OutputShape) Check() error {
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("output field with empty name")
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate output field %q", f.Name)
		}
		seen[f.Name] = true
		if !f.Type.Valid() {
			return fmt.Errorf("output field %q has unknown type %q", f.Name, f.Type)
		}
		if f.Items != "" && (f.Type != FieldArray || !f.Items.Valid()) {
			return fmt.Errorf("output field %q has invalid items type %q", f.Name, f.Items)
		}
	}
	return nil
}

// ShapeError lists every way a value failed to match an OutputShape.
type ShapeError struct {
	Problems []string
}

func (e *ShapeError) Error() string {
	return strings.Join(e.Problems, "; ")
}

// Validate decodes raw as a JSON object and checks it against the shape.
// Fields the shape does not declare are dropped from the returned value.
// Null optional fields are treated as absent.
func (s OutputShape) Validate(raw json.RawMessage) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, &ShapeError{Problems: []string{fmt.Sprintf("output is not a JSON object: %v", err)}}
	}
	if obj == nil {
		return nil, &ShapeError{Problems: []string{"output is null"}}
	}
	return s.ValidateMap(obj)
}

// ValidateMap is Validate for an already decoded object.
func (s OutputShape) ValidateMap(obj map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(s.Fields))
	var problems []string

	for _, f := range s.Fields {
		v, ok := obj[f.Name]
		if !ok || v == nil {
			if f.Required {
				problems = append(problems, fmt.Sprintf("missing required field %q", f.Name))
			}
			continue
		}
		if !matchesType(v, f.Type) {
			problems = append(problems, fmt.Sprintf("field %q: expected %s, got %s", f.Name, f.Type, jsonTypeOf(v)))
			continue
		}
		if f.Type == FieldArray && f.Items != "" {
			bad := false
			for i, item := range v.([]any) {
				if !matchesType(item, f.Items) {
					problems = append(problems, fmt.Sprintf("field %q[%d]: expected %s, got %s", f.Name, i, f.Items, jsonTypeOf(item)))
					bad = true
					break
				}
			}
			if bad {
				continue
			}
		}
		out[f.Name] = v
	}

	if len(problems) > 0 {
		return nil, &ShapeError{Problems: problems}
	}
	return out, nil
}

func matchesType(v any, t FieldType) bool {
	switch t {
	case FieldString:
		_, ok := v.(string)
		return ok
	case FieldNumber:
		_, ok := v.(float64)
		return ok
	case FieldInteger:
		n, ok := v.(float64)
		return ok && n == math.Trunc(n)
	case FieldBoolean:
		_, ok := v.(bool)
		return ok
	case FieldArray:
		_, ok := v.([]any)
		return ok
	case FieldObject:
		_, ok := v.(map[string]any)
		return ok
	}
	return false
}

func jsonTypeOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Properties returns the JSON-schema properties map for the shape.
func (s OutputShape) Properties() map[string]any {
	props := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		p := map[string]any{"type": string(f.Type)}
		if f.Description != "" {
			p["description"] = f.Description
		}
		if f.Type == FieldArray && f.Items != "" {
			p["items"] = map[string]any{"type": string(f.Items)}
		}
		props[f.Name] = p
	}
	return props
}

// Required returns the names of required fields in declaration order.
func (s OutputShape) Required() []string {
	var req []string
	for _, f := range s.Fields {
		if f.Required {
			req = append(req, f.Name)
		}
	}
	return req
}

// JSONSchema renders the shape as a JSON schema object.
func (s OutputShape) JSONSchema() map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": s.Properties(),
	}
	if req := s.Required(); len(req) > 0 {
		schema["required"] = req
	}
	return schema
}

// HandlerDefinition is the immutable descriptor of a registered handler.
type HandlerDefinition struct {
	// Name is the unique registry key.
	Name string `json:"name" yaml:"name"`
	// Description summarises the capability for the classifier.
	Description string `json:"description" yaml:"description"`
	// Instructions shape the handler's own completion call.
	Instructions string `json:"instructions" yaml:"instructions"`
	// OutputShape validates the handler's result.
	OutputShape OutputShape `json:"output_shape" yaml:"output_shape"`
	// DependsOn lists handlers whose output this handler requires.
	// They are pulled into a turn automatically.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	// OptionalDependsOn lists handlers whose output is used when they
	// run in the same turn, without forcing them to run.
	OptionalDependsOn []string `json:"optional_depends_on,omitempty" yaml:"optional_depends_on,omitempty"`
	// Remember names output fields copied into session attributes.
	Remember []string `json:"remember,omitempty" yaml:"remember,omitempty"`
	// Tools names the lookups the handler may call before answering.
	Tools []string `json:"tools,omitempty" yaml:"tools,omitempty"`
}

// AllDependencies returns required and optional dependencies, deduplicated,
// required first.
func (d HandlerDefinition) AllDependencies() []string {
	seen := make(map[string]bool, len(d.DependsOn)+len(d.OptionalDependsOn))
	var deps []string
	for _, list := range [][]string{d.DependsOn, d.OptionalDependsOn} {
		for _, dep := range list {
			if !seen[dep] {
				seen[dep] = true
				deps = append(deps, dep)
			}
		}
	}
	return deps
}

// Clone returns a deep copy so registry callers cannot mutate stored definitions.
func (d HandlerDefinition) Clone() HandlerDefinition {
	c := d
	c.DependsOn = append([]string(nil), d.DependsOn...)
	c.OptionalDependsOn = append([]string(nil), d.OptionalDependsOn...)
	c.Remember = append([]string(nil), d.Remember...)
	c.Tools = append([]string(nil), d.Tools...)
	c.OutputShape.Fields = append([]FieldSpec(nil), d.OutputShape.Fields...)
	return c
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
