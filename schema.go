package rehearsal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zoobzio/sentinel"
)

// Kind is the semantic type of a descriptor field.
type Kind int

// Field kinds.
const (
	KindString Kind = iota + 1
	KindInteger
	KindEnum
	KindStringList
	KindObject
	KindOneOf
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindEnum:
		return "enum"
	case KindStringList:
		return "string list"
	case KindObject:
		return "object"
	case KindOneOf:
		return "one of"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Field describes one named member of an expected JSON object.
// Min and Max are inclusive and only meaningful for KindInteger.
type Field struct {
	Name         string
	Kind         Kind
	Optional     bool
	Description  string
	Min, Max     int
	Enum         []string      // KindEnum
	Fields       []Field       // KindObject
	Alternatives []Alternative // KindOneOf, tried in order
}

// Alternative is one shape a KindOneOf field may take.
// The Shape's Name is ignored; the value lives under the union field's name.
type Alternative struct {
	Name  string
	Shape Field
}

// String declares a required string field.
func String(name string) Field {
	return Field{Name: name, Kind: KindString}
}

// Integer declares a required integer field bounded by [lo, hi].
func Integer(name string, lo, hi int) Field {
	return Field{Name: name, Kind: KindInteger, Min: lo, Max: hi}
}

// Enum declares a required string field restricted to values.
func Enum(name string, values ...string) Field {
	return Field{Name: name, Kind: KindEnum, Enum: values}
}

// StringList declares a required list of strings.
func StringList(name string) Field {
	return Field{Name: name, Kind: KindStringList}
}

// Object declares a required nested object.
func Object(name string, fields ...Field) Field {
	return Field{Name: name, Kind: KindObject, Fields: fields}
}

// OneOf declares a field whose value must match one of alts.
func OneOf(name string, alts ...Alternative) Field {
	return Field{Name: name, Kind: KindOneOf, Alternatives: alts}
}

// Alt names a union alternative.
func Alt(name string, shape Field) Alternative {
	return Alternative{Name: name, Shape: shape}
}

// Optional marks f as optional.
func Optional(f Field) Field {
	f.Optional = true
	return f
}

// Describe attaches a human readable description, surfaced in the JSON Schema.
func (f Field) Describe(desc string) Field {
	f.Description = desc
	return f
}

// Descriptor is the immutable contract for one call site.
type Descriptor struct {
	id     string
	fields []Field
}

// NewDescriptor builds a descriptor for call site id.
// The fields are copied; later changes to the arguments have no effect.
func NewDescriptor(id string, fields ...Field) *Descriptor {
	return &Descriptor{id: id, fields: cloneFields(fields)}
}

// ID returns the call site identifier.
func (d *Descriptor) ID() string { return d.id }

// Fields returns a deep copy of the declared fields in order.
func (d *Descriptor) Fields() []Field { return cloneFields(d.fields) }

// check reports descriptor definitions that could never validate anything.
func (d *Descriptor) check() error {
	if strings.TrimSpace(d.id) == "" {
		return errors.New("descriptor has empty id")
	}
	if len(d.fields) == 0 {
		return fmt.Errorf("descriptor %q declares no fields", d.id)
	}
	return checkFields(d.id, "", d.fields)
}

func checkFields(id, prefix string, fields []Field) error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		path := joinPath(prefix, f.Name)
		if f.Name == "" {
			return fmt.Errorf("descriptor %q: unnamed field under %q", id, prefix)
		}
		if seen[f.Name] {
			return fmt.Errorf("descriptor %q: duplicate field %q", id, path)
		}
		seen[f.Name] = true
		if err := checkShape(id, path, f); err != nil {
			return err
		}
	}
	return nil
}

func checkShape(id, path string, f Field) error {
	switch f.Kind {
	case KindString, KindStringList:
		return nil
	case KindInteger:
		if f.Min > f.Max {
			return fmt.Errorf("descriptor %q: field %q has min %d > max %d", id, path, f.Min, f.Max)
		}
	case KindEnum:
		if len(f.Enum) == 0 {
			return fmt.Errorf("descriptor %q: enum field %q has no values", id, path)
		}
	case KindObject:
		return checkFields(id, path, f.Fields)
	case KindOneOf:
		if len(f.Alternatives) < 2 {
			return fmt.Errorf("descriptor %q: union field %q needs at least two alternatives", id, path)
		}
		names := make(map[string]bool, len(f.Alternatives))
		for _, alt := range f.Alternatives {
			if alt.Name == "" || names[alt.Name] {
				return fmt.Errorf("descriptor %q: union field %q has missing or duplicate alternative name %q", id, path, alt.Name)
			}
			names[alt.Name] = true
			if alt.Shape.Kind == KindOneOf {
				return fmt.Errorf("descriptor %q: union field %q nests another union", id, path)
			}
			if err := checkShape(id, path, alt.Shape); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("descriptor %q: field %q has unknown kind %v", id, path, f.Kind)
	}
	return nil
}

// JSONSchema renders the descriptor as a JSON Schema object.
// Providers with native structured output accept it directly; it is also
// embedded in prompts so the model sees the exact contract.
func (d *Descriptor) JSONSchema() map[string]any {
	return objectSchema(d.fields)
}

func objectSchema(fields []Field) map[string]any {
	props := make(map[string]any, len(fields))
	required := make([]string, 0, len(fields))
	for _, f := range fields {
		props[f.Name] = fieldSchema(f)
		if !f.Optional {
			required = append(required, f.Name)
		}
	}
	s := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func fieldSchema(f Field) map[string]any {
	var s map[string]any
	switch f.Kind {
	case KindString:
		s = map[string]any{"type": "string"}
	case KindInteger:
		s = map[string]any{"type": "integer", "minimum": f.Min, "maximum": f.Max}
	case KindEnum:
		values := make([]any, len(f.Enum))
		for i, v := range f.Enum {
			values[i] = v
		}
		s = map[string]any{"type": "string", "enum": values}
	case KindStringList:
		s = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	case KindObject:
		s = objectSchema(f.Fields)
	case KindOneOf:
		alts := make([]any, len(f.Alternatives))
		for i, alt := range f.Alternatives {
			a := fieldSchema(alt.Shape)
			a["title"] = alt.Name
			alts[i] = a
		}
		s = map[string]any{"anyOf": alts}
	default:
		s = map[string]any{}
	}
	if f.Description != "" {
		s["description"] = f.Description
	}
	return s
}

// Bind checks that T can receive a validated result for d: every top-level
// descriptor field needs a JSON-visible struct field in T.
// T must be a struct type.
func Bind[T any](d *Descriptor) error {
	metadata := sentinel.Inspect[T]()

	names := make(map[string]bool, len(metadata.Fields))
	for _, field := range metadata.Fields {
		if name := jsonFieldName(field); name != "-" {
			names[name] = true
		}
	}

	var missing []string
	for _, f := range d.fields {
		if !names[f.Name] {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		var zero T
		return fmt.Errorf("type %T cannot bind call site %q: no json field for %s",
			zero, d.id, strings.Join(missing, ", "))
	}
	return nil
}

// jsonFieldName extracts the JSON field name from metadata.
func jsonFieldName(field sentinel.FieldMetadata) string {
	if jsonTag, ok := field.Tags["json"]; ok {
		parts := strings.Split(jsonTag, ",")
		if len(parts) > 0 && parts[0] != "" {
			return parts[0]
		}
	}
	// Default to lowercase field name
	return strings.ToLower(field.Name[:1]) + field.Name[1:]
}

func cloneFields(fields []Field) []Field {
	if fields == nil {
		return nil
	}
	out := make([]Field, len(fields))
	for i, f := range fields {
		out[i] = cloneField(f)
	}
	return out
}

func cloneField(f Field) Field {
	if f.Enum != nil {
		f.Enum = append([]string(nil), f.Enum...)
	}
	f.Fields = cloneFields(f.Fields)
	if f.Alternatives != nil {
		alts := make([]Alternative, len(f.Alternatives))
		for i, alt := range f.Alternatives {
			alts[i] = Alternative{Name: alt.Name, Shape: cloneField(alt.Shape)}
		}
		f.Alternatives = alts
	}
	return f
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
