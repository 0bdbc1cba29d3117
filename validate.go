package rehearsal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"
)

// Result is a payload that satisfied every constraint of its descriptor.
// Value holds only declared fields; unknown keys from the model are dropped.
type Result struct {
	CallSite string
	Value    map[string]any
	// Variants maps the dotted path of each union field to the name of the
	// alternative that matched.
	Variants map[string]string
	Raw      string // the extracted JSON text

	// Populated by Engine.Run.
	RequestID string
	Attempts  int
	Usage     *TokenUsage
}

// Variant returns the alternative chosen for the union at path, or "".
func (r *Result) Variant(path string) string {
	return r.Variants[path]
}

// Decode copies the validated value into v, typically a pointer to the
// struct bound to the call site.
func (r *Result) Decode(v any) error {
	data, err := json.Marshal(r.Value)
	if err != nil {
		return fmt.Errorf("encode validated result: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode validated result: %w", err)
	}
	return nil
}

// JSON returns the validated value as JSON.
func (r *Result) JSON() ([]byte, error) {
	return json.Marshal(r.Value)
}

// Validate parses jsonText and checks it against d.
//
// Unparseable text fails with ErrMalformedJSON. Parsed data that does not
// conform fails with a *SchemaViolation naming the offending field. Integer
// bounds are inclusive and enforced exactly; nothing is clamped or coerced.
func Validate(jsonText string, d *Descriptor) (*Result, error) {
	dec := json.NewDecoder(strings.NewReader(jsonText))
	dec.UseNumber()

	var parsed any
	if err := dec.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after top-level value", ErrMalformedJSON)
	}

	obj, ok := parsed.(map[string]any)
	if !ok {
		return nil, &SchemaViolation{Field: "$", Reason: "expected a JSON object, got " + jsonType(parsed)}
	}

	v := &validation{variants: make(map[string]string)}
	value, err := v.object("", obj, d.fields)
	if err != nil {
		return nil, err
	}

	return &Result{
		CallSite: d.id,
		Value:    value,
		Variants: v.variants,
		Raw:      jsonText,
	}, nil
}

// validation carries the union choices made while walking one payload.
type validation struct {
	variants map[string]string
}

func (v *validation) object(prefix string, obj map[string]any, fields []Field) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		path := joinPath(prefix, f.Name)
		raw, present := obj[f.Name]
		if !present || raw == nil {
			if f.Optional {
				continue
			}
			if !present {
				return nil, &SchemaViolation{Field: path, Reason: "required field is missing"}
			}
			return nil, &SchemaViolation{Field: path, Reason: "required field is null"}
		}
		value, err := v.field(path, raw, f)
		if err != nil {
			return nil, err
		}
		out[f.Name] = value
	}
	return out, nil
}

func (v *validation) field(path string, raw any, f Field) (any, error) {
	switch f.Kind {
	case KindString:
		s, ok := raw.(string)
		if !ok {
			return nil, mismatch(path, "string", raw)
		}
		return s, nil

	case KindInteger:
		n, ok := raw.(json.Number)
		if !ok {
			return nil, mismatch(path, "integer", raw)
		}
		i, err := integer(n)
		if err != nil {
			return nil, &SchemaViolation{Field: path, Reason: err.Error()}
		}
		if i < int64(f.Min) || i > int64(f.Max) {
			return nil, &SchemaViolation{Field: path, Reason: fmt.Sprintf("value %d outside [%d, %d]", i, f.Min, f.Max)}
		}
		return int(i), nil

	case KindEnum:
		s, ok := raw.(string)
		if !ok {
			return nil, mismatch(path, "string", raw)
		}
		if !slices.Contains(f.Enum, s) {
			return nil, &SchemaViolation{Field: path, Reason: fmt.Sprintf("%q is not one of %s", s, strings.Join(f.Enum, ", "))}
		}
		return s, nil

	case KindStringList:
		items, ok := raw.([]any)
		if !ok {
			return nil, mismatch(path, "array", raw)
		}
		out := make([]string, len(items))
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, mismatch(fmt.Sprintf("%s[%d]", path, i), "string", item)
			}
			out[i] = s
		}
		return out, nil

	case KindObject:
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, mismatch(path, "object", raw)
		}
		return v.object(path, obj, f.Fields)

	case KindOneOf:
		return v.union(path, raw, f)
	}
	return nil, &SchemaViolation{Field: path, Reason: fmt.Sprintf("unsupported field kind %v", f.Kind)}
}

// union accepts the first alternative that matches completely. Choices made
// inside a rejected alternative are discarded.
func (v *validation) union(path string, raw any, f Field) (any, error) {
	names := make([]string, len(f.Alternatives))
	for i, alt := range f.Alternatives {
		names[i] = alt.Name
		trial := &validation{variants: make(map[string]string)}
		value, err := trial.field(path, raw, alt.Shape)
		if err != nil {
			continue
		}
		for k, name := range trial.variants {
			v.variants[k] = name
		}
		v.variants[path] = alt.Name
		return value, nil
	}
	return nil, &SchemaViolation{Field: path, Reason: "value matches none of the alternatives " + strings.Join(names, ", ")}
}

// integer accepts any JSON number with an exact integral value, so 40 and
// 4e1 both pass while 40.5 does not.
func integer(n json.Number) (int64, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%s is not an integer", n.String())
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%s overflows an integer", n.String())
	}
	return int64(f), nil
}

func mismatch(path, want string, got any) *SchemaViolation {
	return &SchemaViolation{Field: path, Reason: fmt.Sprintf("expected %s, got %s", want, jsonType(got))}
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// compactJSON is used for hook payloads; it falls back to the input when the
// text is not valid JSON.
func compactJSON(text string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(text)); err != nil {
		return text
	}
	return buf.String()
}
