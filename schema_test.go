package rehearsal

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestDescriptorCheck(t *testing.T) {
	tests := []struct {
		name string
		d    *Descriptor
		want string
	}{
		{"empty id", NewDescriptor(" ", String("a")), "empty id"},
		{"no fields", NewDescriptor("x"), "declares no fields"},
		{"unnamed field", NewDescriptor("x", String("")), "unnamed field"},
		{"duplicate", NewDescriptor("x", String("a"), Integer("a", 0, 1)), "duplicate field"},
		{"inverted bounds", NewDescriptor("x", Integer("n", 5, 1)), "min 5 > max 1"},
		{"empty enum", NewDescriptor("x", Enum("e")), "has no values"},
		{"nested duplicate", NewDescriptor("x", Object("o", String("a"), String("a"))), `"o.a"`},
		{"single alternative", NewDescriptor("x", OneOf("u", Alt("a", String("a")))), "at least two"},
		{"duplicate alternative", NewDescriptor("x", OneOf("u", Alt("a", String("a")), Alt("a", StringList("a")))), "duplicate alternative"},
		{"nested union", NewDescriptor("x", OneOf("u",
			Alt("a", String("a")),
			Alt("b", OneOf("b", Alt("c", String("c")), Alt("d", String("d")))),
		)), "nests another union"},
		{"unknown kind", NewDescriptor("x", Field{Name: "z"}), "unknown kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.d.check()
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestDescriptorIsImmutable(t *testing.T) {
	fields := []Field{Enum("e", "a", "b"), Object("o", String("inner"))}
	d := NewDescriptor("x", fields...)

	fields[0].Enum[0] = "changed"
	fields[1].Fields[0].Name = "changed"
	if d.Fields()[0].Enum[0] != "a" || d.Fields()[1].Fields[0].Name != "inner" {
		t.Error("Descriptor should copy its fields")
	}

	got := d.Fields()
	got[0].Enum[1] = "changed"
	if d.Fields()[0].Enum[1] != "b" {
		t.Error("Fields should return a deep copy")
	}
}

func TestJSONSchema(t *testing.T) {
	schema := analysisDescriptor().JSONSchema()

	if schema["type"] != "object" {
		t.Errorf("Expected object schema, got %v", schema["type"])
	}
	required, _ := schema["required"].([]string)
	if !reflect.DeepEqual(required, []string{"analysis_type", "analysis_result"}) {
		t.Errorf("Unexpected required list %v", required)
	}

	props := schema["properties"].(map[string]any)
	enum := props["analysis_type"].(map[string]any)
	if !reflect.DeepEqual(enum["enum"], []any{"reflection_guide", "final_report"}) {
		t.Errorf("Unexpected enum %v", enum["enum"])
	}

	union := props["analysis_result"].(map[string]any)
	alts := union["anyOf"].([]any)
	if len(alts) != 2 {
		t.Fatalf("Expected two alternatives, got %d", len(alts))
	}
	if alts[0].(map[string]any)["title"] != "guide" || alts[1].(map[string]any)["title"] != "report" {
		t.Errorf("Alternatives should carry their names as titles: %v", alts)
	}
	report := alts[1].(map[string]any)
	if !reflect.DeepEqual(report["required"], []string{"summary"}) {
		t.Errorf("Optional fields should not be required: %v", report["required"])
	}
	score := report["properties"].(map[string]any)["score"].(map[string]any)
	if score["minimum"] != 0 || score["maximum"] != 100 {
		t.Errorf("Unexpected bounds %v", score)
	}
}

func TestJSONSchemaDescription(t *testing.T) {
	d := NewDescriptor("x", String("hint").Describe("One suggestion"), Optional(String("why")))
	schema := d.JSONSchema()
	hint := schema["properties"].(map[string]any)["hint"].(map[string]any)
	if hint["description"] != "One suggestion" {
		t.Errorf("Expected description, got %v", hint)
	}

	optionalOnly := NewDescriptor("y", Optional(String("why"))).JSONSchema()
	if _, ok := optionalOnly["required"]; ok {
		t.Error("required should be omitted when every field is optional")
	}
}

type hintPayload struct {
	HintMessage string `json:"hint_message"`
}

type untaggedPayload struct {
	Action string
}

type skippedPayload struct {
	Action string `json:"-"`
}

func TestBind(t *testing.T) {
	t.Run("matching tags", func(t *testing.T) {
		if err := Bind[hintPayload](NewDescriptor("hint", String("hint_message"))); err != nil {
			t.Errorf("Bind failed: %v", err)
		}
	})

	t.Run("untagged field uses lowercase name", func(t *testing.T) {
		if err := Bind[untaggedPayload](NewDescriptor("x", String("action"))); err != nil {
			t.Errorf("Bind failed: %v", err)
		}
	})

	t.Run("missing field", func(t *testing.T) {
		err := Bind[hintPayload](NewDescriptor("hint", String("hint_message"), String("reason")))
		if err == nil || !strings.Contains(err.Error(), "reason") {
			t.Errorf("Expected missing reason, got %v", err)
		}
		if !strings.Contains(err.Error(), "hintPayload") {
			t.Errorf("Expected type name in error, got %v", err)
		}
	})

	t.Run("skipped field", func(t *testing.T) {
		if err := Bind[skippedPayload](NewDescriptor("x", String("action"))); err == nil {
			t.Error("Expected json:\"-\" fields to be ignored")
		}
	})
}

func TestKindString(t *testing.T) {
	if KindOneOf.String() != "one of" || Kind(42).String() != "kind(42)" {
		t.Error("Unexpected kind names")
	}
}

func TestRegistry(t *testing.T) {
	t.Run("describe", func(t *testing.T) {
		r := MustRegistry(simulationDescriptor(), analysisDescriptor())
		d, err := r.Describe("analysis")
		if err != nil || d.ID() != "analysis" {
			t.Fatalf("Describe failed: %v", err)
		}
		if !reflect.DeepEqual(r.CallSites(), []string{"analysis", "simulation"}) {
			t.Errorf("Unexpected call sites %v", r.CallSites())
		}
	})

	t.Run("unknown", func(t *testing.T) {
		r := MustRegistry(simulationDescriptor())
		_, err := r.Describe("simulaton")
		if !errors.Is(err, ErrUnknownCallSite) {
			t.Errorf("Expected ErrUnknownCallSite, got %v", err)
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		_, err := NewRegistry(simulationDescriptor(), simulationDescriptor())
		if err == nil || !strings.Contains(err.Error(), "duplicate call site") {
			t.Errorf("Expected duplicate error, got %v", err)
		}
	})

	t.Run("malformed descriptor", func(t *testing.T) {
		if _, err := NewRegistry(NewDescriptor("x")); err == nil {
			t.Error("Expected error for descriptor without fields")
		}
		if _, err := NewRegistry(nil); err == nil {
			t.Error("Expected error for nil descriptor")
		}
	})

	t.Run("must panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("Expected panic")
			}
		}()
		MustRegistry(NewDescriptor(""))
	})
}
