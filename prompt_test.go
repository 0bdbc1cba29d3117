package rehearsal

import (
	"errors"
	"io/fs"
	"reflect"
	"strings"
	"testing"
	"testing/fstest"
)

func TestTemplateRender(t *testing.T) {
	t.Run("substitutes every placeholder", func(t *testing.T) {
		tmpl := NewTemplate("sim", "Rules: {RULES}\nState: {CURRENT_STATE}\nAgain: {RULES}")
		out, err := tmpl.Render(map[string]string{"RULES": "r", "CURRENT_STATE": "s", "UNUSED": "u"})
		if err != nil {
			t.Fatalf("Render failed: %v", err)
		}
		if out != "Rules: r\nState: s\nAgain: r" {
			t.Errorf("Unexpected render %q", out)
		}
	})

	t.Run("leaves json braces alone", func(t *testing.T) {
		tmpl := NewTemplate("json", `Answer like {"hint_message": "..."} for {USER_MESSAGE}; {lower} and {} stay.`)
		out, err := tmpl.Render(map[string]string{"USER_MESSAGE": "hi"})
		if err != nil {
			t.Fatalf("Render failed: %v", err)
		}
		if out != `Answer like {"hint_message": "..."} for hi; {lower} and {} stay.` {
			t.Errorf("Unexpected render %q", out)
		}
	})

	t.Run("values are not re-expanded", func(t *testing.T) {
		tmpl := NewTemplate("nested", "{USER_MESSAGE}")
		out, err := tmpl.Render(map[string]string{"USER_MESSAGE": "{RULES}"})
		if err != nil || out != "{RULES}" {
			t.Errorf("Expected literal value, got %q (%v)", out, err)
		}
	})

	t.Run("missing values", func(t *testing.T) {
		tmpl := NewTemplate("sim", "{RULES} {CHAT_LOG} {USER_MESSAGE}")
		_, err := tmpl.Render(map[string]string{"RULES": "r"})
		if !errors.Is(err, ErrMissingPlaceholder) {
			t.Fatalf("Expected ErrMissingPlaceholder, got %v", err)
		}
		if !strings.Contains(err.Error(), "CHAT_LOG, USER_MESSAGE") {
			t.Errorf("Error should name the missing keys, got %v", err)
		}
	})
}

func TestTemplatePlaceholders(t *testing.T) {
	tmpl := NewTemplate("t", "{B} {A} {B} {A_1}")
	keys := tmpl.Placeholders()
	if !reflect.DeepEqual(keys, []string{"B", "A", "A_1"}) {
		t.Errorf("Unexpected placeholders %v", keys)
	}
	keys[0] = "changed"
	if tmpl.Placeholders()[0] != "B" {
		t.Error("Placeholders should return a copy")
	}
	if tmpl.Name() != "t" {
		t.Errorf("Unexpected name %q", tmpl.Name())
	}
}

func TestLoadTemplate(t *testing.T) {
	fsys := fstest.MapFS{
		"prompts/hint.txt": &fstest.MapFile{Data: []byte("Hint for {CHAT_LOG}")},
	}

	tmpl, err := LoadTemplate(fsys, "prompts/hint.txt")
	if err != nil {
		t.Fatalf("LoadTemplate failed: %v", err)
	}
	if tmpl.Name() != "prompts/hint.txt" {
		t.Errorf("Expected path as name, got %q", tmpl.Name())
	}

	_, err = LoadTemplate(fsys, "prompts/missing.txt")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected fs.ErrNotExist, got %v", err)
	}
}

func TestResolveTemperature(t *testing.T) {
	tests := []struct {
		in, want float32
	}{
		{0, DefaultTemperature},
		{TemperatureUnset, DefaultTemperature},
		{TemperatureZero, TemperatureZero},
		{0.3, 0.3},
	}
	for _, tt := range tests {
		if got := ResolveTemperature(tt.in); got != tt.want {
			t.Errorf("ResolveTemperature(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
