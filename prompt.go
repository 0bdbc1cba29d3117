package rehearsal

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"slices"
	"strings"
)

// ErrMissingPlaceholder is returned when a template is rendered without a
// value for one of its placeholders.
var ErrMissingPlaceholder = errors.New("missing placeholder value")

// placeholder matches {UPPER_SNAKE} markers. Any other braces, including
// JSON examples embedded in the prompt text, are left alone.
var placeholder = regexp.MustCompile(`\{([A-Z][A-Z0-9_]*)\}`)

// Template is prompt text with {PLACEHOLDER} markers.
type Template struct {
	name string
	text string
	keys []string // Distinct placeholders in order of first appearance
}

// NewTemplate parses text. It never fails: text without markers renders as is.
func NewTemplate(name, text string) *Template {
	var keys []string
	for _, m := range placeholder.FindAllStringSubmatch(text, -1) {
		if !slices.Contains(keys, m[1]) {
			keys = append(keys, m[1])
		}
	}
	return &Template{name: name, text: text, keys: keys}
}

// LoadTemplate reads a template from fsys.
func LoadTemplate(fsys fs.FS, path string) (*Template, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("load template %s: %w", path, err)
	}
	return NewTemplate(path, string(data)), nil
}

// Name returns the template name, usually the path it was loaded from.
func (t *Template) Name() string {
	return t.name
}

// Placeholders returns the distinct placeholder names in the template.
func (t *Template) Placeholders() []string {
	return slices.Clone(t.keys)
}

// Render substitutes every placeholder. Values for names the template does
// not use are ignored; a placeholder without a value fails the render.
func (t *Template) Render(values map[string]string) (string, error) {
	var missing []string
	for _, key := range t.keys {
		if _, ok := values[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("render %s: %w: %s", t.name, ErrMissingPlaceholder, strings.Join(missing, ", "))
	}

	return placeholder.ReplaceAllStringFunc(t.text, func(m string) string {
		return values[m[1:len(m)-1]]
	}), nil
}
