package rehearsal

import (
	"regexp"
	"strings"
)

// jsonFence matches a fenced block whose info string is exactly "json".
// The tag must be followed by whitespace or the opening brace, so "json5"
// or "jsonc" do not count. A brace glued to the tag is captured on its own.
var jsonFence = regexp.MustCompile("(?s)```(?i:json)(?:[ \\t]*(?:\\r?\\n|[ \\t])|(\\{))(.*?)```")

// Extract isolates the JSON candidate inside raw model output.
//
// The first fenced block tagged json wins and its inner text is returned
// verbatim apart from surrounding whitespace. Without one, output whose
// trimmed form starts with '{' is taken whole. Anything else fails with
// ErrNoJSONFound. Extract never parses; that is Validate's job.
func Extract(text string) (string, error) {
	if m := jsonFence.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1] + m[2]), nil
	}
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") {
		return trimmed, nil
	}
	return "", ErrNoJSONFound
}
