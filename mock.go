package rehearsal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MockInvoker simulates a backend for testing.
// It answers every call with a fenced JSON document that satisfies the
// descriptor it was built for, so an engine using it succeeds first time.
type MockInvoker struct {
	name      string
	payload   string
	mu        sync.Mutex
	available bool
}

// NewMockInvoker creates a mock whose output satisfies d.
func NewMockInvoker(d *Descriptor) *MockInvoker {
	data, err := json.Marshal(sampleObject(d.fields))
	if err != nil {
		// sampleObject only builds strings, ints, slices and maps.
		panic(err)
	}
	return &MockInvoker{
		name:      "mock",
		payload:   "```json\n" + string(data) + "\n```",
		available: true,
	}
}

// Call returns the canned payload.
func (m *MockInvoker) Call(ctx context.Context, _ string) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available {
		return nil, fmt.Errorf("provider %s is unavailable", m.name)
	}
	return &Output{Text: m.payload}, nil
}

// Name returns the mock's provider name.
func (m *MockInvoker) Name() string {
	return m.name
}

// SetAvailable toggles simulated outages.
func (m *MockInvoker) SetAvailable(available bool) {
	m.mu.Lock()
	m.available = available
	m.mu.Unlock()
}

// NewMockInvokerWithResponse creates a mock that always returns text.
func NewMockInvokerWithResponse(text string) Invoker {
	return &mockInvokerCallback{callback: func(string) (*Output, error) {
		return &Output{Text: text}, nil
	}}
}

// NewMockInvokerWithCallback creates a mock that delegates every call.
func NewMockInvokerWithCallback(callback func(prompt string) (*Output, error)) Invoker {
	return &mockInvokerCallback{callback: callback}
}

type mockInvokerCallback struct {
	callback func(string) (*Output, error)
}

func (m *mockInvokerCallback) Call(ctx context.Context, prompt string) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.callback(prompt)
}

func (*mockInvokerCallback) Name() string {
	return "mock"
}

// sampleObject builds the smallest value that satisfies fields: every field
// present, integers at their lower bound, enums and unions at their first
// option.
func sampleObject(fields []Field) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		out[f.Name] = sampleValue(f)
	}
	return out
}

func sampleValue(f Field) any {
	switch f.Kind {
	case KindInteger:
		return f.Min
	case KindEnum:
		return f.Enum[0]
	case KindStringList:
		return []string{"mock " + f.Name}
	case KindObject:
		return sampleObject(f.Fields)
	case KindOneOf:
		return sampleValue(f.Alternatives[0].Shape)
	default:
		return "mock " + f.Name
	}
}
