// Package rehearsal coerces generative language models into producing
// schema-conformant JSON for a role-play training backend.
//
// A call site is described once by a Descriptor in a Registry. At request
// time the Engine runs a bounded retry loop around a three stage attempt
// pipeline built with pipz:
//
//   - invoke: one call to the model through an Invoker
//   - extract: isolate the JSON candidate from free-form output
//   - validate: parse it and check every declared field
//
// Per-attempt failures (transport, empty output, missing or malformed JSON,
// schema violations) are retried after a fixed delay. Callers only ever see
// a fully validated Result, ErrUnknownCallSite, or an *ExhaustedError.
//
// Basic usage:
//
//	registry := rehearsal.MustRegistry(
//	    rehearsal.NewDescriptor("hint", rehearsal.String("hint_message")),
//	)
//	engine := rehearsal.New(provider, registry)
//	result, err := engine.Run(ctx, prompt, "hint")
//	fmt.Println(result.Value["hint_message"])
package rehearsal

import "context"

// Invoker performs exactly one call to a generative backend.
// Implementations must not retry; retry policy belongs to the Engine.
// Call must honour ctx cancellation and deadlines.
type Invoker interface {
	// Call sends the finished prompt and returns the raw model text.
	Call(ctx context.Context, prompt string) (*Output, error)

	// Name returns the provider identifier (e.g., "gemini", "openai")
	Name() string
}

// TokenUsage contains token counts from a provider response.
type TokenUsage struct {
	Prompt     int // Tokens used by the prompt
	Completion int // Tokens used by the completion
	Total      int // Total tokens used
}

// Output is the unstructured text returned by one model call.
type Output struct {
	Text  string
	Usage TokenUsage
}
