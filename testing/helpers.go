// Package testing provides fakes for exercising rehearsal engines without a
// real backend.
package testing

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/rehearsal"
)

// Invoker name constants for test helpers.
const (
	SequencedInvokerName = "sequenced-mock"
	FailingInvokerName   = "failing-mock"
)

// defaultUsage is reported by every fake that produces output.
var defaultUsage = rehearsal.TokenUsage{Prompt: 100, Completion: 50, Total: 150}

// ResponseBuilder provides a fluent interface for constructing mock model output.
type ResponseBuilder struct {
	data   map[string]any
	fenced bool
	prose  string
}

// NewResponseBuilder creates a new ResponseBuilder.
func NewResponseBuilder() *ResponseBuilder {
	return &ResponseBuilder{
		data: make(map[string]any),
	}
}

// WithAction sets the action field (simulation call sites).
func (b *ResponseBuilder) WithAction(action string) *ResponseBuilder {
	b.data["action"] = action
	return b
}

// WithEmotions sets emotion_change.new_emotion_state. Values are passed
// through unchecked so tests can produce out-of-range output.
func (b *ResponseBuilder) WithEmotions(anger, disgust, fear, joy, sadness, surprise int) *ResponseBuilder {
	b.data["emotion_change"] = map[string]any{
		"new_emotion_state": map[string]int{
			"anger":    anger,
			"disgust":  disgust,
			"fear":     fear,
			"joy":      joy,
			"sadness":  sadness,
			"surprise": surprise,
		},
	}
	return b
}

// WithDecisionPoints sets the decision_points field.
func (b *ResponseBuilder) WithDecisionPoints(points ...string) *ResponseBuilder {
	b.data["decision_points"] = points
	return b
}

// WithDialogueAnalysis sets the dialogue_analysis field.
func (b *ResponseBuilder) WithDialogueAnalysis(analysis string) *ResponseBuilder {
	b.data["dialogue_analysis"] = analysis
	return b
}

// WithHint sets the hint_message field.
func (b *ResponseBuilder) WithHint(hint string) *ResponseBuilder {
	b.data["hint_message"] = hint
	return b
}

// WithField sets an arbitrary field.
func (b *ResponseBuilder) WithField(key string, value any) *ResponseBuilder {
	b.data[key] = value
	return b
}

// Fenced wraps the JSON in a ```json fence, optionally surrounded by prose,
// the way chat models usually answer.
func (b *ResponseBuilder) Fenced(prose string) *ResponseBuilder {
	b.fenced = true
	b.prose = prose
	return b
}

// Build returns the response text.
func (b *ResponseBuilder) Build() string {
	jsonBytes, err := json.Marshal(b.data)
	if err != nil {
		return "{}"
	}
	if !b.fenced {
		return string(jsonBytes)
	}
	return fmt.Sprintf("%s\n```json\n%s\n```\n", b.prose, jsonBytes)
}

// SequencedInvoker returns responses in sequence.
// After all responses are exhausted, it returns the last response repeatedly.
type SequencedInvoker struct {
	responses []string
	index     atomic.Int64
}

// NewSequencedInvoker creates an invoker that returns responses in order.
func NewSequencedInvoker(responses ...string) *SequencedInvoker {
	if len(responses) == 0 {
		responses = []string{`{"error": "no responses configured"}`}
	}
	return &SequencedInvoker{
		responses: responses,
	}
}

// Call returns the next response in sequence.
func (p *SequencedInvoker) Call(ctx context.Context, _ string) (*rehearsal.Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx := p.index.Add(1) - 1

	// Clamp to last response if exhausted
	if int(idx) >= len(p.responses) {
		idx = int64(len(p.responses) - 1)
	}

	return &rehearsal.Output{Text: p.responses[idx], Usage: defaultUsage}, nil
}

// Name returns the provider identifier.
func (*SequencedInvoker) Name() string {
	return SequencedInvokerName
}

// CallCount returns the number of calls made.
func (p *SequencedInvoker) CallCount() int {
	return int(p.index.Load())
}

// Reset resets the call counter.
func (p *SequencedInvoker) Reset() {
	p.index.Store(0)
}

// FailingInvoker fails a specified number of times before succeeding.
type FailingInvoker struct {
	failCount    int
	currentCount atomic.Int64
	successResp  string
	failErr      error
}

// NewFailingInvoker creates an invoker that fails failCount times then succeeds.
func NewFailingInvoker(failCount int) *FailingInvoker {
	return &FailingInvoker{
		failCount:   failCount,
		successResp: NewResponseBuilder().WithHint("recovered").Build(),
		failErr:     fmt.Errorf("simulated provider failure"),
	}
}

// WithSuccessResponse sets the response returned after failures are exhausted.
func (p *FailingInvoker) WithSuccessResponse(response string) *FailingInvoker {
	p.successResp = response
	return p
}

// WithFailError sets the error returned for failures.
func (p *FailingInvoker) WithFailError(err error) *FailingInvoker {
	p.failErr = err
	return p
}

// Call fails until failCount is reached, then succeeds.
func (p *FailingInvoker) Call(_ context.Context, _ string) (*rehearsal.Output, error) {
	count := p.currentCount.Add(1)
	if int(count) <= p.failCount {
		return nil, fmt.Errorf("%w (attempt %d/%d)", p.failErr, count, p.failCount)
	}
	return &rehearsal.Output{Text: p.successResp, Usage: defaultUsage}, nil
}

// Name returns the provider identifier.
func (*FailingInvoker) Name() string {
	return FailingInvokerName
}

// CallCount returns the number of calls made.
func (p *FailingInvoker) CallCount() int {
	return int(p.currentCount.Load())
}

// Reset resets the call counter.
func (p *FailingInvoker) Reset() {
	p.currentCount.Store(0)
}

// RecordedCall represents a single call to an invoker.
type RecordedCall struct {
	Prompt string
	At     time.Time
}

// CallRecorder wraps an invoker and records all calls made to it.
type CallRecorder struct {
	invoker rehearsal.Invoker
	calls   []RecordedCall
	mu      sync.Mutex
}

// NewCallRecorder wraps an invoker with call recording.
func NewCallRecorder(invoker rehearsal.Invoker) *CallRecorder {
	return &CallRecorder{
		invoker: invoker,
		calls:   make([]RecordedCall, 0),
	}
}

// Call delegates to the wrapped invoker and records the call.
func (r *CallRecorder) Call(ctx context.Context, prompt string) (*rehearsal.Output, error) {
	r.mu.Lock()
	r.calls = append(r.calls, RecordedCall{Prompt: prompt, At: time.Now()})
	r.mu.Unlock()

	return r.invoker.Call(ctx, prompt)
}

// Name returns the wrapped invoker's name.
func (r *CallRecorder) Name() string {
	return r.invoker.Name()
}

// Calls returns a copy of all recorded calls.
func (r *CallRecorder) Calls() []RecordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()

	calls := make([]RecordedCall, len(r.calls))
	copy(calls, r.calls)
	return calls
}

// CallCount returns the number of calls recorded.
func (r *CallRecorder) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// LastCall returns the most recent call, or nil if no calls made.
func (r *CallRecorder) LastCall() *RecordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.calls) == 0 {
		return nil
	}
	call := r.calls[len(r.calls)-1]
	return &call
}

// Reset clears all recorded calls.
func (r *CallRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = make([]RecordedCall, 0)
}

// LatencyInvoker wraps an invoker and adds artificial latency.
type LatencyInvoker struct {
	invoker rehearsal.Invoker
	delay   time.Duration
}

// NewLatencyInvoker wraps an invoker with artificial delay.
// The delay is applied before each call and respects context cancellation.
func NewLatencyInvoker(invoker rehearsal.Invoker, delay time.Duration) *LatencyInvoker {
	return &LatencyInvoker{
		invoker: invoker,
		delay:   delay,
	}
}

// Call adds latency then delegates to the wrapped invoker.
func (p *LatencyInvoker) Call(ctx context.Context, prompt string) (*rehearsal.Output, error) {
	if p.delay > 0 {
		timer := time.NewTimer(p.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return p.invoker.Call(ctx, prompt)
}

// Name returns the wrapped invoker's name.
func (p *LatencyInvoker) Name() string {
	return p.invoker.Name()
}

// UsageAccumulator tracks total token usage across multiple runs.
type UsageAccumulator struct {
	promptTokens     atomic.Int64
	completionTokens atomic.Int64
	totalTokens      atomic.Int64
	callCount        atomic.Int64
}

// NewUsageAccumulator creates a new usage accumulator.
func NewUsageAccumulator() *UsageAccumulator {
	return &UsageAccumulator{}
}

// Add accumulates usage from a validated result.
func (a *UsageAccumulator) Add(result *rehearsal.Result) {
	if result != nil {
		a.AddUsage(result.Usage)
	}
}

// AddUsage accumulates usage directly.
func (a *UsageAccumulator) AddUsage(usage *rehearsal.TokenUsage) {
	if usage != nil {
		a.promptTokens.Add(int64(usage.Prompt))
		a.completionTokens.Add(int64(usage.Completion))
		a.totalTokens.Add(int64(usage.Total))
		a.callCount.Add(1)
	}
}

// PromptTokens returns total prompt tokens.
func (a *UsageAccumulator) PromptTokens() int {
	return int(a.promptTokens.Load())
}

// CompletionTokens returns total completion tokens.
func (a *UsageAccumulator) CompletionTokens() int {
	return int(a.completionTokens.Load())
}

// TotalTokens returns total tokens.
func (a *UsageAccumulator) TotalTokens() int {
	return int(a.totalTokens.Load())
}

// CallCount returns number of results accumulated.
func (a *UsageAccumulator) CallCount() int {
	return int(a.callCount.Load())
}
