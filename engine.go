package rehearsal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/pipz"
)

// Policy bounds the retry loop of one Run.
type Policy struct {
	MaxAttempts    int           // Total attempts including the first
	Delay          time.Duration // Fixed wait between attempts
	AttemptTimeout time.Duration // Per-call bound on the invoker; 0 means none
}

// DefaultPolicy is three attempts two seconds apart, each bounded to a minute.
var DefaultPolicy = Policy{
	MaxAttempts:    3,
	Delay:          2 * time.Second,
	AttemptTimeout: 60 * time.Second,
}

// RunOption overrides the engine policy or adds payload checks for a single Run.
type RunOption func(*runConfig)

type runConfig struct {
	policy Policy
	checks []Check
}

// Check inspects a payload that already passed Validate. A non-nil error
// rejects the attempt like any other contract violation, so it is retried.
type Check func(*Result) error

// WithMaxAttempts sets the attempt budget for one Run. Values below 1 mean 1.
func WithMaxAttempts(n int) RunOption {
	return func(c *runConfig) { c.policy.MaxAttempts = n }
}

// WithDelay sets the wait between attempts for one Run.
func WithDelay(d time.Duration) RunOption {
	return func(c *runConfig) { c.policy.Delay = d }
}

// WithAttemptTimeout bounds each invoker call of one Run.
func WithAttemptTimeout(d time.Duration) RunOption {
	return func(c *runConfig) { c.policy.AttemptTimeout = d }
}

// WithCheck adds a check every validated payload of one Run must pass.
func WithCheck(check Check) RunOption {
	return func(c *runConfig) { c.checks = append(c.checks, check) }
}

// WithVariant requires the union at path to resolve to the named alternative.
func WithVariant(path, alternative string) RunOption {
	return WithCheck(func(r *Result) error {
		if got := r.Variant(path); got != alternative {
			return &SchemaViolation{Field: path, Reason: fmt.Sprintf("expected the %s alternative, got %q", alternative, got)}
		}
		return nil
	})
}

// WithValue requires the top-level string field to equal value.
func WithValue(field, value string) RunOption {
	return WithCheck(func(r *Result) error {
		if got, _ := r.Value[field].(string); got != value {
			return &SchemaViolation{Field: field, Reason: fmt.Sprintf("expected %q, got %q", value, got)}
		}
		return nil
	})
}

// Engine is the retry coordinator. It owns no per-call state: every Run keeps
// its loop on its own stack, so one Engine serves any number of concurrent
// calls without locking.
type Engine struct {
	registry     *Registry
	pipeline     pipz.Chainable[*AttemptRequest]
	providerName string
	policy       Policy
}

// New builds an engine that validates against registry and calls invoker.
// Options wrap the invoke stage only; extraction and validation are local
// and never rate limited or circuit broken.
func New(invoker Invoker, registry *Registry, opts ...Option) *Engine {
	invoke := NewInvokeStage(invoker)
	for _, opt := range opts {
		invoke = opt(invoke)
	}

	return &Engine{
		registry:     registry,
		pipeline:     pipz.NewSequence("attempt", invoke, extractStage(), validateStage()),
		providerName: invoker.Name(),
		policy:       DefaultPolicy,
	}
}

// WithPolicy replaces the engine's default policy.
func (e *Engine) WithPolicy(p Policy) *Engine {
	e.policy = p
	return e
}

// Policy returns the engine's default policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Registry returns the registry the engine validates against.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// GetPipeline returns the attempt pipeline for composition and testing.
func (e *Engine) GetPipeline() pipz.Chainable[*AttemptRequest] {
	return e.pipeline
}

// Run drives invoke → extract → validate until a payload for callSite
// validates or the attempt budget is spent.
//
// It returns ErrUnknownCallSite without contacting the backend when callSite
// is not registered. Every other failure is retried after the policy delay
// and, once attempts run out, reported as a single *ExhaustedError carrying
// the most recent reason. A permanent transport failure (such as rejected
// credentials) ends the loop early. Cancelling ctx stops the loop promptly,
// including during the inter-attempt wait; the error then unwraps to ctx.Err().
func (e *Engine) Run(ctx context.Context, prompt, callSite string, opts ...RunOption) (*Result, error) {
	descriptor, err := e.registry.Describe(callSite)
	if err != nil {
		return nil, err
	}

	cfg := runConfig{policy: e.policy}
	for _, opt := range opts {
		opt(&cfg)
	}
	policy := cfg.policy
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.Delay < 0 {
		policy.Delay = 0
	}

	requestID := uuid.New().String()

	capitan.Info(ctx, RunStarted,
		RequestIDKey.Field(requestID),
		CallSiteKey.Field(callSite),
		ProviderKey.Field(e.providerName),
		PromptKey.Field(prompt),
		MaxAttemptsKey.Field(policy.MaxAttempts),
		DelayMsKey.Field(int(policy.Delay.Milliseconds())),
	)

	history := make([]Attempt, 0, min(policy.MaxAttempts, 8))
	var last error

	for index := 1; index <= policy.MaxAttempts; index++ {
		if index > 1 {
			if err := wait(ctx, policy.Delay); err != nil {
				last = err
				break
			}
		}

		req := &AttemptRequest{
			Prompt:     prompt,
			Descriptor: descriptor,
			Timeout:    policy.AttemptTimeout,
			Checks:     cfg.checks,
			RequestID:  requestID,
			Index:      index,
		}

		capitan.Info(ctx, AttemptStarted,
			RequestIDKey.Field(requestID),
			CallSiteKey.Field(callSite),
			AttemptKey.Field(index),
		)

		start := time.Now()
		_, err := e.pipeline.Process(ctx, req)
		if err == nil && req.Result != nil {
			result := req.Result
			result.RequestID = requestID
			result.Attempts = index
			if req.Output != nil {
				usage := req.Output.Usage
				result.Usage = &usage
			}

			fields := []capitan.Field{
				RequestIDKey.Field(requestID),
				CallSiteKey.Field(callSite),
				ProviderKey.Field(e.providerName),
				AttemptKey.Field(index),
				OutputKey.Field(compactJSON(result.Raw)),
			}
			if len(result.Variants) > 0 {
				fields = append(fields, VariantKey.Field(variantSummary(result.Variants)))
			}
			capitan.Info(ctx, RunSucceeded, fields...)
			return result, nil
		}

		last = e.attemptError(ctx, req, err)
		record := Attempt{Index: index, Err: last, Duration: time.Since(start)}
		if req.Output != nil {
			record.Raw = req.Output.Text
		}
		history = append(history, record)

		capitan.Error(ctx, AttemptFailed,
			RequestIDKey.Field(requestID),
			CallSiteKey.Field(callSite),
			ProviderKey.Field(e.providerName),
			AttemptKey.Field(index),
			MaxAttemptsKey.Field(policy.MaxAttempts),
			ResponseKey.Field(record.Raw),
			ErrorKey.Field(last.Error()),
			ErrorTypeKey.Field(errorType(last)),
			DurationMsKey.Field(int(record.Duration.Milliseconds())),
		)

		if ctxErr := ctx.Err(); ctxErr != nil {
			last = ctxErr
			break
		}
		if IsPermanent(last) {
			break
		}
	}

	exhausted := &ExhaustedError{
		CallSite: callSite,
		Attempts: len(history),
		Last:     last,
		History:  history,
	}

	capitan.Error(ctx, RunExhausted,
		RequestIDKey.Field(requestID),
		CallSiteKey.Field(callSite),
		ProviderKey.Field(e.providerName),
		AttemptKey.Field(len(history)),
		ErrorKey.Field(last.Error()),
		ErrorTypeKey.Field(errorType(last)),
	)

	return nil, exhausted
}

// attemptError prefers the error recorded by the rejecting stage; failures
// raised by pipeline wrappers (rate limiter, circuit breaker) and per-attempt
// timeouts are transport failures.
func (e *Engine) attemptError(ctx context.Context, req *AttemptRequest, err error) error {
	if req.Err != nil {
		return req.Err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err == nil {
		// Pipeline finished without producing a result; treat as a backend fault.
		err = errors.New("attempt produced no result")
	}
	return &TransportError{Provider: e.providerName, Err: err}
}

// RunAs runs callSite and decodes the validated payload into T.
func RunAs[T any](ctx context.Context, e *Engine, prompt, callSite string, opts ...RunOption) (T, error) {
	var out T
	result, err := e.Run(ctx, prompt, callSite, opts...)
	if err != nil {
		return out, err
	}
	if err := result.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func variantSummary(variants map[string]string) string {
	parts := make([]string, 0, len(variants))
	for path, name := range variants {
		parts = append(parts, path+"="+name)
	}
	return strings.Join(parts, ",")
}
