package rehearsal

import "github.com/zoobzio/capitan"

// Signals for hook events.
const (
	RunStarted            = capitan.Signal("rehearsal.run.started")
	RunSucceeded          = capitan.Signal("rehearsal.run.succeeded")
	RunExhausted          = capitan.Signal("rehearsal.run.exhausted")
	AttemptStarted        = capitan.Signal("rehearsal.attempt.started")
	AttemptFailed         = capitan.Signal("rehearsal.attempt.failed")
	ProviderCallStarted   = capitan.Signal("rehearsal.provider.call.started")
	ProviderCallCompleted = capitan.Signal("rehearsal.provider.call.completed")
	ProviderCallFailed    = capitan.Signal("rehearsal.provider.call.failed")
)

// Keys for hook event fields.
var (
	// Request identification.
	RequestIDKey = capitan.NewStringKey("rehearsal.request.id")
	CallSiteKey  = capitan.NewStringKey("rehearsal.call_site")
	PromptKey    = capitan.NewStringKey("rehearsal.prompt")

	// Attempt bookkeeping.
	AttemptKey     = capitan.NewIntKey("rehearsal.attempt")
	MaxAttemptsKey = capitan.NewIntKey("rehearsal.attempt.max")
	DelayMsKey     = capitan.NewIntKey("rehearsal.attempt.delay.ms")

	// Output data.
	ResponseKey = capitan.NewStringKey("rehearsal.response")
	OutputKey   = capitan.NewStringKey("rehearsal.output")
	VariantKey  = capitan.NewStringKey("rehearsal.variant")

	// Error information.
	ErrorKey     = capitan.NewStringKey("rehearsal.error")
	ErrorTypeKey = capitan.NewStringKey("rehearsal.error.type")

	// Provider information.
	ProviderKey = capitan.NewStringKey("rehearsal.provider")
	ModelKey    = capitan.NewStringKey("rehearsal.model")

	// Provider metrics.
	PromptTokensKey     = capitan.NewIntKey("rehearsal.tokens.prompt")
	CompletionTokensKey = capitan.NewIntKey("rehearsal.tokens.completion")
	TotalTokensKey      = capitan.NewIntKey("rehearsal.tokens.total")
	DurationMsKey       = capitan.NewIntKey("rehearsal.duration.ms")

	// HTTP/API metadata.
	HTTPStatusCodeKey = capitan.NewIntKey("rehearsal.http.status.code")
	ResponseIDKey     = capitan.NewStringKey("rehearsal.response.id")
	FinishReasonKey   = capitan.NewStringKey("rehearsal.response.finish.reason")
	APIErrorTypeKey   = capitan.NewStringKey("rehearsal.api.error.type")
)
