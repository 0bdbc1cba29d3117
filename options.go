package rehearsal

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/zoobzio/pipz"
)

// Option wraps the invoke stage of the attempt pipeline. Options apply to
// every attempt of every Run made by the engine; the engine's own loop stays
// responsible for retries.
type Option func(pipz.Chainable[*AttemptRequest]) pipz.Chainable[*AttemptRequest]

// WithCircuitBreaker stops calling the backend after 'failures' consecutive
// invoke failures and keeps it closed off for 'recovery'. Rejected attempts
// count against the run's budget like any transport failure.
func WithCircuitBreaker(failures int, recovery time.Duration) Option {
	return func(pipeline pipz.Chainable[*AttemptRequest]) pipz.Chainable[*AttemptRequest] {
		return pipz.NewCircuitBreaker("circuit-breaker", pipeline, failures, recovery)
	}
}

// WithRateLimit throttles backend calls across all runs sharing the engine.
// rps = requests per second, burst = burst capacity.
func WithRateLimit(rps float64, burst int) Option {
	return func(pipeline pipz.Chainable[*AttemptRequest]) pipz.Chainable[*AttemptRequest] {
		rateLimiter := pipz.NewRateLimiter[*AttemptRequest]("rate-limit", rps, burst)
		return pipz.NewSequence("rate-limited", rateLimiter, pipeline)
	}
}

// WithFallback calls a second backend when the primary fails within an
// attempt. Output from either backend is then extracted and validated the
// same way.
func WithFallback(fallback Invoker) Option {
	return func(pipeline pipz.Chainable[*AttemptRequest]) pipz.Chainable[*AttemptRequest] {
		return pipz.NewFallback("with-fallback", pipeline, NewInvokeStage(fallback))
	}
}

// WithDebug writes each prompt and raw response to w.
func WithDebug(w io.Writer) Option {
	return func(pipeline pipz.Chainable[*AttemptRequest]) pipz.Chainable[*AttemptRequest] {
		return pipz.Apply("debug", func(ctx context.Context, req *AttemptRequest) (*AttemptRequest, error) {
			fmt.Fprintf(w, "=== attempt %d prompt ===\n%s\n", req.Index, req.Prompt)

			processed, err := pipeline.Process(ctx, req)
			if err != nil {
				fmt.Fprintf(w, "=== attempt %d error ===\n%v\n", req.Index, err)
				return processed, err
			}

			fmt.Fprintf(w, "=== attempt %d response ===\n%s\n", req.Index, processed.Output.Text)
			return processed, nil
		})
	}
}
