package rehearsal

import (
	"context"
	"errors"
	"strings"

	"github.com/zoobzio/pipz"
)

// NewInvokeStage wraps an Invoker as the first stage of the attempt pipeline.
// The stage applies the per-attempt timeout, rejects blank output, and records
// its failure on the request before returning it.
func NewInvokeStage(invoker Invoker) pipz.Chainable[*AttemptRequest] {
	return pipz.Apply("invoke", func(ctx context.Context, req *AttemptRequest) (*AttemptRequest, error) {
		// A fallback may re-run this stage on the same request.
		req.Err = nil
		req.Output = nil

		callCtx := ctx
		if req.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, req.Timeout)
			defer cancel()
		}

		out, err := invoker.Call(callCtx, req.Prompt)
		if err != nil {
			req.Err = asTransportError(ctx, invoker.Name(), err)
			return req, req.Err
		}

		req.Output = out
		if out == nil || strings.TrimSpace(out.Text) == "" {
			req.Err = ErrEmptyOutput
			return req, req.Err
		}
		return req, nil
	})
}

func extractStage() pipz.Chainable[*AttemptRequest] {
	return pipz.Apply("extract", func(_ context.Context, req *AttemptRequest) (*AttemptRequest, error) {
		payload, err := Extract(req.Output.Text)
		if err != nil {
			req.Err = err
			return req, err
		}
		req.Payload = payload
		return req, nil
	})
}

func validateStage() pipz.Chainable[*AttemptRequest] {
	return pipz.Apply("validate", func(_ context.Context, req *AttemptRequest) (*AttemptRequest, error) {
		result, err := Validate(req.Payload, req.Descriptor)
		if err != nil {
			req.Err = err
			return req, err
		}
		for _, check := range req.Checks {
			if err := check(result); err != nil {
				req.Err = err
				return req, err
			}
		}
		req.Result = result
		return req, nil
	})
}

// asTransportError classifies an invoker failure. Cancellation of the caller's
// context is passed through untouched so Run can report it as such.
func asTransportError(ctx context.Context, provider string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Provider: provider, Err: err}
}
