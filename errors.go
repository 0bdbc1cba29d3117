package rehearsal

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for the failure taxonomy.
// Per-attempt failures are recovered by the engine; only ErrUnknownCallSite
// and ErrExhaustedRetries ever reach a caller of Run.
var (
	ErrUnknownCallSite  = errors.New("unknown call site")
	ErrTransport        = errors.New("transport error")
	ErrEmptyOutput      = errors.New("empty model output")
	ErrNoJSONFound      = errors.New("no json found")
	ErrMalformedJSON    = errors.New("malformed json")
	ErrSchemaViolation  = errors.New("schema violation")
	ErrExhaustedRetries = errors.New("exhausted retries")
)

// TransportError reports a backend call that could not complete:
// network, auth, rate limiting, provider-internal failures and per-attempt timeouts.
type TransportError struct {
	Provider   string
	StatusCode int  // HTTP status when known, 0 otherwise
	Permanent  bool // retrying cannot help (e.g. invalid credentials)
	Err        error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString("transport error")
	if e.Provider != "" {
		b.WriteString(" from ")
		b.WriteString(e.Provider)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is matches ErrTransport so callers can classify without errors.As.
func (*TransportError) Is(target error) bool { return target == ErrTransport }

// IsPermanent reports whether err carries a TransportError marked permanent.
func IsPermanent(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Permanent
}

// SchemaViolation reports a payload that parsed but does not satisfy its descriptor.
// Field is a dotted path from the payload root, e.g. "emotion_change.new_emotion_state.anger".
type SchemaViolation struct {
	Field  string
	Reason string
}

func (e *SchemaViolation) Error() string {
	return fmt.Sprintf("schema violation at %q: %s", e.Field, e.Reason)
}

func (*SchemaViolation) Is(target error) bool { return target == ErrSchemaViolation }

// Attempt records the outcome of one failed pass through the attempt pipeline.
type Attempt struct {
	Index    int // 1-based
	Raw      string
	Err      error
	Duration time.Duration
}

// ExhaustedError is returned by Run once every allowed attempt has failed,
// or earlier when a permanent transport failure makes further attempts pointless.
// It unwraps to the most recent failure.
type ExhaustedError struct {
	CallSite string
	Attempts int
	Last     error
	History  []Attempt
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: call site %q failed after %d attempt(s): %v", ErrExhaustedRetries, e.CallSite, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

func (*ExhaustedError) Is(target error) bool { return target == ErrExhaustedRetries }

// errorType maps a failure onto the label used in hook events.
func errorType(err error) string {
	switch {
	case errors.Is(err, ErrEmptyOutput):
		return "empty_output"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrNoJSONFound):
		return "no_json_found"
	case errors.Is(err, ErrMalformedJSON):
		return "malformed_json"
	case errors.Is(err, ErrSchemaViolation):
		return "schema_violation"
	default:
		return "unknown"
	}
}
