package rehearsal

import "time"

// AttemptRequest flows through the pipz attempt pipeline.
// A fresh request is created for every attempt so no state leaks between them.
type AttemptRequest struct {
	// Input fields
	Prompt     string      // The finished prompt sent to the model
	Descriptor *Descriptor // The contract the payload must satisfy
	Timeout    time.Duration
	Checks     []Check // Run-specific checks applied after validation

	// Metadata fields
	RequestID string // Shared by every attempt of one Run
	Index     int    // 1-based attempt number

	// Output fields (populated by pipeline stages)
	Output  *Output // Raw model output
	Payload string  // Extracted JSON candidate
	Result  *Result // Set only when validation passed
	Err     error   // Failure recorded by the stage that rejected the attempt
}
