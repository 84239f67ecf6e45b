package pipeline

import "fmt"

// ValidationError reports a missing or empty required input field.
// It is returned before any external call is made.
type ValidationError struct {
	Step string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for step %s: %v", e.Step, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// UpstreamError reports a failed LLM API call (auth, network, rate
// limit, malformed response). The underlying cause is preserved. No
// usage record is appended for a failed call.
type UpstreamError struct {
	Step string
	Err  error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream call failed for step %s: %v", e.Step, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
