package inference

import "fmt"

// Error wraps an inference failure with its classification and how many
// attempts were made, so the caller can print a precise diagnostic.
type Error struct {
	Transient bool
	Attempts  int
	Err       error
}

func (e *Error) Error() string {
	kind := "fatal"
	if e.Transient {
		kind = "transient (retries exhausted)"
	}
	return fmt.Sprintf("inference failed after %d attempt(s), %s: %v", e.Attempts, kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
