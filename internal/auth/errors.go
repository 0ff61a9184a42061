package auth

import "fmt"

// AcquireError reports a failed credential acquisition or refresh.
type AcquireError struct {
	Source string // where the credential was sought, e.g. "web"
	Reason string // human-readable explanation when there is no underlying error
	Err    error  // underlying error, if any
}

func (e *AcquireError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("credential acquisition from %s failed: %s", e.Source, e.Reason)
	}

	return fmt.Sprintf("credential acquisition from %s failed", e.Source)
}

func (e *AcquireError) Unwrap() error {
	return e.Err
}
