package catalog

import "fmt"

// RequestError represents a failed catalog API call, either at the transport
// layer (StatusCode 0) or an unexpected HTTP response.
type RequestError struct {
	Operation  string // the API operation that failed, e.g. "list_sermons"
	StatusCode int    // HTTP status code, 0 for non-HTTP errors
	APIMessage string // response body excerpt or transport error text
	Err        error  // underlying error, if any
}

func (e *RequestError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("catalog request %s failed (HTTP %d): %s", e.Operation, e.StatusCode, e.APIMessage)
	}

	return fmt.Sprintf("catalog request %s failed: %s", e.Operation, e.APIMessage)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// CredentialRejectedError reports that the catalog refused the presented
// credential. Rejected carries the refused value so the credential manager
// can tell a stale rejection from a fresh one; it is never printed.
type CredentialRejectedError struct {
	Operation  string
	StatusCode int
	Rejected   string
}

func (e *CredentialRejectedError) Error() string {
	return fmt.Sprintf("catalog rejected credential during %s (HTTP %d)", e.Operation, e.StatusCode)
}
