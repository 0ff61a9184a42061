package transfer

import (
	"fmt"
	"time"
)

// InvalidAssetError reports an asset that cannot be fetched as resolved,
// for example one with no media URL.
type InvalidAssetError struct {
	ItemID string // catalog item the asset belongs to
	Reason string // human-readable explanation of why the asset is invalid
}

func (e *InvalidAssetError) Error() string {
	return fmt.Sprintf("invalid asset for item %s: %s", e.ItemID, e.Reason)
}

// NetworkError represents transport failures and unexpected HTTP responses
// from the media host, including 5xx responses and rate limiting.
type NetworkError struct {
	Operation  string        // the operation that failed, e.g. "fetch_asset"
	StatusCode int           // HTTP status code, 0 for non-HTTP errors
	APIMessage string        // message from the server or transport layer
	RetryAfter time.Duration // server-requested delay, 0 when absent
	Err        error         // underlying error, if any
}

func (e *NetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("network error during %s (HTTP %d): %s", e.Operation, e.StatusCode, e.APIMessage)
	}

	return fmt.Sprintf("network error during %s: %s", e.Operation, e.APIMessage)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// AuthenticationError represents 401 and 403 responses from the media host.
// Rejected carries the refused credential so the credential manager can tell
// a stale rejection from a fresh one; it is never printed.
type AuthenticationError struct {
	Operation  string
	StatusCode int
	Rejected   string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed during %s (HTTP %d)", e.Operation, e.StatusCode)
}

// DirectoryError represents failures preparing the destination directory.
type DirectoryError struct {
	Dir    string // the directory that caused the error
	Reason string // human-readable explanation
	Err    error  // underlying error, if any
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("directory error for %q: %s", e.Dir, e.Reason)
}

func (e *DirectoryError) Unwrap() error {
	return e.Err
}

// SizeMismatchError reports a completed read whose byte count does not match
// the size the catalog announced. The temp file is discarded before this is
// returned, so the destination never holds a short file.
type SizeMismatchError struct {
	Path string
	Want int64
	Got  int64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("size mismatch for %s: want %d bytes, got %d", e.Path, e.Want, e.Got)
}
