package download

import "fmt"

// PaginationError reports a catalog listing failure partway through a
// collection walk. Emitted counts the unique items already produced before
// the failure; those items still get downloaded.
type PaginationError struct {
	Page    int
	Emitted int
	Err     error
}

func (e *PaginationError) Error() string {
	return fmt.Sprintf("listing page %d failed after %d items: %v", e.Page, e.Emitted, e.Err)
}

func (e *PaginationError) Unwrap() error {
	return e.Err
}
