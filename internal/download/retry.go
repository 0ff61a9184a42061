package download

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/sermonarc/sermonarc/internal/catalog"
	"github.com/sermonarc/sermonarc/internal/transfer"
)

// sleeper pauses between retries and page fetches. Tests swap in a recording
// no-op so schedules can be asserted without waiting them out.
type sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryPolicy bounds how often and how patiently failed operations are
// reattempted. The delay doubles per attempt up to MaxDelay, with jitter so
// parallel workers do not retry in lockstep. A Retry-After hint from the
// service overrides the computed delay.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// delay computes the pause after the given 1-based failed attempt.
func (p RetryPolicy) delay(attempt int, err error) time.Duration {
	var netErr *transfer.NetworkError
	if errors.As(err, &netErr) && netErr.RetryAfter > 0 {
		if netErr.RetryAfter > p.MaxDelay {
			return p.MaxDelay
		}

		return netErr.RetryAfter
	}

	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		if d > p.MaxDelay/2 {
			d = p.MaxDelay

			break
		}

		d *= 2
	}

	if d <= 0 {
		return 0
	}

	return d + time.Duration(rand.Int63n(int64(d)/5+1))
}

// isRetriable reports whether another attempt may succeed. Context
// cancellation and validation failures are final; network hiccups, 5xx
// responses, rate limiting and truncated bodies are worth retrying.
func isRetriable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// A page that parses wrong today will parse wrong in two seconds too.
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return false
	}

	var netErr *transfer.NetworkError
	if errors.As(err, &netErr) {
		return retriableStatus(netErr.StatusCode)
	}

	var reqErr *catalog.RequestError
	if errors.As(err, &reqErr) {
		return retriableStatus(reqErr.StatusCode)
	}

	var sizeErr *transfer.SizeMismatchError
	if errors.As(err, &sizeErr) {
		return true
	}

	var timeoutErr net.Error
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return true
	}

	return errors.Is(err, io.ErrUnexpectedEOF)
}

func retriableStatus(code int) bool {
	switch {
	case code == 0:
		// Transport-level failure, no response at all.
		return true
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}
