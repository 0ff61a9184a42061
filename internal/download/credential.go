package download

import (
	"context"
	"errors"

	"github.com/sermonarc/sermonarc/internal/catalog"
	"github.com/sermonarc/sermonarc/internal/transfer"
)

// maxCredentialRefreshes bounds how many replacement credentials a single
// operation gets before its rejection becomes final.
const maxCredentialRefreshes = 2

// CredentialRefresher replaces a rejected credential with a fresh one.
// Implemented by auth.Manager.
type CredentialRefresher interface {
	Refresh(ctx context.Context, rejected string) (string, error)
}

// rejectedCredential extracts the credential a catalog or media response
// rejected, when err carries one.
func rejectedCredential(err error) (string, bool) {
	var authErr *transfer.AuthenticationError
	if errors.As(err, &authErr) {
		return authErr.Rejected, true
	}

	var credErr *catalog.CredentialRejectedError
	if errors.As(err, &credErr) {
		return credErr.Rejected, true
	}

	return "", false
}

// runner executes operations under the retry policy, replacing the shared
// credential when the service rejects it. A rejection is resolved inside the
// running attempt without backoff, since the fresh credential is expected to
// work immediately.
type runner struct {
	policy RetryPolicy
	creds  CredentialRefresher
	sleep  sleeper
}

// do runs op until it succeeds, the failure is final, or the attempt bound is
// hit. It returns how many attempts were consumed alongside the last error.
func (r runner) do(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	for attempt := 1; ; attempt++ {
		err := r.withCredentialRefresh(ctx, op)
		if err == nil {
			return attempt, nil
		}

		if attempt >= r.policy.MaxAttempts || !isRetriable(err) {
			return attempt, err
		}

		if serr := r.sleep(ctx, r.policy.delay(attempt, err)); serr != nil {
			return attempt, err
		}
	}
}

func (r runner) withCredentialRefresh(ctx context.Context, op func(ctx context.Context) error) error {
	err := op(ctx)

	for i := 0; i < maxCredentialRefreshes; i++ {
		rejected, ok := rejectedCredential(err)
		if !ok || r.creds == nil {
			return err
		}

		if _, rerr := r.creds.Refresh(ctx, rejected); rerr != nil {
			return rerr
		}

		err = op(ctx)
	}

	return err
}
