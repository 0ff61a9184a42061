// Package auth manages the opaque catalog credential: acquisition,
// persistence and replacement after the catalog rejects it. Validity is
// empirical; the manager never probes upstream, it reacts to rejections
// reported by callers.
package auth

import (
	"context"
	"regexp"
	"sync"

	"github.com/sermonarc/sermonarc/internal/logctx"
	"github.com/sermonarc/sermonarc/internal/telemetry"
	"golang.org/x/sync/singleflight"
)

// validKey is the shape of catalog API keys. Anything else found in the
// store is treated as corrupt and discarded.
var validKey = regexp.MustCompile(`^[A-F0-9-]{30,}$`)

// IsValidKey reports whether s looks like a catalog API key.
func IsValidKey(s string) bool {
	return validKey.MatchString(s)
}

// KeySource produces a fresh credential from upstream.
type KeySource interface {
	FetchKey(ctx context.Context) (string, error)
}

// Store persists the credential between runs.
type Store interface {
	Load() (string, error)
	Save(key string) error
}

// Manager hands out the current credential and replaces it on rejection.
// Concurrent refreshes collapse into a single upstream acquisition; every
// blocked caller receives the same outcome.
type Manager struct {
	source KeySource
	store  Store
	tel    *telemetry.Telemetry

	group singleflight.Group

	mu  sync.RWMutex
	key string
}

// NewManager creates a credential manager. store may be nil, in which case
// the credential lives only for the process lifetime.
func NewManager(source KeySource, store Store, tel *telemetry.Telemetry) *Manager {
	return &Manager{source: source, store: store, tel: tel}
}

// Token returns the current credential, loading the stored one or acquiring
// a fresh one on first use.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.RLock()
	key := m.key
	m.mu.RUnlock()

	if key != "" {
		return key, nil
	}

	return m.acquire(ctx, "")
}

// Refresh replaces the credential after the catalog rejected it. The rejected
// value is compared against the current one so that late reporters of an
// already-replaced credential get the current value back instead of forcing
// another acquisition.
func (m *Manager) Refresh(ctx context.Context, rejected string) (string, error) {
	m.mu.RLock()
	current := m.key
	m.mu.RUnlock()

	if current != "" && current != rejected {
		return current, nil
	}

	return m.acquire(ctx, rejected)
}

func (m *Manager) acquire(ctx context.Context, rejected string) (string, error) {
	v, err, _ := m.group.Do("credential", func() (any, error) {
		// Re-check under the flight: a caller that queued behind a finished
		// refresh must not trigger another one.
		m.mu.RLock()
		current := m.key
		m.mu.RUnlock()

		if current != "" && current != rejected {
			return current, nil
		}

		logger := logctx.LoggerFromContext(ctx)

		if rejected == "" && m.store != nil {
			stored, err := m.store.Load()

			switch {
			case err != nil:
				logger.Debug("no stored credential", "err", err)
			case IsValidKey(stored):
				m.setKey(stored)

				return stored, nil
			case stored != "":
				logger.Warn("discarding malformed stored credential")
			}
		}

		fresh, err := m.source.FetchKey(ctx)
		if err != nil {
			m.tel.RecordCredentialRefresh("error")

			return nil, &AcquireError{Source: "web", Err: err}
		}

		if !IsValidKey(fresh) {
			m.tel.RecordCredentialRefresh("error")

			return nil, &AcquireError{Source: "web", Reason: "upstream returned a malformed key"}
		}

		m.setKey(fresh)

		if m.store != nil {
			if err := m.store.Save(fresh); err != nil {
				logger.Warn("failed to persist credential", "err", err)
			}
		}

		m.tel.RecordCredentialRefresh("success")
		logger.Info("catalog credential acquired")

		return fresh, nil
	})
	if err != nil {
		return "", err
	}

	return v.(string), nil
}

func (m *Manager) setKey(key string) {
	m.mu.Lock()
	m.key = key
	m.mu.Unlock()
}
