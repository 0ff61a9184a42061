package download

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"github.com/sermonarc/sermonarc/internal/auth"
	"github.com/sermonarc/sermonarc/internal/catalog"
	"github.com/sermonarc/sermonarc/internal/logctx"
	"github.com/sermonarc/sermonarc/internal/transfer"
)

// Terminal item outcomes.
const (
	StatusSuccess = "success"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// ItemResult is the terminal outcome of one scheduled item. Every descriptor
// handed to the scheduler produces exactly one.
type ItemResult struct {
	ItemID   string
	Title    string
	Page     int
	Status   string
	Reason   string
	Attempts int
	Bytes    int64
	Path     string
	Fetched  bool // bytes actually moved; false for skips of any kind
	Err      error
}

// Fetcher performs one asset transfer. Implemented by transfer.Executor.
type Fetcher interface {
	Fetch(ctx context.Context, asset *transfer.Asset, targetPath string) (*transfer.Result, error)
}

// Scheduler drains a descriptor sequence through a bounded pool of transfer
// workers. An item failure never cancels sibling transfers; only a failed
// credential acquisition stops the run early, since no later item can succeed
// without a credential.
type Scheduler struct {
	resolver  *Resolver
	fetcher   Fetcher
	outputDir string
	parallel  int
	run       runner
}

func NewScheduler(
	resolver *Resolver,
	fetcher Fetcher,
	creds CredentialRefresher,
	outputDir string,
	parallel int,
	policy RetryPolicy,
) *Scheduler {
	if parallel < 1 {
		parallel = 1
	}

	return &Scheduler{
		resolver:  resolver,
		fetcher:   fetcher,
		outputDir: outputDir,
		parallel:  parallel,
		run:       runner{policy: policy, creds: creds, sleep: sleepContext},
	}
}

// WithSleeper overrides how retry pauses are performed (useful for tests).
func (s *Scheduler) WithSleeper(sl sleeper) *Scheduler {
	s.run.sleep = sl

	return s
}

// Run consumes items until the channel closes and emits one result per item
// as transfers complete, in completion order. The result channel closes once
// every item is accounted for. After cancellation the remaining items are
// failed without dispatching; in-flight transfers finish or abort on their
// own.
func (s *Scheduler) Run(ctx context.Context, items <-chan catalog.Sermon) <-chan ItemResult {
	results := make(chan ItemResult)

	go func() {
		defer close(results)

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		var wg sync.WaitGroup

		sem := make(chan struct{}, s.parallel)

		for item := range items {
			select {
			case <-ctx.Done():
				results <- ItemResult{
					ItemID: item.ID,
					Title:  displayTitle(item),
					Page:   item.Page,
					Status: StatusFailed,
					Reason: "run cancelled",
					Err:    ctx.Err(),
				}

				continue
			case sem <- struct{}{}:
			}

			wg.Add(1)

			item := item

			go func() {
				defer wg.Done()
				defer func() { <-sem }() // release the slot

				res := s.process(ctx, item)
				if isFatal(res.Err) {
					cancel()
				}

				results <- res
			}()
		}

		wg.Wait()
	}()

	return results
}

func (s *Scheduler) process(ctx context.Context, item catalog.Sermon) ItemResult {
	logger := logctx.LoggerFromContext(ctx).With("item_id", item.ID)

	res := ItemResult{ItemID: item.ID, Title: displayTitle(item), Page: item.Page}

	asset, ok := s.resolver.Resolve(item)
	if !ok {
		logger.Debug("no matching asset", "title", res.Title)

		res.Status = StatusSkipped
		res.Reason = "no matching asset"

		return res
	}

	targetPath := filepath.Join(s.outputDir, RelPath(item, asset.Ext))

	var out *transfer.Result

	attempts, err := s.run.do(ctx, func(ctx context.Context) error {
		var ferr error
		out, ferr = s.fetcher.Fetch(ctx, asset, targetPath)

		return ferr
	})

	res.Attempts = attempts

	if err != nil {
		logger.Error("failed to download item", "title", res.Title, "attempts", attempts, "err", err)

		res.Status = StatusFailed
		res.Reason = err.Error()
		res.Err = err

		return res
	}

	res.Path = out.Path
	res.Bytes = out.Bytes

	if out.AlreadyExists {
		res.Status = StatusSkipped
		res.Reason = "already downloaded"

		return res
	}

	res.Status = StatusSuccess
	res.Fetched = true

	return res
}

// isFatal reports whether an item error poisons the whole run.
func isFatal(err error) bool {
	var acquireErr *auth.AcquireError

	return errors.As(err, &acquireErr)
}
