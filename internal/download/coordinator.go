package download

import (
	"context"
	"errors"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sermonarc/sermonarc/internal/auth"
	"github.com/sermonarc/sermonarc/internal/catalog"
	"github.com/sermonarc/sermonarc/internal/collection"
	"github.com/sermonarc/sermonarc/internal/logctx"
	"github.com/sermonarc/sermonarc/internal/storage"
)

// Ledger records terminal item outcomes for later inspection. Implemented by
// the sqlite history repository.
type Ledger interface {
	RecordResult(ctx context.Context, rec storage.Record) error
}

// Coordinator drives one run: walk the collection, push descriptors into the
// scheduler, fold results into a report.
type Coordinator struct {
	catalog   Catalog
	scheduler *Scheduler
	ledger    Ledger
	creds     CredentialRefresher
	pageSize  int
	startPage int
	policy    RetryPolicy
	sleep     sleeper
}

// NewCoordinator wires a coordinator. ledger may be nil, in which case runs
// leave no history.
func NewCoordinator(
	cat Catalog,
	sched *Scheduler,
	ledger Ledger,
	creds CredentialRefresher,
	pageSize int,
	policy RetryPolicy,
) *Coordinator {
	return &Coordinator{
		catalog:   cat,
		scheduler: sched,
		ledger:    ledger,
		creds:     creds,
		pageSize:  pageSize,
		policy:    policy,
		sleep:     sleepContext,
	}
}

// WithSleeper overrides how pagination pauses are performed (useful for
// tests).
func (c *Coordinator) WithSleeper(s sleeper) *Coordinator {
	c.sleep = s

	return c
}

// WithStartPage resumes the collection walk at the given 1-based listing
// page, skipping everything before it.
func (c *Coordinator) WithStartPage(page int) *Coordinator {
	c.startPage = page

	return c
}

// Execute walks ref and downloads the best matching asset of every item. The
// report is complete even when pagination failed partway: transfers already
// scheduled still finish and are counted, and report.Err carries the
// pagination failure.
func (c *Coordinator) Execute(ctx context.Context, ref collection.Ref) *RunReport {
	report := newRunReport(ref)

	logger := logctx.LoggerFromContext(ctx).With("run_id", report.RunID, "collection", ref.String())
	ctx = logctx.WithLogger(ctx, logger)

	logger.Info("starting run")

	pag := NewPaginator(c.catalog, ref, c.pageSize, c.policy, c.creds).WithSleeper(c.sleep)
	if c.startPage > 1 {
		pag = pag.WithStartPage(c.startPage)
	}

	items := make(chan catalog.Sermon)
	results := c.scheduler.Run(ctx, items)

	go func() {
		defer close(items)

		for pag.Next(ctx) {
			select {
			case items <- pag.Item():
			case <-ctx.Done():
				return
			}
		}
	}()

	for res := range results {
		report.Add(res)
		c.record(ctx, report, res)
	}

	report.Deduped = pag.Deduped()
	report.Elapsed = time.Since(report.StartedAt)

	if err := pag.Err(); err != nil {
		logger.Error("pagination failed", "err", err)

		report.Err = err
	} else if fatal := fatalResultErr(report.Results); fatal != nil {
		report.Err = fatal
	}

	logger.Info("run finished",
		"succeeded", report.Succeeded,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"deduped", report.Deduped,
		"fetched", humanize.Bytes(uint64(report.BytesFetched)),
		"elapsed", report.Elapsed.Round(time.Millisecond))

	return report
}

func (c *Coordinator) record(ctx context.Context, report *RunReport, res ItemResult) {
	if c.ledger == nil {
		return
	}

	rec := storage.Record{
		RunID:      report.RunID,
		ItemID:     res.ItemID,
		Collection: report.Ref.String(),
		Title:      res.Title,
		Path:       res.Path,
		Status:     res.Status,
		Attempts:   res.Attempts,
		Bytes:      res.Bytes,
		Reason:     res.Reason,
	}

	if err := c.ledger.RecordResult(ctx, rec); err != nil {
		logctx.LoggerFromContext(ctx).Warn("failed to record run history", "item_id", res.ItemID, "err", err)
	}
}

// fatalResultErr surfaces a credential acquisition failure buried in item
// results, so the caller sees the run as aborted rather than merely partial.
func fatalResultErr(results []ItemResult) error {
	for _, res := range results {
		var acquireErr *auth.AcquireError
		if errors.As(res.Err, &acquireErr) {
			return res.Err
		}
	}

	return nil
}
