package download

import (
	"time"

	"github.com/google/uuid"

	"github.com/sermonarc/sermonarc/internal/collection"
)

// RunReport aggregates one coordinator invocation. Counters are folded in by
// the single goroutine draining the scheduler's result channel, never
// concurrently.
type RunReport struct {
	RunID        string
	Ref          collection.Ref
	StartedAt    time.Time
	Elapsed      time.Duration
	Succeeded    int
	Skipped      int
	Failed       int
	Deduped      int
	BytesFetched int64
	Results      []ItemResult
	Err          error
}

func newRunReport(ref collection.Ref) *RunReport {
	return &RunReport{
		RunID:     uuid.NewString(),
		Ref:       ref,
		StartedAt: time.Now(),
	}
}

// Add folds one terminal item outcome into the aggregate counters.
func (r *RunReport) Add(res ItemResult) {
	r.Results = append(r.Results, res)

	switch res.Status {
	case StatusSuccess:
		r.Succeeded++
		r.BytesFetched += res.Bytes
	case StatusSkipped:
		r.Skipped++
	default:
		r.Failed++
	}
}

// Failures returns the failed results in completion order.
func (r *RunReport) Failures() []ItemResult {
	var failed []ItemResult

	for _, res := range r.Results {
		if res.Status == StatusFailed {
			failed = append(failed, res)
		}
	}

	return failed
}
