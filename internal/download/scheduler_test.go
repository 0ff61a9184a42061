package download

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sermonarc/sermonarc/internal/auth"
	"github.com/sermonarc/sermonarc/internal/catalog"
	"github.com/sermonarc/sermonarc/internal/transfer"
)

const testAPIKey = "1B2D0A64-44C8-4F21-86F3-AB7E3D9C1004"

type stubKeySource struct {
	mu    sync.Mutex
	key   string
	calls int
}

func (s *stubKeySource) FetchKey(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++

	return s.key, nil
}

func (s *stubKeySource) fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

type fakeFetcher struct {
	mu        sync.Mutex
	calls     map[string]int
	active    int32
	maxActive int32
	delay     time.Duration
	failFirst map[string]error // returned on the item's first call only
	alwaysErr map[string]error
	exists    map[string]bool
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		calls:     make(map[string]int),
		failFirst: make(map[string]error),
		alwaysErr: make(map[string]error),
		exists:    make(map[string]bool),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, asset *transfer.Asset, targetPath string) (*transfer.Result, error) {
	cur := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)

	for {
		seen := atomic.LoadInt32(&f.maxActive)
		if cur <= seen || atomic.CompareAndSwapInt32(&f.maxActive, seen, cur) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls[asset.ItemID]++
	n := f.calls[asset.ItemID]

	var err error
	if e, ok := f.failFirst[asset.ItemID]; ok && n == 1 {
		err = e
	}

	if e, ok := f.alwaysErr[asset.ItemID]; ok {
		err = e
	}

	exists := f.exists[asset.ItemID]
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}

	if exists {
		return &transfer.Result{Path: targetPath, Bytes: 100, AlreadyExists: true}, nil
	}

	return &transfer.Result{Path: targetPath, Bytes: 1000}, nil
}

func (f *fakeFetcher) callCount(itemID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[itemID]
}

func feedItems(items []catalog.Sermon) <-chan catalog.Sermon {
	ch := make(chan catalog.Sermon)

	go func() {
		defer close(ch)

		for _, item := range items {
			ch <- item
		}
	}()

	return ch
}

func collectResults(results <-chan ItemResult) map[string]ItemResult {
	out := make(map[string]ItemResult)
	for res := range results {
		out[res.ItemID] = res
	}

	return out
}

func TestSchedulerBoundsConcurrency(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.delay = 25 * time.Millisecond

	sched := NewScheduler(NewResolver(KindAudio, catalog.TierHigh), fetcher, nil, t.TempDir(), 3, quickPolicy()).
		WithSleeper(noSleep)

	results := sched.Run(context.Background(), feedItems(makeSermons(1, 12)))
	out := collectResults(results)

	require.Len(t, out, 12)

	for id, res := range out {
		assert.Equal(t, StatusSuccess, res.Status, "item %s", id)
	}

	assert.LessOrEqual(t, atomic.LoadInt32(&fetcher.maxActive), int32(3), "more transfers in flight than the limit allows")
	assert.GreaterOrEqual(t, atomic.LoadInt32(&fetcher.maxActive), int32(2), "pool never filled, limit not exercised")
}

func TestSchedulerRetriesTransientFailure(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.failFirst["1"] = &transfer.NetworkError{Operation: "fetch_asset", StatusCode: 503, APIMessage: "upstream hiccup"}

	sched := NewScheduler(NewResolver(KindAudio, catalog.TierHigh), fetcher, nil, t.TempDir(), 2, quickPolicy()).
		WithSleeper(noSleep)

	out := collectResults(sched.Run(context.Background(), feedItems(makeSermons(1, 1))))

	res := out["1"]
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 2, fetcher.callCount("1"))
}

func TestSchedulerPermanentFailureIsNotRetried(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.alwaysErr["1"] = &transfer.NetworkError{Operation: "fetch_asset", StatusCode: 404, APIMessage: "gone"}

	sched := NewScheduler(NewResolver(KindAudio, catalog.TierHigh), fetcher, nil, t.TempDir(), 2, quickPolicy()).
		WithSleeper(noSleep)

	out := collectResults(sched.Run(context.Background(), feedItems(makeSermons(1, 1))))

	res := out["1"]
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, fetcher.callCount("1"))
}

func TestSchedulerExhaustsRetryBound(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.alwaysErr["1"] = &transfer.NetworkError{Operation: "fetch_asset", StatusCode: 500, APIMessage: "broken"}

	sched := NewScheduler(NewResolver(KindAudio, catalog.TierHigh), fetcher, nil, t.TempDir(), 2, quickPolicy()).
		WithSleeper(noSleep)

	out := collectResults(sched.Run(context.Background(), feedItems(makeSermons(1, 1))))

	res := out["1"]
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, 3, res.Attempts)
	require.Error(t, res.Err)
}

func TestSchedulerSkipsItemsWithoutAssets(t *testing.T) {
	fetcher := newFakeFetcher()

	sched := NewScheduler(NewResolver(KindAudio, catalog.TierHigh), fetcher, nil, t.TempDir(), 2, quickPolicy()).
		WithSleeper(noSleep)

	items := []catalog.Sermon{{ID: "200001", Title: "Video Only", Speaker: "S"}}
	out := collectResults(sched.Run(context.Background(), feedItems(items)))

	res := out["200001"]
	assert.Equal(t, StatusSkipped, res.Status)
	assert.Equal(t, "no matching asset", res.Reason)
	assert.Equal(t, 0, res.Attempts)
	assert.Equal(t, 0, fetcher.callCount("200001"))
}

func TestSchedulerReportsAlreadyDownloaded(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.exists["1"] = true

	sched := NewScheduler(NewResolver(KindAudio, catalog.TierHigh), fetcher, nil, t.TempDir(), 2, quickPolicy()).
		WithSleeper(noSleep)

	out := collectResults(sched.Run(context.Background(), feedItems(makeSermons(1, 1))))

	res := out["1"]
	assert.Equal(t, StatusSkipped, res.Status)
	assert.Equal(t, "already downloaded", res.Reason)
	assert.False(t, res.Fetched)
}

func TestSchedulerRejectionRefreshThenSuccess(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.failFirst["1"] = &transfer.AuthenticationError{Operation: "fetch_asset", StatusCode: 401, Rejected: "stale-key"}

	refresher := &fakeRefresher{key: "fresh-key"}

	sched := NewScheduler(NewResolver(KindAudio, catalog.TierHigh), fetcher, refresher, t.TempDir(), 2, quickPolicy()).
		WithSleeper(noSleep)

	out := collectResults(sched.Run(context.Background(), feedItems(makeSermons(1, 1))))

	res := out["1"]
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, 1, res.Attempts, "a refreshed credential retry is not a backoff attempt")
	assert.Equal(t, []string{"stale-key"}, refresher.rejections())
}

func TestSchedulerConcurrentRejectionsCollapseIntoOneRefresh(t *testing.T) {
	items := makeSermons(1, 4)

	fetcher := newFakeFetcher()
	for _, item := range items {
		fetcher.failFirst[item.ID] = &transfer.AuthenticationError{Operation: "fetch_asset", StatusCode: 401, Rejected: "stale-key"}
	}

	source := &stubKeySource{key: testAPIKey}
	manager := auth.NewManager(source, nil, nil)

	sched := NewScheduler(NewResolver(KindAudio, catalog.TierHigh), fetcher, manager, t.TempDir(), 4, quickPolicy()).
		WithSleeper(noSleep)

	out := collectResults(sched.Run(context.Background(), feedItems(items)))

	require.Len(t, out, 4)

	for id, res := range out {
		assert.Equal(t, StatusSuccess, res.Status, "item %s", id)
	}

	assert.Equal(t, 1, source.fetches(), "concurrent rejections of the same credential must collapse into one acquisition")
}

func TestSchedulerEveryItemGetsExactlyOneResult(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.delay = 40 * time.Millisecond

	sched := NewScheduler(NewResolver(KindAudio, catalog.TierHigh), fetcher, nil, t.TempDir(), 1, quickPolicy()).
		WithSleeper(noSleep)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := sched.Run(ctx, feedItems(makeSermons(1, 6)))

	count := 0
	statuses := make(map[string]int)

	for res := range results {
		count++
		statuses[res.Status]++

		if count == 1 {
			cancel()
		}
	}

	assert.Equal(t, 6, count, "every scheduled item must produce exactly one terminal result")
	assert.GreaterOrEqual(t, statuses[StatusFailed], 4, "items after cancellation are failed, not dropped")
}

func TestSchedulerFatalCredentialFailureStopsRun(t *testing.T) {
	items := makeSermons(1, 3)

	fetcher := newFakeFetcher()
	for _, item := range items {
		fetcher.alwaysErr[item.ID] = &transfer.AuthenticationError{Operation: "fetch_asset", StatusCode: 401, Rejected: "stale-key"}
	}

	refresher := &fakeRefresher{err: &auth.AcquireError{Source: "web", Reason: "registration rejected"}}

	sched := NewScheduler(NewResolver(KindAudio, catalog.TierHigh), fetcher, refresher, t.TempDir(), 1, quickPolicy()).
		WithSleeper(noSleep)

	out := collectResults(sched.Run(context.Background(), feedItems(items)))

	require.Len(t, out, 3)

	for id, res := range out {
		assert.Equal(t, StatusFailed, res.Status, "item %s", id)
	}

	var all []ItemResult
	for _, res := range out {
		all = append(all, res)
	}

	require.Error(t, fatalResultErr(all), "the acquire failure must be visible as fatal")
}
