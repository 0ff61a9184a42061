package download

import (
	"context"
	"time"

	"github.com/sermonarc/sermonarc/internal/catalog"
	"github.com/sermonarc/sermonarc/internal/collection"
	"github.com/sermonarc/sermonarc/internal/logctx"
)

// pageDelay spaces successive listing page fetches to stay within the
// catalog's fair-use expectations.
const pageDelay = 350 * time.Millisecond

// maxWalkPages bounds a single walk in case the listing never shortens, e.g.
// a caching layer replaying the same full page forever. At the default page
// size that is five thousand items, well past the largest real collections.
const maxWalkPages = 200

// Catalog is the catalog API surface the engine consumes.
type Catalog interface {
	ListSermons(ctx context.Context, ref collection.Ref, page, pageSize int) ([]catalog.Sermon, error)
	Sermon(ctx context.Context, id string) (*catalog.Sermon, error)
}

// Paginator walks a collection's listing pages in increasing order and yields
// every item exactly once, even when the service paginates with overlapping
// pages. A page shorter than the page size ends the walk. Not safe for
// concurrent use; one walk per value.
//
// Usage mirrors bufio.Scanner:
//
//	for p.Next(ctx) {
//		item := p.Item()
//	}
//	if err := p.Err(); err != nil { ... }
type Paginator struct {
	client   Catalog
	ref      collection.Ref
	pageSize int
	run      runner

	page    int
	fetched int
	buf     []catalog.Sermon
	idx     int
	cur     catalog.Sermon
	seen    map[string]struct{}
	emitted int
	dropped int
	last    bool
	err     error
}

func NewPaginator(client Catalog, ref collection.Ref, pageSize int, policy RetryPolicy, creds CredentialRefresher) *Paginator {
	return &Paginator{
		client:   client,
		ref:      ref,
		pageSize: pageSize,
		run:      runner{policy: policy, creds: creds, sleep: sleepContext},
		seen:     make(map[string]struct{}),
	}
}

// WithSleeper overrides how inter-page and retry pauses are performed
// (useful for tests).
func (p *Paginator) WithSleeper(s sleeper) *Paginator {
	p.run.sleep = s

	return p
}

// WithStartPage resumes the walk from the given 1-based listing page instead
// of the first one.
func (p *Paginator) WithStartPage(page int) *Paginator {
	if page > 1 {
		p.page = page - 1
	}

	return p
}

// Next advances to the next unique item. It returns false when the collection
// is exhausted or a page could not be fetched; Err distinguishes the two.
func (p *Paginator) Next(ctx context.Context) bool {
	if p.err != nil {
		return false
	}

	for {
		for p.idx < len(p.buf) {
			item := p.buf[p.idx]
			p.idx++

			if item.ID == "" {
				continue
			}

			if _, dup := p.seen[item.ID]; dup {
				p.dropped++

				continue
			}

			p.seen[item.ID] = struct{}{}
			p.emitted++
			item.Page = p.page
			p.cur = item

			return true
		}

		if p.last {
			return false
		}

		if !p.fetchNextPage(ctx) {
			return false
		}
	}
}

// Item returns the descriptor produced by the last successful Next.
func (p *Paginator) Item() catalog.Sermon {
	return p.cur
}

// Err returns the failure that stopped the walk, or nil after a clean end.
func (p *Paginator) Err() error {
	return p.err
}

// Emitted reports how many unique items the walk has produced so far.
func (p *Paginator) Emitted() int {
	return p.emitted
}

// Deduped reports how many duplicate descriptors overlapping pages produced.
func (p *Paginator) Deduped() int {
	return p.dropped
}

func (p *Paginator) fetchNextPage(ctx context.Context) bool {
	if p.ref.Kind == collection.KindSermon {
		return p.fetchSingle(ctx)
	}

	if p.fetched >= maxWalkPages {
		logctx.LoggerFromContext(ctx).Warn("listing page cap reached, stopping enumeration",
			"collection", p.ref.String(),
			"pages", p.fetched)

		p.last = true

		return false
	}

	if p.page > 0 {
		if err := p.run.sleep(ctx, pageDelay); err != nil {
			p.err = &PaginationError{Page: p.page + 1, Emitted: p.emitted, Err: err}

			return false
		}
	}

	p.page++

	var items []catalog.Sermon

	_, err := p.run.do(ctx, func(ctx context.Context) error {
		var lerr error
		items, lerr = p.client.ListSermons(ctx, p.ref, p.page, p.pageSize)

		return lerr
	})
	if err != nil {
		p.err = &PaginationError{Page: p.page, Emitted: p.emitted, Err: err}

		return false
	}

	p.fetched++

	logctx.LoggerFromContext(ctx).Debug("fetched listing page",
		"collection", p.ref.String(),
		"page", p.page,
		"items", len(items))

	if len(items) < p.pageSize {
		p.last = true
	}

	p.buf = items
	p.idx = 0

	return true
}

// fetchSingle serves SingleSermon references: exactly one descriptor, no
// pagination.
func (p *Paginator) fetchSingle(ctx context.Context) bool {
	p.page = 1
	p.last = true

	var item *catalog.Sermon

	_, err := p.run.do(ctx, func(ctx context.Context) error {
		var gerr error
		item, gerr = p.client.Sermon(ctx, p.ref.ID)

		return gerr
	})
	if err != nil {
		p.err = &PaginationError{Page: 1, Emitted: 0, Err: err}

		return false
	}

	p.buf = []catalog.Sermon{*item}
	p.idx = 0

	return true
}
