package download

import (
	"sort"

	"github.com/sermonarc/sermonarc/internal/catalog"
	"github.com/sermonarc/sermonarc/internal/transfer"
)

// MediaKind selects which asset family to download.
type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

// Resolver ranks an item's available renditions against a kind and quality
// preference and derives the tag metadata for the winner.
type Resolver struct {
	kind  MediaKind
	order []string
}

// NewResolver builds a resolver preferring the given tier and falling back
// through the remaining tiers from best to worst.
func NewResolver(kind MediaKind, preferred string) *Resolver {
	ladder := []string{catalog.TierHigh, catalog.TierLow}
	if kind == KindVideo {
		ladder = []string{catalog.Tier1080, catalog.TierHigh, catalog.TierLow}
	}

	order := make([]string, 0, len(ladder)+1)
	if preferred != "" {
		order = append(order, preferred)
	}

	for _, tier := range ladder {
		if tier != preferred {
			order = append(order, tier)
		}
	}

	return &Resolver{kind: kind, order: order}
}

// Rank returns every rendition of the requested kind, most preferred first.
// Renditions with unrecognized tiers sort last in catalog order.
func (r *Resolver) Rank(s catalog.Sermon) []transfer.Asset {
	media := s.Audio
	ext := ".mp3"

	if r.kind == KindVideo {
		media = s.Video
		ext = ".mp4"
	}

	ranked := make([]catalog.Media, len(media))
	copy(ranked, media)

	sort.SliceStable(ranked, func(i, j int) bool {
		return r.tierRank(ranked[i].Tier) < r.tierRank(ranked[j].Tier)
	})

	assets := make([]transfer.Asset, 0, len(ranked))
	for _, m := range ranked {
		assets = append(assets, transfer.Asset{
			ItemID:       s.ID,
			Kind:         string(r.kind),
			Tier:         m.Tier,
			URL:          m.URL,
			Ext:          ext,
			ExpectedSize: m.Bytes,
			Meta:         metadataFor(s),
		})
	}

	return assets
}

// Resolve returns the single best asset, or false when the item has no
// rendition of the requested kind. Callers treat false as a skip, not a
// failure.
func (r *Resolver) Resolve(s catalog.Sermon) (*transfer.Asset, bool) {
	assets := r.Rank(s)
	if len(assets) == 0 {
		return nil, false
	}

	return &assets[0], true
}

func (r *Resolver) tierRank(tier string) int {
	for i, t := range r.order {
		if t == tier {
			return i
		}
	}

	return len(r.order)
}

func metadataFor(s catalog.Sermon) transfer.Metadata {
	meta := transfer.Metadata{
		Title:   displayTitle(s),
		Speaker: s.Speaker,
		Series:  s.Series,
		Comment: s.PageURL,
	}

	if len(s.PreachDate) >= 4 {
		meta.Year = s.PreachDate[:4]
	}

	return meta
}
