package download

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sermonarc/sermonarc/internal/catalog"
)

func TestResolverPrefersRequestedTier(t *testing.T) {
	r := NewResolver(KindAudio, catalog.TierHigh)

	s := catalog.Sermon{
		ID: "100001",
		Audio: []catalog.Media{
			{Tier: catalog.TierLow, URL: "https://media.test/media/audio/low/100001.mp3", Bytes: 1000},
			{Tier: catalog.TierHigh, URL: "https://media.test/media/audio/high/100001.mp3", Bytes: 8000},
		},
	}

	asset, ok := r.Resolve(s)
	require.True(t, ok)
	assert.Equal(t, catalog.TierHigh, asset.Tier)
	assert.Equal(t, int64(8000), asset.ExpectedSize)
	assert.Equal(t, ".mp3", asset.Ext)
	assert.Equal(t, "audio", asset.Kind)
}

func TestResolverFallsBackThroughTiers(t *testing.T) {
	r := NewResolver(KindAudio, catalog.TierHigh)

	s := catalog.Sermon{
		ID:    "100002",
		Audio: []catalog.Media{{Tier: catalog.TierLow, URL: "https://media.test/media/audio/low/100002.mp3"}},
	}

	asset, ok := r.Resolve(s)
	require.True(t, ok, "an item with only a lower tier must still resolve")
	assert.Equal(t, catalog.TierLow, asset.Tier)
}

func TestResolverVideoLadder(t *testing.T) {
	r := NewResolver(KindVideo, catalog.Tier1080)

	s := catalog.Sermon{
		ID: "100003",
		Video: []catalog.Media{
			{Tier: catalog.TierLow, URL: "l"},
			{Tier: catalog.TierHigh, URL: "h"},
			{Tier: catalog.Tier1080, URL: "f"},
		},
	}

	assets := r.Rank(s)
	require.Len(t, assets, 3)
	assert.Equal(t, catalog.Tier1080, assets[0].Tier)
	assert.Equal(t, catalog.TierHigh, assets[1].Tier)
	assert.Equal(t, catalog.TierLow, assets[2].Tier)
	assert.Equal(t, ".mp4", assets[0].Ext)
}

func TestResolverSkipsItemsWithoutRequestedKind(t *testing.T) {
	r := NewResolver(KindVideo, catalog.Tier1080)

	s := catalog.Sermon{ID: "100004", Audio: []catalog.Media{{Tier: catalog.TierHigh, URL: "u"}}}

	_, ok := r.Resolve(s)
	assert.False(t, ok)
}

func TestResolverRanksUnknownTiersLast(t *testing.T) {
	r := NewResolver(KindAudio, catalog.TierHigh)

	s := catalog.Sermon{
		ID: "100005",
		Audio: []catalog.Media{
			{Tier: "experimental", URL: "u1"},
			{Tier: "beta", URL: "u2"},
			{Tier: catalog.TierLow, URL: "u3"},
		},
	}

	assets := r.Rank(s)
	require.Len(t, assets, 3)
	assert.Equal(t, catalog.TierLow, assets[0].Tier)
	assert.Equal(t, "experimental", assets[1].Tier, "unknown tiers keep catalog order")
	assert.Equal(t, "beta", assets[2].Tier)
}

func TestResolverMetadata(t *testing.T) {
	r := NewResolver(KindAudio, "")

	s := catalog.Sermon{
		ID:         "100006",
		Title:      "Grace Abounding",
		Speaker:    "John Bunyan",
		Series:     "Pilgrim Life",
		PreachDate: "2023-05-14",
		PageURL:    "https://www.sermonaudio.com/sermons/100006",
		Audio:      []catalog.Media{{Tier: catalog.TierHigh, URL: "u"}},
	}

	asset, ok := r.Resolve(s)
	require.True(t, ok)
	assert.Equal(t, "Grace Abounding", asset.Meta.Title)
	assert.Equal(t, "John Bunyan", asset.Meta.Speaker)
	assert.Equal(t, "Pilgrim Life", asset.Meta.Series)
	assert.Equal(t, "2023", asset.Meta.Year)
	assert.Equal(t, "https://www.sermonaudio.com/sermons/100006", asset.Meta.Comment)
}
