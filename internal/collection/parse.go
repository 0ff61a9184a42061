package collection

import (
	"regexp"
	"strings"
)

var (
	speakerPath     = regexp.MustCompile(`/speakers?/(\d+)`)
	broadcasterPath = regexp.MustCompile(`/broadcasters?/([A-Za-z0-9._-]+)`)
	seriesPath      = regexp.MustCompile(`/series/(\d+)`)
	sermonPath      = regexp.MustCompile(`/sermons?/(\d+)`)
	mediaPath       = regexp.MustCompile(`/media/(?:audio|video)/[^/]+/(\d+)\.`)
	bareSermonID    = regexp.MustCompile(`^\d{6,}$`)
)

var pathKinds = []struct {
	re   *regexp.Regexp
	kind Kind
}{
	{speakerPath, KindSpeaker},
	{broadcasterPath, KindBroadcaster},
	{seriesPath, KindSeries},
	{mediaPath, KindSermon},
	{sermonPath, KindSermon},
}

// Parse resolves raw user input into a Ref. It accepts catalog page URLs
// (speaker, broadcaster, series, sermon), direct media URLs, and bare sermon
// IDs (six or more digits).
func Parse(raw string) (Ref, error) {
	raw = strings.TrimSpace(raw)

	if bareSermonID.MatchString(raw) {
		return Ref{Kind: KindSermon, ID: raw}, nil
	}

	for _, p := range pathKinds {
		if m := p.re.FindStringSubmatch(raw); m != nil {
			return Ref{Kind: p.kind, ID: m[1]}, nil
		}
	}

	return Ref{}, &UnknownRefError{Input: raw}
}
