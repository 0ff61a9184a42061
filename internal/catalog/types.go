package catalog

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// Media quality tiers as exposed by the catalog media pipeline. Audio comes in
// low and high; video additionally in 1080p.
const (
	TierLow  = "low"
	TierHigh = "high"
	Tier1080 = "1080p"
)

// Sermon is a catalog item descriptor: enough identity and media information
// to resolve and fetch its assets without another catalog round trip.
type Sermon struct {
	ID            string
	Title         string
	FullTitle     string
	Speaker       string
	Broadcaster   string
	BroadcasterID string
	Series        string
	PreachDate    string // ISO date, may be empty
	PageURL       string
	Page          int // listing page that produced this descriptor; stamped by the paginator
	Audio         []Media
	Video         []Media
}

// Media is a single downloadable rendition of a sermon.
type Media struct {
	Tier  string
	URL   string
	Bytes int64
}

// SearchResult is one hit from the catalog search endpoint.
type SearchResult struct {
	Kind   string // speaker, broadcaster, series or sermon
	ID     string
	Name   string
	Detail string
}

type envelope struct {
	Results []wireSermon `json:"results"`
	Next    string       `json:"next"`
}

type wireSermon struct {
	SermonID     string           `json:"sermonID"`
	DisplayTitle string           `json:"displayTitle"`
	FullTitle    string           `json:"fullTitle"`
	PreachDate   string           `json:"preachDate"`
	Speaker      *wireSpeaker     `json:"speaker"`
	Broadcaster  *wireBroadcaster `json:"broadcaster"`
	Series       *wireSeries      `json:"series"`
	Media        wireMedia        `json:"media"`
}

type wireSpeaker struct {
	SpeakerID   json.Number `json:"speakerID"`
	DisplayName string      `json:"displayName"`
}

type wireBroadcaster struct {
	BroadcasterID string `json:"broadcasterID"`
	DisplayName   string `json:"displayName"`
}

type wireSeries struct {
	SeriesID json.Number `json:"seriesID"`
	Title    string      `json:"title"`
}

type wireMedia struct {
	Audio []wireMediaItem `json:"audio"`
	Video []wireMediaItem `json:"video"`
}

type wireMediaItem struct {
	MediaType     string `json:"mediaType"`
	DownloadURL   string `json:"downloadURL"`
	StreamURL     string `json:"streamURL"`
	Bitrate       int64  `json:"bitrate"`
	FileSizeBytes int64  `json:"fileSizeBytes"`
}

// The search endpoint groups hits by kind instead of interleaving them.
type searchEnvelope struct {
	BroadcasterResults []wireBroadcasterHit `json:"broadcasterResults"`
	SpeakerResults     []wireSpeakerHit     `json:"speakerResults"`
	SeriesResults      []wireSeriesHit      `json:"seriesResults"`
	SermonResults      []wireSermon         `json:"sermonResults"`
}

type wireBroadcasterHit struct {
	BroadcasterID string `json:"broadcasterID"`
	DisplayName   string `json:"displayName"`
	Location      string `json:"location"`
}

type wireSpeakerHit struct {
	SpeakerID   json.Number `json:"speakerID"`
	DisplayName string      `json:"displayName"`
	SermonCount int         `json:"sermonCount"`
}

type wireSeriesHit struct {
	SeriesID    json.Number      `json:"seriesID"`
	Title       string           `json:"title"`
	Count       int              `json:"count"`
	Broadcaster *wireBroadcaster `json:"broadcaster"`
}

// flatten turns the grouped envelope into one list, broadcasters first, the
// order the catalog's own site presents them in. Hits without an identity
// field are dropped.
func (e searchEnvelope) flatten() []SearchResult {
	results := make([]SearchResult, 0,
		len(e.BroadcasterResults)+len(e.SpeakerResults)+len(e.SeriesResults)+len(e.SermonResults))

	for _, b := range e.BroadcasterResults {
		if b.BroadcasterID == "" {
			continue
		}

		results = append(results, SearchResult{
			Kind:   "broadcaster",
			ID:     b.BroadcasterID,
			Name:   b.DisplayName,
			Detail: b.Location,
		})
	}

	for _, s := range e.SpeakerResults {
		if s.SpeakerID.String() == "" {
			continue
		}

		results = append(results, SearchResult{
			Kind:   "speaker",
			ID:     s.SpeakerID.String(),
			Name:   s.DisplayName,
			Detail: fmt.Sprintf("%d sermons", s.SermonCount),
		})
	}

	for _, s := range e.SeriesResults {
		if s.SeriesID.String() == "" {
			continue
		}

		detail := fmt.Sprintf("%d sermons", s.Count)
		if s.Broadcaster != nil && s.Broadcaster.DisplayName != "" {
			detail = s.Broadcaster.DisplayName + ", " + detail
		}

		results = append(results, SearchResult{
			Kind:   "series",
			ID:     s.SeriesID.String(),
			Name:   s.Title,
			Detail: detail,
		})
	}

	for _, w := range e.SermonResults {
		if w.SermonID == "" {
			continue
		}

		// Search display favors the long form, unlike filenames.
		name := w.FullTitle
		if name == "" {
			name = w.DisplayTitle
		}

		detail := w.PreachDate
		if w.Speaker != nil && w.Speaker.DisplayName != "" {
			if detail != "" {
				detail += ", "
			}

			detail += w.Speaker.DisplayName
		}

		results = append(results, SearchResult{Kind: "sermon", ID: w.SermonID, Name: name, Detail: detail})
	}

	return results
}

// tierPattern matches the tier segment the media pipeline embeds in asset
// URLs, e.g. /media/audio/high/123.mp3.
var tierPattern = regexp.MustCompile(`/media/(?:audio|video)/(low|high|1080p)/`)

func (w wireSermon) toSermon(webBaseURL string) Sermon {
	s := Sermon{
		ID:         w.SermonID,
		Title:      w.DisplayTitle,
		FullTitle:  w.FullTitle,
		PreachDate: w.PreachDate,
	}

	if s.Title == "" {
		s.Title = w.FullTitle
	}

	if w.Speaker != nil {
		s.Speaker = w.Speaker.DisplayName
	}

	if w.Broadcaster != nil {
		s.Broadcaster = w.Broadcaster.DisplayName
		s.BroadcasterID = w.Broadcaster.BroadcasterID
	}

	if w.Series != nil {
		s.Series = w.Series.Title
	}

	if webBaseURL != "" && w.SermonID != "" {
		s.PageURL = webBaseURL + "/sermons/" + w.SermonID
	}

	for _, m := range w.Media.Audio {
		if media, ok := m.toMedia(false); ok {
			s.Audio = append(s.Audio, media)
		}
	}

	for _, m := range w.Media.Video {
		if media, ok := m.toMedia(true); ok {
			s.Video = append(s.Video, media)
		}
	}

	return s
}

// Bitrate thresholds used to classify renditions whose URLs do not carry an
// explicit tier segment. The catalog serves audio at roughly 16kbps (low) and
// 128kbps (high); video ladders top out at 1080p.
const (
	audioHighBitrate = 64_000
	videoHighBitrate = 900_000
	video1080Bitrate = 2_500_000
)

func (m wireMediaItem) toMedia(video bool) (Media, bool) {
	url := m.DownloadURL
	if url == "" {
		url = m.StreamURL
	}

	if url == "" {
		return Media{}, false
	}

	tier := TierLow

	switch match := tierPattern.FindStringSubmatch(url); {
	case match != nil:
		tier = match[1]
	case video && m.Bitrate >= video1080Bitrate:
		tier = Tier1080
	case video && m.Bitrate >= videoHighBitrate:
		tier = TierHigh
	case !video && m.Bitrate >= audioHighBitrate:
		tier = TierHigh
	}

	return Media{Tier: tier, URL: url, Bytes: m.FileSizeBytes}, true
}
