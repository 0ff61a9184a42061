// Package catalog speaks the sermon catalog's public JSON API: collection
// listing, single item lookup and search. It never retries; callers decide
// what a failure means.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sermonarc/sermonarc/internal/collection"
	"github.com/sermonarc/sermonarc/internal/telemetry"
)

// Public endpoints of the catalog service. Tests point both at an httptest
// server.
const (
	DefaultAPIBaseURL = "https://api.sermonaudio.com/v2"
	DefaultWebBaseURL = "https://www.sermonaudio.com"
)

const bodyExcerptLimit = 512

// TokenSource supplies the catalog credential for outbound requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client is a thin catalog API client.
type Client struct {
	apiBaseURL string
	webBaseURL string
	http       *http.Client
	creds      TokenSource
	tel        *telemetry.Telemetry
}

// New creates a catalog client. A nil httpClient falls back to
// http.DefaultClient.
func New(apiBaseURL, webBaseURL string, creds TokenSource, httpClient *http.Client, tel *telemetry.Telemetry) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		apiBaseURL: strings.TrimRight(apiBaseURL, "/"),
		webBaseURL: strings.TrimRight(webBaseURL, "/"),
		http:       httpClient,
		creds:      creds,
		tel:        tel,
	}
}

// ListSermons fetches one page of the collection the ref points at. Pages are
// 1-based. A page shorter than pageSize or empty means the collection is
// exhausted.
func (c *Client) ListSermons(ctx context.Context, ref collection.Ref, page, pageSize int) ([]Sermon, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("pageSize", strconv.Itoa(pageSize))
	query.Set("sortBy", "newest")
	query.Set("requireAudio", "false")
	query.Set("liteBroadcaster", "true")
	query.Set("cacheLanguage", "en")
	query.Set("cache", "true")

	switch ref.Kind {
	case collection.KindSpeaker:
		query.Set("speakerID", ref.ID)
	case collection.KindBroadcaster:
		query.Set("broadcasterID", ref.ID)
	case collection.KindSeries:
		query.Set("series", ref.ID)
	default:
		return nil, fmt.Errorf("collection kind %q cannot be enumerated", ref.Kind)
	}

	var env envelope

	err := c.tel.InstrumentCatalogOperation(ctx, "list_sermons", func(ctx context.Context) error {
		return c.do(ctx, "list_sermons", "/node/sermons", query, &env)
	})
	if err != nil {
		return nil, err
	}

	sermons := make([]Sermon, 0, len(env.Results))
	for _, w := range env.Results {
		sermons = append(sermons, w.toSermon(c.webBaseURL))
	}

	return sermons, nil
}

// Sermon fetches a single item by ID.
func (c *Client) Sermon(ctx context.Context, id string) (*Sermon, error) {
	var w wireSermon

	err := c.tel.InstrumentCatalogOperation(ctx, "get_sermon", func(ctx context.Context) error {
		return c.do(ctx, "get_sermon", "/node/sermons/"+url.PathEscape(id), nil, &w)
	})
	if err != nil {
		return nil, err
	}

	if w.SermonID == "" {
		return nil, &RequestError{Operation: "get_sermon", APIMessage: "empty sermon node for " + id}
	}

	s := w.toSermon(c.webBaseURL)

	return &s, nil
}

// searchPageSize keeps search responses to a summary; the endpoint exists to
// find IDs for download, not to page through the catalog.
const searchPageSize = 10

// SortNewest orders sermon hits by publish date instead of relevance.
const SortNewest = "newest-published"

// Search runs a free-text catalog search across speakers, broadcasters,
// series and sermons. A non-empty sort is passed through as the sermon
// ordering; it does not affect the other kinds.
func (c *Client) Search(ctx context.Context, q, sort string) ([]SearchResult, error) {
	query := url.Values{}
	query.Set("query", q)
	query.Set("pageSize", strconv.Itoa(searchPageSize))
	query.Set("liteBroadcaster", "true")

	if sort != "" {
		query.Set("sortBy", sort)
	}

	var env searchEnvelope

	err := c.tel.InstrumentCatalogOperation(ctx, "search", func(ctx context.Context) error {
		return c.do(ctx, "search", "/node/search", query, &env)
	})
	if err != nil {
		return nil, err
	}

	return env.flatten(), nil
}

func (c *Client) do(ctx context.Context, op, path string, query url.Values, out any) error {
	token, err := c.creds.Token(ctx)
	if err != nil {
		return fmt.Errorf("obtaining catalog credential: %w", err)
	}

	endpoint := c.apiBaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &RequestError{Operation: op, APIMessage: err.Error(), Err: err}
	}

	req.Header.Set("X-Api-Key", token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &RequestError{Operation: op, APIMessage: err.Error(), Err: err}
	}

	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		_, _ = io.Copy(io.Discard, resp.Body)

		return &CredentialRejectedError{Operation: op, StatusCode: resp.StatusCode, Rejected: token}
	case resp.StatusCode != http.StatusOK:
		return &RequestError{Operation: op, StatusCode: resp.StatusCode, APIMessage: bodyExcerpt(resp.Body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RequestError{Operation: op, APIMessage: "decoding response: " + err.Error(), Err: err}
	}

	return nil
}

func bodyExcerpt(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, bodyExcerptLimit))

	return strings.TrimSpace(string(b))
}
