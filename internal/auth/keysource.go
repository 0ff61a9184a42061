package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
)

// keyPattern finds the API key the catalog web application embeds in its
// pages.
var keyPattern = regexp.MustCompile(`apiKey:"([A-F0-9-]+)"`)

const maxPageBytes = 4 << 20

// WebKeySource extracts the public API key from the catalog's web
// application bundle, the same credential the site itself runs with.
type WebKeySource struct {
	WebURL string
	HTTP   *http.Client
}

var _ KeySource = (*WebKeySource)(nil)

func (s *WebKeySource) FetchKey(ctx context.Context) (string, error) {
	client := s.HTTP
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.WebURL, nil)
	if err != nil {
		return "", fmt.Errorf("building key request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", s.WebURL, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: unexpected status %d", s.WebURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", s.WebURL, err)
	}

	m := keyPattern.FindSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("no embedded api key at %s", s.WebURL)
	}

	return string(m[1]), nil
}
