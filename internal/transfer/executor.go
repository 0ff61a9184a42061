package transfer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sermonarc/sermonarc/internal/logctx"
	"github.com/sermonarc/sermonarc/internal/telemetry"
	"github.com/sermonarc/sermonarc/internal/transfer/progress"
)

const (
	dirPerm          = 0o755
	progressInterval = int64(5 * 1024 * 1024) // 5MB
)

// Executor fetches resolved assets to disk. Data lands in a temp file next to
// the destination and becomes visible at the final path only after a
// complete, size-checked write.
type Executor struct {
	http   *http.Client
	creds  TokenSource
	tagger Tagger
	tel    *telemetry.Telemetry
}

// NewExecutor creates an executor. A nil httpClient falls back to
// http.DefaultClient; a nil tagger disables tagging.
func NewExecutor(httpClient *http.Client, creds TokenSource, tagger Tagger, tel *telemetry.Telemetry) *Executor {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Executor{http: httpClient, creds: creds, tagger: tagger, tel: tel}
}

// Fetch downloads asset to targetPath. When the destination already holds the
// asset the fetch is skipped, Result.AlreadyExists is set and no network
// traffic happens.
func (e *Executor) Fetch(ctx context.Context, asset *Asset, targetPath string) (*Result, error) {
	logger := logctx.LoggerFromContext(ctx).With("item_id", asset.ItemID)

	if asset.URL == "" {
		return nil, &InvalidAssetError{ItemID: asset.ItemID, Reason: "no media URL"}
	}

	if size, ok := e.alreadyDownloaded(targetPath, asset.ExpectedSize); ok {
		logger.Debug("destination already holds asset", "path", targetPath)

		return &Result{Path: targetPath, Bytes: size, AlreadyExists: true}, nil
	}

	if err := e.ensureTargetDir(targetPath); err != nil {
		return nil, err
	}

	var written int64

	err := e.tel.InstrumentDownload(ctx, func(ctx context.Context) error {
		var ferr error
		written, ferr = e.fetchToTemp(ctx, asset, targetPath)

		return ferr
	})
	if err != nil {
		return nil, err
	}

	e.tel.RecordDownloadBytes(written)

	logger.Info("downloaded asset", "path", targetPath, "tier", asset.Tier, "size", humanize.Bytes(uint64(written)))

	if e.tagger != nil {
		if err := e.tagger.Tag(ctx, targetPath, asset.Meta); err != nil {
			logger.Warn("failed to tag file", "path", targetPath, "err", err)
		}
	}

	return &Result{Path: targetPath, Bytes: written}, nil
}

func (e *Executor) fetchToTemp(ctx context.Context, asset *Asset, targetPath string) (int64, error) {
	token, err := e.creds.Token(ctx)
	if err != nil {
		return 0, fmt.Errorf("obtaining credential: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.URL, nil)
	if err != nil {
		return 0, &NetworkError{Operation: "fetch_asset", APIMessage: err.Error(), Err: err}
	}

	req.Header.Set("X-Api-Key", token)

	resp, err := e.http.Do(req)
	if err != nil {
		return 0, &NetworkError{Operation: "fetch_asset", APIMessage: err.Error(), Err: err}
	}

	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return 0, &AuthenticationError{Operation: "fetch_asset", StatusCode: resp.StatusCode, Rejected: token}
	case resp.StatusCode != http.StatusOK:
		return 0, &NetworkError{
			Operation:  "fetch_asset",
			StatusCode: resp.StatusCode,
			APIMessage: resp.Status,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	expected := asset.ExpectedSize
	if expected == 0 && resp.ContentLength > 0 {
		expected = resp.ContentLength
	}

	tempPath := targetPath + "." + asset.ItemID + ".part"

	written, err := e.writeTemp(ctx, tempPath, resp.Body, expected)
	if err != nil {
		os.Remove(tempPath)

		return 0, err
	}

	if expected > 0 && written != expected {
		os.Remove(tempPath)

		return 0, &SizeMismatchError{Path: targetPath, Want: expected, Got: written}
	}

	if err := os.Rename(tempPath, targetPath); err != nil {
		os.Remove(tempPath)

		return 0, fmt.Errorf("moving %s into place: %w", tempPath, err)
	}

	return written, nil
}

func (e *Executor) writeTemp(ctx context.Context, tempPath string, body io.Reader, total int64) (int64, error) {
	logger := logctx.LoggerFromContext(ctx)

	out, err := os.Create(tempPath)
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}

	pr := progress.NewReader(body, total, progressInterval, func(written, total int64) {
		if total > 0 {
			logger.Debug("download progress",
				"path", tempPath,
				"downloaded", humanize.Bytes(uint64(written)),
				"total", humanize.Bytes(uint64(total)))
		} else {
			logger.Debug("download progress", "path", tempPath, "downloaded", humanize.Bytes(uint64(written)))
		}
	})

	written, err := io.Copy(out, pr)
	if err != nil {
		out.Close()

		return 0, &NetworkError{Operation: "fetch_asset", APIMessage: "transfer interrupted: " + err.Error(), Err: err}
	}

	if err := out.Sync(); err != nil {
		out.Close()

		return 0, fmt.Errorf("syncing temp file: %w", err)
	}

	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("closing temp file: %w", err)
	}

	return written, nil
}

// alreadyDownloaded reports whether targetPath already holds the asset: an
// exact size match when the expected size is known, any non-empty file when
// it is not.
func (e *Executor) alreadyDownloaded(targetPath string, expected int64) (int64, bool) {
	info, err := os.Stat(targetPath)
	if err != nil || info.IsDir() {
		return 0, false
	}

	if expected > 0 {
		return info.Size(), info.Size() == expected
	}

	return info.Size(), info.Size() > 0
}

func (e *Executor) ensureTargetDir(targetPath string) error {
	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return &DirectoryError{Dir: dir, Reason: "cannot create", Err: err}
	}

	return nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}

	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}

	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}

	return 0
}
