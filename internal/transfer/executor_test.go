package transfer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "05814E19-B873-43EA-AA41-8EA565831230"

type staticToken string

func (s staticToken) Token(_ context.Context) (string, error) {
	return string(s), nil
}

type recordingTagger struct {
	mu    sync.Mutex
	paths []string
	metas []Metadata
	err   error
}

func (tg *recordingTagger) Tag(_ context.Context, path string, meta Metadata) error {
	tg.mu.Lock()
	defer tg.mu.Unlock()

	tg.paths = append(tg.paths, path)
	tg.metas = append(tg.metas, meta)

	return tg.err
}

func assertNoLeftovers(t *testing.T, dir string) {
	t.Helper()

	parts, err := filepath.Glob(filepath.Join(dir, "*.part"))
	require.NoError(t, err)
	assert.Empty(t, parts, "no temp files should remain")
}

func TestExecutorFetchWritesAtomically(t *testing.T) {
	body := "sermon audio payload"

	var requests atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, testToken, r.Header.Get("X-Api-Key"))
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	target := filepath.Join(dir, "John Doe", "Grace.mp3")

	e := NewExecutor(srv.Client(), staticToken(testToken), nil, nil)

	asset := &Asset{ItemID: "100001", URL: srv.URL + "/media/audio/high/100001.mp3", Ext: ".mp3"}

	res, err := e.Fetch(context.Background(), asset, target)
	require.NoError(t, err)
	assert.Equal(t, target, res.Path)
	assert.EqualValues(t, len(body), res.Bytes)
	assert.False(t, res.AlreadyExists)
	assert.EqualValues(t, 1, requests.Load())

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
	assertNoLeftovers(t, filepath.Dir(target))
}

func TestExecutorSkipsExistingFile(t *testing.T) {
	body := "already here"

	var requests atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	target := filepath.Join(dir, "Grace.mp3")
	require.NoError(t, os.WriteFile(target, []byte(body), 0o644))

	tg := &recordingTagger{}
	e := NewExecutor(srv.Client(), staticToken(testToken), tg, nil)

	asset := &Asset{ItemID: "100001", URL: srv.URL + "/a.mp3", ExpectedSize: int64(len(body))}

	res, err := e.Fetch(context.Background(), asset, target)
	require.NoError(t, err)
	assert.True(t, res.AlreadyExists)
	assert.EqualValues(t, len(body), res.Bytes)
	assert.Zero(t, requests.Load(), "skip must not touch the network")
	assert.Empty(t, tg.paths, "skip must not re-tag")
}

func TestExecutorRefetchesWrongSizedFile(t *testing.T) {
	body := "full sermon body"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	target := filepath.Join(dir, "Grace.mp3")
	require.NoError(t, os.WriteFile(target, []byte("stub"), 0o644))

	e := NewExecutor(srv.Client(), staticToken(testToken), nil, nil)

	asset := &Asset{ItemID: "100001", URL: srv.URL + "/a.mp3", ExpectedSize: int64(len(body))}

	res, err := e.Fetch(context.Background(), asset, target)
	require.NoError(t, err)
	assert.False(t, res.AlreadyExists)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
}

func TestExecutorSizeMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "short")
	}))
	defer srv.Close()

	dir := t.TempDir()
	target := filepath.Join(dir, "Grace.mp3")

	e := NewExecutor(srv.Client(), staticToken(testToken), nil, nil)

	asset := &Asset{ItemID: "100001", URL: srv.URL + "/a.mp3", ExpectedSize: 999}

	_, err := e.Fetch(context.Background(), asset, target)
	require.Error(t, err)

	var sizeErr *SizeMismatchError

	require.True(t, errors.As(err, &sizeErr))
	assert.EqualValues(t, 999, sizeErr.Want)
	assert.EqualValues(t, 5, sizeErr.Got)

	_, statErr := os.Stat(target)
	assert.True(t, os.IsNotExist(statErr), "no file may appear at the final path")
	assertNoLeftovers(t, dir)
}

func TestExecutorNoPartialFileOnInterruptedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("only ten b"))

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	target := filepath.Join(dir, "Grace.mp3")

	e := NewExecutor(srv.Client(), staticToken(testToken), nil, nil)

	asset := &Asset{ItemID: "100001", URL: srv.URL + "/a.mp3"}

	_, err := e.Fetch(context.Background(), asset, target)
	require.Error(t, err)

	var netErr *NetworkError

	assert.True(t, errors.As(err, &netErr))

	_, statErr := os.Stat(target)
	assert.True(t, os.IsNotExist(statErr), "no file may appear at the final path")
	assertNoLeftovers(t, dir)
}

func TestExecutorAuthRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	e := NewExecutor(srv.Client(), staticToken(testToken), nil, nil)

	asset := &Asset{ItemID: "100001", URL: srv.URL + "/a.mp3"}

	_, err := e.Fetch(context.Background(), asset, filepath.Join(t.TempDir(), "a.mp3"))
	require.Error(t, err)

	var authErr *AuthenticationError

	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
	assert.Equal(t, testToken, authErr.Rejected)
}

func TestExecutorServerErrorCarriesRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "7")
		http.Error(w, "throttled", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e := NewExecutor(srv.Client(), staticToken(testToken), nil, nil)

	asset := &Asset{ItemID: "100001", URL: srv.URL + "/a.mp3"}

	_, err := e.Fetch(context.Background(), asset, filepath.Join(t.TempDir(), "a.mp3"))
	require.Error(t, err)

	var netErr *NetworkError

	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, http.StatusTooManyRequests, netErr.StatusCode)
	assert.Equal(t, 7*time.Second, netErr.RetryAfter)
}

func TestExecutorTagFailureStillSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "audio")
	}))
	defer srv.Close()

	dir := t.TempDir()
	target := filepath.Join(dir, "Grace.mp3")

	tg := &recordingTagger{err: errors.New("tag format unsupported")}
	e := NewExecutor(srv.Client(), staticToken(testToken), tg, nil)

	asset := &Asset{
		ItemID: "100001",
		URL:    srv.URL + "/a.mp3",
		Meta:   Metadata{Title: "Grace", Speaker: "John Doe"},
	}

	res, err := e.Fetch(context.Background(), asset, target)
	require.NoError(t, err, "tag failure must not fail the transfer")
	assert.False(t, res.AlreadyExists)

	require.Len(t, tg.paths, 1)
	assert.Equal(t, target, tg.paths[0])
	assert.Equal(t, "Grace", tg.metas[0].Title)

	_, statErr := os.Stat(target)
	assert.NoError(t, statErr)
}

func TestExecutorInvalidAsset(t *testing.T) {
	e := NewExecutor(nil, staticToken(testToken), nil, nil)

	_, err := e.Fetch(context.Background(), &Asset{ItemID: "100001"}, filepath.Join(t.TempDir(), "a.mp3"))
	require.Error(t, err)

	var invalidErr *InvalidAssetError

	assert.True(t, errors.As(err, &invalidErr))
}
