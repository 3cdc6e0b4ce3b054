package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrapetoapi/scrapetoapi/pkg/domain/errors"
)

func newTestFetcher(opts Options) *Fetcher {
	if opts.InitialBackoff == 0 {
		opts.InitialBackoff = time.Millisecond
	}
	return New(nil, opts, zerolog.Nop())
}

func TestFetch_SendsBrowserHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	page, err := newTestFetcher(Options{}).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, "<html><body>ok</body></html>", string(page.Body))
	assert.Equal(t, "text/html; charset=utf-8", page.ContentType)
	assert.Equal(t, 1, page.Attempts)
	assert.Equal(t, DefaultUserAgent, got.Get("User-Agent"))
	assert.Contains(t, got.Get("Accept"), "text/html")
	assert.Equal(t, "en-US,en;q=0.5", got.Get("Accept-Language"))
}

func TestFetch_RejectsUnsupportedURLs(t *testing.T) {
	f := newTestFetcher(Options{})

	for _, raw := range []string{"ftp://example.com/file", "example.com", "http://", "://bad"} {
		_, err := f.Fetch(context.Background(), raw)
		require.Error(t, err, raw)
		assert.Equal(t, errors.CodeInvalidParameter, errors.CodeOf(err), raw)
	}
}

func TestFetch_NotFoundIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestFetcher(Options{Retries: 3}).Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	assert.Equal(t, errors.CodeFetchFailed, errors.CodeOf(err))
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
	assert.Contains(t, err.Error(), "404 Not Found")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("<p>finally</p>"))
	}))
	defer srv.Close()

	page, err := newTestFetcher(Options{Retries: 2}).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Attempts)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestFetch_GivesUpAfterRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestFetcher(Options{Retries: 1}).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, http.StatusTooManyRequests, StatusCode(err))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestFetch_BodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer srv.Close()

	_, err := newTestFetcher(Options{MaxBodyBytes: 1024}).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, errors.CodeFetchFailed, errors.CodeOf(err))
	assert.Contains(t, err.Error(), "exceeds 1024 bytes")
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := newTestFetcher(Options{Timeout: 50 * time.Millisecond}).Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, errors.CodeNetworkTimeout, errors.CodeOf(err))
}

func TestFetch_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher(Options{Retries: 5}).Fetch(ctx, srv.URL)
	require.Error(t, err)
}
