// Package fetch downloads web pages for scraping.
package fetch

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/scrapetoapi/scrapetoapi/pkg/domain/errors"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	defaultMaxBody   = 10 << 20
)

type Options struct {
	Timeout        time.Duration
	Retries        int
	MaxBodyBytes   int64
	UserAgent      string
	InitialBackoff time.Duration
}

// Page is a fetched HTML document.
type Page struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
	Attempts    int
	Duration    time.Duration
}

type Fetcher struct {
	client *http.Client
	opts   Options
	logger zerolog.Logger
}

// New creates a Fetcher. A nil client gets one built from
// DefaultClientConfig with opts.Timeout applied.
func New(client *http.Client, opts Options, logger zerolog.Logger) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBody
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	if client == nil {
		cfg := DefaultClientConfig()
		cfg.Timeout = opts.Timeout
		client = NewHTTPClient(cfg)
	}

	return &Fetcher{
		client: client,
		opts:   opts,
		logger: logger.With().Str("component", "fetcher").Logger(),
	}
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, errors.New(errors.CodeInvalidParameter, "fetch", "invalid URL", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Newf(errors.CodeInvalidParameter, "fetch", "unsupported URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.Newf(errors.CodeInvalidParameter, "fetch", "URL %q has no host", rawURL)
	}
	return u, nil
}

// Fetch GETs rawURL, retrying network errors, 429 and 5xx responses with
// exponential backoff.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	attempts := 0
	var page *Page

	op := func() error {
		attempts++
		p, err := f.do(ctx, u.String())
		if err != nil {
			if ctx.Err() != nil || !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		page = p
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = f.opts.InitialBackoff
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(f.opts.Retries)), ctx)

	notify := func(err error, wait time.Duration) {
		f.logger.Warn().
			Err(err).
			Str("url", u.String()).
			Int("attempt", attempts).
			Dur("retry_in", wait).
			Msg("Fetch failed, retrying")
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.CodeOf(err) == errors.CodeUnknown {
			return nil, errors.New(errors.CodeNetworkTimeout, "fetch", "fetch cancelled", ctxErr)
		}
		return nil, err
	}

	page.Attempts = attempts
	page.Duration = time.Since(start)
	f.logger.Debug().
		Str("url", page.URL).
		Int("status", page.StatusCode).
		Int("bytes", len(page.Body)).
		Int("attempts", attempts).
		Dur("duration", page.Duration).
		Msg("Fetched page")
	return page, nil
}

func (f *Fetcher) do(ctx context.Context, target string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.New(errors.CodeInvalidParameter, "fetch", "failed to build request", err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Connection", "keep-alive")

	resp, err := f.client.Do(req)
	if err != nil {
		var netErr net.Error
		if stderrors.As(err, &netErr) && netErr.Timeout() {
			return nil, errors.New(errors.CodeNetworkTimeout, "fetch", "request timed out", err)
		}
		return nil, errors.New(errors.CodeIoError, "fetch", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &statusError{
			err: errors.Newf(errors.CodeFetchFailed, "fetch", "%d %s for url: %s",
				resp.StatusCode, http.StatusText(resp.StatusCode), target),
			status: resp.StatusCode,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes+1))
	if err != nil {
		return nil, errors.New(errors.CodeIoError, "fetch", "failed to read response body", err)
	}
	if int64(len(body)) > f.opts.MaxBodyBytes {
		return nil, errors.Newf(errors.CodeFetchFailed, "fetch", "response body exceeds %d bytes", f.opts.MaxBodyBytes)
	}

	return &Page{
		URL:         target,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// statusError carries the HTTP status of a non-2xx response.
type statusError struct {
	err    *errors.Error
	status int
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

// StatusCode reports the upstream HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *statusError
	if stderrors.As(err, &se) {
		return se.status
	}
	return 0
}

func retryable(err error) bool {
	if status := StatusCode(err); status != 0 {
		return status == http.StatusTooManyRequests || status >= 500
	}
	switch errors.CodeOf(err) {
	case errors.CodeNetworkTimeout, errors.CodeIoError:
		return true
	default:
		return false
	}
}

func (p *Page) String() string {
	return fmt.Sprintf("%s (%d, %d bytes)", p.URL, p.StatusCode, len(p.Body))
}
