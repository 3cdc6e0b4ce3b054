// Package probe checks a running server's /health endpoint the way a
// container runtime does.
package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/scrapetoapi/scrapetoapi/pkg/domain/errors"
	"github.com/scrapetoapi/scrapetoapi/pkg/fetch"
)

// HealthURL is the local health endpoint for a server bound to port.
func HealthURL(port int) string {
	return fmt.Sprintf("http://127.0.0.1:%d/health", port)
}

// Prober performs single health checks.
type Prober struct {
	client *http.Client
	url    string
}

func New(url string, timeout time.Duration) *Prober {
	cfg := fetch.DefaultClientConfig()
	cfg.Timeout = timeout
	cfg.ResponseHeader = timeout
	return &Prober{client: fetch.NewHTTPClient(cfg), url: url}
}

// Check succeeds when the endpoint answers 2xx within the timeout.
func (p *Prober) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return errors.New(errors.CodeInvalidParameter, "probe", "invalid health URL", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return errors.New(errors.CodeNetworkTimeout, "probe", "health endpoint unreachable", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Newf(errors.CodeUnknown, "probe", "health endpoint returned %d", resp.StatusCode)
	}
	return nil
}
