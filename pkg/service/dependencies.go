package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/scrapetoapi/scrapetoapi/pkg/cache"
	domainevents "github.com/scrapetoapi/scrapetoapi/pkg/domain/events"
	"github.com/scrapetoapi/scrapetoapi/pkg/fetch"
	"github.com/scrapetoapi/scrapetoapi/pkg/metrics"
	"github.com/scrapetoapi/scrapetoapi/pkg/store"
	"github.com/scrapetoapi/scrapetoapi/pkg/tracing"
)

// PageFetcher retrieves the raw bytes of a page.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Page, error)
}

type Option func(*Dependencies)

type Dependencies struct {
	Logger  zerolog.Logger
	Fetcher PageFetcher
	Cache   *cache.Cache
	Store   store.Store

	EventPublisher domainevents.Publisher

	// Optional. A disabled collector and a no-op tracer are used when nil.
	Metrics *metrics.Collector
	Tracer  *tracing.Manager

	// Clock and SlugGenerator exist for tests.
	Clock         func() time.Time
	SlugGenerator func() string
}

func WithMetrics(m *metrics.Collector) Option {
	return func(d *Dependencies) { d.Metrics = m }
}

func WithTracer(t *tracing.Manager) Option {
	return func(d *Dependencies) { d.Tracer = t }
}

func WithClock(now func() time.Time) Option {
	return func(d *Dependencies) { d.Clock = now }
}

func WithSlugGenerator(gen func() string) Option {
	return func(d *Dependencies) { d.SlugGenerator = gen }
}

func (d *Dependencies) Validate() error {
	var errs []error

	if d.Fetcher == nil {
		errs = append(errs, fmt.Errorf("fetcher is required"))
	}
	if d.Cache == nil {
		errs = append(errs, fmt.Errorf("cache is required"))
	}
	if d.Store == nil {
		errs = append(errs, fmt.Errorf("store is required"))
	}
	if d.EventPublisher == nil {
		errs = append(errs, fmt.Errorf("event publisher is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("dependency validation failed: %v", errs)
	}
	return nil
}

func (d *Dependencies) applyDefaults() {
	if d.Metrics == nil {
		d.Metrics = metrics.NewCollector(metrics.Config{Enabled: false}, d.Logger)
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.SlugGenerator == nil {
		d.SlugGenerator = NewSlug
	}
}
