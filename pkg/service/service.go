// Package service implements scraping and the read API over stored results.
package service

import (
	"bytes"
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/scrapetoapi/scrapetoapi/pkg/cache"
	"github.com/scrapetoapi/scrapetoapi/pkg/domain/errors"
	domainevents "github.com/scrapetoapi/scrapetoapi/pkg/domain/events"
	"github.com/scrapetoapi/scrapetoapi/pkg/metrics"
	"github.com/scrapetoapi/scrapetoapi/pkg/scrape"
	"github.com/scrapetoapi/scrapetoapi/pkg/tracing"
)

const (
	slugAttempts    = 5
	previewTagLimit = 15
)

// ScrapeService coordinates fetching, parsing, caching and storing pages.
type ScrapeService struct {
	deps   Dependencies
	logger zerolog.Logger
	group  singleflight.Group
}

// NewScrapeService validates deps, applies opts and fills defaults.
func NewScrapeService(deps Dependencies, opts ...Option) (*ScrapeService, error) {
	for _, opt := range opts {
		opt(&deps)
	}
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	deps.applyDefaults()

	return &ScrapeService{
		deps:   deps,
		logger: deps.Logger.With().Str("component", "scrape_service").Logger(),
	}, nil
}

// NewSlug returns the first eight characters of a random UUID.
func NewSlug() string {
	return uuid.NewString()[:8]
}

// Preview summarizes a document in a scrape response.
type Preview struct {
	Title         string   `json:"title"`
	TotalElements int      `json:"total_elements"`
	LinksCount    int      `json:"links_count"`
	ImagesCount   int      `json:"images_count"`
	HeadingsCount int      `json:"headings_count"`
	AvailableTags []string `json:"available_tags"`
}

// ScrapeResult is returned by Scrape. ScrapeTime is nil for cache hits.
type ScrapeResult struct {
	Success     bool     `json:"success"`
	Message     string   `json:"message"`
	APIEndpoint string   `json:"api_endpoint"`
	Slug        string   `json:"slug"`
	ScrapeTime  *float64 `json:"scrape_time,omitempty"`
	Cached      bool     `json:"cached"`
	Preview     Preview  `json:"preview"`
}

// Scrape fetches and indexes rawURL, or reuses a cached document for it, and
// stores the result under a fresh slug.
func (s *ScrapeService) Scrape(ctx context.Context, rawURL string) (*ScrapeResult, error) {
	target := strings.TrimSpace(rawURL)
	if target == "" {
		return nil, errors.New(errors.CodeMissingParameter, "service", "url is required", nil)
	}

	ctx, span := s.deps.Tracer.StartSpan(ctx, "scrape", attribute.String("scrape.url", target))
	defer span.End()

	if doc, ok := s.deps.Cache.Get(target); ok {
		s.deps.Metrics.RecordCacheLookup(true, s.deps.Cache.Len())
		span.SetAttributes(attribute.Bool("scrape.cached", true))

		slug, err := s.storeNew(ctx, doc)
		if err != nil {
			tracing.RecordError(span, err)
			return nil, err
		}
		s.deps.Metrics.RecordScrape(metrics.ResultCached, 0, doc.Stats.TotalElements)
		s.publish(ctx, domainevents.ScrapeCompleted{
			Slug:          slug,
			URL:           target,
			Cached:        true,
			TotalElements: doc.Stats.TotalElements,
			Timestamp:     s.deps.Clock(),
		})
		s.logger.Info().Str("url", target).Str("slug", slug).Msg("Served scrape from cache")

		return &ScrapeResult{
			Success:     true,
			Message:     "URL scraped successfully! (cached)",
			APIEndpoint: "/api/" + slug,
			Slug:        slug,
			Cached:      true,
			Preview:     previewOf(doc),
		}, nil
	}
	s.deps.Metrics.RecordCacheLookup(false, s.deps.Cache.Len())
	span.SetAttributes(attribute.Bool("scrape.cached", false))

	start := s.deps.Clock()
	v, err, shared := s.group.Do(cache.Key(target), func() (interface{}, error) {
		return s.fetchAndParse(context.WithoutCancel(ctx), target)
	})
	if err != nil {
		s.fail(ctx, target, err)
		tracing.RecordError(span, err)
		return nil, errors.New(errors.CodeScrapeFailed, "service", "Scraping failed", err)
	}
	doc := v.(*scrape.Document)
	elapsed := s.deps.Clock().Sub(start)

	slug, err := s.storeNew(ctx, doc)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	s.deps.Metrics.RecordScrape(metrics.ResultFetched, elapsed, doc.Stats.TotalElements)
	s.publish(ctx, domainevents.ScrapeCompleted{
		Slug:          slug,
		URL:           target,
		TotalElements: doc.Stats.TotalElements,
		DurationMS:    elapsed.Milliseconds(),
		Timestamp:     s.deps.Clock(),
	})
	s.logger.Info().
		Str("url", target).
		Str("slug", slug).
		Bool("shared", shared).
		Int("elements", doc.Stats.TotalElements).
		Dur("duration", elapsed).
		Msg("Scraped page")

	secs := roundSeconds(elapsed)
	return &ScrapeResult{
		Success:     true,
		Message:     "URL scraped successfully in " + formatSeconds(secs) + "s!",
		APIEndpoint: "/api/" + slug,
		Slug:        slug,
		ScrapeTime:  &secs,
		Preview:     previewOf(doc),
	}, nil
}

func (s *ScrapeService) fetchAndParse(ctx context.Context, target string) (*scrape.Document, error) {
	page, err := s.deps.Fetcher.Fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	s.deps.Metrics.RecordFetchAttempts(page.Attempts)

	doc, err := scrape.ParseEncoded(bytes.NewReader(page.Body), page.ContentType, target)
	if err != nil {
		return nil, errors.New(errors.CodeParseFailed, "service", "could not parse page", err)
	}
	doc.Meta.ScrapedAt = s.deps.Clock().UTC()
	doc.Meta.ScrapeID = s.deps.SlugGenerator()

	s.deps.Cache.Set(target, doc)
	return doc, nil
}

// storeNew puts doc under a new slug, drawing again on collisions.
func (s *ScrapeService) storeNew(ctx context.Context, doc *scrape.Document) (string, error) {
	var lastErr error
	for i := 0; i < slugAttempts; i++ {
		slug := s.deps.SlugGenerator()
		err := s.deps.Store.Put(ctx, slug, doc)
		if err == nil {
			return slug, nil
		}
		if !errors.IsCode(err, errors.CodeAlreadyExists) {
			return "", err
		}
		s.logger.Debug().Str("slug", slug).Msg("Slug collision, retrying")
		lastErr = err
	}
	return "", errors.New(errors.CodeInternalError, "service", "could not allocate a unique slug", lastErr)
}

func (s *ScrapeService) fail(ctx context.Context, target string, err error) {
	s.deps.Metrics.RecordScrape(metrics.ResultFailed, 0, 0)
	s.publish(ctx, domainevents.ScrapeFailed{
		URL:       target,
		Code:      string(errors.CodeOf(err)),
		Reason:    errors.DetailOf(err),
		Timestamp: s.deps.Clock(),
	})
	s.logger.Warn().Err(err).Str("url", target).Msg("Scrape failed")
}

func (s *ScrapeService) publish(ctx context.Context, event domainevents.DomainEvent) {
	s.deps.EventPublisher.PublishAsync(ctx, event)
}

func previewOf(doc *scrape.Document) Preview {
	tags := doc.Stats.UniqueTags
	if len(tags) > previewTagLimit {
		tags = tags[:previewTagLimit]
	}
	return Preview{
		Title:         doc.Meta.Title,
		TotalElements: doc.Stats.TotalElements,
		LinksCount:    doc.Stats.LinksCount,
		ImagesCount:   doc.Stats.ImagesCount,
		HeadingsCount: doc.Stats.HeadingsCount,
		AvailableTags: append([]string{}, tags...),
	}
}

func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}

// formatSeconds always keeps a fractional part, so 1 renders as "1.0".
func formatSeconds(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
