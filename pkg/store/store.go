// Package store persists scraped documents under their slugs.
package store

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/scrapetoapi/scrapetoapi/pkg/domain/errors"
	"github.com/scrapetoapi/scrapetoapi/pkg/scrape"
)

const (
	BackendMemory   = "memory"
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
)

// Summary is the listing view of a stored document.
type Summary struct {
	Slug          string    `json:"slug"`
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	TotalElements int       `json:"total_elements"`
	ScrapedAt     time.Time `json:"scraped_at"`
}

// Store keeps documents by slug. Implementations must be safe for
// concurrent use.
type Store interface {
	// Put stores doc under slug. An existing slug yields CodeAlreadyExists.
	Put(ctx context.Context, slug string, doc *scrape.Document) error
	// Get yields CodeNotFound for unknown slugs.
	Get(ctx context.Context, slug string) (*scrape.Document, error)
	Delete(ctx context.Context, slug string) error
	// List returns summaries, newest first.
	List(ctx context.Context) ([]Summary, error)
	// Cleanup removes documents scraped before cutoff.
	Cleanup(ctx context.Context, cutoff time.Time) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

type Options struct {
	Backend     string
	Path        string
	DatabaseURL string
}

// Open builds the Store selected by opts.Backend.
func Open(ctx context.Context, opts Options, logger zerolog.Logger) (Store, error) {
	switch opts.Backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendBolt:
		return NewBoltStore(opts.Path, logger)
	case BackendPostgres:
		return NewPostgresStore(ctx, opts.DatabaseURL, logger)
	default:
		return nil, errors.Newf(errors.CodeConfigurationInvalid, "store", "unknown store backend %q", opts.Backend)
	}
}

func summarize(slug string, doc *scrape.Document) Summary {
	return Summary{
		Slug:          slug,
		URL:           doc.Meta.URL,
		Title:         doc.Meta.Title,
		TotalElements: doc.Stats.TotalElements,
		ScrapedAt:     doc.Meta.ScrapedAt,
	}
}

func sortSummaries(s []Summary) {
	sort.Slice(s, func(i, j int) bool {
		if !s[i].ScrapedAt.Equal(s[j].ScrapedAt) {
			return s[i].ScrapedAt.After(s[j].ScrapedAt)
		}
		return s[i].Slug < s[j].Slug
	})
}

func notFound(slug string) error {
	return errors.Newf(errors.CodeNotFound, "store", "document %s not found", slug)
}

func alreadyExists(slug string) error {
	return errors.Newf(errors.CodeAlreadyExists, "store", "document %s already exists", slug)
}

// RunRetention deletes documents older than ttl every interval until ctx is
// cancelled. A non-positive ttl disables retention.
func RunRetention(ctx context.Context, s Store, ttl, interval time.Duration, logger zerolog.Logger) {
	if ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Cleanup(ctx, time.Now().Add(-ttl))
			if err != nil {
				logger.Warn().Err(err).Msg("Result retention cleanup failed")
				continue
			}
			if removed > 0 {
				logger.Info().Int("removed", removed).Msg("Removed expired results")
			}
		}
	}
}
