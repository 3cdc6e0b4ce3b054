// Package events provides domain event definitions for scrape lifecycle notifications.
package events

import "time"

const (
	TypeScrapeCompleted = "scrape.completed"
	TypeScrapeFailed    = "scrape.failed"
	TypeResultDeleted   = "result.deleted"
)

// DomainEvent represents a domain event that occurred within the system.
type DomainEvent interface {
	// EventType returns the type name of this event
	EventType() string
	// Key groups related events, e.g. for partitioning on a broker.
	Key() string
	OccurredAt() time.Time
}

// ScrapeCompleted is emitted after a document has been stored under a slug.
type ScrapeCompleted struct {
	Slug          string    `json:"slug"`
	URL           string    `json:"url"`
	Cached        bool      `json:"cached"`
	TotalElements int       `json:"total_elements"`
	DurationMS    int64     `json:"duration_ms"`
	Timestamp     time.Time `json:"timestamp"`
}

func (e ScrapeCompleted) EventType() string     { return TypeScrapeCompleted }
func (e ScrapeCompleted) Key() string           { return e.URL }
func (e ScrapeCompleted) OccurredAt() time.Time { return e.Timestamp }

// ScrapeFailed is emitted when fetching or parsing a page fails.
type ScrapeFailed struct {
	URL       string    `json:"url"`
	Code      string    `json:"code"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func (e ScrapeFailed) EventType() string     { return TypeScrapeFailed }
func (e ScrapeFailed) Key() string           { return e.URL }
func (e ScrapeFailed) OccurredAt() time.Time { return e.Timestamp }

// ResultDeleted is emitted when a stored result is removed.
type ResultDeleted struct {
	Slug      string    `json:"slug"`
	Timestamp time.Time `json:"timestamp"`
}

func (e ResultDeleted) EventType() string     { return TypeResultDeleted }
func (e ResultDeleted) Key() string           { return e.Slug }
func (e ResultDeleted) OccurredAt() time.Time { return e.Timestamp }
