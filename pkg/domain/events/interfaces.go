package events

import "context"

// Publisher delivers scrape lifecycle events to subscribers.
type Publisher interface {
	// Publish waits until every subscribed handler has run.
	Publish(ctx context.Context, event DomainEvent) error

	// PublishAsync returns immediately and delivers in the background.
	PublishAsync(ctx context.Context, event DomainEvent)
}

// Handler consumes one event.
type Handler func(ctx context.Context, event DomainEvent) error
