// Package messaging delivers domain events to in-process handlers and
// external sinks.
package messaging

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/scrapetoapi/scrapetoapi/pkg/domain/events"
)

// AllEvents subscribes a handler to every event type.
const AllEvents = "*"

type Publisher struct {
	handlers   map[string][]events.Handler
	logger     zerolog.Logger
	mu         sync.RWMutex
	workerPool chan struct{} // bounds concurrent async deliveries
	wg         sync.WaitGroup
}

var _ events.Publisher = (*Publisher)(nil)

func NewPublisher(logger zerolog.Logger) *Publisher {
	return &Publisher{
		logger:     logger.With().Str("component", "publisher").Logger(),
		handlers:   make(map[string][]events.Handler),
		workerPool: make(chan struct{}, 10),
	}
}

func (p *Publisher) Subscribe(eventType string, handler events.Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.handlers[eventType] = append(p.handlers[eventType], handler)
}

func (p *Publisher) handlersFor(eventType string) []events.Handler {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]events.Handler, 0, len(p.handlers[eventType])+len(p.handlers[AllEvents]))
	out = append(out, p.handlers[eventType]...)
	out = append(out, p.handlers[AllEvents]...)
	return out
}

// Publish runs every matching handler concurrently and returns the first
// error.
func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	handlers := p.handlersFor(event.EventType())
	if len(handlers) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(handlers))

	for _, handler := range handlers {
		wg.Add(1)
		go func(h events.Handler) {
			defer wg.Done()
			if err := h(ctx, event); err != nil {
				errs <- err
			}
		}(handler)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			return err
		}
	}

	return nil
}

// PublishAsync delivers the event in the background. When every worker slot
// stays busy for 100ms the event is dropped.
func (p *Publisher) PublishAsync(ctx context.Context, event events.DomainEvent) {
	select {
	case p.workerPool <- struct{}{}:
		p.wg.Add(1)
		go func() {
			defer func() {
				<-p.workerPool
				p.wg.Done()
			}()

			asyncCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()

			if err := p.Publish(asyncCtx, event); err != nil {
				p.logger.Warn().Err(err).Str("event_type", event.EventType()).Msg("Event delivery failed")
			}
		}()
	case <-time.After(100 * time.Millisecond):
		p.logger.Warn().Str("event_type", event.EventType()).Msg("Publisher busy, dropping event")
	}
}

// GetHandlerCount returns the number of handlers registered for eventType.
func (p *Publisher) GetHandlerCount(eventType string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.handlers[eventType])
}

// Close waits for in-flight async deliveries.
func (p *Publisher) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
