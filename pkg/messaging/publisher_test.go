package messaging

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrapetoapi/scrapetoapi/pkg/domain/events"
)

func completed() events.ScrapeCompleted {
	return events.ScrapeCompleted{
		Slug:          "abcd1234",
		URL:           "https://example.com",
		TotalElements: 12,
		Timestamp:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestPublisher_DeliversToTypeAndWildcardHandlers(t *testing.T) {
	p := NewPublisher(zerolog.Nop())

	var typed, wildcard, other int32
	p.Subscribe(events.TypeScrapeCompleted, func(context.Context, events.DomainEvent) error {
		atomic.AddInt32(&typed, 1)
		return nil
	})
	p.Subscribe(AllEvents, func(context.Context, events.DomainEvent) error {
		atomic.AddInt32(&wildcard, 1)
		return nil
	})
	p.Subscribe(events.TypeScrapeFailed, func(context.Context, events.DomainEvent) error {
		atomic.AddInt32(&other, 1)
		return nil
	})

	require.NoError(t, p.Publish(context.Background(), completed()))

	assert.EqualValues(t, 1, typed)
	assert.EqualValues(t, 1, wildcard)
	assert.EqualValues(t, 0, other)
	assert.Equal(t, 1, p.GetHandlerCount(events.TypeScrapeCompleted))
}

func TestPublisher_ReturnsHandlerError(t *testing.T) {
	p := NewPublisher(zerolog.Nop())
	boom := stderrors.New("boom")
	p.Subscribe(events.TypeScrapeCompleted, func(context.Context, events.DomainEvent) error { return boom })

	assert.ErrorIs(t, p.Publish(context.Background(), completed()), boom)
}

func TestPublisher_NoHandlers(t *testing.T) {
	p := NewPublisher(zerolog.Nop())
	assert.NoError(t, p.Publish(context.Background(), completed()))
}

func TestPublisher_PublishAsyncAndClose(t *testing.T) {
	p := NewPublisher(zerolog.Nop())

	var delivered int32
	p.Subscribe(events.TypeScrapeCompleted, func(context.Context, events.DomainEvent) error {
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&delivered, 1)
		return nil
	})

	// a cancelled caller context must not abort background delivery
	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 5; i++ {
		p.PublishAsync(ctx, completed())
	}
	cancel()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer closeCancel()
	require.NoError(t, p.Close(closeCtx))
	assert.EqualValues(t, 5, atomic.LoadInt32(&delivered))
}

type recordingWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaSink_WritesEnvelope(t *testing.T) {
	w := &recordingWriter{}
	sink := NewKafkaSink(w, zerolog.Nop())

	require.NoError(t, sink.Handle(context.Background(), completed()))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "https://example.com", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, events.TypeScrapeCompleted, string(msg.Headers[0].Value))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, events.TypeScrapeCompleted, decoded["type"])
	payload, ok := decoded["payload"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "abcd1234", payload["slug"])
	assert.EqualValues(t, 12, payload["total_elements"])

	require.NoError(t, sink.Close())
	assert.True(t, w.closed)
}

func TestKafkaSink_WriteError(t *testing.T) {
	sink := NewKafkaSink(&recordingWriter{err: stderrors.New("broker down")}, zerolog.Nop())
	err := sink.Handle(context.Background(), completed())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestNewKafkaWriter(t *testing.T) {
	w := NewKafkaWriter([]string{"localhost:9092"}, "scrape-events")
	assert.Equal(t, "scrape-events", w.Topic)
	assert.Equal(t, "localhost:9092", w.Addr.String())
}
