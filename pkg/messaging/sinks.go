package messaging

import (
	"context"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/scrapetoapi/scrapetoapi/pkg/domain/errors"
	"github.com/scrapetoapi/scrapetoapi/pkg/domain/events"
)

// Envelope is the wire form of an event sent to external sinks.
type Envelope struct {
	Type       string             `json:"type"`
	Key        string             `json:"key"`
	OccurredAt time.Time          `json:"occurred_at"`
	Payload    events.DomainEvent `json:"payload"`
}

func NewEnvelope(event events.DomainEvent) Envelope {
	return Envelope{
		Type:       event.EventType(),
		Key:        event.Key(),
		OccurredAt: event.OccurredAt(),
		Payload:    event,
	}
}

// LogHandler writes every event to the structured log.
func LogHandler(logger zerolog.Logger) events.Handler {
	return func(_ context.Context, event events.DomainEvent) error {
		logger.Info().
			Str("event_type", event.EventType()).
			Str("key", event.Key()).
			Time("occurred_at", event.OccurredAt()).
			Msg("Domain event")
		return nil
	}
}

// MessageWriter is the subset of *kafka.Writer the sink needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink forwards events to a Kafka topic, keyed by event key.
type KafkaSink struct {
	writer MessageWriter
	logger zerolog.Logger
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
}

func NewKafkaSink(writer MessageWriter, logger zerolog.Logger) *KafkaSink {
	return &KafkaSink{
		writer: writer,
		logger: logger.With().Str("component", "kafka_sink").Logger(),
	}
}

func (s *KafkaSink) Handle(ctx context.Context, event events.DomainEvent) error {
	value, err := json.Marshal(NewEnvelope(event))
	if err != nil {
		return errors.New(errors.CodeInternalError, "messaging", "failed to encode event", err)
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Key()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType())},
		},
	})
	if err != nil {
		return errors.New(errors.CodeIoError, "messaging", "failed to write event to kafka", err)
	}

	s.logger.Debug().Str("event_type", event.EventType()).Str("key", event.Key()).Msg("Event forwarded")
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
