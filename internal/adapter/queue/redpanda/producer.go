// Package redpanda publishes screening gate domain events to a Kafka
// compatible broker (Redpanda in the compose setup).
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/screening-gate/internal/adapter/observability"
	"github.com/fairyhunter13/screening-gate/internal/domain"
)

// Event types carried in the "event_type" header and envelope.
const (
	EventApplicationSubmitted = "application.submitted"
	EventSessionEvaluated     = "session.evaluated"
)

// DefaultTopic receives every event when no topic is configured.
const DefaultTopic = "screening-gate.events"

// Envelope wraps every published payload.
type Envelope struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	RequestID  string          `json:"request_id,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

// recordProducer is the subset of *kgo.Client the Producer needs.
type recordProducer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Ping(ctx context.Context) error
	Close()
}

// Producer implements domain.EventPublisher on top of franz-go.
type Producer struct {
	client recordProducer
	topic  string
}

// NewProducer connects to the brokers, ensures the topic exists and returns
// an idempotent producer traced with kotel.
func NewProducer(ctx context.Context, brokers []string, topic string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	slog.Info("creating redpanda producer", slog.Any("brokers", brokers), slog.String("topic", topic))

	tracer := kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))
	kot := kotel.NewKotel(kotel.WithTracer(tracer))
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(1000000),
		kgo.DialTimeout(10*time.Second),
		kgo.WithHooks(kot.Hooks()...),
	)
	if err != nil {
		return nil, fmt.Errorf("redpanda client: %w", err)
	}
	if err := createTopicIfNotExists(ctx, client, topic, 3, 1); err != nil {
		// Topic may be managed externally; producing will surface real problems.
		slog.Warn("failed to ensure topic", slog.String("topic", topic), slog.Any("error", err))
	}
	return &Producer{client: client, topic: topic}, nil
}

// newProducerWithClient is used by tests to inject a fake client.
func newProducerWithClient(c recordProducer, topic string) *Producer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Producer{client: c, topic: topic}
}

// PublishApplicationSubmitted publishes an application.submitted event keyed by job id.
func (p *Producer) PublishApplicationSubmitted(ctx context.Context, ev domain.ApplicationSubmitted) error {
	return p.publish(ctx, EventApplicationSubmitted, ev.JobID, ev.SubmittedAt, ev)
}

// PublishSessionEvaluated publishes a session.evaluated event keyed by job id.
func (p *Producer) PublishSessionEvaluated(ctx context.Context, ev domain.SessionEvaluated) error {
	return p.publish(ctx, EventSessionEvaluated, ev.JobID, ev.EvaluatedAt, ev)
}

func (p *Producer) publish(ctx context.Context, eventType, key string, at time.Time, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("op=events.publish: marshal %s: %w", eventType, err)
	}
	rid := observability.RequestIDFromContext(ctx)
	body, err := json.Marshal(Envelope{Type: eventType, OccurredAt: at.UTC(), RequestID: rid, Payload: raw})
	if err != nil {
		return fmt.Errorf("op=events.publish: marshal envelope: %w", err)
	}
	rec := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(key),
		Value: body,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "job_id", Value: []byte(key)},
		},
	}
	if rid != "" {
		rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: "request_id", Value: []byte(rid)})
	}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("op=events.publish: %s: %w", eventType, err)
	}
	observability.LoggerFromContext(ctx).Debug("event published", slog.String("event_type", eventType), slog.String("job_id", key))
	return nil
}

// Ping reports whether a broker is reachable.
func (p *Producer) Ping(ctx context.Context) error { return p.client.Ping(ctx) }

// Close flushes and closes the client.
func (p *Producer) Close() error {
	if p.client != nil {
		p.client.Close()
	}
	return nil
}

// Noop discards events; used when no brokers are configured.
type Noop struct{}

func (Noop) PublishApplicationSubmitted(context.Context, domain.ApplicationSubmitted) error {
	return nil
}

func (Noop) PublishSessionEvaluated(context.Context, domain.SessionEvaluated) error { return nil }

var (
	_ domain.EventPublisher = (*Producer)(nil)
	_ domain.EventPublisher = Noop{}
)
