// Package events implements the trigger boundary between stages.
// A completed durable write publishes an object-written notification;
// JetStream work-queue streams deliver each notification to exactly
// one worker, with at-least-once redelivery on failure. This is why
// every stage must be idempotent.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	SubjectRawPrefix      = "pipeline.raw."
	SubjectEnrichedPrefix = "pipeline.enriched."
	SubjectDLQPrefix      = "pipeline.dlq."

	RawStreamName      = "SALES_RAW"
	EnrichedStreamName = "SALES_ENRICHED"
	DLQStreamName      = "SALES_DLQ"

	// MaxDeliver bounds broker redeliveries of a notification. Workers
	// that see the final attempt must dead-letter instead of NAKing.
	MaxDeliver = 5
)

// Notification tells a downstream stage that an object finished its
// durable write and is ready to be processed.
type Notification struct {
	Ref         string    `json:"ref"`
	SourceID    string    `json:"source_id"`
	EventType   string    `json:"event_type,omitempty"`
	RecordType  string    `json:"record_type,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Handler processes one notification. attempt is the broker's delivery
// count for the message, starting at 1. Returning an error NAKs the
// message for redelivery.
type Handler func(ctx context.Context, n Notification, attempt int) error

// Config holds NATS connection settings.
type Config struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// Bus is the JetStream-backed trigger transport.
type Bus struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

func Connect(cfg Config) (*Bus, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Bus{conn: conn, js: js}, nil
}

// EnsureStreams creates or updates the pipeline streams. Raw and
// enriched notifications are work queues (each consumed once); the
// dead-letter stream retains notifications for alerting and replay.
func (b *Bus) EnsureStreams(ctx context.Context) error {
	streams := []jetstream.StreamConfig{
		{
			Name:      RawStreamName,
			Subjects:  []string{SubjectRawPrefix + ">"},
			MaxAge:    7 * 24 * time.Hour,
			Retention: jetstream.WorkQueuePolicy,
			Storage:   jetstream.FileStorage,
		},
		{
			Name:      EnrichedStreamName,
			Subjects:  []string{SubjectEnrichedPrefix + ">"},
			MaxAge:    7 * 24 * time.Hour,
			Retention: jetstream.WorkQueuePolicy,
			Storage:   jetstream.FileStorage,
		},
		{
			Name:      DLQStreamName,
			Subjects:  []string{SubjectDLQPrefix + ">"},
			MaxAge:    30 * 24 * time.Hour,
			Retention: jetstream.LimitsPolicy,
			Storage:   jetstream.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := b.js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create/update stream %s: %w", cfg.Name, err)
		}
	}
	return nil
}

// PublishRaw announces a new landing object.
func (b *Bus) PublishRaw(ctx context.Context, n Notification) error {
	return b.publish(ctx, SubjectRawPrefix+n.EventType, n)
}

// PublishEnriched announces a new intermediate object.
func (b *Bus) PublishEnriched(ctx context.Context, n Notification) error {
	return b.publish(ctx, SubjectEnrichedPrefix+n.RecordType, n)
}

// PublishDeadLetter announces that an object landed in the dead-letter
// area. The envelope itself lives in the object store; this is the
// alerting signal.
func (b *Bus) PublishDeadLetter(ctx context.Context, stage string, data []byte) error {
	_, err := b.js.Publish(ctx, SubjectDLQPrefix+stage, data)
	if err != nil {
		return fmt.Errorf("publish dead-letter notification: %w", err)
	}
	return nil
}

func (b *Bus) publish(ctx context.Context, subject string, n Notification) error {
	if n.PublishedAt.IsZero() {
		n.PublishedAt = time.Now().UTC()
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if _, err := b.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Consume binds a durable consumer on the given stream and feeds each
// notification to the handler. Handler errors NAK with delay so the
// broker redelivers. Returns a stop function.
func (b *Bus) Consume(ctx context.Context, streamName, consumerName string, handler Handler) (func(), error) {
	stream, err := b.js.Stream(ctx, streamName)
	if err != nil {
		return nil, fmt.Errorf("get stream %s: %w", streamName, err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		AckWait:       2 * time.Minute,
		MaxDeliver:    MaxDeliver,
		MaxAckPending: 64,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create/update consumer %s: %w", consumerName, err)
	}

	consumeCtx, cancel := context.WithCancel(ctx)

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		var n Notification
		if err := json.Unmarshal(msg.Data(), &n); err != nil {
			// Malformed notification can never succeed; drop it.
			_ = msg.Term()
			return
		}
		attempt := 1
		if meta, err := msg.Metadata(); err == nil {
			attempt = int(meta.NumDelivered)
		}
		if err := handler(consumeCtx, n, attempt); err != nil {
			_ = msg.NakWithDelay(10 * time.Second)
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("start consuming %s: %w", consumerName, err)
	}

	return func() {
		cancel()
		cons.Stop()
	}, nil
}

// Drain gracefully closes the connection, letting in-flight messages
// complete.
func (b *Bus) Drain() error {
	return b.conn.Drain()
}

func (b *Bus) Close() {
	b.conn.Close()
}
