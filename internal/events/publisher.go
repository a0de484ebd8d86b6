package events

import "context"

// Publisher is the slice of Bus the stages need. Stages accept this
// interface so tests can observe notifications without a broker.
type Publisher interface {
	PublishRaw(ctx context.Context, n Notification) error
	PublishEnriched(ctx context.Context, n Notification) error
	PublishDeadLetter(ctx context.Context, stage string, data []byte) error
}

// NopPublisher discards notifications. The backfill driver uses it:
// backfill chains the stages directly instead of through the broker.
type NopPublisher struct{}

func (NopPublisher) PublishRaw(ctx context.Context, n Notification) error    { return nil }
func (NopPublisher) PublishEnriched(ctx context.Context, n Notification) error { return nil }
func (NopPublisher) PublishDeadLetter(ctx context.Context, stage string, data []byte) error {
	return nil
}
