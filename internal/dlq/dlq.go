// Package dlq is the dead-letter boundary: a durable area in the same
// object store family as landing and intermediate, holding failure
// envelopes for objects that exhausted retries or hit fatal errors.
// Nothing is ever silently dropped; every terminal failure lands here.
package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/z316data/salespipe/internal/events"
	"github.com/z316data/salespipe/internal/idempotency"
	"github.com/z316data/salespipe/internal/logging"
	"github.com/z316data/salespipe/internal/metrics"
	"github.com/z316data/salespipe/internal/pipeline"
	"github.com/z316data/salespipe/internal/storage"
)

// Stage names used in envelope tags and notification subjects.
// Ingest has no dead-letter stage: rejected payloads never land, and
// the error goes back to the webhook caller.
const (
	StageEnrich = "enrich"
	StageLoad   = "load"
)

// Envelope carries everything needed to diagnose and manually replay a
// failed object.
type Envelope struct {
	Ref        string    `json:"ref"`
	Stage      string    `json:"stage"`
	SourceID   string    `json:"source_id,omitempty"`
	EventType  string    `json:"event_type,omitempty"`
	RecordType string    `json:"record_type,omitempty"`
	ErrorClass string    `json:"error_class"`
	Error      string    `json:"error"`
	Attempts   int       `json:"attempts"`
	FailedAt   time.Time `json:"failed_at"`
}

// DeadLetter writes failure envelopes and emits alerting
// notifications.
type DeadLetter struct {
	store  storage.ObjectStore
	notify events.Publisher
	log    *logging.Logger
}

func New(store storage.ObjectStore, notify events.Publisher, log *logging.Logger) *DeadLetter {
	if notify == nil {
		notify = events.NopPublisher{}
	}
	return &DeadLetter{store: store, notify: notify, log: log}
}

// Write records a terminal failure. The envelope key is derived from
// the failed object's key, so repeated failures overwrite their
// envelope instead of accumulating.
func (d *DeadLetter) Write(ctx context.Context, env Envelope, cause error) error {
	env.ErrorClass = pipeline.Class(cause)
	env.Error = cause.Error()
	if env.FailedAt.IsZero() {
		env.FailedAt = time.Now().UTC()
	}
	if env.Attempts < 1 {
		env.Attempts = 1
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal dead-letter envelope: %w", err)
	}

	key := idempotency.DeadLetterKey(env.Stage, env.Ref)
	metadata := map[string]string{
		"stage":       env.Stage,
		"error-class": env.ErrorClass,
		"attempts":    fmt.Sprintf("%d", env.Attempts),
	}
	if err := d.store.Put(ctx, key, data, metadata); err != nil {
		return fmt.Errorf("write dead-letter envelope: %w", err)
	}

	metrics.DeadLettersTotal.WithLabelValues(env.Stage).Inc()
	d.log.ErrorContext(ctx, "object dead-lettered",
		"stage", env.Stage,
		"failed_ref", env.Ref,
		"class", env.ErrorClass,
		"attempts", env.Attempts,
		"error", env.Error)

	if err := d.notify.PublishDeadLetter(ctx, env.Stage, data); err != nil {
		// The durable record exists; a lost alert is not a failure.
		d.log.WarnContext(ctx, "dead-letter notification failed", "error", err)
	}
	return nil
}

// List returns the envelopes currently in the dead-letter area,
// optionally filtered by stage.
func (d *DeadLetter) List(ctx context.Context, stage string) ([]Envelope, error) {
	prefix := "deadletter/"
	if stage != "" {
		prefix += stage + "/"
	}

	keys, err := d.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list dead-letter area: %w", err)
	}

	envelopes := make([]Envelope, 0, len(keys))
	for _, key := range keys {
		data, err := d.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("read dead-letter envelope %s: %w", key, err)
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			d.log.WarnContext(ctx, "skipping malformed dead-letter envelope", "key", key, "error", err)
			continue
		}
		envelopes = append(envelopes, env)
	}
	return envelopes, nil
}

// Requeue republishes the trigger notification for a dead-lettered
// object so its stage processes it again, then removes nothing: the
// envelope is overwritten on the next failure or left as history.
func (d *DeadLetter) Requeue(ctx context.Context, env Envelope) error {
	n := events.Notification{
		Ref:        env.Ref,
		SourceID:   env.SourceID,
		EventType:  env.EventType,
		RecordType: env.RecordType,
	}

	switch env.Stage {
	case StageEnrich:
		return d.notify.PublishRaw(ctx, n)
	case StageLoad:
		return d.notify.PublishEnriched(ctx, n)
	default:
		return fmt.Errorf("cannot requeue stage %q", env.Stage)
	}
}
