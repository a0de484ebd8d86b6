// Package ingest implements the first pipeline stage: validate an
// inbound webhook payload and land it verbatim under a deterministic,
// collision-resistant key.
package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/z316data/salespipe/internal/events"
	"github.com/z316data/salespipe/internal/idempotency"
	"github.com/z316data/salespipe/internal/logging"
	"github.com/z316data/salespipe/internal/metrics"
	"github.com/z316data/salespipe/internal/models"
	"github.com/z316data/salespipe/internal/pipeline"
	"github.com/z316data/salespipe/internal/storage"
)

// Stage lands raw events. Stateless; safe for concurrent invocations.
type Stage struct {
	store   storage.ObjectStore
	publish events.Publisher
	log     *logging.Logger
}

func New(store storage.ObjectStore, publish events.Publisher, log *logging.Logger) *Stage {
	if publish == nil {
		publish = events.NopPublisher{}
	}
	return &Stage{store: store, publish: publish, log: log}
}

// webhookEnvelope is the minimal shape every ERP webhook must carry.
type webhookEnvelope struct {
	Versao string `json:"versao"`
	CNPJ   string `json:"cnpj"`
	Tipo   string `json:"tipo"`
	Dados  struct {
		ID json.Number `json:"id"`
	} `json:"dados"`
}

// Ingest validates the payload and writes it write-once to the landing
// store. Re-delivery of an identical payload resolves to the same key
// and produces no second object; the original Ref is returned either
// way. The downstream trigger fires only on a created write.
func (s *Stage) Ingest(ctx context.Context, payload []byte, eventType models.EventType) (storage.Ref, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return storage.Ref{}, pipeline.Validationf("payload is not valid JSON: %v", err)
	}
	if envelope.Versao == "" || envelope.CNPJ == "" || envelope.Tipo == "" {
		return storage.Ref{}, pipeline.Validationf("payload missing required fields (versao, cnpj, tipo)")
	}

	sourceID := envelope.Dados.ID.String()
	if sourceID == "" {
		return storage.Ref{}, pipeline.Validationf("payload has no resolvable dados.id")
	}

	derived, ok := models.EventTypeForTipo(envelope.Tipo)
	if !ok {
		return storage.Ref{}, pipeline.Validationf("unsupported webhook tipo %q", envelope.Tipo)
	}
	if eventType == "" {
		eventType = derived
	} else if eventType != derived {
		return storage.Ref{}, pipeline.Validationf("event type %q does not match payload tipo %q", eventType, envelope.Tipo)
	}

	raw := models.RawEvent{
		SourceID:   sourceID,
		EventType:  eventType,
		ReceivedAt: time.Now().UTC(),
		Body:       json.RawMessage(payload),
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return storage.Ref{}, pipeline.Validationf("encode raw event: %v", err)
	}

	key := idempotency.LandingKey(eventType, sourceID, payload)
	ref := storage.Ref{Bucket: s.store.Bucket(), Key: key}

	metadata := map[string]string{
		"source-id":  sourceID,
		"event-type": string(eventType),
		"checksum":   idempotency.ContentHash(payload),
	}

	created, err := s.store.CreateIfAbsent(ctx, key, data, metadata)
	if err != nil {
		metrics.IngestTotal.WithLabelValues(string(eventType), "error").Inc()
		return storage.Ref{}, err
	}
	if created {
		metrics.IngestTotal.WithLabelValues(string(eventType), "created").Inc()
		s.log.InfoContext(ctx, "raw event landed",
			"source_id", sourceID, "event_type", eventType, "key", key)
	} else {
		// Webhook retry: the landing object already exists.
		metrics.IngestTotal.WithLabelValues(string(eventType), "duplicate").Inc()
		s.log.InfoContext(ctx, "duplicate delivery ignored",
			"source_id", sourceID, "event_type", eventType, "key", key)
	}

	// The trigger fires on duplicates too. A previous delivery may have
	// landed the object and then crashed before publishing; downstream
	// stages are idempotent, so re-triggering converges to the same
	// result.
	notification := events.Notification{
		Ref:       ref.String(),
		SourceID:  sourceID,
		EventType: string(eventType),
	}
	if err := s.publish.PublishRaw(ctx, notification); err != nil {
		return ref, err
	}
	return ref, nil
}
