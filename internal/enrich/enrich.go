// Package enrich implements the second pipeline stage: read a raw
// landing object, expand it through ERP API lookups, and write the
// classified results to the intermediate store.
//
// Enrichment is all-or-nothing per raw event: when an event needs
// several API calls, nothing is written until every call has
// succeeded. Output keys derive from the idempotency key, so
// re-running overwrites identical content instead of duplicating.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/z316data/salespipe/internal/erp"
	"github.com/z316data/salespipe/internal/events"
	"github.com/z316data/salespipe/internal/idempotency"
	"github.com/z316data/salespipe/internal/logging"
	"github.com/z316data/salespipe/internal/metrics"
	"github.com/z316data/salespipe/internal/models"
	"github.com/z316data/salespipe/internal/pipeline"
	"github.com/z316data/salespipe/internal/storage"
)

// API is the slice of the ERP client the stage needs.
type API interface {
	GetPDVOrder(ctx context.Context, orderID string) (*erp.PDVOrderResult, error)
	SearchOrders(ctx context.Context, numero string) (json.RawMessage, error)
	GetProduct(ctx context.Context, productID string) (json.RawMessage, error)
	MaxAttempts() int
}

// Stage enriches raw events. Stateless; safe for concurrent
// invocations over distinct objects.
type Stage struct {
	store   storage.ObjectStore
	api     API
	publish events.Publisher
	log     *logging.Logger

	// sourceIdentifier tags output objects with the path that produced
	// them ("live" or "backfill").
	sourceIdentifier string
}

func New(store storage.ObjectStore, api API, publish events.Publisher, log *logging.Logger, sourceIdentifier string) *Stage {
	if publish == nil {
		publish = events.NopPublisher{}
	}
	if sourceIdentifier == "" {
		sourceIdentifier = "live"
	}
	return &Stage{
		store:            store,
		api:              api,
		publish:          publish,
		log:              log,
		sourceIdentifier: sourceIdentifier,
	}
}

// MaxAttempts exposes the API retry bound for dead-letter envelopes.
func (s *Stage) MaxAttempts() int { return s.api.MaxAttempts() }

// Enrich reads the raw object behind ref, issues the lookups its event
// type requires, and writes one intermediate object per result unit.
// A reference that does not exist in the landing store fails with
// pipeline.ErrNotFound.
func (s *Stage) Enrich(ctx context.Context, ref storage.Ref) ([]models.EnrichedRecord, error) {
	ctx = logging.WithRef(ctx, ref.String())

	data, err := s.store.Get(ctx, ref.Key)
	if err != nil {
		return nil, err
	}

	var raw models.RawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, pipeline.Validationf("malformed landing object %s: %v", ref.Key, err)
	}
	if raw.SourceID == "" {
		return nil, pipeline.Validationf("landing object %s has no source_id", ref.Key)
	}

	records, err := s.lookup(ctx, raw, ref)
	if err != nil {
		metrics.EnrichFailures.WithLabelValues(pipeline.Class(err)).Inc()
		return nil, err
	}

	// All lookups succeeded; commit every record.
	for _, record := range records {
		if err := s.write(ctx, record); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// lookup runs the API calls for the event type and assembles records
// in memory. No storage writes happen here.
func (s *Stage) lookup(ctx context.Context, raw models.RawEvent, ref storage.Ref) ([]models.EnrichedRecord, error) {
	switch raw.EventType {
	case models.EventOrderCreated:
		// Two chained calls: resolve the order number, then fetch the
		// search result that feeds the pesquisa table.
		order, err := s.api.GetPDVOrder(ctx, raw.SourceID)
		if err != nil {
			return nil, err
		}
		payload, err := s.api.SearchOrders(ctx, order.Numero)
		if err != nil {
			return nil, err
		}
		return []models.EnrichedRecord{
			s.record(raw.SourceID, models.RecordPesquisa, ref, payload),
		}, nil

	case models.EventPDVSale:
		order, err := s.api.GetPDVOrder(ctx, raw.SourceID)
		if err != nil {
			return nil, err
		}
		records := []models.EnrichedRecord{
			s.record(raw.SourceID, models.RecordPDV, ref, order.Raw),
		}
		// Fan out to the order's line items: one produto record per
		// product lookup.
		for _, itemID := range order.ItemIDs {
			payload, err := s.api.GetProduct(ctx, itemID)
			if err != nil {
				return nil, err
			}
			records = append(records,
				s.record(idempotency.ProductSourceID(itemID), models.RecordProduto, ref, payload))
		}
		return records, nil

	case models.EventProductQuery:
		payload, err := s.api.GetProduct(ctx, raw.SourceID)
		if err != nil {
			return nil, err
		}
		return []models.EnrichedRecord{
			s.record(raw.SourceID, models.RecordProduto, ref, payload),
		}, nil

	default:
		return nil, pipeline.Validationf("unsupported event type %q", raw.EventType)
	}
}

func (s *Stage) record(sourceID string, rt models.RecordType, rawRef storage.Ref, payload json.RawMessage) models.EnrichedRecord {
	return models.EnrichedRecord{
		SourceID:   sourceID,
		RecordType: rt,
		RawRef:     rawRef.String(),
		Payload:    payload,
		EnrichedAt: time.Now().UTC(),
		Checksum:   idempotency.ContentHash(payload),
	}
}

func (s *Stage) write(ctx context.Context, record models.EnrichedRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode enriched record %s: %w", record.SourceID, err)
	}

	key := idempotency.EnrichedKey(record.RecordType, record.SourceID)
	metadata := map[string]string{
		"source-id":            record.SourceID,
		"record-type":          string(record.RecordType),
		"raw-ref":              record.RawRef,
		"checksum":             record.Checksum,
		"processing-timestamp": record.EnrichedAt.Format(time.RFC3339),
		"source-identifier":    s.sourceIdentifier,
	}

	// Unconditional put: re-enrichment overwrites with identical
	// content rather than skipping, so a corrupted object heals on
	// replay.
	if err := s.store.Put(ctx, key, data, metadata); err != nil {
		return fmt.Errorf("write enriched record %s: %w", key, err)
	}

	metrics.EnrichTotal.WithLabelValues(string(record.RecordType)).Inc()
	s.log.InfoContext(ctx, "enriched record written",
		"source_id", record.SourceID, "record_type", record.RecordType, "key", key)

	notification := events.Notification{
		Ref:        storage.Ref{Bucket: s.store.Bucket(), Key: key}.String(),
		SourceID:   record.SourceID,
		RecordType: string(record.RecordType),
	}
	return s.publish.PublishEnriched(ctx, notification)
}
