// Package load implements the third pipeline stage: classify an
// enriched record by its record type, transform it into the
// destination schema, and upsert it by natural key.
package load

import (
	"context"
	"encoding/json"

	"github.com/z316data/salespipe/internal/logging"
	"github.com/z316data/salespipe/internal/metrics"
	"github.com/z316data/salespipe/internal/models"
	"github.com/z316data/salespipe/internal/pipeline"
	"github.com/z316data/salespipe/internal/storage"
	"github.com/z316data/salespipe/internal/warehouse"
)

// Result reports which row a load invocation converged to.
type Result struct {
	SourceID string
	Table    models.RecordType
}

// Stage routes enriched records to their destination tables.
type Stage struct {
	store        storage.ObjectStore
	transformers map[models.RecordType]Transformer
	log          *logging.Logger
}

func New(store storage.ObjectStore, wh warehouse.Warehouse, log *logging.Logger) *Stage {
	transformers := map[models.RecordType]Transformer{}
	for _, t := range []Transformer{
		&pdvTransformer{wh: wh},
		&pesquisaTransformer{wh: wh},
		&produtoTransformer{wh: wh},
	} {
		transformers[t.RecordType()] = t
	}
	return &Stage{store: store, transformers: transformers, log: log}
}

// Load reads the enriched record behind ref and upserts it into its
// table. Repeated delivery of the same logical record converges to one
// row. Payloads missing required destination fields fail with
// SchemaMismatchError, which is terminal for the object.
func (s *Stage) Load(ctx context.Context, ref storage.Ref) (Result, error) {
	ctx = logging.WithRef(ctx, ref.String())

	data, err := s.store.Get(ctx, ref.Key)
	if err != nil {
		return Result{}, err
	}

	var record models.EnrichedRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return Result{}, pipeline.Validationf("malformed enriched object %s: %v", ref.Key, err)
	}

	transformer, ok := s.transformers[record.RecordType]
	if !ok {
		return Result{}, pipeline.Validationf("no transformer for record type %q", record.RecordType)
	}

	if err := transformer.Load(ctx, record); err != nil {
		metrics.LoadFailures.WithLabelValues(pipeline.Class(err)).Inc()
		return Result{}, err
	}

	metrics.LoadTotal.WithLabelValues(string(record.RecordType)).Inc()
	s.log.InfoContext(ctx, "row upserted",
		"source_id", record.SourceID, "table", record.RecordType)

	return Result{SourceID: record.SourceID, Table: record.RecordType}, nil
}
