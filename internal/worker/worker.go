// Package worker binds the pipeline stages to the trigger boundary:
// raw-object notifications drive enrichment, enriched-object
// notifications drive loading. One object per invocation; concurrency
// comes from the broker delivering distinct objects in parallel.
package worker

import (
	"context"
	"errors"

	"github.com/z316data/salespipe/internal/dlq"
	"github.com/z316data/salespipe/internal/enrich"
	"github.com/z316data/salespipe/internal/events"
	"github.com/z316data/salespipe/internal/load"
	"github.com/z316data/salespipe/internal/logging"
	"github.com/z316data/salespipe/internal/pipeline"
	"github.com/z316data/salespipe/internal/storage"
)

type Worker struct {
	bus        *events.Bus
	enricher   *enrich.Stage
	loader     *load.Stage
	deadletter *dlq.DeadLetter
	log        *logging.Logger
}

func New(bus *events.Bus, enricher *enrich.Stage, loader *load.Stage, deadletter *dlq.DeadLetter, log *logging.Logger) *Worker {
	return &Worker{
		bus:        bus,
		enricher:   enricher,
		loader:     loader,
		deadletter: deadletter,
		log:        log,
	}
}

// Start ensures the pipeline streams exist and binds both consumers.
// The returned stop function halts consumption.
func (w *Worker) Start(ctx context.Context) (func(), error) {
	if err := w.bus.EnsureStreams(ctx); err != nil {
		return nil, err
	}

	stopRaw, err := w.bus.Consume(ctx, events.RawStreamName, "enrich-worker", w.handleRaw)
	if err != nil {
		return nil, err
	}

	stopEnriched, err := w.bus.Consume(ctx, events.EnrichedStreamName, "load-worker", w.handleEnriched)
	if err != nil {
		stopRaw()
		return nil, err
	}

	return func() {
		stopRaw()
		stopEnriched()
	}, nil
}

func (w *Worker) handleRaw(ctx context.Context, n events.Notification, attempt int) error {
	ref, err := storage.ParseRef(n.Ref)
	if err != nil {
		return w.toDeadLetter(ctx, dlq.StageEnrich, n, attempt, pipeline.Validationf("%v", err))
	}

	_, err = w.enricher.Enrich(ctx, ref)
	return w.settle(ctx, dlq.StageEnrich, n, attempt, err, w.enricher.MaxAttempts())
}

func (w *Worker) handleEnriched(ctx context.Context, n events.Notification, attempt int) error {
	ref, err := storage.ParseRef(n.Ref)
	if err != nil {
		return w.toDeadLetter(ctx, dlq.StageLoad, n, attempt, pipeline.Validationf("%v", err))
	}

	_, err = w.loader.Load(ctx, ref)
	return w.settle(ctx, dlq.StageLoad, n, attempt, err, 1)
}

// settle maps a stage outcome to broker behavior. Fatal errors and
// exhausted in-stage retries go to the dead-letter area and ACK;
// everything else NAKs for broker redelivery until the delivery bound,
// then dead-letters so nothing is dropped without a durable record.
func (w *Worker) settle(ctx context.Context, stage string, n events.Notification, attempt int, err error, stageAttempts int) error {
	switch {
	case err == nil, errors.Is(err, pipeline.ErrDuplicate):
		return nil
	case pipeline.IsFatal(err):
		return w.toDeadLetter(ctx, stage, n, 1, err)
	case pipeline.IsTransient(err):
		// The stage already exhausted its bounded retries.
		return w.toDeadLetter(ctx, stage, n, stageAttempts, err)
	case attempt >= events.MaxDeliver:
		return w.toDeadLetter(ctx, stage, n, attempt, err)
	default:
		// Not-found (upstream write not yet visible) and unexpected
		// errors: let the broker redeliver.
		w.log.WarnContext(ctx, "stage invocation failed, broker will redeliver",
			"stage", stage, "failed_ref", n.Ref, "attempt", attempt, "error", err)
		return err
	}
}

func (w *Worker) toDeadLetter(ctx context.Context, stage string, n events.Notification, attempts int, cause error) error {
	env := dlq.Envelope{
		Ref:        n.Ref,
		Stage:      stage,
		SourceID:   n.SourceID,
		EventType:  n.EventType,
		RecordType: n.RecordType,
		Attempts:   attempts,
	}
	if err := w.deadletter.Write(ctx, env, cause); err != nil {
		// Keep the notification alive until the record is durable.
		w.log.ErrorContext(ctx, "dead-letter write failed", "stage", stage, "error", err)
		return err
	}
	return nil
}
