package dlq

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z316data/salespipe/internal/events"
	"github.com/z316data/salespipe/internal/logging"
	"github.com/z316data/salespipe/internal/pipeline"
	"github.com/z316data/salespipe/internal/storage"
)

type capturePublisher struct {
	raw        []events.Notification
	enriched   []events.Notification
	deadletter [][]byte
	failWith   error
}

func (p *capturePublisher) PublishRaw(ctx context.Context, n events.Notification) error {
	p.raw = append(p.raw, n)
	return nil
}

func (p *capturePublisher) PublishEnriched(ctx context.Context, n events.Notification) error {
	p.enriched = append(p.enriched, n)
	return nil
}

func (p *capturePublisher) PublishDeadLetter(ctx context.Context, stage string, data []byte) error {
	if p.failWith != nil {
		return p.failWith
	}
	p.deadletter = append(p.deadletter, data)
	return nil
}

func testLogger() *logging.Logger {
	return logging.New(slog.LevelError, "text")
}

func TestWriteRecordsEnvelope(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore("test-bucket")
	pub := &capturePublisher{}
	dl := New(store, pub, testLogger())

	env := Envelope{
		Ref:       "test-bucket/raw/order-created/100/abc.json",
		Stage:     StageEnrich,
		SourceID:  "100",
		EventType: "order-created",
		Attempts:  4,
	}
	cause := &pipeline.TransientAPIError{Msg: "api busy"}
	require.NoError(t, dl.Write(ctx, env, cause))

	envelopes, err := dl.List(ctx, StageEnrich)
	require.NoError(t, err)
	require.Len(t, envelopes, 1)
	got := envelopes[0]
	assert.Equal(t, env.Ref, got.Ref)
	assert.Equal(t, "transient_api_error", got.ErrorClass)
	assert.Equal(t, 4, got.Attempts)
	assert.False(t, got.FailedAt.IsZero())

	require.Len(t, pub.deadletter, 1, "an alerting notification is emitted")
}

func TestWriteOverwritesForSameObject(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore("test-bucket")
	dl := New(store, nil, testLogger())

	env := Envelope{Ref: "test-bucket/raw/x.json", Stage: StageLoad}
	require.NoError(t, dl.Write(ctx, env, errors.New("first")))
	require.NoError(t, dl.Write(ctx, env, errors.New("second")))

	envelopes, err := dl.List(ctx, StageLoad)
	require.NoError(t, err)
	require.Len(t, envelopes, 1, "repeated failures keep one envelope per object")
	assert.Equal(t, "second", envelopes[0].Error)
}

func TestWriteSucceedsWhenNotifyFails(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore("test-bucket")
	pub := &capturePublisher{failWith: errors.New("broker down")}
	dl := New(store, pub, testLogger())

	err := dl.Write(ctx, Envelope{Ref: "test-bucket/raw/x.json", Stage: StageEnrich}, errors.New("boom"))
	require.NoError(t, err, "the durable record matters; the alert is best effort")

	envelopes, err := dl.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, envelopes, 1)
}

func TestListFiltersByStage(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore("test-bucket")
	dl := New(store, nil, testLogger())

	require.NoError(t, dl.Write(ctx, Envelope{Ref: "test-bucket/raw/a.json", Stage: StageEnrich}, errors.New("x")))
	require.NoError(t, dl.Write(ctx, Envelope{Ref: "test-bucket/enriched/b.json", Stage: StageLoad}, errors.New("y")))

	enrichOnly, err := dl.List(ctx, StageEnrich)
	require.NoError(t, err)
	assert.Len(t, enrichOnly, 1)

	all, err := dl.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRequeueRepublishesTrigger(t *testing.T) {
	ctx := context.Background()
	pub := &capturePublisher{}
	dl := New(storage.NewMemoryStore("test-bucket"), pub, testLogger())

	enrichEnv := Envelope{
		Ref:       "test-bucket/raw/order-created/100/abc.json",
		Stage:     StageEnrich,
		SourceID:  "100",
		EventType: "order-created",
	}
	require.NoError(t, dl.Requeue(ctx, enrichEnv))
	require.Len(t, pub.raw, 1)
	assert.Equal(t, enrichEnv.Ref, pub.raw[0].Ref)

	loadEnv := Envelope{
		Ref:        "test-bucket/enriched/pdv/200.json",
		Stage:      StageLoad,
		SourceID:   "200",
		RecordType: "pdv",
	}
	require.NoError(t, dl.Requeue(ctx, loadEnv))
	require.Len(t, pub.enriched, 1)

	err := dl.Requeue(ctx, Envelope{Stage: "unknown"})
	assert.Error(t, err)
}
