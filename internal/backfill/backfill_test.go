package backfill

import (
	"context"
	"encoding/json"
	"iter"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z316data/salespipe/internal/enrich"
	"github.com/z316data/salespipe/internal/erp"
	"github.com/z316data/salespipe/internal/ingest"
	"github.com/z316data/salespipe/internal/load"
	"github.com/z316data/salespipe/internal/logging"
	"github.com/z316data/salespipe/internal/models"
	"github.com/z316data/salespipe/internal/pipeline"
	"github.com/z316data/salespipe/internal/storage"
	"github.com/z316data/salespipe/internal/warehouse"
)

// scriptedAPI serves canned order-created lookups and can be told to
// fail specific order ids.
type scriptedAPI struct {
	failIDs map[string]error
	calls   int
}

func (s *scriptedAPI) GetPDVOrder(ctx context.Context, orderID string) (*erp.PDVOrderResult, error) {
	s.calls++
	if err, ok := s.failIDs[orderID]; ok {
		return nil, err
	}
	return &erp.PDVOrderResult{
		Raw:    json.RawMessage(`{"retorno":{"pedido":{"id":` + orderID + `,"numero":551}}}`),
		Numero: "551",
	}, nil
}

func (s *scriptedAPI) SearchOrders(ctx context.Context, numero string) (json.RawMessage, error) {
	s.calls++
	return json.RawMessage(`{"retorno":{"pedidos":[{"pedido":{"id":"9001","numero":"` + numero + `","data_pedido":"10/01/2026","valor":"99.90"}}]}}`), nil
}

func (s *scriptedAPI) GetProduct(ctx context.Context, productID string) (json.RawMessage, error) {
	s.calls++
	return json.RawMessage(`{"retorno":{"produto":{"id":` + productID + `,"codigo":"SKU-` + productID + `"}}}`), nil
}

func (s *scriptedAPI) MaxAttempts() int { return 4 }

func testLogger() *logging.Logger {
	return logging.New(slog.LevelError, "text")
}

func newTestDriver(store *storage.MemoryStore, api enrich.API, wh warehouse.Warehouse) *Driver {
	log := testLogger()
	enricher := enrich.New(store, api, nil, log, "backfill")
	loader := load.New(store, wh, log)
	return NewDriver(store, enricher, loader, log, models.EventOrderCreated)
}

func collect(results iter.Seq[Result]) []Result {
	var out []Result
	for r := range results {
		out = append(out, r)
	}
	return out
}

func TestParseMode(t *testing.T) {
	for _, valid := range []string{"full", "enrich", "load"} {
		mode, err := ParseMode(valid)
		require.NoError(t, err)
		assert.Equal(t, Mode(valid), mode)
	}
	_, err := ParseMode("replay")
	assert.Error(t, err)
}

func TestFullModeSynthesizesLanding(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore("test-bucket")
	wh := warehouse.NewMemory()
	driver := newTestDriver(store, &scriptedAPI{}, wh)

	results := collect(driver.Run(ctx, []string{"100"}, ModeFull))
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, 1, results[0].Records)
	assert.Equal(t, 1, results[0].Rows)

	landing, err := store.List(ctx, "raw/order-created/100/")
	require.NoError(t, err)
	require.Len(t, landing, 1, "an identifier never seen live gets a synthetic landing object")
	assert.Equal(t, "backfill", store.Metadata(landing[0])["source-identifier"])

	rows := wh.PesquisaRows()
	require.Len(t, rows, 1)
	assert.Equal(t, "551", rows["100"].Numero)
}

func TestBackfillConvergesWithLivePath(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore("test-bucket")
	wh := warehouse.NewMemory()
	api := &scriptedAPI{}
	log := testLogger()

	// Live path first: webhook ingest, then the stages.
	ingestStage := ingest.New(store, nil, log)
	enricher := enrich.New(store, api, nil, log, "live")
	loader := load.New(store, wh, log)

	payload := []byte(`{"versao":"2","cnpj":"12345678000199","tipo":"inclusao_pedido","dados":{"id":100}}`)
	rawRef, err := ingestStage.Ingest(ctx, payload, "")
	require.NoError(t, err)

	records, err := enricher.Enrich(ctx, rawRef)
	require.NoError(t, err)
	require.Len(t, records, 1)
	_, err = loader.Load(ctx, storage.Ref{Bucket: store.Bucket(), Key: "enriched/pesquisa/100.json"})
	require.NoError(t, err)

	landingBefore, err := store.List(ctx, "raw/")
	require.NoError(t, err)

	// Backfill the same identifier.
	driver := newTestDriver(store, api, wh)
	results := collect(driver.Run(ctx, []string{"100"}, ModeFull))
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	landingAfter, err := store.List(ctx, "raw/")
	require.NoError(t, err)
	assert.Equal(t, landingBefore, landingAfter, "backfill replays the live landing object instead of synthesizing")

	enrichedKeys, err := store.List(ctx, "enriched/")
	require.NoError(t, err)
	assert.Len(t, enrichedKeys, 1, "one intermediate object per result unit")
	assert.Len(t, wh.PesquisaRows(), 1, "live and backfill converge to one destination row")
}

func TestBackfillIsRepeatable(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore("test-bucket")
	wh := warehouse.NewMemory()
	driver := newTestDriver(store, &scriptedAPI{}, wh)

	for i := 0; i < 2; i++ {
		results := collect(driver.Run(ctx, []string{"100"}, ModeFull))
		require.Len(t, results, 1)
		require.NoError(t, results[0].Err)
	}

	landing, err := store.List(ctx, "raw/order-created/100/")
	require.NoError(t, err)
	assert.Len(t, landing, 1)
	assert.Len(t, wh.PesquisaRows(), 1)
}

func TestEnrichModeSkipsLoad(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore("test-bucket")
	wh := warehouse.NewMemory()
	driver := newTestDriver(store, &scriptedAPI{}, wh)

	results := collect(driver.Run(ctx, []string{"100"}, ModeEnrich))
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, 1, results[0].Records)
	assert.Equal(t, 0, results[0].Rows)

	assert.Empty(t, wh.PesquisaRows(), "enrich mode never touches the destination")
}

func TestLoadModeRequiresEnrichedObjects(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore("test-bucket")
	wh := warehouse.NewMemory()
	driver := newTestDriver(store, &scriptedAPI{}, wh)

	results := collect(driver.Run(ctx, []string{"100"}, ModeLoad))
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, pipeline.ErrNotFound)
	assert.Equal(t, "not_found", results[0].ErrorClass)

	// Enrich first, then load mode succeeds.
	enrichResults := collect(driver.Run(ctx, []string{"100"}, ModeEnrich))
	require.NoError(t, enrichResults[0].Err)

	results = collect(driver.Run(ctx, []string{"100"}, ModeLoad))
	require.NoError(t, results[0].Err)
	assert.Equal(t, 1, results[0].Rows)
	assert.Len(t, wh.PesquisaRows(), 1)
}

func TestSummarizeCountsFailures(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore("test-bucket")
	wh := warehouse.NewMemory()
	api := &scriptedAPI{failIDs: map[string]error{
		"200": &pipeline.TransientAPIError{Msg: "api busy"},
	}}
	driver := newTestDriver(store, api, wh)

	summary := driver.Summarize(driver.Run(ctx, []string{"100", "200", "300"}, ModeFull))

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "200", summary.Failures[0].ID)
	assert.Equal(t, "transient_api_error", summary.Failures[0].ErrorClass)
}

func TestRunStopsOnCanceledContext(t *testing.T) {
	store := storage.NewMemoryStore("test-bucket")
	driver := newTestDriver(store, &scriptedAPI{}, warehouse.NewMemory())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := collect(driver.Run(ctx, []string{"100", "200"}, ModeFull))
	assert.Empty(t, results)
}
