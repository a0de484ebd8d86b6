package load

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z316data/salespipe/internal/idempotency"
	"github.com/z316data/salespipe/internal/logging"
	"github.com/z316data/salespipe/internal/models"
	"github.com/z316data/salespipe/internal/pipeline"
	"github.com/z316data/salespipe/internal/storage"
	"github.com/z316data/salespipe/internal/warehouse"
)

func testLogger() *logging.Logger {
	return logging.New(slog.LevelError, "text")
}

func putEnriched(t *testing.T, store *storage.MemoryStore, sourceID string, rt models.RecordType, payload string) storage.Ref {
	t.Helper()

	record := models.EnrichedRecord{
		SourceID:   sourceID,
		RecordType: rt,
		RawRef:     "test-bucket/raw/x.json",
		Payload:    json.RawMessage(payload),
		EnrichedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(record)
	require.NoError(t, err)

	key := idempotency.EnrichedKey(rt, sourceID)
	require.NoError(t, store.Put(context.Background(), key, data, nil))
	return storage.Ref{Bucket: store.Bucket(), Key: key}
}

const pdvPayload = `{"retorno":{"pedido":{
	"id":"9001","numero":551,"data":"15/03/2026",
	"totalProdutos":"120.50","totalVenda":130.00,"frete":"9.50",
	"desconto":"0,00","formaPagamento":"credito","situacao":"aprovado",
	"contato":{"nome":"Fulano"},"itens":[{"item":{"idProduto":"71"}}],"parcelas":[]}}}`

func TestLoadPDV(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore("test-bucket")
	wh := warehouse.NewMemory()
	stage := New(store, wh, testLogger())

	ref := putEnriched(t, store, "9001", models.RecordPDV, pdvPayload)
	result, err := stage.Load(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, models.RecordPDV, result.Table)

	rows := wh.PDVRows()
	require.Len(t, rows, 1)
	row := rows["9001"]
	assert.Equal(t, int64(9001), row.OrderID)
	assert.Equal(t, int64(551), row.Numero)
	require.NotNil(t, row.Data)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), *row.Data)
	assert.InDelta(t, 120.50, row.TotalProdutos, 0.001, "string-encoded numbers must decode")
	assert.InDelta(t, 9.50, row.Frete, 0.001)
	assert.JSONEq(t, `{"nome":"Fulano"}`, string(row.Contato))
}

func TestLoadPesquisaTakesFirstResult(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore("test-bucket")
	wh := warehouse.NewMemory()
	stage := New(store, wh, testLogger())

	payload := `{"retorno":{"pedidos":[
		{"pedido":{"id":"9001","numero":"551","data_pedido":"10/01/2026","valor":"99.90","nome":"Cliente A","situacao":"faturado"}},
		{"pedido":{"id":"9002","numero":"552","data_pedido":"11/01/2026"}}]}}`

	ref := putEnriched(t, store, "100", models.RecordPesquisa, payload)
	_, err := stage.Load(ctx, ref)
	require.NoError(t, err)

	rows := wh.PesquisaRows()
	require.Len(t, rows, 1)
	row := rows["100"]
	assert.Equal(t, "551", row.Numero)
	assert.Equal(t, "Cliente A", row.Nome)
	assert.InDelta(t, 99.90, row.Valor, 0.001)
	require.NotNil(t, row.DataPedido)
	assert.Equal(t, time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC), *row.DataPedido)
}

func TestLoadProduto(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore("test-bucket")
	wh := warehouse.NewMemory()
	stage := New(store, wh, testLogger())

	payload := `{"retorno":{"produto":{"id":71,"codigo":"SKU-71","nome":"Camiseta","preco":"49.90","situacao":"A"}}}`

	ref := putEnriched(t, store, "PROD-71", models.RecordProduto, payload)
	_, err := stage.Load(ctx, ref)
	require.NoError(t, err)

	rows := wh.ProdutoRows()
	require.Len(t, rows, 1)
	row := rows["PROD-71"]
	assert.Equal(t, "SKU-71", row.Codigo)
	assert.Equal(t, "Camiseta", row.Nome)
	assert.InDelta(t, 49.90, row.Preco, 0.001)
}

func TestLoadConvergesOnRedelivery(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore("test-bucket")
	wh := warehouse.NewMemory()
	stage := New(store, wh, testLogger())

	ref := putEnriched(t, store, "9001", models.RecordPDV, pdvPayload)

	for i := 0; i < 3; i++ {
		_, err := stage.Load(ctx, ref)
		require.NoError(t, err)
	}

	assert.Len(t, wh.PDVRows(), 1, "redelivery converges to one row")
}

func TestLoadSchemaMismatch(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore("test-bucket")
	wh := warehouse.NewMemory()
	stage := New(store, wh, testLogger())

	tests := []struct {
		name    string
		rt      models.RecordType
		payload string
	}{
		{"pdv missing numero", models.RecordPDV, `{"retorno":{"pedido":{"id":9001}}}`},
		{"pesquisa empty result", models.RecordPesquisa, `{"retorno":{"pedidos":[]}}`},
		{"pesquisa missing data_pedido", models.RecordPesquisa, `{"retorno":{"pedidos":[{"pedido":{"id":"1","numero":"551"}}]}}`},
		{"produto missing codigo", models.RecordProduto, `{"retorno":{"produto":{"id":71}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := putEnriched(t, store, "bad-"+tt.name, tt.rt, tt.payload)
			_, err := stage.Load(ctx, ref)

			var mismatch *pipeline.SchemaMismatchError
			require.ErrorAs(t, err, &mismatch)
		})
	}

	assert.Empty(t, wh.PDVRows())
	assert.Empty(t, wh.PesquisaRows())
	assert.Empty(t, wh.ProdutoRows())
}

func TestLoadMissingRef(t *testing.T) {
	store := storage.NewMemoryStore("test-bucket")
	stage := New(store, warehouse.NewMemory(), testLogger())

	_, err := stage.Load(context.Background(), storage.Ref{Bucket: "test-bucket", Key: "enriched/none.json"})
	assert.ErrorIs(t, err, pipeline.ErrNotFound)
}

func TestParseBRDate(t *testing.T) {
	d := parseBRDate("25/12/2025")
	require.NotNil(t, d)
	assert.Equal(t, time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC), *d)

	assert.Nil(t, parseBRDate(""))
	assert.Nil(t, parseBRDate("2025-12-25"))
}
