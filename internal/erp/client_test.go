package erp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/z316data/salespipe/internal/logging"
	"github.com/z316data/salespipe/internal/pipeline"
)

func testLogger() *logging.Logger {
	return logging.New(slog.LevelError, "text")
}

func newTestClient(baseURL string, maxAttempts int) *Client {
	return NewClient(Config{
		BaseURL:         baseURL + "/",
		Token:           "test-token",
		Timeout:         2 * time.Second,
		MaxAttempts:     maxAttempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}, nil, testLogger())
}

const pdvOrderOK = `{"retorno":{"status_processamento":"3","pedido":{"id":9001,"numero":551,"itens":[{"idProduto":71},{"idProduto":72}]}}}`

func TestGetPDVOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pdv.pedido.obter.php", r.URL.Path)
		assert.Equal(t, "9001", r.URL.Query().Get("id"))
		assert.Equal(t, "test-token", r.URL.Query().Get("token"))
		fmt.Fprint(w, pdvOrderOK)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 1)
	result, err := client.GetPDVOrder(context.Background(), "9001")
	require.NoError(t, err)
	assert.Equal(t, "551", result.Numero)
	assert.Equal(t, []string{"71", "72"}, result.ItemIDs)
	assert.JSONEq(t, pdvOrderOK, string(result.Raw))
}

func TestRetryBoundedThenTransientSurfaced(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 3)
	_, err := client.GetProduct(context.Background(), "71")

	require.Error(t, err)
	assert.True(t, pipeline.IsTransient(err), "got %v", err)
	assert.Equal(t, int32(3), calls.Load(), "exactly the configured attempt bound")
}

func TestTransientRecoversWithinBound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"retorno":{"status_processamento":"3","produto":{"id":71,"codigo":"SKU-71"}}}`)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 4)
	raw, err := client.GetProduct(context.Background(), "71")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "SKU-71")
	assert.Equal(t, int32(3), calls.Load())
}

func TestFatalErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"retorno":{"status_processamento":"2"}}`)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, 4)
	_, err := client.SearchOrders(context.Background(), "551")

	require.Error(t, err)
	assert.True(t, pipeline.IsFatal(err), "got %v", err)
	assert.Equal(t, int32(1), calls.Load(), "fatal responses short-circuit the retry loop")
}

func TestEnvelopeClassification(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		transient bool
		fatal     bool
	}{
		{"success", `{"retorno":{"status_processamento":"3"}}`, false, false},
		{"invalid query", `{"retorno":{"status_processamento":"2"}}`, false, true},
		{"bad token", `{"retorno":{"status_processamento":"1","codigo_erro":"1","erros":[{"erro":"token invalido"}]}}`, false, true},
		{"api busy", `{"retorno":{"status_processamento":"1","codigo_erro":"10","erros":[{"erro":"bloqueado"}]}}`, true, false},
		{"unknown status", `{"retorno":{"status_processamento":"9"}}`, false, true},
		{"not json", `<html>`, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateEnvelope([]byte(tt.body))
			if !tt.transient && !tt.fatal {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.transient, pipeline.IsTransient(err))
			assert.Equal(t, tt.fatal, pipeline.IsFatal(err))
		})
	}
}

// denyLimiter rejects every call, simulating an exhausted shared budget.
type denyLimiter struct{}

func (denyLimiter) Allow(ctx context.Context, key string) (bool, error) { return false, nil }
func (denyLimiter) Close() error                                        { return nil }

func TestRateLimitDenialIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("denied calls must never reach the API")
	}))
	defer srv.Close()

	client := NewClient(Config{
		BaseURL:         srv.URL + "/",
		Token:           "test-token",
		MaxAttempts:     2,
		InitialInterval: time.Millisecond,
	}, denyLimiter{}, testLogger())

	_, err := client.GetProduct(context.Background(), "71")
	require.Error(t, err)
	assert.True(t, pipeline.IsTransient(err), "got %v", err)
}
