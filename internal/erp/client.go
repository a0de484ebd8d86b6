// Package erp is the client for the ERP's transactional HTTP API. It
// owns retry, rate limiting, and the API's status envelope handling so
// stages above it only see clean results or classified errors.
package erp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/z316data/salespipe/internal/logging"
	"github.com/z316data/salespipe/internal/metrics"
	"github.com/z316data/salespipe/internal/pipeline"
	"github.com/z316data/salespipe/internal/ratelimit"
)

const (
	opPDVOrder    = "pdv.pedido.obter"
	opOrderSearch = "pedidos.pesquisa"
	opProduct     = "produto.obter"

	rateLimitKey = "erp-api"
)

// Config holds client settings.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration

	// MaxAttempts bounds how many times a transient failure is tried
	// before the error is surfaced. Must be >= 1.
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Client calls the ERP API. Safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter ratelimit.RateLimiter
	log     *logging.Logger
}

func NewClient(cfg Config, limiter ratelimit.RateLimiter, log *logging.Logger) *Client {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if limiter == nil {
		limiter = &ratelimit.NoOpRateLimiter{}
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: limiter,
		log:     log,
	}
}

// MaxAttempts returns the configured retry bound, recorded in
// dead-letter envelopes when retries are exhausted.
func (c *Client) MaxAttempts() int { return c.cfg.MaxAttempts }

// PDVOrderResult is the pdv.pedido.obter response plus the fields the
// enrichment stage needs for chained lookups.
type PDVOrderResult struct {
	Raw     json.RawMessage
	Numero  string
	ItemIDs []string
}

// GetPDVOrder fetches a point-of-sale order by its ERP id.
func (c *Client) GetPDVOrder(ctx context.Context, orderID string) (*PDVOrderResult, error) {
	params := url.Values{"id": {orderID}}
	raw, err := c.call(ctx, opPDVOrder, params)
	if err != nil {
		return nil, err
	}

	var body struct {
		Retorno struct {
			Pedido struct {
				Numero json.Number `json:"numero"`
				Itens  []struct {
					IDProduto json.Number `json:"idProduto"`
				} `json:"itens"`
			} `json:"pedido"`
		} `json:"retorno"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, pipeline.Validationf("decode pdv order %s: %v", orderID, err)
	}
	if body.Retorno.Pedido.Numero.String() == "" {
		return nil, pipeline.Validationf("pdv order %s response has no order number", orderID)
	}

	result := &PDVOrderResult{
		Raw:    raw,
		Numero: body.Retorno.Pedido.Numero.String(),
	}
	for _, item := range body.Retorno.Pedido.Itens {
		if id := item.IDProduto.String(); id != "" {
			result.ItemIDs = append(result.ItemIDs, id)
		}
	}
	return result, nil
}

// SearchOrders fetches order search results by order number.
func (c *Client) SearchOrders(ctx context.Context, numero string) (json.RawMessage, error) {
	params := url.Values{"numero": {numero}, "formato": {"JSON"}}
	return c.call(ctx, opOrderSearch, params)
}

// GetProduct fetches a product catalog entry by product id.
func (c *Client) GetProduct(ctx context.Context, productID string) (json.RawMessage, error) {
	params := url.Values{"id": {productID}, "formato": {"JSON"}}
	return c.call(ctx, opProduct, params)
}

// call performs one logical API operation with bounded retry. Only
// transient classifications are retried; fatal errors short-circuit.
func (c *Client) call(ctx context.Context, operation string, params url.Values) (json.RawMessage, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialInterval
	bo.MaxInterval = c.cfg.MaxInterval
	bo.MaxElapsedTime = 0 // bounded by attempt count, not wall clock

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.cfg.MaxAttempts-1)), ctx)

	var result json.RawMessage
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		raw, err := c.callOnce(ctx, operation, params)
		if err != nil {
			if !pipeline.IsTransient(err) {
				return backoff.Permanent(err)
			}
			c.log.WarnContext(ctx, "erp api call failed, will retry",
				"operation", operation, "attempt", attempt, "error", err)
			return err
		}
		result = raw
		return nil
	}, policy)
	if err != nil {
		metrics.APICallsTotal.WithLabelValues(operation, "error").Inc()
		return nil, fmt.Errorf("%s after %d attempt(s): %w", operation, attempt, err)
	}

	metrics.APICallsTotal.WithLabelValues(operation, "ok").Inc()
	return result, nil
}

func (c *Client) callOnce(ctx context.Context, operation string, params url.Values) (json.RawMessage, error) {
	allowed, err := c.limiter.Allow(ctx, rateLimitKey)
	if err != nil {
		return nil, &pipeline.TransientAPIError{Msg: "rate limiter unavailable", Err: err}
	}
	if !allowed {
		metrics.RateLimitWaits.Inc()
		return nil, &pipeline.TransientAPIError{Msg: "local rate limit exceeded"}
	}

	params.Set("token", c.cfg.Token)
	endpoint := c.cfg.BaseURL + operation + ".php?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.APICallDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		// Network errors and client timeouts are transient.
		return nil, &pipeline.TransientAPIError{Msg: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &pipeline.TransientAPIError{Msg: "read response", Err: err}
	}

	switch {
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
		return nil, &pipeline.TransientAPIError{Msg: "server error", StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		return nil, pipeline.Validationf("%s returned status %d", operation, resp.StatusCode)
	}

	if err := validateEnvelope(body); err != nil {
		return nil, err
	}
	return body, nil
}

// validateEnvelope interprets the API's processing-status envelope:
// "3" means success, "2" means the query itself was invalid, and "1"
// carries an error list where code "1" is an invalid token and
// anything else is considered retryable.
func validateEnvelope(body []byte) error {
	var envelope struct {
		Retorno struct {
			StatusProcessamento string `json:"status_processamento"`
			CodigoErro          string `json:"codigo_erro"`
			Erros               []struct {
				Erro string `json:"erro"`
			} `json:"erros"`
		} `json:"retorno"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return pipeline.Validationf("malformed api response: %v", err)
	}

	ret := envelope.Retorno
	switch ret.StatusProcessamento {
	case "3":
		return nil
	case "2":
		return pipeline.Validationf("api rejected query parameters")
	case "1":
		msg := "unknown error"
		if len(ret.Erros) > 0 {
			msg = ret.Erros[0].Erro
		}
		if ret.CodigoErro == "1" {
			return pipeline.Validationf("api token rejected: %s", msg)
		}
		return &pipeline.TransientAPIError{Msg: msg}
	default:
		return pipeline.Validationf("unexpected processing status %q", ret.StatusProcessamento)
	}
}
