package cli

import (
	"context"
	"fmt"

	"github.com/z316data/salespipe/internal/erp"
	"github.com/z316data/salespipe/internal/events"
	"github.com/z316data/salespipe/internal/ratelimit"
	"github.com/z316data/salespipe/internal/storage"
	"github.com/z316data/salespipe/internal/warehouse"
)

func openStore(ctx context.Context) (storage.ObjectStore, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return storage.NewMemoryStore(cfg.Storage.Bucket), nil
	case "gcs", "":
		return storage.NewGCSStore(ctx, cfg.Storage.Bucket)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func connectBus() (*events.Bus, error) {
	return events.Connect(events.Config{
		URL:           cfg.NATS.URL,
		Name:          cfg.NATS.Name,
		MaxReconnects: cfg.NATS.MaxReconnects,
		ReconnectWait: cfg.NATS.ReconnectWait,
		Timeout:       cfg.NATS.Timeout,
	})
}

func newERPClient() (*erp.Client, ratelimit.RateLimiter, error) {
	limiter, err := ratelimit.NewRedisRateLimiter(
		cfg.Redis.URL, cfg.ERP.RateLimitCalls, cfg.ERP.RateLimitWindow,
		!cfg.ERP.RateLimitEnabled)
	if err != nil {
		return nil, nil, fmt.Errorf("create rate limiter: %w", err)
	}

	client := erp.NewClient(erp.Config{
		BaseURL:         cfg.ERP.BaseURL,
		Token:           cfg.ERP.Token,
		Timeout:         cfg.ERP.Timeout,
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
	}, limiter, log)

	return client, limiter, nil
}

func openWarehouse(ctx context.Context) (warehouse.Warehouse, error) {
	return warehouse.NewPostgres(ctx, cfg.Warehouse.DSN)
}
