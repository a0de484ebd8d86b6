package cli

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/z316data/salespipe/internal/dlq"
	"github.com/z316data/salespipe/internal/enrich"
	"github.com/z316data/salespipe/internal/load"
	"github.com/z316data/salespipe/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the enrichment and load workers",
	Long: `Binds durable consumers on the raw and enriched notification
streams and processes objects until interrupted. Also exposes the
Prometheus metrics endpoint when enabled.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx)
	if err != nil {
		return fmt.Errorf("open object store: %w", err)
	}
	defer store.Close()

	wh, err := openWarehouse(ctx)
	if err != nil {
		return fmt.Errorf("open warehouse: %w", err)
	}
	defer wh.Close()

	api, limiter, err := newERPClient()
	if err != nil {
		return err
	}
	defer limiter.Close()

	bus, err := connectBus()
	if err != nil {
		return err
	}
	defer bus.Close()

	deadletter := dlq.New(store, bus, log)
	enricher := enrich.New(store, api, bus, log, "live")
	loader := load.New(store, wh, log)

	w := worker.New(bus, enricher, loader, deadletter, log)
	stopWorkers, err := w.Start(ctx)
	if err != nil {
		return fmt.Errorf("start workers: %w", err)
	}
	defer stopWorkers()

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", "error", err)
			}
		}()
		log.Info("metrics endpoint listening", "port", cfg.Metrics.Port)
	}

	log.Info("workers started", "bucket", store.Bucket())
	<-ctx.Done()
	log.Info("shutting down")

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	if err := bus.Drain(); err != nil {
		log.Warn("drain failed", "error", err)
	}
	return nil
}
