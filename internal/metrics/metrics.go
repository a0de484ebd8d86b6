package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingest stage metrics
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salespipe_ingest_events_total",
			Help: "Total number of inbound events by outcome",
		},
		[]string{"event_type", "outcome"},
	)

	// Enrichment stage metrics
	EnrichTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salespipe_enrich_records_total",
			Help: "Total number of enriched records written by record type",
		},
		[]string{"record_type"},
	)

	EnrichFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salespipe_enrich_failures_total",
			Help: "Total number of failed enrichment invocations by error class",
		},
		[]string{"class"},
	)

	// ERP API metrics
	APICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salespipe_erp_api_calls_total",
			Help: "Total number of ERP API calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	APICallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "salespipe_erp_api_call_duration_seconds",
			Help:    "Duration of ERP API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RateLimitWaits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "salespipe_erp_rate_limit_waits_total",
			Help: "Total number of ERP API calls delayed by the rate limiter",
		},
	)

	// Load stage metrics
	LoadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salespipe_load_rows_total",
			Help: "Total number of rows upserted by destination table",
		},
		[]string{"table"},
	)

	LoadFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salespipe_load_failures_total",
			Help: "Total number of failed load invocations by error class",
		},
		[]string{"class"},
	)

	// Dead-letter metrics
	DeadLettersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salespipe_dead_letters_total",
			Help: "Total number of objects written to the dead-letter area",
		},
		[]string{"stage"},
	)
)
