package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics groups the ingestion counters. A nil *Metrics is valid and records
// nothing, so components can take one optionally.
type Metrics struct {
	apiRequests        *prometheus.CounterVec
	apiRetries         prometheus.Counter
	throttleWait       prometheus.Histogram
	pageFailures       prometheus.Counter
	validationFailures *prometheus.CounterVec
	itemsSkipped       *prometheus.CounterVec
	rowsLoaded         *prometheus.CounterVec
	loadDuration       *prometheus.HistogramVec
	pipelineRuns       *prometheus.CounterVec
	pipelineDuration   *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "football_api_requests_total",
			Help: "Upstream API requests by outcome",
		}, []string{"outcome"}),
		apiRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "football_api_rate_limit_retries_total",
			Help: "Retries issued after a quota-exceeded response",
		}),
		throttleWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "football_api_throttle_wait_seconds",
			Help:    "Time spent blocked on the client-side call quota",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8), // 10ms to ~3m
		}),
		pageFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "football_api_pagination_stops_total",
			Help: "Paginated fetches cut short by a failing page",
		}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "football_validation_failures_total",
			Help: "Payloads rejected by schema validation",
		}, []string{"schema"}),
		itemsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "football_pipeline_items_skipped_total",
			Help: "Per-entity fetches skipped inside a multi-entity loop",
		}, []string{"pipeline"}),
		rowsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "football_rows_loaded_total",
			Help: "Rows written to destination tables",
		}, []string{"table"}),
		loadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "football_load_duration_seconds",
			Help:    "Time taken to replace a destination table",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"table"}),
		pipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "football_pipeline_runs_total",
			Help: "Pipeline runs by status",
		}, []string{"pipeline", "status"}),
		pipelineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "football_pipeline_duration_seconds",
			Help:    "End-to-end pipeline run time",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"pipeline"}),
	}
	reg.MustRegister(
		m.apiRequests,
		m.apiRetries,
		m.throttleWait,
		m.pageFailures,
		m.validationFailures,
		m.itemsSkipped,
		m.rowsLoaded,
		m.loadDuration,
		m.pipelineRuns,
		m.pipelineDuration,
	)
	return m
}

func (m *Metrics) APIRequest(outcome string) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RateLimitRetry() {
	if m == nil {
		return
	}
	m.apiRetries.Inc()
}

func (m *Metrics) ThrottleWait(d time.Duration) {
	if m == nil {
		return
	}
	m.throttleWait.Observe(d.Seconds())
}

func (m *Metrics) PaginationStopped() {
	if m == nil {
		return
	}
	m.pageFailures.Inc()
}

func (m *Metrics) ValidationFailed(schemaName string) {
	if m == nil {
		return
	}
	m.validationFailures.WithLabelValues(schemaName).Inc()
}

func (m *Metrics) ItemSkipped(pipeline string) {
	if m == nil {
		return
	}
	m.itemsSkipped.WithLabelValues(pipeline).Inc()
}

func (m *Metrics) TableLoaded(table string, rows int, d time.Duration) {
	if m == nil {
		return
	}
	m.rowsLoaded.WithLabelValues(table).Add(float64(rows))
	m.loadDuration.WithLabelValues(table).Observe(d.Seconds())
}

func (m *Metrics) PipelineFinished(pipeline, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.pipelineRuns.WithLabelValues(pipeline, status).Inc()
	m.pipelineDuration.WithLabelValues(pipeline).Observe(d.Seconds())
}

// Serve exposes /metrics and /health on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, health func(context.Context) error, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
