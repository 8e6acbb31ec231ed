// Package metrics serves the collector's Prometheus metrics.
// All metrics are defined in their respective packages (workqueue, fetcher,
// throttle, client, sink, logging) via promauto and end up in the default
// registry.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry is the Prometheus registry the collector's metrics live in.
var Registry = prometheus.DefaultRegisterer

// Path is where Serve exposes the metrics.
const Path = "/metrics"

// Handler returns the HTTP handler exposing the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes the metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle(Path, Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Str("path", Path).Msg("Serving metrics")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Metrics Documentation
//
// Queue Metrics (pkg/workqueue):
//   - collector_queue_depth{queue} (Gauge): Entries waiting in the queue, sentinels included
//   - collector_queue_pending{queue} (Gauge): Items put but not yet marked done
//
// Pipeline Metrics (pkg/fetcher):
//   - collector_items_discovered_total{kind} (Counter): Items returned by list operations
//   - collector_items_parsed_total{kind} (Counter): Items parsed successfully
//   - collector_items_dropped_total{kind, reason} (Counter): Items given up on
//   - collector_list_errors_total{kind} (Counter): Failed list operations
//   - collector_fetch_duration_seconds (Histogram): Duration of one fetch invocation
//
// Throttle Metrics (pkg/throttle):
//   - collector_throttle_requeues_total{kind} (Counter): Items requeued after a throttling error
//   - collector_throttle_limit_drops_total{kind} (Counter): Items dropped at the requeue limit
//
// Report Metrics (pkg/logging):
//   - collector_reports_total{level} (Counter): Reports by level (exception, info, error)
//
// API Metrics (pkg/client):
//   - collector_api_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - collector_api_request_duration_seconds{endpoint} (Histogram): Request duration
//   - collector_api_errors_total{class} (Counter): Errors by class (client, server, throttled, network)
//   - collector_api_retries_total{error_class} (Counter): Retry attempts
//   - collector_api_retry_backoff_seconds{error_class} (Histogram): Backoff duration
//   - collector_api_retry_exhausted_total{error_class} (Counter): Requests that exhausted retries
//
// Sink Metrics (pkg/sink):
//   - collector_sink_writes_total{backend} (Counter): Records written
//   - collector_sink_errors_total{operation} (Counter): Backend errors
//
// Example Prometheus Queries:
//
//   # Throttle pressure per kind
//   sum by (kind) (rate(collector_throttle_requeues_total[5m]))
//
//   # Items lost per run
//   sum by (reason) (increase(collector_items_dropped_total[1h]))
//
//   # Parse backlog
//   collector_queue_pending{queue="target"}
//
//   # P95 fetch duration
//   histogram_quantile(0.95, rate(collector_fetch_duration_seconds_bucket[1h]))
