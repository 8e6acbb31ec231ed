package fetcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	itemsDiscoveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_items_discovered_total",
		Help: "Total number of items discovered by list operations, by kind",
	}, []string{"kind"})

	itemsParsedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_items_parsed_total",
		Help: "Total number of items parsed successfully, by kind",
	}, []string{"kind"})

	itemsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_items_dropped_total",
		Help: "Total number of items dropped after a failure, by kind and reason",
	}, []string{"kind", "reason"}) // reason: "parse_error", "no_parser", "snapshot", "requeue_limit", "panic"

	listErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_list_errors_total",
		Help: "Total number of failed list operations, by kind",
	}, []string{"kind"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "collector_fetch_duration_seconds",
		Help:    "Duration of complete FetchAll invocations",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})
)
