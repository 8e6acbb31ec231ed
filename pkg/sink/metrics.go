package sink

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SinkWrites tracks records written by backend
	SinkWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_sink_writes_total",
			Help: "Total number of records written to the result sink",
		},
		[]string{"backend"}, // "memory", "redis"
	)

	// SinkErrors tracks backend operation errors
	SinkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_sink_errors_total",
			Help: "Total number of result sink operation errors",
		},
		[]string{"operation"}, // "put", "get", "list"
	)
)
