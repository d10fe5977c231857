package vectorstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationDuration tracks per-operation latency.
	// Labels: operation (upsert, query, get_many, delete_by, heartbeat), collection
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docusearchd",
			Subsystem: "vectorstore",
			Name:      "operation_duration_seconds",
			Help:      "Duration of vector store operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "collection"},
	)

	// OperationsTotal counts vector store operations.
	// Labels: operation, collection, result (success, error)
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docusearchd",
			Subsystem: "vectorstore",
			Name:      "operations_total",
			Help:      "Total number of vector store operations",
		},
		[]string{"operation", "collection", "result"},
	)

	// CircuitBreakerState indicates the breaker's current state (1=open, 0=closed).
	CircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docusearchd",
			Subsystem: "vectorstore",
			Name:      "circuit_breaker_open",
			Help:      "1 if the vector store circuit breaker is open, 0 otherwise",
		},
	)
)

// RecordOperation records the outcome and duration of a vector store call.
func RecordOperation(operation string, collection Collection, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	OperationsTotal.WithLabelValues(operation, string(collection), result).Inc()
	OperationDuration.WithLabelValues(operation, string(collection)).Observe(time.Since(start).Seconds())
}
