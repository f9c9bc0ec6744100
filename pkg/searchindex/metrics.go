package searchindex

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var IndexOperationsCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "kaytu",
	Subsystem: "search_index",
	Name:      "operations_total",
	Help:      "Count of index lifecycle operations by outcome",
}, []string{"operation", "index", "status"})

var IndexOperationsDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "kaytu",
	Subsystem: "search_index",
	Name:      "operations_duration_seconds",
	Help:      "Duration of index lifecycle operations",
	Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
}, []string{"operation", "index", "status"})

const (
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"

	resultSuccess = "successful"
	resultFailure = "failure"
)

func observe(operation string, t IndexType, result string, start time.Time) {
	IndexOperationsCount.WithLabelValues(operation, string(t), result).Inc()
	IndexOperationsDuration.WithLabelValues(operation, string(t), result).Observe(time.Since(start).Seconds())
}
