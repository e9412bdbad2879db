package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "evalboard_query_duration_seconds",
			Help:    "Warehouse query duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"operation"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evalboard_query_total",
			Help: "Total number of query operations by outcome",
		},
		[]string{"operation", "status"},
	)

	CacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evalboard_cache_requests_total",
			Help: "Response cache lookups by result",
		},
		[]string{"operation", "result"},
	)

	CodeFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evalboard_code_fetch_total",
			Help: "Source proxy requests by upstream status class",
		},
		[]string{"status"},
	)
)

var initOnce sync.Once

// Init registers all collectors with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(QueryDuration)
		prometheus.MustRegister(QueryTotal)
		prometheus.MustRegister(CacheRequests)
		prometheus.MustRegister(CodeFetchTotal)
	})
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
