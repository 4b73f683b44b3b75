package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zenoscript_cache_requests_total",
			Help: "Compilation cache lookups by result",
		},
		[]string{"backend", "result"},
	)

	compilations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zenoscript_compilations_total",
			Help: "Backend compilations by status",
		},
		[]string{"backend", "status"},
	)

	evaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zenoscript_evaluations_total",
			Help: "Script evaluations by status",
		},
		[]string{"backend", "status"},
	)

	evaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zenoscript_evaluation_duration_seconds",
			Help:    "Script evaluation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	invocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zenoscript_invocations_total",
			Help: "Invocations of script callables by status",
		},
		[]string{"backend", "status"},
	)
)

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// CacheLookup records one compilation cache lookup.
func CacheLookup(backend string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheRequests.WithLabelValues(backend, result).Inc()
}

func Compilation(backend string, err error) {
	compilations.WithLabelValues(backend, status(err)).Inc()
}

func Evaluation(backend string, started time.Time, err error) {
	evaluations.WithLabelValues(backend, status(err)).Inc()
	evaluationDuration.WithLabelValues(backend).Observe(time.Since(started).Seconds())
}

func Invocation(backend string, err error) {
	invocations.WithLabelValues(backend, status(err)).Inc()
}
