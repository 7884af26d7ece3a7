// Package metrics provides Prometheus metrics for the query bridge.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "candy_tools"

var (
	queriesPending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "query",
		Name:      "pending",
		Help:      "Waiters currently registered",
	})

	queriesResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "query",
		Name:      "resolved_total",
		Help:      "Resolved waiters by outcome",
	}, []string{"outcome"})

	queryWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "query",
		Name:      "wait_seconds",
		Help:      "Time from registration to resolution",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"outcome"})

	invalidPatterns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "query",
		Name:      "invalid_patterns_total",
		Help:      "Wait calls rejected because the pattern did not compile",
	})

	linesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "matcher",
		Name:      "lines_total",
		Help:      "Server output lines offered to the matcher",
	})

	epoch = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "lifecycle",
		Name:      "epoch",
		Help:      "Current process epoch",
	})

	regionQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "region",
		Name:      "queries_total",
		Help:      "Region queries by result (found, empty, absent, invalid)",
	}, []string{"result"})
)

// SetPending sets the number of registered waiters.
func SetPending(n int) {
	queriesPending.Set(float64(n))
}

// ObserveResolved records one resolved waiter.
func ObserveResolved(outcome string, waitedSeconds float64) {
	queriesResolved.WithLabelValues(outcome).Inc()
	queryWait.WithLabelValues(outcome).Observe(waitedSeconds)
}

// IncInvalidPattern counts a rejected pattern.
func IncInvalidPattern() {
	invalidPatterns.Inc()
}

// IncLines counts one line offered to the matcher.
func IncLines() {
	linesProcessed.Inc()
}

// SetEpoch records the active epoch.
func SetEpoch(e uint64) {
	epoch.Set(float64(e))
}

// IncRegionQuery counts one region query by result.
func IncRegionQuery(result string) {
	regionQueries.WithLabelValues(result).Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
// This collects all promauto-registered metrics automatically.
func Handler() http.Handler {
	return promhttp.Handler()
}
