// Package metrics defines the Prometheus collectors for the store and its
// fetch collaborators.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultNotFound = "not_found"
	ResultCached   = "cached"
	ResultPending  = "pending"
)

var (
	// Dispatches counts store dispatches by action type and result.
	Dispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotify_stats_store_dispatches_total",
			Help: "Total number of actions dispatched into the store",
		},
		[]string{"action", "result"},
	)

	// Fetches counts coordinated fetches by resource and result.
	Fetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotify_stats_fetches_total",
			Help: "Total number of fetch decisions made by the coordinator",
		},
		[]string{"resource", "result"},
	)

	// FetchDuration observes collaborator latency.
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spotify_stats_fetch_duration_seconds",
			Help:    "Duration of fetch collaborator calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource"},
	)

	// SharedFlights counts callers that joined an in-flight fetch.
	SharedFlights = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotify_stats_shared_flights_total",
			Help: "Total number of callers served by an already in-flight fetch",
		},
		[]string{"resource"},
	)
)

// RecordDispatch increments the dispatch counter.
func RecordDispatch(action string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	Dispatches.WithLabelValues(action, result).Inc()
}

// RecordFetch records a collaborator call that started at start.
func RecordFetch(resource, result string, start time.Time) {
	Fetches.WithLabelValues(resource, result).Inc()
	if !start.IsZero() {
		FetchDuration.WithLabelValues(resource).Observe(time.Since(start).Seconds())
	}
}
