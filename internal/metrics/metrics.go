package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "costamar",
			Name:      "http_requests_total",
			Help:      "Count of API requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "costamar",
			Name:      "availability_cache_lookups_total",
			Help:      "Availability snapshot cache lookups by result.",
		},
		[]string{"result"}, // hit, miss
	)

	failOpenDefaults = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "costamar",
			Name:      "availability_fail_open_total",
			Help:      "Count of dates defaulted to fully available because the backend returned no data.",
		},
	)

	bookingMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "costamar",
			Name:      "booking_mutations_total",
			Help:      "Count of booking mutations by kind and category.",
		},
		[]string{"kind", "category"}, // kind: created, updated, cancelled, expired
	)

	submitConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "costamar",
			Name:      "submit_conflicts_total",
			Help:      "Count of submissions blocked by a stale-availability conflict.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, cacheLookups, failOpenDefaults, bookingMutations, submitConflicts)
	})
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncCacheHit() {
	cacheLookups.WithLabelValues("hit").Inc()
}

func IncCacheMiss() {
	cacheLookups.WithLabelValues("miss").Inc()
}

func IncFailOpen() {
	failOpenDefaults.Inc()
}

func IncBookingMutation(kind, category string) {
	bookingMutations.WithLabelValues(kind, category).Inc()
}

func IncSubmitConflict() {
	submitConflicts.Inc()
}
