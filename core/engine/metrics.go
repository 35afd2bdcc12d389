package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	tickDuration   prometheus.Histogram
	tripRetries    prometheus.Counter
	tripsAbandoned prometheus.Counter
)

func newCollectors() (prometheus.Histogram, prometheus.Counter, prometheus.Counter) {
	dur := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engine_tick_duration_seconds",
			Help:    "Wall time spent processing one simulated tick",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_trip_retries_total",
			Help: "Number of blocked trips queued for another attempt",
		},
	)
	abandoned := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_trips_abandoned_total",
			Help: "Number of trips dropped after exhausting their retries",
		},
	)
	return dur, retries, abandoned
}

func init() {
	tickDuration, tripRetries, tripsAbandoned = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers engine metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(tickDuration, tripRetries, tripsAbandoned)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	tickDuration, tripRetries, tripsAbandoned = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
