package transport

import "github.com/prometheus/client_golang/prometheus"

var routeResolutions *prometheus.CounterVec

func newCollectors() *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "route_resolutions_total",
			Help: "Number of route resolutions by outcome",
		},
		[]string{"outcome"},
	)
}

func init() {
	routeResolutions = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers transport metrics on reg, or on the default
// registerer when reg is nil.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(routeResolutions)
}

// ResetMetrics reinitializes the collectors for tests.
func ResetMetrics(reg prometheus.Registerer) {
	routeResolutions = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
