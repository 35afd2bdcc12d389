package activation

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	activationsTotal  *prometheus.CounterVec
	liveStateMachines *prometheus.GaugeVec
	zeroOverrides     prometheus.Gauge
	ticksProcessed    prometheus.Counter
)

func newCollectors() (*prometheus.CounterVec, *prometheus.GaugeVec, prometheus.Gauge, prometheus.Counter) {
	act := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "device_activations_total",
			Help: "Number of device activations started",
		},
		[]string{"load_type"},
	)
	live := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "live_state_machines",
			Help: "Number of device activations contributing to the current tick",
		},
		[]string{"load_type"},
	)
	zero := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "zero_override_windows",
			Help: "Number of live zero-override windows for automatic devices",
		},
	)
	ticks := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "activation_ticks_processed_total",
			Help: "Number of ticks processed by the activation processor",
		},
	)
	return act, live, zero, ticks
}

func init() {
	activationsTotal, liveStateMachines, zeroOverrides, ticksProcessed = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers activation metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(activationsTotal, liveStateMachines, zeroOverrides, ticksProcessed)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	activationsTotal, liveStateMachines, zeroOverrides, ticksProcessed = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
