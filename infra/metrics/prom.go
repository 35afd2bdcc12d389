package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/lpgsim/core/metrics"
)

// PromSink exposes emitted rows and trip outcomes as Prometheus metrics.
type PromSink struct {
	power       *prometheus.GaugeVec
	energy      *prometheus.CounterVec
	rows        *prometheus.CounterVec
	activations *prometheus.HistogramVec
	trips       *prometheus.CounterVec
	tripTicks   prometheus.Histogram
}

// NewPromSink registers simulation metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	s, err := NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		power: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "load_type_power",
			Help: "Summed power of the last emitted row",
		}, []string{"household", "load_type"}),
		energy: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "load_type_energy_total",
			Help: "Energy accumulated over emitted rows, converted with the load type factor",
		}, []string{"household", "load_type"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rows_emitted_total",
			Help: "Number of rows emitted per load type",
		}, []string{"load_type"}),
		activations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "activation_energy",
			Help:    "Total energy of started device activations",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"load_type"}),
		trips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trip_requests_total",
			Help: "Trip requests by outcome",
		}, []string{"outcome"}),
		tripTicks: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trip_duration_ticks",
			Help:    "Travel duration of routed trips in ticks",
			Buckets: prometheus.LinearBuckets(0, 5, 12),
		}),
	}
	var err error
	if s.power, err = register(reg, s.power); err != nil {
		return nil, err
	}
	if s.energy, err = register(reg, s.energy); err != nil {
		return nil, err
	}
	if s.rows, err = register(reg, s.rows); err != nil {
		return nil, err
	}
	if s.activations, err = register(reg, s.activations); err != nil {
		return nil, err
	}
	if s.trips, err = register(reg, s.trips); err != nil {
		return nil, err
	}
	if s.tripTicks, err = register(reg, s.tripTicks); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the already registered collector when one exists.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordRows updates the power gauge and the energy counter of each row.
func (s *PromSink) RecordRows(rows []coremetrics.RowEvent) error {
	for _, r := range rows {
		lt := r.LoadType.Name
		s.power.WithLabelValues(r.HouseholdKey, lt).Set(r.Sum)
		s.energy.WithLabelValues(r.HouseholdKey, lt).Add(r.Sum * r.LoadType.ConversionFactor)
		s.rows.WithLabelValues(lt).Inc()
	}
	return nil
}

// RecordActivation observes the activation energy.
func (s *PromSink) RecordActivation(ev coremetrics.ActivationEvent) error {
	s.activations.WithLabelValues(ev.LoadType).Observe(ev.TotalEnergy)
	return nil
}

// RecordRoute counts the trip outcome and observes routed durations.
func (s *PromSink) RecordRoute(ev coremetrics.RouteEvent) error {
	s.trips.WithLabelValues(ev.Outcome).Inc()
	if ev.Outcome == "routed" {
		s.tripTicks.Observe(float64(ev.Duration))
	}
	return nil
}
