package metrics

import (
	"time"

	"github.com/kilianp07/lpgsim/core/model"
)

// RowEvent is one aggregated row of a load type at a tick.
type RowEvent struct {
	RunID        string
	HouseholdKey string
	Tick         model.TimeStep
	Time         time.Time
	LoadType     model.LoadType
	Columns      []string
	Values       []float64
	Sum          float64
}

// MetricsSink records emitted rows for observability purposes.
type MetricsSink interface {
	RecordRows(rows []RowEvent) error
}

// ActivationEvent describes a started device activation.
type ActivationEvent struct {
	Tick        model.TimeStep
	Time        time.Time
	Device      string
	LoadType    string
	Affordance  string
	Activator   string
	TotalEnergy float64
	Steps       int
}

// ActivationRecorder records device activations.
type ActivationRecorder interface {
	RecordActivation(ev ActivationEvent) error
}

// RouteEvent describes the outcome of one trip request.
type RouteEvent struct {
	Tick     model.TimeStep
	Time     time.Time
	PersonID string
	Person   string
	Outcome  string
	Route    string
	Duration int
	Devices  []string
	Attempt  int
}

// RouteRecorder records route resolutions.
type RouteRecorder interface {
	RecordRoute(ev RouteEvent) error
}

// LoadTypeSummary aggregates the summed rows of one load type over a run.
type LoadTypeSummary struct {
	Name  string
	Total float64
	Mean  float64
	Peak  float64
	// Energy is Total converted with the load type factor.
	Energy float64
}

// RunSummary is recorded once when a run ends.
type RunSummary struct {
	RunID          string
	HouseholdKey   string
	Steps          int
	Elapsed        time.Duration
	LoadTypes      []LoadTypeSummary
	Activations    int
	TripsRouted    int
	TripsSameSite  int
	TripsBlocked   int
	TripsAbandoned int
}

// SummaryRecorder records run summaries.
type SummaryRecorder interface {
	RecordSummary(s RunSummary) error
}

// NopSink implements MetricsSink and every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordRows([]RowEvent) error           { return nil }
func (NopSink) RecordActivation(ActivationEvent) error { return nil }
func (NopSink) RecordRoute(RouteEvent) error           { return nil }
func (NopSink) RecordSummary(RunSummary) error         { return nil }
