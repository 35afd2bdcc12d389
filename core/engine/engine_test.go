package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/lpgsim/core/activation"
	coremetrics "github.com/kilianp07/lpgsim/core/metrics"
	"github.com/kilianp07/lpgsim/core/model"
	"github.com/kilianp07/lpgsim/core/scenario"
	"github.com/kilianp07/lpgsim/core/transport"
	"github.com/kilianp07/lpgsim/infra/logger"
	"github.com/kilianp07/lpgsim/internal/eventbus"
)

var (
	electricity = model.LoadType{GUID: "lt-el", Name: "Electricity", UnitOfPower: "W", ConversionFactor: 0.5}
	water       = model.LoadType{GUID: "lt-w", Name: "Water", ConversionFactor: 1}
	tv          = model.Device{Name: "TV", InstanceGUID: "dev-tv", HouseholdKey: "HH1", LocationGUID: "living", LocationName: "Living"}
	fridge      = model.Device{Name: "Fridge", InstanceGUID: "dev-fridge", HouseholdKey: "HH1", Type: model.DeviceTypeAutoDevice, LocationGUID: "kitchen"}
	alice       = model.Person{ID: "p-alice", Name: "Alice", Age: 34}
	bob         = model.Person{ID: "p-bob", Name: "Bob", Age: 36}
)

type recordingSink struct {
	rows        []coremetrics.RowEvent
	activations []coremetrics.ActivationEvent
	routes      []coremetrics.RouteEvent
	summaries   []coremetrics.RunSummary
}

func (s *recordingSink) RecordRows(r []coremetrics.RowEvent) error {
	s.rows = append(s.rows, r...)
	return nil
}
func (s *recordingSink) RecordActivation(ev coremetrics.ActivationEvent) error {
	s.activations = append(s.activations, ev)
	return nil
}
func (s *recordingSink) RecordRoute(ev coremetrics.RouteEvent) error {
	s.routes = append(s.routes, ev)
	return nil
}
func (s *recordingSink) RecordSummary(sum coremetrics.RunSummary) error {
	s.summaries = append(s.summaries, sum)
	return nil
}

func household(t *testing.T) *scenario.Household {
	t.Helper()
	topo := transport.NewTopology()
	require.NoError(t, topo.AddSite(transport.Site{GUID: "home", Name: "Home", Locations: []string{"living", "kitchen"}, DeviceChangeAllowed: true}))
	require.NoError(t, topo.AddSite(transport.Site{GUID: "work", Name: "Work", Locations: []string{"office"}}))
	require.NoError(t, topo.AddCategory(transport.Category{GUID: "car", Name: "Car", IsLimitedToSingleLocation: true}))
	require.NoError(t, topo.AddDevice(transport.Device{GUID: "car1", Name: "Car", CategoryGUID: "car", Speed: 20, CurrentSite: "home"}))
	require.NoError(t, topo.AddRoute(transport.Route{GUID: "drive", Name: "drive", FromSite: "home", ToSite: "work", Weight: 1,
		Steps: []transport.Step{{Name: "drive", CategoryGUID: "car", Distance: 12000}}}))
	return &scenario.Household{
		Key:       "HH1",
		Name:      "Test household",
		LoadTypes: []model.LoadType{electricity},
		Devices: []scenario.DeviceEntry{
			{Device: tv, LoadTypes: []model.LoadType{electricity}},
			{Device: fridge, LoadTypes: []model.LoadType{electricity}},
		},
		Activations: []scenario.Activation{
			{Start: 0, LoadType: electricity, Device: fridge, Profile: model.Profile{Name: "cooling", Values: []float64{1, 1, 1, 1}}, Affordance: "cool", Activator: "auto"},
			{Start: 1, LoadType: electricity, Device: tv, Profile: model.Profile{Name: "watch", Values: []float64{2, 2}}, Affordance: "watch tv", Activator: "Alice"},
		},
		Overrides: []scenario.Override{{Device: fridge, LoadType: electricity, Start: 2, Duration: 1}},
		Persons:   []model.Person{alice, bob},
		Topology:  topo,
		Trips: []scenario.Trip{
			{Person: alice, SourceLocation: "living", DestSite: "work", Tick: 0, Affordance: "work"},
			{Person: bob, SourceLocation: "living", DestSite: "work", Tick: 0, Affordance: "work"},
			{Person: bob, SourceLocation: "kitchen", DestSite: "home", Tick: 4, Affordance: "cook"},
		},
	}
}

func newEngine(t *testing.T, hh *scenario.Household, sink coremetrics.MetricsSink, bus *eventbus.Bus[TickEvent], retries int) *Engine {
	t.Helper()
	reg := prometheus.NewRegistry()
	activation.ResetMetrics(reg)
	transport.ResetMetrics(reg)
	ResetMetrics(reg)
	proc, err := activation.NewProcessor(activation.Options{}, nil, nil, logger.NopLogger{})
	require.NoError(t, err)
	h := transport.NewHandler(hh.Topology, transport.NewOwnershipLedger(), time.Minute, logger.NopLogger{})
	clock := model.NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Minute)
	e, err := New(hh, proc, h, sink, bus, logger.NopLogger{}, Options{RunID: "run-1", Clock: clock, Seed: 7, TripRetryLimit: retries})
	require.NoError(t, err)
	return e
}

func TestRunAggregatesRowsAndSummary(t *testing.T) {
	sink := &recordingSink{}
	bus := eventbus.New[TickEvent](16)
	ticks := bus.Subscribe()
	e := newEngine(t, household(t), sink, bus, 2)

	summary, err := e.Run(context.Background(), 5)
	require.NoError(t, err)
	require.NoError(t, e.Close())

	require.Len(t, sink.rows, 5)
	sums := make([]float64, len(sink.rows))
	for i, r := range sink.rows {
		sums[i] = r.Sum
		assert.Equal(t, []string{"TV", "Fridge"}, r.Columns)
		assert.Equal(t, "HH1", r.HouseholdKey)
		assert.Equal(t, "run-1", r.RunID)
	}
	assert.Equal(t, []float64{1, 3, 2, 1, 0}, sums)
	assert.Equal(t, []float64{2, 0}, sink.rows[2].Values)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 3, 0, 0, time.UTC), sink.rows[3].Time)

	require.Len(t, summary.LoadTypes, 1)
	lt := summary.LoadTypes[0]
	assert.InDelta(t, 7, lt.Total, 1e-9)
	assert.InDelta(t, 1.4, lt.Mean, 1e-9)
	assert.InDelta(t, 3, lt.Peak, 1e-9)
	assert.InDelta(t, 3.5, lt.Energy, 1e-9)
	assert.Equal(t, 5, summary.Steps)
	assert.Equal(t, 2, summary.Activations)
	require.Len(t, sink.summaries, 1)
	assert.Equal(t, summary.TripsRouted, sink.summaries[0].TripsRouted)

	require.Len(t, sink.activations, 2)
	assert.InDelta(t, 2, sink.activations[0].TotalEnergy, 1e-9)
	assert.Equal(t, "watch tv", sink.activations[1].Affordance)

	var events []TickEvent
	for ev := range ticks {
		events = append(events, ev)
	}
	require.Len(t, events, 5)
	assert.Equal(t, model.TimeStep(4), events[4].Tick)
}

func TestBlockedTripsAreRetriedThenAbandoned(t *testing.T) {
	sink := &recordingSink{}
	e := newEngine(t, household(t), sink, nil, 2)

	summary, err := e.Run(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TripsRouted)
	assert.Equal(t, 3, summary.TripsBlocked)
	assert.Equal(t, 1, summary.TripsAbandoned)
	assert.Equal(t, 1, summary.TripsSameSite)
	assert.Empty(t, e.PendingTrips())

	require.Len(t, sink.routes, 5)
	assert.Equal(t, "routed", sink.routes[0].Outcome)
	assert.Equal(t, 10, sink.routes[0].Duration)
	assert.Equal(t, []string{"car1"}, sink.routes[0].Devices)
	assert.Equal(t, "blocked", sink.routes[1].Outcome)
	assert.Equal(t, "blocked", sink.routes[2].Outcome)
	assert.Equal(t, 2, sink.routes[2].Attempt)
	assert.Equal(t, "abandoned", sink.routes[3].Outcome)
	assert.Equal(t, 3, sink.routes[3].Attempt)
	assert.Equal(t, "same_site", sink.routes[4].Outcome)

	assert.Equal(t, 1.0, testutil.ToFloat64(tripsAbandoned))
	assert.Equal(t, 2.0, testutil.ToFloat64(tripRetries))
}

func TestPendingTripsWhenRunEnds(t *testing.T) {
	e := newEngine(t, household(t), nil, nil, 10)
	_, err := e.Run(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob"}, e.PendingTrips())
}

func TestRunStopsOnCancel(t *testing.T) {
	e := newEngine(t, household(t), nil, nil, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := e.Run(ctx, 5)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.Steps)
}

func TestActivationForUnregisteredLoadTypeFails(t *testing.T) {
	hh := household(t)
	hh.Activations = append(hh.Activations, scenario.Activation{Start: 1, LoadType: water, Device: tv, Profile: model.Profile{Values: []float64{1}}})
	e := newEngine(t, hh, nil, nil, 2)
	_, err := e.Run(context.Background(), 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrConfigIntegrity), "got %v", err)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(nil, nil, nil, nil, nil, logger.NopLogger{}, Options{})
	require.Error(t, err)
}
