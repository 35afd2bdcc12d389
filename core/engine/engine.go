// Package engine drives a household through simulated time. Every tick it
// starts the scheduled activations, applies the automatic-device override
// windows, resolves due trips and aggregates one row per load type.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/lpgsim/core/activation"
	"github.com/kilianp07/lpgsim/core/logger"
	coremetrics "github.com/kilianp07/lpgsim/core/metrics"
	"github.com/kilianp07/lpgsim/core/model"
	coremon "github.com/kilianp07/lpgsim/core/monitoring"
	"github.com/kilianp07/lpgsim/core/scenario"
	"github.com/kilianp07/lpgsim/core/transport"
	"github.com/kilianp07/lpgsim/internal/eventbus"
)

// DefaultTripRetryLimit bounds how many ticks a blocked trip is retried.
const DefaultTripRetryLimit = 10

// Options configure an Engine.
type Options struct {
	RunID          string
	Clock          model.Clock
	Seed           int64
	TripRetryLimit int
}

// TickEvent is published on the bus after every processed tick.
type TickEvent struct {
	RunID string
	Tick  model.TimeStep
	Time  time.Time
	Rows  []coremetrics.RowEvent
	Trips []coremetrics.RouteEvent
}

type pendingTrip struct {
	trip    scenario.Trip
	attempt int
}

type keyRef struct {
	device   string
	loadType string
}

// Engine runs a built household. It is not safe for concurrent use.
type Engine struct {
	hh      *scenario.Household
	proc    *activation.Processor
	handler *transport.Handler
	sink    coremetrics.MetricsSink
	bus     *eventbus.Bus[TickEvent]
	log     logger.Logger
	opts    Options
	rnd     *rand.Rand

	keys        map[keyRef]model.ColumnKey
	activations map[model.TimeStep][]scenario.Activation
	overrides   map[model.TimeStep][]scenario.Override
	trips       map[model.TimeStep][]scenario.Trip
	pending     []pendingTrip
	columnNames map[string][]string

	sums  map[string][]float64
	stats runStats
}

type runStats struct {
	steps       int
	activations int
	routed      int
	sameSite    int
	blocked     int
	abandoned   int
}

// New registers every device of hh with the processor and indexes the
// schedules by tick. A nil sink records nothing; a nil bus publishes nothing.
func New(hh *scenario.Household, proc *activation.Processor, handler *transport.Handler,
	sink coremetrics.MetricsSink, bus *eventbus.Bus[TickEvent], log logger.Logger, opts Options) (*Engine, error) {
	if hh == nil || proc == nil || handler == nil {
		return nil, fmt.Errorf("engine: household, processor and handler are required")
	}
	if sink == nil {
		sink = coremetrics.NopSink{}
	}
	if opts.TripRetryLimit < 0 {
		opts.TripRetryLimit = 0
	}
	e := &Engine{
		hh:          hh,
		proc:        proc,
		handler:     handler,
		sink:        sink,
		bus:         bus,
		log:         log,
		opts:        opts,
		rnd:         rand.New(rand.NewSource(opts.Seed)),
		keys:        make(map[keyRef]model.ColumnKey),
		activations: make(map[model.TimeStep][]scenario.Activation),
		overrides:   make(map[model.TimeStep][]scenario.Override),
		trips:       make(map[model.TimeStep][]scenario.Trip),
		columnNames: make(map[string][]string),
		sums:        make(map[string][]float64),
	}
	proc.SetRunID(opts.RunID)
	for _, d := range hh.Devices {
		for _, lt := range d.LoadTypes {
			key, err := proc.RegisterDevice(lt, d.Device)
			if err != nil {
				return nil, fmt.Errorf("register %s for %s: %w", d.Device.Name, lt.Name, err)
			}
			e.keys[keyRef{d.Device.InstanceGUID, lt.GUID}] = key
		}
	}
	for _, a := range hh.Activations {
		e.activations[a.Start] = append(e.activations[a.Start], a)
	}
	for _, o := range hh.Overrides {
		e.overrides[o.Start] = append(e.overrides[o.Start], o)
	}
	for _, tr := range hh.Trips {
		e.trips[tr.Tick] = append(e.trips[tr.Tick], tr)
	}
	return e, nil
}

// Processor exposes the underlying activation processor.
func (e *Engine) Processor() *activation.Processor { return e.proc }

// Run processes ticks 0..steps-1 and records the run summary. The context is
// checked between ticks.
func (e *Engine) Run(ctx context.Context, steps int) (coremetrics.RunSummary, error) {
	began := time.Now()
	e.log.Infof("running household %s for %d steps", e.hh.Name, steps)
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			e.log.Warnf("run cancelled at tick %d", i)
			return e.Summary(time.Since(began)), err
		}
		if err := e.Step(ctx, model.TimeStep(i)); err != nil {
			coremon.CaptureFatal("engine", err, map[string]string{"run_id": e.opts.RunID})
			return e.Summary(time.Since(began)), err
		}
	}
	for _, p := range e.pending {
		e.log.Warnf("trip of %s to %s still pending at end of run", p.trip.Person.Name, p.trip.DestSite)
	}
	summary := e.Summary(time.Since(began))
	if rec, ok := e.sink.(coremetrics.SummaryRecorder); ok {
		if err := rec.RecordSummary(summary); err != nil {
			e.log.Errorf("record summary: %v", err)
		}
	}
	if err := e.proc.FlushProfileReport(ctx); err != nil {
		return summary, fmt.Errorf("flush profile report: %w", err)
	}
	e.log.Infof("run %s done: %d steps, %d activations, %d trips routed, %d blocked, %d abandoned",
		e.opts.RunID, summary.Steps, summary.Activations, summary.TripsRouted, summary.TripsBlocked, summary.TripsAbandoned)
	return summary, nil
}

// Step processes a single tick.
func (e *Engine) Step(ctx context.Context, t model.TimeStep) error {
	timer := time.Now()
	defer func() { tickDuration.Observe(time.Since(timer).Seconds()) }()

	if err := e.startActivations(t); err != nil {
		return err
	}
	if err := e.applyOverrides(t); err != nil {
		return err
	}
	routes, err := e.resolveTrips(t)
	if err != nil {
		return err
	}
	rows, err := e.proc.ProcessOneTick(t)
	if err != nil {
		return err
	}
	events := e.rowEvents(t, rows)
	if len(events) > 0 {
		if err := e.sink.RecordRows(events); err != nil {
			e.log.Errorf("record rows at %s: %v", t, err)
		}
	}
	e.stats.steps++
	if e.bus != nil {
		e.bus.Publish(TickEvent{RunID: e.opts.RunID, Tick: t, Time: e.opts.Clock.Time(t), Rows: events, Trips: routes})
	}
	return ctx.Err()
}

func (e *Engine) key(dev model.Device, lt model.LoadType) model.ColumnKey {
	if k, ok := e.keys[keyRef{dev.InstanceGUID, lt.GUID}]; ok {
		return k
	}
	return model.NewColumnKey(dev, lt.GUID)
}

func (e *Engine) startActivations(t model.TimeStep) error {
	rec, _ := e.sink.(coremetrics.ActivationRecorder)
	for _, a := range e.activations[t] {
		key := e.key(a.Device, a.LoadType)
		if err := e.proc.AddNewStateMachine(t, a.LoadType, a.Affordance, a.Activator, key, a.Device, a.Profile); err != nil {
			return fmt.Errorf("activate %s at %s: %w", a.Device.Name, t, err)
		}
		e.stats.activations++
		if rec == nil {
			continue
		}
		ev := coremetrics.ActivationEvent{
			Tick:        t,
			Time:        e.opts.Clock.Time(t),
			Device:      a.Device.Name,
			LoadType:    a.LoadType.Name,
			Affordance:  a.Affordance,
			Activator:   a.Activator,
			TotalEnergy: floats.Sum(a.Profile.Values) * a.LoadType.ConversionFactor,
			Steps:       a.Profile.Len(),
		}
		if err := rec.RecordActivation(ev); err != nil {
			e.log.Errorf("record activation: %v", err)
		}
	}
	delete(e.activations, t)
	return nil
}

func (e *Engine) applyOverrides(t model.TimeStep) error {
	for _, o := range e.overrides[t] {
		if err := e.proc.AddZeroEntryForAutoDev(e.key(o.Device, o.LoadType), o.Start, o.Duration); err != nil {
			return fmt.Errorf("override %s at %s: %w", o.Device.Name, t, err)
		}
	}
	delete(e.overrides, t)
	return nil
}

func (e *Engine) resolveTrips(t model.TimeStep) ([]coremetrics.RouteEvent, error) {
	due := e.pending
	e.pending = nil
	for _, tr := range e.trips[t] {
		due = append(due, pendingTrip{trip: tr})
	}
	delete(e.trips, t)
	if len(due) == 0 {
		return nil, nil
	}
	rec, _ := e.sink.(coremetrics.RouteRecorder)
	events := make([]coremetrics.RouteEvent, 0, len(due))
	for _, p := range due {
		p.attempt++
		res, err := e.handler.ResolveRoute(transport.Request{
			SourceLocation: p.trip.SourceLocation,
			DestSite:       p.trip.DestSite,
			Tick:           t,
			Person:         p.trip.Person,
			Affordance:     p.trip.Affordance,
			Rand:           e.rnd,
		})
		if err != nil {
			return events, fmt.Errorf("trip of %s at %s: %w", p.trip.Person.Name, t, err)
		}
		ev := coremetrics.RouteEvent{
			Tick:     t,
			Time:     e.opts.Clock.Time(t),
			PersonID: p.trip.Person.ID,
			Person:   p.trip.Person.Name,
			Outcome:  res.Outcome.String(),
			Duration: res.Duration,
			Devices:  res.Devices,
			Attempt:  p.attempt,
		}
		if res.Route != nil {
			ev.Route = res.Route.Name
		}
		switch res.Outcome {
		case transport.OutcomeRouted:
			e.stats.routed++
		case transport.OutcomeSameSite:
			e.stats.sameSite++
		case transport.OutcomeBlocked:
			e.stats.blocked++
			if p.attempt > e.opts.TripRetryLimit {
				e.stats.abandoned++
				tripsAbandoned.Inc()
				ev.Outcome = "abandoned"
				e.log.Warnf("abandoning trip of %s to %s after %d attempts", p.trip.Person.Name, p.trip.DestSite, p.attempt)
			} else {
				tripRetries.Inc()
				e.pending = append(e.pending, p)
			}
		}
		events = append(events, ev)
		if rec != nil {
			if err := rec.RecordRoute(ev); err != nil {
				e.log.Errorf("record route: %v", err)
			}
		}
	}
	return events, nil
}

func (e *Engine) rowEvents(t model.TimeStep, rows []activation.Row) []coremetrics.RowEvent {
	events := make([]coremetrics.RowEvent, 0, len(rows))
	for _, r := range rows {
		names, ok := e.columnNames[r.LoadType.GUID]
		if !ok {
			entries := e.proc.Columns().Entries(r.LoadType.GUID)
			names = make([]string, len(entries))
			for i, en := range entries {
				names[i] = en.Name
			}
			e.columnNames[r.LoadType.GUID] = names
		}
		sum := r.Sum()
		e.sums[r.LoadType.GUID] = append(e.sums[r.LoadType.GUID], sum)
		events = append(events, coremetrics.RowEvent{
			RunID:        e.opts.RunID,
			HouseholdKey: e.hh.Key,
			Tick:         t,
			Time:         e.opts.Clock.Time(t),
			LoadType:     r.LoadType,
			Columns:      names,
			Values:       r.Values,
			Sum:          sum,
		})
	}
	return events
}

// Summary aggregates the rows processed so far.
func (e *Engine) Summary(elapsed time.Duration) coremetrics.RunSummary {
	s := coremetrics.RunSummary{
		RunID:          e.opts.RunID,
		HouseholdKey:   e.hh.Key,
		Steps:          e.stats.steps,
		Elapsed:        elapsed,
		Activations:    e.stats.activations,
		TripsRouted:    e.stats.routed,
		TripsSameSite:  e.stats.sameSite,
		TripsBlocked:   e.stats.blocked,
		TripsAbandoned: e.stats.abandoned,
	}
	for _, lt := range e.proc.LoadTypes() {
		s.LoadTypes = append(s.LoadTypes, summarize(lt, e.sums[lt.GUID]))
	}
	return s
}

// PendingTrips returns the names of persons whose trips are waiting for a retry.
func (e *Engine) PendingTrips() []string {
	names := make([]string, len(e.pending))
	for i, p := range e.pending {
		names[i] = p.trip.Person.Name
	}
	sort.Strings(names)
	return names
}

// Close closes the processor streams and the bus.
func (e *Engine) Close() error {
	if e.bus != nil {
		e.bus.Close()
	}
	return e.proc.Close()
}
