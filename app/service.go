package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/lpgsim/config"
	"github.com/kilianp07/lpgsim/core/activation"
	actlog "github.com/kilianp07/lpgsim/core/activation/logging"
	"github.com/kilianp07/lpgsim/core/columns"
	"github.com/kilianp07/lpgsim/core/engine"
	coremetrics "github.com/kilianp07/lpgsim/core/metrics"
	"github.com/kilianp07/lpgsim/core/model"
	coremon "github.com/kilianp07/lpgsim/core/monitoring"
	"github.com/kilianp07/lpgsim/core/scenario"
	"github.com/kilianp07/lpgsim/core/transport"
	"github.com/kilianp07/lpgsim/infra/datfile"
	"github.com/kilianp07/lpgsim/infra/logger"
	"github.com/kilianp07/lpgsim/infra/metrics"
	"github.com/kilianp07/lpgsim/infra/monitoring"
	"github.com/kilianp07/lpgsim/internal/eventbus"
)

// Service wires a configuration to a ready-to-run engine.
type Service struct {
	RunID     string
	Household *scenario.Household
	Engine    *engine.Engine
	Bus       *eventbus.Bus[engine.TickEvent]

	cfg      *config.Config
	sink     coremetrics.MetricsSink
	store    actlog.LogStore
	log      logger.Logger
	progress sync.WaitGroup
}

// LoadHousehold reads and builds the configured scenario.
func LoadHousehold(cfg *config.Config) (*scenario.Household, error) {
	sc, err := scenario.Load(cfg.Simulation.Scenario)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}
	hh, err := sc.Build()
	if err != nil {
		return nil, fmt.Errorf("build scenario: %w", err)
	}
	return hh, nil
}

// Columns registers every device of hh and returns the resulting layout.
func Columns(hh *scenario.Household) (*columns.Registry, error) {
	reg := columns.NewRegistry()
	for _, d := range hh.Devices {
		for _, lt := range d.LoadTypes {
			if _, _, err := reg.Register(lt, d.Device); err != nil {
				return nil, err
			}
		}
	}
	return reg, nil
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logger.SetLevel(cfg.Logging.Level)
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	runID := uuid.NewString()
	hh, err := LoadHousehold(cfg)
	if err != nil {
		coremon.CaptureFatal("scenario", err, map[string]string{"run_id": runID})
		return nil, err
	}
	if tagger, ok := mon.(interface{ SetTags(map[string]string) }); ok {
		tagger.SetTags(map[string]string{"run_id": runID, "household": hh.Key})
	}

	sim := cfg.Simulation
	var streams activation.StreamFactory
	if sim.Options.DetailedDatFiles || sim.Options.OverallDats {
		f, err := datfile.NewFactory(sim.OutputDir)
		if err != nil {
			return nil, err
		}
		streams = f
	}
	var store actlog.LogStore = actlog.NopStore{}
	if sim.Options.DeviceActivations {
		store, err = actlog.NewStore(cfg.Logging.Store())
		if err != nil {
			return nil, fmt.Errorf("activation log: %w", err)
		}
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	svc := &Service{RunID: runID, Household: hh, cfg: cfg, sink: sink, store: store, log: logg}
	proc, err := activation.NewProcessor(sim.Options, streams, store, logger.New("activation"))
	if err != nil {
		_ = svc.closeOutputs()
		return nil, err
	}
	handler := transport.NewHandler(hh.Topology, transport.NewOwnershipLedger(), sim.Resolution(), logger.New("transport"))
	svc.Bus = eventbus.New[engine.TickEvent](0)
	svc.Engine, err = engine.New(hh, proc, handler, sink, svc.Bus, logger.ForRun("engine", svc.RunID, hh.Key), engine.Options{
		RunID:          svc.RunID,
		Clock:          model.NewClock(sim.Start(), sim.Resolution()),
		Seed:           sim.Seed,
		TripRetryLimit: sim.RetryLimit(),
	})
	if err != nil {
		coremon.CaptureFatal("engine", err, nil)
		_ = proc.Close()
		_ = svc.closeOutputs()
		return nil, err
	}
	return svc, nil
}

// Run executes the configured number of steps and blocks until done or the
// context is cancelled.
func (s *Service) Run(ctx context.Context) (coremetrics.RunSummary, error) {
	if port := s.cfg.Metrics.PrometheusPort; port != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, port); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	s.watchProgress(s.cfg.Simulation.Steps)
	return s.Engine.Run(ctx, s.cfg.Simulation.Steps)
}

// watchProgress logs every tenth of the run from the tick bus.
func (s *Service) watchProgress(steps int) {
	ch := s.Bus.Subscribe()
	every := steps / 10
	if every == 0 {
		every = 1
	}
	s.progress.Add(1)
	go func() {
		defer s.progress.Done()
		defer coremon.Recover()
		for ev := range ch {
			if (int(ev.Tick)+1)%every == 0 {
				s.log.Infof("tick %d/%d (%s)", int(ev.Tick)+1, steps, ev.Time.Format(time.RFC3339))
			}
		}
	}()
}

func (s *Service) closeOutputs() error {
	var first error
	if c, ok := s.sink.(interface{ Close() error }); ok {
		first = c.Close()
	}
	if err := s.store.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	err := s.Engine.Close()
	s.progress.Wait()
	if cerr := s.closeOutputs(); cerr != nil && err == nil {
		err = cerr
	}
	if s.Bus.Dropped() > 0 {
		s.log.Warnf("progress observer missed %d ticks", s.Bus.Dropped())
	}
	coremon.Flush(2 * time.Second)
	return err
}
