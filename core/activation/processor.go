package activation

import (
	"context"
	"fmt"

	"github.com/kilianp07/lpgsim/core/activation/logging"
	"github.com/kilianp07/lpgsim/core/columns"
	"github.com/kilianp07/lpgsim/core/logger"
	"github.com/kilianp07/lpgsim/core/model"
)

// Options are the reporting toggles recognised by the processor.
type Options struct {
	// DetailedDatFiles opens a per-device binary stream for every load type.
	DetailedDatFiles bool `json:"detailed_dat_files"`
	// OverallDats opens a summed binary stream for every load type.
	OverallDats bool `json:"overall_dats"`
	// DeviceActivations logs every activation with its total energy use.
	DeviceActivations bool `json:"device_activations"`
}

// Processor creates, ages out and aggregates device activations. It owns all
// per-load-type containers and must be driven from a single goroutine.
type Processor struct {
	opts    Options
	columns *columns.Registry
	streams StreamFactory
	store   logging.LogStore
	logger  logger.Logger
	runID   string

	loadTypes map[string]model.LoadType
	order     []string
	machines  map[string][]*StateMachine
	detailed  map[string]RowStream
	sums      map[string]RowStream
	emitting  map[string]bool
	zero      *ZeroLedger

	profiles     map[ProfileActivationKey]*ProfileActivationEntry
	profileOrder []ProfileActivationKey
	savedDevices map[string]struct{}
}

// NewProcessor builds a processor. streams may be nil when no binary output
// option is enabled; store may be nil when activation logging is disabled.
func NewProcessor(opts Options, streams StreamFactory, store logging.LogStore, log logger.Logger) (*Processor, error) {
	if (opts.DetailedDatFiles || opts.OverallDats) && streams == nil {
		return nil, fmt.Errorf("activation: binary output enabled without a stream factory")
	}
	if store == nil {
		store = logging.NopStore{}
	}
	log.Infof("initializing the device activation processor")
	return &Processor{
		opts:         opts,
		columns:      columns.NewRegistry(),
		streams:      streams,
		store:        store,
		logger:       log,
		loadTypes:    make(map[string]model.LoadType),
		machines:     make(map[string][]*StateMachine),
		detailed:     make(map[string]RowStream),
		sums:         make(map[string]RowStream),
		emitting:     make(map[string]bool),
		zero:         NewZeroLedger(),
		profiles:     make(map[ProfileActivationKey]*ProfileActivationEntry),
		savedDevices: make(map[string]struct{}),
	}, nil
}

// SetRunID tags activation records with the run identifier.
func (p *Processor) SetRunID(id string) { p.runID = id }

// Columns exposes the column registry.
func (p *Processor) Columns() *columns.Registry { return p.columns }

// RegisterDevice assigns dev a column for lt and returns its key. The first
// device of a load type allocates the live list and opens the enabled streams.
func (p *Processor) RegisterDevice(lt model.LoadType, dev model.Device) (model.ColumnKey, error) {
	return p.RegisterDeviceKey(lt, model.NewColumnKey(dev, lt.GUID), dev)
}

// RegisterDeviceKey is RegisterDevice for a pre-built key. The key's load type
// guid must match lt.
func (p *Processor) RegisterDeviceKey(lt model.LoadType, key model.ColumnKey, dev model.Device) (model.ColumnKey, error) {
	if _, _, err := p.columns.RegisterKey(lt, key, dev); err != nil {
		return model.ColumnKey{}, err
	}
	if _, ok := p.loadTypes[lt.GUID]; ok {
		return key, nil
	}
	var detailed, sum RowStream
	if p.opts.DetailedDatFiles {
		s, err := p.streams.Open(StreamSpec{
			FileName:    "OnlineDeviceEnergyUsage." + lt.Name + ".dat",
			Description: "Binary device energy usage per device for " + lt.Name,
			Kind:        StreamDetailed,
			LoadType:    lt,
		})
		if err != nil {
			return model.ColumnKey{}, fmt.Errorf("open detailed stream for %s: %w", lt.Name, err)
		}
		detailed = s
	}
	if p.opts.OverallDats {
		s, err := p.streams.Open(StreamSpec{
			FileName:    "OnlineDeviceEnergyUsage.Sums." + lt.Name + ".dat",
			Description: "Binary summed device energy usage for " + lt.Name,
			Kind:        StreamSum,
			LoadType:    lt,
		})
		if err != nil {
			if detailed != nil {
				_ = detailed.Close()
			}
			return model.ColumnKey{}, fmt.Errorf("open sum stream for %s: %w", lt.Name, err)
		}
		sum = s
	}
	if detailed != nil {
		p.detailed[lt.GUID] = detailed
	}
	if sum != nil {
		p.sums[lt.GUID] = sum
	}
	p.loadTypes[lt.GUID] = lt
	p.order = append(p.order, lt.GUID)
	p.machines[lt.GUID] = nil
	p.logger.Infof("registered load type %s", lt.Name)
	return key, nil
}

// AddNewStateMachine starts an activation of dev at start. The key must have
// been registered for lt.
func (p *Processor) AddNewStateMachine(start model.TimeStep, lt model.LoadType, affordance, activator string,
	key model.ColumnKey, dev model.Device, profile model.Profile) error {
	column, err := p.columns.Column(lt.GUID, key)
	if err != nil {
		return err
	}
	sm, err := NewStateMachine(start, lt, dev.Name, key, affordance, profile, column)
	if err != nil {
		return err
	}
	pk := ProfileActivationKey{
		DeviceName:    dev.Name,
		ProfileName:   profile.Name,
		ProfileSource: profile.DataSource,
		LoadTypeName:  lt.Name,
	}
	entry, ok := p.profiles[pk]
	if !ok {
		entry = &ProfileActivationEntry{ProfileActivationKey: pk}
		p.profiles[pk] = entry
		p.profileOrder = append(p.profileOrder, pk)
	}
	entry.ActivationCount++
	p.machines[lt.GUID] = append(p.machines[lt.GUID], sm)
	activationsTotal.WithLabelValues(lt.Name).Inc()
	p.logger.Debugw("device activated", map[string]any{
		"device":     dev.Name,
		"load_type":  lt.Name,
		"affordance": affordance,
		"start":      int(start),
		"steps":      sm.Len(),
	})

	if !p.opts.DeviceActivations {
		return nil
	}
	ctx := context.Background()
	if _, seen := p.savedDevices[dev.InstanceGUID]; !seen {
		if err := p.store.AppendArchive(ctx, logging.DeviceArchive{
			DeviceGUID:   dev.InstanceGUID,
			DeviceName:   dev.Name,
			HouseholdKey: dev.HouseholdKey,
			DeviceType:   dev.Type.String(),
			Category:     dev.CategoryName,
			LocationName: dev.LocationName,
		}); err != nil {
			return fmt.Errorf("archive device %s: %w", dev.Name, err)
		}
		p.savedDevices[dev.InstanceGUID] = struct{}{}
	}
	rec := logging.ActivationRecord{
		RunID:          p.runID,
		StartTick:      int(start),
		HouseholdKey:   dev.HouseholdKey,
		DeviceName:     dev.Name,
		DeviceGUID:     dev.InstanceGUID,
		AffordanceName: affordance,
		ActivatorName:  activator,
		LoadTypeName:   lt.Name,
		LoadTypeGUID:   lt.GUID,
		TotalEnergy:    sm.TotalEnergyUse(),
		StepCount:      sm.Len(),
	}
	if err := p.store.AppendActivation(ctx, rec); err != nil {
		return fmt.Errorf("log activation of %s: %w", dev.Name, err)
	}
	return nil
}

// AddZeroEntryForAutoDev suppresses key during [start, start+duration).
func (p *Processor) AddZeroEntryForAutoDev(key model.ColumnKey, start model.TimeStep, duration int) error {
	if err := p.zero.Add(key, start, duration); err != nil {
		return err
	}
	zeroOverrides.Set(float64(p.zero.Len()))
	return nil
}

// ProcessOneTick expires finished machines, aggregates the live ones and
// returns exactly one row per registered load type.
func (p *Processor) ProcessOneTick(t model.TimeStep) ([]Row, error) {
	p.expire(t)
	rows := make([]Row, 0, len(p.order))
	for _, guid := range p.order {
		lt := p.loadTypes[guid]
		if !p.emitting[guid] {
			p.columns.Freeze(guid)
			p.emitting[guid] = true
		}
		values := make([]float64, p.columns.ColumnCount(guid))
		for _, m := range p.machines[guid] {
			values[m.Column()] += m.EnergyValueForTick(t, p.zero)
		}
		row := Row{Tick: t, LoadType: lt, Values: values}
		if err := p.emit(guid, row); err != nil {
			return nil, err
		}
		liveStateMachines.WithLabelValues(lt.Name).Set(float64(len(p.machines[guid])))
		rows = append(rows, row)
	}
	p.zero.Prune(t)
	zeroOverrides.Set(float64(p.zero.Len()))
	ticksProcessed.Inc()
	return rows, nil
}

func (p *Processor) expire(t model.TimeStep) {
	for guid, list := range p.machines {
		kept := list[:0]
		for _, m := range list {
			if !m.IsExpired(t) {
				kept = append(kept, m)
			}
		}
		for i := len(kept); i < len(list); i++ {
			list[i] = nil
		}
		p.machines[guid] = kept
	}
}

func (p *Processor) emit(guid string, row Row) error {
	if s, ok := p.detailed[guid]; ok {
		if err := s.WriteRow(row.Tick, row.Values); err != nil {
			return fmt.Errorf("write detailed row for %s: %w", row.LoadType.Name, err)
		}
	}
	if s, ok := p.sums[guid]; ok {
		if err := s.WriteRow(row.Tick, []float64{row.Sum()}); err != nil {
			return fmt.Errorf("write sum row for %s: %w", row.LoadType.Name, err)
		}
	}
	return nil
}

// LiveCount returns the number of live machines of a load type.
func (p *Processor) LiveCount(loadTypeGUID string) int { return len(p.machines[loadTypeGUID]) }

// ZeroOverrides returns the number of live override windows.
func (p *Processor) ZeroOverrides() int { return p.zero.Len() }

// LoadTypes returns the registered load types in registration order.
func (p *Processor) LoadTypes() []model.LoadType {
	res := make([]model.LoadType, 0, len(p.order))
	for _, guid := range p.order {
		res = append(res, p.loadTypes[guid])
	}
	return res
}

// ProfileEntries returns the profile activation counters in first-seen order.
func (p *Processor) ProfileEntries() []ProfileActivationEntry {
	res := make([]ProfileActivationEntry, 0, len(p.profileOrder))
	for _, k := range p.profileOrder {
		res = append(res, *p.profiles[k])
	}
	return res
}

// FlushProfileReport writes the profile activation counters to the log store.
func (p *Processor) FlushProfileReport(ctx context.Context) error {
	entries := p.ProfileEntries()
	if len(entries) == 0 {
		return nil
	}
	recs := make([]logging.ProfileActivation, len(entries))
	for i, e := range entries {
		recs[i] = e.record()
	}
	return p.store.AppendProfileActivations(ctx, recs)
}

// Close closes every open stream. All close errors are attempted; the first
// one is returned.
func (p *Processor) Close() error {
	var first error
	for _, guid := range p.order {
		for _, s := range []RowStream{p.detailed[guid], p.sums[guid]} {
			if s == nil {
				continue
			}
			if err := s.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	p.detailed = make(map[string]RowStream)
	p.sums = make(map[string]RowStream)
	return first
}
