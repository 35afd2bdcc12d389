package scenario

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kilianp07/lpgsim/core/model"
	"github.com/kilianp07/lpgsim/core/transport"
)

// DeviceEntry is a built device with the load types it draws.
type DeviceEntry struct {
	Device    model.Device
	LoadTypes []model.LoadType
}

// Activation is a scheduled device activation.
type Activation struct {
	Start      model.TimeStep
	LoadType   model.LoadType
	Device     model.Device
	Profile    model.Profile
	Affordance string
	Activator  string
}

// Override is a scheduled zero-override window.
type Override struct {
	Device   model.Device
	LoadType model.LoadType
	Start    model.TimeStep
	Duration int
}

// Trip is a scheduled travel request.
type Trip struct {
	Person         model.Person
	SourceLocation string
	DestSite       string
	Tick           model.TimeStep
	Affordance     string
}

// Household is the validated, built form of a scenario.
type Household struct {
	Key         string
	Name        string
	LoadTypes   []model.LoadType
	Devices     []DeviceEntry
	Activations []Activation
	Overrides   []Override
	Persons     []model.Person
	Topology    *transport.Topology
	Trips       []Trip
}

type builder struct {
	sc        *Scenario
	hh        *Household
	loadTypes map[string]model.LoadType
	locations map[string]LocationSpec
	profiles  map[string]model.Profile
	devices   map[string]model.Device
	persons   map[string]model.Person
}

// Build validates references and builds the household. Missing device guids
// and household keys are generated.
func (sc *Scenario) Build() (*Household, error) {
	b := &builder{
		sc:        sc,
		hh:        &Household{Key: sc.Household.Key, Name: sc.Household.Name, Topology: transport.NewTopology()},
		loadTypes: make(map[string]model.LoadType),
		locations: make(map[string]LocationSpec),
		profiles:  make(map[string]model.Profile),
		devices:   make(map[string]model.Device),
		persons:   make(map[string]model.Person),
	}
	if b.hh.Key == "" {
		b.hh.Key = uuid.NewString()
	}
	steps := []func() error{
		b.buildLoadTypes,
		b.buildLocations,
		b.buildProfiles,
		b.buildDevices,
		b.buildActivations,
		b.buildOverrides,
		b.buildPersons,
		b.buildTransport,
		b.buildTrips,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return b.hh, nil
}

func (b *builder) buildLoadTypes() error {
	for _, l := range b.sc.LoadTypes {
		if l.Name == "" {
			return model.NewIntegrityError("load type", l.GUID, "missing name")
		}
		guid := l.GUID
		if guid == "" {
			guid = uuid.NewString()
		}
		if _, dup := b.loadTypes[guid]; dup {
			return model.NewIntegrityError("load type", l.Name, "duplicate guid "+guid)
		}
		factor := l.ConversionFactor
		if factor == 0 {
			factor = 1
		}
		lt := model.LoadType{GUID: guid, Name: l.Name, UnitOfPower: l.UnitOfPower, UnitOfSum: l.UnitOfSum, ConversionFactor: factor}
		b.loadTypes[guid] = lt
		b.hh.LoadTypes = append(b.hh.LoadTypes, lt)
	}
	return nil
}

// loadType resolves a load type by guid or name.
func (b *builder) loadType(ref string) (model.LoadType, bool) {
	if lt, ok := b.loadTypes[ref]; ok {
		return lt, true
	}
	for _, lt := range b.hh.LoadTypes {
		if lt.Name == ref {
			return lt, true
		}
	}
	return model.LoadType{}, false
}

func (b *builder) buildLocations() error {
	for _, l := range b.sc.Locations {
		if l.GUID == "" {
			return model.NewIntegrityError("location", l.Name, "missing guid")
		}
		if _, dup := b.locations[l.GUID]; dup {
			return model.NewIntegrityError("location", l.Name, "duplicate guid "+l.GUID)
		}
		b.locations[l.GUID] = l
	}
	return nil
}

func (b *builder) buildProfiles() error {
	for _, p := range b.sc.Profiles {
		if p.Name == "" {
			return model.NewIntegrityError("profile", "", "missing name")
		}
		if _, dup := b.profiles[p.Name]; dup {
			return model.NewIntegrityError("profile", p.Name, "duplicate name")
		}
		values := p.Values
		if values == nil {
			values = []float64{}
		}
		b.profiles[p.Name] = model.Profile{Name: p.Name, DataSource: p.DataSource, Values: values}
	}
	return nil
}

func parseDeviceType(s string) (model.DeviceType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "device":
		return model.DeviceTypeDevice, nil
	case "auto_device", "auto":
		return model.DeviceTypeAutoDevice, nil
	case "transportation", "transportation_device":
		return model.DeviceTypeTransportation, nil
	case "charging", "charging_station":
		return model.DeviceTypeCharging, nil
	default:
		return 0, fmt.Errorf("unknown device type %q", s)
	}
}

func (b *builder) buildDevices() error {
	for _, d := range b.sc.Devices {
		typ, err := parseDeviceType(d.Type)
		if err != nil {
			return model.NewIntegrityError("device", d.Name, err.Error())
		}
		loc, ok := b.locations[d.Location]
		if !ok {
			return model.NewIntegrityError("device", d.Name, "unknown location "+d.Location)
		}
		guid := d.GUID
		if guid == "" {
			guid = uuid.NewString()
		}
		if _, dup := b.devices[d.Name]; dup {
			return model.NewIntegrityError("device", d.Name, "duplicate name")
		}
		dev := model.Device{
			Name:         d.Name,
			InstanceGUID: guid,
			HouseholdKey: b.hh.Key,
			Type:         typ,
			CategoryGUID: d.CategoryGUID,
			CategoryName: d.CategoryName,
			LocationGUID: loc.GUID,
			LocationName: loc.Name,
		}
		entry := DeviceEntry{Device: dev}
		for _, ref := range d.LoadTypes {
			lt, ok := b.loadType(ref)
			if !ok {
				return model.NewIntegrityError("device", d.Name, "unknown load type "+ref)
			}
			entry.LoadTypes = append(entry.LoadTypes, lt)
		}
		b.devices[d.Name] = dev
		b.devices[guid] = dev
		b.hh.Devices = append(b.hh.Devices, entry)
	}
	return nil
}

func (b *builder) deviceFor(entity, ref, ltRef string) (model.Device, model.LoadType, error) {
	dev, ok := b.devices[ref]
	if !ok {
		return model.Device{}, model.LoadType{}, model.NewIntegrityError(entity, ref, "unknown device")
	}
	lt, ok := b.loadType(ltRef)
	if !ok {
		return model.Device{}, model.LoadType{}, model.NewIntegrityError(entity, ref, "unknown load type "+ltRef)
	}
	return dev, lt, nil
}

func (b *builder) buildActivations() error {
	for _, a := range b.sc.Activations {
		dev, lt, err := b.deviceFor("activation", a.Device, a.LoadType)
		if err != nil {
			return err
		}
		prof, ok := b.profiles[a.Profile]
		if !ok {
			return model.NewIntegrityError("activation", a.Device, "unknown profile "+a.Profile)
		}
		if a.Start < 0 {
			return model.NewIntegrityError("activation", a.Device, "negative start")
		}
		b.hh.Activations = append(b.hh.Activations, Activation{
			Start:      model.TimeStep(a.Start),
			LoadType:   lt,
			Device:     dev,
			Profile:    prof,
			Affordance: a.Affordance,
			Activator:  a.Activator,
		})
	}
	return nil
}

func (b *builder) buildOverrides() error {
	for _, o := range b.sc.Overrides {
		dev, lt, err := b.deviceFor("zero override", o.Device, o.LoadType)
		if err != nil {
			return err
		}
		if o.Duration < 0 {
			return model.NewIntegrityError("zero override", o.Device, "negative duration")
		}
		b.hh.Overrides = append(b.hh.Overrides, Override{
			Device:   dev,
			LoadType: lt,
			Start:    model.TimeStep(o.Start),
			Duration: o.Duration,
		})
	}
	return nil
}

func (b *builder) buildPersons() error {
	for _, p := range b.sc.Persons {
		g, err := model.ParseGender(p.Gender)
		if err != nil {
			return model.NewIntegrityError("person", p.Name, err.Error())
		}
		id := p.ID
		if id == "" {
			id = uuid.NewString()
		}
		person := model.Person{ID: id, Name: p.Name, Gender: g, Age: p.Age}
		b.persons[id] = person
		if p.Name != "" {
			b.persons[p.Name] = person
		}
		b.hh.Persons = append(b.hh.Persons, person)
	}
	return nil
}

func (b *builder) buildTransport() error {
	t := b.sc.Transport
	topo := b.hh.Topology
	for _, s := range t.Sites {
		for _, loc := range s.Locations {
			if _, ok := b.locations[loc]; !ok {
				return model.NewIntegrityError("site", s.Name, "unknown location "+loc)
			}
		}
		if err := topo.AddSite(transport.Site{
			GUID:                s.GUID,
			Name:                s.Name,
			Locations:           s.Locations,
			DeviceChangeAllowed: s.DeviceChangeAllowed,
		}); err != nil {
			return err
		}
	}
	for _, c := range t.Categories {
		if err := topo.AddCategory(transport.Category{
			GUID:                      c.GUID,
			Name:                      c.Name,
			IsLimitedToSingleLocation: c.IsLimitedToSingleLocation,
			DefaultSpeed:              c.DefaultSpeed,
		}); err != nil {
			return err
		}
	}
	for _, d := range t.Devices {
		guid := d.GUID
		if guid == "" {
			guid = uuid.NewString()
		}
		if err := topo.AddDevice(transport.Device{
			GUID:         guid,
			Name:         d.Name,
			CategoryGUID: d.Category,
			Speed:        d.Speed,
			CurrentSite:  d.Site,
		}); err != nil {
			return err
		}
	}
	for _, ts := range t.TaggingSets {
		topo.AddTaggingSet(transport.TaggingSet{GUID: ts.GUID, Name: ts.Name, Tags: ts.Tags})
	}
	for _, r := range t.Routes {
		g, err := model.ParseGender(r.Gender)
		if err != nil {
			return model.NewIntegrityError("route", r.Name, err.Error())
		}
		var personID string
		if r.Person != "" {
			p, ok := b.persons[r.Person]
			if !ok {
				return model.NewIntegrityError("route", r.Name, "unknown person "+r.Person)
			}
			personID = p.ID
		}
		weight := r.Weight
		if weight == 0 {
			weight = 1
		}
		route := transport.Route{
			GUID:           r.GUID,
			Name:           r.Name,
			FromSite:       r.From,
			ToSite:         r.To,
			Weight:         weight,
			PersonID:       personID,
			Gender:         g,
			MinAge:         r.MinAge,
			MaxAge:         r.MaxAge,
			TaggingSetGUID: r.TaggingSet,
			Tag:            r.Tag,
		}
		for _, st := range r.Steps {
			route.Steps = append(route.Steps, transport.Step{Name: st.Name, CategoryGUID: st.Category, Distance: st.Distance})
		}
		if err := topo.AddRoute(route); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) buildTrips() error {
	for _, tr := range b.sc.Trips {
		p, ok := b.persons[tr.Person]
		if !ok {
			return model.NewIntegrityError("trip", tr.Person, "unknown person")
		}
		if tr.Tick < 0 {
			return model.NewIntegrityError("trip", tr.Person, "negative tick")
		}
		b.hh.Trips = append(b.hh.Trips, Trip{
			Person:         p,
			SourceLocation: tr.From,
			DestSite:       tr.To,
			Tick:           model.TimeStep(tr.Tick),
			Affordance:     tr.Affordance,
		})
	}
	return nil
}
