package transport

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/lpgsim/core/logger"
	"github.com/kilianp07/lpgsim/core/model"
)

// ErrNoRand is returned when a request needs a weighted draw but carries no
// randomness source.
var ErrNoRand = errors.New("transport: request has no randomness source")

// Handler resolves trip requests against a topology and an ownership
// ledger. It mutates both and must be driven from a single goroutine per
// device pool.
type Handler struct {
	topo       *Topology
	ledger     *OwnershipLedger
	resolution time.Duration
	logger     logger.Logger
}

// NewHandler builds a Handler. resolution is the wall-clock length of a tick
// used to convert travel times into ticks.
func NewHandler(topo *Topology, ledger *OwnershipLedger, resolution time.Duration, log logger.Logger) *Handler {
	if resolution <= 0 {
		resolution = time.Minute
	}
	return &Handler{topo: topo, ledger: ledger, resolution: resolution, logger: log}
}

// Topology returns the topology the handler resolves against.
func (h *Handler) Topology() *Topology { return h.topo }

// Ledger returns the ownership ledger.
func (h *Handler) Ledger() *OwnershipLedger { return h.ledger }

// ResolveRoute resolves req. A blocked resolution is reported through the
// outcome; errors are configuration problems and are fatal.
func (h *Handler) ResolveRoute(req Request) (Resolution, error) {
	src, err := h.topo.SiteForLocation(req.SourceLocation)
	if err != nil {
		return Resolution{}, err
	}
	if _, ok := h.topo.Site(req.DestSite); !ok {
		return Resolution{}, model.NewIntegrityError("site", req.DestSite, "unknown destination site")
	}

	if src == req.DestSite {
		if site, _ := h.topo.Site(src); site.DeviceChangeAllowed {
			h.ledger.Release(req.Person.ID)
		}
		routeResolutions.WithLabelValues(OutcomeSameSite.String()).Inc()
		return Resolution{Outcome: OutcomeSameSite, Route: h.topo.SameSiteRoute(src), SourceSite: src}, nil
	}

	available := h.topo.DevicesAt(src)
	var pool []*Route
	for _, r := range h.candidateRoutes(src, req.DestSite, available, req.Person) {
		ok, err := h.eligible(r, req)
		if err != nil {
			return Resolution{}, err
		}
		if ok {
			pool = append(pool, r)
		}
	}
	if len(pool) == 0 {
		h.logger.Debugf("no eligible route for %s from %s to %s", req.Person.Name, src, req.DestSite)
		return h.blocked(src), nil
	}
	if req.Rand == nil {
		return Resolution{}, ErrNoRand
	}

	for len(pool) > 0 {
		idx := pickWeighted(pool, req.Rand)
		r := pool[idx]
		pool = append(pool[:idx], pool[idx+1:]...)
		p, ok, err := h.planTrip(r, src, req)
		if err != nil {
			return Resolution{}, err
		}
		if !ok {
			h.logger.Debugf("route %s discarded for %s: no free device", r.Name, req.Person.Name)
			continue
		}
		devices := h.commit(p, r, req)
		routeResolutions.WithLabelValues(OutcomeRouted.String()).Inc()
		return Resolution{
			Outcome:    OutcomeRouted,
			Route:      r,
			SourceSite: src,
			Duration:   p.duration,
			Devices:    devices,
		}, nil
	}
	h.logger.Debugf("all routes from %s to %s contended for %s", src, req.DestSite, req.Person.Name)
	return h.blocked(src), nil
}

func (h *Handler) blocked(src string) Resolution {
	routeResolutions.WithLabelValues(OutcomeBlocked.String()).Inc()
	return Resolution{Outcome: OutcomeBlocked, SourceSite: src}
}

// candidateRoutes keeps the routes whose device-bound steps can be served by
// a device at the source site or one held by the person. Busy devices still
// count here; contention is settled by planTrip.
func (h *Handler) candidateRoutes(src, dst string, available []*Device, person model.Person) []*Route {
	cats := make(map[string]bool)
	for _, d := range available {
		cats[d.CategoryGUID] = true
	}
	if held, ok := h.ledger.DeviceOf(person.ID); ok {
		if d, ok := h.topo.Device(held); ok {
			cats[d.CategoryGUID] = true
		}
	}
	var res []*Route
	for _, r := range h.topo.RoutesFrom(src, dst) {
		usable := true
		for _, st := range r.Steps {
			cat, _ := h.topo.Category(st.CategoryGUID)
			if cat.IsLimitedToSingleLocation && !cats[st.CategoryGUID] {
				usable = false
				break
			}
		}
		if usable {
			res = append(res, r)
		}
	}
	return res
}

// eligible evaluates the route predicates against the requesting person.
func (h *Handler) eligible(r *Route, req Request) (bool, error) {
	p := req.Person
	if r.PersonID != "" && r.PersonID != p.ID {
		return false, nil
	}
	if r.Gender != model.GenderAll && p.Gender != model.GenderAll && r.Gender != p.Gender {
		return false, nil
	}
	if r.MinAge > 0 && p.Age < r.MinAge {
		return false, nil
	}
	if r.MaxAge > 0 && p.Age > r.MaxAge {
		return false, nil
	}
	if r.TaggingSetGUID == "" {
		return true, nil
	}
	ts, err := h.topo.taggingSet(r.TaggingSetGUID)
	if err != nil {
		return false, fmt.Errorf("route %s: %w", r.Name, err)
	}
	tag, tagged := ts.Tags[req.Affordance]
	if !tagged {
		return true, nil
	}
	return tag == r.Tag, nil
}

// pickWeighted draws a uniform value in [0, total) and returns the first
// route whose cumulative weight exceeds it. The last route is the fallback
// when rounding prevents a match.
func pickWeighted(pool []*Route, rnd Rand) int {
	var total float64
	for _, r := range pool {
		total += r.Weight
	}
	draw := rnd.Float64() * total
	var cum float64
	for i, r := range pool {
		cum += r.Weight
		if cum > draw {
			return i
		}
	}
	return len(pool) - 1
}

type tripPlan struct {
	duration int
	devices  []*Device
}

// planTrip computes the travel duration of r for the requester. It reports
// false when a device-bound step has no usable device.
func (h *Handler) planTrip(r *Route, src string, req Request) (tripPlan, bool, error) {
	var p tripPlan
	chosen := make(map[string]*Device)
	held, _ := h.ledger.DeviceOf(req.Person.ID)
	for _, st := range r.Steps {
		cat, _ := h.topo.Category(st.CategoryGUID)
		speed := cat.DefaultSpeed
		if cat.IsLimitedToSingleLocation {
			d, ok := chosen[cat.GUID]
			if !ok {
				d = h.pickDevice(cat.GUID, src, held, req)
				if d == nil {
					return tripPlan{}, false, nil
				}
				chosen[cat.GUID] = d
				p.devices = append(p.devices, d)
			}
			if d.Speed > 0 {
				speed = d.Speed
			}
		}
		ticks, err := h.stepTicks(st, speed, r)
		if err != nil {
			return tripPlan{}, false, err
		}
		p.duration += ticks
	}
	return p, true, nil
}

// pickDevice prefers the device already held by the requester, then the
// first free device of the category parked at src.
func (h *Handler) pickDevice(category, src, held string, req Request) *Device {
	if held != "" {
		if d, ok := h.topo.Device(held); ok && d.CategoryGUID == category && d.CurrentSite == src {
			return d
		}
	}
	for _, d := range h.topo.DevicesAt(src) {
		if d.CategoryGUID != category {
			continue
		}
		if _, owned := h.ledger.Owner(d.GUID); owned {
			continue
		}
		if req.Tick < d.BusyUntil {
			continue
		}
		return d
	}
	return nil
}

func (h *Handler) stepTicks(st Step, speed float64, r *Route) (int, error) {
	if st.Distance <= 0 {
		return 0, nil
	}
	if speed <= 0 {
		return 0, model.NewIntegrityError("route", r.Name,
			fmt.Sprintf("step %q has no positive speed", st.Name))
	}
	seconds := st.Distance / speed
	ticks := int(math.Ceil(seconds / h.resolution.Seconds()))
	if ticks < 1 {
		ticks = 1
	}
	return ticks, nil
}

// commit moves the planned devices to the destination and binds the first
// one to the requester. Arriving at a site that allows device changes
// releases the binding again.
func (h *Handler) commit(p tripPlan, r *Route, req Request) []string {
	guids := make([]string, 0, len(p.devices))
	end := req.Tick.AddSteps(p.duration)
	for _, d := range p.devices {
		d.CurrentSite = r.ToSite
		d.BusyUntil = end
		guids = append(guids, d.GUID)
	}
	if len(p.devices) > 0 {
		if err := h.ledger.Assign(req.Person.ID, p.devices[0].GUID); err != nil {
			h.logger.Warnf("binding %s to %s: %v", p.devices[0].Name, req.Person.Name, err)
		}
	}
	if dst, ok := h.topo.Site(r.ToSite); ok && dst.DeviceChangeAllowed {
		h.ledger.Release(req.Person.ID)
	}
	return guids
}
