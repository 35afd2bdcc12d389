package transport

import (
	"fmt"

	"github.com/kilianp07/lpgsim/core/model"
)

// Topology is the static location, site and route graph plus the mutable
// position of every shared device. Entities reference each other by guid.
type Topology struct {
	sites       map[string]*Site
	siteOrder   []string
	locToSite   map[string]string
	categories  map[string]*Category
	devices     map[string]*Device
	deviceOrder []string
	routes      []*Route
	sameSite    map[string]*Route
	taggingSets map[string]*TaggingSet
}

// NewTopology returns an empty topology.
func NewTopology() *Topology {
	return &Topology{
		sites:       make(map[string]*Site),
		locToSite:   make(map[string]string),
		categories:  make(map[string]*Category),
		devices:     make(map[string]*Device),
		sameSite:    make(map[string]*Route),
		taggingSets: make(map[string]*TaggingSet),
	}
}

// AddSite adds a site and its reflexive same-site route. A location may
// belong to a single site.
func (t *Topology) AddSite(s Site) error {
	if _, ok := t.sites[s.GUID]; ok {
		return model.NewIntegrityError("site", s.Name, "duplicate guid "+s.GUID)
	}
	for _, loc := range s.Locations {
		if other, ok := t.locToSite[loc]; ok {
			return model.NewIntegrityError("location", loc,
				fmt.Sprintf("mapped to both %s and %s", t.sites[other].Name, s.Name))
		}
	}
	site := s
	site.Locations = append([]string(nil), s.Locations...)
	t.sites[s.GUID] = &site
	t.siteOrder = append(t.siteOrder, s.GUID)
	for _, loc := range site.Locations {
		t.locToSite[loc] = s.GUID
	}
	t.sameSite[s.GUID] = &Route{
		GUID:     "same-site-" + s.GUID,
		Name:     "same site " + s.Name,
		FromSite: s.GUID,
		ToSite:   s.GUID,
		Weight:   1,
		SameSite: true,
	}
	return nil
}

// AddCategory adds a transportation device category.
func (t *Topology) AddCategory(c Category) error {
	if _, ok := t.categories[c.GUID]; ok {
		return model.NewIntegrityError("device category", c.Name, "duplicate guid "+c.GUID)
	}
	cat := c
	t.categories[c.GUID] = &cat
	return nil
}

// AddDevice places a shared device at its current site.
func (t *Topology) AddDevice(d Device) error {
	if _, ok := t.devices[d.GUID]; ok {
		return model.NewIntegrityError("transportation device", d.Name, "duplicate guid "+d.GUID)
	}
	if _, ok := t.categories[d.CategoryGUID]; !ok {
		return model.NewIntegrityError("transportation device", d.Name, "unknown category "+d.CategoryGUID)
	}
	if _, ok := t.sites[d.CurrentSite]; !ok {
		return model.NewIntegrityError("transportation device", d.Name, "unknown site "+d.CurrentSite)
	}
	dev := d
	t.devices[d.GUID] = &dev
	t.deviceOrder = append(t.deviceOrder, d.GUID)
	return nil
}

// AddRoute adds a route between two known sites.
func (t *Topology) AddRoute(r Route) error {
	if _, ok := t.sites[r.FromSite]; !ok {
		return model.NewIntegrityError("route", r.Name, "unknown source site "+r.FromSite)
	}
	if _, ok := t.sites[r.ToSite]; !ok {
		return model.NewIntegrityError("route", r.Name, "unknown destination site "+r.ToSite)
	}
	if r.Weight < 0 {
		return model.NewIntegrityError("route", r.Name, "negative weight")
	}
	for _, st := range r.Steps {
		if _, ok := t.categories[st.CategoryGUID]; !ok {
			return model.NewIntegrityError("route", r.Name,
				fmt.Sprintf("step %q uses unknown category %s", st.Name, st.CategoryGUID))
		}
	}
	route := r
	route.Steps = append([]Step(nil), r.Steps...)
	t.routes = append(t.routes, &route)
	return nil
}

// AddTaggingSet adds an affordance tagging set.
func (t *Topology) AddTaggingSet(ts TaggingSet) {
	set := ts
	set.Tags = make(map[string]string, len(ts.Tags))
	for k, v := range ts.Tags {
		set.Tags[k] = v
	}
	t.taggingSets[ts.GUID] = &set
}

// SiteForLocation returns the guid of the site containing loc.
func (t *Topology) SiteForLocation(loc string) (string, error) {
	s, ok := t.locToSite[loc]
	if !ok {
		return "", model.NewIntegrityError("location", loc, "not mapped to any site")
	}
	return s, nil
}

// SameSiteRoute returns the reflexive route of site.
func (t *Topology) SameSiteRoute(site string) *Route { return t.sameSite[site] }

// RoutesFrom returns the routes from src to dst in insertion order.
func (t *Topology) RoutesFrom(src, dst string) []*Route {
	var res []*Route
	for _, r := range t.routes {
		if r.FromSite == src && r.ToSite == dst {
			res = append(res, r)
		}
	}
	return res
}

// DevicesAt returns the devices currently parked at site.
func (t *Topology) DevicesAt(site string) []*Device {
	var res []*Device
	for _, guid := range t.deviceOrder {
		if d := t.devices[guid]; d.CurrentSite == site {
			res = append(res, d)
		}
	}
	return res
}

// Device returns the device with the given guid.
func (t *Topology) Device(guid string) (*Device, bool) {
	d, ok := t.devices[guid]
	return d, ok
}

// Category returns the category with the given guid.
func (t *Topology) Category(guid string) (*Category, bool) {
	c, ok := t.categories[guid]
	return c, ok
}

// Site returns the site with the given guid.
func (t *Topology) Site(guid string) (*Site, bool) {
	s, ok := t.sites[guid]
	return s, ok
}

// Sites returns all sites in insertion order.
func (t *Topology) Sites() []*Site {
	res := make([]*Site, 0, len(t.siteOrder))
	for _, g := range t.siteOrder {
		res = append(res, t.sites[g])
	}
	return res
}

// Routes returns all non-reflexive routes in insertion order.
func (t *Topology) Routes() []*Route {
	return append([]*Route(nil), t.routes...)
}

// Devices returns all shared devices in insertion order.
func (t *Topology) Devices() []*Device {
	res := make([]*Device, 0, len(t.deviceOrder))
	for _, g := range t.deviceOrder {
		res = append(res, t.devices[g])
	}
	return res
}

func (t *Topology) taggingSet(guid string) (*TaggingSet, error) {
	ts, ok := t.taggingSets[guid]
	if !ok {
		return nil, model.NewIntegrityError("affordance tagging set", guid, "unknown tagging set reference")
	}
	return ts, nil
}
