// Package transport resolves which route and shared device a person uses to
// travel between sites.
package transport

import "github.com/kilianp07/lpgsim/core/model"

// Category groups transportation devices. Devices of a category limited to a
// single location are shared, moveable resources; unlimited categories such
// as walking need no device at all.
type Category struct {
	GUID                      string
	Name                      string
	IsLimitedToSingleLocation bool
	// DefaultSpeed in m/s, used when no device is involved.
	DefaultSpeed float64
}

// Device is a shared transportation device. CurrentSite and BusyUntil change
// as trips are committed.
type Device struct {
	GUID         string
	Name         string
	CategoryGUID string
	// Speed in m/s.
	Speed       float64
	CurrentSite string
	BusyUntil   model.TimeStep
}

// Site groups locations. Arriving at a site that allows device changes
// releases the traveller's device.
type Site struct {
	GUID                string
	Name                string
	Locations           []string
	DeviceChangeAllowed bool
}

// Step is one leg of a route.
type Step struct {
	Name         string
	CategoryGUID string
	// Distance in meters.
	Distance float64
}

// Route is a weighted edge between two sites with eligibility rules.
type Route struct {
	GUID     string
	Name     string
	FromSite string
	ToSite   string
	Weight   float64
	// PersonID binds the route to a single person when set.
	PersonID string
	Gender   model.Gender
	// MinAge and MaxAge are ignored when zero or negative.
	MinAge         int
	MaxAge         int
	TaggingSetGUID string
	Tag            string
	Steps          []Step
	SameSite       bool
}

// TaggingSet tags affordances; routes referencing it restrict themselves to
// affordances carrying their tag.
type TaggingSet struct {
	GUID string
	Name string
	// Tags maps an affordance name to its tag.
	Tags map[string]string
}

// Outcome is the three-valued result of a route resolution.
type Outcome int

const (
	// OutcomeBlocked means no route could be committed this tick.
	OutcomeBlocked Outcome = iota
	// OutcomeSameSite means source and destination share a site.
	OutcomeSameSite
	// OutcomeRouted means a route and its devices were committed.
	OutcomeRouted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeBlocked:
		return "blocked"
	case OutcomeSameSite:
		return "same_site"
	case OutcomeRouted:
		return "routed"
	default:
		return "unknown"
	}
}

// Rand is the randomness source used for weighted selection.
type Rand interface {
	Float64() float64
}

// Request is a trip request from a person at a location.
type Request struct {
	SourceLocation string
	DestSite       string
	Tick           model.TimeStep
	Person         model.Person
	Affordance     string
	Rand           Rand
}

// Resolution is the committed result of a request.
type Resolution struct {
	Outcome    Outcome
	Route      *Route
	SourceSite string
	// Duration in ticks.
	Duration int
	// Devices lists the guids of the devices moved by the trip.
	Devices []string
}
