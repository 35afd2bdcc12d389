package transport

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/lpgsim/core/model"
	"github.com/kilianp07/lpgsim/infra/logger"
)

var (
	alice = model.Person{ID: "p-alice", Name: "Alice", Gender: model.GenderFemale, Age: 34}
	bob   = model.Person{ID: "p-bob", Name: "Bob", Gender: model.GenderMale, Age: 36}
	kid   = model.Person{ID: "p-kid", Name: "Kid", Gender: model.GenderMale, Age: 17}
)

// newFixture builds home, work and shop sites with walking and one car
// parked at home.
func newFixture(t *testing.T, routes ...Route) *Handler {
	t.Helper()
	ResetMetrics(prometheus.NewRegistry())
	topo := NewTopology()
	require.NoError(t, topo.AddSite(Site{GUID: "home", Name: "Home", Locations: []string{"living", "garage"}, DeviceChangeAllowed: true}))
	require.NoError(t, topo.AddSite(Site{GUID: "work", Name: "Work", Locations: []string{"office"}}))
	require.NoError(t, topo.AddSite(Site{GUID: "shop", Name: "Shop", Locations: []string{"store"}, DeviceChangeAllowed: true}))
	require.NoError(t, topo.AddCategory(Category{GUID: "walk", Name: "Walking", DefaultSpeed: 1.5}))
	require.NoError(t, topo.AddCategory(Category{GUID: "car", Name: "Car", IsLimitedToSingleLocation: true}))
	require.NoError(t, topo.AddDevice(Device{GUID: "car1", Name: "Car 1", CategoryGUID: "car", Speed: 20, CurrentSite: "home"}))
	for _, r := range routes {
		require.NoError(t, topo.AddRoute(r))
	}
	return NewHandler(topo, NewOwnershipLedger(), time.Minute, logger.NopLogger{})
}

func walkRoute(guid string, weight float64, from, to string) Route {
	return Route{GUID: guid, Name: guid, FromSite: from, ToSite: to, Weight: weight,
		Steps: []Step{{Name: "walk", CategoryGUID: "walk", Distance: 900}}}
}

func driveRoute(guid string, weight float64, from, to string) Route {
	return Route{GUID: guid, Name: guid, FromSite: from, ToSite: to, Weight: weight,
		Steps: []Step{{Name: "drive", CategoryGUID: "car", Distance: 12000}}}
}

func request(p model.Person, loc, dst string, tick model.TimeStep, rnd Rand) Request {
	return Request{SourceLocation: loc, DestSite: dst, Tick: tick, Person: p, Affordance: "go to work", Rand: rnd}
}

func TestSameSiteTripReleasesOwnership(t *testing.T) {
	h := newFixture(t)
	require.NoError(t, h.Ledger().Assign(alice.ID, "car1"))

	res, err := h.ResolveRoute(request(alice, "garage", "home", 5, nil))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSameSite, res.Outcome)
	assert.Zero(t, res.Duration)
	require.NotNil(t, res.Route)
	assert.True(t, res.Route.SameSite)
	_, held := h.Ledger().DeviceOf(alice.ID)
	assert.False(t, held)
}

func TestSameSiteTripKeepsOwnershipWithoutDeviceChange(t *testing.T) {
	h := newFixture(t)
	require.NoError(t, h.Ledger().Assign(alice.ID, "car1"))
	res, err := h.ResolveRoute(request(alice, "office", "work", 0, nil))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSameSite, res.Outcome)
	dev, held := h.Ledger().DeviceOf(alice.ID)
	assert.True(t, held)
	assert.Equal(t, "car1", dev)
}

func TestUnmappedLocationIsIntegrityError(t *testing.T) {
	h := newFixture(t)
	_, err := h.ResolveRoute(request(alice, "attic", "work", 0, rand.New(rand.NewSource(1))))
	assert.True(t, errors.Is(err, model.ErrConfigIntegrity))
}

func TestWeightedSelectionConvergesToRatio(t *testing.T) {
	h := newFixture(t, walkRoute("heavy", 3, "home", "work"), walkRoute("light", 1, "home", "work"))
	rnd := rand.New(rand.NewSource(1))
	counts := map[string]int{}
	const n = 20000
	for i := 0; i < n; i++ {
		res, err := h.ResolveRoute(request(bob, "living", "work", model.TimeStep(i), rnd))
		require.NoError(t, err)
		require.Equal(t, OutcomeRouted, res.Outcome)
		counts[res.Route.GUID]++
	}
	ratio := float64(counts["heavy"]) / float64(counts["light"])
	assert.InDelta(t, 3.0, ratio, 0.3)
}

func TestContendedDeviceFallsBackToWalking(t *testing.T) {
	h := newFixture(t, driveRoute("drive", 100, "home", "work"), walkRoute("walk", 1, "home", "work"))
	require.NoError(t, h.Ledger().Assign(bob.ID, "car1"))
	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		res, err := h.ResolveRoute(request(alice, "living", "work", 0, rnd))
		require.NoError(t, err)
		require.Equal(t, OutcomeRouted, res.Outcome)
		assert.Equal(t, "walk", res.Route.GUID)
		assert.Empty(t, res.Devices)
		assert.Equal(t, 10, res.Duration, "900m at 1.5m/s is ten minutes")
	}
}

func TestContendedDeviceFallsBackToFreeDevice(t *testing.T) {
	h := newFixture(t, driveRoute("drive", 1, "home", "work"))
	require.NoError(t, h.Topology().AddDevice(Device{GUID: "car2", Name: "Car 2", CategoryGUID: "car", Speed: 20, CurrentSite: "home"}))
	require.NoError(t, h.Ledger().Assign(bob.ID, "car1"))

	res, err := h.ResolveRoute(request(alice, "living", "work", 0, rand.New(rand.NewSource(1))))
	require.NoError(t, err)
	require.Equal(t, OutcomeRouted, res.Outcome)
	assert.Equal(t, []string{"car2"}, res.Devices)
	owner, ok := h.Ledger().Owner("car2")
	require.True(t, ok)
	assert.Equal(t, alice.ID, owner)
	owner, _ = h.Ledger().Owner("car1")
	assert.Equal(t, bob.ID, owner)
}

func TestContendedDeviceWithoutAlternativeIsBlocked(t *testing.T) {
	h := newFixture(t, driveRoute("drive", 1, "home", "work"))
	require.NoError(t, h.Ledger().Assign(bob.ID, "car1"))
	res, err := h.ResolveRoute(request(alice, "living", "work", 0, rand.New(rand.NewSource(1))))
	require.NoError(t, err)
	assert.Equal(t, OutcomeBlocked, res.Outcome)
	assert.Nil(t, res.Route)
	assert.Equal(t, 1.0, testutil.ToFloat64(routeResolutions.WithLabelValues("blocked")))
}

func TestDriveCommitsDeviceAndOwnership(t *testing.T) {
	h := newFixture(t, driveRoute("drive", 1, "home", "work"), driveRoute("back", 1, "work", "home"))
	rnd := rand.New(rand.NewSource(1))

	res, err := h.ResolveRoute(request(alice, "garage", "work", 100, rnd))
	require.NoError(t, err)
	require.Equal(t, OutcomeRouted, res.Outcome)
	assert.Equal(t, 10, res.Duration, "12km at 20m/s is ten minutes")
	assert.Equal(t, []string{"car1"}, res.Devices)

	car, _ := h.Topology().Device("car1")
	assert.Equal(t, "work", car.CurrentSite)
	assert.Equal(t, model.TimeStep(110), car.BusyUntil)
	owner, _ := h.Ledger().Owner("car1")
	assert.Equal(t, alice.ID, owner)

	// Bob at work cannot take Alice's car.
	res, err = h.ResolveRoute(request(bob, "office", "home", 120, rnd))
	require.NoError(t, err)
	assert.Equal(t, OutcomeBlocked, res.Outcome)

	// Alice drives home; home allows device changes so the car is released.
	res, err = h.ResolveRoute(request(alice, "office", "home", 120, rnd))
	require.NoError(t, err)
	require.Equal(t, OutcomeRouted, res.Outcome)
	assert.Equal(t, "home", car.CurrentSite)
	assert.Zero(t, h.Ledger().Len())
}

func TestBusyDeviceIsNotReused(t *testing.T) {
	h := newFixture(t, driveRoute("drive", 1, "home", "shop"), driveRoute("drive-back", 1, "shop", "home"))
	rnd := rand.New(rand.NewSource(1))
	res, err := h.ResolveRoute(request(alice, "living", "shop", 0, rnd))
	require.NoError(t, err)
	require.Equal(t, OutcomeRouted, res.Outcome)
	// The shop allows device changes: the car is free but still in transit.
	assert.Zero(t, h.Ledger().Len())

	res, err = h.ResolveRoute(request(bob, "store", "home", 5, rnd))
	require.NoError(t, err)
	assert.Equal(t, OutcomeBlocked, res.Outcome)

	res, err = h.ResolveRoute(request(bob, "store", "home", 10, rnd))
	require.NoError(t, err)
	assert.Equal(t, OutcomeRouted, res.Outcome)
}

func TestMinimumAgeIsNeverViolated(t *testing.T) {
	adult := walkRoute("adult", 1000, "home", "work")
	adult.MinAge = 18
	h := newFixture(t, adult, walkRoute("any", 1, "home", "work"))
	rnd := rand.New(rand.NewSource(3))
	for i := 0; i < 200; i++ {
		res, err := h.ResolveRoute(request(kid, "living", "work", 0, rnd))
		require.NoError(t, err)
		require.Equal(t, OutcomeRouted, res.Outcome)
		assert.Equal(t, "any", res.Route.GUID)
	}
}

func TestEligibilityPredicates(t *testing.T) {
	female := walkRoute("female", 1, "home", "work")
	female.Gender = model.GenderFemale
	bound := walkRoute("bound", 1, "home", "work")
	bound.PersonID = bob.ID
	senior := walkRoute("senior", 1, "home", "work")
	senior.MaxAge = 30
	senior.MinAge = 20

	tests := []struct {
		name   string
		route  Route
		person model.Person
		want   Outcome
	}{
		{"gender match", female, alice, OutcomeRouted},
		{"gender mismatch", female, bob, OutcomeBlocked},
		{"requester gender all", female, model.Person{ID: "x", Age: 40}, OutcomeRouted},
		{"bound to requester", bound, bob, OutcomeRouted},
		{"bound to someone else", bound, alice, OutcomeBlocked},
		{"above max age", senior, alice, OutcomeBlocked},
		{"within age range", senior, model.Person{ID: "y", Age: 25}, OutcomeRouted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newFixture(t, tt.route)
			res, err := h.ResolveRoute(request(tt.person, "living", "work", 0, rand.New(rand.NewSource(1))))
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Outcome)
		})
	}
}

func TestTaggingSetRestrictsRoutes(t *testing.T) {
	commute := walkRoute("commute", 1, "home", "work")
	commute.TaggingSetGUID, commute.Tag = "ts", "commute"
	leisure := walkRoute("leisure", 1000, "home", "work")
	leisure.TaggingSetGUID, leisure.Tag = "ts", "leisure"
	h := newFixture(t, commute, leisure)
	h.Topology().AddTaggingSet(TaggingSet{GUID: "ts", Name: "Travel purpose", Tags: map[string]string{"go to work": "commute"}})

	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		res, err := h.ResolveRoute(request(alice, "living", "work", 0, rnd))
		require.NoError(t, err)
		assert.Equal(t, "commute", res.Route.GUID)
	}

	req := request(alice, "living", "work", 0, rnd)
	req.Affordance = "take a walk"
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		res, err := h.ResolveRoute(req)
		require.NoError(t, err)
		seen[res.Route.GUID] = true
	}
	assert.True(t, seen["leisure"], "untagged affordance may use every route")
}

func TestUnknownTaggingSetIsIntegrityError(t *testing.T) {
	r := walkRoute("tagged", 1, "home", "work")
	r.TaggingSetGUID, r.Tag = "missing", "x"
	h := newFixture(t, r)
	_, err := h.ResolveRoute(request(alice, "living", "work", 0, rand.New(rand.NewSource(1))))
	assert.True(t, errors.Is(err, model.ErrConfigIntegrity))
}

func TestPickWeightedFallsBackToLast(t *testing.T) {
	pool := []*Route{{GUID: "a"}, {GUID: "b"}}
	assert.Equal(t, 1, pickWeighted(pool, rand.New(rand.NewSource(1))), "zero total weight")
}

func TestOwnershipLedger(t *testing.T) {
	l := NewOwnershipLedger()
	require.NoError(t, l.Assign("alice", "car1"))
	require.NoError(t, l.Assign("alice", "bike1"))
	_, owned := l.Owner("car1")
	assert.False(t, owned, "new binding supersedes the old one")
	assert.Error(t, l.Assign("bob", "bike1"))
	assert.Equal(t, 1, l.Len())
	l.Release("alice")
	assert.Zero(t, l.Len())
	l.Release("alice")
}

func TestTopologyIntegrity(t *testing.T) {
	topo := NewTopology()
	require.NoError(t, topo.AddSite(Site{GUID: "a", Name: "A", Locations: []string{"l1"}}))
	err := topo.AddSite(Site{GUID: "b", Name: "B", Locations: []string{"l1"}})
	assert.True(t, errors.Is(err, model.ErrConfigIntegrity))
	err = topo.AddRoute(Route{Name: "r", FromSite: "a", ToSite: "nowhere"})
	assert.True(t, errors.Is(err, model.ErrConfigIntegrity))
	err = topo.AddRoute(Route{Name: "r", FromSite: "a", ToSite: "a", Weight: -1})
	assert.True(t, errors.Is(err, model.ErrConfigIntegrity))
	assert.Empty(t, topo.Routes())
	err = topo.AddDevice(Device{GUID: "d", CategoryGUID: "nope", CurrentSite: "a"})
	assert.True(t, errors.Is(err, model.ErrConfigIntegrity))

	site, err := topo.SiteForLocation("l1")
	require.NoError(t, err)
	assert.Equal(t, "a", site)
	assert.True(t, topo.SameSiteRoute("a").SameSite)
	assert.Len(t, topo.Sites(), 1)
}
