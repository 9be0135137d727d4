package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/offer"
	"ride-dispatch/internal/domain/passenger"
	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/general/config"
	"ride-dispatch/internal/general/logger"
	"ride-dispatch/internal/general/memory"
	"ride-dispatch/internal/ports"
)

// fakeClock is a settable clock shared by the service under test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeScheduler records scheduled callbacks; tests fire them explicitly.
type fakeScheduler struct {
	mu    sync.Mutex
	calls []*scheduledCall
}

type scheduledCall struct {
	delay    time.Duration
	fn       func()
	canceled bool
	fired    bool
}

func (s *fakeScheduler) Schedule(d time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	call := &scheduledCall{delay: d, fn: fn}
	s.calls = append(s.calls, call)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		call.canceled = true
	}
}

// pending counts callbacks that have neither fired nor been canceled.
func (s *fakeScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if !c.fired && !c.canceled {
			n++
		}
	}
	return n
}

// fireNext runs the oldest pending callback synchronously.
func (s *fakeScheduler) fireNext(t *testing.T) {
	t.Helper()
	s.mu.Lock()
	var next *scheduledCall
	for _, c := range s.calls {
		if !c.fired && !c.canceled {
			next = c
			break
		}
	}
	if next != nil {
		next.fired = true
	}
	s.mu.Unlock()

	if next == nil {
		t.Fatal("no pending scheduled callback")
	}
	next.fn()
}

// nopNotifier drops every event.
type nopNotifier struct{}

func (nopNotifier) OfferSent(context.Context, *offer.Offer, *ride.Ride) {}
func (nopNotifier) RideStatusChanged(context.Context, *ride.Ride)      {}

// fixture wires the dispatch service over the in-memory store.
type fixture struct {
	store  *memory.Store
	rides  ports.RideRepository
	offers ports.OfferRepository
	drv    ports.DriverRepository
	cfg    *config.Config
	clk    *fakeClock
	sched  *fakeScheduler
	svc    *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	f := &fixture{
		store:  store,
		rides:  memory.NewRideRepo(store),
		offers: memory.NewOfferRepo(store),
		drv:    memory.NewDriverRepo(store),
		cfg:    config.Default(),
		clk:    newFakeClock(),
		sched:  &fakeScheduler{},
	}
	f.svc = New(Deps{
		Logger:     logger.New("dispatch-test"),
		Cfg:        f.cfg,
		UoW:        store,
		Rides:      f.rides,
		Offers:     f.offers,
		Drivers:    f.drv,
		Passengers: memory.NewPassengerRepo(store),
		Notifier:   nopNotifier{},
		Clock:      f.clk,
		Scheduler:  f.sched,
	})
	return f
}

func (f *fixture) seedPassenger(t *testing.T, id string) {
	t.Helper()
	f.store.SeedPassenger(&passenger.Passenger{ID: id, Name: "P " + id, Phone: "+7700" + id})
}

func (f *fixture) seedDriver(t *testing.T, id string, availability driver.Availability, lat, lng *float64) {
	t.Helper()
	f.store.SeedDriver(&driver.Driver{
		ID: id, Name: "D " + id, Phone: "+7701" + id,
		Availability: availability, Lat: lat, Lng: lng,
	})
}

// seedSearchingRide stores a ride already in SEARCHING, the state rides enter
// dispatch in.
func (f *fixture) seedSearchingRide(t *testing.T, passengerID string, lat, lng *float64) *ride.Ride {
	t.Helper()
	rd, err := ride.New(passengerID,
		ride.Stop{Address: "Abay 10", Lat: lat, Lng: lng},
		ride.Stop{Address: "Dostyk 91"},
		ride.StatusSearching,
	)
	if err != nil {
		t.Fatalf("ride.New: %v", err)
	}
	rd.CreatedAt = f.clk.Now()
	rd.SearchRadiusKm = f.cfg.Dispatch.Phases[0].RadiusKm
	if err := f.rides.Create(context.Background(), rd); err != nil {
		t.Fatalf("create ride: %v", err)
	}
	return rd
}

func (f *fixture) rideStatus(t *testing.T, id string) ride.Status {
	t.Helper()
	rd, err := f.rides.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get ride: %v", err)
	}
	return rd.Status
}

func (f *fixture) activeOfferCount(t *testing.T, rideID string) int64 {
	t.Helper()
	var n int64
	err := f.store.WithinTx(context.Background(), func(ctx context.Context) error {
		var err error
		n, err = f.offers.CountActiveForRide(ctx, rideID, f.clk.Now())
		return err
	})
	if err != nil {
		t.Fatalf("count offers: %v", err)
	}
	return n
}

func ptr(v float64) *float64 { return &v }

// waitFor polls until cond holds or the deadline passes; used for the few
// paths that run in their own goroutine (startup recovery).
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
