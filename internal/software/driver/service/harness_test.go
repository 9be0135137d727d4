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

type nopNotifier struct{}

func (nopNotifier) OfferSent(context.Context, *offer.Offer, *ride.Ride) {}
func (nopNotifier) RideStatusChanged(context.Context, *ride.Ride)      {}

// fixture wires the driver service over the in-memory store.
type fixture struct {
	store  *memory.Store
	rides  ports.RideRepository
	offers ports.OfferRepository
	drv    ports.DriverRepository
	clk    *fakeClock
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
		clk:    newFakeClock(),
	}
	f.svc = New(Deps{
		Logger:     logger.New("driver-test"),
		Cfg:        config.Default(),
		UoW:        store,
		Rides:      f.rides,
		Offers:     f.offers,
		Drivers:    f.drv,
		Passengers: memory.NewPassengerRepo(store),
		Notifier:   nopNotifier{},
		Clock:      f.clk,
	})
	return f
}

func (f *fixture) seedDriver(t *testing.T, id string, availability driver.Availability) {
	t.Helper()
	f.store.SeedDriver(&driver.Driver{
		ID: id, Name: "D " + id, Phone: "+7701" + id, Availability: availability,
	})
}

// seedRideWithOffers stores a SEARCHING ride plus one SENT offer per driver,
// all expiring after ttl.
func (f *fixture) seedRideWithOffers(t *testing.T, passengerID string, ttl time.Duration, driverIDs ...string) (*ride.Ride, map[string]*offer.Offer) {
	t.Helper()

	f.store.SeedPassenger(&passenger.Passenger{ID: passengerID, Name: "P", Phone: "+7700" + passengerID})

	rd, err := ride.New(passengerID,
		ride.Stop{Address: "Abay 10"},
		ride.Stop{Address: "Dostyk 91"},
		ride.StatusSearching,
	)
	if err != nil {
		t.Fatalf("ride.New: %v", err)
	}
	if err := f.rides.Create(context.Background(), rd); err != nil {
		t.Fatalf("create ride: %v", err)
	}

	now := f.clk.Now()
	byDriver := make(map[string]*offer.Offer, len(driverIDs))
	batch := make([]*offer.Offer, 0, len(driverIDs))
	for _, id := range driverIDs {
		o, err := offer.New(rd.ID, id, now, now.Add(ttl))
		if err != nil {
			t.Fatalf("offer.New: %v", err)
		}
		batch = append(batch, o)
		byDriver[id] = o
	}
	if _, err := f.offers.CreateSkipDuplicates(context.Background(), batch); err != nil {
		t.Fatalf("create offers: %v", err)
	}
	return rd, byDriver
}

func (f *fixture) offerStatus(t *testing.T, id string) offer.Status {
	t.Helper()
	var o *offer.Offer
	err := f.store.WithinTx(context.Background(), func(ctx context.Context) error {
		var err error
		o, err = f.offers.GetByID(ctx, id)
		return err
	})
	if err != nil {
		t.Fatalf("get offer: %v", err)
	}
	return o.Status
}

func (f *fixture) driverAvailability(t *testing.T, id string) driver.Availability {
	t.Helper()
	d, err := f.drv.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get driver: %v", err)
	}
	return d.Availability
}

func onlinePtr(v bool) *bool { return &v }
