package service

import (
	"context"
	"testing"
	"time"

	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/ride"
)

// Pickup in central Almaty; driver offsets are chosen along the same
// longitude so distance is latitude delta times ~111.19 km.
var (
	pickupLat = 43.2389
	pickupLng = 76.8897

	nearLat = 43.2659 // ~3 km from pickup
	midLat  = 43.3019 // ~7 km: outside phase 1/2, inside phase 3
	farLat  = 43.3469 // ~12 km: outside every phase
)

func TestRunPhaseOffersOnlyDriversInRadius(t *testing.T) {
	f := newFixture(t)
	f.seedPassenger(t, "p1")
	f.seedDriver(t, "near", driver.Online, ptr(nearLat), ptr(pickupLng))
	f.seedDriver(t, "mid", driver.Online, ptr(midLat), ptr(pickupLng))
	f.seedDriver(t, "far", driver.Online, ptr(farLat), ptr(pickupLng))
	f.seedDriver(t, "offline", driver.Offline, ptr(nearLat), ptr(pickupLng))
	f.seedDriver(t, "busy", driver.Busy, ptr(nearLat), ptr(pickupLng))
	f.seedDriver(t, "nowhere", driver.Online, nil, nil)

	rd := f.seedSearchingRide(t, "p1", ptr(pickupLat), ptr(pickupLng))
	f.svc.runPhase(context.Background(), rd.ID, 1)

	if got := f.activeOfferCount(t, rd.ID); got != 1 {
		t.Fatalf("active offers = %d, want 1 (near only)", got)
	}
	active, err := f.offers.ListActiveForDriver(context.Background(), "near", f.clk.Now(), 10)
	if err != nil || len(active) != 1 {
		t.Fatalf("near driver offers = %d (err %v), want 1", len(active), err)
	}
	if got := active[0].ExpiresAt; !got.Equal(f.clk.Now().Add(15 * time.Second)) {
		t.Errorf("offer deadline = %v, want phase TTL of 15s", got)
	}

	got, _ := f.rides.GetByID(context.Background(), rd.ID)
	if got.Status != ride.StatusSearching || got.Phase != 1 || got.SearchRadiusKm != 5 {
		t.Errorf("ride after phase 1 = %s phase %d radius %v", got.Status, got.Phase, got.SearchRadiusKm)
	}
	if f.sched.pending() != 1 {
		t.Errorf("pending timers = %d, want 1", f.sched.pending())
	}
}

func TestEmptyPhasesAdvanceImmediately(t *testing.T) {
	f := newFixture(t)
	f.seedPassenger(t, "p1")
	// only reachable in phase 3 (10 km)
	f.seedDriver(t, "mid", driver.Online, ptr(midLat), ptr(pickupLng))

	rd := f.seedSearchingRide(t, "p1", ptr(pickupLat), ptr(pickupLng))
	f.svc.runPhase(context.Background(), rd.ID, 1)

	got, _ := f.rides.GetByID(context.Background(), rd.ID)
	if got.Phase != 3 || got.SearchRadiusKm != 10 {
		t.Fatalf("ride = phase %d radius %v, want phase 3 radius 10", got.Phase, got.SearchRadiusKm)
	}
	if got := f.activeOfferCount(t, rd.ID); got != 1 {
		t.Fatalf("active offers = %d, want 1", got)
	}
	// phases 1 and 2 had nobody to wait for, so only phase 3 armed a timer
	if f.sched.pending() != 1 {
		t.Errorf("pending timers = %d, want 1", f.sched.pending())
	}
}

func TestNoDriversFailsWithoutWaiting(t *testing.T) {
	f := newFixture(t)
	f.seedPassenger(t, "p1")

	rd := f.seedSearchingRide(t, "p1", ptr(pickupLat), ptr(pickupLng))
	f.svc.runPhase(context.Background(), rd.ID, 1)

	if got := f.rideStatus(t, rd.ID); got != ride.StatusFailed {
		t.Fatalf("ride status = %s, want FAILED", got)
	}
	if f.sched.pending() != 0 {
		t.Errorf("pending timers = %d, want 0", f.sched.pending())
	}
}

func TestRideWithoutCoordinatesGoesToAllOnlineDrivers(t *testing.T) {
	f := newFixture(t)
	f.seedPassenger(t, "p1")
	f.seedDriver(t, "far", driver.Online, ptr(farLat), ptr(pickupLng))
	f.seedDriver(t, "nowhere", driver.Online, nil, nil)
	f.seedDriver(t, "offline", driver.Offline, nil, nil)

	rd := f.seedSearchingRide(t, "p1", nil, nil)
	f.svc.runPhase(context.Background(), rd.ID, 1)

	if got := f.activeOfferCount(t, rd.ID); got != 2 {
		t.Fatalf("active offers = %d, want 2 (every online driver)", got)
	}
}

func TestPhaseEndSweepsAndExhaustionFails(t *testing.T) {
	f := newFixture(t)
	f.seedPassenger(t, "p1")
	f.seedDriver(t, "near", driver.Online, ptr(nearLat), ptr(pickupLng))

	rd := f.seedSearchingRide(t, "p1", ptr(pickupLat), ptr(pickupLng))
	f.svc.runPhase(context.Background(), rd.ID, 1)

	// the driver ignores the offer; the phase window closes
	f.clk.Advance(15 * time.Second)
	f.sched.fireNext(t)

	// the driver already had their one offer for this ride, so phases 2 and
	// 3 have nobody new and the ride fails
	if got := f.rideStatus(t, rd.ID); got != ride.StatusFailed {
		t.Fatalf("ride status = %s, want FAILED", got)
	}
	if got := f.activeOfferCount(t, rd.ID); got != 0 {
		t.Errorf("active offers = %d, want 0", got)
	}
	active, _ := f.offers.ListActiveForDriver(context.Background(), "near", f.clk.Now(), 10)
	if len(active) != 0 {
		t.Errorf("driver still sees %d active offers", len(active))
	}
}

func TestExhaustionRechecksForLateDrivers(t *testing.T) {
	f := newFixture(t)
	f.seedPassenger(t, "p1")
	// only reachable in phase 3
	f.seedDriver(t, "early", driver.Online, ptr(midLat), ptr(pickupLng))

	rd := f.seedSearchingRide(t, "p1", ptr(pickupLat), ptr(pickupLng))
	f.svc.runPhase(context.Background(), rd.ID, 1)

	// the phase 3 offer lapses; a new driver comes online just before the
	// search would be declared dead
	f.clk.Advance(12 * time.Second)
	f.seedDriver(t, "late", driver.Online, ptr(nearLat), ptr(pickupLng))
	f.sched.fireNext(t)

	if got := f.rideStatus(t, rd.ID); got != ride.StatusSearching {
		t.Fatalf("ride status = %s, want SEARCHING during the final wave", got)
	}
	active, err := f.offers.ListActiveForDriver(context.Background(), "late", f.clk.Now(), 10)
	if err != nil || len(active) != 1 {
		t.Fatalf("late driver offers = %d (err %v), want 1", len(active), err)
	}

	// the final wave goes unanswered too
	f.clk.Advance(12 * time.Second)
	f.sched.fireNext(t)
	if got := f.rideStatus(t, rd.ID); got != ride.StatusFailed {
		t.Fatalf("ride status = %s, want FAILED after the final wave", got)
	}
	if got := f.activeOfferCount(t, rd.ID); got != 0 {
		t.Errorf("active offers = %d, want 0", got)
	}
}

func TestPhaseEndIsStaleAfterAcceptance(t *testing.T) {
	f := newFixture(t)
	f.seedPassenger(t, "p1")
	f.seedDriver(t, "near", driver.Online, ptr(nearLat), ptr(pickupLng))

	rd := f.seedSearchingRide(t, "p1", ptr(pickupLat), ptr(pickupLng))
	f.svc.runPhase(context.Background(), rd.ID, 1)

	// the driver wins the ride before the window closes
	count, err := f.rides.AssignDriverIfUnassigned(context.Background(), rd.ID, "near")
	if err != nil || count != 1 {
		t.Fatalf("assign = %d (err %v), want 1", count, err)
	}

	f.clk.Advance(15 * time.Second)
	f.sched.fireNext(t)

	if got := f.rideStatus(t, rd.ID); got != ride.StatusAccepted {
		t.Fatalf("ride status after stale timer = %s, want ACCEPTED", got)
	}
}
