package service

import (
	"context"
	"testing"
	"time"

	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/ride"
)

func TestRecoverExpiredPhaseRunsPhaseEndNow(t *testing.T) {
	f := newFixture(t)
	f.seedPassenger(t, "p1")
	// only reachable in phase 3
	f.seedDriver(t, "mid", driver.Online, ptr(midLat), ptr(pickupLng))

	rd := f.seedSearchingRide(t, "p1", ptr(pickupLat), ptr(pickupLng))
	past := f.clk.Now().Add(-time.Second)
	if _, err := f.rides.UpdatePhase(context.Background(), rd.ID, 1, 5, past); err != nil {
		t.Fatalf("seed phase: %v", err)
	}

	if err := f.svc.Recover(context.Background()); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	// the expired phase 1 is driven forward; phases 2 and 3 run back to back
	// and phase 3 finally reaches the driver
	waitFor(t, func() bool { return f.activeOfferCount(t, rd.ID) == 1 })
	got, _ := f.rides.GetByID(context.Background(), rd.ID)
	if got.Phase != 3 {
		t.Errorf("ride phase after recovery = %d, want 3", got.Phase)
	}
}

func TestRecoverPendingPhaseRearmsRemainder(t *testing.T) {
	f := newFixture(t)
	f.seedPassenger(t, "p1")
	f.seedDriver(t, "near", driver.Online, ptr(nearLat), ptr(pickupLng))

	rd := f.seedSearchingRide(t, "p1", ptr(pickupLat), ptr(pickupLng))
	deadline := f.clk.Now().Add(10 * time.Second)
	if _, err := f.rides.UpdatePhase(context.Background(), rd.ID, 1, 5, deadline); err != nil {
		t.Fatalf("seed phase: %v", err)
	}

	if err := f.svc.Recover(context.Background()); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	// nothing runs immediately, only the timer is re-armed
	if f.sched.pending() != 1 {
		t.Fatalf("pending timers = %d, want 1", f.sched.pending())
	}
	if got := f.rideStatus(t, rd.ID); got != ride.StatusSearching {
		t.Fatalf("ride status = %s, want SEARCHING", got)
	}

	// when the remainder elapses the phase ends and dispatch continues
	f.clk.Advance(10 * time.Second)
	f.sched.fireNext(t)
	got, _ := f.rides.GetByID(context.Background(), rd.ID)
	if got.Phase != 2 {
		t.Errorf("ride phase after re-armed deadline = %d, want 2", got.Phase)
	}
}

func TestRecoverMissingDeadlineRerunsPhase(t *testing.T) {
	f := newFixture(t)
	f.seedPassenger(t, "p1")
	f.seedDriver(t, "near", driver.Online, ptr(nearLat), ptr(pickupLng))

	// crash before the first phase write: SEARCHING with no deadline
	rd := f.seedSearchingRide(t, "p1", ptr(pickupLat), ptr(pickupLng))

	if err := f.svc.Recover(context.Background()); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	waitFor(t, func() bool { return f.activeOfferCount(t, rd.ID) == 1 })
	got, _ := f.rides.GetByID(context.Background(), rd.ID)
	if got.Phase != 1 || got.PhaseExpiresAt == nil {
		t.Errorf("ride after recovery = phase %d deadline %v", got.Phase, got.PhaseExpiresAt)
	}
}

func TestRecoverIgnoresSettledRides(t *testing.T) {
	f := newFixture(t)
	f.seedPassenger(t, "p1")

	rd := f.seedSearchingRide(t, "p1", nil, nil)
	if _, err := f.rides.CancelIfActive(context.Background(), rd.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if err := f.svc.Recover(context.Background()); err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if f.sched.pending() != 0 {
		t.Errorf("pending timers = %d, want 0", f.sched.pending())
	}
	if got := f.rideStatus(t, rd.ID); got != ride.StatusCanceled {
		t.Errorf("ride status = %s, want CANCELED", got)
	}
}
