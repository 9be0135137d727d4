package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/fault"
	"ride-dispatch/internal/domain/offer"
	"ride-dispatch/internal/domain/ride"
)

func TestAcceptOfferWinnerTakesRide(t *testing.T) {
	f := newFixture(t)
	f.seedDriver(t, "d1", driver.Online)
	f.seedDriver(t, "d2", driver.Online)

	rd, offers := f.seedRideWithOffers(t, "p1", 15*time.Second, "d1", "d2")

	res, err := f.svc.AcceptOffer(context.Background(), "d1", offers["d1"].ID)
	if err != nil {
		t.Fatalf("AcceptOffer: %v", err)
	}
	if res.Ride.Status != "ACCEPTED" || res.Ride.Driver == nil || res.Ride.Driver.ID != "d1" {
		t.Errorf("ride view = %+v, want ACCEPTED with driver d1", res.Ride)
	}
	if res.Passenger.ID != "p1" || res.Passenger.Phone == "" {
		t.Errorf("passenger contact missing: %+v", res.Passenger)
	}

	if got := f.driverAvailability(t, "d1"); got != driver.Busy {
		t.Errorf("winner availability = %s, want BUSY", got)
	}
	if got := f.offerStatus(t, offers["d1"].ID); got != offer.StatusAccepted {
		t.Errorf("winning offer = %s, want ACCEPTED", got)
	}
	// the loser's offer for the same ride dies with the win
	if got := f.offerStatus(t, offers["d2"].ID); got != offer.StatusExpired {
		t.Errorf("sibling offer = %s, want EXPIRED", got)
	}

	got, _ := f.rides.GetByID(context.Background(), rd.ID)
	if got.AssignedDriverID == nil || *got.AssignedDriverID != "d1" {
		t.Errorf("ride assignment = %v, want d1", got.AssignedDriverID)
	}
}

func TestAcceptOfferExactlyOneWinner(t *testing.T) {
	f := newFixture(t)
	f.seedDriver(t, "d1", driver.Online)
	f.seedDriver(t, "d2", driver.Online)

	_, offers := f.seedRideWithOffers(t, "p1", 15*time.Second, "d1", "d2")

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, id := range []string{"d1", "d2"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.svc.AcceptOffer(context.Background(), id, offers[id].ID)
		}(i, id)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case fault.IsKind(err, fault.KindConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Fatalf("wins = %d conflicts = %d, want exactly one of each", wins, conflicts)
	}
}

func TestAcceptOfferExpiredResolvesRow(t *testing.T) {
	f := newFixture(t)
	f.seedDriver(t, "d1", driver.Online)

	rd, offers := f.seedRideWithOffers(t, "p1", 5*time.Second, "d1")
	f.clk.Advance(6 * time.Second)

	_, err := f.svc.AcceptOffer(context.Background(), "d1", offers["d1"].ID)
	if !fault.IsKind(err, fault.KindConflict) {
		t.Fatalf("err = %v, want Conflict", err)
	}
	// the dead row is settled even though the acceptance failed
	if got := f.offerStatus(t, offers["d1"].ID); got != offer.StatusExpired {
		t.Errorf("offer = %s, want EXPIRED", got)
	}
	if got := f.driverAvailability(t, "d1"); got != driver.Online {
		t.Errorf("driver availability = %s, want ONLINE", got)
	}

	got, _ := f.rides.GetByID(context.Background(), rd.ID)
	if got.AssignedDriverID != nil {
		t.Errorf("ride assigned to %v after expired accept", *got.AssignedDriverID)
	}
}

func TestAcceptOfferWhileBusyOnAnotherRide(t *testing.T) {
	f := newFixture(t)
	f.seedDriver(t, "d1", driver.Online)

	_, first := f.seedRideWithOffers(t, "p1", 15*time.Second, "d1")
	acceptRide(t, f, "d1", first["d1"])

	// a second search reaches the same driver while the first ride is running
	rd2, second := f.seedRideWithOffers(t, "p2", 15*time.Second, "d1")

	_, err := f.svc.AcceptOffer(context.Background(), "d1", second["d1"].ID)
	if !fault.IsKind(err, fault.KindConflict) {
		t.Fatalf("second accept err = %v, want Conflict", err)
	}

	got, _ := f.rides.GetByID(context.Background(), rd2.ID)
	if got.AssignedDriverID != nil || got.Status != ride.StatusSearching {
		t.Errorf("second ride = %s assigned %v, want unassigned SEARCHING", got.Status, got.AssignedDriverID)
	}
	if got := f.driverAvailability(t, "d1"); got != driver.Busy {
		t.Errorf("driver availability = %s, want BUSY", got)
	}
}

func TestAcceptOfferExpiresOffersOnOtherRides(t *testing.T) {
	f := newFixture(t)
	f.seedDriver(t, "d1", driver.Online)

	_, first := f.seedRideWithOffers(t, "p1", 15*time.Second, "d1")
	rd2, second := f.seedRideWithOffers(t, "p2", 15*time.Second, "d1")

	acceptRide(t, f, "d1", first["d1"])

	if got := f.offerStatus(t, second["d1"].ID); got != offer.StatusExpired {
		t.Errorf("offer on the other ride = %s, want EXPIRED", got)
	}
	got, _ := f.rides.GetByID(context.Background(), rd2.ID)
	if got.AssignedDriverID != nil {
		t.Errorf("other ride gained a driver: %v", *got.AssignedDriverID)
	}
}

func TestAcceptOfferForeignOffer(t *testing.T) {
	f := newFixture(t)
	f.seedDriver(t, "d1", driver.Online)
	f.seedDriver(t, "d2", driver.Online)

	_, offers := f.seedRideWithOffers(t, "p1", 15*time.Second, "d1")

	_, err := f.svc.AcceptOffer(context.Background(), "d2", offers["d1"].ID)
	if !fault.IsKind(err, fault.KindForbidden) {
		t.Errorf("err = %v, want Forbidden", err)
	}
	if got := f.offerStatus(t, offers["d1"].ID); got != offer.StatusSent {
		t.Errorf("offer = %s, want untouched SENT", got)
	}
}

func TestAcceptOfferAfterRideCanceled(t *testing.T) {
	f := newFixture(t)
	f.seedDriver(t, "d1", driver.Online)

	rd, offers := f.seedRideWithOffers(t, "p1", 15*time.Second, "d1")
	if _, err := f.rides.CancelIfActive(context.Background(), rd.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	_, err := f.svc.AcceptOffer(context.Background(), "d1", offers["d1"].ID)
	if !fault.IsKind(err, fault.KindConflict) {
		t.Fatalf("err = %v, want Conflict", err)
	}
	if got := f.offerStatus(t, offers["d1"].ID); got != offer.StatusExpired {
		t.Errorf("offer = %s, want EXPIRED", got)
	}
	if got := f.driverAvailability(t, "d1"); got != driver.Online {
		t.Errorf("driver availability = %s, want ONLINE", got)
	}
}

func TestActiveOffersSweepsOverdueRows(t *testing.T) {
	f := newFixture(t)
	f.seedDriver(t, "d1", driver.Online)

	rdOld, oldOffers := f.seedRideWithOffers(t, "p1", 5*time.Second, "d1")
	f.clk.Advance(6 * time.Second)
	rdNew, _ := f.seedRideWithOffers(t, "p2", 15*time.Second, "d1")

	views, err := f.svc.ActiveOffers(context.Background(), "d1")
	if err != nil {
		t.Fatalf("ActiveOffers: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("active offers = %d, want 1", len(views))
	}
	if views[0].Ride.ID != rdNew.ID || views[0].Ride.Pickup.Address == "" {
		t.Errorf("offer view = %+v, want ride %s with pickup", views[0], rdNew.ID)
	}
	if got := f.offerStatus(t, oldOffers["d1"].ID); got != offer.StatusExpired {
		t.Errorf("overdue offer for ride %s = %s, want EXPIRED", rdOld.ID, got)
	}
}

func TestActiveOffersEmpty(t *testing.T) {
	f := newFixture(t)
	f.seedDriver(t, "d1", driver.Online)

	views, err := f.svc.ActiveOffers(context.Background(), "d1")
	if err != nil {
		t.Fatalf("ActiveOffers: %v", err)
	}
	if len(views) != 0 {
		t.Errorf("active offers = %d, want 0", len(views))
	}
}

// acceptRide is a shared shortcut: the driver wins the seeded ride.
func acceptRide(t *testing.T, f *fixture, driverID string, o *offer.Offer) *ride.Ride {
	t.Helper()
	res, err := f.svc.AcceptOffer(context.Background(), driverID, o.ID)
	if err != nil {
		t.Fatalf("AcceptOffer: %v", err)
	}
	rd, err := f.rides.GetByID(context.Background(), res.Ride.ID)
	if err != nil {
		t.Fatalf("get ride: %v", err)
	}
	return rd
}
