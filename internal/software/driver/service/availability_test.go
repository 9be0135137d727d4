package service

import (
	"context"
	"testing"
	"time"

	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/fault"
	"ride-dispatch/internal/ports"
)

func availPtr(a driver.Availability) *driver.Availability { return &a }

func TestSetAvailability(t *testing.T) {
	f := newFixture(t)
	f.seedDriver(t, "d1", driver.Offline)

	tests := []struct {
		name string
		in   ports.SetAvailabilityInput
		want driver.Availability
		kind fault.Kind
	}{
		{
			name: "explicit online",
			in:   ports.SetAvailabilityInput{DriverID: "d1", Availability: availPtr(driver.Online)},
			want: driver.Online,
		},
		{
			name: "is_online flag off",
			in:   ports.SetAvailabilityInput{DriverID: "d1", IsOnline: onlinePtr(false)},
			want: driver.Offline,
		},
		{
			name: "same value is a no-op",
			in:   ports.SetAvailabilityInput{DriverID: "d1", IsOnline: onlinePtr(false)},
			want: driver.Offline,
		},
		{
			name: "busy cannot be requested",
			in:   ports.SetAvailabilityInput{DriverID: "d1", Availability: availPtr(driver.Busy)},
			kind: fault.KindConflict,
		},
		{
			name: "neither field set",
			in:   ports.SetAvailabilityInput{DriverID: "d1"},
			kind: fault.KindInvalidArgument,
		},
		{
			name: "unknown driver",
			in:   ports.SetAvailabilityInput{DriverID: "ghost", IsOnline: onlinePtr(true)},
			kind: fault.KindNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := f.svc.SetAvailability(context.Background(), tt.in)
			if tt.kind != "" {
				if !fault.IsKind(err, tt.kind) {
					t.Fatalf("err = %v, want kind %s", err, tt.kind)
				}
				return
			}
			if err != nil {
				t.Fatalf("SetAvailability: %v", err)
			}
			if view.Availability != tt.want.String() {
				t.Errorf("availability = %s, want %s", view.Availability, tt.want)
			}
			if got := f.driverAvailability(t, tt.in.DriverID); got != tt.want {
				t.Errorf("stored availability = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSetAvailabilityWhileBusy(t *testing.T) {
	f := newFixture(t)
	f.seedDriver(t, "d1", driver.Online)

	_, offers := f.seedRideWithOffers(t, "p1", 15*time.Second, "d1")
	acceptRide(t, f, "d1", offers["d1"])

	_, err := f.svc.SetAvailability(context.Background(), ports.SetAvailabilityInput{
		DriverID: "d1", IsOnline: onlinePtr(false),
	})
	if !fault.IsKind(err, fault.KindConflict) {
		t.Errorf("err = %v, want Conflict while on a ride", err)
	}
	if got := f.driverAvailability(t, "d1"); got != driver.Busy {
		t.Errorf("availability = %s, want BUSY kept", got)
	}
}

func TestSetLocation(t *testing.T) {
	f := newFixture(t)
	f.seedDriver(t, "d1", driver.Online)

	view, err := f.svc.SetLocation(context.Background(), "d1", 43.2389, 76.8897)
	if err != nil {
		t.Fatalf("SetLocation: %v", err)
	}
	if view.Lat == nil || *view.Lat != 43.2389 || view.Lng == nil || *view.Lng != 76.8897 {
		t.Errorf("view location = %v,%v", view.Lat, view.Lng)
	}

	if _, err := f.svc.SetLocation(context.Background(), "d1", 91, 76.8897); !fault.IsKind(err, fault.KindInvalidArgument) {
		t.Errorf("out-of-range latitude err = %v, want InvalidArgument", err)
	}
	if _, err := f.svc.SetLocation(context.Background(), "ghost", 43.2389, 76.8897); !fault.IsKind(err, fault.KindNotFound) {
		t.Errorf("unknown driver err = %v, want NotFound", err)
	}
}
