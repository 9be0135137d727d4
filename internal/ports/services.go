package ports

import (
	"context"
	"time"

	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/ride"
)

// ----- DTOs for the Dispatch (passenger) service -----

// CreateRideInput is the validated input required to create a ride request.
// Coordinates are optional; a ride without pickup coordinates is offered to
// every online driver.
type CreateRideInput struct {
	PassengerID    string
	PickupAddress  string
	PickupLat      *float64
	PickupLng      *float64
	DropoffAddress string
	DropoffLat     *float64
	DropoffLng     *float64
}

// StopView is one ride endpoint in API responses.
type StopView struct {
	Address string   `json:"address"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

// DriverSummary is the assigned driver block embedded in ride responses.
type DriverSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// PassengerSummary is the passenger contact block returned to the winning driver.
type PassengerSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// RideView is the external representation of a ride request.
type RideView struct {
	ID             string         `json:"ride_id"`
	Status         string         `json:"status"`
	Phase          int            `json:"phase"`
	SearchRadiusKm float64        `json:"search_radius_km"`
	PhaseExpiresAt *time.Time     `json:"phase_expires_at,omitempty"`
	Pickup         StopView       `json:"pickup"`
	Dropoff        StopView       `json:"dropoff"`
	Driver         *DriverSummary `json:"driver,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ----- Dispatch service interface -----

// DispatchService is the passenger-facing boundary: ride creation, status
// reads and cancellation. Creation starts the background phase controller.
type DispatchService interface {
	CreateRide(ctx context.Context, in CreateRideInput) (RideView, error)
	GetRide(ctx context.Context, passengerID, rideID string) (RideView, error)
	ListMyRides(ctx context.Context, passengerID string) ([]RideView, error)
	CancelRide(ctx context.Context, passengerID, rideID string) (RideView, error)

	// Recover reconciles SEARCHING rides after a restart: expired phases are
	// driven forward immediately, pending ones get their timer re-armed.
	Recover(ctx context.Context) error
}

// ----- DTOs for the Driver service -----

// SetAvailabilityInput carries either an explicit availability or the
// is_online convenience flag (interpreted as ONLINE/OFFLINE).
type SetAvailabilityInput struct {
	DriverID     string
	Availability *driver.Availability
	IsOnline     *bool
}

// DriverView is the external representation of the caller's driver record.
type DriverView struct {
	ID           string   `json:"driver_id"`
	Availability string   `json:"availability"`
	IsOnline     bool     `json:"is_online"`
	Lat          *float64 `json:"lat,omitempty"`
	Lng          *float64 `json:"lng,omitempty"`
}

// RideSummary is the ride block embedded in offer responses.
type RideSummary struct {
	ID      string   `json:"ride_id"`
	Status  string   `json:"status"`
	Pickup  StopView `json:"pickup"`
	Dropoff StopView `json:"dropoff"`
}

// OfferView is one active offer returned to a polling driver.
type OfferView struct {
	ID        string      `json:"offer_id"`
	Status    string      `json:"status"`
	SentAt    time.Time   `json:"sent_at"`
	ExpiresAt time.Time   `json:"expires_at"`
	Ride      RideSummary `json:"ride"`
}

// AcceptOfferResult is returned to the winning driver: the ride it now owns
// joined with the passenger's contact info.
type AcceptOfferResult struct {
	Ride      RideView         `json:"ride"`
	Passenger PassengerSummary `json:"passenger"`
}

// UpdateRideStatusInput is a driver-reported ride progress update.
type UpdateRideStatusInput struct {
	DriverID  string
	RideID    string
	NewStatus ride.Status
}

// ----- Driver service interface -----

// DriverService is the driver-facing boundary: availability and location
// writes, offer polling and acceptance, and ride progress reporting.
type DriverService interface {
	SetAvailability(ctx context.Context, in SetAvailabilityInput) (DriverView, error)
	SetLocation(ctx context.Context, driverID string, lat, lng float64) (DriverView, error)
	ActiveOffers(ctx context.Context, driverID string) ([]OfferView, error)
	AcceptOffer(ctx context.Context, driverID, offerID string) (AcceptOfferResult, error)
	UpdateRideStatus(ctx context.Context, in UpdateRideStatusInput) (RideView, error)
	ListMyRides(ctx context.Context, driverID string) ([]RideView, error)
}
