// Package ride holds the ride request entity and its status state machine.
package ride

import (
	"strings"
	"time"

	"ride-dispatch/internal/domain/fault"
	"ride-dispatch/internal/domain/geo"

	"github.com/google/uuid"
)

// Stop is one endpoint of a ride: a free-text address with optional
// coordinates. Rides without pickup coordinates are dispatched to all online
// drivers regardless of location.
type Stop struct {
	Address string
	Lat     *float64
	Lng     *float64
}

// HasCoordinates reports whether both latitude and longitude are set.
func (s Stop) HasCoordinates() bool {
	return s.Lat != nil && s.Lng != nil
}

// Ride is the domain entity corresponding to the `rides` table.
type Ride struct {
	// Identity & audit
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time

	// Actors
	PassengerID      string
	AssignedDriverID *string // nil until a driver wins the ride

	// Endpoints
	Pickup  Stop
	Dropoff Stop

	// Dispatch state
	Status         Status
	Phase          int
	SearchRadiusKm float64
	PhaseExpiresAt *time.Time
}

// New validates input and builds a ride in the given initial status
// (SEARCHING by default; OPEN when auto-search is disabled).
func New(passengerID string, pickup, dropoff Stop, initial Status) (*Ride, error) {
	if passengerID = strings.TrimSpace(passengerID); passengerID == "" {
		return nil, fault.InvalidArgument("passenger id is required")
	}
	if strings.TrimSpace(pickup.Address) == "" {
		return nil, fault.InvalidArgument("pickup address is required")
	}
	if initial != StatusOpen && initial != StatusSearching {
		return nil, fault.InvalidArgument("initial status must be OPEN or SEARCHING")
	}
	for _, stop := range []Stop{pickup, dropoff} {
		if (stop.Lat == nil) != (stop.Lng == nil) {
			return nil, fault.InvalidArgument("latitude and longitude must be provided together")
		}
		if stop.HasCoordinates() {
			if err := geo.Validate(*stop.Lat, *stop.Lng); err != nil {
				return nil, err
			}
		}
	}

	now := time.Now().UTC()
	return &Ride{
		ID:          uuid.NewString(),
		CreatedAt:   now,
		UpdatedAt:   now,
		PassengerID: passengerID,
		Pickup:      pickup,
		Dropoff:     dropoff,
		Status:      initial,
		Phase:       1,
	}, nil
}

// Assigned reports whether a driver has won the ride.
func (ride *Ride) Assigned() bool {
	return ride.AssignedDriverID != nil && *ride.AssignedDriverID != ""
}
