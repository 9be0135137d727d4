package ports

import (
	"context"
	"time"

	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/domain/offer"
	"ride-dispatch/internal/domain/passenger"
	"ride-dispatch/internal/domain/ride"
)

// UnitOfWork interface is used to manage transactions across multiple repository operations.
// The store is the single source of truth; every multi-row invariant is
// maintained inside one WithinTx call.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RideRepository defines the methods for managing ride request data.
// Every mutating method is a conditional update: it returns the number of
// rows affected and touches nothing when its guard does not hold, so terminal
// rides stay frozen and races resolve inside the store.
type RideRepository interface {
	Create(ctx context.Context, r *ride.Ride) error
	GetByID(ctx context.Context, id string) (*ride.Ride, error)
	ListByPassenger(ctx context.Context, passengerID string, limit int) ([]*ride.Ride, error)
	ListByDriver(ctx context.Context, driverID string, limit int) ([]*ride.Ride, error)

	// UpdatePhase persists the current broadcast phase and moves the ride to
	// SEARCHING. No-op (count 0) when the ride is terminal or assigned.
	UpdatePhase(ctx context.Context, id string, phase int, radiusKm float64, expiresAt time.Time) (int64, error)

	// AssignDriverIfUnassigned is the single-winner gate: it sets the driver,
	// status ACCEPTED and clears the phase deadline only while the ride is
	// still dispatchable and unassigned. Exactly one concurrent caller
	// observes count 1.
	AssignDriverIfUnassigned(ctx context.Context, rideID, driverID string) (int64, error)

	// UpdateStatusIfOwner applies from -> to only when the caller is the
	// assigned driver and the ride is still in the expected status.
	UpdateStatusIfOwner(ctx context.Context, rideID, driverID string, from, to ride.Status) (int64, error)

	// FailIfSearching marks the ride FAILED and clears the phase deadline,
	// only while it is still SEARCHING and unassigned.
	FailIfSearching(ctx context.Context, rideID string) (int64, error)

	// CancelIfActive moves any non-terminal ride to CANCELED, retaining the
	// driver link when one exists.
	CancelIfActive(ctx context.Context, rideID string) (int64, error)

	// ListSearching returns rides in SEARCHING status; used by crash
	// recovery to reconcile phase timers from the store alone.
	ListSearching(ctx context.Context) ([]*ride.Ride, error)
}

// OfferRepository defines the methods for managing ride offer data.
// Uniqueness on (ride_id, driver_id) is enforced by the store.
type OfferRepository interface {
	// CreateSkipDuplicates inserts the given SENT offers, silently skipping
	// records whose (ride, driver) pair already exists, and returns the
	// offers that were actually created.
	CreateSkipDuplicates(ctx context.Context, offers []*offer.Offer) ([]*offer.Offer, error)

	// GetByID loads one offer and, inside a transaction, locks its row for
	// the remainder of that transaction.
	GetByID(ctx context.Context, id string) (*offer.Offer, error)

	// ExpireSentForRide is the expire sweep: every SENT offer of the ride
	// whose deadline has passed becomes EXPIRED.
	ExpireSentForRide(ctx context.Context, rideID string, now time.Time) (int64, error)

	// ExpireSentForDriver sweeps the caller's own overdue offers before an
	// active-offers read.
	ExpireSentForDriver(ctx context.Context, driverID string, now time.Time) (int64, error)

	// ExpireOtherSent expires every SENT offer of the ride except the winner.
	ExpireOtherSent(ctx context.Context, rideID, winnerOfferID string) (int64, error)

	// ExpireSentForDriverExcept expires the driver's SENT offers on every
	// other ride once the driver has committed to a winner.
	ExpireSentForDriverExcept(ctx context.Context, driverID, winnerOfferID string) (int64, error)

	// CountActiveForRide returns how many SENT offers of the ride are still
	// within their deadline; the phase controller waits only while this is
	// non-zero.
	CountActiveForRide(ctx context.Context, rideID string, now time.Time) (int64, error)

	MarkAccepted(ctx context.Context, offerID string, now time.Time) error
	MarkExpired(ctx context.Context, offerID string) error

	// ListActiveForDriver returns the caller's SENT offers with a deadline in
	// the future, newest first, bounded by limit.
	ListActiveForDriver(ctx context.Context, driverID string, now time.Time, limit int) ([]*offer.Offer, error)
}

// DriverRepository defines the methods for managing driver data.
type DriverRepository interface {
	GetByID(ctx context.Context, id string) (*driver.Driver, error)

	// ListOnline returns ONLINE drivers. A non-nil box lets the store
	// pre-filter coarsely by location; drivers without a location are always
	// returned and filtered by the caller.
	ListOnline(ctx context.Context, box *geo.Box) ([]*driver.Driver, error)

	SetAvailability(ctx context.Context, id string, availability driver.Availability) error
	SetLocation(ctx context.Context, id string, lat, lng float64) error
}

// PassengerRepository defines read access to passenger contact data.
type PassengerRepository interface {
	GetByID(ctx context.Context, id string) (*passenger.Passenger, error)
}
