package ports

import (
	"context"
	"time"

	"ride-dispatch/internal/domain/offer"
	"ride-dispatch/internal/domain/ride"
)

// Clock abstracts time for the matcher and the offer lifecycle so phase
// timing is testable.
type Clock interface {
	Now() time.Time
}

// Scheduler runs a callback after a delay. The returned cancel func is
// advisory: dropping a handle is always safe because phase-end callbacks are
// idempotent and crash recovery re-derives timers from the store.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) (cancel func())
}

// Notifier is the fire-and-forget outbound sink. Implementations must never
// fail the dispatch path; delivery problems are logged and dropped.
type Notifier interface {
	OfferSent(ctx context.Context, o *offer.Offer, r *ride.Ride)
	RideStatusChanged(ctx context.Context, r *ride.Ride)
}
