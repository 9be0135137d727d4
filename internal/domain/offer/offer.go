// Package offer holds the ride offer entity: a standing, time-bounded
// invitation of one ride to one driver. At most one offer exists per
// (ride, driver) pair; that pair is unique in the store.
package offer

import (
	"strings"
	"time"

	"ride-dispatch/internal/domain/fault"

	"github.com/google/uuid"
)

// Status is an offer status as stored in the `ride_offers` table.
// An offer is terminal once it leaves SENT.
type Status string

const (
	StatusSent     Status = "SENT"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
	StatusExpired  Status = "EXPIRED"
)

// Valid reports whether status is one of the allowed offer status constants.
func (status Status) Valid() bool {
	switch status {
	case StatusSent, StatusAccepted, StatusRejected, StatusExpired:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}

// Terminal indicates whether the offer can no longer be resolved.
func (status Status) Terminal() bool {
	return status != StatusSent
}

// Offer is the domain entity corresponding to the `ride_offers` table.
type Offer struct {
	ID       string
	RideID   string
	DriverID string

	Status     Status
	SentAt     time.Time
	ExpiresAt  time.Time
	AcceptedAt *time.Time
	RejectedAt *time.Time
}

// New builds a SENT offer with the given deadline. sentAt must not be after
// expiresAt (timestamps are monotonic within a phase).
func New(rideID, driverID string, sentAt, expiresAt time.Time) (*Offer, error) {
	if strings.TrimSpace(rideID) == "" {
		return nil, fault.InvalidArgument("ride id is required")
	}
	if strings.TrimSpace(driverID) == "" {
		return nil, fault.InvalidArgument("driver id is required")
	}
	if expiresAt.Before(sentAt) {
		return nil, fault.InvalidArgument("offer deadline precedes its send time")
	}

	return &Offer{
		ID:        uuid.NewString(),
		RideID:    rideID,
		DriverID:  driverID,
		Status:    StatusSent,
		SentAt:    sentAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Active reports whether the offer is still SENT and not past its deadline.
func (o *Offer) Active(now time.Time) bool {
	return o.Status == StatusSent && o.ExpiresAt.After(now)
}
