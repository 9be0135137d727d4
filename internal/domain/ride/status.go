package ride

import (
	"strings"

	"ride-dispatch/internal/domain/fault"
)

// Status is a ride status as stored in the `rides` table.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusSearching  Status = "SEARCHING"
	StatusAccepted   Status = "ACCEPTED"
	StatusArriving   Status = "ARRIVING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCanceled   Status = "CANCELED"
	StatusFailed     Status = "FAILED"
)

// ParseStatus normalizes (uppercases+trims) and validates a status string.
func ParseStatus(in string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", fault.InvalidArgument("invalid ride status: " + in)
}

// Valid reports whether status is one of the allowed ride status constants.
func (status Status) Valid() bool {
	switch status {
	case StatusOpen, StatusSearching, StatusAccepted, StatusArriving,
		StatusInProgress, StatusCompleted, StatusCanceled, StatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}

// CanTransitionTo specifies if the status can transition to the next status.
// Any non-terminal status may be canceled; everything else follows the fixed
// dispatch lifecycle.
func (status Status) CanTransitionTo(next Status) bool {
	if status.Terminal() {
		return false
	}
	if next == StatusCanceled {
		return true
	}

	switch status {
	case StatusOpen:
		return next == StatusSearching

	case StatusSearching:
		return next == StatusAccepted || next == StatusFailed

	case StatusAccepted:
		return next == StatusArriving

	case StatusArriving:
		return next == StatusInProgress

	case StatusInProgress:
		return next == StatusCompleted

	default:
		return false
	}
}

// Terminal indicates if the status is in a terminal state.
func (status Status) Terminal() bool {
	return status == StatusCompleted || status == StatusCanceled || status == StatusFailed
}

// Dispatchable reports whether a driver may still win the ride.
func (status Status) Dispatchable() bool {
	return status == StatusOpen || status == StatusSearching
}
