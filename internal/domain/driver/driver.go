// Package driver holds the driver entity and its availability state.
package driver

import (
	"strings"
	"time"

	"ride-dispatch/internal/domain/fault"
)

// Availability is the driver availability as stored in the `drivers` table.
// BUSY is owned by dispatch: it is set when the driver wins a ride and
// cleared when that ride reaches a terminal status. Drivers themselves move
// only between ONLINE and OFFLINE.
type Availability string

const (
	Offline Availability = "OFFLINE"
	Online  Availability = "ONLINE"
	Busy    Availability = "BUSY"
)

// ParseAvailability normalizes and validates an availability string.
func ParseAvailability(in string) (Availability, error) {
	a := Availability(strings.ToUpper(strings.TrimSpace(in)))
	if a.Valid() {
		return a, nil
	}
	return "", fault.InvalidArgument("invalid availability: " + in)
}

// Valid reports whether the value is one of the availability constants.
func (a Availability) Valid() bool {
	switch a {
	case Offline, Online, Busy:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Availability.
func (a Availability) String() string {
	return string(a)
}

// Driver is the domain entity corresponding to the `drivers` table.
// Location is optional; a driver without one is eligible only for rides
// that themselves carry no pickup coordinates.
type Driver struct {
	ID        string
	Name      string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time

	Availability Availability
	Lat          *float64
	Lng          *float64
}

// HasLocation reports whether the driver has reported a position.
func (d *Driver) HasLocation() bool {
	return d.Lat != nil && d.Lng != nil
}

// IsOnline is the boolean view of availability kept for clients that prefer
// a flag over the tri-state value.
func (d *Driver) IsOnline() bool {
	return d.Availability == Online
}
