// Package passenger holds the passenger entity. Registration happens
// out-of-band; the dispatch core only reads contact info to hand it to the
// winning driver.
package passenger

import "time"

// Passenger is the domain entity corresponding to the `passengers` table.
type Passenger struct {
	ID        string
	Name      string
	Phone     string
	CreatedAt time.Time
}
