// Package contracts holds the wire-level names and message shapes of the
// outbound event stream. Events are advisory: the dispatch path never waits
// on them.
package contracts

import "time"

// Exchanges
const (
	ExchangeRideTopic  = "ride_topic"
	ExchangeOfferTopic = "offer_topic"
)

// Queues
const (
	QueueRideStatus = "ride_status"
	QueueOfferSent  = "offer_sent"
)

// Routing patterns
const (
	RouteRideStatusPrefix = "ride.status." // {status}
	RouteOfferSentPrefix  = "offer.sent."  // {driver_id}
)

// Envelope carries common event metadata.
type Envelope struct {
	Producer string    `json:"producer"`
	SentAt   time.Time `json:"sent_at"`
}

// RideStatusMessage announces a ride status change.
type RideStatusMessage struct {
	RideID   string  `json:"ride_id"`
	Status   string  `json:"status"`
	Phase    int     `json:"phase"`
	DriverID *string `json:"driver_id,omitempty"`
	Envelope
}

// OfferSentMessage announces a new offer for a driver.
type OfferSentMessage struct {
	OfferID   string    `json:"offer_id"`
	RideID    string    `json:"ride_id"`
	DriverID  string    `json:"driver_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Envelope
}

// WSOfferPush is the websocket frame pushed to a connected driver.
type WSOfferPush struct {
	Type      string    `json:"type"` // "ride_offer"
	OfferID   string    `json:"offer_id"`
	RideID    string    `json:"ride_id"`
	Pickup    string    `json:"pickup"`
	Dropoff   string    `json:"dropoff"`
	ExpiresAt time.Time `json:"expires_at"`
}

// WSRideStatusPush is the websocket frame pushed to a connected passenger.
type WSRideStatusPush struct {
	Type   string `json:"type"` // "ride_status_update"
	RideID string `json:"ride_id"`
	Status string `json:"status"`
}
