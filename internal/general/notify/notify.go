// Package notify fans dispatch events out to RabbitMQ and WebSocket
// subscribers. Delivery is fire-and-forget: failures are logged and never
// surface to the dispatch path.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"ride-dispatch/internal/domain/offer"
	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/general/contracts"
	"ride-dispatch/internal/general/logger"
	"ride-dispatch/internal/general/metrics"
	"ride-dispatch/internal/general/rabbitmq"
	"ride-dispatch/internal/general/websocket"
	"ride-dispatch/internal/ports"
)

const producerName = "dispatch"

// Notifier publishes ride and offer events to RabbitMQ and pushes them over
// WebSocket. Either sink may be nil.
type Notifier struct {
	logger *logger.Logger
	pub    *rabbitmq.MQPublisher
	ws     *websocket.WebSocket
}

// New constructs a Notifier. Pass nil for sinks that are not configured.
func New(log *logger.Logger, pub *rabbitmq.MQPublisher, ws *websocket.WebSocket) ports.Notifier {
	return &Notifier{logger: log, pub: pub, ws: ws}
}

// OfferSent announces a new offer to the targeted driver.
func (n *Notifier) OfferSent(ctx context.Context, o *offer.Offer, rd *ride.Ride) {
	metrics.OffersCreated.Inc()

	if n.pub != nil {
		msg := contracts.OfferSentMessage{
			OfferID:   o.ID,
			RideID:    o.RideID,
			DriverID:  o.DriverID,
			ExpiresAt: o.ExpiresAt,
			Envelope:  contracts.Envelope{Producer: producerName, SentAt: time.Now().UTC()},
		}
		n.publish(ctx, contracts.ExchangeOfferTopic, contracts.RouteOfferSentPrefix+o.DriverID, msg)
	}

	if n.ws != nil {
		push := contracts.WSOfferPush{
			Type:      "ride_offer",
			OfferID:   o.ID,
			RideID:    o.RideID,
			Pickup:    rd.Pickup.Address,
			Dropoff:   rd.Dropoff.Address,
			ExpiresAt: o.ExpiresAt,
		}
		if err := n.ws.SendToDriver(o.DriverID, push); err != nil {
			n.logger.Debug(ctx, "ws_offer_push_skipped", "Driver not reachable over WebSocket",
				map[string]any{"driver_id": o.DriverID, "offer_id": o.ID})
		}
	}
}

// RideStatusChanged announces a ride status change to the passenger.
func (n *Notifier) RideStatusChanged(ctx context.Context, rd *ride.Ride) {
	metrics.RideStatusChanges.WithLabelValues(rd.Status.String()).Inc()

	if n.pub != nil {
		msg := contracts.RideStatusMessage{
			RideID:   rd.ID,
			Status:   rd.Status.String(),
			Phase:    rd.Phase,
			DriverID: rd.AssignedDriverID,
			Envelope: contracts.Envelope{Producer: producerName, SentAt: time.Now().UTC()},
		}
		n.publish(ctx, contracts.ExchangeRideTopic, contracts.RouteRideStatusPrefix+rd.Status.String(), msg)
	}

	if n.ws != nil {
		push := contracts.WSRideStatusPush{
			Type:   "ride_status_update",
			RideID: rd.ID,
			Status: rd.Status.String(),
		}
		if err := n.ws.SendToPassenger(rd.PassengerID, push); err != nil {
			n.logger.Debug(ctx, "ws_status_push_skipped", "Passenger not reachable over WebSocket",
				map[string]any{"ride_id": rd.ID})
		}
	}
}

func (n *Notifier) publish(ctx context.Context, exchange, routingKey string, msg any) {
	body, err := json.Marshal(msg)
	if err != nil {
		n.logger.Error(ctx, "event_marshal_failed", "Failed to marshal event", err,
			map[string]any{"exchange": exchange, "routing_key": routingKey})
		return
	}
	if err := n.pub.Publish(exchange, routingKey, body); err != nil {
		n.logger.Error(ctx, "event_publish_failed", "Failed to publish event", err,
			map[string]any{"exchange": exchange, "routing_key": routingKey})
	}
}
