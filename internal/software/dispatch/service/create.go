package service

import (
	"context"

	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/general/metrics"
	"ride-dispatch/internal/ports"
)

// CreateRide validates the request, persists the ride and, when the initial
// status is SEARCHING, starts the background phase controller for it.
func (s *Service) CreateRide(ctx context.Context, in ports.CreateRideInput) (ports.RideView, error) {
	initial, err := ride.ParseStatus(s.cfg.Dispatch.InitialStatus)
	if err != nil {
		return ports.RideView{}, err
	}

	rd, err := ride.New(in.PassengerID,
		ride.Stop{Address: in.PickupAddress, Lat: in.PickupLat, Lng: in.PickupLng},
		ride.Stop{Address: in.DropoffAddress, Lat: in.DropoffLat, Lng: in.DropoffLng},
		initial,
	)
	if err != nil {
		return ports.RideView{}, err
	}
	// the stored radius always reflects the current phase
	rd.SearchRadiusKm = s.cfg.Dispatch.Phases[0].RadiusKm

	err = s.uow.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.passengers.GetByID(ctx, rd.PassengerID); err != nil {
			return err
		}
		return s.rides.Create(ctx, rd)
	})
	if err != nil {
		return ports.RideView{}, err
	}

	metrics.RidesCreated.Inc()
	ctx = s.logger.WithRideID(ctx, rd.ID)
	s.logger.Info(ctx, "ride_created", "Ride request created", map[string]any{
		"passenger_id": rd.PassengerID,
		"status":       rd.Status.String(),
	})
	s.notifier.RideStatusChanged(ctx, rd)

	if rd.Status == ride.StatusSearching {
		s.startDispatch(rd.ID)
	}

	return ports.NewRideView(rd, nil), nil
}
