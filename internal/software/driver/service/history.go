package service

import (
	"context"

	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/ports"
)

// ListMyRides returns the rides the caller has been assigned, newest first.
func (s *Service) ListMyRides(ctx context.Context, driverID string) ([]ports.RideView, error) {
	var rides []*ride.Ride
	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		rides, err = s.rides.ListByDriver(ctx, driverID, s.cfg.Dispatch.RidesHistoryLimit)
		return err
	})
	if err != nil {
		return nil, err
	}

	views := make([]ports.RideView, 0, len(rides))
	for _, rd := range rides {
		views = append(views, ports.NewRideView(rd, nil))
	}
	return views, nil
}
