package service

import (
	"context"

	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/fault"
	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/ports"
)

// GetRide returns one of the caller's rides, joined with the assigned driver
// when there is one.
func (s *Service) GetRide(ctx context.Context, passengerID, rideID string) (ports.RideView, error) {
	var (
		rd  *ride.Ride
		drv *driver.Driver
	)
	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		rd, err = s.rides.GetByID(ctx, rideID)
		if err != nil {
			return err
		}
		if rd.PassengerID != passengerID {
			return fault.Forbidden("ride belongs to another passenger")
		}
		if rd.Assigned() {
			drv, err = s.drivers.GetByID(ctx, *rd.AssignedDriverID)
		}
		return err
	})
	if err != nil {
		return ports.RideView{}, err
	}
	return ports.NewRideView(rd, drv), nil
}

// ListMyRides returns the caller's ride history, newest first.
func (s *Service) ListMyRides(ctx context.Context, passengerID string) ([]ports.RideView, error) {
	var rides []*ride.Ride
	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		rides, err = s.rides.ListByPassenger(ctx, passengerID, s.cfg.Dispatch.RidesHistoryLimit)
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
