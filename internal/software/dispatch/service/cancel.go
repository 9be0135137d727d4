package service

import (
	"context"

	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/fault"
	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/ports"
)

// CancelRide lets the requesting passenger cancel their own ride from any
// non-terminal state. Outstanding offers expire and an assigned driver goes
// back to ONLINE.
func (s *Service) CancelRide(ctx context.Context, passengerID, rideID string) (ports.RideView, error) {
	ctx = s.logger.WithRideID(ctx, rideID)

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
		if rd.Status.Terminal() {
			return fault.Conflict("ride is already finished")
		}

		count, err := s.rides.CancelIfActive(ctx, rideID)
		if err != nil {
			return err
		}
		if count == 0 {
			return fault.Conflict("ride is already finished")
		}

		// no winner: every outstanding offer of the ride expires
		if _, err := s.offers.ExpireOtherSent(ctx, rideID, ""); err != nil {
			return err
		}

		if rd.Assigned() {
			if err := s.drivers.SetAvailability(ctx, *rd.AssignedDriverID, driver.Online); err != nil {
				return err
			}
			if drv, err = s.drivers.GetByID(ctx, *rd.AssignedDriverID); err != nil {
				return err
			}
		}

		rd, err = s.rides.GetByID(ctx, rideID)
		return err
	})
	if err != nil {
		return ports.RideView{}, err
	}

	s.logger.Info(ctx, "ride_canceled", "Ride canceled by passenger", nil)
	s.notifier.RideStatusChanged(ctx, rd)

	return ports.NewRideView(rd, drv), nil
}
