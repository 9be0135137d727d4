package service

import (
	"context"
	"fmt"

	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/fault"
	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/ports"
)

// UpdateRideStatus applies a driver-reported progress step. The transition
// must be legal for the current status and the caller must be the assigned
// driver. Terminal transitions return the driver to ONLINE.
func (s *Service) UpdateRideStatus(ctx context.Context, in ports.UpdateRideStatusInput) (ports.RideView, error) {
	to := in.NewStatus
	switch to {
	case ride.StatusArriving, ride.StatusInProgress, ride.StatusCompleted, ride.StatusCanceled:
	default:
		return ports.RideView{}, fault.InvalidArgument("drivers may report ARRIVING, IN_PROGRESS, COMPLETED or CANCELED")
	}

	ctx = s.logger.WithRideID(ctx, in.RideID)

	var (
		rd  *ride.Ride
		drv *driver.Driver
	)
	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		rd, err = s.rides.GetByID(ctx, in.RideID)
		if err != nil {
			return err
		}
		if rd.AssignedDriverID == nil || *rd.AssignedDriverID != in.DriverID {
			return fault.Forbidden("ride is assigned to another driver")
		}
		if !rd.Status.CanTransitionTo(to) {
			return fault.Conflict(fmt.Sprintf("cannot move ride from %s to %s", rd.Status, to))
		}

		var count int64
		if to == ride.StatusCanceled {
			count, err = s.rides.CancelIfActive(ctx, in.RideID)
		} else {
			count, err = s.rides.UpdateStatusIfOwner(ctx, in.RideID, in.DriverID, rd.Status, to)
		}
		if err != nil {
			return err
		}
		if count == 0 {
			return fault.Conflict("ride changed concurrently")
		}

		if to.Terminal() {
			if err := s.drivers.SetAvailability(ctx, in.DriverID, driver.Online); err != nil {
				return err
			}
		}

		if rd, err = s.rides.GetByID(ctx, in.RideID); err != nil {
			return err
		}
		drv, err = s.drivers.GetByID(ctx, in.DriverID)
		return err
	})
	if err != nil {
		return ports.RideView{}, err
	}

	s.logger.Info(ctx, "ride_status_updated", "Driver reported ride progress", map[string]any{
		"driver_id": in.DriverID,
		"status":    to.String(),
	})
	s.notifier.RideStatusChanged(ctx, rd)

	return ports.NewRideView(rd, drv), nil
}
