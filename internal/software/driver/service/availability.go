package service

import (
	"context"

	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/fault"
	"ride-dispatch/internal/ports"
)

// SetAvailability switches the caller between ONLINE and OFFLINE. BUSY is
// owned by dispatch: drivers can neither request it nor leave it themselves.
func (s *Service) SetAvailability(ctx context.Context, in ports.SetAvailabilityInput) (ports.DriverView, error) {
	target, err := resolveAvailability(in)
	if err != nil {
		return ports.DriverView{}, err
	}

	var d *driver.Driver
	err = s.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		d, err = s.drivers.GetByID(ctx, in.DriverID)
		if err != nil {
			return err
		}
		if d.Availability == driver.Busy {
			return fault.Conflict("driver is on an active ride")
		}
		if d.Availability == target {
			return nil
		}
		if err := s.drivers.SetAvailability(ctx, in.DriverID, target); err != nil {
			return err
		}
		d.Availability = target
		return nil
	})
	if err != nil {
		return ports.DriverView{}, err
	}

	s.logger.Info(ctx, "driver_availability_set", "Driver availability updated", map[string]any{
		"driver_id":    in.DriverID,
		"availability": target.String(),
	})
	return ports.NewDriverView(d), nil
}

func resolveAvailability(in ports.SetAvailabilityInput) (driver.Availability, error) {
	switch {
	case in.Availability != nil:
		a := *in.Availability
		if !a.Valid() {
			return "", fault.InvalidArgument("unknown availability")
		}
		if a == driver.Busy {
			return "", fault.Conflict("BUSY is set by dispatch, not by drivers")
		}
		return a, nil
	case in.IsOnline != nil:
		if *in.IsOnline {
			return driver.Online, nil
		}
		return driver.Offline, nil
	default:
		return "", fault.InvalidArgument("availability or is_online is required")
	}
}
