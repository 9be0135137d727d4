package service

import (
	"context"

	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/ports"
)

// SetLocation stores the caller's last reported coordinates. Any
// availability may report a location; only ONLINE drivers are matched.
func (s *Service) SetLocation(ctx context.Context, driverID string, lat, lng float64) (ports.DriverView, error) {
	if err := geo.Validate(lat, lng); err != nil {
		return ports.DriverView{}, err
	}

	var d *driver.Driver
	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.drivers.SetLocation(ctx, driverID, lat, lng); err != nil {
			return err
		}
		var err error
		d, err = s.drivers.GetByID(ctx, driverID)
		return err
	})
	if err != nil {
		return ports.DriverView{}, err
	}

	return ports.NewDriverView(d), nil
}
