// Package service implements the driver-facing flow: availability and
// location writes, offer polling, the atomic single-winner acceptance and
// ride progress reporting.
package service

import (
	"ride-dispatch/internal/general/config"
	"ride-dispatch/internal/general/logger"
	"ride-dispatch/internal/ports"
)

// Service implements ports.DriverService.
type Service struct {
	logger     *logger.Logger
	cfg        *config.Config
	uow        ports.UnitOfWork
	rides      ports.RideRepository
	offers     ports.OfferRepository
	drivers    ports.DriverRepository
	passengers ports.PassengerRepository
	notifier   ports.Notifier
	clock      ports.Clock
}

// Deps bundles everything the driver service needs.
type Deps struct {
	Logger     *logger.Logger
	Cfg        *config.Config
	UoW        ports.UnitOfWork
	Rides      ports.RideRepository
	Offers     ports.OfferRepository
	Drivers    ports.DriverRepository
	Passengers ports.PassengerRepository
	Notifier   ports.Notifier
	Clock      ports.Clock
}

// New constructs the driver service.
func New(d Deps) *Service {
	return &Service{
		logger:     d.Logger,
		cfg:        d.Cfg,
		uow:        d.UoW,
		rides:      d.Rides,
		offers:     d.Offers,
		drivers:    d.Drivers,
		passengers: d.Passengers,
		notifier:   d.Notifier,
		clock:      d.Clock,
	}
}

var _ ports.DriverService = (*Service)(nil)
