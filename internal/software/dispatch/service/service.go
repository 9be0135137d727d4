// Package service implements the passenger-facing dispatch flow: ride
// creation, the background phase controller that broadcasts offers, status
// reads, cancellation and crash recovery.
package service

import (
	"ride-dispatch/internal/general/config"
	"ride-dispatch/internal/general/logger"
	"ride-dispatch/internal/ports"
)

// Service implements ports.DispatchService.
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
	scheduler  ports.Scheduler
}

// Deps bundles everything the dispatch service needs.
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
	Scheduler  ports.Scheduler
}

// New constructs the dispatch service.
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
		scheduler:  d.Scheduler,
	}
}

var _ ports.DispatchService = (*Service)(nil)
