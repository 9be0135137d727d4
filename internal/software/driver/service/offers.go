package service

import (
	"context"

	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/fault"
	"ride-dispatch/internal/domain/offer"
	"ride-dispatch/internal/domain/passenger"
	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/general/metrics"
	"ride-dispatch/internal/ports"
)

// ActiveOffers returns the caller's live offers, newest first. The caller's
// overdue offers are swept first so the response never shows a dead offer.
func (s *Service) ActiveOffers(ctx context.Context, driverID string) ([]ports.OfferView, error) {
	now := s.clock.Now()

	var views []ports.OfferView
	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		expired, err := s.offers.ExpireSentForDriver(ctx, driverID, now)
		if err != nil {
			return err
		}
		if expired > 0 {
			metrics.OffersExpired.Add(float64(expired))
		}

		active, err := s.offers.ListActiveForDriver(ctx, driverID, now, s.cfg.Dispatch.OffersActiveLimit)
		if err != nil {
			return err
		}

		views = make([]ports.OfferView, 0, len(active))
		for _, o := range active {
			rd, err := s.rides.GetByID(ctx, o.RideID)
			if err != nil {
				return err
			}
			views = append(views, ports.NewOfferView(o, rd))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// AcceptOffer is the single-winner acceptance. The offer row is locked for
// the transaction and the ride assignment is a conditional update, so exactly
// one concurrent driver wins; everyone else gets a conflict. Only an ONLINE
// driver can win: a driver already on a ride holds at most one non-terminal
// ride at a time. A late or lost acceptance still resolves the offer row
// before the conflict is returned.
func (s *Service) AcceptOffer(ctx context.Context, driverID, offerID string) (ports.AcceptOfferResult, error) {
	now := s.clock.Now()

	var (
		result      ports.AcceptOfferResult
		rd          *ride.Ride
		conflictMsg string
	)
	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.offers.GetByID(ctx, offerID)
		if err != nil {
			return err
		}
		if o.DriverID != driverID {
			return fault.Forbidden("offer belongs to another driver")
		}
		if o.Status != offer.StatusSent {
			conflictMsg = "offer is no longer active"
			return nil
		}
		if !o.ExpiresAt.After(now) {
			// resolve the overdue row even though the caller loses
			if err := s.offers.MarkExpired(ctx, o.ID); err != nil {
				return err
			}
			metrics.OffersExpired.Inc()
			conflictMsg = "offer has expired"
			return nil
		}

		caller, err := s.drivers.GetByID(ctx, driverID)
		if err != nil {
			return err
		}
		if caller.Availability != driver.Online {
			conflictMsg = "driver is not available to take a ride"
			return nil
		}

		count, err := s.rides.AssignDriverIfUnassigned(ctx, o.RideID, driverID)
		if err != nil {
			return err
		}
		if count == 0 {
			// another driver won, or the passenger canceled
			if err := s.offers.MarkExpired(ctx, o.ID); err != nil {
				return err
			}
			conflictMsg = "ride is no longer available"
			return nil
		}

		if err := s.offers.MarkAccepted(ctx, o.ID, now); err != nil {
			return err
		}
		if _, err := s.offers.ExpireOtherSent(ctx, o.RideID, o.ID); err != nil {
			return err
		}
		// the winner is committed; their pending offers on other rides die too
		if _, err := s.offers.ExpireSentForDriverExcept(ctx, driverID, o.ID); err != nil {
			return err
		}
		if err := s.drivers.SetAvailability(ctx, driverID, driver.Busy); err != nil {
			return err
		}

		rd, err = s.rides.GetByID(ctx, o.RideID)
		if err != nil {
			return err
		}
		var p *passenger.Passenger
		if p, err = s.passengers.GetByID(ctx, rd.PassengerID); err != nil {
			return err
		}
		var d *driver.Driver
		if d, err = s.drivers.GetByID(ctx, driverID); err != nil {
			return err
		}

		result = ports.AcceptOfferResult{
			Ride:      ports.NewRideView(rd, d),
			Passenger: ports.NewPassengerSummary(p),
		}
		return nil
	})
	if err != nil {
		return ports.AcceptOfferResult{}, err
	}
	if conflictMsg != "" {
		// the transaction committed so the losing offer stays resolved
		return ports.AcceptOfferResult{}, fault.Conflict(conflictMsg)
	}

	metrics.OffersAccepted.Inc()
	ctx = s.logger.WithRideID(ctx, rd.ID)
	s.logger.Info(ctx, "offer_accepted", "Driver accepted the ride", map[string]any{
		"driver_id": driverID,
		"offer_id":  offerID,
	})
	s.notifier.RideStatusChanged(ctx, rd)

	return result, nil
}
