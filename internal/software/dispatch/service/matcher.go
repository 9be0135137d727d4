package service

import (
	"context"
	"strconv"

	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/domain/offer"
	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/general/metrics"
)

// startDispatch launches the phase controller for one ride. The controller
// lives outside any request: its context carries only the ride id for logs.
func (s *Service) startDispatch(rideID string) {
	ctx := s.logger.WithRideID(context.Background(), rideID)
	go s.runPhase(ctx, rideID, 1)
}

// runPhase executes one broadcast round: sweep overdue offers, widen the
// search to the phase radius, create offers for every candidate in range and
// arm the phase deadline. A phase with no live offers advances immediately;
// exhausting the last phase fails the ride.
func (s *Service) runPhase(ctx context.Context, rideID string, phase int) {
	if phase > len(s.cfg.Dispatch.Phases) {
		s.failRide(ctx, rideID)
		return
	}
	p := s.cfg.Dispatch.Phases[phase-1]
	now := s.clock.Now()
	expiresAt := now.Add(p.TTL())

	var (
		rd      *ride.Ride
		created []*offer.Offer
		active  int64
		armed   bool
	)
	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.offers.ExpireSentForRide(ctx, rideID, now); err != nil {
			return err
		}

		var err error
		rd, err = s.rides.GetByID(ctx, rideID)
		if err != nil {
			return err
		}
		if rd.Status.Terminal() || rd.Assigned() {
			return nil
		}

		count, err := s.rides.UpdatePhase(ctx, rideID, phase, p.RadiusKm, expiresAt)
		if err != nil || count == 0 {
			return err
		}
		rd.Status = ride.StatusSearching
		rd.Phase = phase
		rd.SearchRadiusKm = p.RadiusKm
		rd.PhaseExpiresAt = &expiresAt

		candidates, err := s.candidates(ctx, rd, p.RadiusKm)
		if err != nil {
			return err
		}

		batch := make([]*offer.Offer, 0, len(candidates))
		for _, d := range candidates {
			o, err := offer.New(rideID, d.ID, now, expiresAt)
			if err != nil {
				return err
			}
			batch = append(batch, o)
		}
		if created, err = s.offers.CreateSkipDuplicates(ctx, batch); err != nil {
			return err
		}
		if active, err = s.offers.CountActiveForRide(ctx, rideID, now); err != nil {
			return err
		}
		armed = true
		return nil
	})
	if err != nil {
		s.logger.Error(ctx, "dispatch_phase_failed", "Phase could not be run", err,
			map[string]any{"phase": phase})
		return
	}
	if !armed {
		// ride reached a terminal or assigned state; nothing left to do
		return
	}

	metrics.DispatchPhases.WithLabelValues(strconv.Itoa(phase)).Inc()
	s.logger.Info(ctx, "dispatch_phase_started", "Broadcast phase started", map[string]any{
		"phase":          phase,
		"radius_km":      p.RadiusKm,
		"offers_created": len(created),
		"offers_active":  active,
	})
	for _, o := range created {
		s.notifier.OfferSent(ctx, o, rd)
	}

	if active == 0 {
		// nobody to wait for; move on without burning the phase window
		s.runPhase(ctx, rideID, phase+1)
		return
	}
	s.scheduler.Schedule(expiresAt.Sub(now), func() {
		s.phaseEnd(ctx, rideID, phase)
	})
}

// phaseEnd fires when a phase window closes. It is idempotent and ignores
// stale timers: if the ride moved on (accepted, canceled, or already in a
// different phase) the callback does nothing.
func (s *Service) phaseEnd(ctx context.Context, rideID string, armedPhase int) {
	now := s.clock.Now()

	var (
		stale   bool
		expired int64
	)
	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		rd, err := s.rides.GetByID(ctx, rideID)
		if err != nil {
			return err
		}
		if rd.Status.Terminal() || rd.Assigned() || rd.Phase != armedPhase {
			stale = true
			return nil
		}
		expired, err = s.offers.ExpireSentForRide(ctx, rideID, now)
		return err
	})
	if err != nil {
		s.logger.Error(ctx, "dispatch_phase_end_failed", "Phase end could not be processed", err,
			map[string]any{"phase": armedPhase})
		return
	}
	if stale {
		return
	}

	if expired > 0 {
		metrics.OffersExpired.Add(float64(expired))
	}
	s.runPhase(ctx, rideID, armedPhase+1)
}

// failRide ends the search after the phases are exhausted. A driver can come
// online between the last candidate query and this point, so the candidate
// search runs one more time: anyone new gets a final offer wave at the last
// phase radius, otherwise the ride is marked FAILED.
func (s *Service) failRide(ctx context.Context, rideID string) {
	lastPhase := len(s.cfg.Dispatch.Phases)
	p := s.cfg.Dispatch.Phases[lastPhase-1]
	now := s.clock.Now()
	expiresAt := now.Add(p.TTL())

	var (
		rd      *ride.Ride
		created []*offer.Offer
		active  int64
		halted  bool
	)
	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.offers.ExpireSentForRide(ctx, rideID, now); err != nil {
			return err
		}

		var err error
		rd, err = s.rides.GetByID(ctx, rideID)
		if err != nil {
			return err
		}
		if rd.Status.Terminal() || rd.Assigned() {
			halted = true
			return nil
		}

		candidates, err := s.candidates(ctx, rd, p.RadiusKm)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			return nil
		}

		count, err := s.rides.UpdatePhase(ctx, rideID, lastPhase, p.RadiusKm, expiresAt)
		if err != nil {
			return err
		}
		if count == 0 {
			halted = true
			return nil
		}
		batch := make([]*offer.Offer, 0, len(candidates))
		for _, d := range candidates {
			o, err := offer.New(rideID, d.ID, now, expiresAt)
			if err != nil {
				return err
			}
			batch = append(batch, o)
		}
		// drivers already offered this ride are skipped, so only newcomers
		// keep the search alive
		if created, err = s.offers.CreateSkipDuplicates(ctx, batch); err != nil {
			return err
		}
		active, err = s.offers.CountActiveForRide(ctx, rideID, now)
		return err
	})
	if err != nil {
		s.logger.Error(ctx, "dispatch_fail_ride_failed", "Could not finish the search", err, nil)
		return
	}
	if halted {
		return
	}

	if active > 0 {
		s.logger.Info(ctx, "dispatch_final_wave", "New drivers appeared after the last phase", map[string]any{
			"offers_created": len(created),
		})
		for _, o := range created {
			s.notifier.OfferSent(ctx, o, rd)
		}
		s.scheduler.Schedule(expiresAt.Sub(now), func() {
			s.markFailed(ctx, rideID)
		})
		return
	}
	s.markFailed(ctx, rideID)
}

// markFailed flips the ride to FAILED. The update is conditional, so an
// acceptance that slipped in between the deadline and this call wins and the
// failure becomes a no-op.
func (s *Service) markFailed(ctx context.Context, rideID string) {
	now := s.clock.Now()

	var (
		rd    *ride.Ride
		count int64
	)
	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if _, err = s.offers.ExpireSentForRide(ctx, rideID, now); err != nil {
			return err
		}
		if count, err = s.rides.FailIfSearching(ctx, rideID); err != nil {
			return err
		}
		if count == 0 {
			return nil
		}
		rd, err = s.rides.GetByID(ctx, rideID)
		return err
	})
	if err != nil {
		s.logger.Error(ctx, "dispatch_fail_ride_failed", "Could not mark ride as failed", err, nil)
		return
	}
	if count == 0 {
		return
	}

	s.logger.Info(ctx, "ride_failed", "No driver accepted within the broadcast phases", nil)
	s.notifier.RideStatusChanged(ctx, rd)
}

// candidates returns the online drivers the phase should offer the ride to.
// With pickup coordinates the store pre-filters by bounding box and the exact
// haversine distance decides membership; without them every online driver
// qualifies.
func (s *Service) candidates(ctx context.Context, rd *ride.Ride, radiusKm float64) ([]*driver.Driver, error) {
	if !rd.Pickup.HasCoordinates() {
		return s.drivers.ListOnline(ctx, nil)
	}

	box := geo.BoundingBox(*rd.Pickup.Lat, *rd.Pickup.Lng, radiusKm)
	online, err := s.drivers.ListOnline(ctx, &box)
	if err != nil {
		return nil, err
	}

	in := make([]*driver.Driver, 0, len(online))
	for _, d := range online {
		if !d.HasLocation() {
			continue
		}
		dist, err := geo.Haversine(*rd.Pickup.Lat, *rd.Pickup.Lng, *d.Lat, *d.Lng, s.cfg.Dispatch.EarthRadiusKm)
		if err != nil {
			return nil, err
		}
		if dist <= radiusKm {
			in = append(in, d)
		}
	}
	return in, nil
}
