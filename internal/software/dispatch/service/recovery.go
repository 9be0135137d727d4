package service

import (
	"context"

	"ride-dispatch/internal/domain/ride"
)

// Recover reconciles SEARCHING rides after a restart. Phase timers live only
// in memory, so each surviving ride is re-driven from what the store says:
// an expired deadline runs the phase end now, a pending one re-arms the
// remainder, and a missing deadline re-runs the current phase.
func (s *Service) Recover(ctx context.Context) error {
	var searching []*ride.Ride
	err := s.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		searching, err = s.rides.ListSearching(ctx)
		return err
	})
	if err != nil {
		return err
	}

	now := s.clock.Now()
	for _, rd := range searching {
		rideCtx := s.logger.WithRideID(context.Background(), rd.ID)

		switch {
		case rd.PhaseExpiresAt == nil:
			// crash happened between creation and the first phase write
			go s.runPhase(rideCtx, rd.ID, rd.Phase)
		case !rd.PhaseExpiresAt.After(now):
			go s.phaseEnd(rideCtx, rd.ID, rd.Phase)
		default:
			id, phase := rd.ID, rd.Phase
			s.scheduler.Schedule(rd.PhaseExpiresAt.Sub(now), func() {
				s.phaseEnd(rideCtx, id, phase)
			})
		}
	}

	if len(searching) > 0 {
		s.logger.Info(ctx, "dispatch_recovered", "Resumed searching rides after restart",
			map[string]any{"rides": len(searching)})
	}
	return nil
}
