package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ride-dispatch/internal/domain/fault"
	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/ports"

	"github.com/jackc/pgx/v5"
)

// RideRepo persists ride requests using pgx and plain SQL.
type RideRepo struct{}

// NewRideRepo constructs a new RideRepo.
func NewRideRepo() ports.RideRepository {
	return &RideRepo{}
}

const rideColumns = `
	id, passenger_id, assigned_driver_id,
	pickup_address, pickup_lat, pickup_lng,
	dropoff_address, dropoff_lat, dropoff_lng,
	status, phase, search_radius_km, phase_expires_at,
	created_at, updated_at`

// Create inserts a new ride request row.
func (repo *RideRepo) Create(ctx context.Context, r *ride.Ride) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO rides (
			id, passenger_id,
			pickup_address, pickup_lat, pickup_lng,
			dropoff_address, dropoff_lat, dropoff_lng,
			status, phase, search_radius_km
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`,
		r.ID,
		r.PassengerID,
		r.Pickup.Address, r.Pickup.Lat, r.Pickup.Lng,
		r.Dropoff.Address, r.Dropoff.Lat, r.Dropoff.Lng,
		r.Status.String(),
		r.Phase,
		r.SearchRadiusKm,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert ride: %w", err)
	}

	return nil
}

// GetByID fetches a ride by primary key.
func (repo *RideRepo) GetByID(ctx context.Context, id string) (*ride.Ride, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `SELECT`+rideColumns+` FROM rides WHERE id = $1`, id)

	rd, err := scanRide(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.NotFound("ride not found")
	}
	if err != nil {
		return nil, fmt.Errorf("query ride: %w", err)
	}
	return rd, nil
}

// ListByPassenger returns the passenger's recent rides, newest first.
func (repo *RideRepo) ListByPassenger(ctx context.Context, passengerID string, limit int) ([]*ride.Ride, error) {
	return repo.list(ctx, `passenger_id`, passengerID, limit)
}

// ListByDriver returns the driver's recent rides, newest first.
func (repo *RideRepo) ListByDriver(ctx context.Context, driverID string, limit int) ([]*ride.Ride, error) {
	return repo.list(ctx, `assigned_driver_id`, driverID, limit)
}

func (repo *RideRepo) list(ctx context.Context, column, id string, limit int) ([]*ride.Ride, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT`+rideColumns+`
		FROM rides
		WHERE `+column+` = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("query rides: %w", err)
	}
	defer rows.Close()

	var rides []*ride.Ride
	for rows.Next() {
		rd, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ride: %w", err)
		}
		rides = append(rides, rd)
	}
	return rides, rows.Err()
}

// UpdatePhase persists the broadcast phase and moves the ride to SEARCHING.
// The guard keeps terminal and assigned rides untouched.
func (repo *RideRepo) UpdatePhase(ctx context.Context, id string, phase int, radiusKm float64, expiresAt time.Time) (int64, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE rides
		SET status = 'SEARCHING',
		    phase = $2,
		    search_radius_km = $3,
		    phase_expires_at = $4,
		    updated_at = now()
		WHERE id = $1
		  AND status IN ('OPEN', 'SEARCHING')
		  AND assigned_driver_id IS NULL
	`, id, phase, radiusKm, expiresAt)
	if err != nil {
		return 0, fmt.Errorf("update ride phase: %w", err)
	}
	return tag.RowsAffected(), nil
}

// AssignDriverIfUnassigned is the single-winner gate. The WHERE clause is the
// entire race resolution: of two concurrent acceptances exactly one sees a
// row still unassigned and dispatchable.
func (repo *RideRepo) AssignDriverIfUnassigned(ctx context.Context, rideID, driverID string) (int64, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE rides
		SET assigned_driver_id = $2,
		    status = 'ACCEPTED',
		    phase_expires_at = NULL,
		    updated_at = now()
		WHERE id = $1
		  AND assigned_driver_id IS NULL
		  AND status IN ('OPEN', 'SEARCHING')
	`, rideID, driverID)
	if err != nil {
		return 0, fmt.Errorf("assign driver: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpdateStatusIfOwner applies from -> to only for the assigned driver.
func (repo *RideRepo) UpdateStatusIfOwner(ctx context.Context, rideID, driverID string, from, to ride.Status) (int64, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE rides
		SET status = $4,
		    phase_expires_at = NULL,
		    updated_at = now()
		WHERE id = $1
		  AND assigned_driver_id = $2
		  AND status = $3
	`, rideID, driverID, from.String(), to.String())
	if err != nil {
		return 0, fmt.Errorf("update ride status: %w", err)
	}
	return tag.RowsAffected(), nil
}

// FailIfSearching marks a still-searching, unassigned ride FAILED.
func (repo *RideRepo) FailIfSearching(ctx context.Context, rideID string) (int64, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE rides
		SET status = 'FAILED',
		    phase_expires_at = NULL,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'SEARCHING'
		  AND assigned_driver_id IS NULL
	`, rideID)
	if err != nil {
		return 0, fmt.Errorf("fail ride: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CancelIfActive moves any non-terminal ride to CANCELED. The driver link,
// when present, is retained.
func (repo *RideRepo) CancelIfActive(ctx context.Context, rideID string) (int64, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE rides
		SET status = 'CANCELED',
		    phase_expires_at = NULL,
		    updated_at = now()
		WHERE id = $1
		  AND status NOT IN ('COMPLETED', 'CANCELED', 'FAILED')
	`, rideID)
	if err != nil {
		return 0, fmt.Errorf("cancel ride: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListSearching returns all rides currently in SEARCHING; recovery drives
// each one forward from here.
func (repo *RideRepo) ListSearching(ctx context.Context) ([]*ride.Ride, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT`+rideColumns+`
		FROM rides
		WHERE status = 'SEARCHING'
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("query searching rides: %w", err)
	}
	defer rows.Close()

	var rides []*ride.Ride
	for rows.Next() {
		rd, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ride: %w", err)
		}
		rides = append(rides, rd)
	}
	return rides, rows.Err()
}

// scanRide reads one ride from a row produced with rideColumns.
func scanRide(row pgx.Row) (*ride.Ride, error) {
	var rd ride.Ride
	var status string
	err := row.Scan(
		&rd.ID, &rd.PassengerID, &rd.AssignedDriverID,
		&rd.Pickup.Address, &rd.Pickup.Lat, &rd.Pickup.Lng,
		&rd.Dropoff.Address, &rd.Dropoff.Lat, &rd.Dropoff.Lng,
		&status, &rd.Phase, &rd.SearchRadiusKm, &rd.PhaseExpiresAt,
		&rd.CreatedAt, &rd.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rd.Status = ride.Status(status)
	return &rd, nil
}
