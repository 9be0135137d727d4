package postgres

import (
	"context"
	"errors"
	"fmt"

	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/fault"
	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/ports"

	"github.com/jackc/pgx/v5"
)

// DriverRepo persists drivers using pgx and plain SQL.
type DriverRepo struct{}

// NewDriverRepo constructs a new DriverRepo.
func NewDriverRepo() ports.DriverRepository {
	return &DriverRepo{}
}

const driverColumns = `
	id, name, phone, availability, lat, lng, created_at, updated_at`

// GetByID returns one driver by id.
func (repo *DriverRepo) GetByID(ctx context.Context, id string) (*driver.Driver, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `SELECT`+driverColumns+` FROM drivers WHERE id = $1`, id)

	d, err := scanDriver(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.NotFound("driver not found")
	}
	if err != nil {
		return nil, fmt.Errorf("query driver: %w", err)
	}
	return d, nil
}

// ListOnline returns ONLINE drivers. A non-nil box pre-filters located
// drivers coarsely; drivers without a location are always included and the
// matcher decides their eligibility.
func (repo *DriverRepo) ListOnline(ctx context.Context, box *geo.Box) ([]*driver.Driver, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := `SELECT` + driverColumns + ` FROM drivers WHERE availability = 'ONLINE'`
	args := []any{}
	if box != nil {
		lngCond := `lng BETWEEN $3 AND $4`
		if box.MinLng > box.MaxLng {
			// box crosses the antimeridian
			lngCond = `(lng >= $3 OR lng <= $4)`
		}
		query += `
		  AND (lat IS NULL
		       OR (lat BETWEEN $1 AND $2 AND ` + lngCond + `))`
		args = append(args, box.MinLat, box.MaxLat, box.MinLng, box.MaxLng)
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query online drivers: %w", err)
	}
	defer rows.Close()

	var drivers []*driver.Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, fmt.Errorf("scan driver: %w", err)
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}

// SetAvailability stores the new availability.
func (repo *DriverRepo) SetAvailability(ctx context.Context, id string, availability driver.Availability) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE drivers
		SET availability = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, availability.String())
	if err != nil {
		return fmt.Errorf("update driver availability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fault.NotFound("driver not found")
	}
	return nil
}

// SetLocation stores the driver's reported position.
func (repo *DriverRepo) SetLocation(ctx context.Context, id string, lat, lng float64) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE drivers
		SET lat = $2,
		    lng = $3,
		    updated_at = now()
		WHERE id = $1
	`, id, lat, lng)
	if err != nil {
		return fmt.Errorf("update driver location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fault.NotFound("driver not found")
	}
	return nil
}

// scanDriver reads one driver from a row produced with driverColumns.
func scanDriver(row pgx.Row) (*driver.Driver, error) {
	var d driver.Driver
	var availability string
	err := row.Scan(
		&d.ID, &d.Name, &d.Phone, &availability,
		&d.Lat, &d.Lng, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Availability = driver.Availability(availability)
	return &d, nil
}
