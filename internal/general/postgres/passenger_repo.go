package postgres

import (
	"context"
	"errors"
	"fmt"

	"ride-dispatch/internal/domain/fault"
	"ride-dispatch/internal/domain/passenger"
	"ride-dispatch/internal/ports"

	"github.com/jackc/pgx/v5"
)

// PassengerRepo reads passenger contact data. Registration is out-of-band.
type PassengerRepo struct{}

// NewPassengerRepo constructs a new PassengerRepo.
func NewPassengerRepo() ports.PassengerRepository {
	return &PassengerRepo{}
}

// GetByID returns one passenger by id.
func (repo *PassengerRepo) GetByID(ctx context.Context, id string) (*passenger.Passenger, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var p passenger.Passenger
	err = tx.QueryRow(ctx, `
		SELECT id, name, phone, created_at
		FROM passengers
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Phone, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.NotFound("passenger not found")
	}
	if err != nil {
		return nil, fmt.Errorf("query passenger: %w", err)
	}
	return &p, nil
}
