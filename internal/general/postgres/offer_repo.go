package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ride-dispatch/internal/domain/fault"
	"ride-dispatch/internal/domain/offer"
	"ride-dispatch/internal/ports"

	"github.com/jackc/pgx/v5"
)

// OfferRepo persists ride offers using pgx and plain SQL. The unique index
// on (ride_id, driver_id) backs the at-most-one-offer-per-pair invariant.
type OfferRepo struct{}

// NewOfferRepo constructs a new OfferRepo.
func NewOfferRepo() ports.OfferRepository {
	return &OfferRepo{}
}

const offerColumns = `
	id, ride_id, driver_id, status,
	sent_at, expires_at, accepted_at, rejected_at`

// CreateSkipDuplicates inserts SENT offers, skipping (ride, driver) pairs
// that already exist, and returns the offers actually created.
func (repo *OfferRepo) CreateSkipDuplicates(ctx context.Context, offers []*offer.Offer) ([]*offer.Offer, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var created []*offer.Offer
	for _, o := range offers {
		tag, err := tx.Exec(ctx, `
			INSERT INTO ride_offers (id, ride_id, driver_id, status, sent_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (ride_id, driver_id) DO NOTHING
		`, o.ID, o.RideID, o.DriverID, o.Status.String(), o.SentAt, o.ExpiresAt)
		if err != nil {
			return created, fmt.Errorf("insert offer: %w", err)
		}
		if tag.RowsAffected() > 0 {
			created = append(created, o)
		}
	}
	return created, nil
}

// GetByID loads one offer and locks its row for the rest of the transaction,
// serializing concurrent acceptances of the same offer.
func (repo *OfferRepo) GetByID(ctx context.Context, id string) (*offer.Offer, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
		SELECT`+offerColumns+`
		FROM ride_offers
		WHERE id = $1
		FOR UPDATE
	`, id)

	o, err := scanOffer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fault.NotFound("offer not found")
	}
	if err != nil {
		return nil, fmt.Errorf("query offer: %w", err)
	}
	return o, nil
}

// ExpireSentForRide is the per-ride expire sweep.
func (repo *OfferRepo) ExpireSentForRide(ctx context.Context, rideID string, now time.Time) (int64, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE ride_offers
		SET status = 'EXPIRED'
		WHERE ride_id = $1
		  AND status = 'SENT'
		  AND expires_at <= $2
	`, rideID, now)
	if err != nil {
		return 0, fmt.Errorf("expire ride offers: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ExpireSentForDriver sweeps the driver's own overdue offers.
func (repo *OfferRepo) ExpireSentForDriver(ctx context.Context, driverID string, now time.Time) (int64, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE ride_offers
		SET status = 'EXPIRED'
		WHERE driver_id = $1
		  AND status = 'SENT'
		  AND expires_at <= $2
	`, driverID, now)
	if err != nil {
		return 0, fmt.Errorf("expire driver offers: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ExpireOtherSent expires every SENT offer of the ride except the winner's.
func (repo *OfferRepo) ExpireOtherSent(ctx context.Context, rideID, winnerOfferID string) (int64, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE ride_offers
		SET status = 'EXPIRED'
		WHERE ride_id = $1
		  AND id <> $2
		  AND status = 'SENT'
	`, rideID, winnerOfferID)
	if err != nil {
		return 0, fmt.Errorf("expire losing offers: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ExpireSentForDriverExcept expires the driver's SENT offers on every other
// ride once the driver has committed to a winner.
func (repo *OfferRepo) ExpireSentForDriverExcept(ctx context.Context, driverID, winnerOfferID string) (int64, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE ride_offers
		SET status = 'EXPIRED'
		WHERE driver_id = $1
		  AND id <> $2
		  AND status = 'SENT'
	`, driverID, winnerOfferID)
	if err != nil {
		return 0, fmt.Errorf("expire driver's other offers: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountActiveForRide counts the ride's SENT offers that are still live.
func (repo *OfferRepo) CountActiveForRide(ctx context.Context, rideID string, now time.Time) (int64, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var n int64
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM ride_offers
		WHERE ride_id = $1
		  AND status = 'SENT'
		  AND expires_at > $2
	`, rideID, now).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active offers: %w", err)
	}
	return n, nil
}

// MarkAccepted resolves a SENT offer as the winner.
func (repo *OfferRepo) MarkAccepted(ctx context.Context, offerID string, now time.Time) error {
	return repo.resolve(ctx, offerID, `status = 'ACCEPTED', accepted_at = $2`, now)
}

// MarkExpired resolves a SENT offer as expired (late acceptance path).
func (repo *OfferRepo) MarkExpired(ctx context.Context, offerID string) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE ride_offers
		SET status = 'EXPIRED'
		WHERE id = $1
		  AND status = 'SENT'
	`, offerID)
	if err != nil {
		return fmt.Errorf("mark offer expired: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fault.Conflict("offer not active")
	}
	return nil
}

func (repo *OfferRepo) resolve(ctx context.Context, offerID, set string, now time.Time) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE ride_offers
		SET `+set+`
		WHERE id = $1
		  AND status = 'SENT'
	`, offerID, now)
	if err != nil {
		return fmt.Errorf("resolve offer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fault.Conflict("offer not active")
	}
	return nil
}

// ListActiveForDriver returns the driver's live offers, newest first.
func (repo *OfferRepo) ListActiveForDriver(ctx context.Context, driverID string, now time.Time, limit int) ([]*offer.Offer, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT`+offerColumns+`
		FROM ride_offers
		WHERE driver_id = $1
		  AND status = 'SENT'
		  AND expires_at > $2
		ORDER BY sent_at DESC
		LIMIT $3
	`, driverID, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query active offers: %w", err)
	}
	defer rows.Close()

	var offers []*offer.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}

// scanOffer reads one offer from a row produced with offerColumns.
func scanOffer(row pgx.Row) (*offer.Offer, error) {
	var o offer.Offer
	var status string
	err := row.Scan(
		&o.ID, &o.RideID, &o.DriverID, &status,
		&o.SentAt, &o.ExpiresAt, &o.AcceptedAt, &o.RejectedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = offer.Status(status)
	return &o, nil
}
