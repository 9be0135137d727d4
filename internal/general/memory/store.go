// Package memory is an in-memory implementation of the repository ports,
// used by service tests. One mutex serializes every transaction, which gives
// the same isolation the postgres store gets from row locks and conditional
// updates. Writes are not rolled back on error; the services only mutate
// after their guards pass, so tests never observe partial state.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/fault"
	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/domain/offer"
	"ride-dispatch/internal/domain/passenger"
	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/ports"
)

type txKey struct{}

// Store holds all dispatch state in maps guarded by one mutex.
type Store struct {
	mu sync.Mutex

	rides      map[string]*ride.Ride
	offers     map[string]*offer.Offer
	offerPairs map[string]string // rideID + "|" + driverID -> offerID
	drivers    map[string]*driver.Driver
	passengers map[string]*passenger.Passenger
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		rides:      make(map[string]*ride.Ride),
		offers:     make(map[string]*offer.Offer),
		offerPairs: make(map[string]string),
		drivers:    make(map[string]*driver.Driver),
		passengers: make(map[string]*passenger.Passenger),
	}
}

// WithinTx runs fn holding the store mutex. Nested calls reuse the ambient
// transaction like the postgres unit of work does.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(context.WithValue(ctx, txKey{}, s))
}

// enter locks the store unless the context already carries the transaction.
func (s *Store) enter(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// SeedDriver inserts a driver directly, for tests.
func (s *Store) SeedDriver(d *driver.Driver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.drivers[d.ID] = &cp
}

// SeedPassenger inserts a passenger directly, for tests.
func (s *Store) SeedPassenger(p *passenger.Passenger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.passengers[p.ID] = &cp
}

func offerPairKey(rideID, driverID string) string { return rideID + "|" + driverID }

func cloneRide(r *ride.Ride) *ride.Ride {
	cp := *r
	if r.AssignedDriverID != nil {
		v := *r.AssignedDriverID
		cp.AssignedDriverID = &v
	}
	if r.PhaseExpiresAt != nil {
		v := *r.PhaseExpiresAt
		cp.PhaseExpiresAt = &v
	}
	cp.Pickup = cloneStop(r.Pickup)
	cp.Dropoff = cloneStop(r.Dropoff)
	return &cp
}

func cloneStop(st ride.Stop) ride.Stop {
	cp := st
	if st.Lat != nil {
		v := *st.Lat
		cp.Lat = &v
	}
	if st.Lng != nil {
		v := *st.Lng
		cp.Lng = &v
	}
	return cp
}

func cloneOffer(o *offer.Offer) *offer.Offer {
	cp := *o
	if o.AcceptedAt != nil {
		v := *o.AcceptedAt
		cp.AcceptedAt = &v
	}
	if o.RejectedAt != nil {
		v := *o.RejectedAt
		cp.RejectedAt = &v
	}
	return &cp
}

func cloneDriver(d *driver.Driver) *driver.Driver {
	cp := *d
	if d.Lat != nil {
		v := *d.Lat
		cp.Lat = &v
	}
	if d.Lng != nil {
		v := *d.Lng
		cp.Lng = &v
	}
	return &cp
}

// --- RideRepository ---

type RideRepo struct{ store *Store }

func NewRideRepo(store *Store) ports.RideRepository { return &RideRepo{store: store} }

func (repo *RideRepo) Create(ctx context.Context, r *ride.Ride) error {
	defer repo.store.enter(ctx)()
	repo.store.rides[r.ID] = cloneRide(r)
	return nil
}

func (repo *RideRepo) GetByID(ctx context.Context, id string) (*ride.Ride, error) {
	defer repo.store.enter(ctx)()
	r, ok := repo.store.rides[id]
	if !ok {
		return nil, fault.NotFound("ride not found")
	}
	return cloneRide(r), nil
}

func (repo *RideRepo) ListByPassenger(ctx context.Context, passengerID string, limit int) ([]*ride.Ride, error) {
	defer repo.store.enter(ctx)()
	return repo.store.listRides(limit, func(r *ride.Ride) bool { return r.PassengerID == passengerID }), nil
}

func (repo *RideRepo) ListByDriver(ctx context.Context, driverID string, limit int) ([]*ride.Ride, error) {
	defer repo.store.enter(ctx)()
	return repo.store.listRides(limit, func(r *ride.Ride) bool {
		return r.AssignedDriverID != nil && *r.AssignedDriverID == driverID
	}), nil
}

func (s *Store) listRides(limit int, keep func(*ride.Ride) bool) []*ride.Ride {
	out := make([]*ride.Ride, 0)
	for _, r := range s.rides {
		if keep(r) {
			out = append(out, cloneRide(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (repo *RideRepo) UpdatePhase(ctx context.Context, id string, phase int, radiusKm float64, expiresAt time.Time) (int64, error) {
	defer repo.store.enter(ctx)()
	r, ok := repo.store.rides[id]
	if !ok || !r.Status.Dispatchable() || r.AssignedDriverID != nil {
		return 0, nil
	}
	r.Status = ride.StatusSearching
	r.Phase = phase
	r.SearchRadiusKm = radiusKm
	r.PhaseExpiresAt = &expiresAt
	r.UpdatedAt = time.Now().UTC()
	return 1, nil
}

func (repo *RideRepo) AssignDriverIfUnassigned(ctx context.Context, rideID, driverID string) (int64, error) {
	defer repo.store.enter(ctx)()
	r, ok := repo.store.rides[rideID]
	if !ok || !r.Status.Dispatchable() || r.AssignedDriverID != nil {
		return 0, nil
	}
	id := driverID
	r.AssignedDriverID = &id
	r.Status = ride.StatusAccepted
	r.PhaseExpiresAt = nil
	r.UpdatedAt = time.Now().UTC()
	return 1, nil
}

func (repo *RideRepo) UpdateStatusIfOwner(ctx context.Context, rideID, driverID string, from, to ride.Status) (int64, error) {
	defer repo.store.enter(ctx)()
	r, ok := repo.store.rides[rideID]
	if !ok || r.AssignedDriverID == nil || *r.AssignedDriverID != driverID || r.Status != from {
		return 0, nil
	}
	r.Status = to
	r.UpdatedAt = time.Now().UTC()
	return 1, nil
}

func (repo *RideRepo) FailIfSearching(ctx context.Context, rideID string) (int64, error) {
	defer repo.store.enter(ctx)()
	r, ok := repo.store.rides[rideID]
	if !ok || r.Status != ride.StatusSearching || r.AssignedDriverID != nil {
		return 0, nil
	}
	r.Status = ride.StatusFailed
	r.PhaseExpiresAt = nil
	r.UpdatedAt = time.Now().UTC()
	return 1, nil
}

func (repo *RideRepo) CancelIfActive(ctx context.Context, rideID string) (int64, error) {
	defer repo.store.enter(ctx)()
	r, ok := repo.store.rides[rideID]
	if !ok || r.Status.Terminal() {
		return 0, nil
	}
	r.Status = ride.StatusCanceled
	r.PhaseExpiresAt = nil
	r.UpdatedAt = time.Now().UTC()
	return 1, nil
}

func (repo *RideRepo) ListSearching(ctx context.Context) ([]*ride.Ride, error) {
	defer repo.store.enter(ctx)()
	return repo.store.listRides(0, func(r *ride.Ride) bool { return r.Status == ride.StatusSearching }), nil
}

// --- OfferRepository ---

type OfferRepo struct{ store *Store }

func NewOfferRepo(store *Store) ports.OfferRepository { return &OfferRepo{store: store} }

func (repo *OfferRepo) CreateSkipDuplicates(ctx context.Context, offers []*offer.Offer) ([]*offer.Offer, error) {
	defer repo.store.enter(ctx)()
	var created []*offer.Offer
	for _, o := range offers {
		key := offerPairKey(o.RideID, o.DriverID)
		if _, exists := repo.store.offerPairs[key]; exists {
			continue
		}
		repo.store.offers[o.ID] = cloneOffer(o)
		repo.store.offerPairs[key] = o.ID
		created = append(created, o)
	}
	return created, nil
}

func (repo *OfferRepo) GetByID(ctx context.Context, id string) (*offer.Offer, error) {
	defer repo.store.enter(ctx)()
	o, ok := repo.store.offers[id]
	if !ok {
		return nil, fault.NotFound("offer not found")
	}
	return cloneOffer(o), nil
}

func (repo *OfferRepo) ExpireSentForRide(ctx context.Context, rideID string, now time.Time) (int64, error) {
	defer repo.store.enter(ctx)()
	return repo.store.expireSent(func(o *offer.Offer) bool {
		return o.RideID == rideID && !o.ExpiresAt.After(now)
	}), nil
}

func (repo *OfferRepo) ExpireSentForDriver(ctx context.Context, driverID string, now time.Time) (int64, error) {
	defer repo.store.enter(ctx)()
	return repo.store.expireSent(func(o *offer.Offer) bool {
		return o.DriverID == driverID && !o.ExpiresAt.After(now)
	}), nil
}

func (repo *OfferRepo) ExpireOtherSent(ctx context.Context, rideID, winnerOfferID string) (int64, error) {
	defer repo.store.enter(ctx)()
	return repo.store.expireSent(func(o *offer.Offer) bool {
		return o.RideID == rideID && o.ID != winnerOfferID
	}), nil
}

func (repo *OfferRepo) ExpireSentForDriverExcept(ctx context.Context, driverID, winnerOfferID string) (int64, error) {
	defer repo.store.enter(ctx)()
	return repo.store.expireSent(func(o *offer.Offer) bool {
		return o.DriverID == driverID && o.ID != winnerOfferID
	}), nil
}

func (repo *OfferRepo) CountActiveForRide(ctx context.Context, rideID string, now time.Time) (int64, error) {
	defer repo.store.enter(ctx)()
	var n int64
	for _, o := range repo.store.offers {
		if o.RideID == rideID && o.Status == offer.StatusSent && o.ExpiresAt.After(now) {
			n++
		}
	}
	return n, nil
}

func (s *Store) expireSent(match func(*offer.Offer) bool) int64 {
	var n int64
	for _, o := range s.offers {
		if o.Status == offer.StatusSent && match(o) {
			o.Status = offer.StatusExpired
			n++
		}
	}
	return n
}

func (repo *OfferRepo) MarkAccepted(ctx context.Context, offerID string, now time.Time) error {
	defer repo.store.enter(ctx)()
	o, ok := repo.store.offers[offerID]
	if !ok {
		return fault.NotFound("offer not found")
	}
	if o.Status != offer.StatusSent {
		return fault.Conflict("offer not active")
	}
	o.Status = offer.StatusAccepted
	t := now
	o.AcceptedAt = &t
	return nil
}

func (repo *OfferRepo) MarkExpired(ctx context.Context, offerID string) error {
	defer repo.store.enter(ctx)()
	o, ok := repo.store.offers[offerID]
	if !ok {
		return fault.NotFound("offer not found")
	}
	if o.Status != offer.StatusSent {
		return fault.Conflict("offer not active")
	}
	o.Status = offer.StatusExpired
	return nil
}

func (repo *OfferRepo) ListActiveForDriver(ctx context.Context, driverID string, now time.Time, limit int) ([]*offer.Offer, error) {
	defer repo.store.enter(ctx)()
	out := make([]*offer.Offer, 0)
	for _, o := range repo.store.offers {
		if o.DriverID == driverID && o.Status == offer.StatusSent && o.ExpiresAt.After(now) {
			out = append(out, cloneOffer(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- DriverRepository ---

type DriverRepo struct{ store *Store }

func NewDriverRepo(store *Store) ports.DriverRepository { return &DriverRepo{store: store} }

func (repo *DriverRepo) GetByID(ctx context.Context, id string) (*driver.Driver, error) {
	defer repo.store.enter(ctx)()
	d, ok := repo.store.drivers[id]
	if !ok {
		return nil, fault.NotFound("driver not found")
	}
	return cloneDriver(d), nil
}

func (repo *DriverRepo) ListOnline(ctx context.Context, box *geo.Box) ([]*driver.Driver, error) {
	defer repo.store.enter(ctx)()
	out := make([]*driver.Driver, 0)
	for _, d := range repo.store.drivers {
		if d.Availability != driver.Online {
			continue
		}
		if box != nil && d.Lat != nil && d.Lng != nil && !box.Contains(*d.Lat, *d.Lng) {
			continue
		}
		out = append(out, cloneDriver(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (repo *DriverRepo) SetAvailability(ctx context.Context, id string, availability driver.Availability) error {
	defer repo.store.enter(ctx)()
	d, ok := repo.store.drivers[id]
	if !ok {
		return fault.NotFound("driver not found")
	}
	d.Availability = availability
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (repo *DriverRepo) SetLocation(ctx context.Context, id string, lat, lng float64) error {
	defer repo.store.enter(ctx)()
	d, ok := repo.store.drivers[id]
	if !ok {
		return fault.NotFound("driver not found")
	}
	d.Lat = &lat
	d.Lng = &lng
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// --- PassengerRepository ---

type PassengerRepo struct{ store *Store }

func NewPassengerRepo(store *Store) ports.PassengerRepository { return &PassengerRepo{store: store} }

func (repo *PassengerRepo) GetByID(ctx context.Context, id string) (*passenger.Passenger, error) {
	defer repo.store.enter(ctx)()
	p, ok := repo.store.passengers[id]
	if !ok {
		return nil, fault.NotFound("passenger not found")
	}
	cp := *p
	return &cp, nil
}
