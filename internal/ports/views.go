package ports

import (
	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/offer"
	"ride-dispatch/internal/domain/passenger"
	"ride-dispatch/internal/domain/ride"
)

// NewRideView maps a ride (and, when assigned, its driver) to the API shape.
func NewRideView(rd *ride.Ride, drv *driver.Driver) RideView {
	view := RideView{
		ID:             rd.ID,
		Status:         rd.Status.String(),
		Phase:          rd.Phase,
		SearchRadiusKm: rd.SearchRadiusKm,
		PhaseExpiresAt: rd.PhaseExpiresAt,
		Pickup:         NewStopView(rd.Pickup),
		Dropoff:        NewStopView(rd.Dropoff),
		CreatedAt:      rd.CreatedAt,
	}
	if drv != nil {
		view.Driver = &DriverSummary{ID: drv.ID, Name: drv.Name, Phone: drv.Phone}
	}
	return view
}

// NewStopView maps one ride endpoint.
func NewStopView(st ride.Stop) StopView {
	return StopView{Address: st.Address, Lat: st.Lat, Lng: st.Lng}
}

// NewDriverView maps a driver record to the API shape.
func NewDriverView(d *driver.Driver) DriverView {
	return DriverView{
		ID:           d.ID,
		Availability: d.Availability.String(),
		IsOnline:     d.Availability == driver.Online,
		Lat:          d.Lat,
		Lng:          d.Lng,
	}
}

// NewOfferView maps an offer joined with its ride to the API shape.
func NewOfferView(o *offer.Offer, rd *ride.Ride) OfferView {
	return OfferView{
		ID:        o.ID,
		Status:    o.Status.String(),
		SentAt:    o.SentAt,
		ExpiresAt: o.ExpiresAt,
		Ride: RideSummary{
			ID:      rd.ID,
			Status:  rd.Status.String(),
			Pickup:  NewStopView(rd.Pickup),
			Dropoff: NewStopView(rd.Dropoff),
		},
	}
}

// NewPassengerSummary maps passenger contact data.
func NewPassengerSummary(p *passenger.Passenger) PassengerSummary {
	return PassengerSummary{ID: p.ID, Name: p.Name, Phone: p.Phone}
}
