// Package geo provides great-circle distance math and coordinate validation
// for candidate selection.
package geo

import (
	"math"

	"ride-dispatch/internal/domain/fault"
)

// DefaultEarthRadiusKm is the Earth radius used when none is configured.
const DefaultEarthRadiusKm = 6371.0

// Validate checks that a coordinate pair is finite and within range.
func Validate(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return fault.InvalidArgument("latitude and longitude must be finite")
	}
	if lat < -90 || lat > 90 {
		return fault.InvalidArgument("latitude must be within [-90, 90]")
	}
	if lng < -180 || lng > 180 {
		return fault.InvalidArgument("longitude must be within [-180, 180]")
	}
	return nil
}

// Haversine returns the great-circle distance in kilometers between two
// points for the given sphere radius.
func Haversine(lat1, lng1, lat2, lng2, earthRadiusKm float64) (float64, error) {
	if err := Validate(lat1, lng1); err != nil {
		return 0, err
	}
	if err := Validate(lat2, lng2); err != nil {
		return 0, err
	}

	a1 := lat1 * math.Pi / 180
	a2 := lat2 * math.Pi / 180
	da := (lat2 - lat1) * math.Pi / 180
	db := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(da/2)*math.Sin(da/2) +
		math.Cos(a1)*math.Cos(a2)*math.Sin(db/2)*math.Sin(db/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c, nil
}

// DistanceKm is Haversine with the default Earth radius.
func DistanceKm(lat1, lng1, lat2, lng2 float64) (float64, error) {
	return Haversine(lat1, lng1, lat2, lng2, DefaultEarthRadiusKm)
}

// Box is a latitude/longitude bounding box used by the Store as a coarse
// pre-filter. Precise radius filtering happens in the matcher.
// MinLng > MaxLng means the band crosses the antimeridian.
type Box struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// Contains reports whether the point falls inside the box.
func (b Box) Contains(lat, lng float64) bool {
	if lat < b.MinLat || lat > b.MaxLat {
		return false
	}
	if b.MinLng <= b.MaxLng {
		return lng >= b.MinLng && lng <= b.MaxLng
	}
	return lng >= b.MinLng || lng <= b.MaxLng
}

// BoundingBox builds a box around a center point that is guaranteed to
// contain the circle of radiusKm. Latitude clamps at the poles; longitude
// wraps across the antimeridian.
func BoundingBox(lat, lng, radiusKm float64) Box {
	// one degree of latitude is ~111.045 km everywhere
	const kmPerDegreeLat = 111.045

	dLat := radiusKm / kmPerDegreeLat
	cos := math.Cos(lat * math.Pi / 180)
	if cos < 0.01 {
		cos = 0.01 // near the poles a longitude band covers everything
	}
	dLng := radiusKm / (kmPerDegreeLat * cos)

	minLng := lng - dLng
	maxLng := lng + dLng
	if dLng >= 180 {
		minLng, maxLng = -180, 180
	} else {
		if minLng < -180 {
			minLng += 360
		}
		if maxLng > 180 {
			maxLng -= 360
		}
	}

	return Box{
		MinLat: math.Max(lat-dLat, -90),
		MaxLat: math.Min(lat+dLat, 90),
		MinLng: minLng,
		MaxLng: maxLng,
	}
}
