// Package geo provides great-circle distance and the nearby-order filter.
package geo

import (
	"math"

	"github.com/futonlab/miteguard/internal/models"
)

// EarthRadiusKm is the mean Earth radius used by the Haversine formula.
const EarthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between two coordinates.
func DistanceKm(a, b models.Coord) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// WithinRadius reports whether two coordinates lie within radiusKm of each other.
func WithinRadius(a, b models.Coord, radiusKm float64) bool {
	return DistanceKm(a, b) <= radiusKm
}

// Candidate pairs an open order with its resolved coordinates. Coord is nil
// when the order's location could not be resolved.
type Candidate struct {
	Order models.ServiceOrder
	Coord *models.Coord
}

// FilterNearby returns the orders a requester should see. Pure function over
// its inputs so the visibility policy stays testable in isolation.
//
// The policy fails open on both sides: with no requester location, no
// distance filtering is applied at all; an order with an unresolved location
// stays visible even when the requester's location is known. A missing
// coordinate is a data-quality gap, not evidence of distance, and hiding a
// legitimate order permanently costs more than over-showing a distant one.
func FilterNearby(candidates []Candidate, requester *models.Coord, radiusKm float64) []models.ServiceOrder {
	out := make([]models.ServiceOrder, 0, len(candidates))
	for _, c := range candidates {
		if requester == nil || c.Coord == nil || WithinRadius(*c.Coord, *requester, radiusKm) {
			out = append(out, c.Order)
		}
	}
	return out
}
