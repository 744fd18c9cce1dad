package geo

import (
	"math"

	"github.com/ukydev/qr-attendance/internal/models"
)

// EarthRadius is the WGS84 equatorial radius in meters.
const EarthRadius = 6378137.0

func toRadians(d float64) float64 {
	return d * math.Pi / 180
}

// DistanceMeters returns the haversine great-circle distance between a and b.
func DistanceMeters(a, b models.Location) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := lat2 - lat1
	dLon := toRadians(b.Longitude - a.Longitude)

	s := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// rounding can push s just outside [0, 1] for near-antipodal points
	s = math.Min(1, math.Max(0, s))
	c := 2 * math.Atan2(math.Sqrt(s), math.Sqrt(1-s))
	return EarthRadius * c
}

// Offset moves p by the given number of meters north and east. It is a flat
// approximation, good enough for the short distances a check-in deals with.
func Offset(p models.Location, northMeters, eastMeters float64) models.Location {
	latMetersPerDeg := EarthRadius * math.Pi / 180
	lonMetersPerDeg := latMetersPerDeg * math.Cos(toRadians(p.Latitude))
	return models.Location{
		Latitude:  p.Latitude + northMeters/latMetersPerDeg,
		Longitude: p.Longitude + eastMeters/lonMetersPerDeg,
	}
}
