package models

import "math"

// Location represents a geographical location with latitude and longitude coordinates.
type Location struct {
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`
}

// Valid reports whether both coordinates are finite and inside WGS84 bounds.
func (l Location) Valid() bool {
	return ValidCoordinates(l.Latitude, l.Longitude)
}

// ValidCoordinates checks a latitude/longitude pair.
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
