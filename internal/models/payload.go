package models

// QRPayload is the location record carried by an attendance QR code.
type QRPayload struct {
	Lat          float64 `json:"Lat" bson:"lat"`
	Lon          float64 `json:"Lon" bson:"lon"`
	LocationName string  `json:"LocationName,omitempty" bson:"location_name,omitempty"`
}

// Location returns the payload coordinates as a Location.
func (p QRPayload) Location() Location {
	return Location{Latitude: p.Lat, Longitude: p.Lon}
}

// Outcome classifies a verification attempt.
type Outcome string

const (
	OutcomeMatched        Outcome = "matched"
	OutcomeTooFar         Outcome = "too_far"
	OutcomeInvalidPayload Outcome = "invalid_payload"
)

// MatchResult is the result of comparing a scanned payload with the live location.
// DistanceMeters is nil when the decision was made in coarse-delta mode.
type MatchResult struct {
	Matched             bool     `json:"matched" bson:"matched"`
	Outcome             Outcome  `json:"outcome" bson:"outcome"`
	DistanceMeters      *float64 `json:"distance_meters,omitempty" bson:"distance_meters,omitempty"`
	ScannedLocationName string   `json:"scanned_location_name,omitempty" bson:"scanned_location_name,omitempty"`
}
