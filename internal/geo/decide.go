package geo

import (
	"fmt"
	"math"
	"strings"

	"github.com/ukydev/qr-attendance/internal/models"
)

// Mode selects how proximity is judged.
type Mode string

const (
	// ModeMetric compares the great-circle distance against a radius in meters.
	ModeMetric Mode = "metric"
	// ModeCoarse compares the per-axis coordinate delta against a threshold in
	// degrees. A longitude degree shrinks towards the poles, so the accepted
	// area is not a circle and gets narrower east-west at high latitudes.
	ModeCoarse Mode = "coarse"
)

const (
	DefaultRadiusMeters = 50.0
	DefaultDeltaDegrees = 0.001
)

// Policy is the match configuration.
type Policy struct {
	Mode         Mode
	RadiusMeters float64
	DeltaDegrees float64
}

// DefaultPolicy returns metric mode with a 50 m radius.
func DefaultPolicy() Policy {
	return Policy{
		Mode:         ModeMetric,
		RadiusMeters: DefaultRadiusMeters,
		DeltaDegrees: DefaultDeltaDegrees,
	}
}

// ParseMode parses a configured mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeMetric, "":
		return ModeMetric, nil
	case ModeCoarse:
		return ModeCoarse, nil
	default:
		return "", fmt.Errorf("unknown match mode %q", s)
	}
}

// Validate checks that the threshold for the selected mode is usable.
func (p Policy) Validate() error {
	switch p.Mode {
	case ModeMetric:
		if !(p.RadiusMeters > 0) || math.IsInf(p.RadiusMeters, 0) {
			return fmt.Errorf("match radius must be a positive number, got %v", p.RadiusMeters)
		}
	case ModeCoarse:
		if !(p.DeltaDegrees > 0) || math.IsInf(p.DeltaDegrees, 0) {
			return fmt.Errorf("delta threshold must be a positive number, got %v", p.DeltaDegrees)
		}
	default:
		return fmt.Errorf("unknown match mode %q", p.Mode)
	}
	return nil
}

// Decide compares the scanned payload with the live location. It performs no I/O.
func Decide(scanned models.QRPayload, live models.Location, policy Policy) models.MatchResult {
	result := models.MatchResult{ScannedLocationName: scanned.LocationName}

	if !models.ValidCoordinates(scanned.Lat, scanned.Lon) {
		result.Outcome = models.OutcomeInvalidPayload
		return result
	}

	switch policy.Mode {
	case ModeCoarse:
		result.Matched = math.Abs(live.Latitude-scanned.Lat) < policy.DeltaDegrees &&
			math.Abs(live.Longitude-scanned.Lon) < policy.DeltaDegrees
	default:
		d := DistanceMeters(scanned.Location(), live)
		result.DistanceMeters = &d
		result.Matched = d <= policy.RadiusMeters
	}

	if result.Matched {
		result.Outcome = models.OutcomeMatched
	} else {
		result.Outcome = models.OutcomeTooFar
	}
	return result
}
