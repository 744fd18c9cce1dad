package checkin

import (
	"errors"

	"github.com/ukydev/qr-attendance/internal/auth"
	"github.com/ukydev/qr-attendance/internal/location"
	"github.com/ukydev/qr-attendance/internal/models"
	"github.com/ukydev/qr-attendance/internal/payload"
	"github.com/ukydev/qr-attendance/internal/submit"
)

// State is the verifier's position in a check-in cycle.
type State string

const (
	StateIdle             State = "idle"
	StateScanning         State = "scanning"
	StateDecoded          State = "decoded"
	StateMatched          State = "matched"
	StateUnmatched        State = "unmatched"
	StateSubmitting       State = "submitting"
	StateSubmitted        State = "submitted"
	StateSubmissionFailed State = "submission_failed"
)

// ErrorKind names a user-visible failure class.
type ErrorKind string

const (
	KindLocationUnavailable ErrorKind = "location_unavailable"
	KindInvalidPayload      ErrorKind = "invalid_payload"
	KindSubmissionFailed    ErrorKind = "submission_failed"
	KindUnauthenticated     ErrorKind = "unauthenticated"
)

// NoticeAuthRequired is shown when a match cannot be submitted without an identity.
const NoticeAuthRequired = "Please log in to record your attendance"

var (
	// ErrNotScanning is returned for a scan outside an open cycle.
	ErrNotScanning = errors.New("scanner is not open")
	// ErrCycleSuperseded is returned when the cycle was reset while a scan waited.
	ErrCycleSuperseded = errors.New("check-in cycle was superseded")
)

// Snapshot is a read-only copy of the session state for rendering.
type Snapshot struct {
	CycleID          string                     `json:"cycle_id,omitempty"`
	State            State                      `json:"state"`
	Location         *models.Location           `json:"location,omitempty"`
	LiveLocationName string                     `json:"live_location_name,omitempty"`
	ScannerActive    bool                       `json:"scanner_active"`
	Payload          *models.QRPayload          `json:"payload,omitempty"`
	Result           *models.MatchResult        `json:"result,omitempty"`
	Response         *models.AttendanceResponse `json:"response,omitempty"`
	ErrorKind        ErrorKind                  `json:"error_kind,omitempty"`
	Error            string                     `json:"error,omitempty"`
	Notice           string                     `json:"notice,omitempty"`
}

// Terminal reports whether the cycle has reached an outcome.
func (s Snapshot) Terminal() bool {
	switch s.State {
	case StateUnmatched, StateSubmitted, StateSubmissionFailed:
		return true
	case StateMatched:
		return s.ErrorKind == KindUnauthenticated
	case StateIdle:
		return s.ErrorKind != ""
	}
	return false
}

func (s Snapshot) clone() Snapshot {
	out := s
	if s.Location != nil {
		l := *s.Location
		out.Location = &l
	}
	if s.Payload != nil {
		p := *s.Payload
		out.Payload = &p
	}
	if s.Result != nil {
		r := *s.Result
		if r.DistanceMeters != nil {
			d := *r.DistanceMeters
			r.DistanceMeters = &d
		}
		out.Result = &r
	}
	if s.Response != nil {
		resp := *s.Response
		out.Response = &resp
	}
	return out
}

// Classify maps an error to the kind shown to the user.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, location.ErrLocationUnavailable):
		return KindLocationUnavailable
	case errors.Is(err, payload.ErrInvalidPayload):
		return KindInvalidPayload
	case errors.Is(err, submit.ErrSubmissionFailed):
		return KindSubmissionFailed
	case errors.Is(err, auth.ErrUnauthenticated):
		return KindUnauthenticated
	}
	return ""
}
