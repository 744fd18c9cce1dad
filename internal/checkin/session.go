package checkin

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/qr-attendance/internal/auth"
	"github.com/ukydev/qr-attendance/internal/geo"
	"github.com/ukydev/qr-attendance/internal/geocode"
	"github.com/ukydev/qr-attendance/internal/location"
	"github.com/ukydev/qr-attendance/internal/models"
	"github.com/ukydev/qr-attendance/internal/payload"
)

// Submitter posts attendance records.
type Submitter interface {
	Submit(ctx context.Context, record models.AttendanceRecord) (*models.AttendanceResponse, error)
}

// Recorder journals finished attempts.
type Recorder interface {
	InsertAttempt(ctx context.Context, attempt models.Attempt) error
}

// Config holds the verifier settings.
type Config struct {
	Policy          geo.Policy
	LocationTimeout time.Duration
}

// Deps are the session's collaborators. Scanner, Geocoder and Recorder are optional.
type Deps struct {
	Locator    location.Provider
	Identities auth.IdentityProvider
	Submitter  Submitter
	Codec      *payload.Codec
	Scanner    Scanner
	Geocoder   geocode.Geocoder
	Recorder   Recorder
}

// Session is the verifier state machine for one device. All state lives in
// snap and is only touched with mu held.
type Session struct {
	mu sync.Mutex

	policy          geo.Policy
	locationTimeout time.Duration
	deps            Deps
	now             func() time.Time
	newCycleID      func() string

	snap          Snapshot
	ready         chan struct{}
	superseded    chan struct{}
	scannerActive bool
	subs          map[int]chan Snapshot
	nextSub       int
}

// NewSession creates an idle session.
func NewSession(cfg Config, deps Deps) *Session {
	if cfg.LocationTimeout <= 0 {
		cfg.LocationTimeout = 30 * time.Second
	}
	if deps.Codec == nil {
		deps.Codec = payload.NewCodec(true)
	}
	if deps.Scanner == nil {
		deps.Scanner = &ExclusiveScanner{}
	}
	return &Session{
		policy:          cfg.Policy,
		locationTimeout: cfg.LocationTimeout,
		deps:            deps,
		now:             time.Now,
		newCycleID:      func() string { return uuid.New().String() },
		snap:            Snapshot{State: StateIdle},
		subs:            make(map[int]chan Snapshot),
	}
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.clone()
}

// Subscribe returns a channel that receives every state change, starting with
// the current state. Slow subscribers lose intermediate snapshots, never the
// latest one. The returned func unsubscribes.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 16)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.snap.clone()
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Session) publishLocked() Snapshot {
	snap := s.snap.clone()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
	return snap
}

// supersedeLocked wakes scans still waiting on the current cycle.
func (s *Session) supersedeLocked() {
	if s.superseded != nil {
		close(s.superseded)
		s.superseded = nil
	}
}

func (s *Session) startScannerLocked() {
	if s.scannerActive {
		return
	}
	if err := s.deps.Scanner.Start(); err != nil {
		log.WithError(err).WithField("cycle_id", s.snap.CycleID).Warn("Failed to start scanner")
		return
	}
	s.scannerActive = true
	s.snap.ScannerActive = true
}

func (s *Session) stopScannerLocked() {
	if !s.scannerActive {
		return
	}
	if err := s.deps.Scanner.Stop(); err != nil {
		log.WithError(err).WithField("cycle_id", s.snap.CycleID).Warn("Failed to stop scanner")
	}
	s.scannerActive = false
	s.snap.ScannerActive = false
}

// Open starts a new cycle: any running scanner is stopped, all state from the
// previous cycle is dropped and a fresh location is requested. The scanner is
// started once the location resolves.
func (s *Session) Open() Snapshot {
	s.mu.Lock()
	s.stopScannerLocked()
	s.supersedeLocked()
	cycle := s.newCycleID()
	ready := make(chan struct{})
	s.snap = Snapshot{CycleID: cycle, State: StateScanning}
	s.ready = ready
	s.superseded = make(chan struct{})
	snap := s.publishLocked()
	s.mu.Unlock()

	log.WithField("cycle_id", cycle).Info("Opened check-in cycle")
	go s.acquire(cycle, ready)
	return snap
}

func (s *Session) acquire(cycle string, ready chan struct{}) {
	defer close(ready)

	ctx, cancel := context.WithTimeout(context.Background(), s.locationTimeout)
	defer cancel()
	loc, err := s.deps.Locator.Acquire(ctx)

	s.mu.Lock()
	if s.snap.CycleID != cycle {
		s.mu.Unlock()
		log.WithField("cycle_id", cycle).Debug("Discarding location for superseded cycle")
		return
	}
	if err != nil {
		s.snap.State = StateIdle
		s.snap.ErrorKind = KindLocationUnavailable
		s.snap.Error = err.Error()
		snap := s.publishLocked()
		s.mu.Unlock()

		log.WithError(err).WithField("cycle_id", cycle).Warn("Location unavailable")
		s.finish(snap, "")
		return
	}
	s.snap.Location = &loc
	s.startScannerLocked()
	s.publishLocked()
	s.mu.Unlock()

	if s.deps.Geocoder != nil {
		go s.resolveName(cycle, loc)
	}
}

func (s *Session) resolveName(cycle string, loc models.Location) {
	ctx, cancel := context.WithTimeout(context.Background(), s.locationTimeout)
	defer cancel()
	name := geocode.DisplayName(ctx, s.deps.Geocoder, loc.Latitude, loc.Longitude)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.CycleID != cycle {
		return
	}
	s.snap.LiveLocationName = name
	s.publishLocked()
}

// Scan evaluates scanned payload text against the cycle's location. A scan
// that arrives before the location resolves waits for it. Domain outcomes
// (invalid payload, too far, unauthenticated, failed submission) are reported
// in the snapshot; the error is only set when the scan could not be evaluated.
func (s *Session) Scan(ctx context.Context, text string) (Snapshot, error) {
	s.mu.Lock()
	if s.snap.State != StateScanning {
		snap := s.snap.clone()
		s.mu.Unlock()
		return snap, ErrNotScanning
	}
	cycle, ready, superseded := s.snap.CycleID, s.ready, s.superseded
	s.mu.Unlock()

	select {
	case <-ready:
	case <-superseded:
		return s.Snapshot(), ErrCycleSuperseded
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	}

	s.mu.Lock()
	if s.snap.CycleID != cycle {
		snap := s.snap.clone()
		s.mu.Unlock()
		return snap, ErrCycleSuperseded
	}
	if s.snap.State != StateScanning {
		snap := s.snap.clone()
		s.mu.Unlock()
		return snap, ErrNotScanning
	}

	s.stopScannerLocked()
	scanned, err := s.deps.Codec.Decode(text)
	if err != nil {
		s.snap.State = StateIdle
		s.snap.ErrorKind = KindInvalidPayload
		s.snap.Error = err.Error()
		snap := s.publishLocked()
		s.mu.Unlock()

		log.WithError(err).WithField("cycle_id", cycle).Warn("Rejected scanned payload")
		s.finish(snap, "")
		return snap, nil
	}

	s.snap.State = StateDecoded
	s.snap.Payload = scanned
	s.publishLocked()

	result := geo.Decide(*scanned, *s.snap.Location, s.policy)
	s.snap.Result = &result
	fields := log.Fields{"cycle_id": cycle, "outcome": result.Outcome}
	if result.DistanceMeters != nil {
		fields["distance_m"] = *result.DistanceMeters
	}
	log.WithFields(fields).Info("Evaluated scan")

	if !result.Matched {
		s.snap.State = StateUnmatched
		if result.Outcome == models.OutcomeInvalidPayload {
			s.snap.ErrorKind = KindInvalidPayload
		}
		snap := s.publishLocked()
		s.mu.Unlock()
		s.finish(snap, "")
		return snap, nil
	}

	s.snap.State = StateMatched
	s.publishLocked()
	identity := s.deps.Identities.CurrentIdentity()
	if identity == nil {
		s.snap.ErrorKind = KindUnauthenticated
		s.snap.Notice = NoticeAuthRequired
		snap := s.publishLocked()
		s.mu.Unlock()
		s.finish(snap, "")
		return snap, nil
	}

	record := models.NewAttendanceRecord(*identity, *s.snap.Location, *scanned, s.now())
	s.snap.State = StateSubmitting
	s.publishLocked()
	s.mu.Unlock()

	// the submission outlives a cancelled caller; the HTTP client timeout bounds it
	resp, err := s.deps.Submitter.Submit(context.WithoutCancel(ctx), record)

	s.mu.Lock()
	if s.snap.CycleID != cycle {
		snap := s.snap.clone()
		s.mu.Unlock()
		log.WithField("cycle_id", cycle).Info("Discarding submission result for superseded cycle")
		return snap, ErrCycleSuperseded
	}
	s.snap.Response = resp
	switch {
	case err != nil:
		s.snap.State = StateSubmissionFailed
		s.snap.ErrorKind = KindSubmissionFailed
		s.snap.Error = err.Error()
	case resp == nil || !resp.Success:
		s.snap.State = StateSubmissionFailed
		s.snap.ErrorKind = KindSubmissionFailed
		s.snap.Error = "attendance was not recorded"
		if resp != nil && resp.Message != "" {
			s.snap.Error = resp.Message
		}
	default:
		s.snap.State = StateSubmitted
	}
	snap := s.publishLocked()
	s.mu.Unlock()

	s.finish(snap, identity.EmployeeID)
	return snap, nil
}

// Reset stops the scanner and discards the cycle.
func (s *Session) Reset() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopScannerLocked()
	s.supersedeLocked()
	s.snap = Snapshot{State: StateIdle}
	s.ready = nil
	return s.publishLocked()
}

// Close stops the scanner and ends all subscriptions.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopScannerLocked()
	s.supersedeLocked()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Session) finish(snap Snapshot, employeeID string) {
	if s.deps.Recorder == nil || !snap.Terminal() {
		return
	}
	attempt := models.Attempt{
		CycleID:    snap.CycleID,
		State:      string(snap.State),
		ErrorKind:  string(snap.ErrorKind),
		EmployeeID: employeeID,
		Live:       snap.Location,
		Scanned:    snap.Payload,
		Result:     snap.Result,
		Response:   snap.Response,
		CreatedAt:  s.now(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.deps.Recorder.InsertAttempt(ctx, attempt); err != nil {
		log.WithError(err).WithField("cycle_id", snap.CycleID).Error("Failed to journal attempt")
	}
}
