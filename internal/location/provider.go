package location

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ukydev/qr-attendance/internal/models"
)

var ErrLocationUnavailable = errors.New("location unavailable")

// Provider acquires the device's current location. Each call is a single-shot request.
type Provider interface {
	Acquire(ctx context.Context) (models.Location, error)
}

// Static is a provider for installs with a fixed, configured position.
// A nil point means the device has no positioning capability.
type Static struct {
	point *models.Location
}

// NewStatic creates a static provider.
func NewStatic(point *models.Location) *Static {
	return &Static{point: point}
}

// Acquire returns the configured point.
func (s *Static) Acquire(ctx context.Context) (models.Location, error) {
	if err := ctx.Err(); err != nil {
		return models.Location{}, fmt.Errorf("%w: %v", ErrLocationUnavailable, err)
	}
	if s.point == nil {
		return models.Location{}, fmt.Errorf("%w: no positioning capability", ErrLocationUnavailable)
	}
	return *s.point, nil
}

type fix struct {
	point models.Location
	err   error
	at    time.Time
}

// Feed is a provider fed by fixes that the device reports on its own, either
// over HTTP or MQTT. Acquire returns the latest fix while it is younger than
// MaxAge and otherwise waits for the next report.
type Feed struct {
	mu      sync.Mutex
	latest  *fix
	waiters []chan fix
	maxAge  time.Duration
	now     func() time.Time
}

// NewFeed creates a feed whose fixes stay fresh for maxAge.
func NewFeed(maxAge time.Duration) *Feed {
	return &Feed{maxAge: maxAge, now: time.Now}
}

// Report publishes a new fix.
func (f *Feed) Report(point models.Location) error {
	if !point.Valid() {
		return fmt.Errorf("invalid fix: %v,%v", point.Latitude, point.Longitude)
	}
	f.publish(fix{point: point, at: f.now()}, true)
	return nil
}

// Deny resolves pending requests with ErrLocationUnavailable. Denials are not
// remembered; the next Acquire waits for a fresh report.
func (f *Feed) Deny(reason string) {
	if reason == "" {
		reason = "permission denied"
	}
	f.publish(fix{err: fmt.Errorf("%w: %s", ErrLocationUnavailable, reason), at: f.now()}, false)
}

func (f *Feed) publish(fx fix, keep bool) {
	f.mu.Lock()
	if keep {
		f.latest = &fx
	}
	waiters := f.waiters
	f.waiters = nil
	f.mu.Unlock()

	for _, ch := range waiters {
		ch <- fx
	}
}

// Acquire returns a fresh fix or waits for one until ctx is done.
func (f *Feed) Acquire(ctx context.Context) (models.Location, error) {
	f.mu.Lock()
	if f.latest != nil && f.now().Sub(f.latest.at) <= f.maxAge {
		point := f.latest.point
		f.mu.Unlock()
		return point, nil
	}
	ch := make(chan fix, 1)
	f.waiters = append(f.waiters, ch)
	f.mu.Unlock()

	select {
	case fx := <-ch:
		if fx.err != nil {
			return models.Location{}, fx.err
		}
		return fx.point, nil
	case <-ctx.Done():
		f.forget(ch)
		return models.Location{}, fmt.Errorf("%w: %v", ErrLocationUnavailable, ctx.Err())
	}
}

func (f *Feed) forget(ch chan fix) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, w := range f.waiters {
		if w == ch {
			f.waiters = append(f.waiters[:i], f.waiters[i+1:]...)
			return
		}
	}
}

// pending returns the number of Acquire calls waiting for a report.
func (f *Feed) pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.waiters)
}
