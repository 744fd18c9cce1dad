package checkin

import (
	"errors"
	"sync"
)

// ErrScannerBusy is returned when a second scanner instance would be started.
var ErrScannerBusy = errors.New("scanner already active")

// Scanner is the frame-decoding resource (a camera feed in the browser).
// Stop must release it completely.
type Scanner interface {
	Start() error
	Stop() error
}

// ExclusiveScanner is a lease on the single scanner a device may run. The
// rendering layer opens its camera while the lease is held.
type ExclusiveScanner struct {
	mu     sync.Mutex
	active bool
	starts int
}

// Start acquires the lease.
func (e *ExclusiveScanner) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active {
		return ErrScannerBusy
	}
	e.active = true
	e.starts++
	return nil
}

// Stop releases the lease. Stopping an idle scanner is a no-op.
func (e *ExclusiveScanner) Stop() error {
	e.mu.Lock()
	e.active = false
	e.mu.Unlock()
	return nil
}

// held reports whether the lease is held.
func (e *ExclusiveScanner) held() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

func (e *ExclusiveScanner) startCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.starts
}
