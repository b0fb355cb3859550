package clock

import (
	"sync"
	"time"
)

// Clocker abstracts time so callers can replace real time in tests.
type Clocker interface {
	Now() time.Time
}

// TimeClocker is the production clock implementation backed by time.Now.
type TimeClocker struct{}

// New returns a TimeClocker that reads the current system time.
func New() *TimeClocker {
	return &TimeClocker{}
}

// Now returns the current system time.
func (*TimeClocker) Now() time.Time {
	return time.Now()
}

// FixedClocker returns a manually controlled time. It is safe for concurrent use.
type FixedClocker struct {
	mu  sync.RWMutex
	now time.Time
}

// NewFixed returns a FixedClocker starting at t.
func NewFixed(t time.Time) *FixedClocker {
	return &FixedClocker{now: t}
}

// Now returns the current fixed time.
func (f *FixedClocker) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.now
}

// Set moves the clock to t.
func (f *FixedClocker) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// Advance moves the clock forward by d.
func (f *FixedClocker) Advance(d time.Duration) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	return f.now
}
