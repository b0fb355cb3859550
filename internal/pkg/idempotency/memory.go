package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
)

type memoryEntry struct {
	state     State
	expiresAt time.Time
}

// MemoryTracker keeps operation state in process. It suits single-instance
// deployments that run without redis.
type MemoryTracker struct {
	mu      sync.Mutex
	clock   clock.Clocker
	entries map[string]memoryEntry
}

// NewMemory returns an in-process tracker. A nil clock uses wall time.
func NewMemory(clk clock.Clocker) *MemoryTracker {
	if clk == nil {
		clk = clock.New()
	}

	return &MemoryTracker{
		clock:   clk,
		entries: make(map[string]memoryEntry),
	}
}

func (m *MemoryTracker) Acquire(_ context.Context, key string, lockDuration time.Duration) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if e, ok := m.entries[key]; ok && now.Before(e.expiresAt) {
		return e.state, nil
	}

	m.entries[key] = memoryEntry{state: StateInProgress, expiresAt: now.Add(lockDuration)}
	m.sweep(now)

	return StateNone, nil
}

func (m *MemoryTracker) MarkCompleted(_ context.Context, key string, ttl time.Duration) error {
	m.set(key, StateCompleted, ttl)
	return nil
}

func (m *MemoryTracker) MarkFailed(_ context.Context, key string, ttl time.Duration) error {
	m.set(key, StateFailed, ttl)
	return nil
}

func (m *MemoryTracker) Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...Option) error {
	return exec(ctx, m, key, fn, opts...)
}

func (m *MemoryTracker) set(key string, state State, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{state: state, expiresAt: m.clock.Now().Add(ttl)}
}

// sweep drops expired entries; callers hold mu.
func (m *MemoryTracker) sweep(now time.Time) {
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}
