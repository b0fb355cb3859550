package goroutine

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/shandysiswandi/otpgate/internal/pkg/stacktrace"
)

// DefaultMaxGoroutine is used when NewManager receives a non-positive limit.
const DefaultMaxGoroutine int = 100

// Manager runs background work (message handlers, OTP delivery) with a
// concurrency limit. Errors returned by tasks are collected and reported by
// Wait.
type Manager struct {
	mu      sync.Mutex
	errs    []error
	wg      sync.WaitGroup
	sema    chan struct{}
	stateMu sync.RWMutex
	closed  bool
}

// NewManager creates a new Manager with the provided maximum concurrency.
func NewManager(maxGoroutine int) *Manager {
	if maxGoroutine < 1 {
		maxGoroutine = runtime.NumCPU() * DefaultMaxGoroutine
	}

	return &Manager{sema: make(chan struct{}, maxGoroutine)}
}

// Go schedules f in a new goroutine and reports whether it was scheduled.
//
// It refuses work once Wait has been called or when the concurrency limit is
// reached. A panic in f is recovered and logged.
func (g *Manager) Go(ctx context.Context, f func(ctx context.Context) error) bool {
	if g == nil {
		return false
	}

	g.stateMu.RLock()
	defer g.stateMu.RUnlock()

	if g.closed {
		slog.WarnContext(ctx, "goroutine manager is closed, task skipped")
		return false
	}

	select {
	case g.sema <- struct{}{}:
	default:
		slog.WarnContext(ctx, "goroutine limit reached, task skipped", "limit", cap(g.sema))
		return false
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() { <-g.sema }()
		defer g.recover(ctx)

		if err := ctx.Err(); err != nil {
			slog.WarnContext(ctx, "goroutine canceled before start", "because", err)
			return
		}

		if err := f(ctx); err != nil {
			g.mu.Lock()
			g.errs = append(g.errs, err)
			g.mu.Unlock()
		}
	}()

	return true
}

func (g *Manager) recover(ctx context.Context) {
	rvr := recover()
	if rvr == nil {
		return
	}

	stack := debug.Stack()
	if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
		slog.ErrorContext(ctx, "panic occurred in goroutine", "panic", rvr, "stack", paths)
		return
	}
	slog.ErrorContext(ctx, "panic occurred in goroutine", "panic", rvr, "stack", string(stack))
}

// Wait stops accepting new work, blocks until every scheduled task returns
// and joins the errors they produced.
func (g *Manager) Wait() error {
	if g == nil {
		return nil
	}

	g.stateMu.Lock()
	g.closed = true
	g.stateMu.Unlock()

	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()

	return errors.Join(g.errs...)
}
