// Package idempotency guards side effects (such as sending an OTP email)
// against duplicate execution when a message is redelivered.
package idempotency

import (
	"context"
	"errors"
	"time"
)

var (
	ErrAlreadyInProgress = errors.New("operation already in progress")
	ErrAlreadyCompleted  = errors.New("operation already completed")
	ErrAlreadyFailed     = errors.New("operation already failed")
	ErrInvalidState      = errors.New("invalid state")
)

// State is the recorded progress of a keyed operation.
type State string

const (
	StateNone       State = "none"        // operation can proceed
	StateInProgress State = "in_progress" // operation already in progress
	StateCompleted  State = "completed"   // operation already completed
	StateFailed     State = "failed"      // previously operation failed
	StateError      State = "error"       // this operation error
)

func (s State) String() string {
	return string(s)
}

func parseState(v string) (State, error) {
	switch v {
	case StateInProgress.String():
		return StateInProgress, nil
	case StateCompleted.String():
		return StateCompleted, nil
	case StateFailed.String():
		return StateFailed, nil
	default:
		return StateError, ErrInvalidState
	}
}

// Tracker records operation state per key.
type Tracker interface {
	// Acquire marks key in progress for lockDuration. It returns StateNone when
	// the caller now owns the key, or the state somebody else recorded.
	Acquire(ctx context.Context, key string, lockDuration time.Duration) (State, error)
	MarkCompleted(ctx context.Context, key string, ttl time.Duration) error
	MarkFailed(ctx context.Context, key string, ttl time.Duration) error
}

// Idempotency is a Tracker that can also run a function at most once per key.
type Idempotency interface {
	Tracker
	Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...Option) error
}

const (
	defaultLockDuration = time.Minute
	defaultStateTTL     = time.Minute
)

type Option func(*execOptions)

type execOptions struct {
	lockDuration time.Duration
	stateTTL     time.Duration
}

// WithLockDuration sets how long an in-progress marker lives.
func WithLockDuration(lockDuration time.Duration) Option {
	return func(o *execOptions) {
		o.lockDuration = lockDuration
	}
}

// WithStateTTL sets how long the completed or failed marker lives.
func WithStateTTL(stateTTL time.Duration) Option {
	return func(o *execOptions) {
		o.stateTTL = stateTTL
	}
}

func exec(ctx context.Context, t Tracker, key string, fn func(context.Context) error, opts ...Option) error {
	execOpt := &execOptions{
		lockDuration: defaultLockDuration,
		stateTTL:     defaultStateTTL,
	}
	for _, opt := range opts {
		opt(execOpt)
	}
	if execOpt.lockDuration <= 0 {
		execOpt.lockDuration = defaultLockDuration
	}
	if execOpt.stateTTL <= 0 {
		execOpt.stateTTL = defaultStateTTL
	}

	state, err := t.Acquire(ctx, key, execOpt.lockDuration)
	if err != nil {
		return err
	}

	switch state {
	case StateInProgress:
		return ErrAlreadyInProgress
	case StateCompleted:
		return ErrAlreadyCompleted
	case StateFailed:
		return ErrAlreadyFailed
	}

	if err := fn(ctx); err != nil {
		if markErr := t.MarkFailed(ctx, key, execOpt.stateTTL); markErr != nil {
			return errors.Join(err, markErr)
		}
		return err
	}

	return t.MarkCompleted(ctx, key, execOpt.stateTTL)
}
