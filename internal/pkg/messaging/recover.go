package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"

	"github.com/shandysiswandi/otpgate/internal/pkg/stacktrace"
)

// responder tracks whether a message was acked or nacked already.
type responder struct {
	responded atomic.Bool
}

func (r *responder) respond() bool {
	return !r.responded.Swap(true)
}

func (r *responder) hasResponded() bool {
	return r.responded.Load()
}

type respondingMessage interface {
	Message
	hasResponded() bool
}

// dispatch runs handler with panic recovery and applies auto-ack.
func dispatch(ctx context.Context, kind string, msg respondingMessage, handler Handler, autoAck bool) error {
	herr := callHandlerWithRecover(ctx, kind, func() error {
		return handler(ctx, msg)
	})

	if msg.hasResponded() || !autoAck {
		return nil
	}

	if herr == nil {
		return msg.Ack(ctx)
	}

	return msg.Nack(ctx)
}

func callHandlerWithRecover(ctx context.Context, kind string, fn func() error) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			stack := debug.Stack()
			if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
				slog.ErrorContext(ctx, "panic in messaging handler", "kind", kind, "panic", rvr, "stack", paths)
			} else {
				slog.ErrorContext(ctx, "panic in messaging handler", "kind", kind, "panic", rvr, "stack", string(stack))
			}
			err = fmt.Errorf("messaging: panic in %s handler: %v", kind, rvr)
		}
	}()

	return fn()
}
