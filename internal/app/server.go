package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const defaultShutdownTimeout = 10 * time.Second

// Start binds the HTTP listener and serves in the background. The returned
// channel is closed once a termination signal arrives or the server fails.
func (a *App) Start() <-chan struct{} {
	terminateChan := make(chan struct{})

	l, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		slog.Error("failed to bind http listener", "address", a.httpServer.Addr, "error", err)
		os.Exit(1)
	}

	serveErr := a.Serve(l)
	slog.Info("http server listening", "address", l.Addr().String())

	go func() {
		ctx, stop := signal.NotifyContext(a.ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
		defer stop()

		select {
		case <-ctx.Done():
			slog.Info("termination signal received")
		case err := <-serveErr:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server stopped unexpectedly", "error", err)
			}
		}

		close(terminateChan)
	}()

	return terminateChan
}

// Serve runs the HTTP server on the provided listener.
func (a *App) Serve(l net.Listener) <-chan error {
	errChan := make(chan error, 1)

	go func() {
		errChan <- a.httpServer.Serve(l)
		close(errChan)
	}()

	return errChan
}

// ShutdownTimeout bounds how long Stop may take.
func (a *App) ShutdownTimeout() time.Duration {
	if v := a.config.GetSecond("app.server.shutdown_timeout_seconds"); v > 0 {
		return v
	}
	return defaultShutdownTimeout
}

// Stop cancels background work, drains in-flight HTTP requests, waits for
// message consumers and finally releases resources.
func (a *App) Stop(ctx context.Context) {
	if a.cancel != nil {
		a.cancel()
	}

	if err := a.httpServer.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to close resources", "name", "HTTP Server", "error", err)
	}

	slog.InfoContext(ctx, "waiting for all goroutine to finish")
	if err := a.goroutine.Wait(); err != nil {
		slog.ErrorContext(ctx, "error from goroutines executions", "error", err)
	}
	slog.InfoContext(ctx, "all goroutines have finished successfully")

	a.closeResources(ctx)
	slog.InfoContext(ctx, "application gracefully shutdown")
}
