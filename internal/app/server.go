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

// Start serves on app.server.http.address. The returned channel closes on
// SIGINT, SIGTERM or SIGHUP, or when the listener fails; in the latter case
// Err reports why.
func (a *App) Start() <-chan struct{} {
	done := make(chan struct{})

	go func() {
		slog.Info("http server listening", "address", a.httpServer.Addr)

		if err := a.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server stopped unexpectedly", "error", err)
			a.serveErr.Store(err)
			a.cancel()
		}
	}()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(sig)

		select {
		case s := <-sig:
			slog.Info("shutdown requested", "signal", s.String())
		case <-a.ctx.Done():
		}

		close(done)
	}()

	return done
}

// Serve runs the HTTP server on l. The channel yields the result of
// http.Server.Serve, which is http.ErrServerClosed after Stop.
func (a *App) Serve(l net.Listener) <-chan error {
	errChan := make(chan error, 1)

	go func() {
		errChan <- a.httpServer.Serve(l)
		close(errChan)
	}()

	return errChan
}

// Err is the listener failure that ended Start, if any.
func (a *App) Err() error {
	return a.serveErr.Load()
}

// ShutdownTimeout is how long Stop may wait for in-flight requests.
func (a *App) ShutdownTimeout() time.Duration {
	return a.config.GetSecond("app.server.shutdown_timeout_seconds")
}

// Stop stops accepting submissions, waits for in-flight ones until ctx
// expires, then releases resources in reverse order of creation.
func (a *App) Stop(ctx context.Context) {
	a.cancel()

	start := time.Now()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to drain http server", "error", err)
	}

	a.close(ctx)

	slog.InfoContext(ctx, "application stopped",
		"drain_ms", time.Since(start).Milliseconds(),
		"uptime", time.Since(a.startedAt).Round(time.Second).String(),
	)
}

func (a *App) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		closer := a.closers[i]
		if err := closer.fn(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to close resource", "name", closer.name, "error", err)
		}
	}
}
