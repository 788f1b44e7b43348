package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sandeepkv93/device-session-guard/internal/config"
	"github.com/sandeepkv93/device-session-guard/internal/observability"
)

// BackgroundWaiter is satisfied by components that own detached goroutines.
type BackgroundWaiter interface {
	Wait(ctx context.Context) error
}

type App struct {
	Config          *config.Config
	Server          *http.Server
	Observability   *observability.Runtime
	Background      BackgroundWaiter
	ShutdownTimeout time.Duration
}

func New(cfg *config.Config, server *http.Server, runtime *observability.Runtime, background BackgroundWaiter) *App {
	return &App{
		Config:          cfg,
		Server:          server,
		Observability:   runtime,
		Background:      background,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}
}

// Run serves until ctx is cancelled or the listener fails, then shuts down.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "http server listening", "addr", ln.Addr().String())
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}
	return errors.Join(serveErr, a.Shutdown())
}

// Shutdown drains HTTP, waits for background sweeps and flushes telemetry. All steps
// share ShutdownTimeout. Stores are closed by the caller.
func (a *App) Shutdown() error {
	timeout := a.ShutdownTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if a.Background != nil {
		if err := a.Background.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("background wait: %w", err))
		}
	}
	if err := a.Observability.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("observability shutdown: %w", err))
	}
	slog.Info("shutdown complete", "errors", len(errs))
	return errors.Join(errs...)
}
