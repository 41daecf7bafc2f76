package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/concoursapp/catalogsync/internal/domain/catalog"
	"github.com/concoursapp/catalogsync/internal/infra/config"
)

// Lifecycle is implemented by long-running components that need explicit
// startup and shutdown, such as the connectivity probe.
type Lifecycle interface {
	Start()
	Stop()
}

// App encapsulates the orchestrator and HTTP server lifecycle.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	server  *http.Server
	svc     catalog.Service
	monitor Lifecycle
}

// NewApp is used by Wire to build the runnable app.
func NewApp(cfg *config.Config, logger *slog.Logger, server *http.Server, svc catalog.Service, monitor Lifecycle) *App {
	return &App{
		cfg:     cfg,
		logger:  logger.With("component", "bootstrap"),
		server:  server,
		svc:     svc,
		monitor: monitor,
	}
}

// Run starts the monitor, the orchestrator and the HTTP server, then blocks
// until shutdown.
func (a *App) Run(ctx context.Context) error {
	if a.monitor != nil {
		a.monitor.Start()
	}

	if err := a.svc.Start(ctx); err != nil {
		return err
	}
	defer a.svc.Close()

	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("http server starting", "address", a.cfg.HTTP.Address)
		if err := a.server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.logger.Info("shutdown signal received")
		if a.monitor != nil {
			a.monitor.Stop()
		}
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if a.monitor != nil {
			a.monitor.Stop()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
