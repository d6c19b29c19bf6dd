// Package entrypoint runs the long-lived catalog worker: the activity
// writers, the durable task queue, the retention schedule and the admin
// HTTP server, until the process is asked to stop.
package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/catalog/internal/catalog"
	"github.com/mrlokans/catalog/internal/config"
	http_controllers "github.com/mrlokans/catalog/internal/http"
	"github.com/mrlokans/catalog/internal/logging"
)

// Serve runs srv until ctx is done, then shuts it down within the
// configured timeout. onShutdown runs before the server stops.
func Serve(ctx context.Context, srv *http.Server, cfg *config.Config, onShutdown func(ctx context.Context)) error {
	logger := logging.WithField("component", "http")

	errCh := make(chan error, 1)
	if srv != nil {
		go func() {
			logger.WithField("addr", srv.Addr).Info("starting admin server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("listen: %w", err)
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	timeout := cfg.ShutdownTimeout()
	logger.WithField("timeout", timeout).Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if onShutdown != nil {
		onShutdown(shutdownCtx)
	}

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Join(serveErr, fmt.Errorf("server shutdown: %w", err))
		}
	}
	return serveErr
}

// RunWorker opens the catalog, starts its background work and blocks until
// SIGINT or SIGTERM.
func RunWorker(cfg *config.Config, version string) error {
	logger := logging.CLI()
	logger.WithField("version", version).Info("starting catalog worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := catalog.Open(ctx, cfg)
	if err != nil {
		return err
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	if err := c.Start(runCtx); err != nil {
		_ = c.Close(context.Background())
		return err
	}

	var srv *http.Server
	if cfg.HTTP.Enabled {
		gin.SetMode(gin.ReleaseMode)
		router := http_controllers.NewRouter(http_controllers.RouterConfig{
			Checks: map[string]http_controllers.Pinger{
				catalog.MainPoolName:     c.Pool,
				catalog.ActivityPoolName: c.ActivityPool,
			},
			Gatherer: c.Gatherer,
			Version:  version,
		})
		srv = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
			Handler: router,
		}
	}

	err = Serve(ctx, srv, cfg, func(shutdownCtx context.Context) {
		cancelRun()
		if cerr := c.Close(shutdownCtx); cerr != nil {
			logger.WithError(cerr).Error("error during shutdown")
		}
	})
	if err != nil {
		return err
	}

	logger.Info("worker exiting")
	return nil
}
