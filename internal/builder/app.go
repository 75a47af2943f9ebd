package builder

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/malykhin/ragchat-backend/internal/config"
	"github.com/malykhin/ragchat-backend/internal/usecase/maintenance"
)

const shutdownTimeout = 15 * time.Second

// App is the assembled HTTP application.
type App struct {
	cfg         *config.Config
	logger      *zap.Logger
	server      *http.Server
	maintenance *maintenance.MaintenanceUsecase
	cleanup     []func() error
}

// Run starts the HTTP server and the background reaper, then blocks until
// SIGINT/SIGTERM and shuts both down gracefully.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reaperCtx := ctxzap.ToContext(ctx, a.logger.With(zap.String("component", "reaper")))
	go a.maintenance.Run(reaperCtx, a.cfg.ReapInterval)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting", zap.String("addr", a.cfg.ServerAddr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.logger.Error("HTTP server failed", zap.Error(err))
		a.close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown failed", zap.Error(err))
	}

	a.close()
	a.logger.Info("shutdown complete")

	return nil
}

func (a *App) close() {
	for _, fn := range a.cleanup {
		if err := fn(); err != nil {
			a.logger.Error("cleanup failed", zap.Error(err))
		}
	}
}
