package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/allisson/klaviyo-relay/internal/app"
	"github.com/allisson/klaviyo-relay/internal/config"
	dispatchUseCase "github.com/allisson/klaviyo-relay/internal/dispatch/usecase"
)

// RunWorker runs the dispatch worker pool and, when enabled, the metrics server until
// SIGINT/SIGTERM. Jobs already claimed finish their current attempt or are reclaimed once
// their lease expires.
func RunWorker(ctx context.Context, version string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting worker", slog.String("version", version))

	defer closeContainer(container, logger)

	dispatcher, err := container.DispatchUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize dispatch use case: %w", err)
	}

	// Fail at startup rather than on every job when the api key cannot be resolved
	if _, err := container.MarketingClient(); err != nil {
		return fmt.Errorf("failed to initialize marketing client: %w", err)
	}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return RunDispatchWorkers(ctx, dispatcher, logger)
	})

	if metricsServer != nil {
		g.Go(func() error {
			return metricsServer.Start(ctx)
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.DBConnMaxLifetime)
			defer shutdownCancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// RunDispatchWorkers blocks in dispatcher.Start. Cancellation is a clean stop.
func RunDispatchWorkers(ctx context.Context, dispatcher dispatchUseCase.UseCase, logger *slog.Logger) error {
	err := dispatcher.Start(ctx)
	if err == nil || errors.Is(err, context.Canceled) {
		logger.Info("worker stopped")
		return nil
	}
	return fmt.Errorf("dispatch workers failed: %w", err)
}
