package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kshg9/FSO-part11-ci-phonebook/api"
	"github.com/kshg9/FSO-part11-ci-phonebook/internal/config"
	"github.com/kshg9/FSO-part11-ci-phonebook/internal/events"
	"github.com/kshg9/FSO-part11-ci-phonebook/internal/migrations"
	"github.com/kshg9/FSO-part11-ci-phonebook/internal/server"
	"github.com/kshg9/FSO-part11-ci-phonebook/internal/store"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	// 1. Configuration.
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// 2. Logging.
	logger := setupLogger(cfg)
	logger.Info().Str("version", version).Str("commit", commit).Str("build_date", buildDate).Msg("starting phonebook")

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// 3. Store.
	st, err := store.Open(ctx, cfg.DBURI)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close store")
		}
	}()

	// 4. Migrations.
	if err := migrateOnStart(cfg, st, logger); err != nil {
		return err
	}

	// 5. Event publisher.
	publisher, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := publisher.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close event publisher")
		}
	}()

	// 6. HTTP server.
	srv := server.New(st, cfg, version, commit, buildDate,
		server.WithOpenAPISpec(api.OpenAPISpec),
		server.WithPublisher(publisher),
		server.WithLogger(log.Logger),
	)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("HTTP server listening")
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
		}
	}()

	// 7. Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var serveErr error
	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case serveErr = <-errCh:
		logger.Error().Err(serveErr).Msg("HTTP server error")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error().Err(shutdownErr).Msg("HTTP server shutdown error")
	}
	logger.Info().Msg("server stopped gracefully")
	return serveErr
}

func migrateOnStart(cfg config.Config, st store.Store, logger zerolog.Logger) error {
	sqlStore, ok := st.(*store.SQLStore)
	if !ok {
		return nil
	}
	if !cfg.MigrateOnStart {
		logger.Info().Msg("skipping database migrations")
		return nil
	}

	result, err := migrations.Up(sqlStore.DB(), sqlStore.Dialect(), cfg.DBURI)
	if err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info().Uint("version", result.Version).Bool("dirty", result.Dirty).Msg("database migration complete")
	return nil
}

func newPublisher(cfg config.Config) (events.Publisher, error) {
	if cfg.NATSURL == "" {
		return events.NoopPublisher{}, nil
	}

	publisher, err := events.NewNATSPublisher(events.Config{
		URL:             cfg.NATSURL,
		Name:            "phonebook",
		SubjectPrefix:   cfg.NATSSubjectPrefix,
		BreakerFailures: uint32(cfg.BreakerFailures),
		BreakerTimeout:  cfg.BreakerTimeout,
	}, log.With().Str("component", "events").Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return publisher, nil
}
