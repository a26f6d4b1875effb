package main

import (
	"fmt"
	"os"

	"github.com/goodtune/sitetime/internal/config"
	"github.com/goodtune/sitetime/internal/storage"
	"github.com/goodtune/sitetime/internal/usage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// app is what every subcommand needs: configuration, a logger and the
// tracker over the configured backend.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	store   storage.Store
	tracker *usage.Tracker
	backups *usage.Backups
}

func loadApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	store, err := openStorage(cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	logger.Debug().
		Str("type", cfg.Storage.Type).
		Str("key", cfg.Storage.Key).
		Msg("Storage initialized")

	tracker, err := usage.NewTracker(store, usage.Config{
		Key:          cfg.Storage.Key,
		Location:     loc,
		KeyCacheSize: cfg.Tracking.KeyCacheSize,
	}, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize tracker: %w", err)
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		tracker: tracker,
		backups: usage.NewBackups(tracker, cfg.Backups.Retention, nil, logger),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close storage")
	}
}

// setupLogger configures the logger based on configuration. Logs go to
// stderr so command output on stdout stays clean.
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "trace":
		level = zerolog.TraceLevel
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
