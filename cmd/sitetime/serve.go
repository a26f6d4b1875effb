package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goodtune/sitetime/internal/api"
	"github.com/goodtune/sitetime/internal/metrics"
	"github.com/goodtune/sitetime/internal/systemd"
	"github.com/goodtune/sitetime/internal/usage"
	"github.com/spf13/cobra"
)

var serveStdin bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tracker",
	Long: `Run the tick loop, the HTTP API and the metrics endpoint. Activity
signals arrive over POST /api/signals or, with --stdin, as one JSON
object per line on standard input.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveStdin, "stdin", false, "Read newline-delimited JSON activity signals from stdin")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	logger := a.logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Str("storage", cfg.Storage.Type).
		Msg("Starting sitetime")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Deferred after a.Close, so the store outlives every worker even when
	// startup fails part way.
	bg := newWorkers(cmd.Context())
	defer bg.Stop()
	ctx := bg.Context()

	recorder := usage.NewRecorder(a.tracker, usage.RecorderConfig{
		Domain:        cfg.Tracking.Domain,
		TickInterval:  cfg.TickInterval(),
		IdleThreshold: cfg.IdleThreshold(),
	}, logger)

	bg.Go(func(ctx context.Context) {
		if err := recorder.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("Recorder failed")
		}
	})

	if serveStdin {
		go func() {
			if err := readSignals(ctx, os.Stdin, recorder, logger); err != nil {
				logger.Error().Err(err).Msg("Failed to read signals from stdin")
			}
		}()
	}

	if cfg.Backups.Auto {
		loc, _ := cfg.Location()
		scheduler, err := usage.NewBackupScheduler(a.backups, cfg.Backups.DailyTime, loc, nil, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize backup scheduler: %w", err)
		}
		scheduler.Start(ctx)
		bg.OnStop(scheduler.Stop)
		logger.Info().Str("daily_time", cfg.Backups.DailyTime).Msg("Backup Scheduler started")
	}

	var apiServer *api.Server
	if cfg.Server.APIEnabled {
		apiAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.APIPort)
		apiServer = api.NewServer(api.Config{ListenAddr: apiAddr}, api.Deps{
			Tracker:  a.tracker,
			Backups:  a.backups,
			Recorder: recorder,
			Logger:   logger,
		})

		// Use systemd socket-activated listener if available
		if sdListeners.Activated && sdListeners.API != nil {
			apiServer.SetListener(sdListeners.API)
		}

		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API Server: %w", err)
		}
	}

	var metricsServer *metrics.Server
	if cfg.Server.MetricsEnabled {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
		metricsServer = metrics.NewServer(metricsAddr, logger)

		if sdListeners.Activated && sdListeners.Metrics != nil {
			metricsServer.SetListener(sdListeners.Metrics)
		}

		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start Metrics Server: %w", err)
		}
	}

	logger.Info().Msg("sitetime startup complete")

	// Notify systemd that we're ready to serve requests
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	} else {
		logger.Debug().Msg("Sent systemd ready notification")
	}
	go systemd.RunWatchdog(ctx, logger)

	// Wait for signals (shutdown or on-demand backup)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

wait:
	for {
		select {
		case <-ctx.Done():
			break wait
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				logger.Info().Msg("SIGHUP received, creating backup")
				if _, err := a.backups.Create(ctx); err != nil {
					logger.Error().Err(err).Msg("Failed to create backup")
				}
				continue
			}
			logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received, gracefully stopping...")
			break wait
		}
	}

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping API Server")
		}
	}
	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping Metrics Server")
		}
	}

	bg.Stop()

	logger.Info().Int64("session_seconds", recorder.Status().SessionSeconds).Msg("sitetime stopped")
	return nil
}
