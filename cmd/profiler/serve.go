package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mdobak/go-xerrors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/skypro1111/emotion-profile-service/internal/config"
	"github.com/skypro1111/emotion-profile-service/internal/server"
)

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP analysis API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if !cfg.HTTP.Enabled {
		return fmt.Errorf("http is disabled in %s, nothing to serve", configPath)
	}

	logger := initLogger(cfg.Logging, nil)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("target_sample_rate", cfg.Audio.TargetSampleRate),
		slog.Float64("trim_top_db", cfg.Audio.TrimTopDB),
		slog.Float64("frame_seconds", cfg.Framing.FrameSeconds),
		slog.Float64("overlap_seconds", cfg.Framing.OverlapSeconds),
		slog.Float64("vad_min_rms", cfg.VAD.MinRMS),
		slog.Float64("vad_max_zcr", cfg.VAD.MaxZCR),
		slog.String("classifier_endpoint", cfg.Classifier.Endpoint),
		slog.Int("classifier_workers", cfg.Classifier.Workers),
		slog.String("log_level", cfg.Logging.Level),
	)

	p, err := newPipeline(cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Error("Failed to initialize pipeline", slog.Any("error", xerrors.New(err)))
		return err
	}
	logger.Info("Pipeline initialized",
		slog.String("classifier_endpoint", cfg.Classifier.Endpoint),
		slog.Int("classifier_max_concurrent", cfg.Classifier.MaxConcurrent),
	)

	httpServer := server.NewHTTPServer(cfg, logger, p.service, p.loader, p.client, p.metrics, prometheus.DefaultGatherer)
	if err := httpServer.Start(); err != nil {
		logger.Error("Failed to start HTTP server", slog.Any("error", xerrors.New(err)))
		p.client.Close()
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("http_address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
	)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new uploads, let running analyses finish)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.Any("error", xerrors.New(err)))
	}

	// The classifier is closed last, after no analysis can reach it
	if err := p.client.Close(); err != nil {
		logger.Error("Error closing classifier client", slog.Any("error", xerrors.New(err)))
	}

	stats := p.client.GetStats()
	logger.Info("Final classifier statistics",
		slog.Uint64("total_requests", stats.TotalRequests),
		slog.Uint64("success_requests", stats.SuccessRequests),
		slog.Uint64("failed_requests", stats.FailedRequests),
		slog.Duration("avg_response_time", stats.AvgResponseTime),
	)

	logger.Info("Service stopped")
	return nil
}
