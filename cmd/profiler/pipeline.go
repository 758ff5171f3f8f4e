package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/skypro1111/emotion-profile-service/internal/analysis"
	"github.com/skypro1111/emotion-profile-service/internal/audio"
	"github.com/skypro1111/emotion-profile-service/internal/classifier"
	"github.com/skypro1111/emotion-profile-service/internal/config"
	"github.com/skypro1111/emotion-profile-service/internal/metrics"
	"github.com/skypro1111/emotion-profile-service/internal/vad"
)

// pipeline holds the long-lived components shared by every run
type pipeline struct {
	client   *classifier.Client
	loader   *audio.Loader
	analyzer *analysis.Analyzer
	service  *analysis.Service
	metrics  *metrics.Metrics
}

// newPipeline constructs the classifier once and wires it into the analyzer.
// The caller owns the returned client and must Close it.
func newPipeline(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*pipeline, error) {
	appMetrics := metrics.NewMetrics(reg)

	client, err := classifier.NewClient(classifier.Config{
		Endpoint:      cfg.Classifier.Endpoint,
		APIKey:        cfg.Classifier.APIKey,
		Timeout:       cfg.Classifier.GetTimeoutDuration(),
		MaxConcurrent: cfg.Classifier.MaxConcurrent,
		UserAgent:     fmt.Sprintf("%s/%s", serviceName, serviceVersion),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier client: %w", err)
	}

	detector, err := vad.NewDetector(vad.Config{
		MinRMS: cfg.VAD.MinRMS,
		MaxZCR: cfg.VAD.MaxZCR,
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create voice activity detector: %w", err)
	}

	analyzer, err := analysis.NewAnalyzer(analysis.Config{
		Framing: audio.FramingConfig{
			FrameSeconds:    cfg.Framing.FrameSeconds,
			OverlapSeconds:  cfg.Framing.OverlapSeconds,
			MinTailFraction: cfg.Framing.MinTailFraction,
		},
		Workers: cfg.Classifier.Workers,
	}, detector, client, logger, appMetrics)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create analyzer: %w", err)
	}

	loader := audio.NewLoader(audio.LoaderConfig{
		SampleRate: cfg.Audio.TargetSampleRate,
		TrimTopDB:  cfg.Audio.TrimTopDB,
	})

	return &pipeline{
		client:   client,
		loader:   loader,
		analyzer: analyzer,
		service:  analysis.NewService(loader, analyzer, logger, appMetrics),
		metrics:  appMetrics,
	}, nil
}

// initLogger creates and configures the structured logger based on configuration.
// stdoutFallback replaces stdout when stdout carries command output.
func initLogger(cfg config.LoggingConfig, stdoutFallback io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output io.Writer
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
		if stdoutFallback != nil {
			output = stdoutFallback
		}
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stderr\n", cfg.Output, err)
			output = os.Stderr
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
