package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mdobak/go-xerrors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/skypro1111/emotion-profile-service/internal/analysis"
	"github.com/skypro1111/emotion-profile-service/internal/audio"
	"github.com/skypro1111/emotion-profile-service/internal/config"
)

type analyzeOptions struct {
	configPath *string
	asJSON     bool
	workers    int
}

func newAnalyzeCommand(configPath *string) *cobra.Command {
	opts := &analyzeOptions{configPath: configPath}

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Analyze one recording and print its emotion profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runAnalyze(ctx, opts, args[0], cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the report as JSON")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Frames classified concurrently (0 uses the configured value)")

	return cmd
}

func runAnalyze(ctx context.Context, opts *analyzeOptions, path string, out io.Writer) error {
	cfg, err := config.Load(*opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.workers > 0 {
		cfg.Classifier.Workers = opts.workers
	}

	// the report goes to stdout, so logs that would go there move to stderr
	logger := initLogger(cfg.Logging, os.Stderr)

	if !audio.SupportedFormat(path) {
		return fmt.Errorf("%w: unsupported audio format %s", audio.ErrLoad, path)
	}

	// metrics are collected but not exposed for a single run
	p, err := newPipeline(cfg, logger, prometheus.NewRegistry())
	if err != nil {
		logger.Error("Failed to initialize pipeline", slog.Any("error", xerrors.New(err)))
		return err
	}
	defer func() {
		if err := p.client.Close(); err != nil {
			logger.Error("Error closing classifier client", slog.Any("error", xerrors.New(err)))
		}
	}()

	logger.Debug("Analysis starting",
		slog.String("source", path),
		slog.String("classifier_endpoint", cfg.Classifier.Endpoint),
		slog.Float64("frame_seconds", cfg.Framing.FrameSeconds),
		slog.Float64("overlap_seconds", cfg.Framing.OverlapSeconds),
		slog.Int("workers", cfg.Classifier.Workers),
	)

	report, err := p.service.Run(ctx, path)
	if err != nil {
		switch {
		case errors.Is(err, audio.ErrLoad):
			logger.Error("Failed to load audio", slog.String("source", path), slog.Any("error", xerrors.New(err)))
		case errors.Is(err, context.Canceled):
			logger.Warn("Analysis interrupted", slog.String("source", path))
		default:
			logger.Error("Analysis failed", slog.String("source", path), slog.Any("error", xerrors.New(err)))
		}
		return err
	}

	return writeReport(out, report, opts.asJSON)
}

func writeReport(out io.Writer, report *analysis.Report, asJSON bool) error {
	if !asJSON {
		return report.WriteText(out)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
