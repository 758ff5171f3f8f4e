package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/skypro1111/emotion-profile-service/internal/audio"
	"github.com/skypro1111/emotion-profile-service/internal/metrics"
)

// Loader produces waveforms from audio files
type Loader interface {
	Load(path string) (*audio.Waveform, error)
}

// Service runs load, analyze and summarize as a single operation
type Service struct {
	loader   Loader
	analyzer *Analyzer
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewService creates a run service. m may be nil.
func NewService(loader Loader, analyzer *Analyzer, logger *slog.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		loader:   loader,
		analyzer: analyzer,
		logger:   logger,
		metrics:  m,
	}
}

// Run loads path and analyses it. Load failures are returned before any
// framing starts and wrap audio.ErrLoad.
func (s *Service) Run(ctx context.Context, path string) (*Report, error) {
	if s.metrics != nil {
		s.metrics.RecordRunStarted()
	}

	wf, err := s.loader.Load(path)
	if err != nil {
		if !errors.Is(err, audio.ErrLoad) {
			err = fmt.Errorf("%w: %w", audio.ErrLoad, err)
		}
		s.recordFailure(err)
		return nil, err
	}

	s.logger.Info("Waveform loaded",
		slog.String("source", path),
		slog.Int("sample_rate", wf.SampleRate),
		slog.Float64("duration", wf.Duration()),
	)

	return s.analyze(ctx, path, wf)
}

// RunWaveform analyses an already loaded waveform
func (s *Service) RunWaveform(ctx context.Context, source string, wf *audio.Waveform) (*Report, error) {
	if s.metrics != nil {
		s.metrics.RecordRunStarted()
	}
	return s.analyze(ctx, source, wf)
}

func (s *Service) analyze(ctx context.Context, source string, wf *audio.Waveform) (*Report, error) {
	startTime := time.Now()

	res, err := s.analyzer.Run(ctx, wf)
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}

	report := &Report{
		ID:            uuid.NewString(),
		Source:        source,
		SampleRate:    wf.SampleRate,
		AudioDuration: wf.Duration(),
		Stats:         res.Stats,
		Predictions:   res.Predictions,
		Summary:       Summarize(res.Predictions),
		CreatedAt:     startTime,
		Elapsed:       time.Since(startTime),
	}

	if s.metrics != nil {
		s.metrics.RecordRunCompleted(report.Elapsed.Seconds(), report.AudioDuration)
	}

	s.logger.Info("Analysis completed",
		slog.String("report_id", report.ID),
		slog.String("source", source),
		slog.Int("frames", res.Stats.Frames),
		slog.Int("voiced", res.Stats.Voiced),
		slog.Int("failed", res.Stats.Failed),
		slog.Int("segments", report.Summary.SegmentCount),
		slog.String("dominant_label", report.Summary.DominantLabel),
		slog.Duration("elapsed", report.Elapsed),
	)

	return report, nil
}

func (s *Service) recordFailure(err error) {
	if s.metrics == nil {
		return
	}

	reason := "other"
	switch {
	case errors.Is(err, audio.ErrLoad):
		reason = "load"
	case errors.Is(err, audio.ErrInvalidFraming):
		reason = "config"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		reason = "canceled"
	}
	s.metrics.RecordRunFailed(reason)
}
