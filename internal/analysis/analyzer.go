package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skypro1111/emotion-profile-service/internal/audio"
	"github.com/skypro1111/emotion-profile-service/internal/classifier"
	"github.com/skypro1111/emotion-profile-service/internal/metrics"
	"github.com/skypro1111/emotion-profile-service/internal/vad"
)

// Prediction is the emotion assigned to one voiced frame
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Start      float64 `json:"start"` // seconds
	End        float64 `json:"end"`   // seconds
}

// FrameStats counts what happened to the frames of one run
type FrameStats struct {
	Frames     int `json:"frames"`
	Voiced     int `json:"voiced"`
	Classified int `json:"classified"`
	Failed     int `json:"failed"`
}

// Result is the output of one analysis
type Result struct {
	Predictions []Prediction `json:"predictions"`
	Stats       FrameStats   `json:"stats"`
}

// Config contains analyzer configuration
type Config struct {
	Framing audio.FramingConfig
	Workers int // frames classified concurrently, values below 2 run sequentially
}

// Analyzer runs the frame, filter and classify stages over a waveform.
// One Analyzer serves any number of concurrent runs; each run owns its
// frames and predictions.
type Analyzer struct {
	framing    audio.FramingConfig
	workers    int
	detector   *vad.Detector
	classifier classifier.Classifier
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type frameOutcome int

const (
	outcomeNoSpeech frameOutcome = iota
	outcomeFailed
	outcomeClassified
)

// NewAnalyzer creates an analyzer. m may be nil.
func NewAnalyzer(cfg Config, detector *vad.Detector, clf classifier.Classifier,
	logger *slog.Logger, m *metrics.Metrics) (*Analyzer, error) {

	if detector == nil {
		return nil, fmt.Errorf("voice activity detector is required")
	}

	if clf == nil {
		return nil, fmt.Errorf("classifier is required")
	}

	if cfg.Framing.FrameSeconds <= 0 || cfg.Framing.OverlapSeconds < 0 ||
		cfg.Framing.OverlapSeconds >= cfg.Framing.FrameSeconds {
		return nil, fmt.Errorf("%w: frame %f s, overlap %f s",
			audio.ErrInvalidFraming, cfg.Framing.FrameSeconds, cfg.Framing.OverlapSeconds)
	}

	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Analyzer{
		framing:    cfg.Framing,
		workers:    cfg.Workers,
		detector:   detector,
		classifier: clf,
		logger:     logger,
		metrics:    m,
	}, nil
}

// Analyze returns the predictions for wf ordered by start time
func (a *Analyzer) Analyze(ctx context.Context, wf *audio.Waveform) ([]Prediction, error) {
	res, err := a.Run(ctx, wf)
	if err != nil {
		return nil, err
	}
	return res.Predictions, nil
}

// Run analyses wf and also reports frame statistics.
//
// Framing errors are returned before any frame is classified. Classifier
// failures skip the frame. If ctx ends the run returns ctx.Err() and no
// predictions.
func (a *Analyzer) Run(ctx context.Context, wf *audio.Waveform) (*Result, error) {
	w, err := audio.NewWindower(wf, a.framing)
	if err != nil {
		return nil, err
	}

	var res *Result
	if a.workers > 1 {
		res, err = a.runParallel(ctx, w, wf.SampleRate)
	} else {
		res, err = a.runSequential(ctx, w, wf.SampleRate)
	}
	if err != nil {
		return nil, err
	}

	if res.Predictions == nil {
		res.Predictions = []Prediction{}
	}
	return res, nil
}

func (a *Analyzer) runSequential(ctx context.Context, w *audio.Windower, sampleRate int) (*Result, error) {
	res := &Result{Predictions: make([]Prediction, 0, w.Count())}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frame, ok := w.Next()
		if !ok {
			break
		}

		pred, outcome, err := a.processFrame(ctx, frame, sampleRate)
		if err != nil {
			return nil, err
		}

		res.Stats.add(outcome)
		if pred != nil {
			res.Predictions = append(res.Predictions, *pred)
		}
	}

	return res, nil
}

// runParallel classifies frames on a bounded set of goroutines. Each frame
// writes its own slot, so compacting the slots restores start-time order.
func (a *Analyzer) runParallel(ctx context.Context, w *audio.Windower, sampleRate int) (*Result, error) {
	type slot struct {
		pred    *Prediction
		outcome frameOutcome
	}

	slots := make([]slot, w.Count())
	frames := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)

	for gctx.Err() == nil {
		frame, ok := w.Next()
		if !ok {
			break
		}
		frames++

		g.Go(func() error {
			pred, outcome, err := a.processFrame(gctx, frame, sampleRate)
			if err != nil {
				return err
			}
			slots[frame.Index] = slot{pred: pred, outcome: outcome}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{Predictions: make([]Prediction, 0, frames)}
	for _, s := range slots[:frames] {
		res.Stats.add(s.outcome)
		if s.pred != nil {
			res.Predictions = append(res.Predictions, *s.pred)
		}
	}
	return res, nil
}

// processFrame applies the voice filter and, for speech, makes exactly one
// classifier call. The error result is reserved for cancellation.
func (a *Analyzer) processFrame(ctx context.Context, frame audio.Frame, sampleRate int) (*Prediction, frameOutcome, error) {
	m := a.detector.Measure(frame.Samples)
	if a.metrics != nil {
		a.metrics.RecordFrame(m.RMS, m.ZCR, m.Speech)
	}

	if !m.Speech {
		a.logger.Debug("Frame skipped, no speech",
			slog.Int("frame_index", frame.Index),
			slog.Float64("start", frame.Start),
			slog.Float64("end", frame.End),
			slog.Float64("rms", m.RMS),
			slog.Float64("zcr", m.ZCR),
		)
		return nil, outcomeNoSpeech, nil
	}

	startTime := time.Now()
	label, err := a.classifier.Classify(ctx, frame.Samples, sampleRate)
	if err == nil {
		err = validateLabel(label)
	}
	elapsed := time.Since(startTime)

	if a.metrics != nil {
		a.metrics.RecordClassification(elapsed.Seconds(), err == nil)
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, outcomeFailed, ctxErr
		}

		a.logger.Warn("Frame classification failed",
			slog.Int("frame_index", frame.Index),
			slog.Float64("start", frame.Start),
			slog.Float64("end", frame.End),
			slog.String("error", err.Error()),
		)
		return nil, outcomeFailed, nil
	}

	if a.metrics != nil {
		a.metrics.RecordPrediction(label.Name, label.Confidence)
	}

	a.logger.Debug("Frame classified",
		slog.Int("frame_index", frame.Index),
		slog.Float64("start", frame.Start),
		slog.Float64("end", frame.End),
		slog.String("label", label.Name),
		slog.Float64("confidence", label.Confidence),
		slog.Duration("elapsed", elapsed),
	)

	return &Prediction{
		Label:      label.Name,
		Confidence: label.Confidence,
		Start:      frame.Start,
		End:        frame.End,
	}, outcomeClassified, nil
}

func validateLabel(label classifier.Label) error {
	if label.Name == "" {
		return fmt.Errorf("classifier returned an empty label")
	}
	if math.IsNaN(label.Confidence) || label.Confidence < 0 || label.Confidence > 1 {
		return fmt.Errorf("classifier confidence %f outside [0, 1]", label.Confidence)
	}
	return nil
}

func (s *FrameStats) add(outcome frameOutcome) {
	s.Frames++
	switch outcome {
	case outcomeFailed:
		s.Voiced++
		s.Failed++
	case outcomeClassified:
		s.Voiced++
		s.Classified++
	}
}
