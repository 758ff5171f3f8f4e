package audio

import (
	"fmt"
	"math"
)

// DefaultMinTailFraction is the share of a frame a trailing remainder must
// cover to be kept (and zero padded) instead of dropped.
const DefaultMinTailFraction = 1.0 / 3.0

// FramingConfig contains the window parameters of the analysis
type FramingConfig struct {
	FrameSeconds    float64
	OverlapSeconds  float64
	MinTailFraction float64 // 0 selects DefaultMinTailFraction
}

// Windower produces the frames of a waveform in order.
// It is single use: once exhausted it keeps reporting no more frames.
type Windower struct {
	samples    []float64
	sampleRate int

	frameSamples int
	stepSamples  int
	minTail      int
	count        int

	next int
	done bool
}

// NewWindower validates the framing parameters against the waveform's
// sample rate and returns a windower positioned at the first frame.
func NewWindower(wf *Waveform, cfg FramingConfig) (*Windower, error) {
	if wf == nil || wf.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive", ErrInvalidFraming)
	}

	if cfg.FrameSeconds <= 0 {
		return nil, fmt.Errorf("%w: frame duration must be positive, got %f", ErrInvalidFraming, cfg.FrameSeconds)
	}

	if cfg.OverlapSeconds < 0 {
		return nil, fmt.Errorf("%w: overlap cannot be negative, got %f", ErrInvalidFraming, cfg.OverlapSeconds)
	}

	fraction := cfg.MinTailFraction
	if fraction == 0 {
		fraction = DefaultMinTailFraction
	}
	if fraction < 0 || fraction > 1 {
		return nil, fmt.Errorf("%w: min tail fraction must be within [0, 1], got %f", ErrInvalidFraming, fraction)
	}

	frameSamples := int(cfg.FrameSeconds * float64(wf.SampleRate))
	overlapSamples := int(cfg.OverlapSeconds * float64(wf.SampleRate))
	step := frameSamples - overlapSamples

	if frameSamples <= 0 {
		return nil, fmt.Errorf("%w: frame of %f s is shorter than one sample", ErrInvalidFraming, cfg.FrameSeconds)
	}
	if step <= 0 {
		return nil, fmt.Errorf("%w: overlap (%f s) must be shorter than the frame (%f s)",
			ErrInvalidFraming, cfg.OverlapSeconds, cfg.FrameSeconds)
	}

	count := ceilDiv(len(wf.Samples)-frameSamples, step) + 1
	if count < 0 {
		count = 0
	}

	return &Windower{
		samples:      wf.Samples,
		sampleRate:   wf.SampleRate,
		frameSamples: frameSamples,
		stepSamples:  step,
		minTail:      int(math.Floor(float64(frameSamples) * fraction)),
		count:        count,
	}, nil
}

// Next returns the next frame. The second result is false once the
// sequence is exhausted, including when a trailing remainder is too short.
func (w *Windower) Next() (Frame, bool) {
	if w.done || w.next >= w.count {
		w.done = true
		return Frame{}, false
	}

	index := w.next
	start := index * w.stepSamples
	end := start + w.frameSamples
	if end > len(w.samples) {
		end = len(w.samples)
	}

	if end-start < w.minTail {
		w.done = true
		return Frame{}, false
	}
	w.next++

	samples := make([]float64, w.frameSamples)
	copy(samples, w.samples[start:end])

	rate := float64(w.sampleRate)
	return Frame{
		Index:       index,
		Samples:     samples,
		StartSample: start,
		EndSample:   end,
		Start:       float64(start) / rate,
		End:         float64(end) / rate,
		Padded:      end-start < w.frameSamples,
	}, true
}

// Count returns the number of frame positions before the edge policy is
// applied; the final position may still be dropped by Next.
func (w *Windower) Count() int {
	return w.count
}

// FrameSamples returns the fixed frame length in samples
func (w *Windower) FrameSamples() int {
	return w.frameSamples
}

// StepSamples returns the hop between frame starts in samples
func (w *Windower) StepSamples() int {
	return w.stepSamples
}

// Frames drains a new windower over wf into a slice
func Frames(wf *Waveform, cfg FramingConfig) ([]Frame, error) {
	w, err := NewWindower(wf, cfg)
	if err != nil {
		return nil, err
	}

	frames := make([]Frame, 0, w.Count())
	for {
		f, ok := w.Next()
		if !ok {
			break
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// ceilDiv is ceil(a/b) for b > 0 and any sign of a
func ceilDiv(a, b int) int {
	q := a / b
	if a%b != 0 && a > 0 {
		q++
	}
	return q
}
