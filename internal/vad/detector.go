package vad

import (
	"fmt"
	"math"
)

const (
	// DefaultMinRMS rejects frames quieter than this RMS amplitude
	DefaultMinRMS = 0.005

	// DefaultMaxZCR rejects frames whose zero-crossing rate exceeds this
	DefaultMaxZCR = 0.4
)

// Config contains the detector thresholds
type Config struct {
	MinRMS float64
	MaxZCR float64
}

// DefaultConfig returns the thresholds the detector ships with
func DefaultConfig() Config {
	return Config{MinRMS: DefaultMinRMS, MaxZCR: DefaultMaxZCR}
}

// Detector is a stateless energy and zero-crossing voice activity filter.
// It is safe for concurrent use.
type Detector struct {
	minRMS float64
	maxZCR float64
}

// Measurement holds the statistics behind a speech decision
type Measurement struct {
	RMS    float64 `json:"rms"`
	ZCR    float64 `json:"zcr"`
	Speech bool    `json:"speech"`
}

// NewDetector creates a detector with the given thresholds
func NewDetector(cfg Config) (*Detector, error) {
	if cfg.MinRMS < 0 {
		return nil, fmt.Errorf("min_rms cannot be negative, got %f", cfg.MinRMS)
	}

	if cfg.MaxZCR <= 0 || cfg.MaxZCR > 1 {
		return nil, fmt.Errorf("max_zcr must be within (0, 1], got %f", cfg.MaxZCR)
	}

	return &Detector{minRMS: cfg.MinRMS, maxZCR: cfg.MaxZCR}, nil
}

// IsSpeech reports whether samples pass both the energy and the
// zero-crossing checks. Empty input is never speech.
func (d *Detector) IsSpeech(samples []float64) bool {
	return d.Measure(samples).Speech
}

// Measure computes RMS and zero-crossing rate and applies the thresholds.
// ZCR is skipped when the energy check already failed.
func (d *Detector) Measure(samples []float64) Measurement {
	var m Measurement
	if len(samples) == 0 {
		return m
	}

	m.RMS = RMS(samples)
	if m.RMS < d.minRMS {
		return m
	}

	m.ZCR = ZeroCrossingRate(samples)
	m.Speech = m.ZCR <= d.maxZCR
	return m
}

// Thresholds returns the configured thresholds
func (d *Detector) Thresholds() Config {
	return Config{MinRMS: d.minRMS, MaxZCR: d.maxZCR}
}

// RMS returns the root-mean-square amplitude of samples
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// ZeroCrossingRate returns the fraction of adjacent sample pairs whose
// signs differ. Zero counts as positive.
func ZeroCrossingRate(samples []float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	var crossings int
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] < 0) != (samples[i] < 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(samples)-1)
}
