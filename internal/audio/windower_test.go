package audio

import (
	"errors"
	"math"
	"testing"
)

const testRate = 16000

func makeWaveform(seconds float64) *Waveform {
	n := int(seconds * testRate)
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*220*float64(i)/testRate)
	}
	return &Waveform{Samples: samples, SampleRate: testRate}
}

func TestWindowerThreeSeconds(t *testing.T) {
	frames, err := Frames(makeWaveform(3.0), FramingConfig{FrameSeconds: 1.0, OverlapSeconds: 0.5})
	if err != nil {
		t.Fatalf("Frames failed: %v", err)
	}

	if len(frames) != 5 {
		t.Fatalf("Expected 5 frames, got %d", len(frames))
	}

	expectedStarts := []float64{0.0, 0.5, 1.0, 1.5, 2.0}
	for i, f := range frames {
		if f.Index != i {
			t.Errorf("Frame %d: expected index %d, got %d", i, i, f.Index)
		}
		if math.Abs(f.Start-expectedStarts[i]) > 1e-9 {
			t.Errorf("Frame %d: expected start %.2f, got %.4f", i, expectedStarts[i], f.Start)
		}
		if math.Abs(f.End-(expectedStarts[i]+1.0)) > 1e-9 {
			t.Errorf("Frame %d: expected end %.2f, got %.4f", i, expectedStarts[i]+1.0, f.End)
		}
		if f.Padded {
			t.Errorf("Frame %d: expected no padding", i)
		}
		if f.EndSample-f.StartSample != testRate {
			t.Errorf("Frame %d: expected %d real samples, got %d", i, testRate, f.EndSample-f.StartSample)
		}
	}
}

func TestWindowerPadsShortTail(t *testing.T) {
	wf := makeWaveform(1.2)
	frames, err := Frames(wf, FramingConfig{FrameSeconds: 1.0, OverlapSeconds: 0.5})
	if err != nil {
		t.Fatalf("Frames failed: %v", err)
	}

	if len(frames) != 2 {
		t.Fatalf("Expected 2 frames, got %d", len(frames))
	}

	tail := frames[1]
	if !tail.Padded {
		t.Error("Expected final frame to be padded")
	}
	if len(tail.Samples) != testRate {
		t.Errorf("Expected padded frame of %d samples, got %d", testRate, len(tail.Samples))
	}
	if math.Abs(tail.Start-0.5) > 1e-9 || math.Abs(tail.End-1.2) > 1e-9 {
		t.Errorf("Expected span [0.5, 1.2], got [%.4f, %.4f]", tail.Start, tail.End)
	}

	real := tail.EndSample - tail.StartSample
	for i, s := range tail.Samples[:real] {
		if s != wf.Samples[tail.StartSample+i] {
			t.Fatalf("Sample %d of tail does not match source", i)
		}
	}
	for i, s := range tail.Samples[real:] {
		if s != 0 {
			t.Fatalf("Padding sample %d is %f, expected 0", i, s)
		}
	}
}

func TestWindowerDropsTinyTail(t *testing.T) {
	// 3.1 s without overlap: positions at 0, 1, 2 and 3 s; the last holds 0.1 s
	wf := makeWaveform(3.1)
	cfg := FramingConfig{FrameSeconds: 1.0, OverlapSeconds: 0}

	w, err := NewWindower(wf, cfg)
	if err != nil {
		t.Fatalf("NewWindower failed: %v", err)
	}
	if w.Count() != 4 {
		t.Errorf("Expected 4 frame positions, got %d", w.Count())
	}

	frames, err := Frames(wf, cfg)
	if err != nil {
		t.Fatalf("Frames failed: %v", err)
	}

	if len(frames) != 3 {
		t.Fatalf("Expected 3 frames, got %d", len(frames))
	}

	for _, f := range frames {
		if f.Padded {
			t.Errorf("Frame %d: expected no padding", f.Index)
		}
	}
}

func TestWindowerFrameCount(t *testing.T) {
	tests := []struct {
		name     string
		seconds  float64
		frame    float64
		overlap  float64
		expected int
	}{
		{name: "empty", seconds: 0, frame: 1.0, overlap: 0.5, expected: 0},
		{name: "shorter than a third", seconds: 0.2, frame: 1.0, overlap: 0.5, expected: 0},
		{name: "short single frame", seconds: 0.7, frame: 1.0, overlap: 0.5, expected: 1},
		{name: "exact frame", seconds: 1.0, frame: 1.0, overlap: 0.5, expected: 1},
		{name: "no overlap", seconds: 3.0, frame: 1.0, overlap: 0, expected: 3},
		{name: "dropped remainder", seconds: 3.1, frame: 1.0, overlap: 0, expected: 3},
		{name: "kept remainder", seconds: 3.5, frame: 1.0, overlap: 0, expected: 4},
		{name: "half second hop", seconds: 3.0, frame: 1.0, overlap: 0.5, expected: 5},
		{name: "long recording", seconds: 10.25, frame: 1.0, overlap: 0.5, expected: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := FramingConfig{FrameSeconds: tt.frame, OverlapSeconds: tt.overlap}
			first, err := Frames(makeWaveform(tt.seconds), cfg)
			if err != nil {
				t.Fatalf("Frames failed: %v", err)
			}
			if len(first) != tt.expected {
				t.Errorf("Expected %d frames, got %d", tt.expected, len(first))
			}

			second, err := Frames(makeWaveform(tt.seconds), cfg)
			if err != nil {
				t.Fatalf("Frames failed: %v", err)
			}
			if len(second) != len(first) {
				t.Fatalf("Frame count changed between runs: %d vs %d", len(first), len(second))
			}
			for i := range first {
				if first[i].Start != second[i].Start || first[i].End != second[i].End {
					t.Errorf("Frame %d span changed between runs", i)
				}
			}
		})
	}
}

func TestWindowerCoverage(t *testing.T) {
	wf := makeWaveform(7.3)
	w, err := NewWindower(wf, FramingConfig{FrameSeconds: 1.0, OverlapSeconds: 0.25})
	if err != nil {
		t.Fatalf("NewWindower failed: %v", err)
	}

	var frames []Frame
	for {
		f, ok := w.Next()
		if !ok {
			break
		}
		frames = append(frames, f)
	}

	for i, f := range frames {
		if len(f.Samples) != w.FrameSamples() {
			t.Errorf("Frame %d: expected %d samples, got %d", i, w.FrameSamples(), len(f.Samples))
		}
		if f.StartSample != i*w.StepSamples() {
			t.Errorf("Frame %d: expected start sample %d, got %d", i, i*w.StepSamples(), f.StartSample)
		}
		if i < len(frames)-1 && f.EndSample-f.StartSample != w.FrameSamples() {
			t.Errorf("Frame %d: inner frame is not full length", i)
		}
	}

	if _, ok := w.Next(); ok {
		t.Error("Expected exhausted windower to stay exhausted")
	}
}

func TestWindowerInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  FramingConfig
	}{
		{name: "overlap equals frame", cfg: FramingConfig{FrameSeconds: 1.0, OverlapSeconds: 1.0}},
		{name: "overlap exceeds frame", cfg: FramingConfig{FrameSeconds: 1.0, OverlapSeconds: 1.5}},
		{name: "zero frame", cfg: FramingConfig{FrameSeconds: 0, OverlapSeconds: 0}},
		{name: "negative overlap", cfg: FramingConfig{FrameSeconds: 1.0, OverlapSeconds: -0.1}},
		{name: "tail fraction above one", cfg: FramingConfig{FrameSeconds: 1.0, OverlapSeconds: 0.5, MinTailFraction: 1.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWindower(makeWaveform(2.0), tt.cfg)
			if !errors.Is(err, ErrInvalidFraming) {
				t.Errorf("Expected ErrInvalidFraming, got %v", err)
			}
		})
	}

	if _, err := NewWindower(&Waveform{}, FramingConfig{FrameSeconds: 1.0}); !errors.Is(err, ErrInvalidFraming) {
		t.Errorf("Expected ErrInvalidFraming for zero sample rate, got %v", err)
	}
}

func TestCeilDiv(t *testing.T) {
	tests := []struct{ a, b, expected int }{
		{32000, 8000, 4},
		{3200, 8000, 1},
		{0, 8000, 0},
		{-4800, 8000, 0},
		{-8000, 8000, -1},
		{-12000, 8000, -1},
	}
	for _, tt := range tests {
		if got := ceilDiv(tt.a, tt.b); got != tt.expected {
			t.Errorf("ceilDiv(%d, %d) = %d, expected %d", tt.a, tt.b, got, tt.expected)
		}
	}
}
