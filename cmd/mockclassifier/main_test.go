package main

import (
	"context"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/skypro1111/emotion-profile-service/internal/classifier"
)

func TestScoreIsDistribution(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
	}{
		{name: "silence", samples: make([]float64, 1600)},
		{name: "loud tone", samples: tone(1600, 0.8, 200)},
		{name: "quiet noise", samples: tone(1600, 0.01, 7000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scores := score(tt.samples)
			if len(scores) != len(labels) {
				t.Fatalf("Expected %d scores, got %d", len(labels), len(scores))
			}

			var sum float64
			for _, s := range scores {
				if s.Score < 0 || s.Score > 1 || math.IsNaN(s.Score) {
					t.Errorf("Score for %s outside [0, 1]: %f", s.Label, s.Score)
				}
				sum += s.Score
			}
			if math.Abs(sum-1) > 1e-9 {
				t.Errorf("Scores sum to %f, expected 1", sum)
			}
		})
	}
}

func TestMockWithClient(t *testing.T) {
	s := &mockServer{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	server := httptest.NewServer(http.HandlerFunc(s.classifyHandler))
	defer server.Close()

	client, err := classifier.NewClient(classifier.Config{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	samples := tone(16000, 0.5, 180)
	first, err := client.Classify(context.Background(), samples, 16000)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	second, err := client.Classify(context.Background(), samples, 16000)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if first != second {
		t.Errorf("Expected deterministic labels, got %+v and %+v", first, second)
	}
	if first.Name == "" || first.Confidence <= 0 || first.Confidence > 1 {
		t.Errorf("Unexpected label: %+v", first)
	}
}

func tone(n int, amplitude, freq float64) []float64 {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/16000)
	}
	return samples
}
