package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skypro1111/emotion-profile-service/internal/audio"
)

func testSamples() []float64 {
	samples := make([]float64, 1600)
	for i := range samples {
		samples[i] = 0.1 * float64(i%20-10) / 10
	}
	return samples
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("Expected error for empty endpoint")
	}

	client, err := NewClient(Config{Endpoint: "http://localhost:9000/classify"})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	if client.config.Timeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %v", client.config.Timeout)
	}
	if client.config.MaxConcurrent != 4 {
		t.Errorf("Expected default max concurrent 4, got %d", client.config.MaxConcurrent)
	}
}

func TestClientClassify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Expected bearer token, got %q", got)
		}

		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("Failed to parse multipart form: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("sample_rate") != "16000" {
			t.Errorf("Expected sample_rate 16000, got %q", r.FormValue("sample_rate"))
		}
		if r.FormValue("request_id") == "" {
			t.Error("Expected request_id field")
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("Missing file part: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()

		data, _ := io.ReadAll(file)
		samples, rate, err := audio.DecodeWAV(data)
		if err != nil {
			t.Errorf("Uploaded file is not a valid WAV: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if rate != 16000 || len(samples) != 1600 {
			t.Errorf("Unexpected upload: rate=%d samples=%d", rate, len(samples))
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Response{Label: "calm", Confidence: 0.91})
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL, APIKey: "secret"})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	label, err := client.Classify(context.Background(), testSamples(), 16000)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if label.Name != "calm" || label.Confidence != 0.91 {
		t.Errorf("Unexpected label: %+v", label)
	}

	stats := client.GetStats()
	if stats.TotalRequests != 1 || stats.SuccessRequests != 1 || stats.FailedRequests != 0 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestClientScoresResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"scores":[{"label":"neutral","score":0.2},{"label":"angry","score":0.7},{"label":"sad","score":0.1}]}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	label, err := client.Classify(context.Background(), testSamples(), 16000)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if label.Name != "angry" || label.Confidence != 0.7 {
		t.Errorf("Expected angry/0.7, got %+v", label)
	}
}

func TestClientDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	_, err = client.Classify(context.Background(), testSamples(), 16000)
	if err == nil {
		t.Fatal("Expected error for 503 response")
	}
	if !strings.Contains(err.Error(), "HTTP error 503") {
		t.Errorf("Unexpected error: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected exactly one request, got %d", calls.Load())
	}
	if stats := client.GetStats(); stats.FailedRequests != 1 {
		t.Errorf("Expected 1 failed request, got %d", stats.FailedRequests)
	}
}

func TestClientMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	if _, err := client.Classify(context.Background(), testSamples(), 16000); err == nil {
		t.Error("Expected error for response without label or scores")
	}
}

func TestClientClosed(t *testing.T) {
	client, err := NewClient(Config{Endpoint: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}

	if _, err := client.Classify(context.Background(), testSamples(), 16000); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestFuncAdapter(t *testing.T) {
	var c Classifier = Func(func(ctx context.Context, samples []float64, sampleRate int) (Label, error) {
		return Label{Name: "happy", Confidence: float64(len(samples)) / float64(sampleRate)}, nil
	})

	label, err := c.Classify(context.Background(), make([]float64, 8000), 16000)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if label.Name != "happy" || label.Confidence != 0.5 {
		t.Errorf("Unexpected label: %+v", label)
	}
}
