package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/skypro1111/emotion-profile-service/internal/analysis"
	"github.com/skypro1111/emotion-profile-service/internal/audio"
	"github.com/skypro1111/emotion-profile-service/internal/classifier"
	"github.com/skypro1111/emotion-profile-service/internal/config"
	"github.com/skypro1111/emotion-profile-service/internal/metrics"
	"github.com/skypro1111/emotion-profile-service/internal/vad"
)

type fixedStats struct{}

func (fixedStats) GetStats() classifier.ClientStats {
	return classifier.ClientStats{TotalRequests: 7, SuccessRequests: 7, SuccessRate: 100}
}

func newTestServer(t *testing.T) *HTTPServer {
	t.Helper()

	cfg := config.Default()
	cfg.Classifier.Endpoint = "http://classifier.local/classify"
	cfg.Classifier.APIKey = "super-secret"

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	detector, err := vad.NewDetector(vad.Config{MinRMS: cfg.VAD.MinRMS, MaxZCR: cfg.VAD.MaxZCR})
	if err != nil {
		t.Fatalf("Failed to create detector: %v", err)
	}

	clf := classifier.Func(func(ctx context.Context, samples []float64, sampleRate int) (classifier.Label, error) {
		return classifier.Label{Name: "happy", Confidence: 0.75}, nil
	})

	analyzer, err := analysis.NewAnalyzer(analysis.Config{
		Framing: audio.FramingConfig{
			FrameSeconds:    cfg.Framing.FrameSeconds,
			OverlapSeconds:  cfg.Framing.OverlapSeconds,
			MinTailFraction: cfg.Framing.MinTailFraction,
		},
		Workers: 2,
	}, detector, clf, logger, m)
	if err != nil {
		t.Fatalf("Failed to create analyzer: %v", err)
	}

	loader := audio.NewLoader(audio.LoaderConfig{SampleRate: cfg.Audio.TargetSampleRate, TrimTopDB: cfg.Audio.TrimTopDB})
	svc := analysis.NewService(loader, analyzer, logger, m)

	return NewHTTPServer(cfg, logger, svc, loader, fixedStats{}, m, reg)
}

func toneWAV(t *testing.T, seconds float64) []byte {
	t.Helper()

	samples := make([]float64, int(seconds*16000))
	for i := range samples {
		samples[i] = 0.4 * math.Sin(2*math.Pi*200*float64(i)/16000)
	}
	data, err := audio.EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	return data
}

func uploadRequest(t *testing.T, target, field, filename string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	part.Write(data)
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestAnalyzeEndpoint(t *testing.T) {
	h := newTestServer(t)

	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, uploadRequest(t, "/analyze", "file", "call.wav", toneWAV(t, 3.0)))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var report analysis.Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("Failed to decode report: %v", err)
	}

	if report.ID == "" || report.Source != "call.wav" {
		t.Errorf("Unexpected report header: id=%q source=%q", report.ID, report.Source)
	}
	if report.Summary.SegmentCount == 0 || report.Summary.DominantLabel != "happy" {
		t.Errorf("Unexpected summary: %+v", report.Summary)
	}

	// the report is now listed and retrievable
	rec = httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports", nil))
	if !strings.Contains(rec.Body.String(), report.ID) {
		t.Errorf("Expected report %s in listing: %s", report.ID, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/"+report.ID, nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for report detail, got %d", rec.Code)
	}
}

func TestAnalyzeEndpointTextFormat(t *testing.T) {
	h := newTestServer(t)

	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, uploadRequest(t, "/analyze?format=text", "file", "call.wav", toneWAV(t, 2.0)))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("Expected text/plain, got %s", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "Most common emotion: happy") {
		t.Errorf("Unexpected text report:\n%s", rec.Body.String())
	}
}

func TestAnalyzeEndpointErrors(t *testing.T) {
	h := newTestServer(t)

	tests := []struct {
		name       string
		request    func() *http.Request
		statusCode int
	}{
		{
			name:       "wrong method",
			request:    func() *http.Request { return httptest.NewRequest(http.MethodGet, "/analyze", nil) },
			statusCode: http.StatusMethodNotAllowed,
		},
		{
			name: "not multipart",
			request: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader("hello"))
			},
			statusCode: http.StatusBadRequest,
		},
		{
			name:       "missing file field",
			request:    func() *http.Request { return uploadRequest(t, "/analyze", "audio", "call.wav", toneWAV(t, 1)) },
			statusCode: http.StatusBadRequest,
		},
		{
			name:       "unsupported format",
			request:    func() *http.Request { return uploadRequest(t, "/analyze", "file", "notes.txt", []byte("text")) },
			statusCode: http.StatusUnsupportedMediaType,
		},
		{
			name:       "corrupt audio",
			request:    func() *http.Request { return uploadRequest(t, "/analyze", "file", "broken.wav", []byte("RIFFjunk")) },
			statusCode: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Handler().ServeHTTP(rec, tt.request())

			if rec.Code != tt.statusCode {
				t.Errorf("Expected %d, got %d: %s", tt.statusCode, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestReportNotFound(t *testing.T) {
	h := newTestServer(t)

	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/unknown", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestMonitoringEndpoints(t *testing.T) {
	h := newTestServer(t)

	tests := []struct {
		path     string
		contains string
		excludes string
	}{
		{path: "/health", contains: `"status":"healthy"`},
		{path: "/config", contains: `"frame_seconds":1`, excludes: "super-secret"},
		{path: "/stats", contains: `"total_requests":7`},
		{path: "/", contains: "POST /analyze"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d", rec.Code)
			}
			body := rec.Body.String()
			if !strings.Contains(body, tt.contains) {
				t.Errorf("Expected %q in body: %s", tt.contains, body)
			}
			if tt.excludes != "" && strings.Contains(body, tt.excludes) {
				t.Errorf("Did not expect %q in body", tt.excludes)
			}
		})
	}

	// requests above are visible to Prometheus
	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "emotion_http_requests_total") {
		t.Errorf("Expected HTTP request metrics in /metrics output")
	}
}
