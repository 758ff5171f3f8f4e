package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mdobak/go-xerrors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skypro1111/emotion-profile-service/internal/analysis"
	"github.com/skypro1111/emotion-profile-service/internal/audio"
	"github.com/skypro1111/emotion-profile-service/internal/classifier"
	"github.com/skypro1111/emotion-profile-service/internal/config"
	"github.com/skypro1111/emotion-profile-service/internal/metrics"
)

// recentReportsLimit bounds the reports kept in memory for /reports
const recentReportsLimit = 100

// WaveformLoader decodes uploaded audio
type WaveformLoader interface {
	LoadReader(r io.Reader, ext string) (*audio.Waveform, error)
}

// StatsProvider reports classifier client statistics
type StatsProvider interface {
	GetStats() classifier.ClientStats
}

// HTTPServer provides the analysis API plus monitoring endpoints
type HTTPServer struct {
	server   *http.Server
	handler  http.Handler
	logger   *slog.Logger
	config   *config.Config
	service  *analysis.Service
	loader   WaveformLoader
	stats    StatsProvider
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer

	// Server state
	startTime time.Time
	mu        sync.RWMutex
	reports   []*analysis.Report // oldest first
	inFlight  int
}

// NewHTTPServer creates a new HTTP API server. stats may be nil when the
// classifier is not the HTTP client.
func NewHTTPServer(appConfig *config.Config, logger *slog.Logger, service *analysis.Service,
	loader WaveformLoader, stats StatsProvider, m *metrics.Metrics, gatherer prometheus.Gatherer) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		service:   service,
		loader:    loader,
		stats:     stats,
		metrics:   m,
		gatherer:  gatherer,
		startTime: time.Now(),
	}

	// Create HTTP server with routes
	mux := http.NewServeMux()
	h.setupRoutes(mux)
	h.handler = mux

	// WriteTimeout covers the whole analysis of an upload
	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", appConfig.HTTP.Address, appConfig.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: appConfig.HTTP.GetRequestTimeoutDuration() + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// Handler returns the routed handler, mainly for tests
func (h *HTTPServer) Handler() http.Handler {
	return h.handler
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	// Analysis endpoints
	mux.HandleFunc("/analyze", h.withMetrics("/analyze", h.handleAnalyze))
	mux.HandleFunc("/reports", h.withMetrics("/reports", h.handleReports))
	mux.HandleFunc("/reports/", h.withMetrics("/reports/{id}", h.handleReportDetail))

	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		// Create a response writer wrapper to capture status code
		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.Any("error", xerrors.New(err)))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.mu.RLock()
	inFlight := h.inFlight
	completed := len(h.reports)
	h.mu.RUnlock()

	components := map[string]interface{}{
		"analyzer": map[string]interface{}{
			"status":             "running",
			"in_flight":          inFlight,
			"recent_reports":     completed,
			"frame_seconds":      h.config.Framing.FrameSeconds,
			"overlap_seconds":    h.config.Framing.OverlapSeconds,
			"workers":            h.config.Classifier.Workers,
			"target_sample_rate": h.config.Audio.TargetSampleRate,
		},
	}

	if h.stats != nil {
		stats := h.stats.GetStats()
		components["classifier"] = map[string]interface{}{
			"status":          "running",
			"total_requests":  stats.TotalRequests,
			"success_rate":    stats.SuccessRate,
			"active_requests": stats.ActiveRequests,
		}
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    "emotion-profile-service",
			"version": "1.0.0",
		},
		"components": components,
	}

	writeJSON(w, http.StatusOK, health)
}

// handleAnalyze implements POST /analyze. The recording is sent as the
// multipart field "file"; ?format=text returns the plain-text report.
func (h *HTTPServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.config.HTTP.GetMaxUploadBytes())
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !audio.SupportedFormat(header.Filename) {
		http.Error(w, fmt.Sprintf("Unsupported audio format %q", filepath.Ext(header.Filename)),
			http.StatusUnsupportedMediaType)
		return
	}

	h.trackInFlight(1)
	defer h.trackInFlight(-1)

	wf, err := h.loader.LoadReader(file, filepath.Ext(header.Filename))
	if err != nil {
		h.logger.Warn("Failed to load upload",
			slog.String("filename", header.Filename),
			slog.Any("error", xerrors.New(err)),
		)
		http.Error(w, "Failed to decode audio", http.StatusUnprocessableEntity)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.config.HTTP.GetRequestTimeoutDuration())
	defer cancel()

	report, err := h.service.RunWaveform(ctx, header.Filename, wf)
	if err != nil {
		h.logger.Error("Analysis failed",
			slog.String("filename", header.Filename),
			slog.Any("error", xerrors.New(err)),
		)
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			http.Error(w, "Analysis timed out", http.StatusGatewayTimeout)
		case errors.Is(err, context.Canceled):
			http.Error(w, "Analysis canceled", http.StatusServiceUnavailable)
		default:
			http.Error(w, "Analysis failed", http.StatusInternalServerError)
		}
		return
	}

	h.storeReport(report)

	if strings.EqualFold(r.URL.Query().Get("format"), "text") {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := report.WriteText(w); err != nil {
			h.logger.Warn("Failed to write text report", slog.Any("error", xerrors.New(err)))
		}
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// handleReports implements the /reports endpoint
func (h *HTTPServer) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	type reportInfo struct {
		ID            string    `json:"id"`
		Source        string    `json:"source"`
		CreatedAt     time.Time `json:"created_at"`
		AudioDuration float64   `json:"audio_duration"`
		SegmentCount  int       `json:"segment_count"`
		DominantLabel string    `json:"dominant_label"`
	}

	h.mu.RLock()
	infos := make([]reportInfo, 0, len(h.reports))
	for i := len(h.reports) - 1; i >= 0; i-- {
		rep := h.reports[i]
		infos = append(infos, reportInfo{
			ID:            rep.ID,
			Source:        rep.Source,
			CreatedAt:     rep.CreatedAt,
			AudioDuration: rep.AudioDuration,
			SegmentCount:  rep.Summary.SegmentCount,
			DominantLabel: rep.Summary.DominantLabel,
		})
	}
	h.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_reports": len(infos),
		"timestamp":     time.Now().UTC(),
		"reports":       infos,
	})
}

// handleReportDetail implements the /reports/{id} endpoint
func (h *HTTPServer) handleReportDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/reports/")
	if id == "" {
		http.Error(w, "Report ID required", http.StatusBadRequest)
		return
	}

	report, ok := h.findReport(id)
	if !ok {
		http.Error(w, "Report not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// API key is omitted
	sanitizedConfig := map[string]interface{}{
		"audio": map[string]interface{}{
			"target_sample_rate": h.config.Audio.TargetSampleRate,
			"trim_top_db":        h.config.Audio.TrimTopDB,
		},
		"framing": map[string]interface{}{
			"frame_seconds":     h.config.Framing.FrameSeconds,
			"overlap_seconds":   h.config.Framing.OverlapSeconds,
			"min_tail_fraction": h.config.Framing.MinTailFraction,
		},
		"vad": map[string]interface{}{
			"min_rms": h.config.VAD.MinRMS,
			"max_zcr": h.config.VAD.MaxZCR,
		},
		"classifier": map[string]interface{}{
			"endpoint":       h.config.Classifier.Endpoint,
			"timeout":        h.config.Classifier.Timeout,
			"max_concurrent": h.config.Classifier.MaxConcurrent,
			"workers":        h.config.Classifier.Workers,
		},
		"http": map[string]interface{}{
			"max_upload_mb":   h.config.HTTP.MaxUploadMB,
			"request_timeout": h.config.HTTP.RequestTimeout,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	writeJSON(w, http.StatusOK, sanitizedConfig)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.mu.RLock()
	labelTotals := make(map[string]int)
	for _, rep := range h.reports {
		for label, count := range rep.Summary.LabelCounts {
			labelTotals[label] += count
		}
	}
	stats := map[string]interface{}{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
		"analysis": map[string]interface{}{
			"in_flight":      h.inFlight,
			"recent_reports": len(h.reports),
			"label_totals":   labelTotals,
		},
	}
	h.mu.RUnlock()

	if h.stats != nil {
		stats["classifier"] = h.stats.GetStats()
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "Emotion Profile Service",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":             "API documentation",
			"GET /health":       "Service health check",
			"POST /analyze":     "Analyze an uploaded recording (multipart field 'file', ?format=text)",
			"GET /reports":      "List recent reports",
			"GET /reports/{id}": "Get a recent report",
			"GET /config":       "Get service configuration",
			"GET /stats":        "Get service statistics",
			"GET /metrics":      "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	writeJSON(w, http.StatusOK, apiDoc)
}

func (h *HTTPServer) trackInFlight(delta int) {
	h.mu.Lock()
	h.inFlight += delta
	h.mu.Unlock()
}

func (h *HTTPServer) storeReport(report *analysis.Report) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.reports = append(h.reports, report)
	if len(h.reports) > recentReportsLimit {
		h.reports = h.reports[len(h.reports)-recentReportsLimit:]
	}
}

func (h *HTTPServer) findReport(id string) (*analysis.Report, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, rep := range h.reports {
		if rep.ID == id {
			return rep, true
		}
	}
	return nil, false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
