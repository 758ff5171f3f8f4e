package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the emotion profile service
type Metrics struct {
	// Run metrics
	RunsStarted  prometheus.Counter
	RunsFailed   *prometheus.CounterVec
	RunDuration  prometheus.Histogram
	AudioSeconds prometheus.Histogram

	// Framing and VAD metrics
	FramesProduced prometheus.Counter
	FramesVoiced   prometheus.Counter
	FrameRMS       prometheus.Histogram
	FrameZCR       prometheus.Histogram

	// Classifier metrics
	ClassifierRequests prometheus.Counter
	ClassifierFailures prometheus.Counter
	ClassifierDuration prometheus.Histogram
	Predictions        *prometheus.CounterVec
	PredictionConf     prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg.
// Passing prometheus.DefaultRegisterer exposes them on promhttp.Handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Run metrics
		RunsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "emotion_runs_started_total",
			Help: "Total number of analysis runs started",
		}),
		RunsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "emotion_runs_failed_total",
			Help: "Total number of analysis runs that failed before producing a summary",
		}, []string{"reason"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "emotion_run_duration_seconds",
			Help:    "Wall time of complete analysis runs",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		}),
		AudioSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "emotion_audio_duration_seconds",
			Help:    "Duration of analysed recordings after trimming",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17 minutes
		}),

		// Framing and VAD metrics
		FramesProduced: factory.NewCounter(prometheus.CounterOpts{
			Name: "emotion_frames_total",
			Help: "Total number of analysis frames produced",
		}),
		FramesVoiced: factory.NewCounter(prometheus.CounterOpts{
			Name: "emotion_frames_voiced_total",
			Help: "Total number of frames that passed voice activity detection",
		}),
		FrameRMS: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "emotion_frame_rms",
			Help:    "RMS amplitude of analysis frames",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
		FrameZCR: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "emotion_frame_zcr",
			Help:    "Zero-crossing rate of voiced frames",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),

		// Classifier metrics
		ClassifierRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "emotion_classifier_requests_total",
			Help: "Total number of frames sent to the classifier",
		}),
		ClassifierFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "emotion_classifier_failures_total",
			Help: "Total number of frames the classifier failed to score",
		}),
		ClassifierDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "emotion_classifier_duration_seconds",
			Help:    "Duration of classifier calls",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		}),
		Predictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "emotion_predictions_total",
			Help: "Total number of predictions by label",
		}, []string{"label"}),
		PredictionConf: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "emotion_prediction_confidence",
			Help:    "Confidence of emitted predictions",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11), // 0.0 to 1.0
		}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "emotion_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "emotion_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "emotion_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordRunStarted increments the runs started counter
func (m *Metrics) RecordRunStarted() {
	m.RunsStarted.Inc()
}

// RecordRunFailed counts a run that failed for reason ("load", "config", "canceled")
func (m *Metrics) RecordRunFailed(reason string) {
	m.RunsFailed.WithLabelValues(reason).Inc()
}

// RecordRunCompleted records the wall time and audio length of a finished run
func (m *Metrics) RecordRunCompleted(durationSeconds, audioSeconds float64) {
	m.RunDuration.Observe(durationSeconds)
	m.AudioSeconds.Observe(audioSeconds)
}

// RecordFrame records one frame's VAD statistics
func (m *Metrics) RecordFrame(rms, zcr float64, voiced bool) {
	m.FramesProduced.Inc()
	m.FrameRMS.Observe(rms)
	if voiced {
		m.FramesVoiced.Inc()
		m.FrameZCR.Observe(zcr)
	}
}

// RecordClassification records one classifier call
func (m *Metrics) RecordClassification(durationSeconds float64, ok bool) {
	m.ClassifierRequests.Inc()
	m.ClassifierDuration.Observe(durationSeconds)
	if !ok {
		m.ClassifierFailures.Inc()
	}
}

// RecordPrediction records an emitted prediction
func (m *Metrics) RecordPrediction(label string, confidence float64) {
	m.Predictions.WithLabelValues(label).Inc()
	m.PredictionConf.Observe(confidence)
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
