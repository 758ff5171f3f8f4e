// Command mockclassifier serves a deterministic stand-in for the emotion
// classifier API so the profiler can run end to end without a model.
package main

import (
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/skypro1111/emotion-profile-service/internal/audio"
	"github.com/skypro1111/emotion-profile-service/internal/classifier"
	"github.com/skypro1111/emotion-profile-service/internal/vad"
)

var labels = []string{"neutral", "calm", "happy", "sad", "angry", "fearful"}

type mockServer struct {
	logger *slog.Logger
	delay  time.Duration
}

func (s *mockServer) classifyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error getting audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "Error reading audio file", http.StatusInternalServerError)
		return
	}

	samples, rate, err := audio.DecodeWAV(data)
	if err != nil {
		http.Error(w, "Audio must be 16-bit PCM WAV", http.StatusBadRequest)
		return
	}

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	scores := score(samples)

	s.logger.Info("Classification request",
		slog.String("request_id", r.FormValue("request_id")),
		slog.String("filename", header.Filename),
		slog.Int("sample_rate", rate),
		slog.Int("num_samples", len(samples)),
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(classifier.Response{Scores: scores})
}

// score maps loudness and zero-crossing rate onto a softmax over labels.
// Identical audio always yields identical scores.
func score(samples []float64) []classifier.Score {
	rms := vad.RMS(samples)
	zcr := vad.ZeroCrossingRate(samples)

	// loudness in [0, 1] on a 60 dB scale
	loud := 0.0
	if rms > 0 {
		loud = math.Max(0, math.Min(1, 1+20*math.Log10(rms)/60))
	}

	logits := []float64{
		1.0 - 2*math.Abs(loud-0.5),   // neutral
		1.5 * (1 - loud) * (1 - zcr), // calm
		2 * loud * (1 - 2*zcr),       // happy
		1.2 * (1 - loud) * zcr * 3,   // sad
		2.5 * loud * loud,            // angry
		3 * zcr * loud,               // fearful
	}

	maxLogit := logits[0]
	for _, l := range logits[1:] {
		maxLogit = math.Max(maxLogit, l)
	}

	var sum float64
	exps := make([]float64, len(logits))
	for i, l := range logits {
		exps[i] = math.Exp(l - maxLogit)
		sum += exps[i]
	}

	scores := make([]classifier.Score, len(labels))
	for i, label := range labels {
		scores[i] = classifier.Score{Label: label, Score: exps[i] / sum}
	}
	return scores
}

func main() {
	port := flag.Int("port", 9000, "Port to listen on")
	delay := flag.Duration("delay", 50*time.Millisecond, "Simulated inference latency")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	s := &mockServer{logger: logger, delay: *delay}

	mux := http.NewServeMux()
	mux.HandleFunc("/classify", s.classifyHandler)

	addr := ":" + strconv.Itoa(*port)
	logger.Info("Mock classifier starting",
		slog.String("address", addr),
		slog.String("endpoint", "http://localhost"+addr+"/classify"),
	)

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
