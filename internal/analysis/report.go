package analysis

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"
)

// Report is the complete outcome of one run
type Report struct {
	ID            string        `json:"id"`
	Source        string        `json:"source"`
	SampleRate    int           `json:"sample_rate"`
	AudioDuration float64       `json:"audio_duration"`
	Stats         FrameStats    `json:"stats"`
	Predictions   []Prediction  `json:"predictions"`
	Summary       Summary       `json:"summary"`
	CreatedAt     time.Time     `json:"created_at"`
	Elapsed       time.Duration `json:"elapsed"`
}

// WriteText renders the report as a plain-text segment listing followed by
// the summary and label distribution
func (r *Report) WriteText(w io.Writer) error {
	var b bytes.Buffer
	rule := strings.Repeat("=", 60)

	fmt.Fprintf(&b, "Source: %s\n", r.Source)
	fmt.Fprintf(&b, "Audio duration: %.2f seconds\n", r.AudioDuration)
	fmt.Fprintf(&b, "Frames: %d (voiced %d, classified %d, failed %d)\n\n",
		r.Stats.Frames, r.Stats.Voiced, r.Stats.Classified, r.Stats.Failed)

	for _, p := range r.Predictions {
		fmt.Fprintf(&b, "%6.1f-%6.1fs: %-12s (conf: %.3f)\n", p.Start, p.End, p.Label, p.Confidence)
	}

	if len(r.Predictions) == 0 {
		b.WriteString("No valid speech segments detected.\n")
		_, err := w.Write(b.Bytes())
		return err
	}

	s := r.Summary
	fmt.Fprintf(&b, "\n%s\nEMOTION ANALYSIS SUMMARY\n%s\n", rule, rule)
	fmt.Fprintf(&b, "Total analyzed duration: %.1fs\n", s.TotalDuration)
	fmt.Fprintf(&b, "Number of segments: %d\n", s.SegmentCount)
	fmt.Fprintf(&b, "Average confidence: %.3f\n", s.AverageConfidence)
	fmt.Fprintf(&b, "Most common emotion: %s\n", s.DominantLabel)

	b.WriteString("\nEmotion distribution:\n")
	for _, share := range s.Distribution() {
		fmt.Fprintf(&b, "  %-12s: %2d segments (%5.1f%%)\n", share.Label, share.Count, share.Percentage)
	}

	_, err := w.Write(b.Bytes())
	return err
}
