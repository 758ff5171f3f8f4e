package audio

import "errors"

var (
	// ErrLoad wraps every failure to obtain a waveform from a source file.
	ErrLoad = errors.New("load waveform")

	// ErrInvalidFraming is returned for frame/overlap durations that cannot
	// produce a positive step.
	ErrInvalidFraming = errors.New("invalid framing configuration")
)

// Waveform is a mono recording with amplitudes normalised to [-1, 1].
// It must not be modified after loading.
type Waveform struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the waveform length in seconds
func (w *Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Frame is one analysis window of a waveform.
//
// Samples always holds exactly the configured frame length; a short final
// frame is zero padded on the right. Start and End cover only the real
// signal (StartSample/rate and EndSample/rate).
type Frame struct {
	Index       int
	Samples     []float64
	StartSample int
	EndSample   int
	Start       float64 // seconds
	End         float64 // seconds
	Padded      bool
}

// Duration returns the real-signal span of the frame in seconds
func (f Frame) Duration() float64 {
	return f.End - f.Start
}
