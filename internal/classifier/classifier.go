package classifier

import "context"

// Label is a single emotion decision for one frame
type Label struct {
	Name       string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Classifier scores one block of mono samples.
//
// Implementations are created once per process, reused for every analysis
// and must be safe for concurrent use. An error means only that this block
// could not be scored.
type Classifier interface {
	Classify(ctx context.Context, samples []float64, sampleRate int) (Label, error)
}

// Func adapts a plain function to the Classifier interface
type Func func(ctx context.Context, samples []float64, sampleRate int) (Label, error)

// Classify calls f
func (f Func) Classify(ctx context.Context, samples []float64, sampleRate int) (Label, error) {
	return f(ctx, samples, sampleRate)
}
