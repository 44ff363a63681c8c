package transcriber

import (
	"context"
	"fmt"
	"math"

	"murmur/config"
)

// Segment is one decoded span of the transcript with the model's
// internal quality signals.
type Segment struct {
	Text         string
	Start        float64
	End          float64
	AvgLogProb   float64
	NoSpeechProb float64
}

// Outcome is the result of one successful transcription. Confidence is
// exp of the mean segment log-probability: a coarse ranking signal, not
// a calibrated probability.
type Outcome struct {
	Text           string
	Language       string
	Confidence     float64
	AudioSeconds   float64
	ProcessSeconds float64
	Segments       []Segment
}

// ModelLoadError covers missing weights, an unusable device, or a
// server that never came up. Recoverable: the next session may retry.
type ModelLoadError struct {
	Model string
	Err   error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %q: %v", e.Model, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// InferenceError is a runtime failure during decode. Recoverable.
type InferenceError struct {
	Engine string
	Err    error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s inference: %v", e.Engine, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// Engine turns a finished audio segment into text. Implementations own
// their model lifecycle; Transcribe may block for seconds and is only
// ever called from the worker goroutine, one call at a time.
type Engine interface {
	Name() string
	EnsureLoaded(ctx context.Context) error
	Transcribe(ctx context.Context, samples []float32, language string) (*Outcome, error)
	Unload()
}

// New picks the engine from config.
func New(cfg config.Transcription) (Engine, error) {
	switch cfg.Engine {
	case "", "local":
		return NewLocal(cfg), nil
	case "openai":
		key := config.OpenAIKey()
		if key == "" {
			return nil, fmt.Errorf("openai engine selected but OPENAI_API_KEY is not set")
		}
		return NewOpenAI(key, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown transcription engine %q", cfg.Engine)
	}
}

func confidenceFromSegments(segs []Segment) float64 {
	if len(segs) == 0 {
		return 0
	}
	var sum float64
	for _, s := range segs {
		sum += s.AvgLogProb
	}
	return math.Exp(sum / float64(len(segs)))
}
