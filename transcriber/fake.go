package transcriber

import (
	"context"
	"sync"
	"time"

	"murmur/encoder"
)

// FakeEngine returns a scripted outcome or error, with an optional
// delay to simulate slow inference.
type FakeEngine struct {
	mu            sync.Mutex
	text          string
	err           error
	loadErr       error
	delay         time.Duration
	calls         int
	inFlight      int
	maxConcurrent int
	loaded        bool
	unloads       int
}

func NewFakeEngine(text string) *FakeEngine {
	return &FakeEngine{text: text}
}

func (f *FakeEngine) FailWith(err error)       { f.mu.Lock(); f.err = err; f.mu.Unlock() }
func (f *FakeEngine) FailLoadWith(err error)   { f.mu.Lock(); f.loadErr = err; f.mu.Unlock() }
func (f *FakeEngine) SetDelay(d time.Duration) { f.mu.Lock(); f.delay = d; f.mu.Unlock() }

func (f *FakeEngine) Name() string { return "fake" }

func (f *FakeEngine) EnsureLoaded(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return f.loadErr
	}
	f.loaded = true
	return nil
}

func (f *FakeEngine) Transcribe(_ context.Context, samples []float32, language string) (*Outcome, error) {
	f.mu.Lock()
	f.calls++
	f.inFlight++
	if f.inFlight > f.maxConcurrent {
		f.maxConcurrent = f.inFlight
	}
	delay, err, text := f.delay, f.err, f.text
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	lang := language
	if lang == "" {
		lang = "en"
	}
	return &Outcome{
		Text:           text,
		Language:       lang,
		Confidence:     0.9,
		AudioSeconds:   float64(len(samples)) / float64(encoder.SampleRate),
		ProcessSeconds: delay.Seconds(),
	}, nil
}

func (f *FakeEngine) Unload() {
	f.mu.Lock()
	f.unloads++
	f.loaded = false
	f.mu.Unlock()
}

func (f *FakeEngine) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeEngine) MaxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxConcurrent
}

func (f *FakeEngine) Unloads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unloads
}
