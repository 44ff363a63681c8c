package orchestrator

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"murmur/transcriber"
)

type fakeCapture struct {
	mu        sync.Mutex
	startErr  error
	samples   []float32
	stalled   bool // Tail stops advancing, as after a device unplug
	capturing bool
	starts    int
}

func (c *fakeCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startErr != nil {
		return c.startErr
	}
	c.capturing = true
	c.starts++
	return nil
}

func (c *fakeCapture) Stop() []float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.capturing {
		return nil
	}
	c.capturing = false
	return c.samples
}

func (c *fakeCapture) Level() float32 { return 0.2 }

func (c *fakeCapture) Tail(cursor int64, out []float32) (int64, int) {
	if c.stalled {
		return cursor, 0
	}
	// fresh silence on every read
	n := len(out)
	if n > 1600 {
		n = 1600
	}
	for i := 0; i < n; i++ {
		out[i] = 0
	}
	return cursor + int64(n), n
}

func (c *fakeCapture) Starts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starts
}

type sinkRecorder struct {
	mu       sync.Mutex
	events   []string
	failures []string
	results  []Result
	injected []string
	saved    []Result
	cues     []string
	warnings []bool
	ticks    int

	injectErr error
	saveErr   error
}

func (r *sinkRecorder) RecordingStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "started")
}

func (r *sinkRecorder) RecordingStopped() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "stopped")
}

func (r *sinkRecorder) ProcessingStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "processing")
}

func (r *sinkRecorder) RecordingTick(float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks++
}

func (r *sinkRecorder) AmplitudeUpdate(float64) {}

func (r *sinkRecorder) VoiceWarning(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, on)
}

func (r *sinkRecorder) TranscriptReady(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "ready")
	r.results = append(r.results, res)
}

func (r *sinkRecorder) TranscriptFailed(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "failed")
	r.failures = append(r.failures, msg)
}

func (r *sinkRecorder) Save(res Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, res)
	return r.saveErr
}

func (r *sinkRecorder) Deliver(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.injected = append(r.injected, text)
	return r.injectErr
}

func (r *sinkRecorder) Start() { r.cue("start") }
func (r *sinkRecorder) Stop()  { r.cue("stop") }
func (r *sinkRecorder) Error() { r.cue("error") }

func (r *sinkRecorder) cue(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cues = append(r.cues, name)
}

func (r *sinkRecorder) snapshot() sinkRecorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sinkRecorder{
		events:   append([]string(nil), r.events...),
		failures: append([]string(nil), r.failures...),
		results:  append([]Result(nil), r.results...),
		injected: append([]string(nil), r.injected...),
		saved:    append([]Result(nil), r.saved...),
		cues:     append([]string(nil), r.cues...),
		warnings: append([]bool(nil), r.warnings...),
	}
}

func samplesFor(ms int) []float32 {
	return make([]float32, 16000*ms/1000)
}

func testOptions() Options {
	return Options{
		Language:     "en",
		Model:        "turbo",
		ErrorWindow:  60 * time.Millisecond,
		TickInterval: 5 * time.Millisecond,
	}
}

func newTestOrch(t *testing.T, eng *transcriber.FakeEngine, mic *fakeCapture, opts Options) (*Orchestrator, *sinkRecorder) {
	t.Helper()
	w := transcriber.NewWorker(eng)
	t.Cleanup(w.Close)
	o := New(mic, w, opts)
	t.Cleanup(o.Close)
	rec := &sinkRecorder{}
	o.SetSinks(rec, rec, rec, rec)
	return o, rec
}

func waitState(t *testing.T, o *Orchestrator, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if o.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %v, still %v", want, o.State())
}

func TestHoldCycleDeliversOnce(t *testing.T) {
	eng := transcriber.NewFakeEngine("hello world")
	mic := &fakeCapture{samples: samplesFor(2000)}
	o, rec := newTestOrch(t, eng, mic, testOptions())

	o.StartRecording()
	if o.State() != StateRecording {
		t.Fatalf("state after activation = %v, want recording", o.State())
	}
	o.StopRecording()
	waitState(t, o, StateIdle)

	if eng.Calls() != 1 {
		t.Fatalf("transcribe calls = %d, want 1", eng.Calls())
	}
	s := rec.snapshot()
	if len(s.injected) != 1 || s.injected[0] != "hello world" {
		t.Fatalf("injected = %v, want exactly [hello world]", s.injected)
	}
	if len(s.saved) != 1 {
		t.Fatalf("history entries = %d, want 1", len(s.saved))
	}
	if math.Abs(s.saved[0].DurationSeconds-2.0) > 0.01 {
		t.Errorf("saved duration = %v, want ~2.0", s.saved[0].DurationSeconds)
	}
	if s.saved[0].Model != "turbo" || s.saved[0].Engine != "fake" {
		t.Errorf("saved model/engine = %s/%s", s.saved[0].Model, s.saved[0].Engine)
	}
	want := []string{"started", "stopped", "processing", "ready"}
	if len(s.events) != len(want) {
		t.Fatalf("events = %v, want %v", s.events, want)
	}
	for i := range want {
		if s.events[i] != want[i] {
			t.Fatalf("events = %v, want %v", s.events, want)
		}
	}
	if len(s.cues) != 2 || s.cues[0] != "start" || s.cues[1] != "stop" {
		t.Errorf("cues = %v, want [start stop]", s.cues)
	}
}

func TestShortSegmentSkipsInference(t *testing.T) {
	eng := transcriber.NewFakeEngine("never")
	mic := &fakeCapture{samples: samplesFor(99)}
	o, rec := newTestOrch(t, eng, mic, testOptions())

	o.StartRecording()
	o.StopRecording()
	waitState(t, o, StateIdle)

	time.Sleep(20 * time.Millisecond)
	if eng.Calls() != 0 {
		t.Fatalf("99ms segment dispatched inference (%d calls)", eng.Calls())
	}
	s := rec.snapshot()
	if len(s.injected) != 0 || len(s.saved) != 0 {
		t.Error("short segment must not reach injection or history")
	}
	if len(s.failures) != 0 {
		t.Errorf("short segment surfaced an error: %v", s.failures)
	}
}

func TestMinimumSegmentBoundary(t *testing.T) {
	eng := transcriber.NewFakeEngine("just enough")
	mic := &fakeCapture{samples: samplesFor(101)}
	o, _ := newTestOrch(t, eng, mic, testOptions())

	o.StartRecording()
	o.StopRecording()
	waitState(t, o, StateIdle)

	if eng.Calls() != 1 {
		t.Fatalf("101ms segment calls = %d, want 1", eng.Calls())
	}
}

func TestActivationsDroppedWhileProcessing(t *testing.T) {
	eng := transcriber.NewFakeEngine("slow result")
	eng.SetDelay(50 * time.Millisecond)
	mic := &fakeCapture{samples: samplesFor(500)}
	o, _ := newTestOrch(t, eng, mic, testOptions())

	o.StartRecording()
	o.StopRecording()
	waitState(t, o, StateProcessing)

	// A fresh activation and a toggle both land during inference.
	o.StartRecording()
	o.Toggle()
	if o.State() != StateProcessing {
		t.Fatalf("activation during processing changed state to %v", o.State())
	}

	waitState(t, o, StateIdle)
	if eng.Calls() != 1 {
		t.Fatalf("transcribe calls = %d, want exactly 1", eng.Calls())
	}
	if mic.Starts() != 1 {
		t.Fatalf("capture starts = %d, want 1", mic.Starts())
	}
}

func TestInferenceFailureShowsThenRecovers(t *testing.T) {
	eng := transcriber.NewFakeEngine("")
	eng.FailWith(errors.New("decode failure"))
	mic := &fakeCapture{samples: samplesFor(500)}
	o, rec := newTestOrch(t, eng, mic, testOptions())

	o.StartRecording()
	o.StopRecording()
	waitState(t, o, StateError)

	s := rec.snapshot()
	if len(s.failures) != 1 {
		t.Fatalf("failures = %v, want one message", s.failures)
	}
	if len(s.injected) != 0 || len(s.saved) != 0 {
		t.Error("failed outcome must not reach injection or history")
	}
	if s.cues[len(s.cues)-1] != "error" {
		t.Errorf("cues = %v, want error cue last", s.cues)
	}

	// Error display reverts on its own, and the machine accepts a new
	// recording afterwards.
	waitState(t, o, StateIdle)
	eng.FailWith(nil)
	o.StartRecording()
	if o.State() != StateRecording {
		t.Fatalf("activation after error window rejected, state = %v", o.State())
	}
}

func TestToggleStartsAndStops(t *testing.T) {
	eng := transcriber.NewFakeEngine("toggled")
	mic := &fakeCapture{samples: samplesFor(300)}
	o, rec := newTestOrch(t, eng, mic, testOptions())

	o.Toggle()
	if o.State() != StateRecording {
		t.Fatalf("state after toggle = %v, want recording", o.State())
	}
	o.Toggle()
	waitState(t, o, StateIdle)

	s := rec.snapshot()
	if len(s.injected) != 1 || s.injected[0] != "toggled" {
		t.Fatalf("injected = %v", s.injected)
	}
}

func TestEmptyTranscriptSkipsDelivery(t *testing.T) {
	eng := transcriber.NewFakeEngine("")
	mic := &fakeCapture{samples: samplesFor(500)}
	o, rec := newTestOrch(t, eng, mic, testOptions())

	o.StartRecording()
	o.StopRecording()
	waitState(t, o, StateIdle)

	s := rec.snapshot()
	if len(s.results) != 1 {
		t.Fatalf("UI results = %d, want 1", len(s.results))
	}
	if len(s.injected) != 0 || len(s.saved) != 0 {
		t.Error("empty transcript must not reach injection or history")
	}
}

func TestCaptureStartFailure(t *testing.T) {
	eng := transcriber.NewFakeEngine("never")
	mic := &fakeCapture{startErr: errors.New("no input devices")}
	o, rec := newTestOrch(t, eng, mic, testOptions())

	o.StartRecording()
	if o.State() != StateError {
		t.Fatalf("state = %v, want error", o.State())
	}
	s := rec.snapshot()
	if len(s.failures) != 1 {
		t.Fatalf("failures = %v", s.failures)
	}
	if eng.Calls() != 0 {
		t.Error("capture failure must not dispatch inference")
	}
	waitState(t, o, StateIdle)
}

func TestToggleAutoStopsOnSilence(t *testing.T) {
	eng := transcriber.NewFakeEngine("silent room")
	mic := &fakeCapture{samples: samplesFor(1000)}
	opts := testOptions()
	opts.CaptureRate = 16000
	opts.SilenceWarn = 20 * time.Millisecond
	opts.SilenceStop = 50 * time.Millisecond
	o, rec := newTestOrch(t, eng, mic, opts)

	o.Toggle()
	waitState(t, o, StateIdle)

	if eng.Calls() != 1 {
		t.Fatalf("auto-stop should dispatch the segment, calls = %d", eng.Calls())
	}
	s := rec.snapshot()
	foundWarn := false
	for _, w := range s.warnings {
		if w {
			foundWarn = true
		}
	}
	if !foundWarn {
		t.Error("expected a voice warning before auto-stop")
	}
}

func TestDeviceVanishAbortsSession(t *testing.T) {
	eng := transcriber.NewFakeEngine("never")
	mic := &fakeCapture{samples: samplesFor(500), stalled: true}
	o, rec := newTestOrch(t, eng, mic, testOptions())

	o.StartRecording()
	waitState(t, o, StateError)

	if eng.Calls() != 0 {
		t.Fatalf("dead stream dispatched inference (%d calls)", eng.Calls())
	}
	s := rec.snapshot()
	if len(s.failures) != 1 {
		t.Fatalf("failures = %v, want one message", s.failures)
	}
	if len(s.cues) == 0 || s.cues[len(s.cues)-1] != "error" {
		t.Errorf("cues = %v, want error cue last", s.cues)
	}

	// The machine recovers once the error window passes.
	waitState(t, o, StateIdle)
	o.StartRecording()
	if o.State() != StateRecording {
		t.Fatalf("restart after abort rejected, state = %v", o.State())
	}
	if mic.Starts() != 2 {
		t.Errorf("capture starts = %d, want 2", mic.Starts())
	}
}

func TestStopWhileIdleIsNoOp(t *testing.T) {
	eng := transcriber.NewFakeEngine("x")
	mic := &fakeCapture{}
	o, rec := newTestOrch(t, eng, mic, testOptions())

	o.StopRecording()
	if o.State() != StateIdle {
		t.Fatalf("state = %v, want idle", o.State())
	}
	if len(rec.snapshot().events) != 0 {
		t.Errorf("unexpected events: %v", rec.snapshot().events)
	}
}

func TestSessionIDsDistinct(t *testing.T) {
	eng := transcriber.NewFakeEngine("again")
	mic := &fakeCapture{samples: samplesFor(200)}
	o, rec := newTestOrch(t, eng, mic, testOptions())

	for i := 0; i < 2; i++ {
		o.StartRecording()
		o.StopRecording()
		waitState(t, o, StateIdle)
	}

	s := rec.snapshot()
	if len(s.saved) != 2 {
		t.Fatalf("history entries = %d, want 2", len(s.saved))
	}
	if s.saved[0].SessionID == "" || s.saved[0].SessionID == s.saved[1].SessionID {
		t.Errorf("session ids not distinct: %q vs %q", s.saved[0].SessionID, s.saved[1].SessionID)
	}
}
