// Package orchestrator owns the recording state machine: it turns
// activation signals into capture start/stop, hands finished segments
// to the transcription worker, and fans results out to the UI,
// history, injection, and cue sinks.
package orchestrator

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"murmur/audio"
	"murmur/log"
	"murmur/transcriber"
)

// State is the orchestrator machine state.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateProcessing
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Session identifies one recording from activation to delivery.
type Session struct {
	ID        string
	StartedAt time.Time
}

// Result is a finished transcription with its session metadata.
type Result struct {
	SessionID       string
	Text            string
	Language        string
	Model           string
	Engine          string
	DurationSeconds float64
	ProcessSeconds  float64
	Confidence      float64
	FinishedAt      time.Time
}

// UISink receives display events. Implementations must not block: the
// orchestrator posts from its transition path and from the per-session
// monitor goroutine.
type UISink interface {
	RecordingStarted()
	RecordingStopped()
	ProcessingStarted()
	RecordingTick(seconds float64)
	AmplitudeUpdate(level float64)
	VoiceWarning(on bool)
	TranscriptReady(res Result)
	TranscriptFailed(message string)
}

// HistorySink persists successful outcomes. Errors are logged, never
// retried.
type HistorySink interface {
	Save(res Result) error
}

// InjectionSink places the transcript into the focused application.
// Called at most once per session, success only.
type InjectionSink interface {
	Deliver(text string) error
}

// CueSink plays audible feedback for state transitions. Fire-and-forget.
type CueSink interface {
	Start()
	Stop()
	Error()
}

// Capture is the slice of the audio engine the orchestrator drives.
type Capture interface {
	Start() error
	Stop() []float32
	Level() float32
	Tail(cursor int64, out []float32) (int64, int)
}

// Options tunes the machine. Zero values select the defaults.
type Options struct {
	Language string
	Model    string

	MinSegment   time.Duration // segments shorter than this are discarded
	ErrorWindow  time.Duration // Error display time before reverting to Idle
	TickInterval time.Duration // amplitude and monitor cadence
	CaptureRate  int           // device sample rate, used by the voice monitor

	SilenceWarn time.Duration // sustained no-speech before warning; 0 disables monitoring
	SilenceStop time.Duration // toggle-mode auto-stop after silence; 0 disables
}

const (
	defaultMinSegment  = 100 * time.Millisecond
	defaultErrorWindow = 3 * time.Second
	defaultTick        = 100 * time.Millisecond

	// stallTicks is how many consecutive monitor ticks may pass without
	// a single new sample before the stream is declared dead. Two
	// seconds at the default cadence.
	stallTicks = 20
)

// Orchestrator serializes all state transitions under one mutex. Other
// goroutines (hook thread, worker, monitor) submit events through the
// public methods and never mutate state directly.
type Orchestrator struct {
	capture Capture
	worker  *transcriber.Worker
	opts    Options

	ui   UISink
	hist HistorySink
	inj  InjectionSink
	cue  CueSink

	mu      sync.Mutex
	state   State
	session Session
	toggled bool
	errMsg  string
	monStop chan struct{}
	revert  *time.Timer
	closed  bool
}

func New(capture Capture, worker *transcriber.Worker, opts Options) *Orchestrator {
	if opts.MinSegment <= 0 {
		opts.MinSegment = defaultMinSegment
	}
	if opts.ErrorWindow <= 0 {
		opts.ErrorWindow = defaultErrorWindow
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTick
	}
	if opts.CaptureRate <= 0 {
		opts.CaptureRate = audio.CanonicalRate
	}
	return &Orchestrator{
		capture: capture,
		worker:  worker,
		opts:    opts,
		ui:      nopUI{},
		hist:    nopHistory{},
		inj:     nopInjection{},
		cue:     nopCue{},
	}
}

// SetSinks wires the outbound surfaces before the first activation.
// A nil sink keeps the no-op default.
func (o *Orchestrator) SetSinks(ui UISink, hist HistorySink, inj InjectionSink, cue CueSink) {
	if ui != nil {
		o.ui = ui
	}
	if hist != nil {
		o.hist = hist
	}
	if inj != nil {
		o.inj = inj
	}
	if cue != nil {
		o.cue = cue
	}
}

// State reports the current machine state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// ErrorMessage reports the live Error-state message, empty otherwise.
func (o *Orchestrator) ErrorMessage() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.errMsg
}

// StartRecording handles a hold-mode activation.
func (o *Orchestrator) StartRecording() {
	o.begin(false)
}

// StopRecording handles a hold-mode deactivation.
func (o *Orchestrator) StopRecording() {
	o.end()
}

// Toggle starts a recording when idle and stops a live one. While
// Processing or Error it is dropped, matching the hold-mode policy.
func (o *Orchestrator) Toggle() {
	o.mu.Lock()
	st := o.state
	o.mu.Unlock()
	switch st {
	case StateIdle:
		o.begin(true)
	case StateRecording:
		o.end()
	}
}

// Close stops any live capture and detaches the machine. Completions
// arriving after Close are ignored.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	if o.monStop != nil {
		close(o.monStop)
		o.monStop = nil
	}
	recording := o.state == StateRecording
	if o.revert != nil {
		o.revert.Stop()
	}
	o.state = StateIdle
	o.session = Session{}
	o.mu.Unlock()

	if recording {
		o.capture.Stop()
	}
}

func (o *Orchestrator) begin(toggled bool) {
	o.mu.Lock()
	if o.closed || o.state != StateIdle {
		o.mu.Unlock()
		return
	}
	if err := o.capture.Start(); err != nil {
		msg := "microphone: " + err.Error()
		o.toErrorLocked(msg)
		o.mu.Unlock()
		log.Errorf("capture start: %v", err)
		o.ui.TranscriptFailed(msg)
		o.cue.Error()
		return
	}
	o.session = Session{ID: uuid.NewString(), StartedAt: time.Now()}
	o.toggled = toggled
	o.state = StateRecording
	stop := make(chan struct{})
	o.monStop = stop
	startedAt := o.session.StartedAt
	o.mu.Unlock()

	log.Info("recording_start")
	o.ui.RecordingStarted()
	o.cue.Start()
	go o.monitor(stop, startedAt)
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	if o.state != StateRecording {
		o.mu.Unlock()
		return
	}
	close(o.monStop)
	o.monStop = nil
	samples := o.capture.Stop()
	seconds := float64(len(samples)) / float64(audio.CanonicalRate)
	sessID := o.session.ID

	if seconds < o.opts.MinSegment.Seconds() {
		// Key-bounce sized segment: back to Idle, no inference, not an
		// error the user should see.
		o.session = Session{}
		o.state = StateIdle
		o.mu.Unlock()
		log.Infof("segment_too_short: %.0fms", seconds*1000)
		o.ui.RecordingStopped()
		o.cue.Stop()
		return
	}

	o.state = StateProcessing
	o.mu.Unlock()

	log.Infof("recording_stop: %.1fs", seconds)
	o.ui.RecordingStopped()
	o.cue.Stop()
	o.ui.ProcessingStarted()

	o.worker.Submit(transcriber.Job{
		Samples:  samples,
		Language: o.opts.Language,
		Done: func(out *transcriber.Outcome, err error) {
			o.finish(sessID, out, err)
		},
	})
}

// abortCapture tears down a recording whose stream died, skipping
// inference entirely. Runs on the monitor goroutine.
func (o *Orchestrator) abortCapture(msg string) {
	o.mu.Lock()
	if o.state != StateRecording {
		o.mu.Unlock()
		return
	}
	if o.monStop != nil {
		close(o.monStop)
		o.monStop = nil
	}
	o.capture.Stop()
	o.toErrorLocked(msg)
	o.mu.Unlock()

	log.Errorf("capture aborted: %s", msg)
	o.ui.RecordingStopped()
	o.ui.TranscriptFailed(msg)
	o.cue.Error()
}

// finish runs on the worker goroutine when inference resolves.
func (o *Orchestrator) finish(sessionID string, out *transcriber.Outcome, err error) {
	o.mu.Lock()
	if o.closed || o.state != StateProcessing || o.session.ID != sessionID {
		o.mu.Unlock()
		return
	}
	if err != nil {
		msg := err.Error()
		o.toErrorLocked(msg)
		o.mu.Unlock()
		log.Errorf("transcription: %v", err)
		o.ui.TranscriptFailed(msg)
		o.cue.Error()
		return
	}

	sess := o.session
	o.session = Session{}
	o.state = StateIdle
	o.mu.Unlock()

	res := Result{
		SessionID:       sess.ID,
		Text:            out.Text,
		Language:        out.Language,
		Model:           o.opts.Model,
		Engine:          o.worker.Engine().Name(),
		DurationSeconds: out.AudioSeconds,
		ProcessSeconds:  out.ProcessSeconds,
		Confidence:      out.Confidence,
		FinishedAt:      time.Now(),
	}
	o.ui.TranscriptReady(res)

	if strings.TrimSpace(res.Text) == "" {
		log.Info("no_speech")
		return
	}
	if err := o.inj.Deliver(res.Text); err != nil {
		log.Warnf("inject: %v", err)
	}
	if err := o.hist.Save(res); err != nil {
		log.Warnf("history: %v", err)
	}
	log.TranscriptionText(res.Text)
	log.Confidence(res.Confidence)
}

// toErrorLocked enters the Error state and arms the auto-revert timer.
// Caller holds mu.
func (o *Orchestrator) toErrorLocked(msg string) {
	o.session = Session{}
	o.state = StateError
	o.errMsg = msg
	if o.revert != nil {
		o.revert.Stop()
	}
	o.revert = time.AfterFunc(o.opts.ErrorWindow, o.clearError)
}

func (o *Orchestrator) clearError() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateError {
		return
	}
	o.state = StateIdle
	o.errMsg = ""
}

// monitor runs for the life of one recording: it forwards elapsed time
// and amplitude to the UI and, when enabled, watches the live buffer
// for sustained silence.
func (o *Orchestrator) monitor(stop <-chan struct{}, startedAt time.Time) {
	var vp *vadProcessor
	var mon *silenceMonitor
	var buf []byte

	if o.opts.SilenceWarn > 0 {
		v, err := newVADProcessor(o.opts.CaptureRate)
		if err != nil {
			log.Warnf("voice monitor unavailable: %v", err)
		} else {
			vp = v
			mon = newSilenceMonitor(o.opts.TickInterval, o.opts.SilenceWarn, o.opts.SilenceStop, o.isToggled)
		}
	}

	pcm := make([]float32, o.opts.CaptureRate/2)
	if vp != nil {
		buf = make([]byte, len(pcm)*2)
	}
	var cursor int64
	var stalled int

	ticker := time.NewTicker(o.opts.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			o.ui.RecordingTick(time.Since(startedAt).Seconds())
			o.ui.AmplitudeUpdate(float64(o.capture.Level()))

			var n int
			cursor, n = o.capture.Tail(cursor, pcm)
			if n == 0 {
				// The callback keeps pushing samples even in a silent
				// room, so a cursor that stops moving means the stream
				// itself died, usually an unplugged device.
				stalled++
				if stalled >= stallTicks {
					o.abortCapture("microphone: device stopped delivering audio")
					return
				}
				continue
			}
			stalled = 0
			if vp == nil {
				continue
			}
			vp.Process(pcmBytes(pcm[:n], buf))
			switch mon.Tick(vp.HasSpeechTick()) {
			case silenceWarn:
				log.Info("no_voice_warning")
				o.ui.VoiceWarning(true)
				o.cue.Error()
			case silenceCleared:
				o.ui.VoiceWarning(false)
			case silenceRepeat:
				log.Info("silence_during_warning")
				o.ui.VoiceWarning(true)
				o.cue.Error()
			case silenceAutoStop:
				log.Info("silence_auto_stop")
				o.StopRecording()
				return
			}
		}
	}
}

func (o *Orchestrator) isToggled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.toggled
}

type nopUI struct{}

func (nopUI) RecordingStarted()       {}
func (nopUI) RecordingStopped()       {}
func (nopUI) ProcessingStarted()      {}
func (nopUI) RecordingTick(float64)   {}
func (nopUI) AmplitudeUpdate(float64) {}
func (nopUI) VoiceWarning(bool)       {}
func (nopUI) TranscriptReady(Result)  {}
func (nopUI) TranscriptFailed(string) {}

type nopHistory struct{}

func (nopHistory) Save(Result) error { return nil }

type nopInjection struct{}

func (nopInjection) Deliver(string) error { return nil }

type nopCue struct{}

func (nopCue) Start() {}
func (nopCue) Stop()  {}
func (nopCue) Error() {}
