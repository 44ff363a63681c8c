package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"murmur/audio"
	"murmur/config"
	"murmur/cue"
	"murmur/hotkey"
	"murmur/inject"
	"murmur/log"
	"murmur/orchestrator"
	"murmur/transcriber"
)

// runTestMode drives the full pipeline headless: a scripted hook fed
// from stdin, a WAV file standing in for the microphone, everything
// downstream real. Commands: KEYDOWN, KEYUP, TOGGLE, WAIT,
// WAIT_AUDIO_DONE, SLEEP <ms>, QUIT.
func runTestMode(wavPath string, cfg *config.Config) {
	cue.Configure(false, 0)

	engine, err := transcriber.New(cfg.Transcription)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	worker = transcriber.NewWorker(engine)

	fctx, err := audio.NewFakeContext(wavPath, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		os.Exit(1)
	}
	aeng := audio.NewEngine(fctx, audio.CanonicalRate, cfg.Audio.MaxSeconds)
	defer aeng.Close()

	log.SessionStart(engine.Name(), cfg.Transcription.Model, "fake")

	// Without a TUI program the sink only counts transcripts.
	ui = &tuiSink{}
	orch = orchestrator.New(&mic{eng: aeng, gain: 1.0}, worker, orchestrator.Options{
		Language:    cfg.Transcription.Language,
		Model:       cfg.Transcription.Model,
		CaptureRate: audio.CanonicalRate,
		SilenceWarn: time.Duration(cfg.Feedback.SilenceWarnSec) * time.Second,
		SilenceStop: time.Duration(cfg.Feedback.SilenceAutoStopSec) * time.Second,
	})
	orch.SetSinks(ui, nil, injectSink{opts: inject.Options{}}, nil)

	opts := hotkey.Options{
		MinHold:  time.Duration(cfg.Hotkey.MinHoldMs) * time.Millisecond,
		Debounce: time.Duration(cfg.Hotkey.DebounceMs) * time.Millisecond,
	}
	if cfg.Hotkey.Toggle {
		opts.Policy = hotkey.ToggleOnPress
	}
	hk := hotkey.NewFakeHook()
	listener, err := hotkey.NewListener(hk, cfg.Hotkey.Combo, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	listener.SetSink(func(sig hotkey.Signal) {
		switch sig {
		case hotkey.SignalStart:
			orch.StartRecording()
		case hotkey.SignalStop:
			orch.StopRecording()
		case hotkey.SignalToggle:
			orch.Toggle()
		}
	})
	if err := listener.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer listener.Stop()

	combo := listener.Combo()
	press := func() {
		for _, m := range combo.Modifiers() {
			hk.Press(m)
		}
		hk.Press(combo.Key())
	}
	release := func() {
		hk.Release(combo.Key())
		for _, m := range combo.Modifiers() {
			hk.Release(m)
		}
	}
	// Fake hook events run the recorder transition synchronously, so by
	// the time press() returns the state has already moved.
	waitSettled := func() {
		for {
			s := orch.State()
			if s != orchestrator.StateRecording && s != orchestrator.StateProcessing {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		switch {
		case cmd == "KEYDOWN":
			press()
		case cmd == "KEYUP":
			release()
		case cmd == "TOGGLE":
			press()
			release()
		case cmd == "WAIT":
			waitSettled()
		case cmd == "WAIT_AUDIO_DONE":
			if c := fctx.Capture(); c != nil {
				<-c.AudioDone()
			}
		case cmd == "QUIT":
			orch.Close()
			worker.Close()
			log.SessionEnd(ui.Transcripts())
			log.Close()
			os.Exit(0)
		case strings.HasPrefix(cmd, "SLEEP "):
			if ms, err := strconv.Atoi(cmd[6:]); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		}
	}
	os.Exit(0)
}
