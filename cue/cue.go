package cue

import (
	"math"
	"sync"
)

// Event is a discrete feedback cue aligned with recorder transitions.
type Event int

const (
	Start Event = iota
	Stop
	Error
)

const (
	sampleRate = 44100

	// Start cue: high pitch, short
	startFreq  = 1200
	startDecay = 60

	// Stop cue: medium pitch, slightly longer
	stopFreq  = 900
	stopDecay = 40

	// Error cue: low pitch double-beep
	errorFreq  = 350
	errorDecay = 30
)

var (
	mu      sync.Mutex
	enabled = true
	volume  = 0.5
	ready   bool
)

// Configure sets playback state. Volume is 0..1; tones are regenerated
// at the new level on the next play.
func Configure(on bool, vol float64) {
	mu.Lock()
	defer mu.Unlock()
	enabled = on
	if vol > 0 && vol <= 1 {
		volume = vol
	}
	ready = false
}

// Play fires one cue without blocking the caller.
func Play(e Event) {
	mu.Lock()
	if !enabled {
		mu.Unlock()
		return
	}
	if !ready {
		generate(volume)
		ready = true
	}
	mu.Unlock()
	play(e)
}

// tick synthesizes one exponentially decaying sine, stereo interleaved.
func tick(freq, duration, vol, decay float64) []int16 {
	n := int(sampleRate * duration)
	samples := make([]int16, n*2)
	for i := 0; i < n; i++ {
		t := float64(i) / sampleRate
		envelope := math.Exp(-t * decay)
		s := int16(math.Sin(2*math.Pi*freq*t) * 32767 * vol * envelope)
		samples[i*2] = s
		samples[i*2+1] = s
	}
	return samples
}

func doubleBeep(freq, beepDur, gapDur, vol, decay float64) []int16 {
	beep := tick(freq, beepDur, vol, decay)
	gap := make([]int16, int(sampleRate*gapDur)*2)
	result := make([]int16, 0, len(beep)*2+len(gap))
	result = append(result, beep...)
	result = append(result, gap...)
	result = append(result, beep...)
	return result
}
