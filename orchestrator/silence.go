package orchestrator

import "time"

const (
	speechMinRatio   = 0.10
	speechClearRatio = 0.25 // higher threshold to clear the warning (hysteresis)
)

type silenceEvent int

const (
	silenceNone silenceEvent = iota
	silenceWarn
	silenceCleared  // speech resumed after a warning
	silenceRepeat   // repeat the warning cue
	silenceAutoStop // prolonged silence in toggle mode
)

// silenceMonitor turns a per-tick speech/no-speech stream into warning
// and auto-stop events. It keeps a ring of recent ticks sized to the
// auto-stop window.
type silenceMonitor struct {
	warnAt   int
	windowSz int
	autoStop bool
	isToggle func() bool

	ticks       int
	window      []bool
	speechCount int
	warned      bool
	lastCue     int
}

func newSilenceMonitor(tick, warnAfter, autoStopAfter time.Duration, isToggle func() bool) *silenceMonitor {
	warnAt := int(warnAfter / tick)
	if warnAt < 1 {
		warnAt = 1
	}
	windowSz := int(autoStopAfter / tick)
	autoStop := windowSz > 0
	if windowSz < warnAt {
		windowSz = warnAt
	}
	return &silenceMonitor{
		warnAt:   warnAt,
		windowSz: windowSz,
		autoStop: autoStop,
		isToggle: isToggle,
		window:   make([]bool, windowSz),
	}
}

// ratio reports the speech share over the most recent n ticks.
func (m *silenceMonitor) ratio(n int) float64 {
	if m.ticks < n {
		n = m.ticks
	}
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.windowSz)%m.windowSz] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *silenceMonitor) Tick(hasSpeech bool) silenceEvent {
	idx := m.ticks % m.windowSz
	if m.ticks >= m.windowSz && m.window[idx] {
		m.speechCount--
	}
	m.window[idx] = hasSpeech
	if hasSpeech {
		m.speechCount++
	}
	m.ticks++

	r := m.ratio(m.warnAt)

	if m.ticks >= m.warnAt && r < speechMinRatio && !m.warned {
		m.warned = true
		m.lastCue = m.ticks
		return silenceWarn
	}
	if m.warned && r >= speechClearRatio {
		m.warned = false
		return silenceCleared
	}

	if !m.isToggle() {
		return silenceNone
	}

	// Auto-stop wins over a due repeat cue.
	if m.autoStop && m.ticks >= m.windowSz &&
		float64(m.speechCount)/float64(m.windowSz) < speechMinRatio {
		return silenceAutoStop
	}

	if m.warned && m.ticks-m.lastCue >= m.warnAt {
		m.lastCue = m.ticks
		return silenceRepeat
	}

	return silenceNone
}
