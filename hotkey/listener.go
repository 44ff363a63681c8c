package hotkey

import (
	"fmt"
	"sync"
	"time"
)

// Policy selects how combo presses map to recording signals.
type Policy int

const (
	// HoldToRecord: press starts, release stops.
	HoldToRecord Policy = iota
	// ToggleOnPress: each tap emits one Toggle; release is silent.
	ToggleOnPress
)

// Signal is what the listener hands to its sink.
type Signal int

const (
	SignalStart Signal = iota
	SignalStop
	SignalToggle
)

func (s Signal) String() string {
	switch s {
	case SignalStart:
		return "start"
	case SignalStop:
		return "stop"
	case SignalToggle:
		return "toggle"
	}
	return "unknown"
}

const (
	DefaultMinHold  = 150 * time.Millisecond
	DefaultDebounce = 300 * time.Millisecond
)

// Options tune the listener. Zero values mean HoldToRecord with the
// default timings.
type Options struct {
	Policy   Policy
	MinHold  time.Duration // hold policy: releases earlier than this are spurious
	Debounce time.Duration // toggle policy: minimum spacing between Toggle signals
}

// Listener turns raw key events from a Hook into recording signals.
//
// State machine: Idle until the primary key is pressed while the held
// modifier set exactly equals the combo's, then Armed until the primary
// is released (hold policy) or immediately back to Idle after emitting
// Toggle (toggle policy). Modifier events only maintain the tracked
// set; they never cause a transition, so a modifier released an instant
// before the primary key cannot truncate a recording.
type Listener struct {
	hook Hook

	mu       sync.Mutex
	sink     func(Signal)
	combo    Combo
	policy   Policy
	minHold  time.Duration
	debounce time.Duration

	modCodes    map[uint16]string // any known modifier code -> canonical name
	primarySet  map[uint16]bool   // codes for the combo's primary key
	wantMods    map[string]bool   // modifier names the combo requires
	heldMods    map[string]bool
	armed       bool
	armedAt     time.Time
	primaryDown bool
	lastToggle  time.Time
	running     bool
}

// NewListener parses comboStr and binds it to the hook's keymap.
// Malformed strings and keys the platform cannot deliver fail here,
// never at runtime.
func NewListener(hook Hook, comboStr string, opts Options) (*Listener, error) {
	combo, err := ParseCombo(comboStr)
	if err != nil {
		return nil, err
	}
	if opts.MinHold <= 0 {
		opts.MinHold = DefaultMinHold
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	l := &Listener{
		hook:     hook,
		policy:   opts.Policy,
		minHold:  opts.MinHold,
		debounce: opts.Debounce,
		heldMods: make(map[string]bool),
	}
	if err := l.bind(combo); err != nil {
		return nil, err
	}
	return l, nil
}

// bind rebuilds the keycode tables for a combo. Caller holds mu or has
// exclusive access.
func (l *Listener) bind(combo Combo) error {
	km := l.hook.Keymap()
	primary := km.codesFor(combo.Key())
	if len(primary) == 0 {
		return &ComboError{Input: combo.String(), Token: combo.Key(), Reason: "key not available on this platform"}
	}
	modCodes := make(map[uint16]string)
	for _, name := range []string{"ctrl", "shift", "alt", "super"} {
		for _, code := range km.codesFor(name) {
			modCodes[code] = name
		}
	}
	wantMods := make(map[string]bool)
	for _, m := range combo.Modifiers() {
		if len(km.codesFor(m)) == 0 {
			return &ComboError{Input: combo.String(), Token: m, Reason: "modifier not available on this platform"}
		}
		wantMods[m] = true
	}
	primarySet := make(map[uint16]bool)
	for _, code := range primary {
		primarySet[code] = true
	}

	l.combo = combo
	l.modCodes = modCodes
	l.primarySet = primarySet
	l.wantMods = wantMods
	l.armed = false
	l.primaryDown = false
	for k := range l.heldMods {
		delete(l.heldMods, k)
	}
	return nil
}

// Start begins listening. Signals are delivered on the hook's
// goroutine; the sink must not block.
func (l *Listener) Start() error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = true
	l.mu.Unlock()
	if err := l.hook.Run(l.handle); err != nil {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
		return fmt.Errorf("start hook: %w", err)
	}
	return nil
}

// Stop halts the hook. Pending state is discarded.
func (l *Listener) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	l.armed = false
	l.primaryDown = false
	l.mu.Unlock()
	l.hook.Stop()
}

// SetSink replaces the signal sink. Safe while running.
func (l *Listener) SetSink(fn func(Signal)) {
	l.mu.Lock()
	l.sink = fn
	l.mu.Unlock()
}

// Reconfigure atomically swaps the active combo. The old combo stays
// in effect if parsing or binding fails. In-flight state is reset, so
// a recording armed under the old combo will not emit its stop signal.
func (l *Listener) Reconfigure(comboStr string) error {
	combo, err := ParseCombo(comboStr)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	old := l.combo
	if err := l.bind(combo); err != nil {
		// bind failed after validating the parse: restore untouched
		// tables by rebinding the old combo, which is known good.
		_ = l.bind(old)
		return err
	}
	if rc, ok := l.hook.(interface{ SetCombo(Combo) error }); ok {
		if err := rc.SetCombo(combo); err != nil {
			_ = l.bind(old)
			return fmt.Errorf("register combo: %w", err)
		}
	}
	return nil
}

// Combo returns the active combo.
func (l *Listener) Combo() Combo {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.combo
}

// SetPolicy switches between hold and toggle behavior. Resets in-flight
// state like Reconfigure.
func (l *Listener) SetPolicy(p Policy) {
	l.mu.Lock()
	l.policy = p
	l.armed = false
	l.primaryDown = false
	l.mu.Unlock()
}

// handle is the hook's emit target. Events arrive serially.
func (l *Listener) handle(ev KeyEvent) {
	l.mu.Lock()
	sig, ok := l.transition(ev, time.Now())
	sink := l.sink
	l.mu.Unlock()
	if ok && sink != nil {
		sink(sig)
	}
}

// transition applies one event to the machine. Caller holds mu.
func (l *Listener) transition(ev KeyEvent, now time.Time) (Signal, bool) {
	if name, isMod := l.modCodes[ev.Code]; isMod {
		if ev.Press {
			l.heldMods[name] = true
		} else {
			delete(l.heldMods, name)
		}
		return 0, false
	}
	if !l.primarySet[ev.Code] {
		return 0, false
	}

	if ev.Press {
		if l.primaryDown {
			return 0, false // OS key repeat
		}
		l.primaryDown = true
		if l.armed || !l.modsExact() {
			return 0, false
		}
		switch l.policy {
		case HoldToRecord:
			l.armed = true
			l.armedAt = now
			return SignalStart, true
		case ToggleOnPress:
			if now.Sub(l.lastToggle) < l.debounce {
				return 0, false
			}
			l.lastToggle = now
			l.armed = true
			l.armedAt = now
			return SignalToggle, true
		}
		return 0, false
	}

	l.primaryDown = false
	if !l.armed {
		return 0, false
	}
	switch l.policy {
	case HoldToRecord:
		// Boundary: a release exactly at minHold counts as deliberate.
		if now.Sub(l.armedAt) < l.minHold {
			return 0, false // spurious release, stay armed
		}
		l.armed = false
		return SignalStop, true
	case ToggleOnPress:
		l.armed = false
		return 0, false
	}
	return 0, false
}

// modsExact reports whether the held modifiers equal the required set,
// with nothing extra held.
func (l *Listener) modsExact() bool {
	if len(l.heldMods) != len(l.wantMods) {
		return false
	}
	for m := range l.wantMods {
		if !l.heldMods[m] {
			return false
		}
	}
	return true
}
