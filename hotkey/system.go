package hotkey

import (
	"fmt"
	"sort"
	"sync"

	xhotkey "golang.design/x/hotkey"
)

// systemHook registers the combo with the OS through
// golang.design/x/hotkey instead of tapping the raw key stream. Useful
// where raw hooks need privileges the user does not have. The OS only
// reports whole-combo down/up, so this backend synthesizes the
// modifier and primary events the listener expects.
type systemHook struct {
	mu      sync.Mutex
	combo   Combo
	hk      *xhotkey.Hotkey
	emit    func(KeyEvent)
	stop    chan struct{}
	running bool
}

// systemKeymap uses synthetic codes: the OS never shows us real
// keycodes in this mode. Only names x/hotkey can register appear, so
// unsupported combos fail at bind time.
var systemKeymap = buildSystemKeymap()

func buildSystemKeymap() Keymap {
	km := Keymap{
		"ctrl":  {1},
		"shift": {2},
		"alt":   {3},
		"super": {4},
	}
	names := []string{"space", "enter", "tab", "esc", "delete",
		"up", "down", "left", "right"}
	for c := 'a'; c <= 'z'; c++ {
		names = append(names, string(c))
	}
	for c := '0'; c <= '9'; c++ {
		names = append(names, string(c))
	}
	for i := 1; i <= 12; i++ {
		names = append(names, fmt.Sprintf("f%d", i))
	}
	sort.Strings(names)
	code := uint16(10)
	for _, n := range names {
		km[n] = []uint16{code}
		code++
	}
	return km
}

// NewSystemHook builds a registered-hotkey backend for the combo. The
// combo must be re-registered on change, which the listener does by
// calling SetCombo during Reconfigure.
func NewSystemHook(combo Combo) (Hook, error) {
	hk, err := registerableHotkey(combo)
	if err != nil {
		return nil, err
	}
	return &systemHook{combo: combo, hk: hk}, nil
}

func registerableHotkey(combo Combo) (*xhotkey.Hotkey, error) {
	mods, err := systemModifiers(combo.Modifiers())
	if err != nil {
		return nil, err
	}
	key, ok := systemKeys[combo.Key()]
	if !ok {
		return nil, &ComboError{Input: combo.String(), Token: combo.Key(), Reason: "key not registrable with the OS"}
	}
	return xhotkey.New(mods, key), nil
}

func (h *systemHook) Keymap() Keymap { return systemKeymap }

func (h *systemHook) Run(emit func(KeyEvent)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return nil
	}
	h.emit = emit
	if err := h.hk.Register(); err != nil {
		return fmt.Errorf("register hotkey: %w", err)
	}
	h.running = true
	h.startPump()
	return nil
}

// startPump spawns the goroutines bridging x/hotkey channels into
// synthesized key events. Caller holds mu.
func (h *systemHook) startPump() {
	stop := make(chan struct{})
	h.stop = stop
	hk := h.hk
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-hk.Keydown():
				h.synthesize(true)
			}
		}
	}()
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-hk.Keyup():
				h.synthesize(false)
			}
		}
	}()
}

// synthesize expands a whole-combo transition into the per-key events
// the listener's state machine consumes.
func (h *systemHook) synthesize(press bool) {
	h.mu.Lock()
	combo := h.combo
	emit := h.emit
	h.mu.Unlock()
	if emit == nil {
		return
	}
	mods := combo.Modifiers()
	primary := systemKeymap.codesFor(combo.Key())
	if len(primary) == 0 {
		return
	}
	if press {
		for _, m := range mods {
			emit(KeyEvent{Code: systemKeymap.codesFor(m)[0], Press: true})
		}
		emit(KeyEvent{Code: primary[0], Press: true})
	} else {
		emit(KeyEvent{Code: primary[0], Press: false})
		for i := len(mods) - 1; i >= 0; i-- {
			emit(KeyEvent{Code: systemKeymap.codesFor(mods[i])[0], Press: false})
		}
	}
}

// SetCombo re-registers with the OS. Called by the listener during
// Reconfigure.
func (h *systemHook) SetCombo(combo Combo) error {
	hk, err := registerableHotkey(combo)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		close(h.stop)
		h.hk.Unregister()
		if err := hk.Register(); err != nil {
			// old registration is gone; re-register it so the previous
			// combo keeps working
			_ = h.hk.Register()
			h.startPump()
			return fmt.Errorf("register hotkey: %w", err)
		}
	}
	h.combo = combo
	h.hk = hk
	if h.running {
		h.startPump()
	}
	return nil
}

func (h *systemHook) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	h.running = false
	close(h.stop)
	h.hk.Unregister()
}
