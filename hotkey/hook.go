package hotkey

// KeyEvent is one raw key transition as seen by a hook backend. Code is
// in the backend's native keycode space; the listener translates via
// the backend's keymap.
type KeyEvent struct {
	Code  uint16
	Press bool
}

// Hook delivers raw key events serially, in observation order. Emit
// must be called from a single goroutine.
type Hook interface {
	// Run starts delivering events to emit until Stop. It returns an
	// error only for startup failure.
	Run(emit func(KeyEvent)) error
	Stop()
	// Keymap translates portable key names into this backend's codes.
	// A name may map to several codes (left/right modifier variants).
	Keymap() Keymap
}

// Keymap resolves portable key names ("ctrl", "space", "r") to native
// keycodes.
type Keymap map[string][]uint16

// codesFor returns the native codes for a name, nil when the backend
// cannot produce that key.
func (k Keymap) codesFor(name string) []uint16 {
	return k[name]
}
