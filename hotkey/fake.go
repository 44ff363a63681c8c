package hotkey

import "sync"

// fakeKeymap gives every canonical name a single stable code so tests
// can press keys by name.
var fakeKeymap = Keymap{
	"ctrl":  {1},
	"shift": {2},
	"alt":   {3},
	"super": {4},
	"space": {10},
	"enter": {11},
	"a":     {20},
	"b":     {21},
	"r":     {22},
	"z":     {23},
	"f9":    {30},
}

// FakeHook feeds scripted key events to a listener. Press and Release
// run the listener's handler synchronously on the calling goroutine,
// so a test observes the state transition as soon as the call returns.
type FakeHook struct {
	mu      sync.Mutex
	emit    func(KeyEvent)
	stopped bool
}

func NewFakeHook() *FakeHook { return &FakeHook{} }

func (f *FakeHook) Keymap() Keymap { return fakeKeymap }

func (f *FakeHook) Run(emit func(KeyEvent)) error {
	f.mu.Lock()
	f.emit = emit
	f.stopped = false
	f.mu.Unlock()
	return nil
}

func (f *FakeHook) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *FakeHook) Press(name string)   { f.send(name, true) }
func (f *FakeHook) Release(name string) { f.send(name, false) }

func (f *FakeHook) send(name string, press bool) {
	f.mu.Lock()
	emit := f.emit
	stopped := f.stopped
	f.mu.Unlock()
	if emit == nil || stopped {
		return
	}
	codes := fakeKeymap.codesFor(name)
	if len(codes) == 0 {
		panic("fake hook: unknown key " + name)
	}
	emit(KeyEvent{Code: codes[0], Press: press})
}
