//go:build !linux

package hotkey

import (
	"sync"

	hook "github.com/robotn/gohook"
)

// gohookHook taps the OS event stream through libuiohook. Rawcodes are
// platform virtual keycodes; the per-OS keymap files translate.
type gohookHook struct {
	once sync.Once
	done chan struct{}
}

func NewHook() Hook {
	return &gohookHook{done: make(chan struct{})}
}

func (h *gohookHook) Keymap() Keymap { return nativeKeymap }

func (h *gohookHook) Run(emit func(KeyEvent)) error {
	events := hook.Start()
	go func() {
		defer close(h.done)
		for ev := range events {
			switch ev.Kind {
			case hook.KeyDown, hook.KeyHold:
				emit(KeyEvent{Code: ev.Rawcode, Press: true})
			case hook.KeyUp:
				emit(KeyEvent{Code: ev.Rawcode, Press: false})
			}
		}
	}()
	return nil
}

func (h *gohookHook) Stop() {
	h.once.Do(func() {
		hook.End()
		<-h.done
	})
}

// Diagnose checks hook availability and returns a status message.
func Diagnose() (string, error) {
	return "system-wide key hook available", nil
}
