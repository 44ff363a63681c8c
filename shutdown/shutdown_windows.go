//go:build windows

package shutdown

import (
	"os"
	"os/signal"
)

// Notify registers the signals that should end a dictation session
// cleanly. Windows has no SIGTERM delivery for console apps, so
// Ctrl+C/Ctrl+Break via os.Interrupt is the whole surface.
func Notify(ch chan os.Signal) {
	signal.Notify(ch, os.Interrupt)
}
