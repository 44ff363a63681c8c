//go:build !windows

package shutdown

import (
	"os"
	"os/signal"
	"syscall"
)

// Notify registers the signals that should end a dictation session
// cleanly. SIGHUP is included because the background process stays in
// the launching terminal's session; when that terminal closes we still
// want the history store and logs flushed.
func Notify(ch chan os.Signal) {
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
}
