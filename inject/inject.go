package inject

import (
	"strings"
	"time"

	"murmur/clipboard"
	"murmur/log"
)

const defaultRestoreDelay = 300 * time.Millisecond

// Options select the delivery method. Zero value means paste with the
// default clipboard-restore delay.
type Options struct {
	Method       string        // "paste" (default) or "type"
	RestoreDelay time.Duration // how long the transcript stays on the clipboard
}

// Deliver hands the transcript to the focused application. The paste
// method stashes the transcript on the clipboard, sends the platform
// paste chord, and later puts the previous clipboard content back. The
// type method synthesizes per-character keystrokes and leaves the
// clipboard alone.
func Deliver(text string, opts Options) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if opts.Method == "type" {
		return typeText(text)
	}
	delay := opts.RestoreDelay
	if delay <= 0 {
		delay = defaultRestoreDelay
	}

	prev, prevErr := clipboard.Read()
	if err := clipboard.Copy(text); err != nil {
		return err
	}
	if err := sendPaste(); err != nil {
		return err
	}
	if prevErr == nil {
		time.AfterFunc(delay, func() {
			// Skip the restore if the user copied something else meanwhile.
			if cur, err := clipboard.Read(); err == nil && cur == text {
				if err := clipboard.Copy(prev); err != nil {
					log.Warnf("clipboard restore: %v", err)
				}
			}
		})
	}
	return nil
}
