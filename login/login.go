// Package login manages starting the app automatically at user login.
package login

import "errors"

// ErrUnsupported is returned on platforms without a login-item
// mechanism wired up.
var ErrUnsupported = errors.New("launch at startup not supported on this platform")

// Sync reconciles the installed login item with the configured setting.
func Sync(want bool) error {
	if want == Enabled() {
		return nil
	}
	if want {
		return Enable()
	}
	return Disable()
}
