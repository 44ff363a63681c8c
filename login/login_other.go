//go:build !darwin

package login

func Enabled() bool { return false }

func Enable() error { return ErrUnsupported }

func Disable() error { return nil }
