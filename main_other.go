//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	// x/hotkey event handling must own the real main thread.
	mainthread.Init(run)
}
