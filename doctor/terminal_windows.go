//go:build windows

package doctor

// resetTerminal has nothing to restore; the console host resets modes
// itself when the process exits.
func resetTerminal() {}
