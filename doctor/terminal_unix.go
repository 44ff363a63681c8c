//go:build !windows

package doctor

import (
	"os"
	"os/exec"
)

// resetTerminal undoes whatever raw-mode state an aborted check left
// behind. stty acts on its stdin, so the real terminal must be
// attached.
func resetTerminal() {
	cmd := exec.Command("stty", "sane")
	cmd.Stdin = os.Stdin
	cmd.Run()
}
