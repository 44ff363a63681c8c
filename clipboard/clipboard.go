// Package clipboard wraps the system clipboard behind one small
// surface so paste injection and diagnostics share a single
// dependency seam.
package clipboard

import cb "github.com/atotto/clipboard"

// Available reports whether a clipboard backend exists at all. On
// Linux this means one of xclip, xsel or wl-clipboard is installed;
// without it Read and Copy fail on every call.
func Available() bool {
	return !cb.Unsupported
}

func Read() (string, error) {
	return cb.ReadAll()
}

func Copy(text string) error {
	return cb.WriteAll(text)
}
