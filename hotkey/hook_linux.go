//go:build linux

package hotkey

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	evKey       = 1
	evKeyUp     = 0
	evKeyDown   = 1
	evKeyRepeat = 2
)

// input_event is 24 bytes on 64-bit Linux:
// timeval (16 bytes) + type (2) + code (2) + value (4)
const inputEventSize = 24

// Linux KEY_* codes from input-event-codes.h.
var linuxKeymap = Keymap{
	"ctrl":  {29, 97},
	"shift": {42, 54},
	"alt":   {56, 100},
	"super": {125, 126},

	"esc": {1}, "1": {2}, "2": {3}, "3": {4}, "4": {5}, "5": {6},
	"6": {7}, "7": {8}, "8": {9}, "9": {10}, "0": {11},
	"minus": {12}, "equal": {13}, "backspace": {14}, "tab": {15},
	"q": {16}, "w": {17}, "e": {18}, "r": {19}, "t": {20}, "y": {21},
	"u": {22}, "i": {23}, "o": {24}, "p": {25},
	"enter": {28},
	"a":     {30}, "s": {31}, "d": {32}, "f": {33}, "g": {34}, "h": {35},
	"j": {36}, "k": {37}, "l": {38}, "semicolon": {39},
	"grave": {41}, "backslash": {43},
	"z": {44}, "x": {45}, "c": {46}, "v": {47}, "b": {48}, "n": {49},
	"m": {50}, "comma": {51}, "period": {52}, "slash": {53},
	"space": {57},
	"f1":    {59}, "f2": {60}, "f3": {61}, "f4": {62}, "f5": {63},
	"f6": {64}, "f7": {65}, "f8": {66}, "f9": {67}, "f10": {68},
	"f11": {87}, "f12": {88},
	"home": {102}, "up": {103}, "pageup": {104}, "left": {105},
	"right": {106}, "end": {107}, "down": {108}, "pagedown": {109},
	"insert": {110}, "delete": {111},
}

// evdevHook reads /dev/input directly. Requires the user to be in the
// 'input' group. Works on X11 and Wayland alike since it sits below
// the display server.
type evdevHook struct {
	files  []*os.File
	events chan KeyEvent
	stop   chan struct{}
	once   sync.Once
}

func NewHook() Hook {
	return &evdevHook{}
}

func (h *evdevHook) Keymap() Keymap { return linuxKeymap }

func (h *evdevHook) Run(emit func(KeyEvent)) error {
	keyboards, err := findKeyboards()
	if err != nil {
		return fmt.Errorf("finding keyboards: %w", err)
	}
	if len(keyboards) == 0 {
		return fmt.Errorf("no keyboard devices found (is user in 'input' group?)")
	}

	h.stop = make(chan struct{})
	h.events = make(chan KeyEvent, 64)

	for _, path := range keyboards {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		h.files = append(h.files, f)
		go h.readEvents(f)
	}

	if len(h.files) == 0 {
		return fmt.Errorf("could not open any keyboard device (run: sudo usermod -aG input $USER, then re-login)")
	}

	// Single dispatch goroutine so emit sees events serially even with
	// several keyboards attached.
	go func() {
		for {
			select {
			case <-h.stop:
				return
			case ev := <-h.events:
				emit(ev)
			}
		}
	}()

	return nil
}

func (h *evdevHook) readEvents(f *os.File) {
	buf := make([]byte, inputEventSize*16)

	for {
		select {
		case <-h.stop:
			return
		default:
		}

		n, err := f.Read(buf)
		if err != nil {
			return
		}

		for i := 0; i+inputEventSize <= n; i += inputEventSize {
			evType := binary.LittleEndian.Uint16(buf[i+16:])
			evCode := binary.LittleEndian.Uint16(buf[i+18:])
			evValue := int32(binary.LittleEndian.Uint32(buf[i+20:]))

			if evType != evKey {
				continue
			}

			var press bool
			switch evValue {
			case evKeyDown, evKeyRepeat:
				press = true
			case evKeyUp:
				press = false
			default:
				continue
			}

			select {
			case h.events <- KeyEvent{Code: evCode, Press: press}:
			case <-h.stop:
				return
			}
		}
	}
}

func (h *evdevHook) Stop() {
	h.once.Do(func() {
		if h.stop != nil {
			close(h.stop)
		}
		for _, f := range h.files {
			f.Close()
		}
	})
}

func findKeyboards() ([]string, error) {
	entries, err := os.ReadDir("/dev/input")
	if err != nil {
		return nil, err
	}

	var keyboards []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		path := filepath.Join("/dev/input", e.Name())
		if isKeyboard(e.Name()) {
			keyboards = append(keyboards, path)
		}
	}
	return keyboards, nil
}

func isKeyboard(eventName string) bool {
	capsPath := filepath.Join("/sys/class/input", eventName, "device", "capabilities", "key")
	data, err := os.ReadFile(capsPath)
	if err != nil {
		return false
	}
	// Real keyboards have long key capability bitmaps
	caps := strings.TrimSpace(string(data))
	return len(caps) > 10
}

// Diagnose checks evdev access and returns a status message.
func Diagnose() (string, error) {
	keyboards, err := findKeyboards()
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	if len(keyboards) == 0 {
		return "", fmt.Errorf("no keyboard devices found (is user in 'input' group?)")
	}

	var opened string
	for _, path := range keyboards {
		f, err := os.Open(path)
		if err == nil {
			f.Close()
			opened = path
			break
		}
	}
	if opened == "" {
		return "", fmt.Errorf("found %d keyboard(s) but cannot open any (run: sudo usermod -aG input $USER)", len(keyboards))
	}

	return fmt.Sprintf("%d keyboard(s) found, opened %s", len(keyboards), opened), nil
}
