//go:build windows

package hotkey

// Win32 VK_* virtual keycodes. Generic and sided modifier codes are
// both listed; which one arrives depends on the hook layer.
var nativeKeymap = Keymap{
	"ctrl":  {0x11, 0xA2, 0xA3},
	"shift": {0x10, 0xA0, 0xA1},
	"alt":   {0x12, 0xA4, 0xA5},
	"super": {0x5B, 0x5C},

	"a": {0x41}, "b": {0x42}, "c": {0x43}, "d": {0x44}, "e": {0x45},
	"f": {0x46}, "g": {0x47}, "h": {0x48}, "i": {0x49}, "j": {0x4A},
	"k": {0x4B}, "l": {0x4C}, "m": {0x4D}, "n": {0x4E}, "o": {0x4F},
	"p": {0x50}, "q": {0x51}, "r": {0x52}, "s": {0x53}, "t": {0x54},
	"u": {0x55}, "v": {0x56}, "w": {0x57}, "x": {0x58}, "y": {0x59},
	"z": {0x5A},
	"0": {0x30}, "1": {0x31}, "2": {0x32}, "3": {0x33}, "4": {0x34},
	"5": {0x35}, "6": {0x36}, "7": {0x37}, "8": {0x38}, "9": {0x39},
	"space": {0x20}, "enter": {0x0D}, "tab": {0x09}, "esc": {0x1B},
	"backspace": {0x08}, "delete": {0x2E}, "insert": {0x2D},
	"home": {0x24}, "end": {0x23}, "pageup": {0x21}, "pagedown": {0x22},
	"left": {0x25}, "up": {0x26}, "right": {0x27}, "down": {0x28},
	"minus": {0xBD}, "equal": {0xBB}, "comma": {0xBC}, "period": {0xBE},
	"semicolon": {0xBA}, "slash": {0xBF}, "backslash": {0xDC},
	"grave": {0xC0},
	"f1":    {0x70}, "f2": {0x71}, "f3": {0x72}, "f4": {0x73},
	"f5": {0x74}, "f6": {0x75}, "f7": {0x76}, "f8": {0x77},
	"f9": {0x78}, "f10": {0x79}, "f11": {0x7A}, "f12": {0x7B},
}
