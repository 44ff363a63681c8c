//go:build darwin

package hotkey

// Carbon kVK_* virtual keycodes.
var nativeKeymap = Keymap{
	"ctrl":  {0x3B, 0x3E},
	"shift": {0x38, 0x3C},
	"alt":   {0x3A, 0x3D},
	"super": {0x37, 0x36},

	"a": {0x00}, "s": {0x01}, "d": {0x02}, "f": {0x03}, "h": {0x04},
	"g": {0x05}, "z": {0x06}, "x": {0x07}, "c": {0x08}, "v": {0x09},
	"b": {0x0B}, "q": {0x0C}, "w": {0x0D}, "e": {0x0E}, "r": {0x0F},
	"y": {0x10}, "t": {0x11},
	"1": {0x12}, "2": {0x13}, "3": {0x14}, "4": {0x15}, "6": {0x16},
	"5": {0x17}, "equal": {0x18}, "9": {0x19}, "7": {0x1A},
	"minus": {0x1B}, "8": {0x1C}, "0": {0x1D},
	"o": {0x1F}, "u": {0x20}, "i": {0x22}, "p": {0x23},
	"enter": {0x24}, "l": {0x25}, "j": {0x26}, "k": {0x28},
	"semicolon": {0x29}, "backslash": {0x2A}, "comma": {0x2B},
	"slash": {0x2C}, "n": {0x2D}, "m": {0x2E}, "period": {0x2F},
	"tab": {0x30}, "space": {0x31}, "grave": {0x32},
	"backspace": {0x33}, "esc": {0x35},
	"f1": {0x7A}, "f2": {0x78}, "f3": {0x63}, "f4": {0x76},
	"f5": {0x60}, "f6": {0x61}, "f7": {0x62}, "f8": {0x64},
	"f9": {0x65}, "f10": {0x6D}, "f11": {0x67}, "f12": {0x6F},
	"home": {0x73}, "pageup": {0x74}, "delete": {0x75},
	"end": {0x77}, "pagedown": {0x79},
	"left": {0x7B}, "right": {0x7C}, "down": {0x7D}, "up": {0x7E},
}
