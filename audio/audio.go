package audio

import (
	"errors"
	"strings"
)

const (
	WAVHeaderSize = 44

	// CanonicalRate is the pipeline sample rate. Capture may run at a
	// device-preferred rate; everything downstream of the drain is 16 kHz
	// mono.
	CanonicalRate = 16000

	// ChunkMs is the capture callback period requested from backends.
	ChunkMs = 100
)

var ErrNoDevice = errors.New("no capture devices found")

// DeviceError wraps a backend failure while enumerating, opening or
// starting a capture stream.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return "audio device " + e.Op + ": " + e.Err.Error()
}

func (e *DeviceError) Unwrap() error { return e.Err }

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID         string // opaque platform-specific identifier
	Name       string
	Channels   int // 0 = unknown
	SampleRate int // native rate, 0 = unknown
	Default    bool
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
}
