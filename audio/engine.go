package audio

import (
	"encoding/binary"
	"sync"
)

// Engine owns the capture stream, the recording ring buffer, and the
// live amplitude cell. One Engine serves the whole process; the ring is
// allocated once and reused across recordings.
//
// The capture callback runs on an OS audio thread. It applies gain,
// appends into the ring, and publishes an amplitude estimate. It never
// allocates, logs, or blocks.
type Engine struct {
	ctx  Context
	rate int // capture rate; the drain converts to CanonicalRate

	ring  *ring
	level levelCell

	mu        sync.Mutex
	capture   CaptureDevice
	capturing bool
}

// NewEngine builds an engine capturing at captureRate with room for
// maxSeconds of audio.
func NewEngine(ctx Context, captureRate, maxSeconds int) *Engine {
	if captureRate <= 0 {
		captureRate = CanonicalRate
	}
	if maxSeconds <= 0 {
		maxSeconds = 30
	}
	return &Engine{
		ctx:  ctx,
		rate: captureRate,
		ring: newRing(captureRate * maxSeconds),
	}
}

// Devices enumerates capture devices.
func (e *Engine) Devices() ([]DeviceInfo, error) {
	return e.ctx.Devices()
}

// Start opens the stream and begins filling the ring. A nil device
// selects the system default. Calling Start while already capturing is
// a no-op.
func (e *Engine) Start(device *DeviceInfo, gain float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.capturing {
		return nil
	}
	if gain <= 0 {
		gain = 1
	}
	e.ring.reset()
	e.level.publish(0)

	capture, err := e.ctx.NewCapture(device, CaptureConfig{
		SampleRate: uint32(e.rate),
		Channels:   1,
	})
	if err != nil {
		return err
	}
	capture.SetCallback(e.captureCallback(gain))
	if err := capture.Start(); err != nil {
		capture.Close()
		return err
	}
	e.capture = capture
	e.capturing = true
	return nil
}

// Stop halts the stream and returns an owned copy of the recording at
// the canonical rate, oldest sample first. The ring is cleared for
// reuse. Returns nil when not capturing.
func (e *Engine) Stop() []float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.capturing {
		return nil
	}
	e.capture.ClearCallback()
	e.capture.Stop()
	e.capture.Close()
	e.capture = nil
	e.capturing = false

	samples := e.ring.drain()
	e.ring.reset()
	e.level.publish(0)

	if e.rate != CanonicalRate && len(samples) > 0 {
		// On resampler failure the native-rate samples go out as-is;
		// a pitch-shifted transcript beats losing the recording.
		if converted, err := Resample(samples, e.rate, CanonicalRate); err == nil {
			samples = converted
		}
	}
	return samples
}

// BufferDuration reports seconds of audio currently held. Safe to call
// from any goroutine while capturing.
func (e *Engine) BufferDuration() float64 {
	return float64(e.ring.size()) / float64(e.rate)
}

// Level reports the most recent amplitude estimate in [0,1].
func (e *Engine) Level() float32 {
	return e.level.value()
}

// Tail copies samples captured since cursor into out for live
// monitoring. Pass 0 on the first call, then the returned cursor.
// Samples are at the capture rate, not the canonical rate.
func (e *Engine) Tail(cursor int64, out []float32) (int64, int) {
	return e.ring.tail(cursor, out)
}

// Capturing reports whether a stream is open.
func (e *Engine) Capturing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.capturing
}

// Close releases the backend context.
func (e *Engine) Close() {
	e.Stop()
	e.ctx.Close()
}

func (e *Engine) captureCallback(gain float64) DataCallback {
	return func(data []byte, frameCount uint32) {
		n := int(frameCount)
		if n*2 > len(data) {
			n = len(data) / 2
		}
		if n == 0 {
			return
		}
		var sum float64
		for i := 0; i < n; i++ {
			s := int16(binary.LittleEndian.Uint16(data[i*2:]))
			v := float64(s) / 32768.0 * gain
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			e.ring.push(float32(v))
			if v < 0 {
				sum -= v
			} else {
				sum += v
			}
		}
		// mean absolute value, scaled so normal speech fills the meter
		amp := sum / float64(n) * 3
		if amp > 1 {
			amp = 1
		}
		e.level.publish(float32(amp))
	}
}
