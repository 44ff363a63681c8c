//go:build !linux

package cue

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"murmur/log"
)

var (
	ctxOnce  sync.Once
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device

	startBytes []byte
	stopBytes  []byte
	errorBytes []byte

	// Playback state - accessed atomically from callback
	playBuf atomic.Pointer[[]byte]
	playPos atomic.Uint32
	playMu  sync.Mutex
)

func generate(vol float64) {
	ctxOnce.Do(func() {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			log.Warnf("audio cues unavailable: %v", err)
			return
		}
		malgoCtx = ctx
		if err := initDevice(); err != nil {
			log.Warnf("audio cues unavailable: %v", err)
			malgoCtx.Uninit()
			malgoCtx = nil
		}
	})
	startBytes = toBytes(tick(startFreq, 0.15, vol, startDecay))
	stopBytes = toBytes(tick(stopFreq, 0.2, vol, stopDecay))
	errorBytes = toBytes(doubleBeep(errorFreq, 0.08, 0.05, vol*1.2, errorDecay))
}

func initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 2
	config.SampleRate = sampleRate

	callbacks := malgo.DeviceCallbacks{
		Data: dataCallback,
	}

	var err error
	device, err = malgo.InitDevice(malgoCtx.Context, config, callbacks)
	return err
}

func dataCallback(pOutput, _ []byte, frameCount uint32) {
	samples := playBuf.Load()
	if samples == nil || len(*samples) == 0 {
		for i := range pOutput {
			pOutput[i] = 0
		}
		return
	}

	pos := playPos.Load()
	total := uint32(len(*samples))
	remaining := total - pos

	if remaining == 0 {
		playBuf.Store(nil)
		for i := range pOutput {
			pOutput[i] = 0
		}
		return
	}

	n := uint32(len(pOutput))
	if n > remaining {
		n = remaining
	}

	copy(pOutput[:n], (*samples)[pos:pos+n])
	playPos.Store(pos + n)

	for i := n; i < uint32(len(pOutput)); i++ {
		pOutput[i] = 0
	}
}

func play(e Event) {
	switch e {
	case Start:
		playBytes(startBytes)
	case Stop:
		playBytes(stopBytes)
	case Error:
		playBytes(errorBytes)
	}
}

func playBytes(samples []byte) {
	if malgoCtx == nil || len(samples) == 0 {
		return
	}

	playMu.Lock()
	defer playMu.Unlock()

	if device == nil {
		return
	}

	// Stop first so a new cue replaces a still-playing one cleanly
	device.Stop()

	playPos.Store(0)
	playBuf.Store(&samples)

	if err := device.Start(); err != nil {
		// Recreate the device (handles macOS sleep/wake)
		device.Uninit()
		if err := initDevice(); err != nil {
			playBuf.Store(nil)
			return
		}
		if err := device.Start(); err != nil {
			playBuf.Store(nil)
			return
		}
	}
}

func toBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	return buf
}
