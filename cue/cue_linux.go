//go:build linux

package cue

import (
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"

	"murmur/log"
)

var (
	clientOnce  sync.Once
	pulseClient *pulse.Client

	startSamples []int16
	stopSamples  []int16
	errorSamples []int16
)

func generate(vol float64) {
	clientOnce.Do(func() {
		c, err := pulse.NewClient(pulse.ClientApplicationName("murmur"))
		if err != nil {
			log.Warnf("audio cues unavailable: %v", err)
			return
		}
		pulseClient = c
	})
	startSamples = tick(startFreq, 0.15, vol, startDecay)
	stopSamples = tick(stopFreq, 0.2, vol, stopDecay)
	errorSamples = doubleBeep(errorFreq, 0.08, 0.05, vol*1.2, errorDecay)
}

func play(e Event) {
	var samples []int16
	switch e {
	case Start:
		samples = startSamples
	case Stop:
		samples = stopSamples
	case Error:
		samples = errorSamples
	}
	go playSamples(samples)
}

func playSamples(samples []int16) {
	if pulseClient == nil || len(samples) == 0 {
		return
	}
	pos := 0
	reader := pulse.Int16Reader(func(out []int16) (int, error) {
		if pos >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(out, samples[pos:])
		pos += n
		return n, nil
	})
	stream, err := pulseClient.NewPlayback(reader,
		pulse.PlaybackStereo,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(c *proto.CreatePlaybackStream) {
			c.ChannelVolumes = proto.ChannelVolumes{proto.VolumeNorm, proto.VolumeNorm}
		}),
	)
	if err != nil {
		log.Warnf("cue playback: %v", err)
		return
	}
	stream.Start()
	stream.Drain()
	stream.Stop()
	stream.Close()
}
