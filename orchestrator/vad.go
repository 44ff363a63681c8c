package orchestrator

import (
	"encoding/binary"
	"fmt"
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

const (
	vadMode     = 3
	vadFrameMs  = 20
	vadDebounce = 3 // consecutive speech frames to confirm voice
)

// vadProcessor classifies 20 ms PCM frames as speech or not. Input
// arrives in arbitrary chunk sizes; a carry buffer realigns frames.
type vadProcessor struct {
	vad        *webrtcvad.VAD
	rate       int
	frameBytes int

	mu            sync.Mutex
	buf           []byte
	voiceDetected bool
	speechRun     int
	totalFrames   int
	speechFrames  int
	tickTotal     int
	tickSpeech    int
}

func newVADProcessor(rate int) (*vadProcessor, error) {
	switch rate {
	case 8000, 16000, 32000, 48000:
	default:
		return nil, fmt.Errorf("unsupported rate %d Hz", rate)
	}
	v, err := webrtcvad.New()
	if err != nil {
		return nil, err
	}
	if err := v.SetMode(vadMode); err != nil {
		return nil, err
	}
	return &vadProcessor{
		vad:        v,
		rate:       rate,
		frameBytes: rate * vadFrameMs / 1000 * 2,
	}, nil
}

func (p *vadProcessor) Process(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf = append(p.buf, data...)
	for len(p.buf) >= p.frameBytes {
		frame := p.buf[:p.frameBytes]
		p.buf = p.buf[p.frameBytes:]

		active, err := p.vad.Process(p.rate, frame)
		if err != nil {
			continue
		}
		p.totalFrames++
		if active {
			p.speechFrames++
			p.speechRun++
			if p.speechRun >= vadDebounce {
				p.voiceDetected = true
			}
		} else {
			p.speechRun = 0
		}
	}
}

func (p *vadProcessor) VoiceDetected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.voiceDetected
}

const speechThreshold = 0.10 // share of frames that must be speech

// HasSpeechTick reports whether speech dominated the frames processed
// since the previous call.
func (p *vadProcessor) HasSpeechTick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := p.totalFrames - p.tickTotal
	s := p.speechFrames - p.tickSpeech
	p.tickTotal, p.tickSpeech = p.totalFrames, p.speechFrames
	if t == 0 {
		return false
	}
	return float64(s)/float64(t) >= speechThreshold
}

func (p *vadProcessor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf = p.buf[:0]
	p.voiceDetected = false
	p.speechRun = 0
}

// pcmBytes converts engine samples to the little-endian 16-bit PCM the
// classifier expects, reusing out.
func pcmBytes(samples []float32, out []byte) []byte {
	for i, v := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v*32767)))
	}
	return out[:len(samples)*2]
}
