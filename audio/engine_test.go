package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func pcmBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}

func TestStopWhileIdleReturnsEmpty(t *testing.T) {
	e := NewEngine(NewFakeContextFromPCM(nil, false), CanonicalRate, 1)
	if got := e.Stop(); len(got) != 0 {
		t.Errorf("Stop while idle returned %d samples, want 0", len(got))
	}
}

func TestStartStopDrainsCapturedAudio(t *testing.T) {
	src := []int16{0, 8192, -8192, 16384, -16384, 32767}
	ctx := NewFakeContextFromPCM(pcmBytes(src), false)
	e := NewEngine(ctx, CanonicalRate, 1)

	if err := e.Start(nil, 1.0); err != nil {
		t.Fatal(err)
	}
	got := e.Stop()

	if len(got) < len(src) {
		t.Fatalf("drained %d samples, want at least %d", len(got), len(src))
	}
	for i, s := range src {
		want := float32(float64(s) / 32768.0)
		if math.Abs(float64(got[i]-want)) > 1e-6 {
			t.Errorf("sample %d = %v, want %v", i, got[i], want)
		}
	}
	// the fake pads with silence after the payload
	for i := len(src); i < len(got); i++ {
		if got[i] != 0 {
			t.Fatalf("expected silence padding at %d, got %v", i, got[i])
		}
	}
}

func TestStartWhileCapturingIsNoOp(t *testing.T) {
	src := []int16{1000, 2000, 3000}
	ctx := NewFakeContextFromPCM(pcmBytes(src), false)
	e := NewEngine(ctx, CanonicalRate, 1)

	if err := e.Start(nil, 1.0); err != nil {
		t.Fatal(err)
	}
	first := ctx.Capture()
	if err := e.Start(nil, 1.0); err != nil {
		t.Fatal(err)
	}
	if ctx.Capture() != first {
		t.Error("second Start opened a new capture device")
	}
	if !e.Capturing() {
		t.Error("engine should still be capturing")
	}
	got := e.Stop()
	if len(got) < len(src) {
		t.Errorf("drained %d samples, want at least %d", len(got), len(src))
	}
	// the buffer was not cleared by the second Start
	if got[0] != float32(1000)/32768.0 {
		t.Errorf("first sample = %v, want %v", got[0], float32(1000)/32768.0)
	}
}

func TestStopClearsBufferForReuse(t *testing.T) {
	ctx := NewFakeContextFromPCM(pcmBytes([]int16{5000, 5000}), false)
	e := NewEngine(ctx, CanonicalRate, 1)

	if err := e.Start(nil, 1.0); err != nil {
		t.Fatal(err)
	}
	if got := e.Stop(); len(got) == 0 {
		t.Fatal("first recording empty")
	}
	if d := e.BufferDuration(); d != 0 {
		t.Errorf("buffer duration after Stop = %v, want 0", d)
	}
	if l := e.Level(); l != 0 {
		t.Errorf("level after Stop = %v, want 0", l)
	}

	// engine stays usable
	if err := e.Start(nil, 1.0); err != nil {
		t.Fatal(err)
	}
	if got := e.Stop(); len(got) == 0 {
		t.Fatal("second recording empty")
	}
}

func TestCallbackGainAndClamp(t *testing.T) {
	e := NewEngine(NewFakeContextFromPCM(nil, false), CanonicalRate, 1)
	cb := e.captureCallback(2.0)

	cb(pcmBytes([]int16{8192, 30000, -30000}), 3)

	got := e.ring.drain()
	if len(got) != 3 {
		t.Fatalf("ring holds %d samples, want 3", len(got))
	}
	if want := float32(8192) / 32768.0 * 2; math.Abs(float64(got[0]-want)) > 1e-6 {
		t.Errorf("gained sample = %v, want %v", got[0], want)
	}
	if got[1] != 1 {
		t.Errorf("positive clip = %v, want 1", got[1])
	}
	if got[2] != -1 {
		t.Errorf("negative clip = %v, want -1", got[2])
	}
}

func TestCallbackAmplitude(t *testing.T) {
	e := NewEngine(NewFakeContextFromPCM(nil, false), CanonicalRate, 1)
	cb := e.captureCallback(1.0)

	// constant 0.1 magnitude: mean abs 0.1, scaled x3 = 0.3
	quarter := int16(3277)
	cb(pcmBytes([]int16{quarter, -quarter, quarter, -quarter}), 4)
	if l := e.Level(); math.Abs(float64(l)-0.3) > 0.01 {
		t.Errorf("level = %v, want ~0.3", l)
	}

	// loud input clamps to 1
	cb(pcmBytes([]int16{32000, -32000, 32000, -32000}), 4)
	if l := e.Level(); l != 1 {
		t.Errorf("level = %v, want 1", l)
	}

	// silence drops it back down (last write wins)
	cb(pcmBytes([]int16{0, 0, 0, 0}), 4)
	if l := e.Level(); l != 0 {
		t.Errorf("level = %v, want 0", l)
	}
}

func TestBufferDurationWhileCapturing(t *testing.T) {
	e := NewEngine(NewFakeContextFromPCM(nil, false), CanonicalRate, 2)
	cb := e.captureCallback(1.0)

	cb(pcmBytes(make([]int16, CanonicalRate/2)), uint32(CanonicalRate/2))
	if d := e.BufferDuration(); math.Abs(d-0.5) > 1e-9 {
		t.Errorf("duration = %v, want 0.5", d)
	}
}

func TestResamplePassthrough(t *testing.T) {
	in := []float32{0.1, -0.2, 0.3}
	out, err := Resample(in, 16000, 16000)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	if out, err = Resample(nil, 48000, 16000); err != nil || len(out) != 0 {
		t.Errorf("empty input: got %d samples, err %v", len(out), err)
	}
}
