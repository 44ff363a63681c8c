package encoder

import (
	"bytes"
	"io"
	"testing"

	"github.com/mewkiz/flac"
)

// rampSamples builds a deterministic non-silent signal so compression
// has something to chew on.
func rampSamples(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(i%2000 - 1000)
	}
	return out
}

func decodeAll(t *testing.T, data []byte) (*flac.Stream, []int32) {
	t.Helper()
	stream, err := flac.Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parsing encoded stream: %v", err)
	}
	var decoded []int32
	for {
		f, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("decoding frame: %v", err)
		}
		decoded = append(decoded, f.Subframes[0].Samples...)
	}
	return stream, decoded
}

func TestFlacStreamRoundTrip(t *testing.T) {
	in := rampSamples(BlockSize*2 + BlockSize/3)

	enc, err := NewFlac()
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	var fed uint64
	for i := 0; i < len(in); i += BlockSize {
		end := i + BlockSize
		if end > len(in) {
			end = len(in)
		}
		if err := enc.EncodeBlock(in[i:end]); err != nil {
			t.Fatalf("EncodeBlock at offset %d: %v", i, err)
		}
		fed += uint64(end - i)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if enc.TotalFrames() != fed {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), fed)
	}

	out := enc.Bytes()
	if len(out) < 4 || string(out[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}

	stream, decoded := decodeAll(t, out)
	if stream.Info.SampleRate != SampleRate {
		t.Errorf("decoded rate = %d, want %d", stream.Info.SampleRate, SampleRate)
	}
	if stream.Info.NChannels != Channels {
		t.Errorf("decoded channels = %d, want %d", stream.Info.NChannels, Channels)
	}
	if stream.Info.BitsPerSample != BitsPerSample {
		t.Errorf("decoded bits = %d, want %d", stream.Info.BitsPerSample, BitsPerSample)
	}
	if len(decoded) != len(in) {
		t.Fatalf("decoded %d samples, want %d", len(decoded), len(in))
	}
	// Verbatim prediction keeps the PCM bit-exact.
	for i, want := range in {
		if decoded[i] != int32(want) {
			t.Fatalf("sample %d = %d, want %d", i, decoded[i], want)
		}
	}
}

func TestFlacEncoderEmpty(t *testing.T) {
	enc, err := NewFlac()
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close on empty encoder: %v", err)
	}
	if enc.TotalFrames() != 0 {
		t.Errorf("TotalFrames = %d, want 0", enc.TotalFrames())
	}
	if len(enc.Bytes()) == 0 {
		t.Error("expected stream header even with no frames")
	}
}

func TestFLACOneShot(t *testing.T) {
	samples := make([]float32, BlockSize+BlockSize/3)
	for i := range samples {
		samples[i] = float32(i%200-100) / 400
	}
	out, err := FLAC(samples)
	if err != nil {
		t.Fatalf("FLAC: %v", err)
	}
	_, decoded := decodeAll(t, out)
	if len(decoded) != len(samples) {
		t.Errorf("decoded %d samples, want %d", len(decoded), len(samples))
	}
}
