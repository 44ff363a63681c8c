package cue

import "testing"

func maxAbs(samples []int16) int {
	peak := 0
	for _, s := range samples {
		v := int(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}

func TestTickStereoInterleaved(t *testing.T) {
	samples := tick(1000, 0.1, 0.5, 60)

	want := int(sampleRate*0.1) * 2
	if len(samples) != want {
		t.Fatalf("expected %d samples, got %d", want, len(samples))
	}
	for _, k := range []int{50, 500, 2000} {
		if samples[2*k] != samples[2*k+1] {
			t.Fatalf("frame %d: channels differ: %d vs %d", k, samples[2*k], samples[2*k+1])
		}
	}
}

func TestTickEnvelopeDecays(t *testing.T) {
	samples := tick(1000, 0.1, 0.5, 60)

	head := maxAbs(samples[:1764])
	tail := maxAbs(samples[len(samples)-1764:])
	if tail >= head/10 {
		t.Fatalf("tail peak %d not well below head peak %d", tail, head)
	}
}

func TestTickVolumeScales(t *testing.T) {
	loud := maxAbs(tick(1000, 0.05, 1.0, 60))
	quiet := maxAbs(tick(1000, 0.05, 0.2, 60))
	if quiet >= loud {
		t.Fatalf("volume 0.2 peak %d should be below volume 1.0 peak %d", quiet, loud)
	}
}

func TestDoubleBeepHasSilentGap(t *testing.T) {
	samples := doubleBeep(350, 0.08, 0.05, 0.6, 30)

	beepLen := int(sampleRate*0.08) * 2
	gapLen := int(sampleRate*0.05) * 2
	if len(samples) != beepLen*2+gapLen {
		t.Fatalf("expected %d samples, got %d", beepLen*2+gapLen, len(samples))
	}
	if maxAbs(samples[beepLen:beepLen+gapLen]) != 0 {
		t.Fatal("gap between beeps is not silent")
	}
	if maxAbs(samples[beepLen+gapLen:]) == 0 {
		t.Fatal("second beep is silent")
	}
}

func TestPlayDisabledSkipsGeneration(t *testing.T) {
	Configure(false, 0.5)
	defer Configure(true, 0.5)

	Play(Start)

	mu.Lock()
	defer mu.Unlock()
	if ready {
		t.Fatal("disabled play should not synthesize tones")
	}
}
