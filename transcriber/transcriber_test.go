package transcriber

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestNetworkMetricsSum(t *testing.T) {
	m := &NetworkMetrics{
		ConnWait:   10 * time.Millisecond,
		DNS:        20 * time.Millisecond,
		TCP:        30 * time.Millisecond,
		TLS:        40 * time.Millisecond,
		ReqHeaders: 5 * time.Millisecond,
		ReqBody:    15 * time.Millisecond,
		TTFB:       50 * time.Millisecond,
		Download:   25 * time.Millisecond,
	}
	got := m.Sum()
	want := 195 * time.Millisecond
	if got != want {
		t.Errorf("Sum() = %v, want %v", got, want)
	}
}

func TestConfidenceFromSegments(t *testing.T) {
	if got := confidenceFromSegments(nil); got != 0 {
		t.Errorf("empty segments: confidence = %v, want 0", got)
	}

	segs := []Segment{
		{AvgLogProb: -0.2},
		{AvgLogProb: -0.4},
	}
	want := math.Exp(-0.3)
	if got := confidenceFromSegments(segs); math.Abs(got-want) > 1e-9 {
		t.Errorf("confidence = %v, want %v", got, want)
	}
}

func TestParseVerboseJSON(t *testing.T) {
	body := []byte(`{
		"task": "transcribe",
		"language": "en",
		"duration": 2.1,
		"text": "  hello world  ",
		"segments": [
			{"id": 0, "start": 0.0, "end": 1.0, "text": " hello",
			 "avg_logprob": -0.1, "no_speech_prob": 0.02},
			{"id": 1, "start": 1.0, "end": 2.1, "text": " world",
			 "avg_logprob": -0.3, "no_speech_prob": 0.01}
		]
	}`)

	out, err := parseVerboseJSON(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out.Text != "hello world" {
		t.Errorf("Text = %q, want %q", out.Text, "hello world")
	}
	if out.Language != "en" {
		t.Errorf("Language = %q, want en", out.Language)
	}
	if len(out.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(out.Segments))
	}
	if out.Segments[1].Text != "world" || out.Segments[1].End != 2.1 {
		t.Errorf("segment 1 = %+v", out.Segments[1])
	}
	want := math.Exp(-0.2)
	if math.Abs(out.Confidence-want) > 1e-9 {
		t.Errorf("Confidence = %v, want %v", out.Confidence, want)
	}
}

func TestParseVerboseJSONRejectsGarbage(t *testing.T) {
	if _, err := parseVerboseJSON([]byte("<html>busy</html>")); err == nil {
		t.Error("expected parse error for non-JSON body")
	}
}

func TestResolveCompute(t *testing.T) {
	bigGPU := func() (int, bool) { return 24576, true }
	smallGPU := func() (int, bool) { return 4096, true }
	noGPU := func() (int, bool) { return 0, false }

	cases := []struct {
		name               string
		device, precision  string
		probe              func() (int, bool)
		wantDev, wantPrec  string
	}{
		{"auto big gpu", "auto", "auto", bigGPU, "cuda", "float16"},
		{"auto small gpu", "", "", smallGPU, "cuda", "int8"},
		{"auto no gpu", "auto", "auto", noGPU, "cpu", "int8"},
		{"explicit cpu keeps precision", "cpu", "float16", bigGPU, "cpu", "float16"},
		{"explicit device auto precision", "cuda", "", smallGPU, "cuda", "int8"},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			dev, prec := resolveCompute(tt.device, tt.precision, tt.probe)
			if dev != tt.wantDev || prec != tt.wantPrec {
				t.Errorf("resolveCompute(%q, %q) = (%q, %q), want (%q, %q)",
					tt.device, tt.precision, dev, prec, tt.wantDev, tt.wantPrec)
			}
		})
	}
}

func TestWorkerSerializesJobs(t *testing.T) {
	eng := NewFakeEngine("first")
	eng.SetDelay(30 * time.Millisecond)
	w := NewWorker(eng)

	results := make(chan string, 2)
	w.Submit(Job{Done: func(out *Outcome, err error) {
		if err != nil {
			t.Errorf("job 1: %v", err)
			results <- ""
			return
		}
		results <- out.Text
	}})
	w.Submit(Job{Done: func(out *Outcome, err error) {
		if err != nil {
			t.Errorf("job 2: %v", err)
			results <- ""
			return
		}
		results <- out.Text
	}})

	for i := 0; i < 2; i++ {
		select {
		case <-results:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}
	w.Close()

	if eng.Calls() != 2 {
		t.Errorf("engine calls = %d, want 2", eng.Calls())
	}
	if eng.MaxConcurrent() != 1 {
		t.Errorf("max concurrent inferences = %d, want 1", eng.MaxConcurrent())
	}
}

func TestWorkerCloseUnloads(t *testing.T) {
	eng := NewFakeEngine("x")
	w := NewWorker(eng)
	w.Close()
	if eng.Unloads() != 1 {
		t.Errorf("unloads = %d, want 1", eng.Unloads())
	}
}

func TestWorkerDeliversFailure(t *testing.T) {
	eng := NewFakeEngine("")
	eng.FailWith(&InferenceError{Engine: "fake", Err: errors.New("decode failure")})
	w := NewWorker(eng)
	defer w.Close()

	errs := make(chan error, 1)
	w.Submit(Job{Done: func(out *Outcome, err error) {
		if out != nil {
			t.Error("outcome should be nil on failure")
		}
		errs <- err
	}})

	select {
	case err := <-errs:
		var ie *InferenceError
		if !errors.As(err, &ie) {
			t.Errorf("error %T, want *InferenceError", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for failure")
	}
}

func TestDetectLanguageShortText(t *testing.T) {
	if got := detectLanguage(""); got != "" {
		t.Errorf("empty text: %q, want \"\"", got)
	}
	if got := detectLanguage("hi"); got != "" {
		t.Errorf("short text: %q, want \"\"", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 200); got != "short" {
		t.Errorf("got %q", got)
	}
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	got := truncate(string(long), 200)
	if len(got) != 203 {
		t.Errorf("len = %d, want 203", len(got))
	}
}
