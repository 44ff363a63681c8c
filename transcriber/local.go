package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"murmur/config"
	"murmur/encoder"
	"murmur/log"
)

// ggml file names per model alias (whisper.cpp naming).
var modelFiles = map[string]string{
	"tiny":     "ggml-tiny.bin",
	"base":     "ggml-base.bin",
	"small":    "ggml-small.bin",
	"medium":   "ggml-medium.bin",
	"large":    "ggml-large-v3.bin",
	"large-v3": "ggml-large-v3.bin",
	"turbo":    "ggml-large-v3-turbo.bin",
}

type loadedHandle struct {
	model     string
	device    string
	precision string
}

// Local runs whisper.cpp's whisper-server as a child process and
// transcribes by uploading WAV segments to it. With server_url set in
// config it talks to an externally managed server instead.
type Local struct {
	mu        sync.Mutex
	model     string
	device    string
	precision string
	external  string

	client *TracedClient

	resolved     bool
	resDevice    string
	resPrecision string

	proc   *exec.Cmd
	url    string
	loaded loadedHandle
}

func NewLocal(cfg config.Transcription) *Local {
	model := cfg.Model
	if model == "" {
		model = "turbo"
	}
	return &Local{
		model:     model,
		device:    cfg.Device,
		precision: cfg.Precision,
		external:  cfg.ServerURL,
		client:    NewTracedClient(),
	}
}

func (l *Local) Name() string { return "local" }

// EnsureLoaded is idempotent while the model/device/precision triple is
// unchanged; otherwise the previous server is torn down first.
func (l *Local) EnsureLoaded(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ensureLoadedLocked(ctx)
}

func (l *Local) ensureLoadedLocked(ctx context.Context) error {
	dev, prec := l.resolveCompute()
	want := loadedHandle{model: l.model, device: dev, precision: prec}
	if l.loaded == want && l.url != "" {
		return nil
	}
	l.unloadLocked()

	start := time.Now()
	if l.external != "" {
		l.url = strings.TrimRight(l.external, "/")
		if err := l.waitReady(ctx, 10*time.Second); err != nil {
			l.url = ""
			return &ModelLoadError{Model: l.model, Err: err}
		}
	} else if err := l.spawnLocked(ctx, want); err != nil {
		return &ModelLoadError{Model: l.model, Err: err}
	}
	l.loaded = want
	log.ModelLoad("local", want.model, want.device, want.precision,
		float64(time.Since(start).Milliseconds()))
	return nil
}

func (l *Local) spawnLocked(ctx context.Context, want loadedHandle) error {
	binary, err := exec.LookPath("whisper-server")
	if err != nil {
		return fmt.Errorf("whisper-server not found in PATH: %w", err)
	}
	modelPath, err := modelPathFor(want)
	if err != nil {
		return err
	}
	port, err := freePort()
	if err != nil {
		return err
	}

	args := []string{
		"-m", modelPath,
		"--host", "127.0.0.1",
		"--port", strconv.Itoa(port),
		"-t", strconv.Itoa(runtime.NumCPU()),
	}
	if want.device == "cpu" {
		args = append(args, "--no-gpu")
	}
	cmd := exec.Command(binary, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start whisper-server: %w", err)
	}
	l.proc = cmd
	l.url = fmt.Sprintf("http://127.0.0.1:%d", port)

	// The server binds its socket only after the model is in memory, so
	// a large model on CPU can take a while to answer.
	if err := l.waitReady(ctx, 90*time.Second); err != nil {
		l.unloadLocked()
		return err
	}
	return nil
}

func (l *Local) waitReady(ctx context.Context, limit time.Duration) error {
	deadline := time.Now().Add(limit)
	probe := &http.Client{Timeout: 2 * time.Second}
	var lastErr error
	for {
		resp, err := probe.Get(l.url + "/")
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if resp.StatusCode < http.StatusInternalServerError {
				return nil
			}
			lastErr = fmt.Errorf("server status %d", resp.StatusCode)
		} else {
			lastErr = err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("server not ready: %w", lastErr)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func (l *Local) Transcribe(ctx context.Context, samples []float32, language string) (*Outcome, error) {
	start := time.Now()
	l.mu.Lock()
	if err := l.ensureLoadedLocked(ctx); err != nil {
		l.mu.Unlock()
		return nil, err
	}
	url := l.url
	l.mu.Unlock()

	wav := encoder.WAV(samples)
	fields := map[string]string{
		"response_format": "verbose_json",
		"temperature":     "0.0",
	}
	if language != "" && language != "auto" {
		fields["language"] = language
	}

	resp, err := l.client.PostMultipart(ctx, url+"/inference", fields, "file", "audio.wav", wav)
	if err != nil {
		return nil, &InferenceError{Engine: "local", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &InferenceError{Engine: "local",
			Err: fmt.Errorf("server status %d: %s", resp.StatusCode, truncate(string(resp.Body), 200))}
	}
	out, err := parseVerboseJSON(resp.Body)
	if err != nil {
		return nil, &InferenceError{Engine: "local", Err: err}
	}
	out.AudioSeconds = float64(len(samples)) / float64(encoder.SampleRate)
	out.ProcessSeconds = time.Since(start).Seconds()
	if out.Language == "" || out.Language == "auto" {
		out.Language = language
	}
	if out.Language == "" || out.Language == "auto" {
		out.Language = detectLanguage(out.Text)
	}

	m := resp.Metrics
	log.TranscriptionMetrics(log.Metrics{
		AudioLengthS: out.AudioSeconds,
		ProcessS:     out.ProcessSeconds,
		RawSizeKB:    float64(len(wav)) / 1024,
		DNSTimeMs:    float64(m.DNS.Milliseconds()),
		TLSTimeMs:    float64(m.TLS.Milliseconds()),
		TTFBMs:       float64(m.TTFB.Milliseconds()),
		TotalTimeMs:  float64(m.Total.Milliseconds()),
	}, "local", l.model, "wav", m.ConnReused, m.TLSProtocol)
	return out, nil
}

func (l *Local) Unload() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unloadLocked()
}

func (l *Local) unloadLocked() {
	if l.proc != nil {
		l.proc.Process.Kill()
		l.proc.Wait()
		l.proc = nil
	}
	l.url = ""
	l.loaded = loadedHandle{}
}

func (l *Local) resolveCompute() (string, string) {
	if !l.resolved {
		l.resDevice, l.resPrecision = resolveCompute(l.device, l.precision, probeGPUMemory)
		l.resolved = true
	}
	return l.resDevice, l.resPrecision
}

// resolveCompute picks device and precision once. Auto policy: a GPU
// with at least 8 GiB runs float16, a smaller one 8-bit weights, no GPU
// means CPU with 8-bit weights.
func resolveCompute(device, precision string, probe func() (int, bool)) (string, string) {
	dev := device
	if dev == "" || dev == "auto" {
		if _, ok := probe(); ok {
			dev = "cuda"
		} else {
			dev = "cpu"
		}
	}
	prec := precision
	if prec == "" || prec == "auto" {
		prec = "int8"
		if dev == "cuda" {
			if mem, ok := probe(); ok && mem >= 8192 {
				prec = "float16"
			}
		}
	}
	return dev, prec
}

var gpuProbe struct {
	once sync.Once
	mem  int
	ok   bool
}

// probeGPUMemory asks nvidia-smi for the first GPU's total memory in
// MiB. Probed once per process.
func probeGPUMemory() (int, bool) {
	gpuProbe.once.Do(func() {
		out, err := exec.Command("nvidia-smi",
			"--query-gpu=memory.total", "--format=csv,noheader,nounits").Output()
		if err != nil {
			return
		}
		line := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
		mem, err := strconv.Atoi(line)
		if err != nil {
			return
		}
		gpuProbe.mem, gpuProbe.ok = mem, true
	})
	return gpuProbe.mem, gpuProbe.ok
}

// modelPathFor resolves the ggml file for a handle. 8-bit precision
// prefers the q8_0 variant but falls back to the full file so a missing
// quantized download does not block transcription.
func modelPathFor(want loadedHandle) (string, error) {
	base, ok := modelFiles[want.model]
	if !ok {
		return "", fmt.Errorf("unknown model %q", want.model)
	}
	dir, err := config.ModelDir()
	if err != nil {
		return "", err
	}
	if want.precision == "int8" {
		q := filepath.Join(dir, strings.TrimSuffix(base, ".bin")+"-q8_0.bin")
		if _, err := os.Stat(q); err == nil {
			return q, nil
		}
	}
	path := filepath.Join(dir, base)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("model file %s not found (fetch it with murmur -download %s)", path, want.model)
	}
	return path, nil
}

type verboseResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Text         string  `json:"text"`
		Start        float64 `json:"start"`
		End          float64 `json:"end"`
		AvgLogProb   float64 `json:"avg_logprob"`
		NoSpeechProb float64 `json:"no_speech_prob"`
	} `json:"segments"`
}

func parseVerboseJSON(body []byte) (*Outcome, error) {
	var vr verboseResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	out := &Outcome{
		Text:     strings.TrimSpace(vr.Text),
		Language: vr.Language,
	}
	for _, s := range vr.Segments {
		out.Segments = append(out.Segments, Segment{
			Text:         strings.TrimSpace(s.Text),
			Start:        s.Start,
			End:          s.End,
			AvgLogProb:   s.AvgLogProb,
			NoSpeechProb: s.NoSpeechProb,
		})
	}
	out.Confidence = confidenceFromSegments(out.Segments)
	return out, nil
}

func freePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
