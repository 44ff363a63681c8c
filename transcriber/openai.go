package transcriber

import (
	"bytes"
	"context"
	"math"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"murmur/encoder"
	"murmur/log"
)

// localOnlyModels are ggml aliases with no hosted equivalent; the
// hosted default is used instead.
var localOnlyModels = map[string]bool{
	"tiny": true, "base": true, "small": true, "medium": true,
	"large": true, "large-v3": true, "turbo": true,
}

// OpenAI transcribes through the hosted API. Segments are uploaded as
// FLAC, which halves upload time over WAV without losing signal.
type OpenAI struct {
	client openai.Client
	model  string
}

func NewOpenAI(apiKey, model string) *OpenAI {
	if model == "" || localOnlyModels[model] {
		model = "gpt-4o-transcribe"
	}
	return &OpenAI{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (o *OpenAI) Name() string { return "openai" }

// EnsureLoaded is a no-op: the model lives on the remote side.
func (o *OpenAI) EnsureLoaded(ctx context.Context) error { return nil }

func (o *OpenAI) Unload() {}

func (o *OpenAI) Transcribe(ctx context.Context, samples []float32, language string) (*Outcome, error) {
	start := time.Now()

	encodeStart := time.Now()
	flacData, err := encoder.FLAC(samples)
	if err != nil {
		return nil, &InferenceError{Engine: "openai", Err: err}
	}
	encodeMs := float64(time.Since(encodeStart).Milliseconds())

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(flacData), "audio.flac", "audio/flac"),
		Model: openai.AudioModel(o.model),
	}
	if language != "" && language != "auto" {
		params.Language = openai.String(language)
	}
	if strings.HasPrefix(o.model, "gpt-4o") {
		params.Include = []openai.TranscriptionInclude{openai.TranscriptionIncludeLogprobs}
	}

	resp, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, &InferenceError{Engine: "openai", Err: err}
	}

	out := &Outcome{
		Text:           strings.TrimSpace(resp.Text),
		Language:       language,
		Confidence:     confidenceFromLogprobs(resp.Logprobs),
		AudioSeconds:   float64(len(samples)) / float64(encoder.SampleRate),
		ProcessSeconds: time.Since(start).Seconds(),
	}
	if out.Language == "" || out.Language == "auto" {
		out.Language = detectLanguage(out.Text)
	}

	rawKB := float64(len(samples)*2) / 1024
	flacKB := float64(len(flacData)) / 1024
	log.TranscriptionMetrics(log.Metrics{
		AudioLengthS:     out.AudioSeconds,
		ProcessS:         out.ProcessSeconds,
		RawSizeKB:        rawKB,
		CompressedSizeKB: flacKB,
		CompressionPct:   (1 - flacKB/rawKB) * 100,
		EncodeTimeMs:     encodeMs,
		TotalTimeMs:      float64(time.Since(start).Milliseconds()),
	}, "openai", o.model, "flac", false, "")
	return out, nil
}

func confidenceFromLogprobs(lps []openai.TranscriptionLogprob) float64 {
	if len(lps) == 0 {
		return 0
	}
	var sum float64
	for _, lp := range lps {
		sum += lp.Logprob
	}
	return math.Exp(sum / float64(len(lps)))
}
