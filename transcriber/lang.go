package transcriber

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
)

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// Detection set kept small: build time and memory grow per language,
// and dictation overwhelmingly lands in these.
var detectLanguages = []lingua.Language{
	lingua.English, lingua.German, lingua.French, lingua.Spanish,
	lingua.Italian, lingua.Portuguese, lingua.Dutch, lingua.Russian,
	lingua.Japanese, lingua.Chinese, lingua.Korean,
}

// detectLanguage guesses the transcript language when the engine does
// not report one. Returns "" for text too short to call.
func detectLanguage(text string) string {
	if len(strings.TrimSpace(text)) < 8 {
		return ""
	}
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(detectLanguages...).
			Build()
	})
	lang, ok := detector.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}
