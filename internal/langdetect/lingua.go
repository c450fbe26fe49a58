// Package langdetect resolves the "auto" source language from extracted text.
package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

// minLetters is the shortest sample worth handing to the detector.
const minLetters = 6

// candidates are the languages commonly found in documents sent for Arabic
// script translation.
var candidates = []lingua.Language{
	lingua.English,
	lingua.French,
	lingua.German,
	lingua.Spanish,
	lingua.Portuguese,
	lingua.Italian,
	lingua.Dutch,
	lingua.Russian,
	lingua.Turkish,
	lingua.Chinese,
	lingua.Japanese,
	lingua.Korean,
	lingua.Arabic,
	lingua.Persian,
	lingua.Urdu,
	lingua.Hebrew,
	lingua.Hindi,
	lingua.Indonesian,
}

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// DetectISO6391 returns the ISO 639-1 code of the dominant language in text,
// or "" when the sample is too short or ambiguous.
func DetectISO6391(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return ""
	}

	letterCount := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letterCount++
		}
	}
	if letterCount < minLetters {
		return ""
	}

	language, exists := getDetector().DetectLanguageOf(sample)
	if !exists {
		return ""
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

// DetectOrDefault joins the samples, detects their language and falls back to
// def when nothing conclusive is found.
func DetectOrDefault(samples []string, def string) string {
	var b strings.Builder
	for _, s := range samples {
		if b.Len() > 4000 {
			break
		}
		b.WriteString(s)
		b.WriteByte(' ')
	}
	if code := DetectISO6391(b.String()); code != "" {
		return code
	}
	return def
}

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(candidates...).
			WithMinimumRelativeDistance(0.1).
			Build()
	})
	return detector
}
