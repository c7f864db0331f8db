package language

import (
	"strings"

	xlang "golang.org/x/text/language"
)

// Detector estimates the language of a search result from the provider hint
// and the visible text. Implementations must be pure: no network I/O, no
// shared mutable state.
type Detector interface {
	Detect(hint, title, snippet string) string
}

// words maps full language names, which BCP-47 parsing does not accept, to
// ISO 639-1 codes. Covers the languages that actually appear in
// grey-literature SERP payloads.
var words = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"dutch":      "nl",
	"polish":     "pl",
	"swedish":    "sv",
	"danish":     "da",
	"norwegian":  "no",
	"finnish":    "fi",
	"welsh":      "cy",
	"irish":      "ga",
}

// Canonical folds a language hint to its base ISO 639-1 code: "en-GB" and
// "eng" and "English" all become "en". Returns empty string when the hint
// carries no usable signal.
func Canonical(hint string) string {
	trimmed := strings.ToLower(strings.TrimSpace(hint))
	if trimmed == "" {
		return ""
	}
	if code, ok := words[trimmed]; ok {
		return code
	}
	tag, err := xlang.Parse(trimmed)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == xlang.No {
		return ""
	}
	code := base.String()
	if code == "und" {
		return ""
	}
	return code
}

// HintDetector canonicalizes the provider hint and falls back to a fixed
// default. Title and snippet are ignored; content-based detection plugs in
// through the Detector interface without touching extraction.
type HintDetector struct {
	fallback string
}

// NewHintDetector builds the default detector. An empty fallback defaults
// to "en", the grey-literature corpus assumption.
func NewHintDetector(fallback string) HintDetector {
	code := Canonical(fallback)
	if code == "" {
		code = "en"
	}
	return HintDetector{fallback: code}
}

// Detect implements Detector.
func (d HintDetector) Detect(hint, _, _ string) string {
	if code := Canonical(hint); code != "" {
		return code
	}
	return d.fallback
}
