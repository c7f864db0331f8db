package extract

import (
	"encoding/json"
	"strings"

	"greylit/internal/language"
	"greylit/internal/store"
	"greylit/internal/textutil"
)

// Metadata is the extraction output for one raw result.
type Metadata struct {
	Title             string
	Snippet           string
	FileType          string
	ContentType       string
	EstimatedLanguage string
	QualityScore      int
	Extra             map[string]string
}

// Extractor derives metadata from raw results.
type Extractor struct {
	detector language.Detector
}

// New builds an extractor around the given language detector. A nil detector
// uses the hint detector with the corpus default.
func New(detector language.Detector) *Extractor {
	if detector == nil {
		detector = language.NewHintDetector("")
	}
	return &Extractor{detector: detector}
}

// Extract derives metadata for one raw result. Malformed URLs, payloads, or
// markup yield defaults instead of errors.
func (e *Extractor) Extract(raw *store.RawResult) Metadata {
	meta := Metadata{
		FileType:    DefaultFileType,
		ContentType: contentTypes[DefaultFileType],
	}
	if raw == nil {
		meta.EstimatedLanguage = e.detector.Detect("", "", "")
		return meta
	}

	meta.Title = textutil.StripHTML(raw.Title)
	meta.Snippet = textutil.StripHTML(raw.Snippet)

	recognized := false
	if ext := fileExtension(raw.URL); ext != "" {
		if fileType, ok := fileTypes[ext]; ok {
			meta.FileType = fileType
			meta.ContentType = contentTypes[fileType]
			recognized = true
		} else {
			meta.ContentType = ContentTypeUnknown
			meta.Extra = setExtra(meta.Extra, "url_extension", ext)
		}
	}

	hint := payloadHint(raw.RawPayload)
	if hint != "" {
		meta.Extra = setExtra(meta.Extra, "language_hint", hint)
	}
	meta.EstimatedLanguage = e.detector.Detect(hint, meta.Title, meta.Snippet)

	score := 0
	if meta.Title != "" {
		score += scoreTitle
	}
	if meta.Snippet != "" {
		score += scoreSnippet
	}
	if recognized {
		score += scoreFileType
	}
	if institutionalDomain(raw.Domain, raw.URL) {
		score += scoreInstitutional
	}
	meta.QualityScore = score
	return meta
}

// payloadHint digs a language hint out of the provider payload. Payloads are
// provider-specific JSON; only top-level "language"/"lang" string fields are
// trusted.
func payloadHint(payload string) string {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" || !strings.HasPrefix(trimmed, "{") {
		return ""
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return ""
	}
	for _, key := range []string{"language", "lang"} {
		if value, ok := fields[key].(string); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func setExtra(extra map[string]string, key, value string) map[string]string {
	if extra == nil {
		extra = make(map[string]string, 2)
	}
	extra[key] = value
	return extra
}
