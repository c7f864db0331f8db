package extract_test

import (
	"testing"

	"greylit/internal/extract"
	"greylit/internal/store"
)

type staticDetector struct{ code string }

func (d staticDetector) Detect(_, _, _ string) string { return d.code }

func TestExtractFileTypes(t *testing.T) {
	tests := []struct {
		name            string
		url             string
		wantFileType    string
		wantContentType string
	}{
		{"pdf", "https://example.gov/report.pdf", "pdf", "application/pdf"},
		{"pdf uppercase", "https://example.org/REPORT.PDF", "pdf", "application/pdf"},
		{"doc", "https://example.org/minutes.doc", "doc", "application/msword"},
		{"docx", "https://example.org/minutes.docx", "docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		{"html", "https://example.org/page.html", "html", "text/html"},
		{"no extension", "https://example.org/guidance", "html", "text/html"},
		{"bare host", "https://example.org", "html", "text/html"},
		{"query after extension", "https://example.org/report.pdf?download=1", "pdf", "application/pdf"},
		{"unrecognized extension", "https://example.org/data.xlsx", "html", "unknown"},
	}

	e := extract.New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := e.Extract(&store.RawResult{URL: tt.url})
			if meta.FileType != tt.wantFileType {
				t.Errorf("file type = %q, want %q", meta.FileType, tt.wantFileType)
			}
			if meta.ContentType != tt.wantContentType {
				t.Errorf("content type = %q, want %q", meta.ContentType, tt.wantContentType)
			}
		})
	}
}

func TestExtractRecordsUnrecognizedExtension(t *testing.T) {
	e := extract.New(nil)
	meta := e.Extract(&store.RawResult{URL: "https://example.org/stats.csv"})
	if meta.Extra["url_extension"] != "csv" {
		t.Fatalf("expected url_extension in extra metadata, got %#v", meta.Extra)
	}
}

func TestExtractQualityScore(t *testing.T) {
	tests := []struct {
		name string
		raw  store.RawResult
		want int
	}{
		{
			name: "all signals",
			raw: store.RawResult{
				URL:     "https://www.cdc.gov/guidance.pdf",
				Title:   "Guidance",
				Snippet: "Summary of recommendations",
				Domain:  "www.cdc.gov",
			},
			want: 100,
		},
		{
			name: "title only",
			raw:  store.RawResult{URL: "https://example.org/page", Title: "A title"},
			want: 30,
		},
		{
			name: "snippet only",
			raw:  store.RawResult{URL: "https://example.org/page", Snippet: "A snippet"},
			want: 30,
		},
		{
			name: "recognized file type only",
			raw:  store.RawResult{URL: "https://example.org/file.docx"},
			want: 20,
		},
		{
			name: "default file type earns nothing",
			raw:  store.RawResult{URL: "https://example.org/page"},
			want: 0,
		},
		{
			name: "academic domain",
			raw:  store.RawResult{URL: "https://www.york.ac.uk/page", Domain: "www.york.ac.uk"},
			want: 20,
		},
		{
			name: "nhs domain",
			raw:  store.RawResult{URL: "https://www.england.nhs.uk/page", Domain: "www.england.nhs.uk"},
			want: 20,
		},
		{
			name: "edu domain from url host",
			raw:  store.RawResult{URL: "https://medicine.yale.edu/report"},
			want: 20,
		},
		{
			name: "empty input",
			raw:  store.RawResult{},
			want: 0,
		},
	}

	e := extract.New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := e.Extract(&tt.raw)
			if meta.QualityScore != tt.want {
				t.Errorf("quality score = %d, want %d", meta.QualityScore, tt.want)
			}
			if meta.QualityScore < 0 || meta.QualityScore > extract.MaxQualityScore {
				t.Errorf("quality score %d out of bounds", meta.QualityScore)
			}
		})
	}
}

func TestExtractSanitizesMarkup(t *testing.T) {
	e := extract.New(nil)
	meta := e.Extract(&store.RawResult{
		URL:     "https://example.org/page",
		Title:   "Effects of <b>asthma</b> treatment",
		Snippet: "Key &amp; findings<br/>",
	})
	if meta.Title != "Effects of asthma treatment" {
		t.Errorf("title = %q", meta.Title)
	}
	if meta.Snippet != "Key & findings" {
		t.Errorf("snippet = %q", meta.Snippet)
	}
	if meta.QualityScore != 60 {
		t.Errorf("quality score = %d, want 60", meta.QualityScore)
	}

	// Markup that sanitizes to nothing counts as absent for scoring.
	empty := e.Extract(&store.RawResult{
		URL:   "https://example.org/page",
		Title: "<br/><br/>",
	})
	if empty.Title != "" || empty.QualityScore != 0 {
		t.Errorf("expected empty title to score 0, got %q score %d", empty.Title, empty.QualityScore)
	}
}

func TestExtractLanguage(t *testing.T) {
	e := extract.New(nil)

	hinted := e.Extract(&store.RawResult{
		URL:        "https://example.org/page",
		RawPayload: `{"language": "fr-CA", "rank": 3}`,
	})
	if hinted.EstimatedLanguage != "fr" {
		t.Errorf("language = %q, want fr", hinted.EstimatedLanguage)
	}
	if hinted.Extra["language_hint"] != "fr-CA" {
		t.Errorf("expected language hint recorded, got %#v", hinted.Extra)
	}

	unhinted := e.Extract(&store.RawResult{URL: "https://example.org/page"})
	if unhinted.EstimatedLanguage != "en" {
		t.Errorf("default language = %q, want en", unhinted.EstimatedLanguage)
	}

	custom := extract.New(staticDetector{code: "cy"})
	detected := custom.Extract(&store.RawResult{URL: "https://example.org/page"})
	if detected.EstimatedLanguage != "cy" {
		t.Errorf("injected detector ignored, got %q", detected.EstimatedLanguage)
	}
}

func TestExtractNeverFails(t *testing.T) {
	e := extract.New(nil)

	inputs := []*store.RawResult{
		nil,
		{},
		{URL: "::not a url::", Title: "x", RawPayload: "{broken json"},
		{URL: "https://example.org/%ZZ", RawPayload: `[1,2,3]`},
	}
	for i, raw := range inputs {
		meta := e.Extract(raw)
		if meta.FileType == "" || meta.ContentType == "" || meta.EstimatedLanguage == "" {
			t.Errorf("input %d: incomplete metadata %#v", i, meta)
		}
		if meta.QualityScore < 0 || meta.QualityScore > extract.MaxQualityScore {
			t.Errorf("input %d: score %d out of bounds", i, meta.QualityScore)
		}
	}
}
