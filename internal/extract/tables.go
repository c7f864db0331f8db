package extract

import (
	"net/url"
	"path"
	"strings"
)

// DefaultFileType is assumed when the URL path carries no recognized
// extension. Grey-literature results without one are almost always web pages.
const DefaultFileType = "html"

// ContentTypeUnknown marks results whose extension matched no table entry.
const ContentTypeUnknown = "unknown"

// fileTypes is the fixed extension table. Entries here count as "recognized"
// for quality scoring; everything else falls back to DefaultFileType.
var fileTypes = map[string]string{
	"pdf":  "pdf",
	"doc":  "doc",
	"docx": "docx",
	"html": "html",
}

// contentTypes maps recognized file types to MIME content types.
var contentTypes = map[string]string{
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"html": "text/html",
}

// institutionalSuffixes earn the domain-quality weight. The list is contract;
// resist the urge to grow it per-deployment.
var institutionalSuffixes = []string{".gov", ".edu", ".ac.uk", ".nhs.uk"}

// Quality score weights. Their sum is the score ceiling.
const (
	scoreTitle         = 30
	scoreSnippet       = 30
	scoreFileType      = 20
	scoreInstitutional = 20

	// MaxQualityScore bounds every score the extractor produces.
	MaxQualityScore = scoreTitle + scoreSnippet + scoreFileType + scoreInstitutional
)

// fileExtension pulls the lowercased path extension out of a raw URL, without
// the leading dot. Unparseable input degrades to a manual query/fragment
// strip rather than an error.
func fileExtension(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return ""
	}
	pathPart := ""
	if u, err := url.Parse(trimmed); err == nil {
		pathPart = u.Path
	} else {
		pathPart = trimmed
		if i := strings.IndexAny(pathPart, "?#"); i >= 0 {
			pathPart = pathPart[:i]
		}
	}
	return strings.ToLower(strings.TrimPrefix(path.Ext(pathPart), "."))
}

// institutionalDomain reports whether the domain, or failing that the URL
// host, ends in an institutional suffix.
func institutionalDomain(domain, rawURL string) bool {
	host := strings.ToLower(strings.TrimSpace(domain))
	if host == "" {
		if u, err := url.Parse(strings.TrimSpace(rawURL)); err == nil {
			host = strings.ToLower(u.Hostname())
		}
	}
	if host == "" {
		return false
	}
	for _, suffix := range institutionalSuffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}
