// Package extract derives document metadata from raw search results.
//
// Extraction is pure and total: it never fails, never performs I/O, and
// produces a best-effort Metadata for any input. File and content types come
// from a fixed extension table, the language guess from a pluggable detector,
// and the quality score from a fixed completeness weighting. Titles and
// snippets are stripped of provider HTML markup before scoring so the stored
// fields are plain text.
package extract
