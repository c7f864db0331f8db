// Package textutil provides text processing helpers for search-result fields.
//
// The primary use cases are:
//   - Stripping HTML markup that SERP providers embed in titles and snippets
//   - Creating token-based fingerprints from titles for comparison
//   - Computing cosine similarity between fingerprints
//
// Fingerprints use term frequency vectors normalized for efficient comparison.
// The tokenization process lowercases text, splits on non-alphanumeric
// characters, and filters tokens shorter than 3 characters.
package textutil
