// Package normalize canonicalizes search-result URLs into a comparable form.
//
// Normalization is a pure, total function: malformed input yields a
// best-effort canonical string rather than an error. Two URLs that normalize
// to the same string are treated as exact duplicates by the deduplication
// pass, so the rule set and its ordering are contract and must stay stable.
package normalize
