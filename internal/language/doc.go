// Package language estimates the language of search results.
//
// SERP providers expose language metadata inconsistently: BCP-47 tags
// ("en-GB"), bare ISO 639 codes ("en", "eng"), or full words ("english").
// Canonical folds all of these to a single ISO 639-1 code so stored results
// compare cleanly. Detection is pluggable through the Detector interface;
// the shipped detector trusts the provider hint and falls back to the
// configured corpus default.
package language
