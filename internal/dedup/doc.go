// Package dedup groups processed results that represent the same underlying
// document.
//
// Exact URL matching always runs: results whose normalized URLs are
// identical form a group. A secondary Strategy may be injected to catch
// near-duplicates the URL signal misses; the shipped title-similarity
// strategy compares term-frequency fingerprints of sanitized titles. The
// detector is deterministic for a given result set: input is ordered by
// SERP position, the canonical member of every group is its lowest-position
// member, and groups within a session stay disjoint, merging when a later
// match bridges two of them.
//
// Detection is single-goroutine; strategies may keep per-run caches without
// locking.
package dedup
