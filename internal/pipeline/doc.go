// Package pipeline orchestrates result processing for a review session.
//
// A processing run walks the session's raw results through normalization,
// metadata extraction, persistence, and duplicate detection, reporting each
// stage to an append-only progress feed. Per-item failures are recorded and
// skipped; only setup failures (unknown session, a run already active) reach
// the caller of StartProcessing. Runs are idempotent: results are upserted by
// raw result id, and previously processed items are skipped unless the run is
// forced.
package pipeline
