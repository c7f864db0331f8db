// Package logging assembles the structured slog loggers shared by the
// daemon, the pipeline, and the CLI.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context helpers so pipeline code automatically tags
// log lines with session IDs, run IDs, and stage names. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
