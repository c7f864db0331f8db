// Package notifications delivers run lifecycle events via pluggable sinks.
//
// Two sinks ship: an ntfy-style webhook POST and a Redis channel publish for
// the review application to consume. Both degrade to a no-op when not
// configured, and per-event toggles in config suppress individual events.
// Pipeline code depends only on the Service interface and treats publish
// errors as log-and-continue; a notification must never fail a run.
package notifications
