// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates store models into transport-friendly DTOs so the
// CLI and the review application can render state without coupling to
// internal types.
//
// DTOs use camelCase JSON tags. Internal enums (store.RunStatus, store.Stage,
// store.SessionStatus) are exposed as lowercase strings. Timestamps use
// RFC3339 with milliseconds.
package api
