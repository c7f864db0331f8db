// Package ingest imports raw search results into a session from JSON, either
// a file handed to the CLI or the HTTP import endpoint. It stands in for the
// search-execution component that normally writes raw results directly.
// Imports are append-only and transactional: entries are validated up front
// and either all rows land or none do.
package ingest
