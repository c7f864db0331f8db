package ipc

import (
	"encoding/json"

	"greylit/internal/api"
)

// Session mirrors the HTTP API session DTO for internal IPC callers.
type Session = api.Session

// Run mirrors the HTTP API run DTO for internal IPC callers.
type Run = api.Run

// SessionResults mirrors the HTTP API results DTO for internal IPC callers.
type SessionResults = api.SessionResults

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon/pipeline status information.
type StatusResponse struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	DatabasePath string         `json:"database_path"`
	LockPath     string         `json:"lock_path"`
	RunStats     map[string]int `json:"run_stats"`
	ActiveRuns   []Run          `json:"active_runs"`
}

// ProcessRequest starts a processing run for one review session.
type ProcessRequest struct {
	SessionID int64 `json:"session_id"`
	Force     bool  `json:"force"`
}

// ProcessResponse reports the identifier of the started run.
type ProcessResponse struct {
	RunID int64 `json:"run_id"`
}

// CancelRunRequest asks a run to stop at its next stage checkpoint.
type CancelRunRequest struct {
	RunID int64 `json:"run_id"`
}

// CancelRunResponse indicates whether the cancel request was accepted.
// Accepted is false when the run was already terminal.
type CancelRunResponse struct {
	Accepted bool `json:"accepted"`
}

// DescribeRunRequest fetches a single run by id.
type DescribeRunRequest struct {
	ID int64 `json:"id"`
}

// DescribeRunResponse contains a single run with its errors and events.
type DescribeRunResponse struct {
	Run Run `json:"run"`
}

// ListRunsRequest filters run listing by session. Zero means all sessions.
type ListRunsRequest struct {
	SessionID int64 `json:"session_id"`
}

// ListRunsResponse contains run entries, newest first.
type ListRunsResponse struct {
	Runs []Run `json:"runs"`
}

// ListSessionsRequest fetches all review sessions.
type ListSessionsRequest struct{}

// ListSessionsResponse contains session entries.
type ListSessionsResponse struct {
	Sessions []Session `json:"sessions"`
}

// ListResultsRequest fetches processed results for a session.
type ListResultsRequest struct {
	SessionID int64 `json:"session_id"`
}

// ListResultsResponse contains processed results and duplicate groups.
type ListResultsResponse struct {
	Results SessionResults `json:"results"`
}

// ImportResultsRequest loads raw search results into a session. When
// SessionID is zero a new session named SessionName is created first.
type ImportResultsRequest struct {
	SessionID   int64           `json:"session_id"`
	SessionName string          `json:"session_name"`
	Payload     json.RawMessage `json:"payload"`
}

// ImportResultsResponse reports the target session and the number of raw
// results stored.
type ImportResultsResponse struct {
	SessionID int64 `json:"session_id"`
	Imported  int   `json:"imported"`
}

// StopRequest stops daemon processing.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}
