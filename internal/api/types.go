package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Session describes a review session in a transport-friendly format.
type Session struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	RawCount  int    `json:"rawCount"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// Run describes a processing run, optionally carrying its error list and
// progress feed.
type Run struct {
	ID              int64      `json:"id"`
	SessionID       int64      `json:"sessionId"`
	Status          string     `json:"status"`
	CurrentStage    string     `json:"currentStage,omitempty"`
	TotalRaw        int        `json:"totalRaw"`
	ProcessedCount  int        `json:"processedCount"`
	DuplicateCount  int        `json:"duplicateCount"`
	ErrorCount      int        `json:"errorCount"`
	Force           bool       `json:"force"`
	CancelRequested bool       `json:"cancelRequested"`
	ErrorMessage    string     `json:"errorMessage,omitempty"`
	StartedAt       string     `json:"startedAt,omitempty"`
	CompletedAt     string     `json:"completedAt,omitempty"`
	CreatedAt       string     `json:"createdAt,omitempty"`
	Errors          []RunError `json:"errors,omitempty"`
	Events          []RunEvent `json:"events,omitempty"`
}

// RunError is one recorded per-item failure.
type RunError struct {
	RawResultID int64  `json:"rawResultId"`
	Message     string `json:"message"`
}

// RunEvent is one entry of the append-only progress feed.
type RunEvent struct {
	Stage     string `json:"stage"`
	Message   string `json:"message"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// Result describes a processed result.
type Result struct {
	ID                int64             `json:"id"`
	RawResultID       int64             `json:"rawResultId"`
	Position          int               `json:"position"`
	NormalizedURL     string            `json:"normalizedUrl"`
	Title             string            `json:"title,omitempty"`
	Snippet           string            `json:"snippet,omitempty"`
	Domain            string            `json:"domain,omitempty"`
	FileType          string            `json:"fileType"`
	ContentType       string            `json:"contentType"`
	EstimatedLanguage string            `json:"estimatedLanguage"`
	QualityScore      int               `json:"qualityScore"`
	IsDuplicate       bool              `json:"isDuplicate"`
	DuplicateGroupID  string            `json:"duplicateGroupId,omitempty"`
	ExtraMetadata     map[string]string `json:"extraMetadata,omitempty"`
	ProcessedAt       string            `json:"processedAt,omitempty"`
}

// DuplicateGroup describes one duplicate group for a session.
type DuplicateGroup struct {
	ID                string  `json:"id"`
	CanonicalResultID int64   `json:"canonicalResultId"`
	MemberResultIDs   []int64 `json:"memberResultIds"`
	DetectionMethod   string  `json:"detectionMethod"`
	ConfidenceScore   float64 `json:"confidenceScore"`
}

// SessionResults bundles a session's processed results with their duplicate
// groups.
type SessionResults struct {
	SessionID int64            `json:"sessionId"`
	Results   []Result         `json:"results"`
	Groups    []DuplicateGroup `json:"groups,omitempty"`
}

// RunStatsResponse provides run counts keyed by status.
type RunStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	DatabasePath string         `json:"databasePath"`
	LockFilePath string         `json:"lockFilePath"`
	RunStats     map[string]int `json:"runStats"`
	ActiveRuns   []Run          `json:"activeRuns,omitempty"`
}

// RunListResponse wraps a collection of runs.
type RunListResponse struct {
	Runs []Run `json:"runs"`
}

// SessionListResponse wraps a collection of sessions.
type SessionListResponse struct {
	Sessions []Session `json:"sessions"`
}

// ProcessRequest is the optional body of the process endpoint.
type ProcessRequest struct {
	Force bool `json:"force"`
}

// ProcessResponse reports the run started for a session.
type ProcessResponse struct {
	RunID int64 `json:"runId"`
}

// CancelResponse reports whether a cancel request was accepted. Accepted is
// false when the run was already terminal.
type CancelResponse struct {
	Accepted bool `json:"accepted"`
}

// ImportResponse reports the outcome of a raw-result ingest call.
type ImportResponse struct {
	SessionID int64 `json:"sessionId"`
	Imported  int   `json:"imported"`
}
