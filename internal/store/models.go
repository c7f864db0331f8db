package store

import (
	"strings"
	"time"
)

// RunStatus represents the lifecycle of a processing run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunPartial   RunStatus = "partial"
	RunCancelled RunStatus = "cancelled"
)

var allRunStatuses = []RunStatus{
	RunPending,
	RunRunning,
	RunCompleted,
	RunFailed,
	RunPartial,
	RunCancelled,
}

var runStatusSet = func() map[RunStatus]struct{} {
	set := make(map[RunStatus]struct{}, len(allRunStatuses))
	for _, status := range allRunStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ParseRunStatus converts a string into a known RunStatus.
func ParseRunStatus(value string) (RunStatus, bool) {
	status := RunStatus(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := runStatusSet[status]; !ok {
		return "", false
	}
	return status, true
}

// RunStatuses returns every known run status in lifecycle order.
func RunStatuses() []RunStatus {
	out := make([]RunStatus, len(allRunStatuses))
	copy(out, allRunStatuses)
	return out
}

// IsTerminal reports whether the status permits no further transitions.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunPartial, RunCancelled:
		return true
	}
	return false
}

// Stage identifies a pipeline phase reported through the progress feed.
type Stage string

const (
	StageInitialization Stage = "initialization"
	StageNormalization  Stage = "url_normalization"
	StageExtraction     Stage = "metadata_extraction"
	StageDeduplication  Stage = "deduplication"
	StageFinalization   Stage = "finalization"
)

var orderedStages = []Stage{
	StageInitialization,
	StageNormalization,
	StageExtraction,
	StageDeduplication,
	StageFinalization,
}

// Stages returns the pipeline stages in execution order.
func Stages() []Stage {
	out := make([]Stage, len(orderedStages))
	copy(out, orderedStages)
	return out
}

// ParseStage converts a string into a known Stage.
func ParseStage(value string) (Stage, bool) {
	stage := Stage(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range orderedStages {
		if stage == known {
			return stage, true
		}
	}
	return "", false
}

// SessionStatus mirrors the review-session lifecycle owned by the session
// collaborator. The pipeline only reads sessions and writes the transitions
// that finalize a processing run.
type SessionStatus string

const (
	SessionCreated    SessionStatus = "created"
	SessionSearching  SessionStatus = "searching"
	SessionProcessing SessionStatus = "processing_results"
	SessionReady      SessionStatus = "ready_for_review"
	SessionFailed     SessionStatus = "failed"
)

// Session is the minimal projection of a review session the pipeline needs.
type Session struct {
	ID        int64
	Name      string
	Status    SessionStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RawResult is an externally produced search result. Immutable once written.
type RawResult struct {
	ID          int64
	SessionID   int64
	Position    int
	URL         string
	Title       string
	Snippet     string
	Domain      string
	RawPayload  string
	RetrievedAt time.Time
}

// ProcessedResult is the pipeline's output for a single raw result. Exactly
// one row exists per raw result; reprocessing overwrites it in place.
// Position is denormalized from the raw result so duplicate detection can
// order and tie-break without joining.
type ProcessedResult struct {
	ID                int64
	SessionID         int64
	RawResultID       int64
	Position          int
	NormalizedURL     string
	Title             string
	Snippet           string
	Domain            string
	FileType          string
	ContentType       string
	EstimatedLanguage string
	QualityScore      int
	IsDuplicate       bool
	DuplicateGroupID  string
	ExtraMetadata     map[string]string
	ProcessedAt       time.Time
}

// DuplicateGroup records a set of processed results judged to be the same
// underlying document. The canonical member is always the lowest-position
// member. Groups within a session are disjoint.
type DuplicateGroup struct {
	ID                string
	SessionID         int64
	CanonicalResultID int64
	MemberResultIDs   []int64
	DetectionMethod   string
	ConfidenceScore   float64
	CreatedAt         time.Time
}

// Contains reports whether the group holds the given processed result id.
func (g *DuplicateGroup) Contains(resultID int64) bool {
	for _, id := range g.MemberResultIDs {
		if id == resultID {
			return true
		}
	}
	return false
}

// RunError is a recorded per-item failure, ordered by insertion.
type RunError struct {
	RawResultID int64
	Message     string
}

// ProcessingRun tracks one pipeline invocation for a session.
type ProcessingRun struct {
	ID              int64
	SessionID       int64
	Status          RunStatus
	CurrentStage    Stage
	TotalRaw        int
	ProcessedCount  int
	DuplicateCount  int
	ErrorCount      int
	Force           bool
	CancelRequested bool
	ErrorMessage    string
	StartedAt       *time.Time
	CompletedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Errors          []RunError
}

// IsTerminal reports whether the run has reached a terminal status.
func (r *ProcessingRun) IsTerminal() bool {
	return r.Status.IsTerminal()
}

// RunEvent is one entry in the append-only progress feed for a run.
type RunEvent struct {
	ID        int64
	RunID     int64
	Stage     Stage
	Message   string
	CreatedAt time.Time
}
