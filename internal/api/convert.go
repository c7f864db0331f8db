package api

import (
	"time"

	"greylit/internal/store"
)

// FromSession converts a session record to its API representation.
func FromSession(session *store.Session, rawCount int) Session {
	if session == nil {
		return Session{}
	}
	dto := Session{
		ID:       session.ID,
		Name:     session.Name,
		Status:   string(session.Status),
		RawCount: rawCount,
	}
	dto.CreatedAt = formatTime(session.CreatedAt)
	dto.UpdatedAt = formatTime(session.UpdatedAt)
	return dto
}

// FromRun converts a run record to its API representation. Events are
// attached separately because list views omit them.
func FromRun(run *store.ProcessingRun) Run {
	if run == nil {
		return Run{}
	}
	dto := Run{
		ID:              run.ID,
		SessionID:       run.SessionID,
		Status:          string(run.Status),
		CurrentStage:    string(run.CurrentStage),
		TotalRaw:        run.TotalRaw,
		ProcessedCount:  run.ProcessedCount,
		DuplicateCount:  run.DuplicateCount,
		ErrorCount:      run.ErrorCount,
		Force:           run.Force,
		CancelRequested: run.CancelRequested,
		ErrorMessage:    run.ErrorMessage,
		CreatedAt:       formatTime(run.CreatedAt),
	}
	if run.StartedAt != nil {
		dto.StartedAt = formatTime(*run.StartedAt)
	}
	if run.CompletedAt != nil {
		dto.CompletedAt = formatTime(*run.CompletedAt)
	}
	for _, item := range run.Errors {
		dto.Errors = append(dto.Errors, RunError{
			RawResultID: item.RawResultID,
			Message:     item.Message,
		})
	}
	return dto
}

// FromRuns converts a slice of run records into API DTOs.
func FromRuns(runs []*store.ProcessingRun) []Run {
	if len(runs) == 0 {
		return nil
	}
	out := make([]Run, 0, len(runs))
	for _, run := range runs {
		out = append(out, FromRun(run))
	}
	return out
}

// FromRunEvents converts progress feed entries into API DTOs.
func FromRunEvents(events []*store.RunEvent) []RunEvent {
	if len(events) == 0 {
		return nil
	}
	out := make([]RunEvent, 0, len(events))
	for _, event := range events {
		out = append(out, RunEvent{
			Stage:     string(event.Stage),
			Message:   event.Message,
			CreatedAt: formatTime(event.CreatedAt),
		})
	}
	return out
}

// FromResult converts a processed result record to its API representation.
func FromResult(result *store.ProcessedResult) Result {
	if result == nil {
		return Result{}
	}
	return Result{
		ID:                result.ID,
		RawResultID:       result.RawResultID,
		Position:          result.Position,
		NormalizedURL:     result.NormalizedURL,
		Title:             result.Title,
		Snippet:           result.Snippet,
		Domain:            result.Domain,
		FileType:          result.FileType,
		ContentType:       result.ContentType,
		EstimatedLanguage: result.EstimatedLanguage,
		QualityScore:      result.QualityScore,
		IsDuplicate:       result.IsDuplicate,
		DuplicateGroupID:  result.DuplicateGroupID,
		ExtraMetadata:     result.ExtraMetadata,
		ProcessedAt:       formatTime(result.ProcessedAt),
	}
}

// FromDuplicateGroup converts a duplicate group record to its API
// representation.
func FromDuplicateGroup(group *store.DuplicateGroup) DuplicateGroup {
	if group == nil {
		return DuplicateGroup{}
	}
	return DuplicateGroup{
		ID:                group.ID,
		CanonicalResultID: group.CanonicalResultID,
		MemberResultIDs:   group.MemberResultIDs,
		DetectionMethod:   group.DetectionMethod,
		ConfidenceScore:   group.ConfidenceScore,
	}
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(dateTimeFormat)
}

// ParseTime reverses the API timestamp format for consumers that need display
// formatting.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}
