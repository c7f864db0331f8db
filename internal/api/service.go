package api

import (
	"context"

	"greylit/internal/store"
)

// Reader describes the store access the API service needs. *store.Store
// satisfies it.
type Reader interface {
	ListSessions(ctx context.Context) ([]*store.Session, error)
	GetSession(ctx context.Context, id int64) (*store.Session, error)
	CountRawResults(ctx context.Context, sessionID int64) (int, error)
	ListRuns(ctx context.Context, sessionID int64) ([]*store.ProcessingRun, error)
	GetRun(ctx context.Context, id int64) (*store.ProcessingRun, error)
	ListRunEvents(ctx context.Context, runID int64) ([]*store.RunEvent, error)
	RunStats(ctx context.Context) (map[store.RunStatus]int, error)
	ListProcessedResults(ctx context.Context, sessionID int64) ([]*store.ProcessedResult, error)
	ListDuplicateGroups(ctx context.Context, sessionID int64) ([]*store.DuplicateGroup, error)
}

// Service exposes read-side views over the store for the IPC and HTTP
// layers.
type Service struct {
	store Reader
}

// NewService constructs an API service backed by the given reader.
func NewService(reader Reader) *Service {
	return &Service{store: reader}
}

// Sessions lists every session with its raw result count.
func (s *Service) Sessions(ctx context.Context) (*SessionListResponse, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	resp := &SessionListResponse{Sessions: make([]Session, 0, len(sessions))}
	for _, session := range sessions {
		count, err := s.store.CountRawResults(ctx, session.ID)
		if err != nil {
			return nil, err
		}
		resp.Sessions = append(resp.Sessions, FromSession(session, count))
	}
	return resp, nil
}

// Runs lists processing runs, newest first. A zero session ID lists runs
// across all sessions.
func (s *Service) Runs(ctx context.Context, sessionID int64) (*RunListResponse, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	runs, err := s.store.ListRuns(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &RunListResponse{Runs: FromRuns(runs)}, nil
}

// DescribeRun returns a single run with its error list and progress feed.
// Unknown runs surface store.ErrNotFound.
func (s *Service) DescribeRun(ctx context.Context, id int64) (*Run, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	events, err := s.store.ListRunEvents(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := FromRun(run)
	dto.Events = FromRunEvents(events)
	return &dto, nil
}

// Stats reports run counts grouped by status.
func (s *Service) Stats(ctx context.Context) (*RunStatsResponse, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.RunStats(ctx)
	if err != nil {
		return nil, err
	}
	resp := &RunStatsResponse{Counts: make(map[string]int, len(stats))}
	for status, count := range stats {
		resp.Counts[string(status)] = count
	}
	return resp, nil
}

// SessionResults returns a session's processed results in position order
// together with their duplicate groups. Unknown sessions surface
// store.ErrNotFound.
func (s *Service) SessionResults(ctx context.Context, sessionID int64) (*SessionResults, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	results, err := s.store.ListProcessedResults(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	groups, err := s.store.ListDuplicateGroups(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	resp := &SessionResults{SessionID: sessionID, Results: make([]Result, 0, len(results))}
	for _, result := range results {
		resp.Results = append(resp.Results, FromResult(result))
	}
	for _, group := range groups {
		resp.Groups = append(resp.Groups, FromDuplicateGroup(group))
	}
	return resp, nil
}
