package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"greylit/internal/config"
	"greylit/internal/dedup"
	"greylit/internal/extract"
	"greylit/internal/language"
	"greylit/internal/logging"
	"greylit/internal/metrics"
	"greylit/internal/notifications"
	"greylit/internal/store"
)

// Service owns processing runs. Runs execute on background goroutines; the
// caller polls Progress for status. At most one non-terminal run exists per
// session, enforced by the store.
type Service struct {
	cfg       *config.Config
	store     *store.Store
	logger    *slog.Logger
	notifier  notifications.Service
	metrics   *metrics.Registry
	extractor *extract.Extractor

	mu     sync.Mutex
	active map[int64]context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// NewService constructs a pipeline service with notifications wired from config.
func NewService(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Service, error) {
	return NewServiceWith(cfg, st, logger, notifications.NewService(cfg), nil)
}

// NewServiceWith constructs a pipeline service with explicit collaborators.
// The registry may be nil when metrics are not exposed.
func NewServiceWith(cfg *config.Config, st *store.Store, logger *slog.Logger, notifier notifications.Service, registry *metrics.Registry) (*Service, error) {
	// Reject bad strategy names up front; runs build their own detector so
	// per-run strategy state is never shared across concurrent sessions.
	if _, err := dedup.FromConfig(cfg); err != nil {
		return nil, fmt.Errorf("configure duplicate detection: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		cfg:       cfg,
		store:     st,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
		notifier:  notifier,
		metrics:   registry,
		extractor: extract.New(language.NewHintDetector(cfg.Processing.DefaultLanguage)),
		active:    make(map[int64]context.CancelFunc),
	}, nil
}

// StartProcessing creates a run for the session and begins executing it in
// the background. It fails with ErrSessionNotFound for unknown sessions and
// ErrAlreadyRunning when a non-terminal run exists.
func (s *Service) StartProcessing(ctx context.Context, sessionID int64, force bool) (int64, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	s.mu.Unlock()

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, fmt.Errorf("session %d: %w", sessionID, ErrSessionNotFound)
		}
		return 0, fmt.Errorf("load session %d: %w", sessionID, err)
	}

	total, err := s.store.CountRawResults(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("count raw results for session %d: %w", sessionID, err)
	}

	run, err := s.store.CreateRun(ctx, sessionID, force, total)
	if err != nil {
		if errors.Is(err, store.ErrActiveRunExists) {
			return 0, fmt.Errorf("session %d: %w", sessionID, ErrAlreadyRunning)
		}
		return 0, fmt.Errorf("create run for session %d: %w", sessionID, err)
	}

	if err := s.store.UpdateSessionStatus(ctx, sessionID, store.SessionProcessing); err != nil {
		s.logger.Warn("failed to mark session processing",
			logging.Int64(logging.FieldSessionID, sessionID),
			logging.Error(err))
	}

	runCtx := logging.WithSessionID(context.Background(), sessionID)
	runCtx = logging.WithRunID(runCtx, run.ID)
	runCtx = logging.WithCorrelationID(runCtx, uuid.NewString())
	runCtx, cancel := context.WithCancel(runCtx)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		if err := s.store.FinalizeRun(ctx, run.ID, store.RunCancelled, "service shutting down"); err != nil {
			s.logger.Warn("failed to cancel run created during shutdown", logging.Error(err))
		}
		return 0, ErrClosed
	}
	s.active[run.ID] = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			cancel()
			s.mu.Lock()
			delete(s.active, run.ID)
			s.mu.Unlock()
		}()
		s.execute(runCtx, run, session)
	}()

	return run.ID, nil
}

// Status is a read-only snapshot of a run and its progress feed.
type Status struct {
	Run    *store.ProcessingRun
	Events []*store.RunEvent
}

// Progress returns the current state of a run without doing any processing
// work.
func (s *Service) Progress(ctx context.Context, runID int64) (*Status, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("run %d: %w", runID, ErrRunNotFound)
		}
		return nil, fmt.Errorf("load run %d: %w", runID, err)
	}
	events, err := s.store.ListRunEvents(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %d events: %w", runID, err)
	}
	return &Status{Run: run, Events: events}, nil
}

// Cancel requests that a run stop at its next checkpoint. It reports whether
// the request took effect; cancelling an already-terminal run is a no-op.
func (s *Service) Cancel(ctx context.Context, runID int64) (bool, error) {
	flagged, err := s.store.RequestCancel(ctx, runID)
	if err != nil {
		return false, fmt.Errorf("request cancel for run %d: %w", runID, err)
	}
	if !flagged {
		// Distinguish a terminal run (no-op) from an unknown one.
		if _, err := s.store.GetRun(ctx, runID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return false, fmt.Errorf("run %d: %w", runID, ErrRunNotFound)
			}
			return false, fmt.Errorf("load run %d: %w", runID, err)
		}
	}
	return flagged, nil
}

// Close stops accepting new runs, signals active runs to stop, and waits for
// them to finalize. Active runs finish with status cancelled.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancels := make([]context.CancelFunc, 0, len(s.active))
	for _, cancel := range s.active {
		cancels = append(cancels, cancel)
	}
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	s.wg.Wait()
}
