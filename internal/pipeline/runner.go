package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"greylit/internal/dedup"
	"greylit/internal/logging"
	"greylit/internal/normalize"
	"greylit/internal/notifications"
	"greylit/internal/store"
)

// item is one raw result surviving normalization, headed for extraction.
type item struct {
	raw           *store.RawResult
	normalizedURL string
}

type runner struct {
	svc      *Service
	logger   *slog.Logger
	reporter *Reporter
	run      *store.ProcessingRun
	session  *store.Session

	skipped        int
	succeeded      int
	failed         int
	duplicates     int
	processedTotal int
	cancelled      bool
	cancelReason   string
}

func (s *Service) execute(ctx context.Context, run *store.ProcessingRun, session *store.Session) {
	start := time.Now()
	logger := logging.WithContext(ctx, s.logger)
	r := &runner{
		svc:      s,
		logger:   logger,
		reporter: NewReporter(s.store, logger, run.ID),
		run:      run,
		session:  session,
	}

	s.metrics.RunStarted()
	s.notify(ctx, notifications.EventRunStarted, notifications.Payload{
		"session": session.Name,
		"total":   strconv.Itoa(run.TotalRaw),
	})

	status, runErr := r.process(ctx)
	r.finalize(ctx, status, runErr, time.Since(start))
}

func (r *runner) process(ctx context.Context) (store.RunStatus, error) {
	st := r.svc.store

	r.reporter.Stage(ctx, store.StageInitialization, "processing started for session %q", r.session.Name)
	if err := st.MarkRunRunning(ctx, r.run.ID); err != nil {
		return store.RunFailed, fmt.Errorf("mark run running: %w", err)
	}

	raws, err := st.ListRawResults(ctx, r.session.ID)
	if err != nil {
		return store.RunFailed, fmt.Errorf("list raw results: %w", err)
	}

	worklist := raws
	if !r.run.Force {
		done, err := st.ProcessedRawResultIDs(ctx, r.session.ID)
		if err != nil {
			return store.RunFailed, fmt.Errorf("load processed raw result ids: %w", err)
		}
		worklist = make([]*store.RawResult, 0, len(raws))
		for _, raw := range raws {
			if _, ok := done[raw.ID]; ok {
				r.skipped++
				continue
			}
			worklist = append(worklist, raw)
		}
	}
	r.reporter.Event(ctx, store.StageInitialization, "%d raw results, %d already processed, %d to process",
		len(raws), r.skipped, len(worklist))

	r.reporter.Stage(ctx, store.StageNormalization, "normalizing %d urls", len(worklist))
	items := r.normalizeAll(ctx, worklist)
	r.reporter.Event(ctx, store.StageNormalization, "normalized %d urls, %d rejected",
		len(items), len(worklist)-len(items))

	if !r.cancelled {
		r.reporter.Stage(ctx, store.StageExtraction, "extracting metadata for %d results", len(items))
		r.extractAndPersist(ctx, items)
	}

	// Detection always covers the full persisted set for the session so
	// groups stay coherent after partial, forced, and cancelled runs.
	r.reporter.Stage(ctx, store.StageDeduplication, "detecting duplicates")
	if err := r.deduplicate(ctx); err != nil {
		return store.RunFailed, err
	}

	return r.outcome(), nil
}

func (r *runner) outcome() store.RunStatus {
	switch {
	case r.cancelled:
		return store.RunCancelled
	case r.failed == 0:
		return store.RunCompleted
	case r.succeeded > 0:
		return store.RunPartial
	default:
		return store.RunFailed
	}
}

// normalizeAll derives the canonical URL for each raw result. Results with no
// usable URL are recorded as item failures and dropped from the worklist.
func (r *runner) normalizeAll(ctx context.Context, worklist []*store.RawResult) []item {
	chunk := r.svc.chunkSize()
	items := make([]item, 0, len(worklist))
	for i, raw := range worklist {
		if i%chunk == 0 && r.checkCancelled(ctx) {
			break
		}
		url := strings.TrimSpace(raw.URL)
		if url == "" {
			r.recordItemFailure(ctx, raw.ID, "raw result has no url")
			continue
		}
		items = append(items, item{raw: raw, normalizedURL: normalize.Normalize(url)})
	}
	return items
}

// extractAndPersist walks the worklist in chunks so no write spans the whole
// batch, checking for cancellation between chunks.
func (r *runner) extractAndPersist(ctx context.Context, items []item) {
	chunkSize := r.svc.chunkSize()
	for start := 0; start < len(items); start += chunkSize {
		if r.checkCancelled(ctx) {
			return
		}
		end := min(start+chunkSize, len(items))
		r.persistChunk(ctx, items[start:end])
		r.reporter.Event(ctx, store.StageExtraction, "processed %d of %d results", end, len(items))
	}
}

type itemOutcome struct {
	result *store.ProcessedResult
	err    error
}

func (r *runner) persistChunk(ctx context.Context, chunk []item) {
	outcomes := make([]itemOutcome, len(chunk))
	workers := r.svc.cfg.Processing.ItemWorkers
	if workers <= 1 {
		for i, it := range chunk {
			outcomes[i] = r.buildResult(it)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(workers)
		for i, it := range chunk {
			g.Go(func() error {
				outcomes[i] = r.buildResult(it)
				return nil
			})
		}
		_ = g.Wait()
	}

	toWrite := make([]*store.ProcessedResult, 0, len(chunk))
	for i, outcome := range outcomes {
		if outcome.err != nil {
			r.recordItemFailure(ctx, chunk[i].raw.ID, outcome.err.Error())
			continue
		}
		toWrite = append(toWrite, outcome.result)
	}
	if len(toWrite) == 0 {
		return
	}

	if err := r.svc.store.UpsertProcessedResults(ctx, toWrite); err != nil {
		for _, result := range toWrite {
			r.recordItemFailure(ctx, result.RawResultID, fmt.Sprintf("persist result: %v", err))
		}
		return
	}
	r.succeeded += len(toWrite)
	for range toWrite {
		r.svc.metrics.ItemProcessed()
	}
}

// buildResult runs extraction for one item. Extraction is total by contract;
// the recover guards against bugs in injected collaborators so one item can
// never take the batch down.
func (r *runner) buildResult(it item) (outcome itemOutcome) {
	defer func() {
		if rec := recover(); rec != nil {
			outcome = itemOutcome{err: fmt.Errorf("item processing panicked: %v", rec)}
		}
	}()

	meta := r.svc.extractor.Extract(it.raw)
	return itemOutcome{result: &store.ProcessedResult{
		SessionID:         it.raw.SessionID,
		RawResultID:       it.raw.ID,
		Position:          it.raw.Position,
		NormalizedURL:     it.normalizedURL,
		Title:             meta.Title,
		Snippet:           meta.Snippet,
		Domain:            resultDomain(it),
		FileType:          meta.FileType,
		ContentType:       meta.ContentType,
		EstimatedLanguage: meta.EstimatedLanguage,
		QualityScore:      meta.QualityScore,
		ExtraMetadata:     meta.Extra,
		ProcessedAt:       time.Now().UTC(),
	}}
}

func resultDomain(it item) string {
	if domain := strings.TrimSpace(it.raw.Domain); domain != "" {
		return domain
	}
	return normalize.Host(it.normalizedURL)
}

func (r *runner) deduplicate(ctx context.Context) error {
	st := r.svc.store
	processed, err := st.ListProcessedResults(ctx, r.session.ID)
	if err != nil {
		return fmt.Errorf("list processed results: %w", err)
	}
	r.processedTotal = len(processed)

	detector, err := dedup.FromConfig(r.svc.cfg)
	if err != nil {
		return fmt.Errorf("configure duplicate detection: %w", err)
	}
	groups := detector.Detect(processed)
	if err := st.ReplaceDuplicateGroups(ctx, r.session.ID, groups); err != nil {
		return fmt.Errorf("persist duplicate groups: %w", err)
	}

	flagged := 0
	for _, group := range groups {
		flagged += len(group.MemberResultIDs) - 1
	}
	r.duplicates = flagged
	r.svc.metrics.DuplicatesFlagged(flagged)
	r.reporter.Event(ctx, store.StageDeduplication, "%d duplicate groups, %d results flagged",
		len(groups), flagged)
	return nil
}

// checkCancelled observes both the run context and the persisted cancellation
// flag. Once true it stays true for the rest of the run.
func (r *runner) checkCancelled(ctx context.Context) bool {
	if r.cancelled {
		return true
	}
	select {
	case <-ctx.Done():
		r.cancelled = true
		r.cancelReason = "interrupted by shutdown"
		return true
	default:
	}
	flagged, err := r.svc.store.CancelRequested(ctx, r.run.ID)
	if err != nil {
		r.logger.Warn("failed to read cancellation flag", logging.Error(err))
		return false
	}
	if flagged {
		r.cancelled = true
		r.cancelReason = "cancelled by request"
	}
	return r.cancelled
}

func (r *runner) recordItemFailure(ctx context.Context, rawResultID int64, message string) {
	r.failed++
	r.svc.metrics.ItemFailed()
	r.logger.Warn("raw result failed",
		logging.Int64(logging.FieldRawResultID, rawResultID),
		logging.String("reason", message))
	if err := r.svc.store.AddRunError(ctx, r.run.ID, rawResultID, message); err != nil {
		r.logger.Warn("failed to record item error",
			logging.Int64(logging.FieldRawResultID, rawResultID),
			logging.Error(err))
	}
}

// finalize persists counts and terminal status, transitions the session, and
// publishes the outcome. It must succeed even when the run context has been
// cancelled by shutdown.
func (r *runner) finalize(ctx context.Context, status store.RunStatus, runErr error, elapsed time.Duration) {
	ctx = context.WithoutCancel(ctx)
	st := r.svc.store

	r.reporter.Stage(ctx, store.StageFinalization, "finalizing run with status %s", status)

	if r.processedTotal == 0 {
		r.processedTotal = r.succeeded + r.skipped
	}
	if err := st.SetRunCounts(ctx, r.run.ID, r.processedTotal, r.duplicates); err != nil {
		r.logger.Warn("failed to persist run counts", logging.Error(err))
	}

	var message string
	switch {
	case runErr != nil:
		message = runErr.Error()
		r.logger.Error("processing run failed", logging.Error(runErr))
	case status == store.RunFailed:
		message = fmt.Sprintf("all %d attempted raw results failed", r.failed)
	case status == store.RunCancelled:
		message = r.cancelReason
	}
	if err := st.FinalizeRun(ctx, r.run.ID, status, message); err != nil {
		r.logger.Error("failed to finalize run", logging.Error(err))
	}

	ready := r.transitionSession(ctx, status)
	r.reporter.Event(ctx, store.StageFinalization, "run finished: %d processed, %d duplicates, %d errors in %s",
		r.processedTotal, r.duplicates, r.failed, elapsed.Round(time.Millisecond))

	r.svc.metrics.RunFinished(string(status), elapsed.Seconds())
	r.notifyFinished(ctx, status, message, elapsed, ready)
}

// transitionSession signals the review-session collaborator: completed and
// partial runs make the session reviewable, failed runs surface the failure,
// cancelled runs leave the session untouched for the operator to decide. It
// reports whether the session became ready for review.
func (r *runner) transitionSession(ctx context.Context, status store.RunStatus) bool {
	var next store.SessionStatus
	switch status {
	case store.RunCompleted, store.RunPartial:
		next = store.SessionReady
	case store.RunFailed:
		next = store.SessionFailed
	default:
		return false
	}
	if err := r.svc.store.UpdateSessionStatus(ctx, r.session.ID, next); err != nil {
		r.logger.Warn("failed to transition session status",
			logging.String("status", string(next)),
			logging.Error(err))
		return false
	}
	return next == store.SessionReady
}

func (r *runner) notifyFinished(ctx context.Context, status store.RunStatus, message string, elapsed time.Duration, ready bool) {
	if status == store.RunFailed {
		r.svc.notify(ctx, notifications.EventRunFailed, notifications.Payload{
			"session": r.session.Name,
			"reason":  message,
		})
		return
	}
	r.svc.notify(ctx, notifications.EventRunCompleted, notifications.Payload{
		"session":    r.session.Name,
		"status":     string(status),
		"processed":  strconv.Itoa(r.processedTotal),
		"duplicates": strconv.Itoa(r.duplicates),
		"errors":     strconv.Itoa(r.failed),
		"duration":   elapsed.Round(time.Millisecond).String(),
	})
	if ready {
		r.svc.notify(ctx, notifications.EventSessionReady, notifications.Payload{
			"session": r.session.Name,
			"results": strconv.Itoa(r.processedTotal),
		})
	}
}

func (s *Service) chunkSize() int {
	if s.cfg.Processing.ChunkSize > 0 {
		return s.cfg.Processing.ChunkSize
	}
	return 50
}

func (s *Service) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, event, payload); err != nil {
		s.logger.Warn("failed to publish notification",
			logging.String("event", string(event)),
			logging.Error(err))
	}
}
