package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"greylit/internal/logging"
	"greylit/internal/store"
)

// Reporter appends entries to a run's progress feed and mirrors them to the
// structured log. Reporting never fails the pipeline: persistence errors are
// logged and dropped.
type Reporter struct {
	store  *store.Store
	logger *slog.Logger
	runID  int64
}

// NewReporter builds a reporter for one processing run.
func NewReporter(st *store.Store, logger *slog.Logger, runID int64) *Reporter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reporter{store: st, logger: logger, runID: runID}
}

// Stage records entry into a pipeline stage. The run's current stage is
// updated alongside the feed entry.
func (r *Reporter) Stage(ctx context.Context, stage store.Stage, format string, args ...any) {
	if r == nil {
		return
	}
	if err := r.store.SetRunStage(ctx, r.runID, stage); err != nil {
		r.logger.Warn("failed to update run stage",
			logging.String(logging.FieldStage, string(stage)),
			logging.Error(err))
	}
	r.Event(ctx, stage, format, args...)
}

// Event appends a feed entry without changing the current stage.
func (r *Reporter) Event(ctx context.Context, stage store.Stage, format string, args ...any) {
	if r == nil {
		return
	}
	message := fmt.Sprintf(format, args...)
	if err := r.store.AppendRunEvent(ctx, r.runID, stage, message); err != nil {
		r.logger.Warn("failed to append run event",
			logging.String(logging.FieldStage, string(stage)),
			logging.Error(err))
	}
	r.logger.Info(message, logging.String(logging.FieldStage, string(stage)))
}
