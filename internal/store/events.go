package store

import (
	"context"
	"fmt"
	"time"
)

// AppendRunEvent adds an entry to the run's append-only progress feed.
func (s *Store) AppendRunEvent(ctx context.Context, runID int64, stage Stage, message string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO run_events (run_id, stage, message, created_at) VALUES (?, ?, ?, ?)",
		runID, string(stage), message, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("append run event: %w", err)
	}
	return nil
}

// ListRunEvents returns the run's progress feed in append order.
func (s *Store) ListRunEvents(ctx context.Context, runID int64) ([]*RunEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, run_id, stage, message, created_at FROM run_events WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list run events: %w", err)
	}
	defer rows.Close()

	var events []*RunEvent
	for rows.Next() {
		var (
			event      RunEvent
			stageStr   string
			createdRaw string
		)
		if err := rows.Scan(&event.ID, &event.RunID, &stageStr, &event.Message, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan run event: %w", err)
		}
		event.Stage = Stage(stageStr)
		if created, err := parseTimeString(createdRaw); err == nil {
			event.CreatedAt = created
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run events: %w", err)
	}
	return events, nil
}
