package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const runColumns = "id, session_id, status, current_stage, total_raw, processed_count, duplicate_count, error_count, force_reprocess, cancel_requested, error_message, started_at, completed_at, created_at, updated_at"

// CreateRun inserts a pending run for the session. The partial unique index
// on non-terminal runs rejects a second concurrent invocation; that conflict
// surfaces as ErrActiveRunExists.
func (s *Store) CreateRun(ctx context.Context, sessionID int64, force bool, totalRaw int) (*ProcessingRun, error) {
	now := formatTime(time.Now())
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO processing_runs (session_id, status, total_raw, force_reprocess, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, string(RunPending), totalRaw, boolToInt(force), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("session %d: %w", sessionID, ErrActiveRunExists)
		}
		return nil, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetRun(ctx, id)
}

// GetRun fetches a run with its ordered per-item errors.
func (s *Store) GetRun(ctx context.Context, id int64) (*ProcessingRun, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+runColumns+" FROM processing_runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if err := s.loadRunErrors(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// ActiveRunForSession returns the session's non-terminal run, if one exists.
func (s *Store) ActiveRunForSession(ctx context.Context, sessionID int64) (*ProcessingRun, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+runColumns+" FROM processing_runs WHERE session_id = ? AND status IN (?, ?)",
		sessionID, string(RunPending), string(RunRunning))
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("active run for session %d: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get active run: %w", err)
	}
	if err := s.loadRunErrors(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns runs, newest first, optionally filtered to one session.
// A sessionID of 0 returns runs for every session.
func (s *Store) ListRuns(ctx context.Context, sessionID int64) ([]*ProcessingRun, error) {
	query := "SELECT " + runColumns + " FROM processing_runs"
	var args []any
	if sessionID != 0 {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}
	query += " ORDER BY id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*ProcessingRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	for _, run := range runs {
		if err := s.loadRunErrors(ctx, run); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// RunStats returns the number of runs per status.
func (s *Store) RunStats(ctx context.Context) (map[RunStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(1) FROM processing_runs GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("run stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[RunStatus]int)
	for rows.Next() {
		var (
			statusStr string
			count     int
		)
		if err := rows.Scan(&statusStr, &count); err != nil {
			return nil, fmt.Errorf("scan run stat: %w", err)
		}
		stats[RunStatus(statusStr)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run stats: %w", err)
	}
	return stats, nil
}

// MarkRunRunning transitions a pending run to running and stamps started_at.
func (s *Store) MarkRunRunning(ctx context.Context, id int64) error {
	now := formatTime(time.Now())
	res, err := s.db.ExecContext(ctx,
		"UPDATE processing_runs SET status = ?, started_at = ?, updated_at = ? WHERE id = ? AND status = ?",
		string(RunRunning), now, now, id, string(RunPending),
	)
	if err != nil {
		return fmt.Errorf("mark run running: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %d is not pending: %w", id, ErrNotFound)
	}
	return nil
}

// SetRunStage records the pipeline stage currently executing.
func (s *Store) SetRunStage(ctx context.Context, id int64, stage Stage) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE processing_runs SET current_stage = ?, updated_at = ? WHERE id = ?",
		string(stage), formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("set run stage: %w", err)
	}
	return nil
}

// AddRunError records a per-item failure and bumps the run's error count.
func (s *Store) AddRunError(ctx context.Context, runID, rawResultID int64, message string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run error tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := formatTime(time.Now())
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO run_errors (run_id, raw_result_id, message, created_at) VALUES (?, ?, ?, ?)",
		runID, rawResultID, message, now,
	); err != nil {
		return fmt.Errorf("insert run error: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE processing_runs SET error_count = error_count + 1, updated_at = ? WHERE id = ?",
		now, runID,
	); err != nil {
		return fmt.Errorf("bump error count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run error: %w", err)
	}
	return nil
}

// SetRunCounts updates the processed and duplicate counters.
func (s *Store) SetRunCounts(ctx context.Context, id int64, processed, duplicates int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE processing_runs SET processed_count = ?, duplicate_count = ?, updated_at = ? WHERE id = ?",
		processed, duplicates, formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("set run counts: %w", err)
	}
	return nil
}

// RequestCancel flags a non-terminal run for cancellation. Returns false when
// the run was already terminal (a no-op per the cancel contract).
func (s *Store) RequestCancel(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE processing_runs SET cancel_requested = 1, updated_at = ? WHERE id = ? AND status IN (?, ?)",
		formatTime(time.Now()), id, string(RunPending), string(RunRunning),
	)
	if err != nil {
		return false, fmt.Errorf("request cancel: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// CancelRequested reports whether cancellation has been requested for a run.
func (s *Store) CancelRequested(ctx context.Context, id int64) (bool, error) {
	var flag int
	err := s.db.QueryRowContext(ctx,
		"SELECT cancel_requested FROM processing_runs WHERE id = ?", id).Scan(&flag)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("run %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("read cancel flag: %w", err)
	}
	return flag != 0, nil
}

// FinalizeRun moves a run into a terminal status and stamps completed_at.
// The optional message preserves setup-failure context for operators.
func (s *Store) FinalizeRun(ctx context.Context, id int64, status RunStatus, message string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("finalize run: %q is not terminal", status)
	}
	now := formatTime(time.Now())
	res, err := s.db.ExecContext(ctx,
		`UPDATE processing_runs SET status = ?, error_message = ?, completed_at = ?, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		string(status), nullableString(message), now, now, id, string(RunPending), string(RunRunning),
	)
	if err != nil {
		return fmt.Errorf("finalize run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %d already terminal: %w", id, ErrNotFound)
	}
	return nil
}

// FailAbandonedRuns marks every non-terminal run failed. Called on daemon
// startup so runs orphaned by a crash or kill do not block their sessions.
func (s *Store) FailAbandonedRuns(ctx context.Context, message string) (int64, error) {
	now := formatTime(time.Now())
	res, err := s.db.ExecContext(ctx,
		`UPDATE processing_runs SET status = ?, error_message = ?, completed_at = ?, updated_at = ?
         WHERE status IN (?, ?)`,
		string(RunFailed), nullableString(message), now, now, string(RunPending), string(RunRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("fail abandoned runs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

func (s *Store) loadRunErrors(ctx context.Context, run *ProcessingRun) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT raw_result_id, message FROM run_errors WHERE run_id = ? ORDER BY id", run.ID)
	if err != nil {
		return fmt.Errorf("list run errors: %w", err)
	}
	defer rows.Close()

	run.Errors = nil
	for rows.Next() {
		var item RunError
		if err := rows.Scan(&item.RawResultID, &item.Message); err != nil {
			return fmt.Errorf("scan run error: %w", err)
		}
		run.Errors = append(run.Errors, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate run errors: %w", err)
	}
	return nil
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*ProcessingRun, error) {
	var (
		run             ProcessingRun
		statusStr       string
		stageStr        sql.NullString
		force           sql.NullInt64
		cancelRequested sql.NullInt64
		errorMessage    sql.NullString
		startedRaw      sql.NullString
		completedRaw    sql.NullString
		createdRaw      string
		updatedRaw      string
	)
	if err := scanner.Scan(
		&run.ID,
		&run.SessionID,
		&statusStr,
		&stageStr,
		&run.TotalRaw,
		&run.ProcessedCount,
		&run.DuplicateCount,
		&run.ErrorCount,
		&force,
		&cancelRequested,
		&errorMessage,
		&startedRaw,
		&completedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	run.Status = RunStatus(statusStr)
	run.CurrentStage = Stage(stageStr.String)
	if force.Valid {
		run.Force = force.Int64 != 0
	}
	if cancelRequested.Valid {
		run.CancelRequested = cancelRequested.Int64 != 0
	}
	run.ErrorMessage = errorMessage.String
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			run.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			run.CompletedAt = &completed
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		run.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		run.UpdatedAt = updated
	}
	return &run, nil
}
