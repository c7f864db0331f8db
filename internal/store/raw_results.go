package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const rawResultColumns = "id, session_id, position, url, title, snippet, domain, raw_payload, retrieved_at"

// InsertRawResults appends raw results for a session in one transaction.
// Positions must already be assigned; rows are immutable once written.
func (s *Store) InsertRawResults(ctx context.Context, results []*RawResult) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin raw results tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO raw_results (session_id, position, url, title, snippet, domain, raw_payload, retrieved_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare raw result insert: %w", err)
	}
	defer stmt.Close()

	for _, raw := range results {
		if raw.RetrievedAt.IsZero() {
			raw.RetrievedAt = time.Now().UTC()
		}
		res, err := stmt.ExecContext(ctx,
			raw.SessionID,
			raw.Position,
			raw.URL,
			raw.Title,
			raw.Snippet,
			raw.Domain,
			raw.RawPayload,
			formatTime(raw.RetrievedAt),
		)
		if err != nil {
			return fmt.Errorf("insert raw result position %d: %w", raw.Position, err)
		}
		if id, err := res.LastInsertId(); err == nil {
			raw.ID = id
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit raw results: %w", err)
	}
	return nil
}

// ListRawResults returns the session's raw results ordered by position.
func (s *Store) ListRawResults(ctx context.Context, sessionID int64) ([]*RawResult, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+rawResultColumns+" FROM raw_results WHERE session_id = ? ORDER BY position",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list raw results: %w", err)
	}
	defer rows.Close()

	var results []*RawResult
	for rows.Next() {
		raw, err := scanRawResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan raw result: %w", err)
		}
		results = append(results, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw results: %w", err)
	}
	return results, nil
}

// GetRawResult fetches one raw result by id.
func (s *Store) GetRawResult(ctx context.Context, id int64) (*RawResult, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+rawResultColumns+" FROM raw_results WHERE id = ?", id)
	raw, err := scanRawResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("raw result %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get raw result: %w", err)
	}
	return raw, nil
}

// CountRawResults returns the number of raw results for a session.
func (s *Store) CountRawResults(ctx context.Context, sessionID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM raw_results WHERE session_id = ?", sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count raw results: %w", err)
	}
	return count, nil
}

// MaxRawPosition returns the highest assigned position for a session, or 0
// when the session has no raw results yet.
func (s *Store) MaxRawPosition(ctx context.Context, sessionID int64) (int, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT MAX(position) FROM raw_results WHERE session_id = ?", sessionID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max raw position: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64), nil
}

func scanRawResult(scanner interface{ Scan(dest ...any) error }) (*RawResult, error) {
	var (
		raw          RawResult
		retrievedRaw string
	)
	if err := scanner.Scan(
		&raw.ID,
		&raw.SessionID,
		&raw.Position,
		&raw.URL,
		&raw.Title,
		&raw.Snippet,
		&raw.Domain,
		&raw.RawPayload,
		&retrievedRaw,
	); err != nil {
		return nil, err
	}
	if retrieved, err := parseTimeString(retrievedRaw); err == nil {
		raw.RetrievedAt = retrieved
	}
	return &raw, nil
}
