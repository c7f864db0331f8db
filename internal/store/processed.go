package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const processedColumns = "id, session_id, raw_result_id, position, normalized_url, title, snippet, domain, file_type, content_type, estimated_language, quality_score, is_duplicate, duplicate_group_id, extra_metadata, processed_at"

// UpsertProcessedResults writes a chunk of processed results in one
// transaction, keyed by raw_result_id. Reprocessing overwrites the existing
// row; duplicate flags are reset because detection re-runs afterwards.
func (s *Store) UpsertProcessedResults(ctx context.Context, results []*ProcessedResult) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin processed tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO processed_results (
            session_id, raw_result_id, position, normalized_url, title, snippet, domain,
            file_type, content_type, estimated_language, quality_score,
            is_duplicate, duplicate_group_id, extra_metadata, processed_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, ?, ?)
        ON CONFLICT(raw_result_id) DO UPDATE SET
            position = excluded.position,
            normalized_url = excluded.normalized_url,
            title = excluded.title,
            snippet = excluded.snippet,
            domain = excluded.domain,
            file_type = excluded.file_type,
            content_type = excluded.content_type,
            estimated_language = excluded.estimated_language,
            quality_score = excluded.quality_score,
            is_duplicate = 0,
            duplicate_group_id = NULL,
            extra_metadata = excluded.extra_metadata,
            processed_at = excluded.processed_at`)
	if err != nil {
		return fmt.Errorf("prepare processed upsert: %w", err)
	}
	defer stmt.Close()

	for _, result := range results {
		meta, err := encodeMetadata(result.ExtraMetadata)
		if err != nil {
			return err
		}
		processedAt := result.ProcessedAt
		if processedAt.IsZero() {
			processedAt = time.Now()
		}
		if _, err := stmt.ExecContext(ctx,
			result.SessionID,
			result.RawResultID,
			result.Position,
			result.NormalizedURL,
			result.Title,
			result.Snippet,
			result.Domain,
			result.FileType,
			result.ContentType,
			result.EstimatedLanguage,
			result.QualityScore,
			meta,
			formatTime(processedAt),
		); err != nil {
			return fmt.Errorf("upsert processed result for raw %d: %w", result.RawResultID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit processed results: %w", err)
	}
	return nil
}

// ListProcessedResults returns the session's processed results ordered by
// position.
func (s *Store) ListProcessedResults(ctx context.Context, sessionID int64) ([]*ProcessedResult, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+processedColumns+" FROM processed_results WHERE session_id = ? ORDER BY position",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list processed results: %w", err)
	}
	defer rows.Close()

	var results []*ProcessedResult
	for rows.Next() {
		result, err := scanProcessedResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan processed result: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate processed results: %w", err)
	}
	return results, nil
}

// GetProcessedByRawResult fetches the processed row for a raw result, if any.
func (s *Store) GetProcessedByRawResult(ctx context.Context, rawResultID int64) (*ProcessedResult, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+processedColumns+" FROM processed_results WHERE raw_result_id = ?", rawResultID)
	result, err := scanProcessedResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("processed result for raw %d: %w", rawResultID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get processed result: %w", err)
	}
	return result, nil
}

// ProcessedRawResultIDs returns the raw result ids that already have a
// processed row, used to skip completed items on re-invocation.
func (s *Store) ProcessedRawResultIDs(ctx context.Context, sessionID int64) (map[int64]struct{}, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT raw_result_id FROM processed_results WHERE session_id = ?", sessionID)
	if err != nil {
		return nil, fmt.Errorf("list processed raw ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan raw id: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw ids: %w", err)
	}
	return ids, nil
}

// ReplaceDuplicateGroups atomically replaces the session's duplicate groups
// and rewrites duplicate flags on processed results. The canonical member
// keeps is_duplicate = 0; every member carries the group id.
func (s *Store) ReplaceDuplicateGroups(ctx context.Context, sessionID int64, groups []*DuplicateGroup) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin groups tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM duplicate_groups WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("clear duplicate groups: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE processed_results SET is_duplicate = 0, duplicate_group_id = NULL WHERE session_id = ?",
		sessionID); err != nil {
		return fmt.Errorf("reset duplicate flags: %w", err)
	}

	now := formatTime(time.Now())
	for _, group := range groups {
		members, err := encodeIDList(group.MemberResultIDs)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO duplicate_groups (id, session_id, canonical_result_id, member_result_ids, detection_method, confidence_score, created_at)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			group.ID,
			sessionID,
			group.CanonicalResultID,
			members,
			group.DetectionMethod,
			group.ConfidenceScore,
			now,
		); err != nil {
			return fmt.Errorf("insert duplicate group %s: %w", group.ID, err)
		}

		if len(group.MemberResultIDs) > 0 {
			args := make([]any, 0, len(group.MemberResultIDs)+1)
			args = append(args, group.ID)
			for _, id := range group.MemberResultIDs {
				args = append(args, id)
			}
			query := "UPDATE processed_results SET duplicate_group_id = ? WHERE id IN (" +
				makePlaceholders(len(group.MemberResultIDs)) + ")"
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("tag group members: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE processed_results SET is_duplicate = 1 WHERE duplicate_group_id = ? AND id != ?",
			group.ID, group.CanonicalResultID); err != nil {
			return fmt.Errorf("mark duplicates: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit duplicate groups: %w", err)
	}
	return nil
}

// ListDuplicateGroups returns the session's duplicate groups ordered by the
// canonical member's position.
func (s *Store) ListDuplicateGroups(ctx context.Context, sessionID int64) ([]*DuplicateGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT g.id, g.session_id, g.canonical_result_id, g.member_result_ids, g.detection_method, g.confidence_score, g.created_at
        FROM duplicate_groups g
        LEFT JOIN processed_results p ON p.id = g.canonical_result_id
        WHERE g.session_id = ?
        ORDER BY p.position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list duplicate groups: %w", err)
	}
	defer rows.Close()

	var groups []*DuplicateGroup
	for rows.Next() {
		var (
			group      DuplicateGroup
			membersRaw string
			createdRaw string
		)
		if err := rows.Scan(
			&group.ID,
			&group.SessionID,
			&group.CanonicalResultID,
			&membersRaw,
			&group.DetectionMethod,
			&group.ConfidenceScore,
			&createdRaw,
		); err != nil {
			return nil, fmt.Errorf("scan duplicate group: %w", err)
		}
		members, err := decodeIDList(membersRaw)
		if err != nil {
			return nil, err
		}
		group.MemberResultIDs = members
		if created, err := parseTimeString(createdRaw); err == nil {
			group.CreatedAt = created
		}
		groups = append(groups, &group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate duplicate groups: %w", err)
	}
	return groups, nil
}

func scanProcessedResult(scanner interface{ Scan(dest ...any) error }) (*ProcessedResult, error) {
	var (
		result       ProcessedResult
		isDuplicate  sql.NullInt64
		groupID      sql.NullString
		metadataRaw  sql.NullString
		processedRaw string
	)
	if err := scanner.Scan(
		&result.ID,
		&result.SessionID,
		&result.RawResultID,
		&result.Position,
		&result.NormalizedURL,
		&result.Title,
		&result.Snippet,
		&result.Domain,
		&result.FileType,
		&result.ContentType,
		&result.EstimatedLanguage,
		&result.QualityScore,
		&isDuplicate,
		&groupID,
		&metadataRaw,
		&processedRaw,
	); err != nil {
		return nil, err
	}
	if isDuplicate.Valid {
		result.IsDuplicate = isDuplicate.Int64 != 0
	}
	result.DuplicateGroupID = groupID.String
	if metadataRaw.Valid {
		meta, err := decodeMetadata(metadataRaw.String)
		if err != nil {
			return nil, err
		}
		result.ExtraMetadata = meta
	}
	if processed, err := parseTimeString(processedRaw); err == nil {
		result.ProcessedAt = processed
	}
	return &result, nil
}
