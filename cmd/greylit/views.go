package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"greylit/internal/api"
)

func buildRunStatsRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{formatStatusLabel(key), strconv.Itoa(stats[key])})
	}
	return rows
}

func buildSessionRows(sessions []api.Session) [][]string {
	rows := make([][]string, 0, len(sessions))
	for _, session := range sessions {
		rows = append(rows, []string{
			strconv.FormatInt(session.ID, 10),
			session.Name,
			formatStatusLabel(session.Status),
			strconv.Itoa(session.RawCount),
			formatDisplayTime(session.CreatedAt),
		})
	}
	return rows
}

func buildRunRows(runs []api.Run) [][]string {
	sorted := make([]api.Run, len(runs))
	copy(sorted, runs)
	sort.Slice(sorted, func(i, j int) bool {
		ti := parseDisplayTime(sorted[i].CreatedAt)
		tj := parseDisplayTime(sorted[j].CreatedAt)
		if ti.Equal(tj) {
			return sorted[i].ID > sorted[j].ID
		}
		return ti.After(tj)
	})

	rows := make([][]string, 0, len(sorted))
	for _, run := range sorted {
		rows = append(rows, []string{
			strconv.FormatInt(run.ID, 10),
			strconv.FormatInt(run.SessionID, 10),
			formatStatusLabel(run.Status),
			formatStatusLabel(run.CurrentStage),
			fmt.Sprintf("%d/%d", run.ProcessedCount, run.TotalRaw),
			strconv.Itoa(run.DuplicateCount),
			strconv.Itoa(run.ErrorCount),
			formatDisplayTime(run.StartedAt),
		})
	}
	return rows
}

func buildResultRows(results []api.Result) [][]string {
	rows := make([][]string, 0, len(results))
	for _, result := range results {
		duplicate := "-"
		if result.IsDuplicate {
			duplicate = truncateValue(result.DuplicateGroupID, 8)
		}
		rows = append(rows, []string{
			strconv.FormatInt(result.ID, 10),
			strconv.Itoa(result.Position),
			truncateValue(result.NormalizedURL, 56),
			result.FileType,
			result.EstimatedLanguage,
			strconv.Itoa(result.QualityScore),
			duplicate,
		})
	}
	return rows
}

func buildDuplicateGroupRows(groups []api.DuplicateGroup) [][]string {
	rows := make([][]string, 0, len(groups))
	for _, group := range groups {
		members := make([]string, 0, len(group.MemberResultIDs))
		for _, id := range group.MemberResultIDs {
			members = append(members, strconv.FormatInt(id, 10))
		}
		rows = append(rows, []string{
			truncateValue(group.ID, 8),
			group.DetectionMethod,
			strconv.FormatInt(group.CanonicalResultID, 10),
			strings.Join(members, ", "),
			fmt.Sprintf("%.2f", group.ConfidenceScore),
		})
	}
	return rows
}

func formatStatusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	parts := strings.Split(status, "_")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if lower == "" {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	return value
}

func parseDisplayTime(value string) time.Time {
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

func truncateValue(value string, max int) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	if len(value) > max {
		return value[:max]
	}
	return value
}
