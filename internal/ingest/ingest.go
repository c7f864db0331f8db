package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"greylit/internal/normalize"
	"greylit/internal/store"
)

var (
	// ErrNoEntries reports an import document with nothing to insert.
	ErrNoEntries = errors.New("no results to import")
	// ErrInvalid marks payloads rejected by validation before any write.
	ErrInvalid = errors.New("invalid import")
)

// Entry is one raw result in an import document. Only url is required:
// position falls back to array order after the session's current maximum,
// domain is derived from the url host, retrieved_at defaults to now.
type Entry struct {
	Position    *int            `json:"position,omitempty"`
	URL         string          `json:"url"`
	Title       string          `json:"title,omitempty"`
	Snippet     string          `json:"snippet,omitempty"`
	Domain      string          `json:"domain,omitempty"`
	RawPayload  json.RawMessage `json:"raw_payload,omitempty"`
	RetrievedAt string          `json:"retrieved_at,omitempty"`
}

// document is the wrapper form {"results": [...]}; a bare array is also
// accepted.
type document struct {
	Results []Entry `json:"results"`
}

// Importer appends raw results to sessions.
type Importer struct {
	store *store.Store
}

// NewImporter builds an importer over the shared store.
func NewImporter(st *store.Store) *Importer {
	return &Importer{store: st}
}

// ImportReader decodes an import document and inserts its entries.
func (im *Importer) ImportReader(ctx context.Context, sessionID int64, r io.Reader) ([]*store.RawResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read import document: %w", err)
	}
	entries, err := decode(data)
	if err != nil {
		return nil, err
	}
	return im.Import(ctx, sessionID, entries)
}

// Import validates entries and appends them to the session in one
// transaction.
func (im *Importer) Import(ctx context.Context, sessionID int64, entries []Entry) ([]*store.RawResult, error) {
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}

	exists, err := im.store.SessionExists(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("check session %d: %w", sessionID, err)
	}
	if !exists {
		return nil, fmt.Errorf("session %d: %w", sessionID, store.ErrNotFound)
	}

	maxPosition, err := im.store.MaxRawPosition(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read max position for session %d: %w", sessionID, err)
	}

	next := maxPosition + 1
	results := make([]*store.RawResult, 0, len(entries))
	for i, entry := range entries {
		url := strings.TrimSpace(entry.URL)
		if url == "" {
			return nil, fmt.Errorf("%w: entry %d: url is required", ErrInvalid, i)
		}

		position := next
		if entry.Position != nil {
			position = *entry.Position
		}
		if position >= next {
			next = position + 1
		}

		domain := strings.TrimSpace(entry.Domain)
		if domain == "" {
			domain = normalize.Host(url)
		}

		var retrievedAt time.Time
		if raw := strings.TrimSpace(entry.RetrievedAt); raw != "" {
			retrievedAt, err = time.Parse(time.RFC3339, raw)
			if err != nil {
				return nil, fmt.Errorf("%w: entry %d: parse retrieved_at: %v", ErrInvalid, i, err)
			}
		}

		results = append(results, &store.RawResult{
			SessionID:   sessionID,
			Position:    position,
			URL:         url,
			Title:       strings.TrimSpace(entry.Title),
			Snippet:     strings.TrimSpace(entry.Snippet),
			Domain:      domain,
			RawPayload:  string(entry.RawPayload),
			RetrievedAt: retrievedAt,
		})
	}

	if err := im.store.InsertRawResults(ctx, results); err != nil {
		return nil, fmt.Errorf("insert raw results: %w", err)
	}
	return results, nil
}

// decode accepts either a bare JSON array of entries or the {"results": [...]}
// wrapper.
func decode(data []byte) ([]Entry, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, ErrNoEntries
	}
	if strings.HasPrefix(trimmed, "[") {
		var entries []Entry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("%w: decode import document: %v", ErrInvalid, err)
		}
		return entries, nil
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode import document: %v", ErrInvalid, err)
	}
	return doc.Results, nil
}
