package testsupport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"greylit/internal/config"
	"greylit/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewSession creates a review session for tests using the provided store.
func NewSession(t testing.TB, st *store.Store, name string) *store.Session {
	t.Helper()

	session, err := st.CreateSession(context.Background(), name, store.SessionCreated)
	if err != nil {
		t.Fatalf("store.CreateSession: %v", err)
	}
	return session
}

// SeedRawResults inserts raw results with sequential positions starting at 0
// and returns them with ids assigned.
func SeedRawResults(t testing.TB, st *store.Store, sessionID int64, urls ...string) []*store.RawResult {
	t.Helper()

	results := make([]*store.RawResult, 0, len(urls))
	for i, url := range urls {
		results = append(results, &store.RawResult{
			SessionID:   sessionID,
			Position:    i,
			URL:         url,
			Title:       fmt.Sprintf("Result %d", i),
			Snippet:     fmt.Sprintf("Snippet for result %d", i),
			Domain:      "example.org",
			RetrievedAt: time.Now().UTC(),
		})
	}
	if err := st.InsertRawResults(context.Background(), results); err != nil {
		t.Fatalf("store.InsertRawResults: %v", err)
	}
	return results
}
