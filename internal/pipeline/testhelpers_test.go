package pipeline_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"greylit/internal/config"
	"greylit/internal/logging"
	"greylit/internal/notifications"
	"greylit/internal/pipeline"
	"greylit/internal/store"
)

func newTestService(t *testing.T, cfg *config.Config, st *store.Store, notifier notifications.Service) *pipeline.Service {
	t.Helper()
	svc, err := pipeline.NewServiceWith(cfg, st, logging.NewNop(), notifier, nil)
	if err != nil {
		t.Fatalf("NewServiceWith failed: %v", err)
	}
	t.Cleanup(svc.Close)
	return svc
}

// startAndWait runs one processing run to its terminal state on a fresh
// service. Close blocks until the run goroutine has fully finalized, so every
// side effect is visible afterwards.
func startAndWait(t *testing.T, cfg *config.Config, st *store.Store, notifier notifications.Service, sessionID int64, force bool) *store.ProcessingRun {
	t.Helper()
	svc := newTestService(t, cfg, st, notifier)
	runID, err := svc.StartProcessing(context.Background(), sessionID, force)
	if err != nil {
		t.Fatalf("StartProcessing failed: %v", err)
	}
	svc.Close()
	return mustGetRun(t, st, runID)
}

func mustGetRun(t *testing.T, st *store.Store, runID int64) *store.ProcessingRun {
	t.Helper()
	run, err := st.GetRun(context.Background(), runID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	return run
}

// waitForRun polls until the run reaches a terminal status while the service
// stays open.
func waitForRun(t *testing.T, st *store.Store, runID int64) *store.ProcessingRun {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		run := mustGetRun(t, st, runID)
		if run.IsTerminal() {
			return run
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("run %d never reached a terminal status", runID)
	return nil
}

func mustGetSession(t *testing.T, st *store.Store, sessionID int64) *store.Session {
	t.Helper()
	session, err := st.GetSession(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	return session
}

type recordedEvent struct {
	event   notifications.Event
	payload notifications.Payload
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{event: event, payload: payload})
	return nil
}

func (n *recordingNotifier) Close() error { return nil }

func (n *recordingNotifier) recorded() []recordedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]recordedEvent, len(n.events))
	copy(out, n.events)
	return out
}

// gateNotifier holds the run inside its startup notification until released,
// giving tests a deterministic window while the run has not yet processed
// anything.
type gateNotifier struct {
	recordingNotifier
	release chan struct{}
}

func newGateNotifier() *gateNotifier {
	return &gateNotifier{release: make(chan struct{})}
}

func (g *gateNotifier) Publish(ctx context.Context, event notifications.Event, payload notifications.Payload) error {
	if event == notifications.EventRunStarted {
		<-g.release
	}
	return g.recordingNotifier.Publish(ctx, event, payload)
}

func mustProcessed(t *testing.T, st *store.Store, sessionID int64) []*store.ProcessedResult {
	t.Helper()
	processed, err := st.ListProcessedResults(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("ListProcessedResults failed: %v", err)
	}
	return processed
}

func byRawResult(t *testing.T, processed []*store.ProcessedResult, rawResultID int64) *store.ProcessedResult {
	t.Helper()
	for _, result := range processed {
		if result.RawResultID == rawResultID {
			return result
		}
	}
	t.Fatalf("no processed result for raw result %d", rawResultID)
	return nil
}
