package daemon_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"greylit/internal/daemon"
	"greylit/internal/logging"
	"greylit/internal/store"
	"greylit/internal/testsupport"
)

func newDaemon(t *testing.T) (*daemon.Daemon, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, st, logging.NewNop(), nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})
	return d, st
}

func TestDaemonStartStop(t *testing.T) {
	d, _ := newDaemon(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	time.Sleep(50 * time.Millisecond)
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()

	first, err := daemon.New(cfg, st, logger, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		first.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	second, err := daemon.New(cfg, st, logger, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected second instance start to fail while lock is held")
	}
}

func TestDaemonProcessRequiresStart(t *testing.T) {
	d, st := newDaemon(t)
	session := testsupport.NewSession(t, st, "Stopped Daemon")

	if _, err := d.Process(context.Background(), session.ID, false); !errors.Is(err, daemon.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if _, err := d.CancelRun(context.Background(), 1); !errors.Is(err, daemon.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestDaemonImport(t *testing.T) {
	d, st := newDaemon(t)
	ctx := context.Background()

	payload := []byte(`{"results": [
		{"url": "https://example.org/white-paper.pdf", "title": "White Paper"},
		{"url": "https://gov.example/consultation", "title": "Consultation"}
	]}`)

	sessionID, imported, err := d.Import(ctx, 0, "Imported", payload)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if sessionID <= 0 || imported != 2 {
		t.Fatalf("unexpected import outcome: session=%d imported=%d", sessionID, imported)
	}

	count, err := st.CountRawResults(ctx, sessionID)
	if err != nil {
		t.Fatalf("CountRawResults: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 raw results, got %d", count)
	}

	// Appending to the same session continues the position sequence.
	more := []byte(`[{"url": "https://ngo.net/third"}]`)
	if _, imported, err = d.Import(ctx, sessionID, "", more); err != nil || imported != 1 {
		t.Fatalf("second import: imported=%d err=%v", imported, err)
	}
	raws, err := st.ListRawResults(ctx, sessionID)
	if err != nil {
		t.Fatalf("ListRawResults: %v", err)
	}
	if len(raws) != 3 || raws[2].Position != 3 {
		t.Fatalf("expected appended raw at position 3, got %+v", raws[len(raws)-1])
	}

	if _, _, err := d.Import(ctx, 9999, "", more); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown session, got %v", err)
	}
	if _, _, err := d.Import(ctx, 0, "   ", more); err == nil {
		t.Fatal("expected error when neither session id nor name is given")
	}
}
