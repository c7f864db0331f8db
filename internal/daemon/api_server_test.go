package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"greylit/internal/api"
	"greylit/internal/config"
	"greylit/internal/logging"
	"greylit/internal/store"
	"greylit/internal/testsupport"
)

func newAPIFixture(t *testing.T, mutate func(*config.Config)) (*apiServer, *Daemon, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if mutate != nil {
		mutate(cfg)
	}
	st := testsupport.MustOpenStore(t, cfg)
	d, err := New(cfg, st, logging.NewNop(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})
	srv, err := newAPIServer(cfg, d, logging.NewNop())
	if err != nil {
		t.Fatalf("newAPIServer: %v", err)
	}
	if srv == nil {
		t.Fatal("expected api server for configured bind")
	}
	return srv, d, st
}

func doRequest(t *testing.T, srv *apiServer, method, path string, body []byte, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	w := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestAPIServerStatusAndHealth(t *testing.T) {
	srv, _, st := newAPIFixture(t, nil)

	w := doRequest(t, srv, http.MethodGet, "/healthz", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from healthz, got %d", w.Code)
	}

	w = doRequest(t, srv, http.MethodGet, "/api/status", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from status, got %d", w.Code)
	}
	status := decodeBody[api.DaemonStatus](t, w)
	if status.Running {
		t.Fatal("expected stopped daemon in status")
	}
	if status.PID <= 0 {
		t.Fatalf("expected positive pid, got %d", status.PID)
	}
	if status.DatabasePath != st.Path() {
		t.Fatalf("unexpected database path %q", status.DatabasePath)
	}

	w = doRequest(t, srv, http.MethodPost, "/api/status", nil, nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for POST status, got %d", w.Code)
	}

	w = doRequest(t, srv, http.MethodGet, "/metrics", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from metrics, got %d", w.Code)
	}
}

func TestAPIServerProcessRequiresStartedDaemon(t *testing.T) {
	srv, _, st := newAPIFixture(t, nil)
	session := testsupport.NewSession(t, st, "Offline Session")

	w := doRequest(t, srv, http.MethodPost, fmt.Sprintf("/api/sessions/%d/process", session.ID), nil, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while daemon stopped, got %d", w.Code)
	}
}

func TestAPIServerSessionLifecycle(t *testing.T) {
	srv, d, st := newAPIFixture(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	session := testsupport.NewSession(t, st, "Coastal Flooding")
	testsupport.SeedRawResults(t, st, session.ID,
		"https://example.org/flood-report.pdf",
		"https://city.gov/coastal-plan",
	)

	w := doRequest(t, srv, http.MethodPost, fmt.Sprintf("/api/sessions/%d/process", session.ID), nil, nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 from process, got %d: %s", w.Code, w.Body.String())
	}
	started := decodeBody[api.ProcessResponse](t, w)
	if started.RunID <= 0 {
		t.Fatalf("expected positive run id, got %d", started.RunID)
	}

	deadline := time.Now().Add(10 * time.Second)
	var run *store.ProcessingRun
	for time.Now().Before(deadline) {
		var err error
		run, err = st.GetRun(context.Background(), started.RunID)
		if err != nil {
			t.Fatalf("GetRun: %v", err)
		}
		if run.IsTerminal() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if run == nil || !run.IsTerminal() {
		t.Fatal("run never reached a terminal status")
	}
	if run.Status != store.RunCompleted {
		t.Fatalf("expected completed run, got %s (%s)", run.Status, run.ErrorMessage)
	}

	w = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/api/runs/%d", started.RunID), nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from run describe, got %d", w.Code)
	}
	described := decodeBody[api.Run](t, w)
	if described.ID != started.RunID || described.ProcessedCount != 2 {
		t.Fatalf("unexpected run payload: %+v", described)
	}
	if len(described.Events) == 0 {
		t.Fatal("expected progress events in run payload")
	}

	w = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/api/runs?session=%d", session.ID), nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from run list, got %d", w.Code)
	}
	runList := decodeBody[api.RunListResponse](t, w)
	if len(runList.Runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runList.Runs))
	}

	w = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/api/sessions/%d/results", session.ID), nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from results, got %d", w.Code)
	}
	results := decodeBody[api.SessionResults](t, w)
	if len(results.Results) != 2 {
		t.Fatalf("expected 2 processed results, got %d", len(results.Results))
	}

	w = doRequest(t, srv, http.MethodPost, fmt.Sprintf("/api/runs/%d/cancel", started.RunID), nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from cancel, got %d", w.Code)
	}
	cancelResp := decodeBody[api.CancelResponse](t, w)
	if cancelResp.Accepted {
		t.Fatal("expected cancel of terminal run to be rejected")
	}

	payload := []byte(`[{"url": "https://press.org/briefing", "title": "Briefing"}]`)
	w = doRequest(t, srv, http.MethodPost, fmt.Sprintf("/api/sessions/%d/results:import", session.ID), payload, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 from import, got %d: %s", w.Code, w.Body.String())
	}
	importResp := decodeBody[api.ImportResponse](t, w)
	if importResp.Imported != 1 || importResp.SessionID != session.ID {
		t.Fatalf("unexpected import response: %+v", importResp)
	}

	w = doRequest(t, srv, http.MethodPost, "/api/sessions/9999/process", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", w.Code)
	}

	w = doRequest(t, srv, http.MethodGet, "/api/runs/not-a-number", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid run id, got %d", w.Code)
	}

	w = doRequest(t, srv, http.MethodGet, fmt.Sprintf("/api/runs/%d/bogus", started.RunID), nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown run action, got %d", w.Code)
	}
}

func TestAPIServerBearerAuth(t *testing.T) {
	srv, _, _ := newAPIFixture(t, func(cfg *config.Config) {
		cfg.Paths.APIToken = "sesame"
	})

	w := doRequest(t, srv, http.MethodGet, "/api/status", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer wrong")
	w = doRequest(t, srv, http.MethodGet, "/api/status", nil, header)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", w.Code)
	}

	header.Set("Authorization", "Bearer sesame")
	w = doRequest(t, srv, http.MethodGet, "/api/status", nil, header)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", w.Code)
	}

	// Health stays reachable for probes even when a token is configured.
	w = doRequest(t, srv, http.MethodGet, "/healthz", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from healthz, got %d", w.Code)
	}
}
