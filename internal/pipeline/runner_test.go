package pipeline_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"greylit/internal/dedup"
	"greylit/internal/store"
	"greylit/internal/testsupport"
)

func TestRunCompletesAndMarksSessionReady(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	session := testsupport.NewSession(t, st, "Asthma Review")
	testsupport.SeedRawResults(t, st, session.ID,
		"https://example.org/a",
		"https://example.org/b",
		"https://example.org/c",
	)

	notifier := &recordingNotifier{}
	run := startAndWait(t, cfg, st, notifier, session.ID, false)

	if run.Status != store.RunCompleted {
		t.Fatalf("run status = %s, want completed (message %q)", run.Status, run.ErrorMessage)
	}
	if run.ProcessedCount != 3 || run.DuplicateCount != 0 || run.ErrorCount != 0 {
		t.Fatalf("run counts = %d/%d/%d, want 3/0/0",
			run.ProcessedCount, run.DuplicateCount, run.ErrorCount)
	}
	if run.StartedAt == nil || run.CompletedAt == nil {
		t.Fatal("expected started_at and completed_at to be set")
	}

	if got := mustGetSession(t, st, session.ID).Status; got != store.SessionReady {
		t.Fatalf("session status = %s, want %s", got, store.SessionReady)
	}

	processed := mustProcessed(t, st, session.ID)
	if len(processed) != 3 {
		t.Fatalf("processed results = %d, want 3", len(processed))
	}
	for i, result := range processed {
		if result.Position != i {
			t.Fatalf("processed[%d].Position = %d, want %d", i, result.Position, i)
		}
	}
	if processed[0].NormalizedURL != "https://example.org/a" {
		t.Fatalf("normalized url = %q", processed[0].NormalizedURL)
	}

	events, err := st.ListRunEvents(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("ListRunEvents failed: %v", err)
	}
	var stageOrder []store.Stage
	seen := make(map[store.Stage]bool)
	for _, event := range events {
		if !seen[event.Stage] {
			seen[event.Stage] = true
			stageOrder = append(stageOrder, event.Stage)
		}
	}
	want := store.Stages()
	if len(stageOrder) != len(want) {
		t.Fatalf("stage order = %v, want %v", stageOrder, want)
	}
	for i, stage := range want {
		if stageOrder[i] != stage {
			t.Fatalf("stage order = %v, want %v", stageOrder, want)
		}
	}

	recorded := notifier.recorded()
	if len(recorded) != 3 {
		t.Fatalf("notifications = %d, want 3", len(recorded))
	}
	if recorded[0].event != "run_started" || recorded[0].payload["total"] != "3" {
		t.Fatalf("first notification = %v", recorded[0])
	}
	if recorded[1].event != "run_completed" || recorded[1].payload["status"] != "completed" || recorded[1].payload["processed"] != "3" {
		t.Fatalf("completion notification = %v", recorded[1])
	}
	final := recorded[2]
	if final.event != "session_ready" || final.payload["results"] != "3" {
		t.Fatalf("final notification = %v", final)
	}
}

func TestRunGroupsDuplicatesAndScoresQuality(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	session := testsupport.NewSession(t, st, "Scenario")

	ctx := context.Background()
	raws := []*store.RawResult{
		{SessionID: session.ID, Position: 1, URL: "http://a.org/doc.pdf", Title: "Report A", Snippet: "Annual asthma report", Domain: "a.org"},
		{SessionID: session.ID, Position: 2, URL: "https://a.org/doc.pdf?utm_source=x", Title: "Report A copy", Snippet: "Annual asthma report", Domain: "a.org"},
		{SessionID: session.ID, Position: 3, URL: "http://b.org/x", Title: "", Snippet: "", Domain: "b.org"},
	}
	if err := st.InsertRawResults(ctx, raws); err != nil {
		t.Fatalf("InsertRawResults failed: %v", err)
	}

	run := startAndWait(t, cfg, st, &recordingNotifier{}, session.ID, false)
	if run.Status != store.RunCompleted {
		t.Fatalf("run status = %s, want completed", run.Status)
	}
	if run.ProcessedCount != 3 || run.DuplicateCount != 1 {
		t.Fatalf("counts = %d processed / %d duplicates, want 3/1", run.ProcessedCount, run.DuplicateCount)
	}

	processed := mustProcessed(t, st, session.ID)
	first := byRawResult(t, processed, raws[0].ID)
	second := byRawResult(t, processed, raws[1].ID)
	third := byRawResult(t, processed, raws[2].ID)

	if first.NormalizedURL != "https://a.org/doc.pdf" || first.NormalizedURL != second.NormalizedURL {
		t.Fatalf("normalized urls = %q vs %q", first.NormalizedURL, second.NormalizedURL)
	}

	groups, err := st.ListDuplicateGroups(ctx, session.ID)
	if err != nil {
		t.Fatalf("ListDuplicateGroups failed: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	group := groups[0]
	if group.CanonicalResultID != first.ID {
		t.Fatalf("canonical = %d, want %d (position 1)", group.CanonicalResultID, first.ID)
	}
	if group.DetectionMethod != dedup.MethodExactURL || group.ConfidenceScore != 1.0 {
		t.Fatalf("group method/confidence = %s/%v", group.DetectionMethod, group.ConfidenceScore)
	}
	if !group.Contains(second.ID) || len(group.MemberResultIDs) != 2 {
		t.Fatalf("members = %v", group.MemberResultIDs)
	}

	if first.IsDuplicate {
		t.Fatal("canonical member must not be flagged duplicate")
	}
	if first.DuplicateGroupID != group.ID || second.DuplicateGroupID != group.ID {
		t.Fatal("both pair members must carry the group id")
	}
	if !second.IsDuplicate {
		t.Fatal("non-canonical member must be flagged duplicate")
	}
	if third.IsDuplicate || third.DuplicateGroupID != "" {
		t.Fatal("standalone result must stay ungrouped")
	}

	if first.QualityScore != 80 || second.QualityScore != 80 {
		t.Fatalf("pdf result scores = %d/%d, want 80/80", first.QualityScore, second.QualityScore)
	}
	if third.QualityScore != 0 {
		t.Fatalf("bare result score = %d, want 0", third.QualityScore)
	}
	if third.QualityScore >= first.QualityScore {
		t.Fatal("standalone result must score below the pdf pair")
	}
	if third.FileType != "html" || third.ContentType != "text/html" {
		t.Fatalf("standalone file/content type = %s/%s", third.FileType, third.ContentType)
	}
}

func TestRunPartialOnItemFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	session := testsupport.NewSession(t, st, "Partial")
	raws := testsupport.SeedRawResults(t, st, session.ID,
		"https://example.org/a",
		"",
		"https://example.org/b",
		"https://example.org/c",
	)

	notifier := &recordingNotifier{}
	run := startAndWait(t, cfg, st, notifier, session.ID, false)

	if run.Status != store.RunPartial {
		t.Fatalf("run status = %s, want partial", run.Status)
	}
	if run.ProcessedCount != 3 || run.ErrorCount != 1 {
		t.Fatalf("counts = %d processed / %d errors, want 3/1", run.ProcessedCount, run.ErrorCount)
	}
	if len(run.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(run.Errors))
	}
	if run.Errors[0].RawResultID != raws[1].ID {
		t.Fatalf("failing raw result = %d, want %d", run.Errors[0].RawResultID, raws[1].ID)
	}
	if !strings.Contains(run.Errors[0].Message, "no url") {
		t.Fatalf("error message = %q", run.Errors[0].Message)
	}

	if len(mustProcessed(t, st, session.ID)) != 3 {
		t.Fatal("expected three persisted results")
	}
	if got := mustGetSession(t, st, session.ID).Status; got != store.SessionReady {
		t.Fatalf("session status = %s, want %s", got, store.SessionReady)
	}

	recorded := notifier.recorded()
	if len(recorded) < 3 {
		t.Fatalf("notifications = %d, want at least 3", len(recorded))
	}
	completion := recorded[len(recorded)-2]
	if completion.event != "run_completed" || completion.payload["status"] != "partial" || completion.payload["errors"] != "1" {
		t.Fatalf("completion notification = %v", completion)
	}
	if final := recorded[len(recorded)-1]; final.event != "session_ready" {
		t.Fatalf("final notification = %v", final)
	}
}

func TestRunAllFailuresYieldFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	session := testsupport.NewSession(t, st, "AllFail")
	testsupport.SeedRawResults(t, st, session.ID, "", "")

	notifier := &recordingNotifier{}
	run := startAndWait(t, cfg, st, notifier, session.ID, false)

	if run.Status != store.RunFailed {
		t.Fatalf("run status = %s, want failed", run.Status)
	}
	if run.ProcessedCount != 0 || run.ErrorCount != 2 {
		t.Fatalf("counts = %d processed / %d errors, want 0/2", run.ProcessedCount, run.ErrorCount)
	}
	if !strings.Contains(run.ErrorMessage, "all 2") {
		t.Fatalf("run message = %q", run.ErrorMessage)
	}
	if got := mustGetSession(t, st, session.ID).Status; got != store.SessionFailed {
		t.Fatalf("session status = %s, want %s", got, store.SessionFailed)
	}

	recorded := notifier.recorded()
	final := recorded[len(recorded)-1]
	if final.event != "run_failed" || final.payload["reason"] == "" {
		t.Fatalf("final notification = %v", final)
	}
}

func TestRunsAreIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	session := testsupport.NewSession(t, st, "Idempotent")
	testsupport.SeedRawResults(t, st, session.ID,
		"https://example.org/doc.pdf",
		"https://example.org/doc.pdf?utm_source=x",
		"https://example.org/other",
	)

	first := startAndWait(t, cfg, st, &recordingNotifier{}, session.ID, false)
	if first.Status != store.RunCompleted || first.ProcessedCount != 3 || first.DuplicateCount != 1 {
		t.Fatalf("first run = %s %d/%d", first.Status, first.ProcessedCount, first.DuplicateCount)
	}

	before := mustProcessed(t, st, session.ID)
	beforeTimes := make(map[int64]time.Time, len(before))
	for _, result := range before {
		beforeTimes[result.ID] = result.ProcessedAt
	}

	second := startAndWait(t, cfg, st, &recordingNotifier{}, session.ID, false)
	if second.Status != store.RunCompleted {
		t.Fatalf("second run status = %s, want completed", second.Status)
	}
	if second.ProcessedCount != 3 || second.DuplicateCount != 1 || second.ErrorCount != 0 {
		t.Fatalf("second run counts = %d/%d/%d, want 3/1/0",
			second.ProcessedCount, second.DuplicateCount, second.ErrorCount)
	}

	after := mustProcessed(t, st, session.ID)
	if len(after) != len(before) {
		t.Fatalf("row count changed: %d -> %d", len(before), len(after))
	}
	for _, result := range after {
		prev, ok := beforeTimes[result.ID]
		if !ok {
			t.Fatalf("unexpected new processed row %d", result.ID)
		}
		if !result.ProcessedAt.Equal(prev) {
			t.Fatalf("row %d was rewritten without force", result.ID)
		}
	}

	groups, err := st.ListDuplicateGroups(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("ListDuplicateGroups failed: %v", err)
	}
	if len(groups) != 1 || len(groups[0].MemberResultIDs) != 2 {
		t.Fatalf("groups after rerun = %v", groups)
	}

	runs, err := st.ListRuns(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
}

func TestForceReprocessesEverything(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	session := testsupport.NewSession(t, st, "Force")
	testsupport.SeedRawResults(t, st, session.ID,
		"https://example.org/a",
		"https://example.org/b",
	)

	first := startAndWait(t, cfg, st, &recordingNotifier{}, session.ID, false)
	if first.Status != store.RunCompleted {
		t.Fatalf("first run status = %s", first.Status)
	}
	before := mustProcessed(t, st, session.ID)

	time.Sleep(20 * time.Millisecond)

	second := startAndWait(t, cfg, st, &recordingNotifier{}, session.ID, true)
	if second.Status != store.RunCompleted || second.ProcessedCount != 2 {
		t.Fatalf("forced run = %s %d, want completed 2", second.Status, second.ProcessedCount)
	}
	if !second.Force {
		t.Fatal("force flag not persisted on run")
	}

	after := mustProcessed(t, st, session.ID)
	if len(after) != 2 {
		t.Fatalf("row count after force = %d, want 2", len(after))
	}
	for i, result := range after {
		if result.ID != before[i].ID {
			t.Fatalf("row identity changed under force: %d -> %d", before[i].ID, result.ID)
		}
		if !result.ProcessedAt.After(before[i].ProcessedAt) {
			t.Fatalf("row %d not reprocessed under force", result.ID)
		}
	}
}

func TestCancelStopsRunCleanly(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	session := testsupport.NewSession(t, st, "Cancel")
	testsupport.SeedRawResults(t, st, session.ID,
		"https://example.org/a",
		"https://example.org/b",
		"https://example.org/c",
	)

	first := startAndWait(t, cfg, st, &recordingNotifier{}, session.ID, false)
	if first.Status != store.RunCompleted {
		t.Fatalf("setup run status = %s", first.Status)
	}
	before := mustProcessed(t, st, session.ID)

	gate := newGateNotifier()
	svc := newTestService(t, cfg, st, gate)
	ctx := context.Background()

	runID, err := svc.StartProcessing(ctx, session.ID, true)
	if err != nil {
		t.Fatalf("StartProcessing failed: %v", err)
	}

	flagged, err := svc.Cancel(ctx, runID)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if !flagged {
		t.Fatal("expected cancel request to take effect")
	}
	close(gate.release)

	run := waitForRun(t, st, runID)
	svc.Close()

	if run.Status != store.RunCancelled {
		t.Fatalf("run status = %s, want cancelled", run.Status)
	}
	if !run.CancelRequested {
		t.Fatal("cancel_requested flag not persisted")
	}
	if run.ErrorMessage != "cancelled by request" {
		t.Fatalf("run message = %q", run.ErrorMessage)
	}

	// The cancelled forced run must leave the prior results untouched.
	after := mustProcessed(t, st, session.ID)
	if len(after) != len(before) {
		t.Fatalf("row count changed: %d -> %d", len(before), len(after))
	}
	for i, result := range after {
		if !result.ProcessedAt.Equal(before[i].ProcessedAt) {
			t.Fatalf("row %d modified by cancelled run", result.ID)
		}
	}

	if got := mustGetSession(t, st, session.ID).Status; got != store.SessionProcessing {
		t.Fatalf("session status = %s, want %s after cancel", got, store.SessionProcessing)
	}

	recorded := gate.recorded()
	final := recorded[len(recorded)-1]
	if final.event != "run_completed" || final.payload["status"] != "cancelled" {
		t.Fatalf("final notification = %v", final)
	}
}

func TestWorkerPoolKeepsOutputDeterministic(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithItemWorkers(4),
		testsupport.WithChunkSize(2),
	)
	st := testsupport.MustOpenStore(t, cfg)
	session := testsupport.NewSession(t, st, "Workers")
	testsupport.SeedRawResults(t, st, session.ID,
		"https://example.org/one",
		"https://example.org/two",
		"https://example.org/two?utm_campaign=x",
		"https://example.org/three",
		"https://example.org/four",
	)

	run := startAndWait(t, cfg, st, &recordingNotifier{}, session.ID, false)
	if run.Status != store.RunCompleted {
		t.Fatalf("run status = %s, want completed", run.Status)
	}
	if run.ProcessedCount != 5 || run.DuplicateCount != 1 {
		t.Fatalf("counts = %d/%d, want 5/1", run.ProcessedCount, run.DuplicateCount)
	}

	processed := mustProcessed(t, st, session.ID)
	if len(processed) != 5 {
		t.Fatalf("processed = %d, want 5", len(processed))
	}
	for i, result := range processed {
		if result.Position != i {
			t.Fatalf("processed[%d].Position = %d", i, result.Position)
		}
	}
	if processed[1].NormalizedURL != processed[2].NormalizedURL {
		t.Fatal("tracking-parameter variant should normalize to the same url")
	}
}

func TestTitleSimilarityStrategyEndToEnd(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDedupStrategy("title_similarity"))
	st := testsupport.MustOpenStore(t, cfg)
	session := testsupport.NewSession(t, st, "Titles")

	ctx := context.Background()
	raws := []*store.RawResult{
		{SessionID: session.ID, Position: 0, URL: "https://a.org/guidance", Title: "Management of asthma in primary care", Snippet: "s", Domain: "a.org"},
		{SessionID: session.ID, Position: 1, URL: "https://b.org/mirror", Title: "Management of asthma in primary care", Snippet: "s", Domain: "b.org"},
		{SessionID: session.ID, Position: 2, URL: "https://c.org/unrelated", Title: "Diabetes screening programme evaluation", Snippet: "s", Domain: "c.org"},
	}
	if err := st.InsertRawResults(ctx, raws); err != nil {
		t.Fatalf("InsertRawResults failed: %v", err)
	}

	run := startAndWait(t, cfg, st, &recordingNotifier{}, session.ID, false)
	if run.Status != store.RunCompleted || run.DuplicateCount != 1 {
		t.Fatalf("run = %s with %d duplicates, want completed/1", run.Status, run.DuplicateCount)
	}

	groups, err := st.ListDuplicateGroups(ctx, session.ID)
	if err != nil {
		t.Fatalf("ListDuplicateGroups failed: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	if groups[0].DetectionMethod != dedup.MethodTitleSimilarity {
		t.Fatalf("method = %s, want %s", groups[0].DetectionMethod, dedup.MethodTitleSimilarity)
	}
	if groups[0].ConfidenceScore != 1.0 {
		t.Fatalf("confidence = %v, want 1.0", groups[0].ConfidenceScore)
	}

	processed := mustProcessed(t, st, session.ID)
	canonical := byRawResult(t, processed, raws[0].ID)
	if groups[0].CanonicalResultID != canonical.ID {
		t.Fatalf("canonical = %d, want %d", groups[0].CanonicalResultID, canonical.ID)
	}
}
