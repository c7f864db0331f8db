package dedup_test

import (
	"math"
	"testing"

	"greylit/internal/dedup"
	"greylit/internal/store"
)

func result(id int64, position int, url, title string) *store.ProcessedResult {
	return &store.ProcessedResult{
		ID:            id,
		SessionID:     1,
		Position:      position,
		NormalizedURL: url,
		Title:         title,
	}
}

func TestDetectExactGroups(t *testing.T) {
	detector := dedup.NewDetector(nil)
	results := []*store.ProcessedResult{
		result(10, 0, "https://a.org/doc.pdf", "Report A"),
		result(11, 1, "https://a.org/doc.pdf", "Report A copy"),
		result(12, 2, "https://b.org/x", ""),
	}

	groups := detector.Detect(results)
	if len(groups) != 1 {
		t.Fatalf("expected one group, got %d", len(groups))
	}
	g := groups[0]
	if g.CanonicalResultID != 10 {
		t.Errorf("canonical = %d, want 10", g.CanonicalResultID)
	}
	if len(g.MemberResultIDs) != 2 || g.MemberResultIDs[0] != 10 || g.MemberResultIDs[1] != 11 {
		t.Errorf("members = %v, want [10 11]", g.MemberResultIDs)
	}
	if g.DetectionMethod != dedup.MethodExactURL {
		t.Errorf("method = %q, want %q", g.DetectionMethod, dedup.MethodExactURL)
	}
	if g.ConfidenceScore != 1.0 {
		t.Errorf("confidence = %v, want 1.0", g.ConfidenceScore)
	}
	if !g.Contains(g.CanonicalResultID) {
		t.Error("canonical must be a member of its own group")
	}
	if g.Contains(12) {
		t.Error("standalone result must stay ungrouped")
	}
}

func TestDetectCanonicalStability(t *testing.T) {
	// Same three results fed in every order; canonical must always be the
	// lowest position.
	orders := [][]int{
		{0, 1, 2},
		{2, 1, 0},
		{1, 2, 0},
	}
	for _, order := range orders {
		all := []*store.ProcessedResult{
			result(1, 1, "https://a.org/doc", "one"),
			result(2, 2, "https://a.org/doc", "two"),
			result(3, 3, "https://a.org/doc", "three"),
		}
		input := make([]*store.ProcessedResult, 0, len(all))
		for _, idx := range order {
			input = append(input, all[idx])
		}

		groups := dedup.NewDetector(nil).Detect(input)
		if len(groups) != 1 {
			t.Fatalf("order %v: expected one group, got %d", order, len(groups))
		}
		if groups[0].CanonicalResultID != 1 {
			t.Errorf("order %v: canonical = %d, want 1", order, groups[0].CanonicalResultID)
		}
		if len(groups[0].MemberResultIDs) != 3 {
			t.Errorf("order %v: members = %v", order, groups[0].MemberResultIDs)
		}
	}
}

func TestDetectNoDuplicates(t *testing.T) {
	detector := dedup.NewDetector(nil)
	groups := detector.Detect([]*store.ProcessedResult{
		result(1, 0, "https://a.org/one", "One"),
		result(2, 1, "https://a.org/two", "Two"),
	})
	if len(groups) != 0 {
		t.Fatalf("expected no groups, got %d", len(groups))
	}
	if got := detector.Detect(nil); len(got) != 0 {
		t.Fatalf("expected no groups for empty input, got %d", len(got))
	}
}

func TestDetectDeterministic(t *testing.T) {
	build := func() []*store.ProcessedResult {
		return []*store.ProcessedResult{
			result(1, 0, "https://a.org/doc", "Annual report"),
			result(2, 1, "https://b.org/doc", "Annual report"),
			result(3, 2, "https://a.org/doc", "Annual report again"),
			result(4, 3, "https://c.org/doc", "Something else entirely"),
		}
	}
	detector := func() *dedup.Detector {
		return dedup.NewDetector(dedup.NewTitleSimilarity(0.85))
	}

	first := detector().Detect(build())
	second := detector().Detect(build())
	if len(first) != len(second) {
		t.Fatalf("group counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].CanonicalResultID != second[i].CanonicalResultID {
			t.Errorf("group %d canonical differs: %d vs %d", i, first[i].CanonicalResultID, second[i].CanonicalResultID)
		}
		if len(first[i].MemberResultIDs) != len(second[i].MemberResultIDs) {
			t.Fatalf("group %d sizes differ", i)
		}
		for j := range first[i].MemberResultIDs {
			if first[i].MemberResultIDs[j] != second[i].MemberResultIDs[j] {
				t.Errorf("group %d member %d differs", i, j)
			}
		}
	}
}

func TestExactURLStrategy(t *testing.T) {
	s := dedup.ExactURL{}
	if s.Name() != dedup.MethodExactURL {
		t.Errorf("name = %q", s.Name())
	}

	a := result(1, 0, "https://a.org/doc", "")
	b := result(2, 1, "https://a.org/doc", "")
	c := result(3, 2, "https://a.org/other", "")

	if ok, conf := s.Match(a, b); !ok || conf != 1.0 {
		t.Errorf("Match(same) = %v, %v", ok, conf)
	}
	if ok, _ := s.Match(a, c); ok {
		t.Error("Match(different) should be false")
	}
	if ok, _ := s.Match(nil, a); ok {
		t.Error("Match(nil) should be false")
	}
}

func TestTitleSimilarityStrategy(t *testing.T) {
	s := dedup.NewTitleSimilarity(0.85)
	if s.Name() != dedup.MethodTitleSimilarity {
		t.Errorf("name = %q", s.Name())
	}

	a := result(1, 0, "https://a.org/1", "National asthma management guideline 2024")
	b := result(2, 1, "https://b.org/2", "National asthma management guideline 2024")
	if ok, conf := s.Match(a, b); !ok || math.Abs(conf-1.0) > 0.0001 {
		t.Errorf("identical titles: Match = %v, %v", ok, conf)
	}

	// Four of five tokens shared: cosine 0.8, below the 0.85 threshold.
	c := result(3, 2, "https://c.org/3", "National asthma management guideline 2025")
	if ok, _ := s.Match(a, c); ok {
		t.Error("near-miss titles should not match at 0.85")
	}
	loose := dedup.NewTitleSimilarity(0.75)
	if ok, conf := loose.Match(a, c); !ok || math.Abs(conf-0.8) > 0.0001 {
		t.Errorf("near-miss titles at 0.75: Match = %v, %v", ok, conf)
	}

	d := result(4, 3, "https://d.org/4", "Influenza vaccination uptake")
	if ok, _ := s.Match(a, d); ok {
		t.Error("unrelated titles should not match")
	}
	if ok, _ := s.Match(a, result(5, 4, "https://e.org/5", "")); ok {
		t.Error("empty title should not match")
	}
}

func TestDetectTitleStrategyAttachesToExactGroup(t *testing.T) {
	detector := dedup.NewDetector(dedup.NewTitleSimilarity(0.85))
	results := []*store.ProcessedResult{
		result(1, 0, "https://a.org/doc", "Community water fluoridation review"),
		result(2, 1, "https://a.org/doc", "Duplicate by URL"),
		result(3, 2, "https://mirror.org/doc", "Community water fluoridation review"),
	}

	groups := detector.Detect(results)
	if len(groups) != 1 {
		t.Fatalf("expected one merged group, got %d", len(groups))
	}
	g := groups[0]
	if g.CanonicalResultID != 1 || len(g.MemberResultIDs) != 3 {
		t.Fatalf("unexpected group: %#v", g)
	}
	// The group was born from the exact pass and keeps that label.
	if g.DetectionMethod != dedup.MethodExactURL {
		t.Errorf("method = %q, want %q", g.DetectionMethod, dedup.MethodExactURL)
	}
}

func TestDetectTitleStrategyGroupsUngroupedPair(t *testing.T) {
	detector := dedup.NewDetector(dedup.NewTitleSimilarity(0.85))
	results := []*store.ProcessedResult{
		result(1, 0, "https://a.org/one", "Smoking cessation services annual report"),
		result(2, 1, "https://b.org/two", "Smoking cessation services annual report"),
		result(3, 2, "https://c.org/three", "Unrelated guidance document"),
	}

	groups := detector.Detect(results)
	if len(groups) != 1 {
		t.Fatalf("expected one group, got %d", len(groups))
	}
	g := groups[0]
	if g.DetectionMethod != dedup.MethodTitleSimilarity {
		t.Errorf("method = %q, want %q", g.DetectionMethod, dedup.MethodTitleSimilarity)
	}
	if math.Abs(g.ConfidenceScore-1.0) > 0.0001 {
		t.Errorf("confidence = %v, want 1.0", g.ConfidenceScore)
	}
	if g.CanonicalResultID != 1 || len(g.MemberResultIDs) != 2 {
		t.Fatalf("unexpected group: %#v", g)
	}
}

func TestDetectMergesBridgedGroups(t *testing.T) {
	// Two exact groups whose canonicals share half their tokens with a
	// fifth result: the bridge merges them into one disjoint group.
	detector := dedup.NewDetector(dedup.NewTitleSimilarity(0.7))
	results := []*store.ProcessedResult{
		result(1, 0, "https://a.org/doc", "alpha beta gamma delta"),
		result(2, 1, "https://a.org/doc", "copy one"),
		result(3, 2, "https://b.org/doc", "epsilon zeta eta theta"),
		result(4, 3, "https://b.org/doc", "copy two"),
		result(5, 4, "https://c.org/doc", "alpha beta gamma delta epsilon zeta eta theta"),
	}

	groups := detector.Detect(results)
	if len(groups) != 1 {
		t.Fatalf("expected groups to merge into one, got %d", len(groups))
	}
	g := groups[0]
	if g.CanonicalResultID != 1 {
		t.Errorf("canonical = %d, want 1", g.CanonicalResultID)
	}
	if len(g.MemberResultIDs) != 5 {
		t.Fatalf("members = %v, want all five", g.MemberResultIDs)
	}
	for i, want := range []int64{1, 2, 3, 4, 5} {
		if g.MemberResultIDs[i] != want {
			t.Errorf("member[%d] = %d, want %d", i, g.MemberResultIDs[i], want)
		}
	}
	// Weakest link wins: the bridging cosine, not the exact 1.0.
	bridge := 4.0 / (2.0 * math.Sqrt(8))
	if math.Abs(g.ConfidenceScore-bridge) > 0.0001 {
		t.Errorf("confidence = %v, want %v", g.ConfidenceScore, bridge)
	}
}
