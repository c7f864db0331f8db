package dedup

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"greylit/internal/config"
	"greylit/internal/store"
)

// Detector runs duplicate detection over one session's processed results.
type Detector struct {
	secondary Strategy
}

// NewDetector builds a detector. The exact-URL pass always runs; secondary
// is the optional near-duplicate strategy applied afterwards, or nil for
// exact-only detection.
func NewDetector(secondary Strategy) *Detector {
	return &Detector{secondary: secondary}
}

// FromConfig builds the detector selected by [dedup] strategy.
func FromConfig(cfg *config.Config) (*Detector, error) {
	switch cfg.Dedup.Strategy {
	case "", MethodExactURL:
		return NewDetector(nil), nil
	case MethodTitleSimilarity:
		return NewDetector(NewTitleSimilarity(cfg.Dedup.TitleThreshold)), nil
	default:
		return nil, fmt.Errorf("unknown dedup strategy %q", cfg.Dedup.Strategy)
	}
}

// Detect groups duplicates among the given processed results. Input may
// arrive in any order; detection always works in ascending SERP position, so
// the grouping and each group's canonical member are stable for a given
// result set. Returned groups are ordered by canonical position with members
// in position order.
func (d *Detector) Detect(results []*store.ProcessedResult) []*store.DuplicateGroup {
	ordered := make([]*store.ProcessedResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			ordered = append(ordered, r)
		}
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	b := newBuilder()

	// Exact pass: one map lookup per result, first-seen becomes canonical
	// until a lower position joins.
	firstSeen := make(map[string]*store.ProcessedResult, len(ordered))
	for _, r := range ordered {
		first, ok := firstSeen[r.NormalizedURL]
		if !ok {
			firstSeen[r.NormalizedURL] = r
			continue
		}
		b.link(first, r, MethodExactURL, 1.0)
	}

	if d.secondary != nil {
		d.secondaryPass(b, ordered)
	}

	return b.build()
}

// secondaryPass applies the near-duplicate strategy to results the exact
// pass left ungrouped. Each is compared against existing group canonicals
// first, then against earlier ungrouped results. A result matching several
// canonicals merges those groups, keeping groups disjoint.
func (d *Detector) secondaryPass(b *builder, ordered []*store.ProcessedResult) {
	var ungrouped []*store.ProcessedResult
	for _, r := range ordered {
		if b.has(r) {
			continue
		}

		var (
			matches    []*groupState
			confidence float64
		)
		for _, g := range b.ordered() {
			if ok, conf := d.secondary.Match(g.canonical, r); ok {
				matches = append(matches, g)
				if len(matches) == 1 || conf < confidence {
					confidence = conf
				}
			}
		}
		if len(matches) > 0 {
			target := matches[0]
			for _, other := range matches[1:] {
				b.merge(target, other)
			}
			b.attach(target, r, confidence)
			continue
		}

		matched := false
		for _, prev := range ungrouped {
			if b.has(prev) {
				continue
			}
			if ok, conf := d.secondary.Match(prev, r); ok {
				b.link(prev, r, d.secondary.Name(), conf)
				matched = true
				break
			}
		}
		if !matched {
			ungrouped = append(ungrouped, r)
		}
	}
}

// groupState is a group under construction. A merged-away group keeps a nil
// member slice and is skipped everywhere.
type groupState struct {
	canonical  *store.ProcessedResult
	members    []*store.ProcessedResult
	method     string
	confidence float64
}

type builder struct {
	groups   []*groupState
	byMember map[*store.ProcessedResult]*groupState
}

func newBuilder() *builder {
	return &builder{byMember: make(map[*store.ProcessedResult]*groupState)}
}

func (b *builder) has(r *store.ProcessedResult) bool {
	_, ok := b.byMember[r]
	return ok
}

// link records that first and r are the same document. The group is created
// lazily on the first duplicate; r must not already belong to a group.
func (b *builder) link(first, r *store.ProcessedResult, method string, confidence float64) {
	g, ok := b.byMember[first]
	if !ok {
		g = &groupState{
			canonical:  first,
			members:    []*store.ProcessedResult{first},
			method:     method,
			confidence: confidence,
		}
		b.groups = append(b.groups, g)
		b.byMember[first] = g
	}
	b.attach(g, r, confidence)
}

// attach adds r as a member, folding confidence to the weakest link and
// recomputing the canonical.
func (b *builder) attach(g *groupState, r *store.ProcessedResult, confidence float64) {
	g.members = append(g.members, r)
	b.byMember[r] = g
	if confidence < g.confidence {
		g.confidence = confidence
	}
	b.recomputeCanonical(g)
}

// merge folds src into dst. Dst keeps its detection method; confidence is
// the weakest of the two.
func (b *builder) merge(dst, src *groupState) {
	if dst == src || src.members == nil {
		return
	}
	for _, member := range src.members {
		b.byMember[member] = dst
	}
	dst.members = append(dst.members, src.members...)
	if src.confidence < dst.confidence {
		dst.confidence = src.confidence
	}
	src.members = nil
	b.recomputeCanonical(dst)
}

func (b *builder) recomputeCanonical(g *groupState) {
	canonical := g.members[0]
	for _, member := range g.members[1:] {
		if member.Position < canonical.Position {
			canonical = member
		}
	}
	g.canonical = canonical
}

// ordered returns live groups by ascending canonical position.
func (b *builder) ordered() []*groupState {
	live := make([]*groupState, 0, len(b.groups))
	for _, g := range b.groups {
		if g.members != nil {
			live = append(live, g)
		}
	}
	sort.Slice(live, func(i, j int) bool {
		return live[i].canonical.Position < live[j].canonical.Position
	})
	return live
}

func (b *builder) build() []*store.DuplicateGroup {
	var out []*store.DuplicateGroup
	for _, g := range b.ordered() {
		sort.Slice(g.members, func(i, j int) bool {
			return g.members[i].Position < g.members[j].Position
		})
		memberIDs := make([]int64, 0, len(g.members))
		for _, member := range g.members {
			memberIDs = append(memberIDs, member.ID)
		}
		out = append(out, &store.DuplicateGroup{
			ID:                uuid.NewString(),
			SessionID:         g.canonical.SessionID,
			CanonicalResultID: g.canonical.ID,
			MemberResultIDs:   memberIDs,
			DetectionMethod:   g.method,
			ConfidenceScore:   g.confidence,
		})
	}
	return out
}
