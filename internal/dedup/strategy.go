package dedup

import (
	"greylit/internal/store"
	"greylit/internal/textutil"
)

// Detection method labels persisted on duplicate groups.
const (
	MethodExactURL        = "exact_url"
	MethodTitleSimilarity = "title_similarity"
)

// DefaultTitleThreshold is the cosine similarity above which two titles are
// treated as the same document.
const DefaultTitleThreshold = 0.85

// Strategy decides whether two processed results are the same underlying
// document. Match returns the confidence of a positive verdict; confidence
// is meaningless when the verdict is negative.
type Strategy interface {
	Name() string
	Match(a, b *store.ProcessedResult) (bool, float64)
}

// ExactURL matches results whose normalized URLs are identical. This is the
// primitive duplicate signal; the detector always applies it, and the type
// exists so callers and tests can exercise the same verdict pairwise.
type ExactURL struct{}

// Name implements Strategy.
func (ExactURL) Name() string { return MethodExactURL }

// Match implements Strategy.
func (ExactURL) Match(a, b *store.ProcessedResult) (bool, float64) {
	if a == nil || b == nil {
		return false, 0
	}
	if a.NormalizedURL == b.NormalizedURL {
		return true, 1.0
	}
	return false, 0
}

// TitleSimilarity matches results whose sanitized titles are nearly
// identical under cosine similarity. Fingerprints are cached per result for
// the lifetime of the strategy, so instances are per-run and not safe for
// concurrent use.
type TitleSimilarity struct {
	threshold    float64
	fingerprints map[*store.ProcessedResult]*textutil.Fingerprint
}

// NewTitleSimilarity builds the strategy. Thresholds outside (0, 1] fall
// back to DefaultTitleThreshold.
func NewTitleSimilarity(threshold float64) *TitleSimilarity {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultTitleThreshold
	}
	return &TitleSimilarity{
		threshold:    threshold,
		fingerprints: make(map[*store.ProcessedResult]*textutil.Fingerprint),
	}
}

// Name implements Strategy.
func (s *TitleSimilarity) Name() string { return MethodTitleSimilarity }

// Match implements Strategy.
func (s *TitleSimilarity) Match(a, b *store.ProcessedResult) (bool, float64) {
	score := textutil.CosineSimilarity(s.fingerprint(a), s.fingerprint(b))
	if score >= s.threshold {
		return true, score
	}
	return false, 0
}

func (s *TitleSimilarity) fingerprint(r *store.ProcessedResult) *textutil.Fingerprint {
	if r == nil {
		return nil
	}
	if fp, ok := s.fingerprints[r]; ok {
		return fp
	}
	fp := textutil.NewFingerprint(r.Title)
	s.fingerprints[r] = fp
	return fp
}
