package dedup

import (
	"context"
	"fmt"
	"time"

	"newswire-search/internal/domain/entity"
	"newswire-search/internal/utils/text"
)

const (
	// DefaultThreshold is the weighted similarity at or above which two
	// articles count as near duplicates.
	DefaultThreshold = 0.8

	// DefaultWindow bounds how many recent articles are fetched for
	// pairwise comparison. Exact matches are found by hash regardless.
	DefaultWindow = 200

	// longBodyRunes is the body length past which similarity switches to
	// windowed comparison to keep the LCS cost bounded.
	longBodyRunes = 1000

	// bodyWindowRunes is the window size used for long bodies.
	bodyWindowRunes = 500
)

// Kind classifies a dedup decision.
type Kind string

const (
	KindUnique         Kind = "unique"
	KindExactDuplicate Kind = "exact_duplicate"
	KindNearDuplicate  Kind = "near_duplicate"
	KindTitleDuplicate Kind = "title_duplicate"
)

// Decision is the outcome of checking an incoming article against the
// stored corpus. ExistingID names the matched article's external ID and is
// empty for unique articles. Score is the weighted similarity that produced
// the match; exact matches report 1.0.
type Decision struct {
	Kind       Kind
	ExistingID string
	Score      float64
}

// Candidate is the stored-article slice the detector compares against.
type Candidate struct {
	ArticleID   int64
	ExternalID  string
	Title       string
	Summary     string
	Body        string
	ContentHash string
	IngestedAt  time.Time
}

// CandidateSource yields stored articles for duplicate checks. FindByContentHash
// returns nil without error when no article carries the hash.
type CandidateSource interface {
	FindByContentHash(ctx context.Context, hash string) (*Candidate, error)
	RecentCandidates(ctx context.Context, limit int) ([]Candidate, error)
}

// Weights splits the similarity score across the three compared fields. The
// title carries the most signal in wire copy, so it gets the largest share.
type Weights struct {
	Title   float64
	Summary float64
	Body    float64
}

// DefaultWeights returns the production weighting.
func DefaultWeights() Weights {
	return Weights{Title: 0.4, Summary: 0.3, Body: 0.3}
}

// Detector classifies incoming articles as unique or duplicates of stored
// ones. It is stateless apart from its configuration and safe for
// concurrent use.
type Detector struct {
	hasher    *Hasher
	threshold float64
	window    int
	weights   Weights
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithThreshold overrides the near-duplicate similarity threshold.
func WithThreshold(v float64) DetectorOption {
	return func(d *Detector) {
		if v > 0 && v <= 1 {
			d.threshold = v
		}
	}
}

// WithWindow overrides how many recent candidates are compared.
func WithWindow(n int) DetectorOption {
	return func(d *Detector) {
		if n > 0 {
			d.window = n
		}
	}
}

// WithWeights overrides the field weighting.
func WithWeights(w Weights) DetectorOption {
	return func(d *Detector) {
		if w.Title >= 0 && w.Summary >= 0 && w.Body >= 0 && w.Title+w.Summary+w.Body > 0 {
			d.weights = w
		}
	}
}

// WithDetectorHasher overrides the hasher used when an article arrives
// without a content hash.
func WithDetectorHasher(h *Hasher) DetectorOption {
	return func(d *Detector) {
		if h != nil {
			d.hasher = h
		}
	}
}

// NewDetector creates a Detector with the default threshold, window, and
// weights.
func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{
		hasher:    NewHasher(StrengthMD5),
		threshold: DefaultThreshold,
		window:    DefaultWindow,
		weights:   DefaultWeights(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Similarity returns the weighted similarity between the normalized title,
// summary, and body of two articles. A field empty on either side scores
// zero for that component. Long bodies are compared window by window.
func (d *Detector) Similarity(a, b *entity.Article) float64 {
	score := d.weights.Title * fieldSimilarity(a.Title, b.Title, false)
	score += d.weights.Summary * fieldSimilarity(a.Summary, b.Summary, false)
	score += d.weights.Body * fieldSimilarity(a.Body, b.Body, true)
	return score
}

// Detect classifies an incoming article. It checks the content hash first,
// then scans the recent candidate window for near and title duplicates.
func (d *Detector) Detect(ctx context.Context, src CandidateSource, a *entity.Article) (Decision, error) {
	hash := a.ContentHash
	if hash == "" {
		hash = d.hasher.ContentHash(a.Title, a.Body, a.Summary)
	}

	exact, err := src.FindByContentHash(ctx, hash)
	if err != nil {
		return Decision{}, fmt.Errorf("Detect: find by content hash: %w", err)
	}
	if exact != nil && exact.ExternalID != a.ExternalID {
		return Decision{Kind: KindExactDuplicate, ExistingID: exact.ExternalID, Score: 1.0}, nil
	}

	candidates, err := src.RecentCandidates(ctx, d.window)
	if err != nil {
		return Decision{}, fmt.Errorf("Detect: recent candidates: %w", err)
	}

	titleNorm := text.Normalize(a.Title)
	summaryNorm := text.Normalize(a.Summary)
	bodyNorm := text.Normalize(a.Body)

	var (
		bestScore float64
		bestID    string
		titleDup  Decision
	)
	for _, c := range candidates {
		if c.ExternalID == a.ExternalID {
			continue
		}

		candTitle := text.Normalize(c.Title)
		score := d.weights.Title * normalizedSimilarity(titleNorm, candTitle, false)
		score += d.weights.Summary * normalizedSimilarity(summaryNorm, text.Normalize(c.Summary), false)
		score += d.weights.Body * normalizedSimilarity(bodyNorm, text.Normalize(c.Body), true)

		if score >= d.threshold && score > bestScore {
			bestScore = score
			bestID = c.ExternalID
		}
		if titleDup.ExistingID == "" && titleNorm != "" && titleNorm == candTitle {
			titleDup = Decision{Kind: KindTitleDuplicate, ExistingID: c.ExternalID, Score: score}
		}
	}

	if bestID != "" {
		return Decision{Kind: KindNearDuplicate, ExistingID: bestID, Score: bestScore}, nil
	}
	if titleDup.ExistingID != "" {
		return titleDup, nil
	}
	return Decision{Kind: KindUnique}, nil
}

// fieldSimilarity normalizes both sides before comparing.
func fieldSimilarity(a, b string, windowed bool) float64 {
	return normalizedSimilarity(text.Normalize(a), text.Normalize(b), windowed)
}

// normalizedSimilarity compares two already-normalized strings. Windowed
// comparison kicks in only when a long body is involved.
func normalizedSimilarity(a, b string, windowed bool) float64 {
	if a == "" || b == "" {
		return 0.0
	}
	if windowed && (text.CountRunes(a) > longBodyRunes || text.CountRunes(b) > longBodyRunes) {
		return text.WindowedLCSRatio(a, b, bodyWindowRunes)
	}
	return text.LCSRatio(a, b)
}
