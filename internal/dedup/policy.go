package dedup

import (
	"sort"

	"newswire-search/internal/domain/entity"
)

// Mode controls what happens to near duplicates. Exact duplicates are
// always rejected and title duplicates are always annotated regardless of
// mode.
type Mode string

const (
	// ModeAnnotate persists near duplicates and links them to the article
	// they resemble.
	ModeAnnotate Mode = "annotate"

	// ModeReject drops near duplicates before persistence.
	ModeReject Mode = "reject"
)

// IsValid reports whether the mode is a known value.
func (m Mode) IsValid() bool {
	return m == ModeAnnotate || m == ModeReject
}

// Outcome tells the ingest pipeline what to do with an article after a
// dedup decision. Reason is a short label for the processing log.
type Outcome struct {
	Persist bool
	Reason  string
}

// Policy applies a dedup decision to an article. The zero value behaves
// like ModeAnnotate.
type Policy struct {
	mode Mode
}

// NewPolicy creates a Policy. Unknown modes fall back to annotate, which is
// the safe default: nothing real is ever dropped.
func NewPolicy(mode Mode) *Policy {
	if !mode.IsValid() {
		mode = ModeAnnotate
	}
	return &Policy{mode: mode}
}

// Mode returns the configured mode, resolving the zero value.
func (p *Policy) Mode() Mode {
	if p == nil || !p.mode.IsValid() {
		return ModeAnnotate
	}
	return p.mode
}

// Apply mutates the article according to the decision and reports whether
// it should be persisted.
func (p *Policy) Apply(a *entity.Article, dec Decision) Outcome {
	switch dec.Kind {
	case KindExactDuplicate:
		return Outcome{Persist: false, Reason: "exact duplicate of " + dec.ExistingID}
	case KindNearDuplicate:
		if p.Mode() == ModeReject {
			return Outcome{Persist: false, Reason: "near duplicate of " + dec.ExistingID}
		}
		a.SimilarArticleID = dec.ExistingID
		a.SimilarityScore = dec.Score
		return Outcome{Persist: true, Reason: "annotated near duplicate of " + dec.ExistingID}
	case KindTitleDuplicate:
		a.SimilarArticleID = dec.ExistingID
		a.SimilarityScore = dec.Score
		return Outcome{Persist: true, Reason: "annotated title duplicate of " + dec.ExistingID}
	default:
		return Outcome{Persist: true}
	}
}

// PlanCleanup groups stored articles by content hash and returns the IDs to
// tombstone: within each group the earliest ingested article survives, ties
// broken by the lower article ID. Output order is deterministic.
func PlanCleanup(candidates []Candidate) []int64 {
	groups := make(map[string][]Candidate)
	for _, c := range candidates {
		if c.ContentHash == "" {
			continue
		}
		groups[c.ContentHash] = append(groups[c.ContentHash], c)
	}

	var tombstone []int64
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool {
			if !group[i].IngestedAt.Equal(group[j].IngestedAt) {
				return group[i].IngestedAt.Before(group[j].IngestedAt)
			}
			return group[i].ArticleID < group[j].ArticleID
		})
		for _, c := range group[1:] {
			tombstone = append(tombstone, c.ArticleID)
		}
	}

	sort.Slice(tombstone, func(i, j int) bool { return tombstone[i] < tombstone[j] })
	return tombstone
}
