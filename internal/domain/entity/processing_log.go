package entity

import "time"

// Phase names one stage of the pipeline in the processing audit log.
type Phase string

const (
	PhaseParse       Phase = "parse"
	PhaseDedup       Phase = "dedup"
	PhaseEmbed       Phase = "embed"
	PhaseIndexUpsert Phase = "index_upsert"
	PhaseQuery       Phase = "query"
	PhaseAnalysis    Phase = "analysis"
)

// IsValid checks if the phase is one of the pipeline stages.
func (p Phase) IsValid() bool {
	switch p {
	case PhaseParse, PhaseDedup, PhaseEmbed, PhaseIndexUpsert, PhaseQuery, PhaseAnalysis:
		return true
	}
	return false
}

// Processing log statuses.
const (
	LogStatusOK      = "ok"
	LogStatusError   = "error"
	LogStatusSkipped = "skipped"
)

// ProcessingLogEntry is one append-only audit row. ArticleID is empty for
// phases that do not concern a single article (query, analysis).
type ProcessingLogEntry struct {
	ID         int64
	ArticleID  string
	Phase      Phase
	Status     string
	Message    string
	DurationMS int64
	Timestamp  time.Time
}
