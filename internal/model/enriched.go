package model

import (
	"time"

	"github.com/sells-group/lead-enrich/pkg/orbis"
)

// Stage names, in pipeline order.
const (
	StageResearch = "research"
	StageMatch    = "match"
	StageDetails  = "details"
)

// StageStatus is the terminal status of one pipeline stage.
type StageStatus string

const (
	StageStatusSucceeded StageStatus = "succeeded"
	StageStatusFailed    StageStatus = "failed"
	StageStatusSkipped   StageStatus = "skipped"
)

// StageResult records how one stage finished: status, timing, whether the
// result came from cache, and the absorbed error (if any).
type StageResult struct {
	Status     StageStatus `json:"status"`
	StartedAt  time.Time   `json:"started_at,omitempty"`
	DurationMS int64       `json:"duration_ms,omitempty"`
	CacheHit   bool        `json:"cache_hit,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// EnrichmentMeta is the audit trail of one enrichment run.
type EnrichmentMeta struct {
	Stages      map[string]StageResult `json:"stages"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt time.Time              `json:"completed_at"`
}

// EnrichedLead is the terminal artifact of the pipeline: the original lead
// plus whatever research, match, and details evidence the stages produced.
// Immutable once assembled; the only unit persisted downstream. A stage
// failure shows up as a null section and a failed StageResult, never as an
// absent record.
type EnrichedLead struct {
	ID       string                 `json:"id"`
	Lead     Lead                   `json:"lead"`
	Research *CompanyResearchResult `json:"research,omitempty"`
	Match    *CompanyMatchResult    `json:"match,omitempty"`
	Details  *orbis.CompanyDetails  `json:"details,omitempty"`
	Meta     EnrichmentMeta         `json:"meta"`
}

// Confidence returns the match confidence, or ConfidenceNone when the match
// stage produced nothing.
func (e *EnrichedLead) Confidence() Confidence {
	if e.Match == nil {
		return ConfidenceNone
	}
	return e.Match.Confidence
}
