package model

import (
	"fmt"
	"strings"
)

// Confidence is the discrete outcome of the match stage. A closed enum, not
// a continuous score, so downstream branching stays deterministic. The
// underlying directory score and hint are retained on CompanyMatchResult for
// consumers that want them.
type Confidence string

const (
	ConfidenceNone   Confidence = "none"
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

var confidenceRank = map[Confidence]int{
	ConfidenceNone:   0,
	ConfidenceLow:    1,
	ConfidenceMedium: 2,
	ConfidenceHigh:   3,
}

// ParseConfidence parses a confidence string, case-insensitively.
func ParseConfidence(s string) (Confidence, error) {
	c := Confidence(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := confidenceRank[c]; !ok {
		return ConfidenceNone, fmt.Errorf("unknown confidence level %q", s)
	}
	return c, nil
}

// AtLeast reports whether c is at or above the given threshold.
func (c Confidence) AtLeast(threshold Confidence) bool {
	return confidenceRank[c] >= confidenceRank[threshold]
}

// Valid reports whether c is one of the four defined levels.
func (c Confidence) Valid() bool {
	_, ok := confidenceRank[c]
	return ok
}

// MatchEvidence names the triangulation path that produced a match.
type MatchEvidence string

const (
	EvidenceNationalID   MatchEvidence = "national_id"
	EvidenceDomain       MatchEvidence = "domain"
	EvidenceNameLocation MatchEvidence = "name_location"
	EvidenceNone         MatchEvidence = "none"
)

// CompanyMatchResult is the output of the match stage. BvDID is empty when
// no confident match was found. Conflicts between original lead data and
// researched data are surfaced in Reasoning, never silently resolved.
type CompanyMatchResult struct {
	BvDID       string        `json:"bvd_id,omitempty"`
	Name        string        `json:"name,omitempty"`
	MatchedName string        `json:"matched_name,omitempty"`
	City        string        `json:"city,omitempty"`
	Country     string        `json:"country,omitempty"`
	NationalID  string        `json:"national_id,omitempty"`
	Status      string        `json:"status,omitempty"`
	Confidence  Confidence    `json:"confidence"`
	Evidence    MatchEvidence `json:"evidence"`
	Score       float64       `json:"score,omitempty"`
	Hint        string        `json:"hint,omitempty"`
	Reasoning   string        `json:"reasoning,omitempty"`
	Candidates  int           `json:"candidates,omitempty"`
}

// Matched reports whether the stage settled on a directory identity.
func (m *CompanyMatchResult) Matched() bool {
	return m != nil && m.BvDID != "" && m.Confidence != ConfidenceNone
}

// NoMatch returns the canonical empty match result with the given reasoning.
func NoMatch(reasoning string) *CompanyMatchResult {
	return &CompanyMatchResult{
		Confidence: ConfidenceNone,
		Evidence:   EvidenceNone,
		Reasoning:  reasoning,
	}
}
