package enrich

import (
	"github.com/sells-group/lead-enrich/internal/model"
)

// FetchDecision is the evaluator's verdict on whether a match is reliable
// enough to spend details quota on.
type FetchDecision struct {
	Fetch      bool             `json:"fetch"`
	Confidence model.Confidence `json:"confidence"`
	Threshold  model.Confidence `json:"threshold"`
}

// Evaluator maps a match result to a fetch decision. Pure and
// deterministic: the same match always yields the same decision.
type Evaluator struct {
	threshold model.Confidence
}

// NewEvaluator creates an evaluator with the given confidence threshold.
// Invalid thresholds fall back to medium.
func NewEvaluator(threshold model.Confidence) Evaluator {
	if !threshold.Valid() {
		threshold = model.ConfidenceMedium
	}
	return Evaluator{threshold: threshold}
}

// Evaluate decides whether match warrants a details fetch: the match must
// carry a directory identifier and sit at or above the threshold.
func (e Evaluator) Evaluate(match *model.CompanyMatchResult) FetchDecision {
	d := FetchDecision{Confidence: model.ConfidenceNone, Threshold: e.threshold}
	if match == nil {
		return d
	}
	d.Confidence = match.Confidence
	d.Fetch = match.Matched() && match.Confidence.AtLeast(e.threshold)
	return d
}
