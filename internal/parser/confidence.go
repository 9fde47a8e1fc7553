package parser

import (
	"github.com/dnguyen/fintext/internal/domain"
)

// ReviewThreshold is the confidence below which a draft is flagged for
// human review.
const ReviewThreshold = 0.6

// recomputeFloor: drafts at or above this keep their model-supplied
// confidence; below it (or missing) the weighted rule recomputes it.
const recomputeFloor = 0.5

// Enhancer recomputes untrusted confidences and derives the aggregate
// quality signals.
type Enhancer struct{}

// Enhance normalizes every draft's confidence, marks low-confidence
// drafts for review, and refreshes the aggregate metadata. Existing
// notes are preserved, never overwritten.
func (Enhancer) Enhance(result *domain.ParseResult) {
	for i := range result.Transactions {
		d := &result.Transactions[i]

		if d.Confidence < recomputeFloor {
			d.Confidence = ruleConfidence(d)
		}

		if d.Confidence < ReviewThreshold {
			d.ValidationPassed = false
			d.AppendNote("low confidence, needs review")
		}
	}

	result.Metadata.Recompute(result.Transactions)
}

// ruleConfidence is the fixed weighted recompute: base 0.5, +0.2 for a
// positive amount, +0.1 for a real description, +0.15 for a resolved
// category, +0.05 for a valid type, clamped to [0,1].
func ruleConfidence(d *domain.TransactionDraft) float64 {
	score := 0.5
	if d.Amount > 0 {
		score += 0.2
	}
	if len(d.Description) > 5 {
		score += 0.1
	}
	if d.CategoryID != "" && d.CategoryName != "" {
		score += 0.15
	}
	if d.Type.Valid() {
		score += 0.05
	}
	return clamp01(score)
}
