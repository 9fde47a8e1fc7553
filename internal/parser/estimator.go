package parser

import (
	"strings"

	"github.com/dnguyen/fintext/internal/ruleparse"
)

// Estimate bounds.
const (
	minEstimate = 1
	maxEstimate = 10
)

// EstimateCount heuristically estimates how many transactions the input
// text should yield, from three independent signals: amount-shaped
// tokens, separator commas and spending/income keywords. Used to detect
// under-extraction after streaming completes.
func EstimateCount(text string) int {
	amountTokens := len(ruleparse.AmountTokenPattern.FindAllString(text, -1))

	// A trailing comma does not open a new segment.
	trimmed := strings.TrimRight(strings.TrimSpace(text), ", \t\n")
	commaEstimate := strings.Count(trimmed, ",") + 1

	keywordCount := ruleparse.CountKeywordHits(text, ruleparse.ExpenseKeywords) +
		ruleparse.CountKeywordHits(text, ruleparse.IncomeKeywords)

	estimate := amountTokens
	if commaEstimate > estimate {
		estimate = commaEstimate
	}
	// Keywords only nudge the estimate up by one: verbs repeat too
	// freely to be trusted as a full count.
	if keywordCount > estimate {
		estimate++
	}

	if estimate < minEstimate {
		return minEstimate
	}
	if estimate > maxEstimate {
		return maxEstimate
	}
	return estimate
}
