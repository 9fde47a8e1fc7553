// Package ruleparse extracts transaction drafts from free-form
// Vietnamese text using the lexicon tables, without any model involved.
// It is the last resort of the recovery chain and one input to hybrid
// reconstruction.
package ruleparse

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dnguyen/fintext/internal/domain"
)

// RuleConfidence is assigned to every draft this extractor produces.
// The fallback strategy of the recovery chain lowers it further.
const RuleConfidence = 0.6

// trailingAmount matches an amount token at the end of a segment:
// a number with an optional decimal point followed by an optional
// Vietnamese unit (30k, 1.5 triệu, 200 nghìn, 5000đ, 25000).
var trailingAmount = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(k|nghìn|ngàn|triệu|tr|đồng|vnd|đ)?\s*$`)

// AmountTokenPattern matches monetary-amount-shaped tokens anywhere in
// a text: a number carrying a unit, or a bare number of at least four
// digits. Used by count estimation.
var AmountTokenPattern = regexp.MustCompile(`(?i)\d+(?:\.\d+)?\s*(?:k|nghìn|ngàn|triệu|tr|đồng|vnd|đ)|\d{4,}`)

var unitMultipliers = map[string]int64{
	"k":     1_000,
	"nghìn": 1_000,
	"ngàn":  1_000,
	"triệu": 1_000_000,
	"tr":    1_000_000,
	"đồng":  1,
	"vnd":   1,
	"đ":     1,
	"":      1,
}

// Extract splits text on separator commas and converts each segment
// with a parseable trailing amount into a draft. Segments without an
// amount, or with amount zero, are dropped silently; a trailing comma
// produces no empty segment.
func Extract(text string) []domain.TransactionDraft {
	var drafts []domain.TransactionDraft

	for _, segment := range strings.Split(text, ",") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}

		loc := trailingAmount.FindStringSubmatchIndex(segment)
		if loc == nil {
			continue
		}

		number := segment[loc[2]:loc[3]]
		unit := ""
		if loc[4] >= 0 {
			unit = strings.ToLower(segment[loc[4]:loc[5]])
		}

		amount, ok := parseAmount(number, unit)
		if !ok || amount <= 0 {
			continue
		}

		description := strings.TrimSpace(segment[:loc[0]])
		description = strings.TrimRight(description, " -:")
		if description == "" {
			description = segment
		}

		drafts = append(drafts, domain.TransactionDraft{
			Type:             ClassifyType(segment),
			Amount:           amount,
			Description:      description,
			CategoryName:     ClassifyCategory(segment),
			Confidence:       RuleConfidence,
			Provenance:       domain.ProvenanceRuleBased,
			ValidationPassed: true,
		})
	}

	return drafts
}

// parseAmount applies the unit multiplier with decimal arithmetic so
// fractional amounts like "1.5 triệu" come out exact.
func parseAmount(number, unit string) (float64, bool) {
	mult, ok := unitMultipliers[unit]
	if !ok {
		return 0, false
	}
	d, err := decimal.NewFromString(number)
	if err != nil {
		return 0, false
	}
	return d.Mul(decimal.NewFromInt(mult)).InexactFloat64(), true
}

// ClassifyCategory returns the display name of the first matching
// category rule, or the default category.
func ClassifyCategory(segment string) string {
	lower := strings.ToLower(segment)
	for _, rule := range CategoryRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				return rule.Name
			}
		}
	}
	return DefaultCategoryName
}

// ClassifyType decides income, then transfer, with expense as the
// default.
func ClassifyType(segment string) domain.TransactionType {
	lower := strings.ToLower(segment)
	for _, kw := range IncomeKeywords {
		if strings.Contains(lower, kw) {
			return domain.TypeIncome
		}
	}
	for _, kw := range TransferKeywords {
		if strings.Contains(lower, kw) {
			return domain.TypeTransfer
		}
	}
	return domain.TypeExpense
}

// CountKeywordHits counts occurrences of any of the given keywords.
func CountKeywordHits(text string, keywords []string) int {
	lower := strings.ToLower(text)
	count := 0
	for _, kw := range keywords {
		count += strings.Count(lower, kw)
	}
	return count
}
