package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/dnguyen/fintext/internal/domain"
	"github.com/dnguyen/fintext/internal/ruleparse"
)

// Strategy method names recorded in metadata.
const (
	MethodDirect       = "direct"
	MethodRepair       = "repair"
	MethodPartial      = "partial"
	MethodHybrid       = "hybrid"
	MethodRuleFallback = "rule_fallback"
	MethodFailed       = "failed"
)

// DirectTrustThreshold is the aggregate confidence at which a clean
// direct decode is returned without enhancement.
const DirectTrustThreshold = 0.75

// RuleFallbackConfidence replaces the extractor's own confidence when
// rules run as the last-resort strategy rather than as a peer input.
const RuleFallbackConfidence = 0.4

// rawPrefixLimit bounds how much raw model text may leak into issue
// strings and debug details.
const rawPrefixLimit = 80

// Chain applies the recovery strategies in fixed priority order. Each
// strategy is pure with respect to the others and the chain itself
// never fails: exhausting every strategy produces a structured-failure
// result instead of an error.
type Chain struct {
	log zerolog.Logger
}

// NewChain creates a recovery chain.
func NewChain(log zerolog.Logger) *Chain {
	return &Chain{log: log}
}

type strategy struct {
	name string
	run  func(raw, original string) (*domain.ParseResult, error)
}

// Recover converts raw model output into a ParseResult.
// originalInput may be empty, which skips the strategies that need the
// user's own text (hybrid reconstruction and rule fallback).
func (c *Chain) Recover(raw, originalInput string) *domain.ParseResult {
	strategies := []strategy{
		{MethodDirect, c.direct},
		{MethodRepair, c.repair},
		{MethodPartial, c.partial},
		{MethodHybrid, c.hybrid},
		{MethodRuleFallback, c.ruleFallback},
	}

	var attempted []string
	for _, s := range strategies {
		result, err := s.run(raw, originalInput)
		if err != nil {
			attempted = append(attempted, fmt.Sprintf("%s: %v", s.name, err))
			c.log.Debug().Str("strategy", s.name).Err(err).Msg("recovery strategy failed")
			continue
		}
		result.Metadata.Method = s.name
		c.log.Info().Str("strategy", s.name).Int("transactions", len(result.Transactions)).Msg("recovery strategy succeeded")
		return result
	}

	return c.structuredFailure(raw, attempted)
}

// direct parses the raw text as the expected schema. A decoded response
// with zero transactions is a deliberate empty, which is still a win.
func (c *Chain) direct(raw, _ string) (*domain.ParseResult, error) {
	return decodeWire(cleanModelJSON(raw), domain.ProvenanceModelDirect)
}

// repair retries the decode after structural repair of truncated
// output. Unlike direct, an empty transaction list after surgery is
// treated as data loss and the strategy fails.
func (c *Chain) repair(raw, _ string) (*domain.ParseResult, error) {
	result, err := decodeWire(repairJSON(raw), domain.ProvenanceRepaired)
	if err != nil {
		return nil, err
	}
	if len(result.Transactions) == 0 {
		return nil, fmt.Errorf("repaired JSON decoded but held no transactions")
	}
	return result, nil
}

var transactionsArrayStart = regexp.MustCompile(`"transactions"\s*:\s*\[`)

// partial scans the transactions-array region for individual complete
// objects and decodes each independently; undecodable objects are
// skipped rather than aborting the strategy.
func (c *Chain) partial(raw, _ string) (*domain.ParseResult, error) {
	region := cleanModelJSON(raw)
	if loc := transactionsArrayStart.FindStringIndex(region); loc != nil {
		region = region[loc[1]:]
	}

	var drafts []domain.TransactionDraft
	for _, span := range scanTransactionObjects(region) {
		if !gjson.Valid(span) {
			continue
		}
		var wt wireTransaction
		if err := json.Unmarshal([]byte(span), &wt); err != nil {
			continue
		}
		if wt.Amount == 0 && wt.Description == "" {
			continue
		}
		drafts = append(drafts, wt.toDraft(domain.ProvenanceRepaired))
	}

	if len(drafts) == 0 {
		return nil, fmt.Errorf("no decodable transaction objects found")
	}

	result := &domain.ParseResult{
		Transactions: drafts,
		Summary:      fmt.Sprintf("Recovered %d transaction(s) from partial model output", len(drafts)),
	}
	result.Metadata.Recompute(result.Transactions)
	result.Metadata.Issues = append(result.Metadata.Issues, "recovered from partial model output")
	return result, nil
}

// Field extractors for hybrid reconstruction.
var (
	typeField        = regexp.MustCompile(`"type"\s*:\s*"(expense|income|transfer)"`)
	amountField      = regexp.MustCompile(`"amount"\s*:\s*(-?\d+(?:\.\d+)?)`)
	descriptionField = regexp.MustCompile(`"description"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

// hybrid reconstructs candidates two independent ways, field-by-field
// regex extraction over the raw output and rule extraction over the
// user's original text, then keeps whichever list scores higher on
// completeness.
func (c *Chain) hybrid(raw, originalInput string) (*domain.ParseResult, error) {
	if originalInput == "" {
		return nil, fmt.Errorf("original input text not available")
	}

	aiDrafts := extractFieldTriples(cleanModelJSON(raw))
	if len(aiDrafts) == 0 {
		// With zero model-side signal there is nothing to hybridize;
		// pure rule extraction is the next strategy's job.
		return nil, fmt.Errorf("no field candidates in model output")
	}
	ruleDrafts := ruleparse.Extract(originalInput)
	for i := range ruleDrafts {
		ruleDrafts[i].Provenance = domain.ProvenanceHybrid
	}

	aiScore := completenessScore(aiDrafts)
	ruleScore := completenessScore(ruleDrafts)

	var chosen []domain.TransactionDraft
	var boost float64
	if aiScore >= ruleScore && len(aiDrafts) > 0 {
		chosen, boost = aiDrafts, 0.1
	} else if len(ruleDrafts) > 0 {
		chosen, boost = ruleDrafts, 0.05
	} else {
		return nil, fmt.Errorf("neither extraction path produced candidates")
	}

	for i := range chosen {
		chosen[i].Confidence = clamp01(chosen[i].Confidence + boost)
	}

	result := &domain.ParseResult{
		Transactions: chosen,
		Summary:      fmt.Sprintf("Reconstructed %d transaction(s) by hybrid extraction", len(chosen)),
	}
	result.Metadata.Recompute(result.Transactions)
	result.Metadata.Issues = append(result.Metadata.Issues, "reconstructed by hybrid extraction")
	return result, nil
}

// ruleFallback runs the lexicon extractor over the original text with a
// fixed depressed confidence.
func (c *Chain) ruleFallback(_, originalInput string) (*domain.ParseResult, error) {
	if originalInput == "" {
		return nil, fmt.Errorf("original input text not available")
	}

	drafts := ruleparse.Extract(originalInput)
	if len(drafts) == 0 {
		return nil, fmt.Errorf("rule extraction produced no transactions")
	}

	for i := range drafts {
		drafts[i].Confidence = RuleFallbackConfidence
		drafts[i].AppendNote("extracted by rule-based fallback, please verify")
	}

	result := &domain.ParseResult{
		Transactions: drafts,
		Summary:      fmt.Sprintf("Extracted %d transaction(s) by keyword rules", len(drafts)),
	}
	result.Metadata.Recompute(result.Transactions)
	result.Metadata.QualityTier = domain.QualityNeedsReview
	result.Metadata.RiskTier = domain.RiskHigh
	result.Metadata.Issues = append(result.Metadata.Issues, "model output unusable, fell back to rule-based extraction")
	return result, nil
}

// structuredFailure reports that every strategy errored, with bounded
// debug context: which strategies ran, the input length and a short
// prefix, never the full raw text.
func (c *Chain) structuredFailure(raw string, attempted []string) *domain.ParseResult {
	issues := []string{
		fmt.Sprintf("all %d recovery strategies failed", len(attempted)),
		fmt.Sprintf("raw output length: %d", len(raw)),
		fmt.Sprintf("raw output prefix: %q", truncateRunes(raw, rawPrefixLimit)),
	}
	issues = append(issues, attempted...)

	return &domain.ParseResult{
		Transactions: []domain.TransactionDraft{},
		Summary:      "Could not extract any transactions from the model output",
		Metadata: domain.ParsingMetadata{
			QualityTier: domain.QualityFailed,
			RiskTier:    domain.RiskCritical,
			Method:      MethodFailed,
			Issues:      issues,
		},
	}
}

// decodeWire decodes a full wire response and recomputes its metadata.
func decodeWire(cleaned string, provenance domain.Provenance) (*domain.ParseResult, error) {
	if cleaned == "" {
		return nil, fmt.Errorf("empty model output")
	}
	var wr wireResponse
	if err := json.Unmarshal([]byte(cleaned), &wr); err != nil {
		return nil, fmt.Errorf("decoding model output: %w", err)
	}
	// A decode that never saw a transactions field is some other JSON,
	// not a deliberate empty answer.
	if !gjson.Get(cleaned, "transactions").Exists() {
		return nil, fmt.Errorf("response carries no transactions field")
	}

	drafts := make([]domain.TransactionDraft, 0, len(wr.Transactions))
	for _, wt := range wr.Transactions {
		drafts = append(drafts, wt.toDraft(provenance))
	}

	result := &domain.ParseResult{
		Transactions: drafts,
		Summary:      wr.Summary,
	}
	result.Metadata.Recompute(result.Transactions)
	// The aggregate prefers the model's own top-level confidence over
	// the recomputed per-item mean.
	result.Metadata.AverageConfidence = wr.aggregateConfidence()
	result.Metadata.QualityTier, result.Metadata.RiskTier = domain.TiersForConfidence(result.Metadata.AverageConfidence)
	return result, nil
}

// extractFieldTriples pairs type/amount/description matches by
// position. The shortest of the three lists bounds the output, so an
// unpaired tail never fabricates a transaction.
func extractFieldTriples(raw string) []domain.TransactionDraft {
	types := typeField.FindAllStringSubmatch(raw, -1)
	amounts := amountField.FindAllStringSubmatch(raw, -1)
	descriptions := descriptionField.FindAllStringSubmatch(raw, -1)

	n := len(types)
	if len(amounts) < n {
		n = len(amounts)
	}
	if len(descriptions) < n {
		n = len(descriptions)
	}

	var drafts []domain.TransactionDraft
	for i := 0; i < n; i++ {
		amount, err := strconv.ParseFloat(amounts[i][1], 64)
		if err != nil || amount <= 0 {
			continue
		}
		drafts = append(drafts, domain.TransactionDraft{
			Type:             domain.TransactionType(types[i][1]),
			Amount:           amount,
			Description:      descriptions[i][1],
			Confidence:       0.5,
			Provenance:       domain.ProvenanceHybrid,
			ValidationPassed: true,
		})
	}
	return drafts
}

// completenessScore averages a weighted field-presence score over the
// list: amount 0.3, description 0.2, type 0.2, category 0.3.
func completenessScore(drafts []domain.TransactionDraft) float64 {
	if len(drafts) == 0 {
		return 0
	}
	var sum float64
	for _, d := range drafts {
		var s float64
		if d.Amount > 0 {
			s += 0.3
		}
		if d.Description != "" {
			s += 0.2
		}
		if d.Type.Valid() {
			s += 0.2
		}
		if d.CategoryID != "" || d.CategoryName != "" {
			s += 0.3
		}
		sum += s
	}
	return sum / float64(len(drafts))
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
