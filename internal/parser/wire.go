// Package parser is the resilient core between raw model output and a
// trustworthy structured result: the recovery chain, streaming
// ingestion, confidence enhancement, count estimation and the
// orchestrating service.
package parser

import (
	"math"
	"strings"
	"time"

	"github.com/dnguyen/fintext/internal/domain"
)

// wireTransaction is one transaction object in the shape the prompt
// instructs the model to emit.
type wireTransaction struct {
	Type         string   `json:"type"`
	Amount       float64  `json:"amount"`
	Description  string   `json:"description"`
	CategoryID   *string  `json:"category_id"`
	CategoryName *string  `json:"category_name"`
	Tags         []string `json:"tags"`
	WalletID     *string  `json:"wallet_id"`
	Confidence   float64  `json:"confidence"`
	Merchant     *string  `json:"merchant"`
	Date         *string  `json:"date"`
	Notes        *string  `json:"notes"`
}

// wireResponse is the top-level object the model is asked for.
type wireResponse struct {
	Transactions     []wireTransaction `json:"transactions"`
	Summary          string            `json:"summary"`
	Confidence       *float64          `json:"confidence"`
	TransactionCount *int              `json:"transaction_count"`
}

// toDraft converts a decoded wire transaction into a domain draft with
// the given provenance. Amounts are normalized to non-negative; the
// type is lowercased but left as-is when unrecognized so the enhancer
// can penalize it.
func (w wireTransaction) toDraft(provenance domain.Provenance) domain.TransactionDraft {
	d := domain.TransactionDraft{
		Type:             domain.TransactionType(strings.ToLower(strings.TrimSpace(w.Type))),
		Amount:           math.Abs(w.Amount),
		Description:      strings.TrimSpace(w.Description),
		Tags:             w.Tags,
		Confidence:       clamp01(w.Confidence),
		Provenance:       provenance,
		ValidationPassed: true,
	}
	if w.CategoryID != nil {
		d.CategoryID = *w.CategoryID
	}
	if w.CategoryName != nil {
		d.CategoryName = *w.CategoryName
	}
	if w.WalletID != nil {
		d.WalletID = *w.WalletID
	}
	if w.Merchant != nil {
		d.Merchant = *w.Merchant
	}
	if w.Notes != nil {
		d.Notes = *w.Notes
	}
	if w.Date != nil {
		if ts, err := time.Parse("2006-01-02", *w.Date); err == nil {
			d.OccurredAt = &ts
		}
	}
	return d
}

// aggregateConfidence is the model-supplied overall confidence, or the
// mean of the per-item confidences when the model omitted it.
func (w wireResponse) aggregateConfidence() float64 {
	if w.Confidence != nil {
		return clamp01(*w.Confidence)
	}
	if len(w.Transactions) == 0 {
		return 0
	}
	var sum float64
	for _, t := range w.Transactions {
		sum += clamp01(t.Confidence)
	}
	return sum / float64(len(w.Transactions))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
