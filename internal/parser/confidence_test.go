package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnguyen/fintext/internal/domain"
)

func TestEnhance_TrustedConfidenceKept(t *testing.T) {
	result := &domain.ParseResult{
		Transactions: []domain.TransactionDraft{
			{Type: domain.TypeExpense, Amount: 30000, Description: "ăn phở buổi sáng", Confidence: 0.9, ValidationPassed: true},
		},
	}

	Enhancer{}.Enhance(result)

	assert.Equal(t, 0.9, result.Transactions[0].Confidence)
	assert.True(t, result.Transactions[0].ValidationPassed)
	assert.Empty(t, result.Transactions[0].Notes)
}

func TestEnhance_RecomputesUntrustedConfidence(t *testing.T) {
	result := &domain.ParseResult{
		Transactions: []domain.TransactionDraft{
			{
				Type:             domain.TypeExpense,
				Amount:           30000,
				Description:      "ăn phở buổi sáng",
				CategoryID:       "cat-1",
				CategoryName:     "Ăn uống",
				Confidence:       0.1,
				ValidationPassed: true,
			},
		},
	}

	Enhancer{}.Enhance(result)

	// 0.5 base, +0.2 amount, +0.1 description, +0.15 category, +0.05 type.
	assert.InDelta(t, 1.0, result.Transactions[0].Confidence, 1e-9)
	assert.True(t, result.Transactions[0].ValidationPassed)
}

func TestEnhance_FlagsLowConfidenceForReview(t *testing.T) {
	result := &domain.ParseResult{
		Transactions: []domain.TransactionDraft{
			{Type: domain.TypeExpense, Amount: 10000, Description: "x", Confidence: 0.55, ValidationPassed: true, Notes: "existing"},
		},
	}

	Enhancer{}.Enhance(result)

	d := result.Transactions[0]
	assert.Equal(t, 0.55, d.Confidence)
	assert.False(t, d.ValidationPassed)
	assert.Equal(t, "existing; low confidence, needs review", d.Notes)
}

func TestEnhance_RecomputeCanStillLandBelowReview(t *testing.T) {
	result := &domain.ParseResult{
		Transactions: []domain.TransactionDraft{
			{Description: "ab", Confidence: 0.1, ValidationPassed: true},
		},
	}

	Enhancer{}.Enhance(result)

	d := result.Transactions[0]
	assert.InDelta(t, 0.5, d.Confidence, 1e-9)
	assert.False(t, d.ValidationPassed)
	assert.Contains(t, d.Notes, "needs review")
}

func TestEnhance_BucketsPartitionTotal(t *testing.T) {
	result := &domain.ParseResult{
		Transactions: []domain.TransactionDraft{
			{Confidence: 0.95},
			{Confidence: 0.8},
			{Confidence: 0.7},
			{Confidence: 0.6},
			{Confidence: 0.55},
		},
	}

	Enhancer{}.Enhance(result)

	m := result.Metadata
	require.Equal(t, 5, m.TotalFound)
	assert.Equal(t, m.TotalFound, m.HighConfidence+m.MediumConfidence+m.LowConfidence)
	assert.Equal(t, 2, m.HighConfidence)
	assert.Equal(t, 2, m.MediumConfidence)
	assert.Equal(t, 1, m.LowConfidence)
	assert.InDelta(t, 0.72, m.AverageConfidence, 1e-9)
}
