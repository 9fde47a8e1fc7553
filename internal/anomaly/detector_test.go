package anomaly

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnguyen/fintext/internal/domain"
)

type fakeHistory struct {
	amounts map[string][]float64
	err     error
}

func (f *fakeHistory) RecentCategoryAmounts(_ context.Context, _, categoryID string) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.amounts[categoryID], nil
}

func expenseDraft(amount, confidence float64, categoryID string) domain.TransactionDraft {
	return domain.TransactionDraft{
		Type:        domain.TypeExpense,
		Amount:      amount,
		Description: "ăn tối",
		CategoryID:  categoryID,
		Confidence:  confidence,
	}
}

func TestCheck_LargeAmountThreshold(t *testing.T) {
	d := NewDetector(nil, 5_000_000, zerolog.Nop())
	drafts := []domain.TransactionDraft{expenseDraft(6_000_000, 0.9, "")}

	d.Check(context.Background(), "u1", drafts)

	require.True(t, drafts[0].IsUnusual)
	require.Len(t, drafts[0].UnusualReasons, 1)
	assert.Contains(t, drafts[0].UnusualReasons[0], "5000000")
}

func TestCheck_LowConfidence(t *testing.T) {
	d := NewDetector(nil, 0, zerolog.Nop())
	drafts := []domain.TransactionDraft{expenseDraft(10_000, 0.2, "")}

	d.Check(context.Background(), "u1", drafts)

	require.True(t, drafts[0].IsUnusual)
	assert.Contains(t, drafts[0].UnusualReasons[0], "0.20")
}

func TestCheck_StatisticalOutlier(t *testing.T) {
	history := &fakeHistory{amounts: map[string][]float64{
		"cat-food": {30000, 40000, 35000, 45000, 50000, 30000},
	}}
	d := NewDetector(history, 0, zerolog.Nop())

	drafts := []domain.TransactionDraft{
		expenseDraft(1_000_000, 0.9, "cat-food"),
		expenseDraft(45_000, 0.9, "cat-food"),
	}
	d.Check(context.Background(), "u1", drafts)

	assert.True(t, drafts[0].IsUnusual, "far-outlier amount should be flagged")
	assert.False(t, drafts[1].IsUnusual, "amount within recent spend should pass")
}

func TestCheck_AboveAverageButNotOutlier(t *testing.T) {
	// Above mean but not 3x mean: both conditions are required.
	history := &fakeHistory{amounts: map[string][]float64{
		"cat-food": {30000, 40000, 35000, 45000, 50000},
	}}
	d := NewDetector(history, 0, zerolog.Nop())

	drafts := []domain.TransactionDraft{expenseDraft(60_000, 0.9, "cat-food")}
	d.Check(context.Background(), "u1", drafts)

	assert.False(t, drafts[0].IsUnusual)
}

func TestCheck_InsufficientHistorySkipsSilently(t *testing.T) {
	history := &fakeHistory{amounts: map[string][]float64{
		"cat-new": {30000, 40000},
	}}
	d := NewDetector(history, 0, zerolog.Nop())

	drafts := []domain.TransactionDraft{expenseDraft(4_000_000, 0.9, "cat-new")}
	d.Check(context.Background(), "u1", drafts)

	assert.False(t, drafts[0].IsUnusual)
}

func TestCheck_HistoryErrorSkipsCheck(t *testing.T) {
	history := &fakeHistory{err: errors.New("bigquery unavailable")}
	d := NewDetector(history, 0, zerolog.Nop())

	drafts := []domain.TransactionDraft{expenseDraft(4_000_000, 0.9, "cat-food")}
	d.Check(context.Background(), "u1", drafts)

	assert.False(t, drafts[0].IsUnusual)
}

func TestCheck_LexicalSuspicion(t *testing.T) {
	d := NewDetector(nil, 0, zerolog.Nop())
	drafts := []domain.TransactionDraft{
		{Type: domain.TypeExpense, Amount: 10000, Description: "test transaction", Confidence: 0.9},
		{Type: domain.TypeExpense, Amount: 11111, Description: "gửi 1111111 đồng", Confidence: 0.9},
	}

	d.Check(context.Background(), "u1", drafts)

	assert.True(t, drafts[0].IsUnusual)
	assert.True(t, drafts[1].IsUnusual)
}

func TestCheck_ReasonsAccumulate(t *testing.T) {
	d := NewDetector(nil, 5_000_000, zerolog.Nop())
	drafts := []domain.TransactionDraft{{
		Type:        domain.TypeExpense,
		Amount:      6_000_000,
		Description: "asdf",
		Confidence:  0.1,
	}}

	d.Check(context.Background(), "u1", drafts)

	require.True(t, drafts[0].IsUnusual)
	assert.Len(t, drafts[0].UnusualReasons, 3)
}

func TestInvariant_UnusualMatchesReasons(t *testing.T) {
	d := NewDetector(nil, 0, zerolog.Nop())
	drafts := []domain.TransactionDraft{
		expenseDraft(10_000, 0.9, ""),
		expenseDraft(9_000_000, 0.9, ""),
	}
	d.Check(context.Background(), "u1", drafts)

	for _, draft := range drafts {
		assert.Equal(t, draft.IsUnusual, len(draft.UnusualReasons) > 0)
	}
}
