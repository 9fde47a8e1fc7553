package promptbuild

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dnguyen/fintext/internal/domain"
)

func TestBuildPrompt(t *testing.T) {
	b := NewBuilder()
	prompt := b.BuildPrompt("ăn phở 30k", []domain.Category{
		{ID: "food", Name: "Ăn uống"},
	}, []domain.Wallet{
		{ID: "w1", Name: "Tiền mặt", Currency: "VND"},
	}, "")

	// The schema section drives what the recovery chain can decode.
	for _, field := range []string{`"transactions"`, `"summary"`, `"type"`, `"amount"`, `"description"`, `"confidence"`} {
		assert.Contains(t, prompt, field)
	}
	assert.Contains(t, prompt, "food: Ăn uống")
	assert.Contains(t, prompt, "w1: Tiền mặt (VND)")
	assert.Contains(t, prompt, "ăn phở 30k")
}

func TestBuildPrompt_CorrectionContext(t *testing.T) {
	b := NewBuilder()
	prompt := b.BuildPrompt("grab 25k", nil, nil, "amount was wrong last time")
	assert.Contains(t, prompt, "amount was wrong last time")
}
