package domain

import (
	"time"
)

// TransactionType classifies a draft as money out, money in, or a move
// between the user's own wallets.
type TransactionType string

const (
	TypeExpense  TransactionType = "expense"
	TypeIncome   TransactionType = "income"
	TypeTransfer TransactionType = "transfer"
)

// Valid reports whether t is one of the three recognized types.
func (t TransactionType) Valid() bool {
	return t == TypeExpense || t == TypeIncome || t == TypeTransfer
}

// Provenance records which recovery strategy produced a draft.
type Provenance string

const (
	ProvenanceModelDirect Provenance = "model-direct"
	ProvenanceRepaired    Provenance = "repaired"
	ProvenanceHybrid      Provenance = "hybrid"
	ProvenanceRuleBased   Provenance = "rule-based"
)

// TransactionDraft is one candidate transaction awaiting user confirmation.
// A draft is created by exactly one recovery strategy and may be mutated
// only during enhancement (confidence, category, unusual flags) before it
// is frozen into the returned ParseResult.
type TransactionDraft struct {
	Type         TransactionType `json:"type"`
	Amount       float64         `json:"amount"`
	Description  string          `json:"description"`
	CategoryID   string          `json:"category_id,omitempty"`
	CategoryName string          `json:"category_name,omitempty"`
	Tags         []string        `json:"tags,omitempty"`
	WalletID     string          `json:"wallet_id,omitempty"`
	Confidence   float64         `json:"confidence"`
	Merchant     string          `json:"merchant,omitempty"`
	OccurredAt   *time.Time      `json:"occurred_at,omitempty"`
	Notes        string          `json:"notes,omitempty"`

	IsUnusual      bool     `json:"is_unusual"`
	UnusualReasons []string `json:"unusual_reasons,omitempty"`

	Provenance Provenance `json:"provenance"`

	// ValidationPassed is cleared by the enhancer for drafts that need
	// human review before acceptance.
	ValidationPassed bool `json:"validation_passed"`
}

// AppendNote adds a note without overwriting what is already there.
func (d *TransactionDraft) AppendNote(note string) {
	if d.Notes == "" {
		d.Notes = note
		return
	}
	d.Notes = d.Notes + "; " + note
}

// MarkUnusual sets the unusual flag and accumulates the reason.
func (d *TransactionDraft) MarkUnusual(reason string) {
	d.IsUnusual = true
	d.UnusualReasons = append(d.UnusualReasons, reason)
}
