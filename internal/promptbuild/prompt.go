// Package promptbuild assembles the model prompt for transaction
// extraction. The schema section must stay in sync with the wire
// shape the recovery chain decodes.
package promptbuild

import (
	"fmt"
	"strings"

	"github.com/dnguyen/fintext/internal/domain"
)

// Builder renders parse prompts. It is stateless; the category and
// wallet context is passed per call so prompts always reflect the
// caller's current taxonomy.
type Builder struct{}

// NewBuilder creates a prompt builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// BuildPrompt renders the extraction prompt for one input text.
// correctionContext is optional feedback from a prior rejected parse.
func (b *Builder) BuildPrompt(inputText string, categories []domain.Category, wallets []domain.Wallet, correctionContext string) string {
	var sb strings.Builder

	sb.WriteString("You are a financial transaction parser for Vietnamese and English free text.\n\n")
	sb.WriteString("Task:\n")
	sb.WriteString("- Extract ALL transactions described in the user text.\n")
	sb.WriteString("- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n")
	sb.WriteString("- Do NOT wrap the response in code fences or Markdown.\n\n")

	sb.WriteString("Output a single JSON object with these fields:\n")
	sb.WriteString("- \"transactions\": array of transaction objects\n")
	sb.WriteString("- \"summary\": short summary of what was found\n")
	sb.WriteString("- \"confidence\": overall confidence 0..1\n")
	sb.WriteString("- \"transaction_count\": number of transactions\n\n")

	sb.WriteString("Each transaction object must have:\n")
	sb.WriteString("- \"type\": one of \"expense\", \"income\", \"transfer\"\n")
	sb.WriteString("- \"amount\": number in VND (30k means 30000, 1 triệu means 1000000)\n")
	sb.WriteString("- \"description\": string\n")
	sb.WriteString("- \"category_id\": string or null, chosen from the categories below\n")
	sb.WriteString("- \"category_name\": string or null\n")
	sb.WriteString("- \"tags\": array of strings\n")
	sb.WriteString("- \"wallet_id\": string or null\n")
	sb.WriteString("- \"confidence\": number 0..1 for this transaction\n")
	sb.WriteString("- \"merchant\": string or null\n")
	sb.WriteString("- \"date\": string \"YYYY-MM-DD\" or null\n")
	sb.WriteString("- \"notes\": string or null\n\n")

	if len(categories) > 0 {
		sb.WriteString("Use ONLY the following categories:\n")
		for _, c := range categories {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", c.ID, c.Name))
		}
		sb.WriteString("If no category fits, set category_id and category_name to null.\n\n")
	}

	if len(wallets) > 0 {
		sb.WriteString("Known wallets:\n")
		for _, w := range wallets {
			sb.WriteString(fmt.Sprintf("- %s: %s (%s)\n", w.ID, w.Name, w.Currency))
		}
		sb.WriteString("\n")
	}

	if correctionContext != "" {
		sb.WriteString("The user corrected a previous parse of this text:\n")
		sb.WriteString(correctionContext)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Rules:\n")
	sb.WriteString("- If the text describes no financial transaction, return an empty transactions array; that is a valid answer.\n")
	sb.WriteString("- Never invent amounts; omit a transaction rather than guessing its amount.\n")
	sb.WriteString("- Keep descriptions in the user's language.\n\n")

	sb.WriteString("User text:\n")
	sb.WriteString(inputText)
	sb.WriteString("\n")

	return sb.String()
}
