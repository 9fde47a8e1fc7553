package category

import (
	"github.com/dnguyen/fintext/internal/domain"
	"github.com/dnguyen/fintext/internal/ruleparse"
)

// defaultIDs maps lexicon category names to stable taxonomy ids. Kept
// in lockstep with ruleparse.CategoryRules.
var defaultIDs = map[string]string{
	"Ăn uống":   "food",
	"Di chuyển": "transport",
	"Mua sắm":   "shopping",
	"Giải trí":  "entertainment",
}

// DefaultTaxonomy builds the canonical category list from the rule
// lexicon, plus the catch-all. Deployments with their own taxonomy pass
// it to NewMatcher directly instead.
func DefaultTaxonomy() []domain.Category {
	var categories []domain.Category
	for _, rule := range ruleparse.CategoryRules {
		id, ok := defaultIDs[rule.Name]
		if !ok {
			continue
		}
		categories = append(categories, domain.Category{
			ID:       id,
			Name:     rule.Name,
			Keywords: rule.Keywords,
		})
	}
	categories = append(categories, domain.Category{
		ID:   "other",
		Name: ruleparse.DefaultCategoryName,
	})
	return categories
}
