// Package category resolves model- or rule-suggested category names and
// ids against the canonical taxonomy.
package category

import (
	"math"
	"strings"

	"github.com/jbrukh/bayesian"

	"github.com/dnguyen/fintext/internal/domain"
)

// minOverlap is the token-overlap score below which a fuzzy match is
// rejected rather than guessed.
const minOverlap = 0.5

// Matcher holds the canonical category list plus lookup structures.
type Matcher struct {
	categories []domain.Category
	byID       map[string]int
	byName     map[string]int

	classes    []bayesian.Class
	classifier *bayesian.Classifier
}

// NewMatcher builds a matcher over the canonical list. The bayesian
// suggester is seeded from each category's keyword set; TrainFromHistory
// can refine it with real descriptions later.
func NewMatcher(categories []domain.Category) *Matcher {
	m := &Matcher{
		categories: categories,
		byID:       make(map[string]int, len(categories)),
		byName:     make(map[string]int, len(categories)),
	}

	for i, c := range categories {
		m.byID[c.ID] = i
		m.byName[normalize(c.Name)] = i
		m.classes = append(m.classes, bayesian.Class(c.ID))
	}

	// A classifier needs at least two classes to be meaningful.
	if len(m.classes) >= 2 {
		m.classifier = bayesian.NewClassifier(m.classes...)
		for _, c := range categories {
			if len(c.Keywords) > 0 {
				m.classifier.Learn(tokenize(strings.Join(c.Keywords, " ")), bayesian.Class(c.ID))
			}
		}
	}

	return m
}

// Match resolves a suggested id/name pair against the taxonomy. Exact id
// wins, then exact normalized name, then best token overlap above the
// acceptance floor.
func (m *Matcher) Match(suggestedID, suggestedName string) (domain.Category, bool) {
	if i, ok := m.byID[suggestedID]; ok && suggestedID != "" {
		return m.categories[i], true
	}

	norm := normalize(suggestedName)
	if norm == "" {
		return domain.Category{}, false
	}
	if i, ok := m.byName[norm]; ok {
		return m.categories[i], true
	}

	bestIdx, bestScore := -1, 0.0
	for i, c := range m.categories {
		score := tokenOverlap(norm, normalize(c.Name))
		if score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	if bestIdx >= 0 && bestScore >= minOverlap {
		return m.categories[bestIdx], true
	}
	return domain.Category{}, false
}

// TrainFromHistory teaches the suggester that a description belonged to
// a category, using the user's accepted transactions.
func (m *Matcher) TrainFromHistory(categoryID, description string) {
	if m.classifier == nil {
		return
	}
	if _, ok := m.byID[categoryID]; !ok {
		return
	}
	m.classifier.Learn(tokenize(description), bayesian.Class(categoryID))
}

// SuggestFromDescription returns the most likely category for a free
// description with a softmax-normalized confidence, for drafts the model
// left uncategorized.
func (m *Matcher) SuggestFromDescription(description string) (domain.Category, float64, bool) {
	if m.classifier == nil {
		return domain.Category{}, 0, false
	}
	terms := tokenize(description)
	if len(terms) == 0 {
		return domain.Category{}, 0, false
	}

	scores, best, _ := m.classifier.LogScores(terms)
	if len(scores) == 0 || best < 0 || best >= len(m.classes) {
		return domain.Category{}, 0, false
	}

	confidence := softmaxTop(scores, best)
	i, ok := m.byID[string(m.classes[best])]
	if !ok {
		return domain.Category{}, 0, false
	}
	return m.categories[i], confidence, true
}

// softmaxTop converts log scores into the normalized probability of the
// chosen class.
func softmaxTop(scores []float64, best int) float64 {
	max := scores[0]
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	var sum float64
	exps := make([]float64, len(scores))
	for i, s := range scores {
		exps[i] = math.Exp(s - max)
		sum += exps[i]
	}
	if sum == 0 {
		return 0
	}
	return exps[best] / sum
}

func normalize(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(name))), " ")
}

func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

func tokenOverlap(a, b string) float64 {
	at := strings.Fields(a)
	bt := strings.Fields(b)
	if len(at) == 0 || len(bt) == 0 {
		return 0
	}
	set := make(map[string]bool, len(at))
	for _, t := range at {
		set[t] = true
	}
	shared := 0
	union := len(at)
	for _, t := range bt {
		if set[t] {
			shared++
		} else {
			union++
		}
	}
	return float64(shared) / float64(union)
}
