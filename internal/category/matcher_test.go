package category

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dnguyen/fintext/internal/domain"
)

func testCategories() []domain.Category {
	return []domain.Category{
		{ID: "cat-food", Name: "Ăn uống", Keywords: []string{"ăn", "phở", "cơm", "cà phê"}},
		{ID: "cat-move", Name: "Di chuyển", Keywords: []string{"grab", "taxi", "xăng"}},
		{ID: "cat-shop", Name: "Mua sắm", Keywords: []string{"mua", "sách", "quần áo"}},
	}
}

func TestMatch_ExactID(t *testing.T) {
	m := NewMatcher(testCategories())
	got, ok := m.Match("cat-move", "")
	require.True(t, ok)
	assert.Equal(t, "Di chuyển", got.Name)
}

func TestMatch_ExactNameCaseInsensitive(t *testing.T) {
	m := NewMatcher(testCategories())
	got, ok := m.Match("", "ăn uống")
	require.True(t, ok)
	assert.Equal(t, "cat-food", got.ID)
}

func TestMatch_FuzzyTokenOverlap(t *testing.T) {
	m := NewMatcher(testCategories())
	got, ok := m.Match("", "chi phí di chuyển")
	require.True(t, ok)
	assert.Equal(t, "cat-move", got.ID)
}

func TestMatch_NoMatch(t *testing.T) {
	m := NewMatcher(testCategories())
	_, ok := m.Match("", "y tế")
	assert.False(t, ok)

	_, ok = m.Match("", "")
	assert.False(t, ok)
}

func TestSuggestFromDescription(t *testing.T) {
	m := NewMatcher(testCategories())
	got, conf, ok := m.SuggestFromDescription("ăn phở buổi sáng")
	require.True(t, ok)
	assert.Equal(t, "cat-food", got.ID)
	assert.Greater(t, conf, 0.0)
	assert.LessOrEqual(t, conf, 1.0)
}

func TestSuggestFromDescription_History(t *testing.T) {
	m := NewMatcher(testCategories())
	for i := 0; i < 5; i++ {
		m.TrainFromHistory("cat-move", "vé tháng xe buýt")
	}
	got, _, ok := m.SuggestFromDescription("vé tháng xe buýt")
	require.True(t, ok)
	assert.Equal(t, "cat-move", got.ID)
}

func TestSuggestFromDescription_SingleCategory(t *testing.T) {
	m := NewMatcher([]domain.Category{{ID: "only", Name: "Khác"}})
	_, _, ok := m.SuggestFromDescription("anything")
	assert.False(t, ok)
}
