// Package anomaly flags individual transaction drafts as statistically
// or lexically unusual. Detection is advisory: no check failure ever
// escalates into a request error.
package anomaly

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/dnguyen/fintext/internal/domain"
)

const (
	// DefaultLargeAmountThreshold is the absolute ceiling in VND above
	// which any single transaction is flagged.
	DefaultLargeAmountThreshold = 5_000_000

	// LowConfidenceThreshold flags drafts the pipeline itself distrusts.
	// Kept below the enhancer's 0.6 review mark so the signals stay
	// distinct.
	LowConfidenceThreshold = 0.3

	// minHistorySamples is the minimum sample count before the
	// category-relative statistical check runs at all.
	minHistorySamples = 5

	outlierStddevFactor = 2.5
	outlierMeanFactor   = 3.0
)

// fillerWords are substrings that suggest placeholder or test input
// rather than a real transaction description.
var fillerWords = []string{"test", "asdf", "xxx", "lorem", "aaa", "zzz", "foo bar"}

// HistoryRepository supplies recent same-category expense amounts for
// the owning user. Implementations bound the result to the last 50
// amounts within a trailing 3-month window.
type HistoryRepository interface {
	RecentCategoryAmounts(ctx context.Context, userID, categoryID string) ([]float64, error)
}

// Detector evaluates the four unusualness checks per draft.
type Detector struct {
	history   HistoryRepository
	threshold float64
	log       zerolog.Logger
}

// NewDetector creates a detector. history may be nil, which disables
// the statistical check; threshold <= 0 selects the default ceiling.
func NewDetector(history HistoryRepository, threshold float64, log zerolog.Logger) *Detector {
	if threshold <= 0 {
		threshold = DefaultLargeAmountThreshold
	}
	return &Detector{history: history, threshold: threshold, log: log}
}

// Check evaluates every draft in place. All checks may fire on the same
// draft; reasons accumulate. History reads run concurrently across
// drafts since they are read-only and each goroutine touches a distinct
// index.
func (d *Detector) Check(ctx context.Context, userID string, drafts []domain.TransactionDraft) {
	for i := range drafts {
		d.checkLocal(&drafts[i])
	}

	if d.history == nil {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range drafts {
		draft := &drafts[i]
		if draft.Type != domain.TypeExpense || draft.CategoryID == "" {
			continue
		}
		g.Go(func() error {
			d.checkStatistical(gctx, userID, draft)
			return nil
		})
	}
	_ = g.Wait()
}

// checkLocal runs the three checks that need no datastore access.
func (d *Detector) checkLocal(draft *domain.TransactionDraft) {
	if draft.Amount > d.threshold {
		draft.MarkUnusual(fmt.Sprintf("amount %.0f exceeds the large-amount threshold %.0f", draft.Amount, d.threshold))
	}

	if draft.Confidence < LowConfidenceThreshold {
		draft.MarkUnusual(fmt.Sprintf("extraction confidence %.2f is below %.2f", draft.Confidence, LowConfidenceThreshold))
	}

	if reason, ok := lexicalSuspicion(draft.Description + " " + draft.Notes); ok {
		draft.MarkUnusual(reason)
	}
}

// checkStatistical flags a draft whose amount is far outside the user's
// recent spend in the same category. Missing history or a read error
// silently skips the check.
func (d *Detector) checkStatistical(ctx context.Context, userID string, draft *domain.TransactionDraft) {
	amounts, err := d.history.RecentCategoryAmounts(ctx, userID, draft.CategoryID)
	if err != nil {
		d.log.Warn().Err(err).
			Str("category_id", draft.CategoryID).
			Msg("history lookup failed, skipping statistical check")
		return
	}
	if len(amounts) < minHistorySamples {
		return
	}

	mean, stddev := meanStddev(amounts)
	// Both conditions required so merely-above-average spend is not flagged.
	if draft.Amount > mean+outlierStddevFactor*stddev && draft.Amount > outlierMeanFactor*mean {
		draft.MarkUnusual(fmt.Sprintf(
			"amount %.0f is a statistical outlier for this category (recent mean %.0f over %d transactions)",
			draft.Amount, mean, len(amounts)))
	}
}

// lexicalSuspicion matches descriptions that look like placeholder or
// test data: filler words or long same-digit runs.
func lexicalSuspicion(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, w := range fillerWords {
		if strings.Contains(lower, w) {
			return fmt.Sprintf("description contains placeholder text %q", w), true
		}
	}
	if hasRepeatedDigitRun(lower, 5) {
		return "description contains a repeated-digit sequence", true
	}
	return "", false
}

// hasRepeatedDigitRun reports a run of n or more identical digits.
func hasRepeatedDigitRun(s string, n int) bool {
	run := 0
	var prev rune
	for _, r := range s {
		if r >= '0' && r <= '9' && r == prev {
			run++
			if run >= n {
				return true
			}
		} else if r >= '0' && r <= '9' {
			run = 1
		} else {
			run = 0
		}
		prev = r
	}
	return false
}

func meanStddev(values []float64) (float64, float64) {
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}
