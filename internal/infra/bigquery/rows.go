// Package bigquery persists confirmed transaction history and per-request
// parse-run audit rows. The parsing pipeline itself never blocks on this
// package: history reads feed the anomaly detector and the category
// suggester, audit writes are fire-and-forget.
package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// HistoryRow is one confirmed transaction in <dataset>.transactions.
type HistoryRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	UserID        string `bigquery:"user_id"`        // REQUIRED

	Type   string  `bigquery:"type"`   // REQUIRED expense|income|transfer
	Amount float64 `bigquery:"amount"` // REQUIRED VND

	Description  string              `bigquery:"description"`   // REQUIRED
	CategoryID   bigquery.NullString `bigquery:"category_id"`   // NULLABLE
	CategoryName bigquery.NullString `bigquery:"category_name"` // NULLABLE
	WalletID     bigquery.NullString `bigquery:"wallet_id"`     // NULLABLE
	Merchant     bigquery.NullString `bigquery:"merchant"`      // NULLABLE

	Tags []string `bigquery:"tags"` // REPEATED STRING

	OccurredDate civil.Date `bigquery:"occurred_date"` // REQUIRED
	CreatedTS    time.Time  `bigquery:"created_ts"`    // REQUIRED
}

// ParseRunRow is one audit record in <dataset>.parse_runs.
type ParseRunRow struct {
	ParseRunID string `bigquery:"parse_run_id"` // REQUIRED
	UserID     string `bigquery:"user_id"`      // NULLABLE

	Method      string `bigquery:"method"`       // REQUIRED winning strategy
	DraftCount  int64  `bigquery:"draft_count"`  // REQUIRED
	QualityTier string `bigquery:"quality_tier"` // REQUIRED

	InputLength int64 `bigquery:"input_length"` // REQUIRED
	DurationMS  int64 `bigquery:"duration_ms"`  // REQUIRED

	StartedTS time.Time `bigquery:"started_ts"` // REQUIRED
}

// TrainingExample is one (description, category) pair used to warm the
// category suggester from a user's accepted transactions.
type TrainingExample struct {
	CategoryID  string
	Description string
}

// NullableString wraps a possibly-empty string for a NULLABLE column.
func NullableString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
