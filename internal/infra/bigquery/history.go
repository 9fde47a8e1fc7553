package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const (
	historyTable   = "transactions"
	parseRunsTable = "parse_runs"

	// recentAmountsLimit and recentAmountsWindow bound the statistical
	// anomaly sample: at most 50 amounts from the trailing 3 months.
	recentAmountsLimit  = 50
	recentAmountsMonths = 3

	dateFormat = "2006-01-02"
)

// Repository holds a shared BigQuery client so one connection serves
// every operation for the process lifetime.
type Repository struct {
	client  *bigquery.Client
	dataset string
}

// NewRepository creates a repository against the given project/dataset.
func NewRepository(ctx context.Context, projectID, dataset string) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: bigquery client: %w", err)
	}
	return &Repository{client: client, dataset: dataset}, nil
}

// Close releases the underlying client.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// RecentCategoryAmounts returns the user's most recent expense amounts
// in one category, newest first, bounded by the sample window. It backs
// the statistical anomaly check.
func (r *Repository) RecentCategoryAmounts(ctx context.Context, userID, categoryID string) ([]float64, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT amount
		FROM %s.%s
		WHERE user_id = @user_id
		  AND category_id = @category_id
		  AND type = 'expense'
		  AND occurred_date >= @since
		ORDER BY occurred_date DESC, created_ts DESC
		LIMIT @row_limit
	`, r.dataset, historyTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "category_id", Value: categoryID},
		{Name: "since", Value: time.Now().AddDate(0, -recentAmountsMonths, 0).Format(dateFormat)},
		{Name: "row_limit", Value: recentAmountsLimit},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("RecentCategoryAmounts: query read: %w", err)
	}

	var amounts []float64
	for {
		var row struct {
			Amount float64 `bigquery:"amount"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("RecentCategoryAmounts: iter next: %w", err)
		}
		amounts = append(amounts, row.Amount)
	}

	return amounts, nil
}

// InsertHistory writes a batch of confirmed transactions.
func (r *Repository) InsertHistory(ctx context.Context, rows []*HistoryRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := r.client.Dataset(r.dataset).Table(historyTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertHistory: inserting rows: %w", err)
	}
	return nil
}

// TrainingExamples returns the user's categorized transactions from the
// sample window, for warming the category suggester at startup.
func (r *Repository) TrainingExamples(ctx context.Context, userID string, limit int) ([]TrainingExample, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT category_id, description
		FROM %s.%s
		WHERE user_id = @user_id
		  AND category_id IS NOT NULL
		  AND description != ''
		ORDER BY created_ts DESC
		LIMIT @row_limit
	`, r.dataset, historyTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "row_limit", Value: limit},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("TrainingExamples: query read: %w", err)
	}

	var examples []TrainingExample
	for {
		var row struct {
			CategoryID  bigquery.NullString `bigquery:"category_id"`
			Description string              `bigquery:"description"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("TrainingExamples: iter next: %w", err)
		}
		examples = append(examples, TrainingExample{
			CategoryID:  row.CategoryID.StringVal,
			Description: row.Description,
		})
	}

	return examples, nil
}
