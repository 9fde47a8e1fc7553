package bigquery

import (
	"context"
	"fmt"

	"github.com/dnguyen/fintext/internal/parser"
)

// RecordRun writes one parse-run audit row. The caller treats failures
// as advisory, so this only reports the error and never retries.
func (r *Repository) RecordRun(ctx context.Context, run *parser.ParseRun) error {
	row := &ParseRunRow{
		ParseRunID:  run.RunID,
		UserID:      run.UserID,
		Method:      run.Method,
		DraftCount:  int64(run.DraftCount),
		QualityTier: run.QualityTier,
		InputLength: int64(run.InputLength),
		DurationMS:  run.Duration.Milliseconds(),
		StartedTS:   run.StartedAt,
	}

	inserter := r.client.Dataset(r.dataset).Table(parseRunsTable).Inserter()
	if err := inserter.Put(ctx, []*ParseRunRow{row}); err != nil {
		return fmt.Errorf("RecordRun: inserting row: %w", err)
	}
	return nil
}
