/*
stats.go - Filtered reads and exact aggregation

PURPOSE:
  Shared query/aggregation helpers used by both the file and memory stores.
  Averages are computed with decimal arithmetic so the reported fraud-score
  average is exact regardless of ledger size, instead of drifting the way a
  running float64 sum would.
*/
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// newestFirst returns up to limit records in reverse ledger order.
func newestFirst(records []Record, limit int) []Record {
	out := make([]Record, 0, min(limit, len(records)))
	for i := len(records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, records[i])
	}
	return out
}

// filterRecords applies a QueryFilter to records in ledger order and returns
// matches newest first.
func filterRecords(records []Record, filter QueryFilter) ([]Record, error) {
	limit := filter.Limit
	if limit == 0 {
		limit = DefaultQueryLimit
	}
	if limit < 0 || limit > MaxQueryLimit {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrInvalidLimit, filter.Limit, MaxQueryLimit)
	}

	out := make([]Record, 0, min(limit, len(records)))
	for i := len(records) - 1; i >= 0 && len(out) < limit; i-- {
		r := records[i]
		if filter.RiskLevel != "" && r.ValidationResult.RiskLevel != filter.RiskLevel {
			continue
		}
		if filter.From != nil && r.Timestamp.Before(*filter.From) {
			continue
		}
		if filter.To != nil && r.Timestamp.After(*filter.To) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// computeStats aggregates records into ledger-wide statistics.
func computeStats(records []Record) *Stats {
	stats := &Stats{
		TotalRecords: len(records),
		RiskLevels:   make(map[string]int),
	}

	sum := decimal.Zero
	for _, r := range records {
		stats.RiskLevels[r.ValidationResult.RiskLevel]++
		if r.ValidationResult.IsAnomaly {
			stats.AnomalyCount++
		}
		sum = sum.Add(decimal.NewFromFloat(r.ValidationResult.FraudScore))
	}

	if len(records) > 0 {
		stats.AverageFraudScore = sum.Div(decimal.NewFromInt(int64(len(records)))).Round(2)
	}
	return stats
}
