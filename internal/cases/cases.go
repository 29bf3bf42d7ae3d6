// Package cases aggregates violations into per-account cases for
// reporting.
package cases

import (
	"sort"

	"github.com/opensource-finance/shrike/internal/domain"
)

// Aggregate groups violations by account, one case per account that
// owns at least one violation, sorted by account for stable reports.
//
// TotalAmount sums each violation's amount independently: violations
// sharing record indices double-count their evidence. That is accepted
// for severity ranking, which is what cases exist for; it is not a
// financial total.
func Aggregate(violations []domain.Violation) []domain.Case {
	if len(violations) == 0 {
		return nil
	}

	byAccount := make(map[string]*domain.Case)
	for _, v := range violations {
		c, ok := byAccount[v.Account]
		if !ok {
			c = &domain.Case{Account: v.Account, MaxSeverity: v.Severity}
			byAccount[v.Account] = c
		}
		c.ViolationCount++
		c.TotalAmount += v.Amount
		if v.Severity.Rank() > c.MaxSeverity.Rank() {
			c.MaxSeverity = v.Severity
		}
		c.Violations = append(c.Violations, v)
	}

	result := make([]domain.Case, 0, len(byAccount))
	for _, c := range byAccount {
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Account < result[j].Account })
	return result
}
