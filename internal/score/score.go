// Package score computes detection quality metrics against ground-truth
// labels. Labels are only ever available on offline evaluation datasets;
// nothing here feeds back into rule evaluation.
package score

import (
	"github.com/opensource-finance/shrike/internal/domain"
)

// Evaluate compares the flagged record set (the union of all violations'
// record indices) against the ground-truth labels on the transactions.
//
// The confusion matrix partitions every transaction exactly once, so
// tp+fp+tn+fn always equals the transaction count, no matter how many
// rules flagged the same record. The per-rule breakdown does not
// deduplicate across rules: a record flagged by three rules appears in
// all three breakdown rows and once in the matrix.
func Evaluate(violations []domain.Violation, txs []domain.Transaction) *domain.EvaluationResult {
	flagged := make(map[int]bool)
	for _, v := range violations {
		for _, idx := range v.RecordIndices {
			flagged[idx] = true
		}
	}

	fraudByIndex := make(map[int]bool, len(txs))
	result := &domain.EvaluationResult{}
	for i := range txs {
		tx := &txs[i]
		fraudByIndex[tx.Index] = tx.IsFraud
		switch {
		case flagged[tx.Index] && tx.IsFraud:
			result.TruePositives++
		case flagged[tx.Index]:
			result.FalsePositives++
		case tx.IsFraud:
			result.FalseNegatives++
		default:
			result.TrueNegatives++
		}
	}

	result.Precision = ratio(result.TruePositives, result.TruePositives+result.FalsePositives)
	result.Recall = ratio(result.TruePositives, result.TruePositives+result.FalseNegatives)
	if result.Precision+result.Recall > 0 {
		result.F1 = 2 * result.Precision * result.Recall / (result.Precision + result.Recall)
	}
	result.Accuracy = ratio(result.TruePositives+result.TrueNegatives, len(txs))

	result.PerRule = perRuleBreakdown(violations, fraudByIndex)
	return result
}

// ratio divides with a 0 guard: every metric degrades to 0 rather than
// NaN when its denominator is empty.
func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// perRuleBreakdown counts, for each rule, its flagged records and how
// many of those are labeled fraud.
func perRuleBreakdown(violations []domain.Violation, fraudByIndex map[int]bool) map[string]domain.RuleBreakdown {
	if len(violations) == 0 {
		return nil
	}

	perRule := make(map[string]map[int]bool)
	names := make(map[string]string)
	for _, v := range violations {
		seen, ok := perRule[v.RuleID]
		if !ok {
			seen = make(map[int]bool)
			perRule[v.RuleID] = seen
			names[v.RuleID] = v.RuleName
		}
		for _, idx := range v.RecordIndices {
			seen[idx] = true
		}
	}

	breakdown := make(map[string]domain.RuleBreakdown, len(perRule))
	for ruleID, seen := range perRule {
		b := domain.RuleBreakdown{RuleID: ruleID, RuleName: names[ruleID]}
		for idx := range seen {
			b.DetectedCount++
			if fraudByIndex[idx] {
				b.FraudInDetected++
			}
		}
		breakdown[ruleID] = b
	}
	return breakdown
}
