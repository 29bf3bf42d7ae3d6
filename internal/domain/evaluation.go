package domain

// EvaluationResult compares flagged record indices against ground-truth
// labels for a scan.
type EvaluationResult struct {
	TruePositives  int `json:"truePositives"`
	FalsePositives int `json:"falsePositives"`
	TrueNegatives  int `json:"trueNegatives"`
	FalseNegatives int `json:"falseNegatives"`

	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Accuracy  float64 `json:"accuracy"`

	// PerRule counts flagged/fraud hits per rule without deduplicating
	// against other rules' flags.
	PerRule map[string]RuleBreakdown `json:"perRule,omitempty"`
}

// RuleBreakdown is the per-rule detection summary.
type RuleBreakdown struct {
	RuleID          string `json:"ruleId"`
	RuleName        string `json:"ruleName"`
	DetectedCount   int    `json:"detectedCount"`
	FraudInDetected int    `json:"fraudInDetected"`
}
