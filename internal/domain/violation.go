package domain

// Violation is one instance of a rule firing, carrying the evidence
// (record indices) that triggered it. For single-record rules
// RecordIndices has exactly one element; for windowed rules it holds
// every transaction in the offending bucket.
type Violation struct {
	RuleID          string   `json:"ruleId"`
	RuleName        string   `json:"ruleName"`
	Severity        Severity `json:"severity"`
	Account         string   `json:"account"`
	Amount          float64  `json:"amount"` // single amount or bucket aggregate
	TransactionType string   `json:"transactionType,omitempty"`
	RecordIndices   []int    `json:"recordIndices"`
}

// Case groups all violations owned by one account for reporting.
// Cases are derived fresh from a violation set on each request and are
// never maintained incrementally.
type Case struct {
	Account        string      `json:"account"`
	ViolationCount int         `json:"violationCount"`
	MaxSeverity    Severity    `json:"maxSeverity"`
	TotalAmount    float64     `json:"totalAmount"`
	Violations     []Violation `json:"violations"`
}
