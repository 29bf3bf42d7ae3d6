package domain

// Severity ranks how serious a rule violation is.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
)

// severityRank orders severities for comparison. Higher is more severe.
var severityRank = map[Severity]int{
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Rank returns the ordering weight of a severity. Unknown severities rank 0.
func (s Severity) Rank() int {
	return severityRank[s]
}

// Scope selects the evaluation strategy for a rule.
type Scope string

const (
	// ScopeSingleRecord evaluates the condition tree against each
	// transaction independently.
	ScopeSingleRecord Scope = "single_record"

	// ScopeWindowed aggregates matching transactions per (group, window)
	// bucket and fires once per bucket that satisfies the predicate.
	ScopeWindowed Scope = "windowed"
)

// Operator is a leaf comparison operator.
type Operator string

const (
	OpEq      Operator = "=="
	OpNeq     Operator = "!="
	OpGt      Operator = ">"
	OpGte     Operator = ">="
	OpLt      Operator = "<"
	OpLte     Operator = "<="
	OpIn      Operator = "IN"
	OpBetween Operator = "BETWEEN"
)

// Condition is a node in a rule's boolean expression tree. Exactly one
// form is populated per node:
//
//   - comparison leaf: Field, Operator, Value
//   - expression leaf: Expr (a CEL expression over the canonical fields)
//   - compound: And or Or (evaluated left to right, short-circuit)
//
// An empty And list is vacuously true; an empty Or list is false.
type Condition struct {
	Field    string   `json:"field,omitempty"`
	Operator Operator `json:"operator,omitempty"`
	Value    any      `json:"value,omitempty"`

	Expr string `json:"expr,omitempty"`

	And []Condition `json:"and,omitempty"`
	Or  []Condition `json:"or,omitempty"`
}

// Aggregator selects the aggregate predicate for windowed rules.
type Aggregator string

const (
	// AggCount fires when the number of matching transactions in a
	// bucket reaches the threshold.
	AggCount Aggregator = "count"

	// AggSum fires when the summed amount of matching transactions in a
	// bucket reaches the threshold.
	AggSum Aggregator = "sum"
)

// TimeWindow is the fixed-size bucket specification for windowed rules.
type TimeWindow struct {
	Size float64 `json:"size"`
	Unit string  `json:"unit"` // "hours" or "days"
}

// Hours returns the window size expressed in hours. Unknown units are
// treated as hours.
func (w TimeWindow) Hours() float64 {
	switch w.Unit {
	case "days":
		return w.Size * 24
	default:
		return w.Size
	}
}

// Rule is a named, severity-tagged predicate over one or more transactions.
// Rules arrive already authored (by hand or by an upstream extraction
// component); the engine validates their structure at load time.
type Rule struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Severity    Severity `json:"severity"`
	Scope       Scope    `json:"scope"`

	Conditions Condition `json:"conditions"`

	// TransactionType is optional rule metadata restricting the rule to
	// one category; the quality validator counts it as a type signal.
	TransactionType string `json:"transactionType,omitempty"`

	// Windowed-scope configuration. TimeWindow and GroupBy are required
	// when Scope is "windowed"; rejecting their absence is a load-time
	// configuration error.
	Threshold  float64    `json:"threshold,omitempty"`
	Aggregate  Aggregator `json:"aggregate,omitempty"`
	TimeWindow *TimeWindow `json:"timeWindow,omitempty"`
	GroupBy    []string    `json:"groupBy,omitempty"` // one field or an ordered pair

	Enabled bool `json:"enabled"`
}

// QualityResult is the output of the rule quality validator.
type QualityResult struct {
	RuleID      string   `json:"ruleId"`
	Valid       bool     `json:"valid"`
	Score       int      `json:"score"` // 0-100
	Warnings    []string `json:"warnings,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}
