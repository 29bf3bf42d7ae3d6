package rules

import (
	"strings"

	"github.com/opensource-finance/shrike/internal/domain"
)

// The quality validator is a heuristic linter over rule definitions. It
// never touches a dataset and never errors: every rule, however
// malformed, gets a score. Its job is to push rule authors (human or
// upstream extraction) toward multi-signal rules before they run against
// real data, because single-signal rules are the primary source of false
// positives.

// ruleProfile is the static shape of a rule that the quality checks
// inspect.
type ruleProfile struct {
	leafCount          int // comparison + expression leaves in the tree
	hasTypeRestriction bool
	hasAmountSignal    bool
	hasWindow          bool
	hasBalanceField    bool
	hasThreshold       bool
	threshold          float64
}

// signalDimensions counts independent signals: amount threshold,
// explicit conditions, time window presence, type specificity.
func (p *ruleProfile) signalDimensions() int {
	n := 0
	if p.hasThreshold {
		n++
	}
	if p.leafCount > 0 {
		n++
	}
	if p.hasWindow {
		n++
	}
	if p.hasTypeRestriction {
		n++
	}
	return n
}

// strongSignals counts the dimensions the add-back bonus looks at:
// amount, type, time window, behavioral (balance) fields.
func (p *ruleProfile) strongSignals() int {
	n := 0
	if p.hasAmountSignal {
		n++
	}
	if p.hasTypeRestriction {
		n++
	}
	if p.hasWindow {
		n++
	}
	if p.hasBalanceField {
		n++
	}
	return n
}

// qualityCheck is one named scoring adjustment. Negative weights deduct
// from the starting score of 100; positive weights add back. Keeping
// the checks as a data-driven list makes each one independently
// testable and keeps the magic numbers in one place.
type qualityCheck struct {
	name       string
	weight     int
	warning    string
	suggestion string
	applies    func(p *ruleProfile) bool
}

var qualityChecks = []qualityCheck{
	{
		name:       "no-type-restriction",
		weight:     -25,
		warning:    "no transaction type restriction: rule will flag every transaction type",
		suggestion: `restrict the rule to specific types, e.g. type IN ["CASH_OUT", "TRANSFER"]`,
		applies:    func(p *ruleProfile) bool { return !p.hasTypeRestriction },
	},
	{
		name:       "single-signal",
		weight:     -20,
		warning:    "fewer than 2 independent signal dimensions",
		suggestion: "combine at least two of: amount threshold, conditions, time window, type restriction",
		applies:    func(p *ruleProfile) bool { return p.signalDimensions() < 2 },
	},
	{
		name:       "threshold-only",
		weight:     -15,
		warning:    "threshold-only rule: a bare threshold without a time window or supporting conditions",
		suggestion: "add a time window or at least two supporting conditions",
		applies: func(p *ruleProfile) bool {
			return p.hasThreshold && !p.hasWindow && p.leafCount < 2
		},
	},
	{
		name:       "low-threshold",
		weight:     -10,
		warning:    "threshold below 5,000: low absolute thresholds without context generate excessive matches",
		suggestion: "raise the threshold or add narrowing conditions",
		applies: func(p *ruleProfile) bool {
			return p.hasThreshold && p.threshold < 5000
		},
	},
	{
		name:       "sparse-windowed",
		weight:     -10,
		warning:    "time window present but fewer than 3 total conditions",
		suggestion: "windowed rules work best with a type restriction and an amount condition",
		applies: func(p *ruleProfile) bool {
			n := p.leafCount
			if p.hasThreshold {
				n++
			}
			return p.hasWindow && n < 3
		},
	},
	{
		name:    "behavioral-signal",
		weight:  10,
		applies: func(p *ruleProfile) bool { return p.hasBalanceField },
	},
	{
		name:    "multi-signal",
		weight:  15,
		applies: func(p *ruleProfile) bool { return p.strongSignals() >= 2 },
	},
}

// ValidateQuality scores a rule definition's specificity and estimated
// false-positive risk. Deterministic and side-effect free; valid means
// score >= 50.
func ValidateQuality(rule *domain.Rule) *domain.QualityResult {
	profile := profileRule(rule)

	score := 100
	result := &domain.QualityResult{RuleID: rule.ID}

	for _, check := range qualityChecks {
		if !check.applies(profile) {
			continue
		}
		score += check.weight
		if check.warning != "" {
			result.Warnings = append(result.Warnings, check.warning)
		}
		if check.suggestion != "" {
			result.Suggestions = append(result.Suggestions, check.suggestion)
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	result.Score = score
	result.Valid = score >= 50
	return result
}

// profileRule extracts the static shape the checks look at.
func profileRule(rule *domain.Rule) *ruleProfile {
	p := &ruleProfile{
		hasWindow:    rule.TimeWindow != nil && rule.TimeWindow.Hours() > 0,
		hasThreshold: rule.Threshold > 0,
		threshold:    rule.Threshold,
	}
	if rule.TransactionType != "" {
		p.hasTypeRestriction = true
	}
	if p.hasThreshold {
		p.hasAmountSignal = true
	}

	walkCondition(rule.Conditions, p)
	return p
}

// balanceFields are the behavioral signals the add-back rewards.
var balanceFields = map[string]bool{
	domain.FieldOriginBalanceBefore: true,
	domain.FieldOriginBalanceAfter:  true,
	domain.FieldDestBalanceBefore:   true,
	domain.FieldDestBalanceAfter:    true,
}

// exprSignals maps CEL variable names to the profile flags they set.
// Substring matching is deliberately crude; this is a linter, not a
// parser.
var exprSignals = []struct {
	needle  string
	balance bool
	typed   bool
	amount  bool
}{
	{needle: "old_balance", balance: true},
	{needle: "new_balance", balance: true},
	{needle: "tx_type", typed: true},
	{needle: "amount", amount: true},
}

func walkCondition(cond domain.Condition, p *ruleProfile) {
	switch {
	case cond.And != nil:
		for _, child := range cond.And {
			walkCondition(child, p)
		}
	case cond.Or != nil:
		for _, child := range cond.Or {
			walkCondition(child, p)
		}
	case cond.Expr != "":
		p.leafCount++
		for _, sig := range exprSignals {
			if !strings.Contains(cond.Expr, sig.needle) {
				continue
			}
			if sig.balance {
				p.hasBalanceField = true
			}
			if sig.typed {
				p.hasTypeRestriction = true
			}
			if sig.amount {
				p.hasAmountSignal = true
			}
		}
	case cond.Field != "":
		p.leafCount++
		switch {
		case balanceFields[cond.Field]:
			p.hasBalanceField = true
		case cond.Field == domain.FieldType:
			p.hasTypeRestriction = true
		case cond.Field == domain.FieldAmount:
			p.hasAmountSignal = true
		}
	}
}
