package rules

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/opensource-finance/shrike/internal/cache"
	"github.com/opensource-finance/shrike/internal/domain"
	"github.com/opensource-finance/shrike/internal/window"
)

// Engine evaluates rule sets against in-memory transaction batches.
// It holds only shared compilation state (the CEL environment and the
// compiled-program cache); rule sets are compiled per call and a run is
// a pure function of (rule set, transactions).
type Engine struct {
	compiler   *compiler
	maxWorkers int

	// temporalScale converts dataset-native steps into hours; a compile
	// call may override it per rule set.
	temporalScale float64
}

// RuleSet is a validated, compiled set of rules ready to run. Compiling
// once and running many times keeps repeated scans of the same rule set
// cheap.
type RuleSet struct {
	rules []*compiledRule
}

type compiledRule struct {
	rule domain.Rule
	pred Predicate

	// Windowed-scope state, resolved at compile time.
	windowHours   float64
	temporalScale float64
	groupKey      func(*domain.Transaction) string
	groupAccount  func(*domain.Transaction) string
}

// NewEngine creates a batch rule engine.
func NewEngine(cfg domain.EngineConfig) (*Engine, error) {
	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 8
	}
	scale := cfg.TemporalScale
	if scale <= 0 {
		scale = 1.0
	}

	env, err := newCELEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		compiler: &compiler{
			env:      env,
			programs: cache.NewProgramCache(cfg.ProgramCacheSize),
		},
		maxWorkers:    maxWorkers,
		temporalScale: scale,
	}, nil
}

// Size returns the number of rules in a compiled set.
func (rs *RuleSet) Size() int {
	return len(rs.rules)
}

// Compile validates and compiles a rule set. Disabled rules are
// skipped. Structural problems are configuration errors surfaced here,
// never at scan time: an unknown field, an invalid expression, or a
// windowed rule missing its time window or group-by key all reject the
// whole set.
//
// temporalScale overrides the engine default when positive.
func (e *Engine) Compile(ruleDefs []domain.Rule, temporalScale float64) (*RuleSet, error) {
	if temporalScale <= 0 {
		temporalScale = e.temporalScale
	}

	set := &RuleSet{rules: make([]*compiledRule, 0, len(ruleDefs))}
	for i := range ruleDefs {
		rule := ruleDefs[i]
		if !rule.Enabled {
			continue
		}

		pred, err := e.compiler.compile(rule.Conditions)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
		}

		cr := &compiledRule{rule: rule, pred: pred, temporalScale: temporalScale}

		switch rule.Scope {
		case domain.ScopeSingleRecord:
			// No extra configuration.

		case domain.ScopeWindowed:
			if err := compileWindowed(cr); err != nil {
				return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
			}

		default:
			return nil, fmt.Errorf("rule %s: unknown scope %q", rule.ID, rule.Scope)
		}

		set.rules = append(set.rules, cr)
	}

	return set, nil
}

// compileWindowed resolves window and group-by configuration for a
// windowed rule.
func compileWindowed(cr *compiledRule) error {
	rule := cr.rule

	if rule.TimeWindow == nil {
		return fmt.Errorf("windowed scope requires a time window")
	}
	cr.windowHours = rule.TimeWindow.Hours()
	if cr.windowHours <= 0 {
		return fmt.Errorf("time window must be positive, got %v %s", rule.TimeWindow.Size, rule.TimeWindow.Unit)
	}

	if len(rule.GroupBy) == 0 || len(rule.GroupBy) > 2 {
		return fmt.Errorf("windowed scope requires a group-by field or ordered field pair, got %d fields", len(rule.GroupBy))
	}
	accessors := make([]accessor, 0, len(rule.GroupBy))
	for _, field := range rule.GroupBy {
		acc, ok := fieldAccessors[field]
		if !ok {
			return fmt.Errorf("unknown group-by field %q", field)
		}
		if acc.kind != kindText {
			return fmt.Errorf("group-by field %q is not an identifier field", field)
		}
		accessors = append(accessors, acc)
	}

	cr.groupKey = func(tx *domain.Transaction) string {
		parts := make([]string, len(accessors))
		for i, acc := range accessors {
			parts[i] = acc.text(tx)
		}
		return strings.Join(parts, "\x1f")
	}
	// The violation's account is the first group-by dimension, which by
	// convention is the origin account.
	first := accessors[0]
	cr.groupAccount = first.text

	if rule.Threshold <= 0 {
		return fmt.Errorf("windowed scope requires a positive threshold")
	}
	switch rule.Aggregate {
	case domain.AggCount, domain.AggSum:
	case "":
		cr.rule.Aggregate = domain.AggCount
	default:
		return fmt.Errorf("unknown aggregate %q", rule.Aggregate)
	}

	return nil
}

// Run evaluates every rule in the set against the transaction batch and
// returns all violations, concatenated in rule declaration order. Rules
// are independent of one another, so they run in parallel under a
// bounded worker pool; the loop over transactions inside each rule stays
// in input order.
func (e *Engine) Run(ctx context.Context, set *RuleSet, txs []domain.Transaction) []domain.Violation {
	if set == nil || len(set.rules) == 0 || len(txs) == 0 {
		return nil
	}

	perRule := make([][]domain.Violation, len(set.rules))
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)

	for i, cr := range set.rules {
		wg.Add(1)
		go func(idx int, cr *compiledRule) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}
			perRule[idx] = evaluateRule(cr, txs)
		}(i, cr)
	}

	wg.Wait()

	var violations []domain.Violation
	for _, vs := range perRule {
		violations = append(violations, vs...)
	}
	return violations
}

// evaluateRule dispatches on scope.
func evaluateRule(cr *compiledRule, txs []domain.Transaction) []domain.Violation {
	if cr.rule.Scope == domain.ScopeWindowed {
		return evaluateWindowed(cr, txs)
	}
	return evaluateSingleRecord(cr, txs)
}

// evaluateSingleRecord emits one violation per matching transaction.
func evaluateSingleRecord(cr *compiledRule, txs []domain.Transaction) []domain.Violation {
	var violations []domain.Violation
	for i := range txs {
		tx := &txs[i]
		if !ruleMatches(cr, tx) {
			continue
		}
		violations = append(violations, domain.Violation{
			RuleID:          cr.rule.ID,
			RuleName:        cr.rule.Name,
			Severity:        cr.rule.Severity,
			Account:         tx.Account,
			Amount:          tx.Amount,
			TransactionType: tx.Type,
			RecordIndices:   []int{tx.Index},
		})
	}
	return violations
}

// evaluateWindowed filters matching transactions, partitions them by
// group key and fixed-origin window, and emits one violation per bucket
// whose aggregate reaches the threshold. Record indices are the original
// Transaction.Index values of everything in the bucket.
func evaluateWindowed(cr *compiledRule, txs []domain.Transaction) []domain.Violation {
	var matching []domain.Transaction
	for i := range txs {
		if ruleMatches(cr, &txs[i]) {
			matching = append(matching, txs[i])
		}
	}
	if len(matching) == 0 {
		return nil
	}

	groups := window.GroupBy(matching, cr.groupKey)

	// Sorted group and window iteration keeps output deterministic.
	groupKeys := make([]string, 0, len(groups))
	for k := range groups {
		groupKeys = append(groupKeys, k)
	}
	sort.Strings(groupKeys)

	var violations []domain.Violation
	for _, gk := range groupKeys {
		buckets := window.Partition(groups[gk], cr.windowHours, cr.temporalScale)

		windowKeys := make([]int64, 0, len(buckets))
		for wk := range buckets {
			windowKeys = append(windowKeys, wk)
		}
		sort.Slice(windowKeys, func(i, j int) bool { return windowKeys[i] < windowKeys[j] })

		for _, wk := range windowKeys {
			bucket := buckets[wk]

			var sum float64
			for i := range bucket {
				sum += bucket[i].Amount
			}

			var aggregate float64
			if cr.rule.Aggregate == domain.AggSum {
				aggregate = sum
			} else {
				aggregate = float64(len(bucket))
			}
			if aggregate < cr.rule.Threshold {
				continue
			}

			indices := make([]int, len(bucket))
			for i := range bucket {
				indices[i] = bucket[i].Index
			}

			txType := cr.rule.TransactionType
			if txType == "" {
				txType = bucket[0].Type
			}

			violations = append(violations, domain.Violation{
				RuleID:          cr.rule.ID,
				RuleName:        cr.rule.Name,
				Severity:        cr.rule.Severity,
				Account:         cr.groupAccount(&bucket[0]),
				Amount:          sum,
				TransactionType: txType,
				RecordIndices:   indices,
			})
		}
	}
	return violations
}

// ruleMatches applies the optional transaction-type restriction and the
// condition tree.
func ruleMatches(cr *compiledRule, tx *domain.Transaction) bool {
	if cr.rule.TransactionType != "" && tx.Type != cr.rule.TransactionType {
		return false
	}
	return cr.pred(tx)
}
