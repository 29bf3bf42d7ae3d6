// Package rules provides the batch rule evaluation engine: condition
// trees, CEL expression leaves, windowed aggregation, and the rule
// quality validator.
package rules

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/opensource-finance/shrike/internal/cache"
	"github.com/opensource-finance/shrike/internal/domain"
)

// Predicate is a compiled condition, total over any transaction.
type Predicate func(*domain.Transaction) bool

// fieldKind distinguishes text fields from numeric ones. Relational
// operators and BETWEEN require a numeric field; on text fields they
// evaluate false rather than erroring.
type fieldKind int

const (
	kindNumber fieldKind = iota
	kindText
)

type accessor struct {
	kind fieldKind
	num  func(*domain.Transaction) float64
	text func(*domain.Transaction) string
}

// fieldAccessors is the closed set of rule-addressable fields, resolved
// once at rule load. Ground truth (is_fraud) is deliberately absent: the
// engine never sees labels.
var fieldAccessors = map[string]accessor{
	domain.FieldStep:      {kind: kindNumber, num: func(t *domain.Transaction) float64 { return t.Step }},
	domain.FieldAmount:    {kind: kindNumber, num: func(t *domain.Transaction) float64 { return t.Amount }},
	domain.FieldType:      {kind: kindText, text: func(t *domain.Transaction) string { return t.Type }},
	domain.FieldAccount:   {kind: kindText, text: func(t *domain.Transaction) string { return t.Account }},
	domain.FieldRecipient: {kind: kindText, text: func(t *domain.Transaction) string { return t.Recipient }},
	domain.FieldOriginBalanceBefore: {kind: kindNumber, num: func(t *domain.Transaction) float64 { return t.OriginBalanceBefore }},
	domain.FieldOriginBalanceAfter:  {kind: kindNumber, num: func(t *domain.Transaction) float64 { return t.OriginBalanceAfter }},
	domain.FieldDestBalanceBefore:   {kind: kindNumber, num: func(t *domain.Transaction) float64 { return t.DestBalanceBefore }},
	domain.FieldDestBalanceAfter:    {kind: kindNumber, num: func(t *domain.Transaction) float64 { return t.DestBalanceAfter }},
}

// KnownField reports whether a field name is rule-addressable.
func KnownField(name string) bool {
	_, ok := fieldAccessors[name]
	return ok
}

// newCELEnv builds the CEL environment exposing the canonical
// transaction fields to expression leaves. Variable names follow the
// PaySim convention for balances.
func newCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("tx_type", cel.StringType),
		cel.Variable("account", cel.StringType),
		cel.Variable("recipient", cel.StringType),
		cel.Variable("step", cel.DoubleType),
		cel.Variable("old_balance", cel.DoubleType),
		cel.Variable("new_balance", cel.DoubleType),
		cel.Variable("dest_old_balance", cel.DoubleType),
		cel.Variable("dest_new_balance", cel.DoubleType),
	)
}

// activation exposes one transaction to a CEL program.
func activation(tx *domain.Transaction) map[string]any {
	return map[string]any{
		"amount":           tx.Amount,
		"tx_type":          tx.Type,
		"account":          tx.Account,
		"recipient":        tx.Recipient,
		"step":             tx.Step,
		"old_balance":      tx.OriginBalanceBefore,
		"new_balance":      tx.OriginBalanceAfter,
		"dest_old_balance": tx.DestBalanceBefore,
		"dest_new_balance": tx.DestBalanceAfter,
	}
}

// compiler holds shared compilation state for one engine.
type compiler struct {
	env      *cel.Env
	programs *cache.ProgramCache
}

// compile turns a condition tree into a predicate, resolving every
// field reference to a typed accessor and compiling every expression
// leaf up front. Unknown fields and invalid expressions are rejected
// here, at rule load, not discovered mid-scan.
func (c *compiler) compile(cond domain.Condition) (Predicate, error) {
	switch {
	case cond.And != nil:
		children, err := c.compileAll(cond.And)
		if err != nil {
			return nil, err
		}
		// Empty AND is vacuously true.
		return func(tx *domain.Transaction) bool {
			for _, child := range children {
				if !child(tx) {
					return false
				}
			}
			return true
		}, nil

	case cond.Or != nil:
		children, err := c.compileAll(cond.Or)
		if err != nil {
			return nil, err
		}
		// Empty OR is false.
		return func(tx *domain.Transaction) bool {
			for _, child := range children {
				if child(tx) {
					return true
				}
			}
			return false
		}, nil

	case cond.Expr != "":
		return c.compileExpr(cond.Expr)

	default:
		return compileLeaf(cond)
	}
}

func (c *compiler) compileAll(conds []domain.Condition) ([]Predicate, error) {
	preds := make([]Predicate, 0, len(conds))
	for _, cond := range conds {
		p, err := c.compile(cond)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}

// compileExpr compiles a CEL expression leaf, reusing a cached program
// when the same expression was seen before.
func (c *compiler) compileExpr(expr string) (Predicate, error) {
	var program cel.Program
	if c.programs != nil {
		if p, ok := c.programs.Get(expr); ok {
			program = p
		}
	}

	if program == nil {
		ast, issues := c.env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("invalid expression %q: %w", expr, issues.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return nil, fmt.Errorf("expression %q must return bool, got %s", expr, ast.OutputType())
		}
		p, err := c.env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("failed to build program for %q: %w", expr, err)
		}
		program = p
		if c.programs != nil {
			c.programs.Put(expr, program)
		}
	}

	// Runtime evaluation errors absorb to false: a bad expression must
	// degrade to a rule that does not fire, never abort the scan.
	return func(tx *domain.Transaction) bool {
		out, _, err := program.Eval(activation(tx))
		if err != nil {
			return false
		}
		b, ok := out.Value().(bool)
		return ok && b
	}, nil
}

// compileLeaf builds a comparison-leaf predicate. The field must exist;
// the operator semantics are fail-closed, so any kind mismatch between
// field, operator, and value evaluates false at runtime.
func compileLeaf(cond domain.Condition) (Predicate, error) {
	acc, ok := fieldAccessors[cond.Field]
	if !ok {
		return nil, fmt.Errorf("unknown field %q", cond.Field)
	}

	op := cond.Operator
	value := cond.Value

	if acc.kind == kindText {
		return func(tx *domain.Transaction) bool {
			return compareText(acc.text(tx), op, value)
		}, nil
	}
	return func(tx *domain.Transaction) bool {
		return compareNumber(acc.num(tx), op, value)
	}, nil
}

// EvalCondition evaluates a condition tree against one transaction. It
// is a pure function of its inputs and is total: malformed nodes,
// unknown fields and invalid expressions all evaluate to false instead
// of erroring. The engine compiles strictly at load; this lenient form
// serves callers that hold an unvalidated tree.
func EvalCondition(cond domain.Condition, tx *domain.Transaction) bool {
	switch {
	case cond.And != nil:
		for _, child := range cond.And {
			if !EvalCondition(child, tx) {
				return false
			}
		}
		return true

	case cond.Or != nil:
		for _, child := range cond.Or {
			if EvalCondition(child, tx) {
				return true
			}
		}
		return false

	case cond.Expr != "":
		pred, err := lenientCompiler().compileExpr(cond.Expr)
		if err != nil {
			return false
		}
		return pred(tx)

	default:
		acc, ok := fieldAccessors[cond.Field]
		if !ok {
			return false
		}
		if acc.kind == kindText {
			return compareText(acc.text(tx), cond.Operator, cond.Value)
		}
		return compareNumber(acc.num(tx), cond.Operator, cond.Value)
	}
}

var (
	lenientOnce sync.Once
	lenient     *compiler
)

// lenientCompiler backs EvalCondition with a shared environment and
// program cache.
func lenientCompiler() *compiler {
	lenientOnce.Do(func() {
		env, err := newCELEnv()
		if err != nil {
			// The environment is built from static declarations; this
			// cannot fail absent a programming error.
			panic(err)
		}
		lenient = &compiler{env: env, programs: cache.NewProgramCache(256)}
	})
	return lenient
}

// compareText applies an operator to a text field value.
func compareText(field string, op domain.Operator, value any) bool {
	switch op {
	case domain.OpEq:
		s, ok := asText(value)
		return ok && field == s
	case domain.OpNeq:
		s, ok := asText(value)
		return ok && field != s
	case domain.OpIn:
		items, ok := asList(value)
		if !ok {
			return false
		}
		for _, item := range items {
			if s, ok := asText(item); ok && field == s {
				return true
			}
		}
		return false
	default:
		// Relational operators and BETWEEN need a numeric field.
		return false
	}
}

// compareNumber applies an operator to a numeric field value.
func compareNumber(field float64, op domain.Operator, value any) bool {
	switch op {
	case domain.OpEq:
		v, ok := asNumber(value)
		return ok && field == v
	case domain.OpNeq:
		v, ok := asNumber(value)
		return ok && field != v
	case domain.OpGt:
		v, ok := asNumber(value)
		return ok && field > v
	case domain.OpGte:
		v, ok := asNumber(value)
		return ok && field >= v
	case domain.OpLt:
		v, ok := asNumber(value)
		return ok && field < v
	case domain.OpLte:
		v, ok := asNumber(value)
		return ok && field <= v
	case domain.OpIn:
		items, ok := asList(value)
		if !ok {
			return false
		}
		for _, item := range items {
			if v, ok := asNumber(item); ok && field == v {
				return true
			}
		}
		return false
	case domain.OpBetween:
		items, ok := asList(value)
		if !ok || len(items) != 2 {
			return false
		}
		lo, okLo := asNumber(items[0])
		hi, okHi := asNumber(items[1])
		return okLo && okHi && field >= lo && field <= hi
	default:
		// Unknown operators evaluate false (fail-closed).
		return false
	}
}

// asNumber coerces a condition value to float64. JSON decoding yields
// float64; ints and numeric strings from hand-built rules are accepted
// too.
func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asText(value any) (string, bool) {
	s, ok := value.(string)
	return s, ok
}

// asList coerces a condition value to a slice. JSON arrays decode to
// []any; []string and []float64 cover hand-built rules.
func asList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		return items, true
	case []float64:
		items := make([]any, len(v))
		for i, f := range v {
			items[i] = f
		}
		return items, true
	default:
		return nil, false
	}
}
