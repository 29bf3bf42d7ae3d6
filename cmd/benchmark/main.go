// Benchmark tool for running the Shrike batch engine against PaySim
// fraud data.
//
// Usage:
//
//	go run cmd/benchmark/main.go -csv /path/to/paysim.csv
//	go run cmd/benchmark/main.go -generate 100000
//
// This tool:
//  1. Reads PaySim transaction rows (with fraud labels), or generates a
//     synthetic dataset with planted fraud patterns
//  2. Runs the full scan pipeline (normalize, rules, cases, scoring)
//  3. Prints throughput, the confusion matrix, and precision/recall/F1
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/opensource-finance/shrike/internal/cases"
	"github.com/opensource-finance/shrike/internal/domain"
	"github.com/opensource-finance/shrike/internal/normalize"
	"github.com/opensource-finance/shrike/internal/rules"
	"github.com/opensource-finance/shrike/internal/score"
)

// paySimMapping maps canonical fields to PaySim CSV column names.
var paySimMapping = domain.ColumnMapping{
	domain.FieldStep:                "step",
	domain.FieldType:                "type",
	domain.FieldAmount:              "amount",
	domain.FieldAccount:             "nameOrig",
	domain.FieldRecipient:           "nameDest",
	domain.FieldOriginBalanceBefore: "oldbalanceOrg",
	domain.FieldOriginBalanceAfter:  "newbalanceOrig",
	domain.FieldDestBalanceBefore:   "oldbalanceDest",
	domain.FieldDestBalanceAfter:    "newbalanceDest",
	domain.FieldIsFraud:             "isFraud",
}

func main() {
	csvPath := flag.String("csv", "", "Path to PaySim CSV file")
	generate := flag.Int("generate", 0, "Generate a synthetic dataset of N rows instead of reading a CSV")
	limit := flag.Int("limit", 0, "Max rows to read from CSV (0 = all)")
	maxWorkers := flag.Int("workers", 8, "Rule evaluation workers")
	seed := flag.Int64("seed", 42, "Random seed for synthetic data")
	flag.Parse()

	var rows []domain.RawRow
	var err error
	switch {
	case *csvPath != "":
		rows, err = readCSV(*csvPath, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read CSV: %v\n", err)
			os.Exit(1)
		}
	case *generate > 0:
		rows = generateRows(*generate, *seed)
	default:
		fmt.Fprintln(os.Stderr, "either -csv or -generate is required")
		os.Exit(1)
	}

	fmt.Printf("Dataset: %d rows\n", len(rows))

	engine, err := rules.NewEngine(domain.EngineConfig{MaxWorkers: *maxWorkers, TemporalScale: 1.0})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create engine: %v\n", err)
		os.Exit(1)
	}

	set, err := engine.Compile(benchmarkRules(), 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to compile rules: %v\n", err)
		os.Exit(1)
	}

	start := time.Now()
	txs, err := normalize.Normalize(rows, paySimMapping)
	if err != nil {
		fmt.Fprintf(os.Stderr, "normalization failed: %v\n", err)
		os.Exit(1)
	}
	normalizeDur := time.Since(start)

	rulesStart := time.Now()
	violations := engine.Run(context.Background(), set, txs)
	rulesDur := time.Since(rulesStart)

	caseList := cases.Aggregate(violations)
	result := score.Evaluate(violations, txs)

	printResults(len(txs), set.Size(), len(violations), len(caseList), normalizeDur, rulesDur, result)
}

// benchmarkRules is a representative multi-signal rule set.
func benchmarkRules() []domain.Rule {
	return []domain.Rule{
		{
			ID:       "high-risk-pattern",
			Name:     "High Risk Pattern",
			Severity: domain.SeverityCritical,
			Scope:    domain.ScopeSingleRecord,
			Conditions: domain.Condition{And: []domain.Condition{
				{Field: domain.FieldType, Operator: domain.OpIn, Value: []string{"CASH_OUT", "TRANSFER"}},
				{Field: domain.FieldOriginBalanceAfter, Operator: domain.OpEq, Value: 0.0},
				{Field: domain.FieldOriginBalanceBefore, Operator: domain.OpGt, Value: 0.0},
				{Field: domain.FieldDestBalanceBefore, Operator: domain.OpEq, Value: 0.0},
			}},
			Enabled: true,
		},
		{
			ID:       "structuring-pattern",
			Name:     "Structuring Pattern",
			Severity: domain.SeverityHigh,
			Scope:    domain.ScopeWindowed,
			Conditions: domain.Condition{And: []domain.Condition{
				{Field: domain.FieldAmount, Operator: domain.OpBetween, Value: []float64{1000, 10000}},
			}},
			Aggregate:  domain.AggCount,
			Threshold:  3,
			TimeWindow: &domain.TimeWindow{Size: 24, Unit: "hours"},
			GroupBy:    []string{domain.FieldAccount},
			Enabled:    true,
		},
		{
			ID:         "high-value-transfer",
			Name:       "High Value Transfer",
			Severity:   domain.SeverityMedium,
			Scope:      domain.ScopeSingleRecord,
			Conditions: domain.Condition{Expr: `tx_type == "TRANSFER" && amount > 200000.0`},
			Enabled:    true,
		},
	}
}

// readCSV loads PaySim rows keyed by header column names.
func readCSV(path string, limit int) ([]domain.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var rows []domain.RawRow
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		row := make(domain.RawRow, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)

		if limit > 0 && len(rows) >= limit {
			break
		}
	}
	return rows, nil
}

// generateRows produces a synthetic PaySim-shaped dataset. Roughly 1%
// of rows are account-drain frauds; a handful of accounts structure
// repeated sub-10k cash-outs inside one day.
func generateRows(n int, seed int64) []domain.RawRow {
	rng := rand.New(rand.NewSource(seed))
	txTypes := []string{"PAYMENT", "CASH_OUT", "TRANSFER", "CASH_IN", "DEBIT"}

	rows := make([]domain.RawRow, 0, n)
	for i := 0; i < n; i++ {
		step := rng.Intn(744) // one month of hourly steps
		txType := txTypes[rng.Intn(len(txTypes))]
		amount := rng.Float64() * 50000
		oldBalance := amount + rng.Float64()*100000
		newBalance := oldBalance - amount

		isFraud := "0"
		if rng.Float64() < 0.01 && (txType == "CASH_OUT" || txType == "TRANSFER") {
			// Account drain: origin emptied into a fresh mule account.
			oldBalance = amount
			newBalance = 0
			isFraud = "1"
		}

		rows = append(rows, domain.RawRow{
			"step":           strconv.Itoa(step),
			"type":           txType,
			"amount":         strconv.FormatFloat(amount, 'f', 2, 64),
			"nameOrig":       fmt.Sprintf("C%08d", rng.Intn(n/10+1)),
			"nameDest":       fmt.Sprintf("M%08d", rng.Intn(n/20+1)),
			"oldbalanceOrg":  strconv.FormatFloat(oldBalance, 'f', 2, 64),
			"newbalanceOrig": strconv.FormatFloat(newBalance, 'f', 2, 64),
			"oldbalanceDest": "0.00",
			"newbalanceDest": strconv.FormatFloat(amount, 'f', 2, 64),
			"isFraud":        isFraud,
		})
	}
	return rows
}

func printResults(txCount, ruleCount, violationCount, caseCount int, normalizeDur, rulesDur time.Duration, result *domain.EvaluationResult) {
	fmt.Println()
	fmt.Println("=== Shrike Batch Benchmark ===")
	fmt.Printf("Transactions:     %d\n", txCount)
	fmt.Printf("Rules:            %d\n", ruleCount)
	fmt.Printf("Violations:       %d\n", violationCount)
	fmt.Printf("Cases:            %d\n", caseCount)
	fmt.Printf("Normalize:        %v\n", normalizeDur)
	fmt.Printf("Rule evaluation:  %v (%.0f tx/s)\n", rulesDur, float64(txCount)/rulesDur.Seconds())
	fmt.Println()
	fmt.Println("Confusion matrix:")
	fmt.Printf("  TP: %-8d FP: %d\n", result.TruePositives, result.FalsePositives)
	fmt.Printf("  FN: %-8d TN: %d\n", result.FalseNegatives, result.TrueNegatives)
	fmt.Println()
	fmt.Printf("Precision: %.4f\n", result.Precision)
	fmt.Printf("Recall:    %.4f\n", result.Recall)
	fmt.Printf("F1:        %.4f\n", result.F1)
	fmt.Printf("Accuracy:  %.4f\n", result.Accuracy)

	if len(result.PerRule) > 0 {
		fmt.Println()
		fmt.Println("Per-rule breakdown:")
		for _, b := range result.PerRule {
			fmt.Printf("  %-24s detected=%-8d fraud=%d\n", b.RuleID, b.DetectedCount, b.FraudInDetected)
		}
	}
}
