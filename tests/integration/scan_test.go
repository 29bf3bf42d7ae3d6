//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Shrike batch
// compliance scanner.
//
// These tests exercise the COMPLETE scan pipeline over HTTP:
//
//	Raw rows → Normalize → Rules → Cases → Evaluation
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// A running Shrike instance is required; point SHRIKE_TEST_URL at it
// (default http://localhost:8080).
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("SHRIKE_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{BaseURL: baseURL}
}

// ============================================================================
// API Request/Response Types (matching Shrike's API contract)
// ============================================================================

// ScanRequest is the batch sent to POST /scan
type ScanRequest struct {
	ScanID        string              `json:"scanId,omitempty"`
	Mapping       map[string]string   `json:"mapping"`
	Rows          []map[string]string `json:"rows"`
	Rules         []Rule              `json:"rules"`
	TemporalScale float64             `json:"temporalScale,omitempty"`
}

type Rule struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Severity        string      `json:"severity"`
	Scope           string      `json:"scope"`
	Conditions      Condition   `json:"conditions"`
	TransactionType string      `json:"transactionType,omitempty"`
	Threshold       float64     `json:"threshold,omitempty"`
	Aggregate       string      `json:"aggregate,omitempty"`
	TimeWindow      *TimeWindow `json:"timeWindow,omitempty"`
	GroupBy         []string    `json:"groupBy,omitempty"`
	Enabled         bool        `json:"enabled"`
}

type Condition struct {
	Field    string      `json:"field,omitempty"`
	Operator string      `json:"operator,omitempty"`
	Value    any         `json:"value,omitempty"`
	Expr     string      `json:"expr,omitempty"`
	And      []Condition `json:"and,omitempty"`
	Or       []Condition `json:"or,omitempty"`
}

type TimeWindow struct {
	Size float64 `json:"size"`
	Unit string  `json:"unit"`
}

// ScanResponse is what POST /scan returns
type ScanResponse struct {
	ScanID           string      `json:"scanId"`
	TransactionCount int         `json:"transactionCount"`
	Violations       []Violation `json:"violations"`
	Cases            []Case      `json:"cases"`
	Evaluation       *Evaluation `json:"evaluation,omitempty"`
	Metadata         Metadata    `json:"metadata"`
}

type Violation struct {
	RuleID          string  `json:"ruleId"`
	RuleName        string  `json:"ruleName"`
	Severity        string  `json:"severity"`
	Account         string  `json:"account"`
	Amount          float64 `json:"amount"`
	TransactionType string  `json:"transactionType"`
	RecordIndices   []int   `json:"recordIndices"`
}

type Case struct {
	Account        string  `json:"account"`
	ViolationCount int     `json:"violationCount"`
	MaxSeverity    string  `json:"maxSeverity"`
	TotalAmount    float64 `json:"totalAmount"`
}

type Evaluation struct {
	TruePositives  int     `json:"truePositives"`
	FalsePositives int     `json:"falsePositives"`
	TrueNegatives  int     `json:"trueNegatives"`
	FalseNegatives int     `json:"falseNegatives"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1             float64 `json:"f1"`
}

type Metadata struct {
	NormalizeMs    int64 `json:"normalizeMs"`
	RulesMs        int64 `json:"rulesMs"`
	TotalMs        int64 `json:"totalMs"`
	RulesEvaluated int   `json:"rulesEvaluated"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func paySimMapping() map[string]string {
	return map[string]string{
		"step":                  "step",
		"type":                  "type",
		"amount":                "amount",
		"account":               "nameOrig",
		"recipient":             "nameDest",
		"origin_balance_before": "oldbalanceOrg",
		"origin_balance_after":  "newbalanceOrig",
		"dest_balance_before":   "oldbalanceDest",
		"dest_balance_after":    "newbalanceDest",
		"is_fraud":              "isFraud",
	}
}

func runScan(t *testing.T, config TestConfig, req ScanRequest) ScanResponse {
	t.Helper()

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	httpReq, err := http.NewRequest("POST", config.BaseURL+"/scan", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, respBody)
	}

	var result ScanResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	return result
}

func drainRow(step int, account string, amount float64, fraud bool) map[string]string {
	label := "0"
	if fraud {
		label = "1"
	}
	return map[string]string{
		"step":           fmt.Sprintf("%d", step),
		"type":           "CASH_OUT",
		"amount":         fmt.Sprintf("%.2f", amount),
		"nameOrig":       account,
		"nameDest":       "M1",
		"oldbalanceOrg":  fmt.Sprintf("%.2f", amount),
		"newbalanceOrig": "0.00",
		"oldbalanceDest": "0.00",
		"newbalanceDest": "0.00",
		"isFraud":        label,
	}
}

func normalRow(step int, account string, amount float64) map[string]string {
	return map[string]string{
		"step":           fmt.Sprintf("%d", step),
		"type":           "PAYMENT",
		"amount":         fmt.Sprintf("%.2f", amount),
		"nameOrig":       account,
		"nameDest":       "M2",
		"oldbalanceOrg":  "50000.00",
		"newbalanceOrig": fmt.Sprintf("%.2f", 50000-amount),
		"oldbalanceDest": "0.00",
		"newbalanceDest": "0.00",
		"isFraud":        "0",
	}
}

// ============================================================================
// Tests
// ============================================================================

func TestHealthCheck(t *testing.T) {
	config := getTestConfig()

	resp, err := http.Get(config.BaseURL + "/health")
	if err != nil {
		t.Fatalf("Health check failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 from /health, got %d", resp.StatusCode)
	}
}

func TestScanDetectsAccountDrain(t *testing.T) {
	config := getTestConfig()

	req := ScanRequest{
		ScanID:  "it-drain",
		Mapping: paySimMapping(),
		Rows: []map[string]string{
			normalRow(1, "C1", 500),
			drainRow(2, "C2", 15000, true),
			normalRow(3, "C3", 120),
		},
		Rules: []Rule{{
			ID:       "account-drain",
			Name:     "Account Drain",
			Severity: "CRITICAL",
			Scope:    "single_record",
			Conditions: Condition{And: []Condition{
				{Field: "type", Operator: "IN", Value: []string{"CASH_OUT", "TRANSFER"}},
				{Field: "origin_balance_after", Operator: "==", Value: 0},
				{Field: "origin_balance_before", Operator: ">", Value: 0},
			}},
			Enabled: true,
		}},
	}

	result := runScan(t, config, req)

	if result.TransactionCount != 3 {
		t.Errorf("Expected 3 transactions, got %d", result.TransactionCount)
	}
	if len(result.Violations) != 1 {
		t.Fatalf("Expected 1 violation, got %d", len(result.Violations))
	}
	if result.Violations[0].Account != "C2" || result.Violations[0].Severity != "CRITICAL" {
		t.Errorf("Unexpected violation: %+v", result.Violations[0])
	}
	if len(result.Cases) != 1 || result.Cases[0].Account != "C2" {
		t.Errorf("Unexpected cases: %+v", result.Cases)
	}

	if result.Evaluation == nil {
		t.Fatal("Expected evaluation for labeled rows")
	}
	if result.Evaluation.TruePositives != 1 || result.Evaluation.FalsePositives != 0 {
		t.Errorf("Unexpected evaluation: %+v", result.Evaluation)
	}
}

func TestScanDetectsStructuring(t *testing.T) {
	config := getTestConfig()

	rows := []map[string]string{
		normalRow(1, "C9", 300),
	}
	// Three sub-10k cash-outs from the same account inside 24 hours.
	for i := 0; i < 3; i++ {
		row := normalRow(i*4+2, "C5", 9000)
		row["type"] = "CASH_OUT"
		rows = append(rows, row)
	}

	req := ScanRequest{
		ScanID:  "it-structuring",
		Mapping: paySimMapping(),
		Rows:    rows,
		Rules: []Rule{{
			ID:       "structuring",
			Name:     "Structuring",
			Severity: "HIGH",
			Scope:    "windowed",
			Conditions: Condition{And: []Condition{
				{Field: "amount", Operator: "BETWEEN", Value: []float64{1000, 10000}},
			}},
			TransactionType: "CASH_OUT",
			Aggregate:       "count",
			Threshold:       3,
			TimeWindow:      &TimeWindow{Size: 24, Unit: "hours"},
			GroupBy:         []string{"account"},
			Enabled:         true,
		}},
		TemporalScale: 1.0,
	}

	result := runScan(t, config, req)

	if len(result.Violations) != 1 {
		t.Fatalf("Expected 1 violation, got %d", len(result.Violations))
	}
	v := result.Violations[0]
	if v.Account != "C5" || len(v.RecordIndices) != 3 {
		t.Errorf("Unexpected violation: %+v", v)
	}
	if v.Amount != 27000 {
		t.Errorf("Expected aggregate amount 27000, got %v", v.Amount)
	}
}

func TestValidateRuleQuality(t *testing.T) {
	config := getTestConfig()

	body, _ := json.Marshal(Rule{
		ID:        "bare-threshold",
		Scope:     "windowed",
		Threshold: 100,
	})
	resp, err := http.Post(config.BaseURL+"/rules/validate", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Score    int      `json:"score"`
		Valid    bool     `json:"valid"`
		Warnings []string `json:"warnings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if result.Valid {
		t.Error("A bare threshold rule must not validate")
	}
	if len(result.Warnings) == 0 {
		t.Error("Expected quality warnings")
	}
}
