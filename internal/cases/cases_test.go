package cases

import (
	"testing"

	"github.com/opensource-finance/shrike/internal/domain"
)

func TestAggregateGroupsByAccount(t *testing.T) {
	violations := []domain.Violation{
		{RuleID: "r1", Severity: domain.SeverityMedium, Account: "C2", Amount: 100},
		{RuleID: "r2", Severity: domain.SeverityCritical, Account: "C1", Amount: 5000},
		{RuleID: "r1", Severity: domain.SeverityHigh, Account: "C2", Amount: 250},
	}

	caseList := Aggregate(violations)

	if len(caseList) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(caseList))
	}

	// Sorted by account.
	if caseList[0].Account != "C1" || caseList[1].Account != "C2" {
		t.Errorf("expected cases sorted by account, got %s, %s", caseList[0].Account, caseList[1].Account)
	}

	c1 := caseList[0]
	if c1.ViolationCount != 1 || c1.TotalAmount != 5000 || c1.MaxSeverity != domain.SeverityCritical {
		t.Errorf("unexpected C1 case: %+v", c1)
	}

	c2 := caseList[1]
	if c2.ViolationCount != 2 || c2.TotalAmount != 350 {
		t.Errorf("unexpected C2 case: %+v", c2)
	}
	if c2.MaxSeverity != domain.SeverityHigh {
		t.Errorf("expected max severity HIGH, got %s", c2.MaxSeverity)
	}
	if len(c2.Violations) != 2 {
		t.Errorf("expected 2 violations attached, got %d", len(c2.Violations))
	}
}

func TestAggregateSeverityRanking(t *testing.T) {
	// Severity order must be rank-based, not lexical: CRITICAL > HIGH
	// even though "CRITICAL" < "HIGH" as strings.
	violations := []domain.Violation{
		{RuleID: "r1", Severity: domain.SeverityHigh, Account: "C1"},
		{RuleID: "r2", Severity: domain.SeverityCritical, Account: "C1"},
		{RuleID: "r3", Severity: domain.SeverityMedium, Account: "C1"},
	}

	caseList := Aggregate(violations)
	if len(caseList) != 1 {
		t.Fatalf("expected 1 case, got %d", len(caseList))
	}
	if caseList[0].MaxSeverity != domain.SeverityCritical {
		t.Errorf("expected CRITICAL, got %s", caseList[0].MaxSeverity)
	}
}

func TestAggregateEmpty(t *testing.T) {
	if got := Aggregate(nil); got != nil {
		t.Errorf("expected nil for no violations, got %v", got)
	}
}
