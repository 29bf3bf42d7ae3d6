// Package scan orchestrates one batch compliance scan: normalize,
// evaluate rules, aggregate cases, and (when the dataset is labeled)
// score detection quality. The HTTP API and the async worker both run
// scans through this service.
package scan

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/opensource-finance/shrike/internal/cases"
	"github.com/opensource-finance/shrike/internal/domain"
	"github.com/opensource-finance/shrike/internal/normalize"
	"github.com/opensource-finance/shrike/internal/rules"
	"github.com/opensource-finance/shrike/internal/score"
)

var tracer = otel.Tracer("shrike-scan")

// Service runs batch scans. The engine carries shared compilation
// state; the bus is optional and receives case events after each scan.
type Service struct {
	engine *rules.Engine
	bus    domain.EventBus
}

// NewService creates a scan service.
func NewService(engine *rules.Engine, bus domain.EventBus) *Service {
	return &Service{engine: engine, bus: bus}
}

// Request is one batch scan: raw rows plus the column mapping that
// canonicalizes them, and the rule set to evaluate.
type Request struct {
	ScanID        string               `json:"scanId,omitempty"`
	Mapping       domain.ColumnMapping `json:"mapping"`
	Rows          []domain.RawRow      `json:"rows"`
	Rules         []domain.Rule        `json:"rules"`
	TemporalScale float64              `json:"temporalScale,omitempty"`
}

// Result is the complete outcome of a scan.
type Result struct {
	ScanID           string                   `json:"scanId"`
	TransactionCount int                      `json:"transactionCount"`
	Violations       []domain.Violation       `json:"violations"`
	Cases            []domain.Case            `json:"cases"`

	// Evaluation is present only when the dataset carried ground-truth
	// labels.
	Evaluation *domain.EvaluationResult `json:"evaluation,omitempty"`

	Metadata Metadata `json:"metadata"`
}

// Metadata carries processing timings for the scan.
type Metadata struct {
	NormalizeMs    int64 `json:"normalizeMs"`
	RulesMs        int64 `json:"rulesMs"`
	TotalMs        int64 `json:"totalMs"`
	RulesEvaluated int   `json:"rulesEvaluated"`
}

// CaseEvent is the payload published per detected case.
type CaseEvent struct {
	ScanID         string          `json:"scanId"`
	Account        string          `json:"account"`
	MaxSeverity    domain.Severity `json:"maxSeverity"`
	ViolationCount int             `json:"violationCount"`
	TotalAmount    float64         `json:"totalAmount"`
}

// Run executes one scan. A SchemaError from normalization or a rule
// compilation error aborts the scan; everything else completes
// best-effort per the absorption policy.
func (s *Service) Run(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()

	scanID := req.ScanID
	if scanID == "" {
		scanID = uuid.New().String()
	}

	ctx, span := tracer.Start(ctx, "scan.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("scan.id", scanID),
		attribute.Int("scan.rows", len(req.Rows)),
		attribute.Int("scan.rules", len(req.Rules)),
	)

	set, err := s.engine.Compile(req.Rules, req.TemporalScale)
	if err != nil {
		return nil, err
	}

	txs, err := normalize.Normalize(req.Rows, req.Mapping)
	if err != nil {
		return nil, err
	}
	normalizeMs := time.Since(start).Milliseconds()

	rulesStart := time.Now()
	violations := s.engine.Run(ctx, set, txs)
	rulesMs := time.Since(rulesStart).Milliseconds()

	result := &Result{
		ScanID:           scanID,
		TransactionCount: len(txs),
		Violations:       violations,
		Cases:            cases.Aggregate(violations),
		Metadata: Metadata{
			NormalizeMs:    normalizeMs,
			RulesMs:        rulesMs,
			RulesEvaluated: set.Size(),
		},
	}

	if labeled(txs) {
		result.Evaluation = score.Evaluate(violations, txs)
	}

	result.Metadata.TotalMs = time.Since(start).Milliseconds()

	s.publishCases(ctx, result)

	slog.Info("scan completed",
		"scan_id", scanID,
		"transactions", result.TransactionCount,
		"rules", set.Size(),
		"violations", len(violations),
		"cases", len(result.Cases),
		"duration_ms", result.Metadata.TotalMs,
	)

	return result, nil
}

// labeled reports whether any transaction carries a ground-truth label.
func labeled(txs []domain.Transaction) bool {
	for i := range txs {
		if txs[i].Labeled {
			return true
		}
	}
	return false
}

// publishCases emits one event per case, plus an alert for cases whose
// worst violation is CRITICAL. Publish failures are logged and dropped;
// the scan result is already complete.
func (s *Service) publishCases(ctx context.Context, result *Result) {
	if s.bus == nil {
		return
	}

	for _, c := range result.Cases {
		event := CaseEvent{
			ScanID:         result.ScanID,
			Account:        c.Account,
			MaxSeverity:    c.MaxSeverity,
			ViolationCount: c.ViolationCount,
			TotalAmount:    c.TotalAmount,
		}
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}

		if err := s.bus.Publish(ctx, domain.TopicCaseOpened, payload); err != nil {
			slog.Error("failed to publish case event",
				"scan_id", result.ScanID,
				"account", c.Account,
				"error", err,
			)
			continue
		}

		if c.MaxSeverity == domain.SeverityCritical {
			if err := s.bus.Publish(ctx, domain.TopicCaseAlert, payload); err != nil {
				slog.Error("failed to publish case alert",
					"scan_id", result.ScanID,
					"account", c.Account,
					"error", err,
				)
			}
		}
	}

	summary, err := json.Marshal(map[string]any{
		"scanId":     result.ScanID,
		"violations": len(result.Violations),
		"cases":      len(result.Cases),
	})
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, domain.TopicScanCompleted, summary); err != nil {
		slog.Error("failed to publish scan summary",
			"scan_id", result.ScanID,
			"error", err,
		)
	}
}
