// Package worker provides async scan processing off the event bus.
// Callers that cannot wait on the synchronous HTTP call publish scan
// requests and consume results from the completion topics.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/opensource-finance/shrike/internal/domain"
	"github.com/opensource-finance/shrike/internal/scan"
)

// Worker consumes scan requests from the event bus.
type Worker struct {
	bus     domain.EventBus
	scanner *scan.Service

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates an async scan worker.
func NewWorker(bus domain.EventBus, scanner *scan.Service) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:     bus,
		scanner: scanner,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start subscribes to the scan request topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicScanRequested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("scan worker started", "topic", domain.TopicScanRequested)
	return nil
}

// handleMessage runs one scan from a bus message. A malformed payload
// or failed scan is logged and dropped; the worker keeps consuming.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	var req scan.Request
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse scan request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	w.wg.Add(1)
	defer w.wg.Done()

	result, err := w.scanner.Run(ctx, &req)
	if err != nil {
		slog.Error("async scan failed",
			"message_id", msg.ID,
			"scan_id", req.ScanID,
			"error", err,
		)
		return err
	}

	slog.Debug("async scan completed",
		"scan_id", result.ScanID,
		"violations", len(result.Violations),
	)
	return nil
}

// Stop gracefully stops the worker, waiting for in-flight scans.
func (w *Worker) Stop() error {
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()
	w.cancel()

	slog.Info("scan worker stopped")
	return nil
}
