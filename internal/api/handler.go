package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/opensource-finance/shrike/internal/domain"
	"github.com/opensource-finance/shrike/internal/rules"
	"github.com/opensource-finance/shrike/internal/scan"
	"github.com/opensource-finance/shrike/internal/score"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	scanner *scan.Service
	bus     domain.EventBus
	version string
}

// NewHandler creates a new API handler.
func NewHandler(scanner *scan.Service, bus domain.EventBus, version string) *Handler {
	return &Handler{
		scanner: scanner,
		bus:     bus,
		version: version,
	}
}

// Scan handles POST /scan: a full batch evaluation of raw rows against
// a rule set.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	var req scan.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(req.Rules) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "at least one rule is required",
		})
		return
	}
	if len(req.Mapping) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "column mapping is required",
		})
		return
	}

	result, err := h.scanner.Run(r.Context(), &req)
	if err != nil {
		// Schema and rule configuration problems are the caller's to
		// fix; anything else would be a bug surfaced as 500 by the
		// recover middleware.
		var schemaErr *domain.SchemaError
		status := http.StatusBadRequest
		if errors.As(err, &schemaErr) {
			writeJSON(w, status, map[string]string{
				"error": schemaErr.Error(),
				"field": schemaErr.Field,
			})
			return
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ValidateRule handles POST /rules/validate: heuristic quality scoring
// of a rule definition, no dataset involved.
func (h *Handler) ValidateRule(w http.ResponseWriter, r *http.Request) {
	var rule domain.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	writeJSON(w, http.StatusOK, rules.ValidateQuality(&rule))
}

// EvaluateRequest is the request body for POST /evaluate.
type EvaluateRequest struct {
	Violations   []domain.Violation   `json:"violations"`
	Transactions []domain.Transaction `json:"transactions"`
}

// Evaluate handles POST /evaluate: scoring a violation set against
// labeled transactions, for offline rule tuning.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	writeJSON(w, http.StatusOK, score.Evaluate(req.Violations, req.Transactions))
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}

// Ready handles GET /ready: readiness includes bus connectivity.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
