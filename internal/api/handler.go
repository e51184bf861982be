package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/secureflow/riskd/internal/domain"
	"github.com/secureflow/riskd/internal/metrics"
	"github.com/secureflow/riskd/internal/risk"
	"github.com/secureflow/riskd/internal/rules"
)

// verdictCacheTTL bounds how long verdicts stay in the read-through cache.
const verdictCacheTTL = time.Hour

// Handler holds dependencies for API handlers.
type Handler struct {
	pipeline *risk.Pipeline
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	engine   *rules.Engine
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(pipeline *risk.Pipeline, repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *rules.Engine, version string) *Handler {
	return &Handler{
		pipeline: pipeline,
		repo:     repo,
		cache:    cache,
		bus:      bus,
		engine:   engine,
		version:  version,
	}
}

// Predict handles POST /api/predict requests.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	verdict, tx, err := h.pipeline.Predict(ctx, &req)
	if err != nil {
		if verdict == nil {
			// Validation failure, nothing was scored.
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}

		// Internal fault degraded to the fallback verdict. The caller
		// still gets a structured assessment.
		resp := verdict.ToResponse()
		resp.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}

	h.persistAndPublish(r, tx, verdict)

	metrics.PredictionsTotal.WithLabelValues(verdict.Level).Inc()
	if verdict.IsLikelyFraud {
		metrics.FraudAlertsTotal.Inc()
	}

	writeJSON(w, http.StatusOK, verdict.ToResponse())
}

// persistAndPublish stores the transaction and verdict, caches the
// verdict, and emits scoring events. Failures here are logged but never
// change the response: the verdict has already been computed.
func (h *Handler) persistAndPublish(r *http.Request, tx *domain.Transaction, verdict *domain.Verdict) {
	ctx := r.Context()

	if h.repo != nil {
		if err := h.repo.SaveTransaction(ctx, tx); err != nil {
			slog.Error("failed to save transaction", "tx_id", tx.ID, "error", err)
		}
		if err := h.repo.SaveVerdict(ctx, verdict); err != nil {
			slog.Error("failed to save verdict", "verdict_id", verdict.ID, "error", err)
		}
	}

	if h.cache != nil {
		if err := h.cache.SetVerdict(ctx, verdict, verdictCacheTTL); err != nil {
			slog.Warn("failed to cache verdict", "verdict_id", verdict.ID, "error", err)
		}
	}

	if h.bus == nil {
		return
	}

	event := domain.ScoredEvent{
		VerdictID: verdict.ID,
		TxID:      tx.ID,
		Amount:    tx.Amount,
		Recipient: tx.Recipient,
		Score:     verdict.Score,
		Level:     verdict.Level,
		Fraud:     verdict.IsLikelyFraud,
		Submit:    true,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal scored event", "verdict_id", verdict.ID, "error", err)
		return
	}

	if err := h.bus.Publish(ctx, domain.TopicTransactionScored, payload); err != nil {
		slog.Warn("failed to publish scored event", "verdict_id", verdict.ID, "error", err)
	}
	if verdict.IsLikelyFraud {
		if err := h.bus.Publish(ctx, domain.TopicFraudAlert, payload); err != nil {
			slog.Warn("failed to publish fraud alert", "verdict_id", verdict.ID, "error", err)
		}
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetPrediction retrieves a scored verdict by ID, cache first.
func (h *Handler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	verdictID := chi.URLParam(r, "id")

	if verdictID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "prediction id is required",
		})
		return
	}

	if h.cache != nil {
		if v, err := h.cache.GetVerdict(ctx, verdictID); err == nil && v != nil {
			writeJSON(w, http.StatusOK, v.ToResponse())
			return
		}
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	v, err := h.repo.GetVerdict(ctx, verdictID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Error("failed to get verdict", "id", verdictID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "prediction not found",
		})
		return
	}

	if h.cache != nil {
		if err := h.cache.SetVerdict(ctx, v, verdictCacheTTL); err != nil {
			slog.Warn("failed to cache verdict", "verdict_id", v.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, v.ToResponse())
}

// GetTransaction retrieves a transaction by ID.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txID := chi.URLParam(r, "id")

	if txID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	tx, err := h.repo.GetTransaction(ctx, txID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Error("failed to get transaction", "id", txID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "transaction not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// ListTransactions returns transactions newer than the since parameter.
// Defaults to the trailing 24 hours.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	since := time.Now().UTC().Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "since must be an RFC3339 timestamp",
			})
			return
		}
		since = parsed
	}

	txs, err := h.repo.ListTransactionsSince(ctx, since)
	if err != nil {
		slog.Error("failed to list transactions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list transactions",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
		"since":        since.Format(time.RFC3339),
	})
}

// ListRules returns all loaded rules from the engine.
// Rules are loaded from the database at startup and can be reloaded via POST /api/rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves a rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.engine.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a rule.
type CreateRuleRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Expression  string  `json:"expression"`
	Weight      float64 `json:"weight"`
	Enabled     bool    `json:"enabled"`
}

// CreateRule creates a new rule and saves it to the database.
// After saving, call POST /api/rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	ruleConfig := &domain.RuleConfig{
		ID:          req.ID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Weight:      req.Weight,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression by attempting to load
	if err := h.engine.LoadRule(ruleConfig); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveRuleConfig(ctx, ruleConfig); err != nil {
			slog.Error("failed to save rule config", "id", ruleConfig.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("rule created", "id", ruleConfig.ID, "name", ruleConfig.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    ruleConfig,
		"message": "Rule created. Call POST /api/rules/reload to apply changes.",
	})
}

// DeleteRule removes a rule from the database and reloads the engine.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.DeleteRuleConfig(ctx, ruleID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "rule not found",
			})
			return
		}
		slog.Error("failed to delete rule", "id", ruleID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete rule",
		})
		return
	}

	// Auto-reload so the deleted rule stops firing immediately.
	dbRules, err := h.repo.ListRuleConfigs(ctx)
	if err != nil {
		slog.Error("failed to reload rules after delete", "error", err)
	} else if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
	}

	slog.Info("rule deleted", "id", ruleID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Rule deleted and engine reloaded.",
	})
}

// ReloadRules reloads all rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListRuleConfigs(ctx)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
