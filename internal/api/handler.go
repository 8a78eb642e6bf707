package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/engine"
	"github.com/opensource-finance/heron/internal/recommend"
	"github.com/opensource-finance/heron/internal/registry"
	"github.com/opensource-finance/heron/internal/repository"
	"github.com/opensource-finance/heron/internal/risk"
	"github.com/opensource-finance/heron/internal/snapshot"
)

// GlobalTenantID is used for catalog rules that apply to all tenants.
const GlobalTenantID = "*"

// Handler holds dependencies for API handlers.
type Handler struct {
	repo       domain.Repository
	cache      domain.Cache
	bus        domain.EventBus
	holder     *registry.Holder
	evaluator  *engine.Evaluator
	builder    *recommend.Builder
	thresholds domain.Thresholds
	version    string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, holder *registry.Holder, evaluator *engine.Evaluator, thresholds domain.Thresholds, version string) *Handler {
	return &Handler{
		repo:       repo,
		cache:      cache,
		bus:        bus,
		holder:     holder,
		evaluator:  evaluator,
		builder:    recommend.NewBuilder(thresholds),
		thresholds: thresholds,
		version:    version,
	}
}

// Evaluate handles POST /evaluate requests. The body is a raw financial
// snapshot; the response is the full evaluation with risks, triggers and
// recommendations.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	// 1. Normalize the raw snapshot
	normStart := time.Now()
	snap, err := snapshot.Normalize(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}
	normalizeMs := time.Since(normStart).Milliseconds()

	// Announce the accepted snapshot for downstream consumers (best effort)
	if h.bus != nil {
		payload, _ := json.Marshal(snap)
		if err := h.bus.Publish(ctx, tenantID, domain.TopicSnapshotReceived, payload); err != nil {
			slog.Warn("failed to publish snapshot event",
				"user_id", snap.UserID,
				"error", err,
			)
		}
	}

	// Cache the normalized snapshot for re-evaluation (best effort)
	if h.cache != nil {
		if err := h.cache.SetSnapshot(ctx, tenantID, snap, time.Hour); err != nil {
			slog.Warn("failed to cache snapshot",
				"user_id", snap.UserID,
				"error", err,
			)
		}
	}

	// 2. Build the evaluation context and run the catalog
	rulesStart := time.Now()
	cat := h.holder.Current()
	evalCtx := snapshot.BuildContext(snap, h.thresholds)

	result, err := h.evaluator.EvaluateAll(cat, evalCtx)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidContext) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		slog.Error("evaluation failed", "user_id", snap.UserID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "evaluation failed",
		})
		return
	}
	rulesMs := time.Since(rulesStart).Milliseconds()

	// 3. Aggregate risks and build recommendations
	riskStart := time.Now()
	risks := risk.BuildRisks(cat, result.Triggers)
	recs := h.builder.Build(snap, risks, result.Triggers)
	plan := recommend.BuildActionPlan(recs)
	riskMs := time.Since(riskStart).Milliseconds()

	evaluation := &domain.Evaluation{
		ID:              uuid.New().String(),
		TenantID:        tenantID,
		UserID:          snap.UserID,
		Month:           snap.Month,
		Timestamp:       time.Now().UTC(),
		Risks:           risks,
		Triggers:        triggeredOnly(result.Triggers),
		Recommendations: recs,
		ActionPlan:      plan,
		Stats:           result.Stats,
		Metadata: domain.EvaluationMetadata{
			TraceID:        traceID,
			NormalizeMs:    normalizeMs,
			RulesMs:        rulesMs,
			RiskMs:         riskMs,
			TotalMs:        time.Since(start).Milliseconds(),
			CatalogVersion: cat.Version(),
			EngineVersion:  h.version,
		},
	}

	// 4. Publish for async alerting (best effort)
	if h.bus != nil {
		payload, _ := json.Marshal(evaluation)
		if err := h.bus.Publish(ctx, tenantID, domain.TopicEvaluationCompleted, payload); err != nil {
			slog.Error("failed to publish evaluation",
				"evaluation_id", evaluation.ID,
				"error", err,
			)
		}
	}

	slog.Info("snapshot evaluated",
		"evaluation_id", evaluation.ID,
		"tenant_id", tenantID,
		"user_id", snap.UserID,
		"month", snap.Month,
		"rules_triggered", result.Stats.RulesTriggered,
		"duration_ms", evaluation.Metadata.TotalMs,
	)

	writeJSON(w, http.StatusOK, evaluation)
}

// triggeredOnly filters out non-triggered outcomes from the response.
func triggeredOnly(triggers []domain.RuleTrigger) []domain.RuleTrigger {
	out := make([]domain.RuleTrigger, 0, len(triggers))
	for _, t := range triggers {
		if t.Triggered {
			out = append(out, t)
		}
	}
	return out
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
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
	if h.holder.Current().Len() == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"ready": "false",
			"error": "catalog is empty",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// Catalog returns the loaded catalog metadata.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	cat := h.holder.Current()

	enabled := 0
	for _, rule := range cat.Rules() {
		if rule.Enabled {
			enabled++
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":     cat.Version(),
		"rule_count":  cat.Len(),
		"enabled":     enabled,
		"rule_groups": cat.RuleGroups(),
	})
}

// ListRules returns all rules in the loaded catalog.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	cat := h.holder.Current()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":   cat.Rules(),
		"count":   cat.Len(),
		"version": cat.Version(),
	})
}

// GetRule retrieves a rule by ID from the loaded catalog.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	if rule, ok := h.holder.Current().ByID(ruleID); ok {
		writeJSON(w, http.StatusOK, rule)
		return
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRule validates and persists a rule definition. Rules are saved
// globally so they apply to all tenants. Call POST /rules/reload to
// hot-reload into the running catalog.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var rule domain.RuleDefinition
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	// Structural validation via the catalog loader
	if _, err := registry.FromDefinitions("pending", []*domain.RuleDefinition{&rule}); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.SaveRuleDefinition(ctx, GlobalTenantID, &rule); err != nil {
		slog.Error("failed to save rule definition", "id", rule.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rule",
		})
		return
	}

	slog.Info("rule created", "id", rule.ID, "bucket", rule.Bucket)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    rule,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// DeleteRule disables a rule definition in the repository.
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

	if err := h.repo.DeleteRuleDefinition(ctx, GlobalTenantID, ruleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "rule not found",
			})
			return
		}
		slog.Error("failed to delete rule definition", "id", ruleID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete rule",
		})
		return
	}

	slog.Info("rule disabled", "id", ruleID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Rule disabled. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules rebuilds the catalog from the repository and swaps it in
// atomically. In-flight evaluations keep the catalog they started with.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	rules, err := h.repo.ListRuleDefinitions(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	cat, err := registry.FromDefinitions(h.holder.Current().Version(), rules)
	if err != nil {
		slog.Error("failed to build catalog from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	h.holder.Swap(cat)

	slog.Info("catalog reloaded from database", "count", cat.Len())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   cat.Len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
