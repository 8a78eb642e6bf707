// Package engine interprets the rule catalog against an evaluation context.
//
// A single evaluation pass is synchronous and pure with respect to its
// inputs: no I/O, no shared mutable state, bounded by catalog size. Failures
// are contained per rule; only a missing base field aborts the whole pass.
package engine

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/expr"
	"github.com/opensource-finance/heron/internal/registry"
)

// requiredFields must be present in every evaluation context.
var requiredFields = []string{"persona", "current_month_income", "current_month_expense"}

// Result is the outcome of one catalog-wide evaluation pass.
type Result struct {
	Triggers []domain.RuleTrigger
	Stats    domain.EvaluationStats
}

// Evaluator runs the rule catalog against prepared evaluation contexts.
// Stateless and safe for concurrent use.
type Evaluator struct {
	debug bool
}

// New creates an evaluator. Debug enables per-rule trace logging.
func New(debug bool) *Evaluator {
	return &Evaluator{debug: debug}
}

// EvaluateAll evaluates every enabled rule in priority order against ctx.
// The context is shared across rules and never mutated. Per-rule failures
// produce annotated non-triggered outcomes and evaluation continues; a rule
// id that already triggered in this pass is skipped on later occurrences.
func (e *Evaluator) EvaluateAll(cat *registry.Catalog, ctx map[string]any) (*Result, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	rules := cat.EnabledByPriority()

	result := &Result{
		Triggers: make([]domain.RuleTrigger, 0, len(rules)),
		Stats:    domain.EvaluationStats{TotalRules: len(rules)},
	}
	triggeredIDs := make(map[string]bool)

	slog.Info("starting rule evaluation", "rules", len(rules), "catalogVersion", cat.Version())

	for _, rule := range rules {
		trigger, err := e.evaluateRule(rule, ctx)
		if err != nil {
			result.Stats.RulesFailed++
			slog.Error("rule evaluation failed", "ruleId", rule.ID, "error", err)
			result.Triggers = append(result.Triggers, failedTrigger(rule.ID, err))
			continue
		}

		if trigger.Triggered && triggeredIDs[trigger.RuleID] {
			slog.Debug("skipping duplicate trigger", "ruleId", trigger.RuleID)
			continue
		}

		result.Triggers = append(result.Triggers, trigger)

		if trigger.Triggered {
			triggeredIDs[trigger.RuleID] = true
			result.Stats.RulesTriggered++
			slog.Info("rule triggered",
				"ruleId", rule.ID, "severity", trigger.Severity, "reason", trigger.Reason)
		} else if e.debug {
			slog.Debug("rule not triggered", "ruleId", rule.ID)
		}
	}

	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	result.Stats.EvaluationTimeMs = math.Round(elapsed*100) / 100

	slog.Info("rule evaluation complete",
		"triggered", result.Stats.RulesTriggered,
		"total", result.Stats.TotalRules,
		"failed", result.Stats.RulesFailed,
		"elapsedMs", result.Stats.EvaluationTimeMs)

	return result, nil
}

func (e *Evaluator) evaluateRule(rule *domain.RuleDefinition, ctx map[string]any) (domain.RuleTrigger, error) {
	triggered, extracted, err := evalCondition(&rule.Condition, ctx)
	if err != nil {
		return domain.RuleTrigger{}, err
	}

	if !triggered {
		return domain.RuleTrigger{RuleID: rule.ID, Triggered: false}, nil
	}

	severity, err := computeSeverity(&rule.Severity, ctx, extracted)
	if err != nil {
		return domain.RuleTrigger{}, err
	}

	params := evalParams(rule.Params, ctx, extracted, e.debug)
	message := formatMessage(rule.MessageTemplate, params, extracted)

	return domain.RuleTrigger{
		RuleID:    rule.ID,
		Triggered: true,
		Severity:  severity,
		Weight:    rule.Weight,
		Params:    params,
		Reason:    message,
		DataRefs:  rule.DataRefs,
	}, nil
}

// evalParams resolves parameter expressions independently. Unresolved
// parameters are omitted, never block the trigger.
func evalParams(params map[string]string, ctx, extracted map[string]any, debug bool) map[string]any {
	if len(params) == 0 {
		return nil
	}
	result := make(map[string]any, len(params))
	for key, exprStr := range params {
		value, ok := expr.Resolve(exprStr, ctx, extracted)
		if !ok || value == nil {
			if debug {
				slog.Debug("param unresolved, skipping", "param", key, "expr", exprStr)
			}
			continue
		}
		result[key] = value
	}
	return result
}

func validateContext(ctx map[string]any) error {
	if len(ctx) == 0 {
		return fmt.Errorf("%w: empty context", ErrInvalidContext)
	}
	for _, field := range requiredFields {
		if _, ok := ctx[field]; !ok {
			return fmt.Errorf("%w: missing required field %q", ErrInvalidContext, field)
		}
	}
	return nil
}

func failedTrigger(ruleID string, err error) domain.RuleTrigger {
	msg := err.Error()
	reason := msg
	if len(reason) > 100 {
		reason = reason[:100]
	}
	return domain.RuleTrigger{
		RuleID:    ruleID,
		Triggered: false,
		Severity:  domain.SeverityLow,
		Params:    map[string]any{"error": msg},
		Reason:    "rule evaluation failed: " + reason,
	}
}
