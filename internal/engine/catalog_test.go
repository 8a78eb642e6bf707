package engine

import (
	"testing"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/registry"
	"github.com/opensource-finance/heron/internal/snapshot"
)

// These tests run the shipped catalog against normalized payloads, so the
// catalog expressions stay honest against the real context keys.

func shippedCatalog(t *testing.T) *registry.Catalog {
	t.Helper()
	cat, err := registry.LoadFile("../../config/rules.json")
	if err != nil {
		t.Fatalf("shipped catalog: %v", err)
	}
	return cat
}

func evaluatePayload(t *testing.T, raw map[string]any) *Result {
	t.Helper()
	snap, err := snapshot.Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	ctx := snapshot.BuildContext(snap, domain.DefaultThresholds())
	result, err := New(false).EvaluateAll(shippedCatalog(t), ctx)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	return result
}

func findTrigger(result *Result, id string) *domain.RuleTrigger {
	for i := range result.Triggers {
		if result.Triggers[i].RuleID == id && result.Triggers[i].Triggered {
			return &result.Triggers[i]
		}
	}
	return nil
}

func steadyPayload() map[string]any {
	return map[string]any{
		"user_id":               "u-42",
		"month":                 "2026-08",
		"persona":               "salaried",
		"avg_monthly_income":    50000.0,
		"avg_monthly_expense":   36000.0,
		"current_month_income":  50000.0,
		"current_month_expense": 35000.0,
		"savings_rate":          0.30,
	}
}

func TestShippedCatalogForecastSurplus(t *testing.T) {
	raw := steadyPayload()
	raw["forecast"] = map[string]any{
		"predicted_income_next_month":  52000.0,
		"predicted_expense_next_month": 40000.0,
		"confidence":                   0.9,
	}

	result := evaluatePayload(t, raw)

	trig := findTrigger(result, "R-FCAST-SURPLUS-01")
	if trig == nil {
		t.Fatal("surplus rule did not trigger")
	}
	if trig.Severity != domain.SeverityLow {
		t.Errorf("severity: got %s, want low", trig.Severity)
	}
	if got, _ := trig.Params["surplus_amount"].(float64); got != 12000.0 {
		t.Errorf("surplus_amount: got %v, want 12000", trig.Params["surplus_amount"])
	}

	// A confident surplus cannot also be a forecast deficit.
	if findTrigger(result, "R-FCAST-DEF-01") != nil || findTrigger(result, "R-FCAST-DEF-LARGE-01") != nil {
		t.Error("forecast deficit rules triggered alongside a surplus")
	}
}

func TestShippedCatalogForecastDeficit(t *testing.T) {
	raw := steadyPayload()
	raw["forecast"] = map[string]any{
		"predicted_income_next_month":  40000.0,
		"predicted_expense_next_month": 50000.0,
		"confidence":                   0.8,
	}

	result := evaluatePayload(t, raw)

	// gap ratio 0.25: banded high, and above the large-deficit threshold.
	trig := findTrigger(result, "R-FCAST-DEF-01")
	if trig == nil {
		t.Fatal("forecast deficit rule did not trigger")
	}
	if trig.Severity != domain.SeverityHigh {
		t.Errorf("R-FCAST-DEF-01 severity: got %s, want high", trig.Severity)
	}

	large := findTrigger(result, "R-FCAST-DEF-LARGE-01")
	if large == nil {
		t.Fatal("large forecast deficit rule did not trigger")
	}
	if got, _ := large.Params["deficit_amount"].(float64); got != 10000.0 {
		t.Errorf("deficit_amount: got %v, want 10000", large.Params["deficit_amount"])
	}

	if findTrigger(result, "R-FCAST-SURPLUS-01") != nil {
		t.Error("surplus rule triggered on a deficit forecast")
	}
}

func TestShippedCatalogLowForecastConfidence(t *testing.T) {
	raw := steadyPayload()
	raw["forecast"] = map[string]any{
		"predicted_income_next_month":  40000.0,
		"predicted_expense_next_month": 50000.0,
		"confidence":                   0.5,
	}

	result := evaluatePayload(t, raw)

	if trig := findTrigger(result, "R-FCAST-CONF-LOW-01"); trig == nil {
		t.Error("confidence rule did not trigger")
	} else if trig.Severity != domain.SeverityLow {
		t.Errorf("severity: got %s, want low", trig.Severity)
	}

	// Forecast rules gated on confidence stay quiet.
	if findTrigger(result, "R-FCAST-DEF-01") != nil || findTrigger(result, "R-FCAST-DEF-LARGE-01") != nil {
		t.Error("forecast deficit rules triggered despite low confidence")
	}
}

func TestShippedCatalogSavingsDepletion(t *testing.T) {
	raw := steadyPayload()
	raw["previous_savings_balance"] = 100000.0
	raw["current_savings_balance"] = 50000.0

	result := evaluatePayload(t, raw)

	trig := findTrigger(result, "R-SAVE-DEPLETE-01")
	if trig == nil {
		t.Fatal("depletion rule did not trigger")
	}
	if trig.Severity != domain.SeverityHigh {
		t.Errorf("severity: got %s, want high", trig.Severity)
	}
	if got, _ := trig.Params["depletion_rate"].(float64); got != 0.5 {
		t.Errorf("depletion_rate: got %v, want 0.5", trig.Params["depletion_rate"])
	}
}

func TestShippedCatalogBufferAndEmergencyFund(t *testing.T) {
	raw := steadyPayload()
	raw["emergency_fund_balance"] = 30000.0

	result := evaluatePayload(t, raw)

	// 30000 covers 0.83 months; salaried warning level is 2.
	buffer := findTrigger(result, "R-BUFFER-WARN-01")
	if buffer == nil {
		t.Fatal("buffer warning did not trigger")
	}
	if buffer.Severity != domain.SeverityHigh {
		t.Errorf("buffer severity: got %s, want high", buffer.Severity)
	}

	// Required fund 3 * 36000 = 108000; shortfall ratio 0.72.
	fund := findTrigger(result, "R-EMERG-FUND-01")
	if fund == nil {
		t.Fatal("emergency fund rule did not trigger")
	}
	if fund.Severity != domain.SeverityHigh {
		t.Errorf("fund severity: got %s, want high", fund.Severity)
	}
	if got, _ := fund.Params["shortfall"].(float64); got != 78000.0 {
		t.Errorf("shortfall: got %v, want 78000", fund.Params["shortfall"])
	}
}

func TestShippedCatalogStabilityRules(t *testing.T) {
	raw := steadyPayload()
	raw["zero_income_days"] = 12.0
	raw["large_transactions"] = []any{3000.0, 9000.0}

	result := evaluatePayload(t, raw)

	if trig := findTrigger(result, "R-ZERO-INC-DAYS-01"); trig == nil {
		t.Error("zero-income rule did not trigger")
	} else if trig.Severity != domain.SeverityHigh {
		t.Errorf("zero-income severity: got %s, want high", trig.Severity)
	}

	// 9000 / 50000 = 0.18: above the 0.15 trip wire, below the high band.
	if trig := findTrigger(result, "R-LARGE-TXN-01"); trig == nil {
		t.Error("large transaction rule did not trigger")
	} else if trig.Severity != domain.SeverityMedium {
		t.Errorf("large txn severity: got %s, want medium", trig.Severity)
	}
}

func TestShippedCatalogCategorySpikes(t *testing.T) {
	raw := steadyPayload()
	raw["current_month_expense"] = 20000.0
	raw["category_spend"] = map[string]any{
		"Utilities": 8000.0,
		"food":      5000.0,
	}
	raw["cash_withdrawals"] = 9000.0
	raw["insights"] = map[string]any{
		"top_spend_category": "Utilities",
	}

	result := evaluatePayload(t, raw)

	// 8000 > 36000 * 0.11 * 1.40 = 5544.
	if findTrigger(result, "R-UTILITIES-SPIKE-01") == nil {
		t.Error("utilities spike did not trigger")
	}
	// 9000 > 36000 * 0.10 * 1.50 = 5400.
	if findTrigger(result, "R-CASH-SPIKE-01") == nil {
		t.Error("cash spike did not trigger")
	}

	// Top category share 8000 / 20000 = 0.40: triggered, not high.
	top := findTrigger(result, "R-TOP-CAT-HEAVY-01")
	if top == nil {
		t.Fatal("top category rule did not trigger")
	}
	if top.Severity != domain.SeverityMedium {
		t.Errorf("top category severity: got %s, want medium", top.Severity)
	}
	if got, _ := top.Params["category"].(string); got != "utilities" {
		t.Errorf("category param: got %q, want utilities", top.Params["category"])
	}
}

func TestShippedCatalogQuietOnSteadyMonth(t *testing.T) {
	result := evaluatePayload(t, steadyPayload())
	for _, trig := range result.Triggers {
		if trig.Triggered {
			t.Errorf("rule %s triggered on a steady month", trig.RuleID)
		}
	}
	if result.Stats.RulesFailed != 0 {
		t.Errorf("rules failed on a steady month: %d", result.Stats.RulesFailed)
	}
}
