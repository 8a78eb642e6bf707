package snapshot

import (
	"errors"
	"math"
	"testing"

	"github.com/opensource-finance/heron/internal/domain"
)

func rawPayload() map[string]any {
	return map[string]any{
		"user_id":               "u-123",
		"month":                 "2026-08",
		"avg_monthly_income":    40000.0,
		"avg_monthly_expense":   38000.0,
		"current_month_income":  40000.0,
		"current_month_expense": 46500.0,
		"savings_rate":          0.12,
		"persona_type":          "gig_worker",
		"Category_spend": map[string]any{
			"food": 12000.0,
			"rent": 15000.0,
		},
		"Behaviour_metrics": map[string]any{
			"cashflow_stability":  0.55,
			"discretionary_ratio": 0.42,
			"high_spend_days":     6.0,
		},
		"forecast": map[string]any{
			"predicted_income_next_month":  39000.0,
			"predicted_expense_next_month": 45000.0,
		},
		"weekly_expenses": []any{10000.0, 11000.0, 12500.0, 13000.0},
	}
}

func TestNormalize(t *testing.T) {
	snap, err := Normalize(rawPayload())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if snap.UserID != "u-123" || snap.Month != "2026-08" {
		t.Errorf("identity fields: %+v", snap)
	}
	if snap.NetCashflow != -6500.0 {
		t.Errorf("net cashflow: got %v", snap.NetCashflow)
	}
	if snap.ExpenseDeltaPct == nil {
		t.Fatal("expense delta missing")
	}
	if got := *snap.ExpenseDeltaPct; math.Abs(got-(46500.0-38000.0)/38000.0) > 1e-9 {
		t.Errorf("expense delta: got %v", got)
	}

	// Capitalized aliases fold into snake_case fields.
	if snap.CategorySpend["food"] != 12000.0 {
		t.Errorf("category spend alias: %v", snap.CategorySpend)
	}
	if snap.BehaviorMetrics == nil || *snap.BehaviorMetrics.CashflowStability != 0.55 {
		t.Errorf("behavior metrics alias: %+v", snap.BehaviorMetrics)
	}
	if snap.BehaviorMetrics.HighSpendDays == nil || *snap.BehaviorMetrics.HighSpendDays != 6 {
		t.Errorf("high spend days: %+v", snap.BehaviorMetrics)
	}
	if snap.Forecast == nil || *snap.Forecast.PredictedExpenseNextMonth != 45000.0 {
		t.Errorf("forecast: %+v", snap.Forecast)
	}
	if len(snap.WeeklyExpenses) != 4 {
		t.Errorf("weekly expenses: %v", snap.WeeklyExpenses)
	}
}

func TestNormalizePersonaAlias(t *testing.T) {
	raw := rawPayload()
	delete(raw, "persona_type")
	raw["persona"] = "salaried"

	snap, err := Normalize(raw)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Persona != "salaried" {
		t.Errorf("persona alias: got %q", snap.Persona)
	}
}

func TestNormalizeMissingSavingsRateDefaultsZero(t *testing.T) {
	raw := rawPayload()
	delete(raw, "savings_rate")

	snap, err := Normalize(raw)
	if err != nil {
		t.Fatal(err)
	}
	if snap.SavingsRate != nil {
		t.Errorf("missing savings rate should stay unset, got %v", *snap.SavingsRate)
	}

	// And the context exposes it as plain zero, not a derived value.
	ctx := BuildContext(snap, domain.DefaultThresholds())
	if ctx["savings_rate"] != 0.0 {
		t.Errorf("context savings_rate: got %v, want 0", ctx["savings_rate"])
	}
}

func TestNormalizeCategoryKeysFoldToLowercase(t *testing.T) {
	raw := rawPayload()
	raw["Category_spend"] = map[string]any{
		"Food":      6200.0,
		"Transport": 2100.0,
	}

	snap, err := Normalize(raw)
	if err != nil {
		t.Fatal(err)
	}
	if snap.CategorySpend["food"] != 6200.0 || snap.CategorySpend["transport"] != 2100.0 {
		t.Errorf("category keys not folded: %v", snap.CategorySpend)
	}
}

func TestNormalizeRejectsNonPositiveIncome(t *testing.T) {
	raw := rawPayload()
	raw["current_month_income"] = 0.0
	if _, err := Normalize(raw); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("zero income: want ErrInvalidInput, got %v", err)
	}

	raw = rawPayload()
	raw["avg_monthly_income"] = -100.0
	if _, err := Normalize(raw); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative avg income: want ErrInvalidInput, got %v", err)
	}

	if _, err := Normalize(nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("nil payload: want ErrInvalidInput, got %v", err)
	}
}

func TestNormalizeRejectsNonNumericFields(t *testing.T) {
	raw := rawPayload()
	raw["current_month_expense"] = []any{"nope"}
	if _, err := Normalize(raw); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("want ErrInvalidInput, got %v", err)
	}
}

func TestBuildContext(t *testing.T) {
	snap, err := Normalize(rawPayload())
	if err != nil {
		t.Fatal(err)
	}
	ctx := BuildContext(snap, domain.DefaultThresholds())

	if ctx["persona"] != "gig_worker" {
		t.Errorf("persona: got %v", ctx["persona"])
	}
	if ctx["current_month_expense"] != 46500.0 {
		t.Errorf("expense: got %v", ctx["current_month_expense"])
	}
	// Optionals default to zero values.
	if ctx["emergency_fund_balance"] != 0.0 {
		t.Errorf("default optional: got %v", ctx["emergency_fund_balance"])
	}

	// Derived weekly metrics.
	if ctx["max_weekly_expense"] != 13000.0 {
		t.Errorf("max weekly: got %v", ctx["max_weekly_expense"])
	}
	if got := ctx["avg_weekly_expense"].(float64); math.Abs(got-11625.0) > 1e-9 {
		t.Errorf("avg weekly: got %v", got)
	}
	if cv := ctx["cashflow_coefficient_variation"].(float64); cv <= 0 {
		t.Errorf("cashflow CV should be positive, got %v", cv)
	}

	// Nested objects present as maps.
	bm, ok := ctx["behavior_metrics"].(map[string]any)
	if !ok || bm["discretionary_ratio"] != 0.42 {
		t.Errorf("behavior metrics: %v", ctx["behavior_metrics"])
	}
	fc, ok := ctx["forecast"].(map[string]any)
	if !ok || fc["confidence"] != 1.0 {
		t.Errorf("forecast confidence should default 1.0: %v", ctx["forecast"])
	}
	// Insights absent: empty map, not nil.
	if in, ok := ctx["insights"].(map[string]any); !ok || len(in) != 0 {
		t.Errorf("insights: %v", ctx["insights"])
	}

	// Config injection with persona fallback available to expressions.
	mins, ok := ctx["persona_min_savings"].(map[string]float64)
	if !ok || mins["gig_worker"] != 0.25 {
		t.Errorf("persona_min_savings: %v", ctx["persona_min_savings"])
	}
}

func TestBuildContextTopSpendCategory(t *testing.T) {
	raw := rawPayload()
	raw["insights"] = map[string]any{
		"top_spend_category": "Food",
		"category_drift":     "food up by 41%",
	}

	snap, err := Normalize(raw)
	if err != nil {
		t.Fatal(err)
	}
	ctx := BuildContext(snap, domain.DefaultThresholds())

	// Flat lowercase copy keys bracket accesses against category_spend.
	if ctx["top_spend_category"] != "food" {
		t.Errorf("top_spend_category: got %v", ctx["top_spend_category"])
	}
	in, ok := ctx["insights"].(map[string]any)
	if !ok || in["category_drift"] != "food up by 41%" {
		t.Errorf("insights: %v", ctx["insights"])
	}
}

func TestBuildContextRequiredFieldsPresent(t *testing.T) {
	snap, err := Normalize(rawPayload())
	if err != nil {
		t.Fatal(err)
	}
	ctx := BuildContext(snap, domain.DefaultThresholds())

	for _, field := range []string{"persona", "current_month_income", "current_month_expense"} {
		if _, ok := ctx[field]; !ok {
			t.Errorf("required field %q missing from context", field)
		}
	}
}

func TestStdev(t *testing.T) {
	got := stdev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	want := 2.138089935299395 // sample stdev
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("stdev: got %v, want %v", got, want)
	}
}
