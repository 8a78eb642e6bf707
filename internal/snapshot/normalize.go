// Package snapshot normalizes raw financial payloads and builds the
// evaluation context consumed by the rule engine.
package snapshot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/opensource-finance/heron/internal/domain"
)

// ErrInvalidInput indicates the raw payload cannot be normalized.
var ErrInvalidInput = errors.New("invalid snapshot input")

// Normalize converts a raw JSON object into a NormalizedSnapshot. Key
// aliases from upstream producers (Category_spend, Behaviour_metrics,
// Forecast) are folded into snake_case. Income fields must be positive;
// everything else is optional.
func Normalize(raw map[string]any) (*domain.NormalizedSnapshot, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: payload must be a JSON object", ErrInvalidInput)
	}

	avgIncome, err := numField(raw, "avg_monthly_income")
	if err != nil {
		return nil, err
	}
	avgExpense, err := numField(raw, "avg_monthly_expense")
	if err != nil {
		return nil, err
	}
	curIncome, err := numField(raw, "current_month_income")
	if err != nil {
		return nil, err
	}
	curExpense, err := numField(raw, "current_month_expense")
	if err != nil {
		return nil, err
	}

	if curIncome <= 0 {
		return nil, fmt.Errorf("%w: current_month_income must be positive, got %v", ErrInvalidInput, curIncome)
	}
	if avgIncome <= 0 {
		return nil, fmt.Errorf("%w: avg_monthly_income must be positive, got %v", ErrInvalidInput, avgIncome)
	}

	snap := &domain.NormalizedSnapshot{
		UserID:              str(raw["user_id"]),
		Month:               str(raw["month"]),
		AvgMonthlyIncome:    avgIncome,
		AvgMonthlyExpense:   avgExpense,
		CurrentMonthIncome:  curIncome,
		CurrentMonthExpense: curExpense,
		SavingsRate:         numPtr(raw["savings_rate"]),
		IncomeVolatility:    numPtr(raw["income_volatility"]),
		RiskLevel:           str(raw["risk_level"]),
		Persona:             str(alias(raw, "persona_type", "persona")),
		ConfidenceScore:     numPtr(raw["confidence_score"]),
		LastUpdated:         str(raw["last_updated"]),
		NetCashflow:         curIncome - curExpense,

		EmergencyFundBalance:    numPtr(raw["emergency_fund_balance"]),
		RentOrHousing:           numPtr(raw["rent_or_housing"]),
		PreviousMonthIncome:     numPtr(raw["previous_month_income"]),
		PreviousMonthExpense:    numPtr(raw["previous_month_expense"]),
		CashWithdrawals:         numPtr(raw["cash_withdrawals"]),
		LoanEMITotal:            numPtr(raw["loan_emi_total"]),
		PreviousSavingsBalance:  numPtr(raw["previous_savings_balance"]),
		CurrentSavingsBalance:   numPtr(raw["current_savings_balance"]),
		ZeroIncomeDays:          intPtr(raw["zero_income_days"]),
		ConsecutiveDeficitCount: intPtr(raw["consecutive_deficit_count"]),
		WeeklyExpenses:          numSlice(raw["weekly_expenses"]),
		LargeTransactions:       numSlice(raw["large_transactions"]),
	}

	if avgExpense != 0 {
		delta := (curExpense - avgExpense) / avgExpense
		snap.ExpenseDeltaPct = &delta
	}

	snap.CategorySpend = categorySpend(alias(raw, "category_spend", "Category_spend"))

	if m, ok := alias(raw, "behavior_metrics", "Behaviour_metrics").(map[string]any); ok && len(m) > 0 {
		snap.BehaviorMetrics = &domain.BehaviorMetrics{
			AvgDailyExpense:    numPtr(m["avg_daily_expense"]),
			HighSpendDays:      intPtr(m["high_spend_days"]),
			CashflowStability:  numPtr(m["cashflow_stability"]),
			DiscretionaryRatio: numPtr(m["discretionary_ratio"]),
		}
	}

	if m, ok := alias(raw, "forecast", "Forecast").(map[string]any); ok && len(m) > 0 {
		snap.Forecast = &domain.Forecast{
			PredictedIncomeNextMonth:  numPtr(m["predicted_income_next_month"]),
			PredictedExpenseNextMonth: numPtr(m["predicted_expense_next_month"]),
			Savings:                   numPtr(m["savings"]),
			Confidence:                numPtr(m["confidence"]),
		}
	}

	if m, ok := raw["insights"].(map[string]any); ok && len(m) > 0 {
		snap.Insights = &domain.Insights{
			TopSpendCategory: str(m["top_spend_category"]),
			CategoryDrift:    str(m["category_drift"]),
		}
	}

	return snap, nil
}

func alias(raw map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// categorySpend folds keys to lowercase so producers that send "Food" and
// producers that send "food" land on the same bucket.
func categorySpend(v any) map[string]float64 {
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]float64{}
	}
	out := make(map[string]float64, len(m))
	for k, raw := range m {
		if f, ok := num(raw); ok {
			out[strings.ToLower(k)] = f
		}
	}
	return out
}

func numField(raw map[string]any, key string) (float64, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return 0, nil
	}
	f, ok := num(v)
	if !ok {
		return 0, fmt.Errorf("%w: field %q is not numeric", ErrInvalidInput, key)
	}
	return f, nil
}

func num(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func numPtr(v any) *float64 {
	if v == nil {
		return nil
	}
	if f, ok := num(v); ok {
		return &f
	}
	return nil
}

func intPtr(v any) *int {
	if f := numPtr(v); f != nil {
		n := int(*f)
		return &n
	}
	return nil
}

func numSlice(v any) []float64 {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(items))
	for _, item := range items {
		if f, ok := num(item); ok {
			out = append(out, f)
		}
	}
	return out
}

func str(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
