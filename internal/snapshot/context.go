package snapshot

import (
	"math"
	"strings"

	"github.com/opensource-finance/heron/internal/domain"
)

// BuildContext flattens a normalized snapshot plus configured thresholds
// into the map catalog expressions resolve against. Built once per
// evaluation call; missing optionals default to zero so expressions stay
// total. Nested objects appear as empty maps when absent so dotted-path
// lookups degrade to Unresolved instead of failing the rule.
func BuildContext(snap *domain.NormalizedSnapshot, th domain.Thresholds) map[string]any {
	var maxWeekly, avgWeekly, cashflowCV float64
	if len(snap.WeeklyExpenses) >= 2 {
		maxWeekly = snap.WeeklyExpenses[0]
		sum := 0.0
		for _, w := range snap.WeeklyExpenses {
			if w > maxWeekly {
				maxWeekly = w
			}
			sum += w
		}
		avgWeekly = sum / float64(len(snap.WeeklyExpenses))
		if len(snap.WeeklyExpenses) >= 3 && avgWeekly > 0 {
			cashflowCV = stdev(snap.WeeklyExpenses) / avgWeekly
		}
	}

	maxLargeTxn := 0.0
	for _, t := range snap.LargeTransactions {
		if t > maxLargeTxn {
			maxLargeTxn = t
		}
	}

	persona := snap.Persona
	if persona == "" {
		persona = "default"
	}

	ctx := map[string]any{
		"current_month_income":  snap.CurrentMonthIncome,
		"current_month_expense": snap.CurrentMonthExpense,
		"avg_monthly_income":    snap.AvgMonthlyIncome,
		"avg_monthly_expense":   snap.AvgMonthlyExpense,
		"savings_rate":          deref(snap.SavingsRate),
		"income_volatility":     deref(snap.IncomeVolatility),
		"net_cashflow":          snap.NetCashflow,
		"expense_delta_pct":     deref(snap.ExpenseDeltaPct),
		"category_spend":        snap.CategorySpend,
		"persona":               persona,

		"emergency_fund_balance":    deref(snap.EmergencyFundBalance),
		"rent_or_housing":           deref(snap.RentOrHousing),
		"consecutive_deficit_count": float64(derefInt(snap.ConsecutiveDeficitCount)),
		"previous_savings_balance":  deref(snap.PreviousSavingsBalance),
		"current_savings_balance":   deref(snap.CurrentSavingsBalance),
		"previous_month_income":     deref(snap.PreviousMonthIncome),
		"previous_month_expense":    deref(snap.PreviousMonthExpense),
		"zero_income_days":          float64(derefInt(snap.ZeroIncomeDays)),
		"cash_withdrawals":          deref(snap.CashWithdrawals),
		"loan_emi_total":            deref(snap.LoanEMITotal),

		"max_weekly_expense":             maxWeekly,
		"avg_weekly_expense":             avgWeekly,
		"cashflow_coefficient_variation": cashflowCV,
		"max_large_transaction":          maxLargeTxn,

		"behavior_metrics":   map[string]any{},
		"forecast":           map[string]any{},
		"insights":           map[string]any{},
		"top_spend_category": "",

		"persona_min_savings":  th.PersonaMinSavings,
		"volatility_threshold": th.VolatilityThreshold,
		"overspend_bands": map[string]float64{
			"low": th.OverspendLow, "med": th.OverspendMed, "high": th.OverspendHigh,
		},
		"deficit_bands": map[string]float64{
			"low": th.DeficitLow, "med": th.DeficitMed,
		},
		"stability_thresholds": map[string]float64{
			"low": th.StabilityLow, "high": th.StabilityHigh,
		},
		"discretionary_ratio_bands": map[string]float64{
			"low": th.DiscretionaryRatioLow, "med": th.DiscretionaryRatioMed,
		},
		"rent_threshold":             th.RentIncomeRatioMax,
		"emergency_fund_months":      th.EmergencyFundMonths,
		"buffer_months_warning":      th.BufferMonthsWarning,
		"category_thresholds":        th.CategoryThresholds,
		"weekly_spike_threshold":     th.WeeklySpikeThreshold,
		"consecutive_deficit_months": th.ConsecutiveDeficitMonths,
		"savings_depletion_rate":     th.SavingsDepletionRate,
		"cashflow_variance_high":     th.CashflowVarianceHigh,
		"income_drop_threshold":      th.IncomeDropThreshold,
		"large_transaction_ratio":    th.LargeTransactionRatio,
		"zero_income_days_max":       th.ZeroIncomeDaysMax,
		"category_spike_threshold":   th.CategorySpikeThreshold,
		"food_income_ratio_max":      th.FoodIncomeRatioMax,
		"transport_income_ratio_max": th.TransportIncomeRatioMax,
		"cash_withdrawal_spike":      th.CashWithdrawalSpike,
		"loan_emi_income_ratio_max":  th.LoanEMIIncomeRatioMax,
		"forecast_deficit_threshold": th.ForecastDeficitThreshold,
		"forecast_surplus_threshold": th.ForecastSurplusThreshold,
		"forecast_confidence_min":    th.ForecastConfidenceMin,
	}

	if bm := snap.BehaviorMetrics; bm != nil {
		ctx["behavior_metrics"] = map[string]any{
			"cashflow_stability":  deref(bm.CashflowStability),
			"discretionary_ratio": deref(bm.DiscretionaryRatio),
			"high_spend_days":     float64(derefInt(bm.HighSpendDays)),
			"avg_daily_expense":   deref(bm.AvgDailyExpense),
		}
	}

	if f := snap.Forecast; f != nil {
		confidence := 1.0
		if f.Confidence != nil {
			confidence = *f.Confidence
		}
		ctx["forecast"] = map[string]any{
			"predicted_income_next_month":  deref(f.PredictedIncomeNextMonth),
			"predicted_expense_next_month": deref(f.PredictedExpenseNextMonth),
			"savings":                      deref(f.Savings),
			"confidence":                   confidence,
		}
	}

	if in := snap.Insights; in != nil {
		ctx["insights"] = map[string]any{
			"top_spend_category": in.TopSpendCategory,
			"category_drift":     in.CategoryDrift,
		}
		// Flat copy so the top category can key bracket accesses like
		// category_spend[top_spend_category].
		ctx["top_spend_category"] = strings.ToLower(in.TopSpendCategory)
	}

	return ctx
}

// stdev is the sample standard deviation.
func stdev(values []float64) float64 {
	n := float64(len(values))
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= n

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= n - 1

	return math.Sqrt(variance)
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
