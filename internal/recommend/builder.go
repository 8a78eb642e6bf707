// Package recommend maps triggered rules to parameterized recommendations
// and a trackable action plan.
package recommend

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/opensource-finance/heron/internal/domain"
)

// Builder derives recommendations from triggered rules using configured
// thresholds for currency formatting and persona lookups.
type Builder struct {
	thresholds domain.Thresholds
}

// NewBuilder creates a recommendation builder.
func NewBuilder(th domain.Thresholds) *Builder {
	return &Builder{thresholds: th}
}

// smartCap computes a spending cap that is always at or below current spend
// so a reduction recommendation yields positive savings. The cap is the
// more achievable of 80% of current spend and the income-ratio target,
// ceilinged at current spend.
func smartCap(currentSpend, income, targetRatio float64) float64 {
	achievable := math.Max(income*targetRatio, currentSpend*0.8)
	return math.Min(currentSpend, achievable)
}

// Build produces recommendations for the triggered rules, in a fixed rule
// inspection order so output is deterministic.
func (b *Builder) Build(snap *domain.NormalizedSnapshot, risks []domain.RiskItem, triggers []domain.RuleTrigger) []domain.Recommendation {
	riskDims := make(map[domain.Dimension]bool, len(risks))
	for _, r := range risks {
		riskDims[r.Dimension] = true
	}
	byID := make(map[string]*domain.RuleTrigger, len(triggers))
	for i := range triggers {
		t := &triggers[i]
		if t.Triggered {
			byID[t.RuleID] = t
		}
	}

	income := snap.CurrentMonthIncome
	if income == 0 {
		income = snap.AvgMonthlyIncome
	}

	var recs []domain.Recommendation
	link := func(dim domain.Dimension) []domain.Dimension {
		if riskDims[dim] {
			return []domain.Dimension{dim}
		}
		return nil
	}

	if t := byID["R-DEFICIT-01"]; t != nil {
		gap := paramFloat(t.Params, "gap_amt")
		denom := math.Max(snap.CurrentMonthExpense, 1e-6)
		cutPct := math.Min(0.20, math.Max(0.10, gap/denom))
		recs = append(recs, domain.Recommendation{
			ID:    "REC-BALANCE-01",
			Title: "Close this month's gap",
			Body: fmt.Sprintf("You're short by %s this month. Reduce discretionary spend by %d%% across top categories to balance.",
				b.currency(gap), pct(cutPct)),
			Actions: []string{
				"Set weekly discretionary budget envelopes",
				"Pause non-essential subscriptions until balance is restored",
			},
			Amounts:     map[string]any{"target_cut_pct": cutPct},
			LinkedRisks: link(domain.DimDeficit),
			Priority:    1,
			DataRefs:    []string{"/current_month_expense", "/current_month_income"},
		})
	}

	if t := byID["R-SAVE-LOW-01"]; t != nil {
		target := paramFloat(t.Params, "target_rate")
		recs = append(recs, domain.Recommendation{
			ID:    "REC-SAVE-BOOST-01",
			Title: "Boost savings rate",
			Body: fmt.Sprintf("Savings rate is below target. Set an auto-transfer to reach %d%% upon income receipt.",
				pct(target)),
			Actions:     []string{"Create automated savings transfer on payday"},
			Amounts:     map[string]any{"new_savings_rate": target},
			LinkedRisks: link(domain.DimSavings),
			Priority:    2,
			DataRefs:    []string{"/savings_rate"},
		})
	}

	if byID["R-VOL-INC-01"] != nil {
		persona := snap.Persona
		if persona == "" {
			persona = "default"
		}
		months := domain.PersonaValue(b.thresholds.EmergencyFundMonths, persona)
		bufTarget := months * snap.AvgMonthlyExpense
		recs = append(recs, domain.Recommendation{
			ID:    "REC-BUFFER-01",
			Title: "Build income buffer",
			Body: fmt.Sprintf("Income volatility is elevated. Build a %d-month buffer of %s.",
				int(months), b.currency(bufTarget)),
			Actions: []string{
				"Allocate a buffer sub-account",
				"Divert surplus to buffer until target reached",
			},
			Amounts:     map[string]any{"buffer_target": bufTarget, "months": months},
			LinkedRisks: link(domain.DimVolatility),
			Priority:    1,
			DataRefs:    []string{"/income_volatility"},
		})
	}

	if byID["R-OVRSPEND-01"] != nil {
		cap := snap.AvgMonthlyExpense * 1.05
		recs = append(recs, domain.Recommendation{
			ID:    "REC-CAP-01",
			Title: "Set monthly cap",
			Body: fmt.Sprintf("Expenses exceed average. Set a soft cap at %s (~105%% of average).",
				b.currency(cap)),
			Actions: []string{
				"Enable monthly cap alerts",
				"Lock discretionary spend after cap",
			},
			Amounts:     map[string]any{"cap_amount": cap},
			LinkedRisks: link(domain.DimOverspend),
			Priority:    2,
			DataRefs:    []string{"/avg_monthly_expense", "/current_month_expense"},
		})
	}

	if t := byID["R-CAT-DRIFT-01"]; t != nil {
		cat := paramString(t.Params, "category")
		if cat == "" {
			slog.Warn("category drift triggered without category param")
		} else {
			currentSpend := snap.CategorySpend[cat]
			targetRatio, ok := b.thresholds.CategoryThresholds[strings.ToLower(cat)]
			if !ok {
				targetRatio = 0.15
			}
			tempCap := smartCap(currentSpend, income, targetRatio)
			reductionPct := 0.0
			if currentSpend > 0 {
				reductionPct = (currentSpend - tempCap) / currentSpend * 100
			}
			recs = append(recs, domain.Recommendation{
				ID:    "REC-CAT-AUDIT-01",
				Title: "Audit category: " + cat,
				Body: fmt.Sprintf("%s spending jumped recently to %s. Run a 1-week audit and reduce to %s (%.0f%% reduction).",
					cat, b.currency(currentSpend), b.currency(tempCap), reductionPct),
				Actions: []string{
					"Review last 10 transactions in " + cat,
					"Set temporary cap at " + b.currency(tempCap),
					"Identify recurring charges that can be cancelled",
				},
				Amounts:     map[string]any{"category": cat, "temp_cap": tempCap, "reduction_pct": reductionPct},
				LinkedRisks: link(domain.DimCategoryOutlier),
				Priority:    3,
				DataRefs:    []string{"/category_spend/" + cat},
			})
		}
	}

	if byID["R-DISC-HIGH-01"] != nil || byID["R-HSD-01"] != nil {
		essential := income * 0.65
		targetDiscretionary := (income - essential) * 0.6
		dailyBudget := targetDiscretionary / 30
		recs = append(recs, domain.Recommendation{
			ID:    "REC-SPEND-ALERT-01",
			Title: "Tighten daily spending",
			Body: fmt.Sprintf("Discretionary spending is high. Set a daily budget of %s and enable alerts when you hit 80%% of daily limit.",
				b.currency(dailyBudget)),
			Actions: []string{
				fmt.Sprintf("Enable daily alerts at %s (80%% of daily budget)", b.currency(dailyBudget*0.8)),
				"Apply hard stops after daily budget is exceeded",
				"Use cash envelopes for discretionary categories",
			},
			Amounts:     map[string]any{"daily_budget": dailyBudget, "monthly_target": targetDiscretionary},
			LinkedRisks: link(domain.DimDiscretionary),
			Priority:    3,
			DataRefs:    []string{"/behavior_metrics/discretionary_ratio"},
		})
	}

	if t := byID["R-EMERG-FUND-01"]; t != nil {
		required := paramFloat(t.Params, "required_fund")
		shortfall := paramFloat(t.Params, "shortfall")
		monthlyAllocation := income * 0.10
		monthsToTarget := 0
		if monthlyAllocation > 0 {
			monthsToTarget = int(shortfall / monthlyAllocation)
		}
		recs = append(recs, domain.Recommendation{
			ID:    "REC-EMERG-FUND-01",
			Title: "Build emergency fund",
			Body: fmt.Sprintf("Your emergency fund is %s short of the recommended %s. Allocate %s monthly (10%% of income) to reach target in ~%d months.",
				b.currency(shortfall), b.currency(required), b.currency(monthlyAllocation), monthsToTarget),
			Actions: []string{
				fmt.Sprintf("Set up auto-transfer of %s on payday", b.currency(monthlyAllocation)),
				"Allocate all windfalls to emergency fund",
				"Review and increase allocation after 3 months",
			},
			Amounts: map[string]any{
				"required_fund": required, "shortfall": shortfall,
				"monthly_allocation": monthlyAllocation, "months_to_target": monthsToTarget,
			},
			LinkedRisks: link(domain.DimSavings),
			Priority:    1,
			DataRefs:    []string{"/emergency_fund_balance"},
		})
	}

	if t := byID["R-RENT-HIGH-01"]; t != nil {
		rentRatio := paramFloat(t.Params, "rent_ratio")
		recs = append(recs, domain.Recommendation{
			ID:    "REC-RENT-REDUCE-01",
			Title: "Housing cost is too high",
			Body: fmt.Sprintf("Housing takes up %.1f%% of income (recommended: <=35%%). Consider relocating or finding a roommate.",
				rentRatio*100),
			Actions: []string{
				"Explore cheaper housing options",
				"Negotiate rent reduction",
				"Consider shared accommodation",
			},
			Amounts:     map[string]any{"current_rent_ratio": rentRatio},
			LinkedRisks: link(domain.DimOverspend),
			Priority:    2,
			DataRefs:    []string{"/rent_or_housing"},
		})
	}

	if t := byID["R-CONSEC-DEF-01"]; t != nil {
		months := paramFloat(t.Params, "consecutive_months")
		recs = append(recs, domain.Recommendation{
			ID:    "REC-DEFICIT-STREAK-01",
			Title: "Break the deficit streak",
			Body: fmt.Sprintf("You've been in deficit for %d consecutive months. Urgent action needed to balance income and expenses.",
				int(months)),
			Actions: []string{
				"Cut all non-essential expenses immediately",
				"Look for additional income sources",
				"Review all subscriptions and cancel unused ones",
			},
			Amounts:     map[string]any{"deficit_months": months},
			LinkedRisks: link(domain.DimDeficit),
			Priority:    1,
			DataRefs:    []string{"/consecutive_deficit_count"},
		})
	}

	if t := byID["R-INCOME-DROP-01"]; t != nil {
		dropPct := paramFloat(t.Params, "drop_pct")
		previousIncome := income
		if snap.PreviousMonthIncome != nil && *snap.PreviousMonthIncome > 0 {
			previousIncome = *snap.PreviousMonthIncome
		}
		incomeLoss := previousIncome - income
		essential := income * 0.65
		adjustedDiscretionary := math.Max((income-essential)*0.5, 0)
		recs = append(recs, domain.Recommendation{
			ID:    "REC-INCOME-DROP-01",
			Title: "Income dropped significantly",
			Body: fmt.Sprintf("Your income dropped by %s (%.0f%%) from last month. Reduce discretionary spending to %s until income stabilizes.",
				b.currency(incomeLoss), dropPct*100, b.currency(adjustedDiscretionary)),
			Actions: []string{
				"Scale down discretionary expenses by 50%",
				fmt.Sprintf("Set temporary monthly budget at %s for non-essentials", b.currency(adjustedDiscretionary)),
				"Tap emergency fund if essential expenses can't be covered",
				"Explore freelance/side gigs to supplement income",
			},
			Amounts: map[string]any{
				"drop_percentage": dropPct, "income_loss": incomeLoss,
				"adjusted_discretionary": adjustedDiscretionary,
			},
			LinkedRisks: link(domain.DimVolatility),
			Priority:    1,
			DataRefs:    []string{"/previous_month_income", "/current_month_income"},
		})
	}

	if t := byID["R-LOAN-EMI-HIGH-01"]; t != nil {
		emiRatio := paramFloat(t.Params, "income_ratio")
		currentEMI := income * emiRatio
		targetEMI := income * 0.35
		potentialSavings := currentEMI - targetEMI
		recs = append(recs, domain.Recommendation{
			ID:    "REC-LOAN-REFI-01",
			Title: "Loan EMI burden is high",
			Body: fmt.Sprintf("Your loan EMI is %s (%.0f%% of income). Target: <=40%%. Refinancing could save %s/month if you reduce EMI to 35%%.",
				b.currency(currentEMI), emiRatio*100, b.currency(potentialSavings)),
			Actions: []string{
				"Compare refinancing rates from 3+ lenders",
				"Consolidate multiple loans to reduce interest",
				"Negotiate with current lenders for rate reduction",
				fmt.Sprintf("Target monthly EMI: %s (35%% of income)", b.currency(targetEMI)),
			},
			Amounts: map[string]any{
				"emi_ratio": emiRatio, "current_emi": currentEMI,
				"target_emi": targetEMI, "potential_savings": potentialSavings,
			},
			LinkedRisks: link(domain.DimCategoryOutlier),
			Priority:    2,
			DataRefs:    []string{"/loan_emi_total"},
		})
	}

	if t := byID["R-FCAST-SURPLUS-01"]; t != nil {
		surplus := paramFloat(t.Params, "surplus_amount")
		savingsAlloc := surplus * 0.50
		investAlloc := surplus * 0.30
		rewardAlloc := surplus * 0.20
		recs = append(recs, domain.Recommendation{
			ID:    "REC-SURPLUS-INVEST-01",
			Title: "Great news: Surplus expected!",
			Body: fmt.Sprintf("Next month is forecasted to have a surplus of %s. Smart allocation: %s to savings (50%%), %s to investment (30%%), %s as reward (20%%).",
				b.currency(surplus), b.currency(savingsAlloc), b.currency(investAlloc), b.currency(rewardAlloc)),
			Actions: []string{
				fmt.Sprintf("Auto-transfer %s to emergency fund", b.currency(savingsAlloc)),
				fmt.Sprintf("Invest %s in SIP/mutual funds", b.currency(investAlloc)),
				fmt.Sprintf("Reward yourself with %s guilt-free spending", b.currency(rewardAlloc)),
				"Review allocation after 3 months",
			},
			Amounts: map[string]any{
				"surplus_amount": surplus, "savings_allocation": savingsAlloc,
				"investment_allocation": investAlloc, "reward_allocation": rewardAlloc,
			},
			Priority: 4,
			DataRefs: []string{"/forecast/predicted_income_next_month", "/forecast/predicted_expense_next_month"},
		})
	}

	if t := byID["R-FOOD-HIGH-01"]; t != nil {
		recs = append(recs, b.categoryReduction(t, snap, income, categoryReductionSpec{
			recID: "REC-FOOD-REDUCE-01", category: "food", ratioParam: "food_ratio",
			targetRatio: b.thresholds.FoodIncomeRatioMax, priority: 2,
			title: "Food spending is above ideal range",
			bodyFmt: "Food spending at %s (%.0f%% of income). Target: <=%d%%. Reduce to %s to save %s/month.",
			actions: []string{
				"Plan meals weekly to reduce impulsive dining out",
				"Cook in batches for 3-4 days",
				"Cancel unused food delivery subscriptions",
			},
		}))
	}

	if t := byID["R-TRANSPORT-HIGH-01"]; t != nil {
		recs = append(recs, b.categoryReduction(t, snap, income, categoryReductionSpec{
			recID: "REC-TRANSPORT-REDUCE-01", category: "transport", ratioParam: "transport_ratio",
			targetRatio: b.thresholds.TransportIncomeRatioMax, priority: 2,
			title: "Transport costs are elevated",
			bodyFmt: "Transport spending at %s (%.0f%% of income). Target: <=%d%%. Optimize to %s to save %s/month.",
			actions: []string{
				"Use public transport instead of ride-sharing apps",
				"Carpool with colleagues for work commute",
				"Consider monthly passes for regular routes",
			},
		}))
	}

	slog.Info("recommendations built", "count", len(recs))
	return recs
}

type categoryReductionSpec struct {
	recID       string
	category    string
	ratioParam  string
	targetRatio float64
	priority    int
	title       string
	bodyFmt     string
	actions     []string
}

func (b *Builder) categoryReduction(t *domain.RuleTrigger, snap *domain.NormalizedSnapshot, income float64, spec categoryReductionSpec) domain.Recommendation {
	spend := snap.CategorySpend[spec.category]
	ratio := paramFloat(t.Params, spec.ratioParam)
	if ratio == 0 && income > 0 {
		ratio = spend / income
	}
	target := smartCap(spend, income, spec.targetRatio)
	savings := spend - target

	actions := make([]string, 0, len(spec.actions)+1)
	actions = append(actions, spec.actions...)
	actions = append(actions, fmt.Sprintf("Set %s budget cap at %s", spec.category, b.currency(target)))

	return domain.Recommendation{
		ID:    spec.recID,
		Title: spec.title,
		Body: fmt.Sprintf(spec.bodyFmt,
			b.currency(spend), ratio*100, pct(spec.targetRatio), b.currency(target), b.currency(savings)),
		Actions:     actions,
		Amounts:     map[string]any{"current_spend": spend, "target_spend": target, "monthly_savings": savings},
		LinkedRisks: []domain.Dimension{domain.DimCategoryOutlier},
		Priority:    spec.priority,
		DataRefs:    []string{"/category_spend/" + spec.category},
	}
}

// BuildActionPlan converts recommendations into a trackable 30-day plan.
func BuildActionPlan(recs []domain.Recommendation) *domain.ActionPlan {
	plan := &domain.ActionPlan{
		Next30Days: make([]domain.ActionItem, 0, len(recs)),
		Next90Days: []domain.ActionItem{},
		KPIs:       []string{},
	}
	for _, r := range recs {
		plan.Next30Days = append(plan.Next30Days, domain.ActionItem{
			ActionID: r.ID,
			Title:    r.Title,
			KPI:      "complete_action",
			Target:   1,
			Owner:    "user",
		})
	}
	return plan
}

func (b *Builder) currency(amount float64) string {
	return fmt.Sprintf("%s%d", b.thresholds.Currency, int(math.Round(amount)))
}

func pct(ratio float64) int {
	return int(math.Round(ratio * 100))
}

func paramFloat(params map[string]any, key string) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func paramString(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}

