package domain

// NormalizedSnapshot is the normalized financial-metrics record a single
// evaluation runs against. It is built once per request and never mutated.
type NormalizedSnapshot struct {
	// Core identifiers
	UserID string `json:"userId"`
	Month  string `json:"month"`

	// Flat monthly figures
	AvgMonthlyIncome    float64 `json:"avgMonthlyIncome"`
	AvgMonthlyExpense   float64 `json:"avgMonthlyExpense"`
	CurrentMonthIncome  float64 `json:"currentMonthIncome"`
	CurrentMonthExpense float64 `json:"currentMonthExpense"`

	SavingsRate      *float64 `json:"savingsRate,omitempty"`
	IncomeVolatility *float64 `json:"incomeVolatility,omitempty"`
	RiskLevel        string   `json:"riskLevel,omitempty"`

	// Per-category spend for the current month
	CategorySpend map[string]float64 `json:"categorySpend,omitempty"`

	BehaviorMetrics *BehaviorMetrics `json:"behaviorMetrics,omitempty"`
	Forecast        *Forecast        `json:"forecast,omitempty"`
	Insights        *Insights        `json:"insights,omitempty"`

	Persona         string   `json:"persona,omitempty"`
	ConfidenceScore *float64 `json:"confidenceScore,omitempty"`
	LastUpdated     string   `json:"lastUpdated,omitempty"`

	// Derived during normalization
	NetCashflow     float64  `json:"netCashflow"`
	ExpenseDeltaPct *float64 `json:"expenseDeltaPct,omitempty"`

	// Extended optional fields. Absent values default to zero in the
	// evaluation context and must never crash evaluation.
	EmergencyFundBalance    *float64  `json:"emergencyFundBalance,omitempty"`
	RentOrHousing           *float64  `json:"rentOrHousing,omitempty"`
	WeeklyExpenses          []float64 `json:"weeklyExpenses,omitempty"`
	PreviousMonthIncome     *float64  `json:"previousMonthIncome,omitempty"`
	PreviousMonthExpense    *float64  `json:"previousMonthExpense,omitempty"`
	LargeTransactions       []float64 `json:"largeTransactions,omitempty"`
	CashWithdrawals         *float64  `json:"cashWithdrawals,omitempty"`
	LoanEMITotal            *float64  `json:"loanEmiTotal,omitempty"`
	ZeroIncomeDays          *int      `json:"zeroIncomeDays,omitempty"`
	ConsecutiveDeficitCount *int      `json:"consecutiveDeficitCount,omitempty"`
	PreviousSavingsBalance  *float64  `json:"previousSavingsBalance,omitempty"`
	CurrentSavingsBalance   *float64  `json:"currentSavingsBalance,omitempty"`
}

// BehaviorMetrics holds spending-behavior indicators derived upstream.
type BehaviorMetrics struct {
	AvgDailyExpense    *float64 `json:"avgDailyExpense,omitempty"`
	HighSpendDays      *int     `json:"highSpendDays,omitempty"`
	CashflowStability  *float64 `json:"cashflowStability,omitempty"`
	DiscretionaryRatio *float64 `json:"discretionaryRatio,omitempty"`
}

// Forecast holds next-month predictions with a confidence score.
type Forecast struct {
	PredictedIncomeNextMonth  *float64 `json:"predictedIncomeNextMonth,omitempty"`
	PredictedExpenseNextMonth *float64 `json:"predictedExpenseNextMonth,omitempty"`
	Savings                   *float64 `json:"savings,omitempty"`
	Confidence                *float64 `json:"confidence,omitempty"`
}

// Insights holds free-text signals extracted upstream, e.g. a category
// drift sentence like "Entertainment up by 45%".
type Insights struct {
	TopSpendCategory string `json:"topSpendCategory,omitempty"`
	CategoryDrift    string `json:"categoryDrift,omitempty"`
}
