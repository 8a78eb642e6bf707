package domain

import (
	"time"
)

// Evaluation represents the complete evaluation result for a snapshot.
type Evaluation struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	UserID    string    `json:"userId"`
	Month     string    `json:"month"`
	Timestamp time.Time `json:"timestamp"`

	// Risks holds one entry per dimension that had triggered rules,
	// in fixed dimension order.
	Risks []RiskItem `json:"risks"`

	// Triggers holds every triggered rule outcome. Non-triggered rules
	// are counted in Stats but not listed here.
	Triggers []RuleTrigger `json:"ruleTriggers"`

	Recommendations []Recommendation `json:"recommendations,omitempty"`
	ActionPlan      *ActionPlan      `json:"actionPlan,omitempty"`

	Stats    EvaluationStats    `json:"stats"`
	Metadata EvaluationMetadata `json:"metadata"`
}

// EvaluationStats summarizes one engine pass over the catalog.
type EvaluationStats struct {
	TotalRules       int     `json:"total_rules"`
	RulesTriggered   int     `json:"rules_triggered"`
	RulesFailed      int     `json:"rules_failed"`
	EvaluationTimeMs float64 `json:"evaluation_time_ms"`
}

// EvaluationMetadata contains processing information.
type EvaluationMetadata struct {
	TraceID        string `json:"traceId"`
	NormalizeMs    int64  `json:"normalizeMs"`
	RulesMs        int64  `json:"rulesMs"`
	RiskMs         int64  `json:"riskMs"`
	TotalMs        int64  `json:"totalMs"`
	CatalogVersion string `json:"catalogVersion"`
	EngineVersion  string `json:"engineVersion"`
}

// ActionPlan is the trackable plan derived from the recommendations.
type ActionPlan struct {
	Next30Days []ActionItem `json:"next_30_days"`
	Next90Days []ActionItem `json:"next_90_days"`
	KPIs       []string     `json:"kpis"`
}

// ActionItem is one trackable step in an action plan.
type ActionItem struct {
	ActionID string  `json:"action_id"`
	Title    string  `json:"title"`
	KPI      string  `json:"kpi"`
	Target   float64 `json:"target"`
	Owner    string  `json:"owner"`
}

// HighestSeverity returns the worst severity across all risk dimensions,
// or none when nothing triggered.
func (e *Evaluation) HighestSeverity() Severity {
	out := SeverityNone
	for _, r := range e.Risks {
		out = MaxSeverity(out, r.Severity)
	}
	return out
}
