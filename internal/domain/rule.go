package domain

// Severity is a rule outcome level. Ordering: none < low < medium < high.
type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

var severityRank = map[Severity]int{
	SeverityNone:   0,
	SeverityLow:    1,
	SeverityMedium: 2,
	SeverityHigh:   3,
}

// Valid reports whether s is one of the four known levels.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// Multiplier converts a severity to its weighted-scoring multiplier.
// Unknown severities count as low.
func (s Severity) Multiplier() float64 {
	if r, ok := severityRank[s]; ok {
		return float64(r)
	}
	return 1.0
}

// MaxSeverity returns the higher of two severities.
func MaxSeverity(a, b Severity) Severity {
	if severityRank[a] >= severityRank[b] {
		return a
	}
	return b
}

// Condition type tags. The set is closed: the evaluator matches these
// exhaustively and reports an unknown-type error otherwise.
const (
	CondComparison  = "comparison"
	CondAnd         = "logical_and"
	CondOr          = "logical_or"
	CondIsNull      = "is_null"
	CondFieldExists = "field_exists"
	CondRegexMatch  = "regex_match"
)

// Condition is one node of a rule's condition tree. Which fields are
// meaningful depends on Type.
type Condition struct {
	Type string `json:"type"`

	// comparison: Left/Right are expressions or numeric literals.
	Left     any    `json:"left,omitempty"`
	Operator string `json:"operator,omitempty"`
	Right    any    `json:"right,omitempty"`

	// logical_and / logical_or
	Conditions []Condition `json:"conditions,omitempty"`

	// is_null / field_exists / regex_match
	Field string `json:"field,omitempty"`

	// regex_match
	Pattern   string          `json:"pattern,omitempty"`
	Extract   []string        `json:"extract,omitempty"`
	Threshold *MatchThreshold `json:"threshold,omitempty"`
}

// MatchThreshold applies a numeric comparison to a value extracted by a
// regex_match condition.
type MatchThreshold struct {
	Field    string  `json:"field"`
	Operator string  `json:"operator"`
	Value    float64 `json:"value"`
}

// Severity spec type tags, matched exhaustively like condition types.
const (
	SeverityFixed     = "fixed"
	SeverityBanded    = "banded"
	SeverityThreshold = "threshold"
)

// SeveritySpec describes how a triggered rule's severity is derived.
type SeveritySpec struct {
	Type string `json:"type"`

	// fixed
	Value Severity `json:"value,omitempty"`

	// banded / threshold: expression producing the metric to grade.
	Metric string `json:"metric,omitempty"`

	// banded: ordered high-to-low threshold; a nil threshold always matches.
	Bands []SeverityBand `json:"bands,omitempty"`

	// threshold: ordered condition strings like "> 1.5"; first match wins.
	Rules []SeverityRule `json:"rules,omitempty"`
}

// SeverityBand maps a metric threshold to a severity tier.
type SeverityBand struct {
	Threshold *float64 `json:"threshold"`
	Severity  Severity `json:"severity"`
}

// SeverityRule pairs a threshold condition string with a severity.
type SeverityRule struct {
	Condition string   `json:"condition"`
	Severity  Severity `json:"severity"`
}

// RuleDefinition is one declarative rule from the catalog. Immutable once
// loaded; catalogs are replaced wholesale, never patched.
type RuleDefinition struct {
	ID      string `json:"id"`
	Bucket  string `json:"bucket"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`

	// Lower priority evaluates first.
	Priority int `json:"priority"`

	// Weight is the rule's contribution to dimension scoring.
	Weight float64 `json:"weight"`

	Condition Condition    `json:"condition"`
	Severity  SeveritySpec `json:"severity"`

	// Params maps parameter names to catalog expressions resolved on trigger.
	Params map[string]string `json:"params,omitempty"`

	// MessageTemplate supports {name} and {name_pct} placeholders.
	MessageTemplate string `json:"message_template"`

	DataRefs         []string `json:"data_refs,omitempty"`
	RecommendationID string   `json:"recommendation_id,omitempty"`
}

// RuleTrigger is the evaluated outcome of one rule against one snapshot.
// Produced once per rule per evaluation; never merged or mutated afterwards.
type RuleTrigger struct {
	RuleID    string         `json:"ruleId"`
	Triggered bool           `json:"triggered"`
	Severity  Severity       `json:"severity,omitempty"`
	Weight    float64        `json:"weight"`
	Params    map[string]any `json:"params,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	DataRefs  []string       `json:"dataRefs,omitempty"`
}
