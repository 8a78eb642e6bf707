package domain

// Dimension is a risk grouping for triggered rules. The set is fixed;
// aggregation iterates Dimensions() so output order is deterministic.
type Dimension string

const (
	DimDeficit         Dimension = "deficit"
	DimOverspend       Dimension = "overspend"
	DimSavings         Dimension = "savings"
	DimVolatility      Dimension = "volatility"
	DimStability       Dimension = "stability"
	DimDiscretionary   Dimension = "discretionary"
	DimCategoryOutlier Dimension = "category_outlier"
)

// Dimensions returns all risk dimensions in canonical output order.
func Dimensions() []Dimension {
	return []Dimension{
		DimDeficit,
		DimOverspend,
		DimSavings,
		DimVolatility,
		DimStability,
		DimDiscretionary,
		DimCategoryOutlier,
	}
}

// RiskItem is the aggregated score for one dimension.
type RiskItem struct {
	Dimension       Dimension     `json:"dimension"`
	Severity        Severity      `json:"severity"`
	WeightedScore   float64       `json:"weightedScore"`
	MaxScore        float64       `json:"maxScore"`
	NormalizedScore float64       `json:"normalizedScore"`
	Summary         string        `json:"summary"`
	Reasons         []string      `json:"reasons,omitempty"`
	DataRefs        []string      `json:"dataRefs,omitempty"`
	Contributors    []Contributor `json:"contributors"`
}

// Contributor records one triggered rule's share of a dimension score.
type Contributor struct {
	RuleID   string   `json:"ruleId"`
	Severity Severity `json:"severity"`
	Weight   float64  `json:"weight"`
	Score    float64  `json:"score"`
}
