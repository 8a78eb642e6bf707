// Package risk aggregates triggered rules into per-dimension scores.
package risk

import (
	"log/slog"
	"math"
	"strings"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/registry"
)

// BuildRisks groups triggered rules by their catalog bucket and computes a
// weighted score per dimension:
//
//	weighted = Σ(weight × severity multiplier)
//	max      = Σ(weight × 3)
//	normalized = 100 × weighted / max
//
// Dimensions with no triggered rules are omitted. Output order follows the
// fixed dimension enumeration, so the result is deterministic for a fixed
// trigger list.
func BuildRisks(cat *registry.Catalog, triggers []domain.RuleTrigger) []domain.RiskItem {
	type bucket struct {
		severity     domain.Severity
		reasons      []string
		refs         []string
		contributors []domain.Contributor
	}

	dims := make(map[domain.Dimension]*bucket)

	for _, trig := range triggers {
		if !trig.Triggered {
			continue
		}

		rule, ok := cat.ByID(trig.RuleID)
		if !ok {
			slog.Debug("trigger references unknown rule", "ruleId", trig.RuleID)
			continue
		}
		dim := domain.Dimension(rule.Bucket)
		if !knownDimension(dim) {
			slog.Debug("rule bucket is not a risk dimension",
				"ruleId", trig.RuleID, "bucket", rule.Bucket)
			continue
		}

		b := dims[dim]
		if b == nil {
			b = &bucket{severity: domain.SeverityNone}
			dims[dim] = b
		}

		sev := trig.Severity
		if sev == "" {
			sev = domain.SeverityLow
		}
		b.severity = domain.MaxSeverity(b.severity, sev)
		if trig.Reason != "" {
			b.reasons = append(b.reasons, trig.Reason)
		}
		b.refs = appendUniqueRefs(b.refs, trig.DataRefs)
		b.contributors = append(b.contributors, domain.Contributor{
			RuleID:   trig.RuleID,
			Severity: sev,
			Weight:   trig.Weight,
			Score:    trig.Weight * sev.Multiplier(),
		})
	}

	var risks []domain.RiskItem
	for _, dim := range domain.Dimensions() {
		b := dims[dim]
		if b == nil {
			continue
		}

		var weighted, maxPossible float64
		for _, c := range b.contributors {
			weighted += c.Score
			maxPossible += c.Weight * domain.SeverityHigh.Multiplier()
		}

		normalized := 0.0
		if maxPossible > 0 {
			normalized = weighted / maxPossible * 100
		}

		slog.Info("risk dimension scored",
			"dimension", dim,
			"weightedScore", round2(weighted),
			"maxScore", round2(maxPossible),
			"normalizedScore", round1(normalized),
			"severity", b.severity)

		risks = append(risks, domain.RiskItem{
			Dimension:       dim,
			Severity:        b.severity,
			WeightedScore:   round2(weighted),
			MaxScore:        round2(maxPossible),
			NormalizedScore: round1(normalized),
			Summary:         summarize(dim, b.severity),
			Reasons:         b.reasons,
			DataRefs:        b.refs,
			Contributors:    b.contributors,
		})
	}

	return risks
}

// appendUniqueRefs keeps first-seen order; rules in one dimension often cite
// the same fields.
func appendUniqueRefs(refs, more []string) []string {
	for _, r := range more {
		seen := false
		for _, have := range refs {
			if have == r {
				seen = true
				break
			}
		}
		if !seen {
			refs = append(refs, r)
		}
	}
	return refs
}

func knownDimension(d domain.Dimension) bool {
	for _, known := range domain.Dimensions() {
		if d == known {
			return true
		}
	}
	return false
}

func summarize(dim domain.Dimension, sev domain.Severity) string {
	name := string(dim)
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	return name + " risk: " + string(sev)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
