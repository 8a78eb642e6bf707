package engine

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/expr"
)

// computeSeverity derives a triggered rule's severity from its spec.
// Resolution failures degrade to low; only an unknown spec type is an error.
func computeSeverity(spec *domain.SeveritySpec, ctx, extracted map[string]any) (domain.Severity, error) {
	switch spec.Type {
	case domain.SeverityFixed:
		if spec.Value == "" {
			return domain.SeverityMedium, nil
		}
		return spec.Value, nil

	case domain.SeverityBanded:
		metric, ok := resolveMetric(spec.Metric, ctx, extracted)
		if !ok {
			slog.Warn("banded severity metric unresolved, defaulting to low",
				"metric", spec.Metric)
			return domain.SeverityLow, nil
		}
		// Bands are ordered highest threshold first; nil always matches.
		for _, band := range spec.Bands {
			if band.Threshold == nil || metric >= *band.Threshold {
				return band.Severity, nil
			}
		}
		if len(spec.Bands) > 0 {
			return spec.Bands[len(spec.Bands)-1].Severity, nil
		}
		return domain.SeverityLow, nil

	case domain.SeverityThreshold:
		metric, ok := resolveMetric(spec.Metric, ctx, extracted)
		if !ok {
			slog.Warn("threshold severity metric unresolved, defaulting to low",
				"metric", spec.Metric)
			return domain.SeverityLow, nil
		}
		for _, rule := range spec.Rules {
			if evalThresholdCondition(metric, rule.Condition) {
				return rule.Severity, nil
			}
		}
		return domain.SeverityLow, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownSeverityType, spec.Type)
}

func resolveMetric(metric string, ctx, extracted map[string]any) (float64, bool) {
	v, ok := expr.Resolve(metric, ctx, extracted)
	if !ok || v == nil {
		return 0, false
	}
	return extractedFloat(v)
}

// evalThresholdCondition evaluates a condition string like ">= 1.0" against
// a numeric value. Unknown formats never match.
func evalThresholdCondition(value float64, condition string) bool {
	condition = strings.TrimSpace(condition)

	ops := []struct {
		prefix string
		test   func(v, t float64) bool
	}{
		{">=", func(v, t float64) bool { return v >= t }},
		{"<=", func(v, t float64) bool { return v <= t }},
		{"==", func(v, t float64) bool { return v == t }},
		{"!=", func(v, t float64) bool { return v != t }},
		{">", func(v, t float64) bool { return v > t }},
		{"<", func(v, t float64) bool { return v < t }},
	}

	for _, op := range ops {
		if strings.HasPrefix(condition, op.prefix) {
			t, err := strconv.ParseFloat(strings.TrimSpace(condition[len(op.prefix):]), 64)
			if err != nil {
				slog.Error("bad threshold condition", "condition", condition, "error", err)
				return false
			}
			return op.test(value, t)
		}
	}

	slog.Warn("unknown threshold condition format", "condition", condition)
	return false
}
