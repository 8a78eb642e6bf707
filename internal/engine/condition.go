package engine

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/expr"
)

// evalCondition evaluates a condition tree depth-first against the context.
// Returns whether the condition triggered and any values extracted by
// regex_match nodes. Unresolved operands degrade to not-triggered; only a
// structurally bad condition (unknown type, invalid regex) is an error.
func evalCondition(c *domain.Condition, ctx map[string]any) (bool, map[string]any, error) {
	switch c.Type {
	case domain.CondComparison:
		left, lok := expr.Resolve(c.Left, ctx, nil)
		right, rok := expr.Resolve(c.Right, ctx, nil)
		if !lok || !rok || left == nil || right == nil {
			return false, nil, nil
		}
		return compare(left, c.Operator, right), nil, nil

	case domain.CondAnd:
		extracted := map[string]any{}
		for i := range c.Conditions {
			ok, sub, err := evalCondition(&c.Conditions[i], ctx)
			if err != nil {
				return false, nil, err
			}
			for k, v := range sub {
				extracted[k] = v
			}
			if !ok {
				return false, nil, nil
			}
		}
		return true, extracted, nil

	case domain.CondOr:
		for i := range c.Conditions {
			ok, sub, err := evalCondition(&c.Conditions[i], ctx)
			if err != nil {
				return false, nil, err
			}
			if ok {
				return true, sub, nil
			}
		}
		return false, nil, nil

	case domain.CondIsNull:
		v, ok := expr.Resolve(c.Field, ctx, nil)
		return !ok || v == nil, nil, nil

	case domain.CondFieldExists:
		v, ok := expr.Resolve(c.Field, ctx, nil)
		return ok && v != nil, nil, nil

	case domain.CondRegexMatch:
		return evalRegexMatch(c, ctx)
	}

	return false, nil, fmt.Errorf("%w: %q", ErrUnknownConditionType, c.Type)
}

func evalRegexMatch(c *domain.Condition, ctx map[string]any) (bool, map[string]any, error) {
	text, ok := expr.Resolve(c.Field, ctx, nil)
	if !ok || text == nil {
		return false, nil, nil
	}
	s := fmt.Sprint(text)
	if s == "" {
		return false, nil, nil
	}

	re, err := regexp.Compile("(?i)" + c.Pattern)
	if err != nil {
		return false, nil, fmt.Errorf("invalid pattern %q: %w", c.Pattern, err)
	}

	match := re.FindStringSubmatch(s)
	if match == nil {
		return false, nil, nil
	}

	extracted := map[string]any{}
	for i, name := range c.Extract {
		if i+1 < len(match) {
			extracted[name] = strings.TrimSpace(match[i+1])
		}
	}

	if thr := c.Threshold; thr != nil {
		raw, ok := extracted[thr.Field]
		if !ok {
			return false, extracted, nil
		}
		f, ok := extractedFloat(raw)
		if !ok {
			return false, extracted, nil
		}
		if !compare(f, thr.Operator, thr.Value) {
			return false, extracted, nil
		}
	}

	return true, extracted, nil
}

// compare applies a comparison operator with numeric coercion. Operands of
// incompatible types never trigger.
func compare(left any, op string, right any) bool {
	lf, lNum := toFloat(left)
	rf, rNum := toFloat(right)

	if lNum && rNum {
		switch op {
		case ">":
			return lf > rf
		case ">=":
			return lf >= rf
		case "<":
			return lf < rf
		case "<=":
			return lf <= rf
		case "==":
			return lf == rf
		case "!=":
			return lf != rf
		}
		slog.Warn("unknown comparison operator", "operator", op)
		return false
	}

	ls, lStr := left.(string)
	rs, rStr := right.(string)
	if lStr && rStr {
		switch op {
		case ">":
			return ls > rs
		case ">=":
			return ls >= rs
		case "<":
			return ls < rs
		case "<=":
			return ls <= rs
		case "==":
			return ls == rs
		case "!=":
			return ls != rs
		}
		slog.Warn("unknown comparison operator", "operator", op)
		return false
	}

	if op == "==" {
		return left == right
	}
	if op == "!=" {
		return left != right
	}

	slog.Warn("comparison between incompatible types",
		"left", left, "operator", op, "right", right)
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// extractedFloat coerces regex-extracted values, which arrive as strings.
func extractedFloat(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return toFloat(v)
}
