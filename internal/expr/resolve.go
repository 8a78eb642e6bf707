// Package expr resolves catalog expressions against an evaluation context.
//
// Expressions are plain strings from the rule catalog. Resolution is closed:
// field lookups, dotted paths, single bracket access, and restricted
// arithmetic over + - * / ( ). Nothing else is interpreted, so catalog
// content can never reach functions, methods, or attributes.
package expr

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

var bracketPattern = regexp.MustCompile(`(\w+)\[([^\]]+)\]`)

// Resolve evaluates a single catalog expression. Resolution order:
//
//  1. Non-string values (JSON numbers, bools) pass through as-is.
//  2. Extracted values from the current condition, float-coerced.
//  3. Exact context key.
//  4. Dotted path through nested maps (no brackets).
//  5. Single bracket access, where the key may itself be a context variable.
//  6. Restricted arithmetic over identifiers (flat or dotted), bracket
//     accesses, numbers, and + - * / ( ).
//
// The second return is false when the expression cannot be resolved.
// Failures never panic and never abort the caller.
func Resolve(e any, ctx, extracted map[string]any) (any, bool) {
	switch v := e.(type) {
	case nil:
		return nil, false
	case bool:
		return v, true
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		return resolveString(v, ctx, extracted)
	default:
		return nil, false
	}
}

func resolveString(expr string, ctx, extracted map[string]any) (any, bool) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, false
	}

	if v, ok := extracted[expr]; ok {
		if f, ok := toFloat(v); ok {
			return f, true
		}
		return v, true
	}

	if v, ok := ctx[expr]; ok {
		return v, true
	}

	hasArith := strings.ContainsAny(expr, "+-*/()")

	if strings.Contains(expr, ".") && !strings.Contains(expr, "[") && !hasArith {
		if f, err := strconv.ParseFloat(expr, 64); err == nil {
			return f, true
		}
		return resolvePath(expr, ctx)
	}

	if strings.Contains(expr, "[") && strings.Contains(expr, "]") && !hasArith {
		return resolveBracket(expr, ctx)
	}

	if hasArith {
		return resolveArithmetic(expr, ctx, extracted)
	}

	if f, err := strconv.ParseFloat(expr, 64); err == nil {
		return f, true
	}

	return nil, false
}

// resolvePath walks a dotted path through nested maps. Any missing or
// non-map intermediate fails the whole lookup.
func resolvePath(expr string, ctx map[string]any) (any, bool) {
	var cur any = ctx
	for _, part := range strings.Split(expr, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// resolveBracket handles a single base[key] access. The key is first tried
// as a context variable so catalogs can write persona_min_savings[persona].
func resolveBracket(expr string, ctx map[string]any) (any, bool) {
	open := strings.Index(expr, "[")
	closing := strings.Index(expr, "]")
	if open < 0 || closing < open {
		return nil, false
	}

	base := expr[:open]
	key := expr[open+1 : closing]

	baseValue, ok := ctx[base]
	if !ok || baseValue == nil {
		return nil, false
	}

	if kv, ok := ctx[key]; ok {
		key = stringify(kv)
	}

	m, ok := baseValue.(map[string]any)
	if !ok {
		if mf, ok := baseValue.(map[string]float64); ok {
			v, found := mf[key]
			if !found {
				return nil, false
			}
			return v, true
		}
		return nil, false
	}

	v, found := m[key]
	if !found {
		return nil, false
	}
	return v, true
}

// resolveArithmetic substitutes bracket accesses with their numeric values
// (missing entries substitute 0), then parses the remaining expression with
// the restricted grammar.
func resolveArithmetic(expr string, ctx, extracted map[string]any) (any, bool) {
	processed := bracketPattern.ReplaceAllStringFunc(expr, func(match string) string {
		sub := bracketPattern.FindStringSubmatch(match)
		base, key := sub[1], sub[2]

		baseValue, ok := ctx[base]
		if !ok || baseValue == nil {
			return "0"
		}
		if kv, ok := ctx[key]; ok {
			key = stringify(kv)
		}

		var v any
		switch m := baseValue.(type) {
		case map[string]any:
			v = m[key]
		case map[string]float64:
			v = m[key]
		default:
			return "0"
		}

		f, ok := toFloat(v)
		if !ok {
			return "0"
		}
		// 'f' formatting keeps substituted values inside the grammar the
		// parser accepts; 'g' can emit exponents it cannot read.
		return strconv.FormatFloat(f, 'f', -1, 64)
	})

	result, err := evalArithmetic(processed, func(name string) (float64, bool) {
		if v, ok := extracted[name]; ok {
			return toFloat(v)
		}
		if v, ok := ctx[name]; ok {
			return toFloat(v)
		}
		if strings.Contains(name, ".") {
			if v, ok := resolvePath(name, ctx); ok {
				return toFloat(v)
			}
		}
		return 0, false
	})
	if err != nil {
		slog.Debug("expression failed to evaluate", "expr", expr, "error", err)
		return nil, false
	}

	if result < 0 || result > 10 {
		slog.Warn("expression result outside expected ratio range [0, 10]",
			"expr", expr, "result", result)
	}

	return result, true
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

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'g', -1, 64)
	case int:
		return strconv.Itoa(s)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}
