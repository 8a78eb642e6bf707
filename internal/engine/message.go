package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// formatMessage substitutes {name} and {name_pct} placeholders in a message
// template. Extracted values shadow params; placeholders with no matching
// value are left verbatim. Keys are applied in sorted order so formatting
// is deterministic.
func formatMessage(template string, params, extracted map[string]any) string {
	values := make(map[string]any, len(params)+len(extracted))
	for k, v := range params {
		values[k] = v
	}
	for k, v := range extracted {
		values[k] = v
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	message := template
	for _, key := range keys {
		value := values[key]

		placeholder := "{" + key + "}"
		if strings.Contains(message, placeholder) {
			message = strings.ReplaceAll(message, placeholder, valueString(value))
		}

		pctPlaceholder := "{" + key + "_pct}"
		if strings.Contains(message, pctPlaceholder) {
			if f, ok := toFloat(value); ok {
				message = strings.ReplaceAll(message, pctPlaceholder, strconv.Itoa(int(f*100)))
			}
		}
	}

	return message
}

func valueString(v any) string {
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
		return fmt.Sprint(v)
	}
}
