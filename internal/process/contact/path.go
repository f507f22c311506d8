package contact

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Lookup resolves a dotted path such as "meta.sender.id" or "messages.0.account_id"
// and renders the leaf as a string. Objects, arrays and nulls are not values.
func Lookup(payload map[string]any, path string) (string, bool) {
	var cur any = payload

	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return "", false
			}

			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return "", false
			}

			cur = node[idx]
		default:
			return "", false
		}
	}

	return scalar(cur)
}

// FirstNonEmpty returns the first path that resolves to a non-blank value.
func FirstNonEmpty(payload map[string]any, paths ...string) string {
	for _, p := range paths {
		if v, ok := Lookup(payload, p); ok && v != "" {
			return v
		}
	}

	return ""
}

// Object returns the nested object at path, or nil.
func Object(payload map[string]any, path string) map[string]any {
	var cur any = payload

	for _, seg := range strings.Split(path, ".") {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil
		}

		cur = node[seg]
	}

	obj, _ := cur.(map[string]any)

	return obj
}

func scalar(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), true
	case json.Number:
		return val.String(), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return "", false
	}
}
