package tools

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Inputs reach executors already validated against the tool schema, so these
// helpers only guard against type drift from the JSON decoder.

func stringArg(input map[string]any, key string) (string, error) {
	v, ok := input[key].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

func optString(input map[string]any, key string) (string, bool) {
	v, ok := input[key].(string)
	return v, ok
}

func optBool(input map[string]any, key string) bool {
	v, _ := input[key].(bool)
	return v
}

func optInt(input map[string]any, key string, def int) int {
	switch v := input[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	}
	return def
}

func optStrings(input map[string]any, key string) []string {
	switch v := input[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
