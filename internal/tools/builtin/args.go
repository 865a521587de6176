package builtin

import (
	"fmt"
	"strings"
)

// Argument extraction helpers. Schema validation runs before handlers, so
// these only bridge the JSON decoding gap (float64 for numbers) and apply
// defaults.

func stringArg(args map[string]any, key string) string {
	val, _ := args[key].(string)
	return strings.TrimSpace(val)
}

func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return fallback
}

func int64Arg(args map[string]any, key string) (int64, error) {
	switch v := args[key].(type) {
	case float64:
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	}
	return 0, fmt.Errorf("argument %q must be a number", key)
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
