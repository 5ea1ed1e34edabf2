package generation

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Parameters arrive from JSON (numbers are float64) or from Go callers (ints).
// The accessors below accept either and fall back to def on a missing or
// mistyped value.

// String returns params[key] when it is a non-empty string
func String(params map[string]any, key, def string) string {
	if v, ok := params[key].(string); ok && v != "" {
		return v
	}
	return def
}

// FirstString returns the first key that holds a non-empty string
func FirstString(params map[string]any, def string, keys ...string) string {
	for _, key := range keys {
		if v, ok := params[key].(string); ok && v != "" {
			return v
		}
	}
	return def
}

// Float returns params[key] as a float64
func Float(params map[string]any, key string, def float64) float64 {
	if v, ok := number(params[key]); ok {
		return v
	}
	return def
}

// Int returns params[key] truncated to an int
func Int(params map[string]any, key string, def int) int {
	if v, ok := number(params[key]); ok {
		return int(v)
	}
	return def
}

// FirstInt returns the first key that holds a number
func FirstInt(params map[string]any, def int, keys ...string) int {
	for _, key := range keys {
		if v, ok := number(params[key]); ok {
			return int(v)
		}
	}
	return def
}

// Bool returns params[key] when it is a bool
func Bool(params map[string]any, key string, def bool) bool {
	if v, ok := params[key].(bool); ok {
		return v
	}
	return def
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
