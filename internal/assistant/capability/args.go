package capability

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Args are the decoded arguments of one capability call. Numbers arrive as
// float64 from JSON and sometimes as strings from the model.
type Args map[string]any

func (a Args) String(key string) (string, error) {
	v, ok := a.OptString(key)
	if !ok {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidArgument, key)
	}
	return v, nil
}

// OptString returns the trimmed value and whether it is present and non-empty.
func (a Args) OptString(key string) (string, bool) {
	raw, ok := a[key]
	if !ok || raw == nil {
		return "", false
	}
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		s = v.String()
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case bool:
		s = strconv.FormatBool(v)
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func (a Args) Int(key string) (int, error) {
	v, err := a.Int64(key)
	if err != nil {
		return 0, err
	}
	if v > math.MaxInt32 || v < math.MinInt32 {
		return 0, fmt.Errorf("%w: %s is out of range", ErrInvalidArgument, key)
	}
	return int(v), nil
}

// Int64 accepts whole numbers only; "5 CV" style strings keep their leading digits.
func (a Args) Int64(key string) (int64, error) {
	raw, ok := a[key]
	if !ok || raw == nil {
		return 0, fmt.Errorf("%w: %s is required", ErrInvalidArgument, key)
	}
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, fmt.Errorf("%w: %s must be a whole number, got %v", ErrInvalidArgument, key, v)
		}
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be a whole number, got %q", ErrInvalidArgument, key, v)
		}
		return n, nil
	case string:
		return parseLeadingInt(key, v)
	}
	return 0, fmt.Errorf("%w: %s has unsupported type %T", ErrInvalidArgument, key, raw)
}

func (a Args) OptInt64(key string) (int64, bool, error) {
	if _, ok := a.OptString(key); !ok {
		return 0, false, nil
	}
	v, err := a.Int64(key)
	return v, err == nil, err
}

func parseLeadingInt(key, raw string) (int64, error) {
	s := strings.Join(strings.Fields(raw), "")
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("%w: %s must be a whole number, got %q", ErrInvalidArgument, key, raw)
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a whole number, got %q", ErrInvalidArgument, key, raw)
	}
	return n, nil
}

// Object decodes a JSON object given either as a nested value or as a JSON string.
func (a Args) Object(key string) (map[string]any, error) {
	raw, ok := a[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case map[string]any:
		return v, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		var out map[string]any
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, fmt.Errorf("%w: %s is not a JSON object", ErrInvalidArgument, key)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s is not a JSON object", ErrInvalidArgument, key)
}
