package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Tag is one configuration block, such as a single entry under tags.hidelist.
// Values keep whatever type the decoder produced; the getters normalize them.
type Tag map[string]any

// GetString returns the value of key as a string, or "" when it is unset
func (t Tag) GetString(key string) string {
	v, ok := t[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// GetInt returns the value of key as an int. Missing or malformed values
// yield def; values below min are clamped to min.
func (t Tag) GetInt(key string, def, min int) int {
	n, ok := t.int(key)
	if !ok {
		return def
	}
	if n < min {
		return min
	}
	return n
}

func (t Tag) int(key string) (int, bool) {
	switch v := t[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case uint64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	}
	return 0, false
}

// GetBool returns the value of key as a bool, or def when it is unset
func (t Tag) GetBool(key string, def bool) bool {
	switch v := t[key].(type) {
	case bool:
		return v
	case string:
		return parseBool(v)
	}
	return def
}

// GetStrings returns a list value, accepting either a sequence or a
// comma separated string
func (t Tag) GetStrings(key string) []string {
	switch v := t[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case []string:
		return v
	case string:
		var out []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
