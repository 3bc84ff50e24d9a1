// Package render turns a session's export mapping into shell-consumable
// output. All functions are pure; callers decide where the bytes go.
package render

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Env renders the mapping as KEY=value lines, one per entry, keys
// upper-cased and sorted. Values are written verbatim.
func Env(m map[string]interface{}) string {
	var b strings.Builder
	for _, k := range sortedKeys(m) {
		b.WriteString(strings.ToUpper(k))
		b.WriteByte('=')
		b.WriteString(formatValue(m[k]))
		b.WriteByte('\n')
	}
	return b.String()
}

// Export renders the mapping as `export KEY='value'` lines suitable for
// eval in a POSIX shell. Values are single-quoted with embedded quotes
// escaped.
func Export(m map[string]interface{}) string {
	var b strings.Builder
	for _, k := range sortedKeys(m) {
		b.WriteString("export ")
		b.WriteString(strings.ToUpper(k))
		b.WriteByte('=')
		b.WriteString(shellQuote(formatValue(m[k])))
		b.WriteByte('\n')
	}
	return b.String()
}

// JSON renders the mapping as an indented JSON object.
func JSON(m map[string]interface{}) ([]byte, error) {
	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render JSON: %w", err)
	}
	return append(out, '\n'), nil
}

// ParseEnv parses KEY=value lines produced by Env back into a map.
// Blank lines are skipped; keys are preserved as written.
func ParseEnv(s string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(s, "\n") {
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found || key == "" {
			continue
		}
		out[key] = value
	}
	return out
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// shellQuote wraps s in single quotes, escaping embedded single quotes
// with the '\'' idiom.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
