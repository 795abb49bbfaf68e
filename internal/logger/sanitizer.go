package logger

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultSensitiveFields are the columns masked when no custom list is given.
// Guest contact details are included because reservations carry them.
var DefaultSensitiveFields = []string{
	"password", "passwd", "token", "api_key", "secret", "authorization",
	"email", "guest_email", "phone", "guest_phone",
	"card_number", "credit_card", "cvv", "iban",
}

const maskValue = "***REDACTED***"

// Sanitizer masks query parameters bound to sensitive columns before they are logged.
type Sanitizer struct {
	fields  map[string]struct{}
	pattern *regexp.Regexp
}

// NewSanitizer creates a sanitizer for the given column names. A nil or
// empty list selects DefaultSensitiveFields.
func NewSanitizer(sensitiveFields []string) *Sanitizer {
	if len(sensitiveFields) == 0 {
		sensitiveFields = DefaultSensitiveFields
	}

	fields := make(map[string]struct{}, len(sensitiveFields))
	quoted := make([]string, 0, len(sensitiveFields))
	for _, f := range sensitiveFields {
		f = strings.ToLower(f)
		fields[f] = struct{}{}
		quoted = append(quoted, regexp.QuoteMeta(f))
	}

	return &Sanitizer{
		fields:  fields,
		pattern: regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`),
	}
}

// MaskParams returns a copy of params with sensitive values replaced.
// Each placeholder is attributed to the column it is compared with or
// inserted into; placeholders that cannot be attributed are masked as soon
// as the statement mentions a sensitive column. params is never modified.
func (s *Sanitizer) MaskParams(sql string, params []any) []any {
	if len(params) == 0 || !s.pattern.MatchString(sql) {
		return params
	}

	cols := placeholderColumns(sql)
	masked := make([]any, len(params))
	for i, p := range params {
		if i < len(cols) && cols[i] != "" && !s.isSensitive(cols[i]) {
			masked[i] = p
			continue
		}
		masked[i] = maskValue
	}
	return masked
}

func (s *Sanitizer) isSensitive(col string) bool {
	_, ok := s.fields[strings.ToLower(col)]
	return ok
}

// FormatParams converts parameters to a string for logging.
// Sensitive values should be masked using MaskParams first.
func (s *Sanitizer) FormatParams(params []any) string {
	if len(params) == 0 {
		return "[]"
	}

	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = formatValue(p)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	str := fmt.Sprintf("%v", v)
	const maxLen = 100
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

var (
	insertColumns = regexp.MustCompile("(?is)^\\s*INSERT\\s+INTO\\s+\\S+\\s*\\(([^)]*)\\)")
	comparedCol   = regexp.MustCompile("(?i)([A-Za-z_][A-Za-z0-9_]*)[`\"]?\\s*(?:=|!=|<>|<=|>=|<|>|NOT\\s+LIKE|LIKE|IS\\s+NOT|IS|NOT\\s+IN\\s*\\(|IN\\s*\\()\\s*$")
	listContinues = regexp.MustCompile(`,\s*$`)
)

// placeholderColumns attributes each "?" in sql to a column name, or "" when unknown.
func placeholderColumns(sql string) []string {
	if m := insertColumns.FindStringSubmatch(sql); m != nil {
		var cols []string
		for _, c := range strings.Split(m[1], ",") {
			cols = append(cols, strings.Trim(strings.TrimSpace(c), "`\""))
		}
		n := strings.Count(sql, "?")
		out := make([]string, n)
		for i := range out {
			out[i] = cols[i%len(cols)]
		}
		return out
	}

	var out []string
	prev := ""
	last := 0
	for i := 0; i < len(sql); i++ {
		if sql[i] != '?' {
			continue
		}
		prefix := sql[last:i]
		col := ""
		switch {
		case comparedCol.MatchString(sql[:i]):
			col = comparedCol.FindStringSubmatch(sql[:i])[1]
		case prev != "" && listContinues.MatchString(prefix):
			// next element of an IN list
			col = prev
		}
		out = append(out, col)
		prev = col
		last = i + 1
	}
	return out
}
