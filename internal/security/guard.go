// Package security screens raw SQL fragments handed to the query builder
// (WhereRaw, HavingRaw, raw join clauses) before they are spliced into a
// statement. Values should always travel as bindings; the guard catches
// fragments that smuggle extra statements or classic injection probes.
package security

import (
	"fmt"
	"regexp"
	"strings"
)

// Guard validates raw SQL fragments against dangerous patterns.
type Guard struct {
	patterns []*regexp.Regexp
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithPatterns adds extra case-insensitive patterns to reject.
func WithPatterns(patterns ...string) GuardOption {
	return func(g *Guard) {
		g.patterns = append(g.patterns, compilePatterns(patterns)...)
	}
}

// NewGuard creates a guard with the default rules.
func NewGuard(opts ...GuardOption) *Guard {
	g := &Guard{patterns: compilePatterns(defaultPatterns)}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var defaultPatterns = []string{
	`;`,   // stacked statements
	`--`,  // line comment
	`/\*`, // block comment
	`#\s`, // MySQL comment
	`\bUNION\b(\s+ALL)?\s+SELECT\b`,
	`\bINFORMATION_SCHEMA\b`,
	`\b(SLEEP|PG_SLEEP|BENCHMARK)\s*\(`,
	`\bWAITFOR\s+DELAY\b`,
	`\b(XP_CMDSHELL|SP_EXECUTESQL)\b`,
	`\bOR\s+'[^']*'\s*=\s*'[^']*'`,
	`\bOR\s+1\s*=\s*1\b`,
	`\b(INTO\s+OUTFILE|LOAD_FILE)\b`,
}

// Check returns an error describing the first rule the fragment breaks.
func (g *Guard) Check(fragment string) error {
	for _, re := range g.patterns {
		if re.MatchString(fragment) {
			return fmt.Errorf("fragment %q matches %s", truncate(fragment), re.String())
		}
	}
	return nil
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

func compilePatterns(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}
