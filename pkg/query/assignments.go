package query

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ValueKind says where an assignment takes its value from.
type ValueKind int

const (
	// ValueParam binds a positional parameter.
	ValueParam ValueKind = iota
	// ValueLiteral is a constant written in the statement.
	ValueLiteral
	// ValueNull is the NULL keyword.
	ValueNull
	// ValueNow is NOW() or CURRENT_TIMESTAMP.
	ValueNow
)

// Assignment is one `column = value` entry of a SET clause.
type Assignment struct {
	Column string
	Kind   ValueKind
	// Param is the zero-based parameter index for ValueParam.
	Param   int
	Literal any
}

var (
	setClausePattern   = regexp.MustCompile(`(?is)\bset\s+(.+?)(?:\s+where\s+(.+?))?(?:\s+returning\s+.*)?\s*;?\s*$`)
	assignmentPattern  = regexp.MustCompile(`(?s)^\s*"?([A-Za-z_][A-Za-z0-9_]*\.)?"?([A-Za-z_][A-Za-z0-9_]*)"?\s*=\s*(.+?)\s*$`)
	numberedParam      = regexp.MustCompile(`^\$([0-9]+)$`)
	whereColumnPattern = regexp.MustCompile(`(?i)^\s*"?([A-Za-z_][A-Za-z0-9_]*\.)?"?([A-Za-z_][A-Za-z0-9_]*)"?\s*=\s*(\$[0-9]+|\?)`)
	numberPattern      = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)
	singleKeyPattern   = regexp.MustCompile(`^([a-z_][a-z0-9_]*\.)?([a-z_][a-z0-9_]*) = (\$[0-9]+)$`)
)

// ParseAssignments extracts the SET clause of an UPDATE statement. Numbered
// placeholders bind by index; `?` placeholders bind in order of appearance.
// Whitespace and letter case are not significant outside string literals.
func ParseAssignments(text string) ([]Assignment, error) {
	m := setClausePattern.FindStringSubmatch(text)
	if m == nil {
		return nil, fmt.Errorf("no SET clause in statement")
	}

	parts := splitTopLevel(m[1])
	out := make([]Assignment, 0, len(parts))
	next := 0
	for _, part := range parts {
		am := assignmentPattern.FindStringSubmatch(part)
		if am == nil {
			return nil, fmt.Errorf("malformed assignment %q", strings.TrimSpace(part))
		}
		a := Assignment{Column: strings.ToLower(am[2])}
		if err := parseValue(am[3], &a, &next); err != nil {
			return nil, fmt.Errorf("column %s: %w", a.Column, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// WhereKey returns the column the WHERE clause of an UPDATE compares against
// a placeholder, or "id" when it cannot be determined.
func WhereKey(text string) string {
	m := setClausePattern.FindStringSubmatch(text)
	if m == nil || m[2] == "" {
		return "id"
	}
	wm := whereColumnPattern.FindStringSubmatch(m[2])
	if wm == nil {
		return "id"
	}
	return strings.ToLower(wm[2])
}

// updateSignature reduces a normalized UPDATE to its sorted SET entries and
// its WHERE clause. Entries read "column = $n", "column = null",
// "column = now()" or "column = <literal>"; audit columns are left out. ok is
// false unless the WHERE clause is a single `column = $n` test, which key then
// holds without any table qualifier.
func updateSignature(normalized string) (sets []string, key string, ok bool) {
	m := setClausePattern.FindStringSubmatch(normalized)
	if m == nil {
		return nil, "", false
	}
	km := singleKeyPattern.FindStringSubmatch(strings.TrimSpace(m[2]))
	if km == nil {
		return nil, "", false
	}
	assignments, err := ParseAssignments(normalized)
	if err != nil {
		return nil, "", false
	}

	sets = make([]string, 0, len(assignments))
	for _, a := range assignments {
		if auditColumns[a.Column] {
			continue
		}
		switch a.Kind {
		case ValueParam:
			sets = append(sets, fmt.Sprintf("%s = $%d", a.Column, a.Param+1))
		case ValueNull:
			sets = append(sets, a.Column+" = null")
		case ValueNow:
			sets = append(sets, a.Column+" = now()")
		default:
			sets = append(sets, fmt.Sprintf("%s = %v", a.Column, a.Literal))
		}
	}
	sort.Strings(sets)
	return sets, km[2] + " = " + km[3], true
}

func parseValue(expr string, a *Assignment, next *int) error {
	lower := strings.ToLower(strings.TrimSpace(expr))
	switch {
	case lower == "?":
		a.Kind = ValueParam
		a.Param = *next
		*next++
	case numberedParam.MatchString(lower):
		n, _ := strconv.Atoi(lower[1:])
		if n < 1 {
			return fmt.Errorf("invalid placeholder %s", expr)
		}
		a.Kind = ValueParam
		a.Param = n - 1
	case lower == "null":
		a.Kind = ValueNull
	case lower == "now()" || lower == "current_timestamp":
		a.Kind = ValueNow
	case lower == "true" || lower == "false":
		a.Kind = ValueLiteral
		a.Literal = lower == "true"
	case len(lower) >= 2 && lower[0] == '\'' && lower[len(lower)-1] == '\'':
		s := strings.TrimSpace(expr)
		a.Kind = ValueLiteral
		a.Literal = strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	case numberPattern.MatchString(lower):
		a.Kind = ValueLiteral
		if strings.Contains(lower, ".") {
			f, _ := strconv.ParseFloat(lower, 64)
			a.Literal = f
		} else {
			n, _ := strconv.ParseInt(lower, 10, 64)
			a.Literal = n
		}
	default:
		return fmt.Errorf("unsupported expression %q", expr)
	}
	return nil
}

// splitTopLevel splits s on commas that are outside quotes and parentheses.
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\'':
			inQuote = !inQuote
		case inQuote:
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case c == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}
