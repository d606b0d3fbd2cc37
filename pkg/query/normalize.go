package query

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	operatorPattern   = regexp.MustCompile(`(<=|>=|<>|!=|=|<|>)`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	openParenPattern  = regexp.MustCompile(`\s+\(`)

	tableAnchors = map[Intent]*regexp.Regexp{
		IntentSelect: regexp.MustCompile(`\bfrom ([a-z_][a-z0-9_]*\.)?([a-z_][a-z0-9_]*)`),
		IntentDelete: regexp.MustCompile(`\bfrom ([a-z_][a-z0-9_]*\.)?([a-z_][a-z0-9_]*)`),
		IntentInsert: regexp.MustCompile(`\binto ([a-z_][a-z0-9_]*\.)?([a-z_][a-z0-9_]*)`),
		IntentUpdate: regexp.MustCompile(`\bupdate ([a-z_][a-z0-9_]*\.)?([a-z_][a-z0-9_]*)`),
	}
)

// Normalize returns text in the canonical form anchors are written against:
// lower-case, identifier quotes dropped, `?` placeholders numbered as `$n`,
// single spaces around comparison operators and no space before "(".
func Normalize(text string) string {
	s := strings.ToLower(text)
	s = strings.ReplaceAll(s, `"`, "")
	s = numberPlaceholders(s)
	s = operatorPattern.ReplaceAllString(s, " $1 ")
	s = whitespacePattern.ReplaceAllString(s, " ")
	s = openParenPattern.ReplaceAllString(s, "(")
	return strings.TrimSpace(s)
}

// numberPlaceholders rewrites each `?` outside a string literal as $1, $2 and
// so on, in order of appearance.
func numberPlaceholders(s string) string {
	if !strings.Contains(s, "?") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
		case c == '?' && !inQuote:
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// DetectTable returns the target table of a normalized statement: the first
// `from <t>` for selects and deletes, `into <t>` for inserts and `update <t>`
// for updates. A schema qualifier is dropped. Returns "" when no anchor is
// present.
func DetectTable(intent Intent, normalized string) string {
	re, ok := tableAnchors[intent]
	if !ok {
		return ""
	}
	m := re.FindStringSubmatch(normalized)
	if m == nil {
		return ""
	}
	return m[2]
}

// containsAnchor reports whether anchor occurs in normalized text on word
// boundaries, so "id = $" does not match inside "role_id = $1" and
// "from users" does not match "from users_archive".
func containsAnchor(normalized, anchor string) bool {
	if anchor == "" {
		return true
	}
	for offset := 0; ; {
		idx := strings.Index(normalized[offset:], anchor)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(anchor)
		if boundaryBefore(normalized, start, anchor) && boundaryAfter(normalized, end, anchor) {
			return true
		}
		offset = start + 1
	}
}

func boundaryBefore(s string, start int, anchor string) bool {
	if start == 0 || !isWordByte(anchor[0]) {
		return true
	}
	return !isWordByte(s[start-1])
}

func boundaryAfter(s string, end int, anchor string) bool {
	if end == len(s) || !isWordByte(anchor[len(anchor)-1]) {
		return true
	}
	return !isWordByte(s[end])
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
