package query

import "strings"

// Intent is the statement kind of a query.
type Intent int

const (
	IntentUnknown Intent = iota
	IntentSelect
	IntentInsert
	IntentUpdate
	IntentDelete
)

func (i Intent) String() string {
	switch i {
	case IntentSelect:
		return "select"
	case IntentInsert:
		return "insert"
	case IntentUpdate:
		return "update"
	case IntentDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// intentPriority is the order keywords are tested in when the leading token
// does not decide the intent.
var intentPriority = []Intent{IntentSelect, IntentInsert, IntentUpdate, IntentDelete}

// DetectIntent returns the intent of text. The leading keyword decides, so an
// UPDATE whose columns mention "select" stays an update. When the statement
// does not start with a keyword (a CTE, a parenthesised select) the first
// keyword present as a whole word in priority order wins.
func DetectIntent(text string) Intent {
	norm := Normalize(text)
	lead := strings.TrimLeft(norm, "( ")
	if end := strings.IndexAny(lead, " (;"); end >= 0 {
		lead = lead[:end]
	}
	for _, intent := range intentPriority {
		if lead == intent.String() {
			return intent
		}
	}
	for _, intent := range intentPriority {
		if containsAnchor(norm, intent.String()) {
			return intent
		}
	}
	return IntentUnknown
}
