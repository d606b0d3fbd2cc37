package query

// Reason explains why a statement was not classified.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonUnknownIntent Reason = "unknown_intent"
	ReasonUnknownTable  Reason = "unknown_table"
	ReasonUnknownShape  Reason = "unknown_shape"
)

// Classification is the outcome of Classify. Intent and Table are filled in as
// far as they could be determined, also when classification failed.
type Classification struct {
	Intent Intent
	Table  string
	Shape  Shape
	Reason Reason
}

// Classify determines intent, table and shape of a statement. It returns false
// with a Reason when the statement is not in the catalog; that is not an error.
func Classify(text string, params []any) (Classification, bool) {
	norm := Normalize(text)

	c := Classification{Intent: DetectIntent(norm)}
	if c.Intent == IntentUnknown {
		c.Reason = ReasonUnknownIntent
		return c, false
	}

	c.Table = DetectTable(c.Intent, norm)
	if !IsKnownTable(c.Table) {
		c.Reason = ReasonUnknownTable
		return c, false
	}

	for _, rule := range catalog {
		if rule.Intent != c.Intent || rule.Table != c.Table {
			continue
		}
		if rule.matches(norm, params) {
			c.Shape = rule.Shape
			return c, true
		}
	}

	for _, rule := range genericRules {
		if rule.Intent == c.Intent && rule.matches(norm, params) {
			c.Shape = rule.Shape
			return c, true
		}
	}

	c.Reason = ReasonUnknownShape
	return c, false
}
