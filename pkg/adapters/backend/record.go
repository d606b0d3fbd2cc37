package backend

// Project returns a copy of rec restricted to columns. Columns absent from rec
// are returned as nil so callers always see the requested keys.
func Project(rec Record, columns []string) Record {
	if rec == nil {
		return nil
	}
	if len(columns) == 0 {
		return rec.Clone()
	}
	out := make(Record, len(columns))
	for _, col := range columns {
		out[col] = rec[col]
	}
	return out
}

// Clone returns a shallow copy of the record, copying nested records one level
// deep so embedded relations are not shared.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		if nested, ok := v.(Record); ok {
			out[k] = nested.Clone()
			continue
		}
		out[k] = v
	}
	return out
}

// EmbedAlias returns the key the embedded relation is stored under.
func (e Embed) EmbedAlias() string {
	if e.As != "" {
		return e.As
	}
	return e.Table
}
