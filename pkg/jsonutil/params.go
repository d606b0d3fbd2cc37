package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ParamValue decodes one JSON statement parameter. Integral numbers become
// int64 and other numbers float64, so identifiers and counts keep their exact
// value instead of passing through float64. Objects and arrays decode
// recursively with the same number handling. Empty input and null yield nil.
func ParamValue(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode param: %w", err)
	}
	return normalize(v), nil
}

// Params decodes positional parameters in order.
func Params(raws []json.RawMessage) ([]any, error) {
	out := make([]any, len(raws))
	for i, raw := range raws {
		v, err := ParamValue(raw)
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

// NamedParams decodes parameters keyed by name. A nil map stays nil.
func NamedParams(raws map[string]json.RawMessage) (map[string]any, error) {
	if raws == nil {
		return nil, nil
	}
	out := make(map[string]any, len(raws))
	for name, raw := range raws {
		v, err := ParamValue(raw)
		if err != nil {
			return nil, fmt.Errorf("param %s: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

func normalize(v any) any {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		for k, item := range val {
			val[k] = normalize(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = normalize(item)
		}
		return val
	default:
		return v
	}
}
