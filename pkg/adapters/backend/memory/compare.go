package memory

import (
	"reflect"
	"strings"
	"time"

	"github.com/ekaya-inc/querybridge/pkg/adapters/backend"
)

func matches(rec backend.Record, filters []backend.Filter) bool {
	for _, f := range filters {
		val, present := rec[f.Column]
		switch f.Op {
		case backend.OpEq:
			if !present || !equal(val, f.Value) {
				return false
			}
		case backend.OpGt:
			c, ok := compare(val, f.Value)
			if !ok || c <= 0 {
				return false
			}
		case backend.OpLt:
			c, ok := compare(val, f.Value)
			if !ok || c >= 0 {
				return false
			}
		case backend.OpIsNull:
			if present && val != nil {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func equal(a, b any) bool {
	if c, ok := compare(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

// less orders nil values last.
func less(a, b any) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	c, ok := compare(a, b)
	return ok && c < 0
}

// compare returns -1, 0 or 1 when a and b are of comparable kinds.
func compare(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return at.Compare(bt), true
	}
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(as, bs), true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	default:
		return 0, true
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
