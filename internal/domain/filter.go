package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// FilterOp is a comparison operator usable in a collection query
type FilterOp string

const (
	OpEqual          FilterOp = "=="
	OpNotEqual       FilterOp = "!="
	OpLessThan       FilterOp = "<"
	OpLessOrEqual    FilterOp = "<="
	OpGreaterThan    FilterOp = ">"
	OpGreaterOrEqual FilterOp = ">="
)

// Valid reports whether the operator is supported
func (op FilterOp) Valid() bool {
	switch op {
	case OpEqual, OpNotEqual, OpLessThan, OpLessOrEqual, OpGreaterThan, OpGreaterOrEqual:
		return true
	}
	return false
}

// Filter restricts a collection query to documents whose field satisfies the comparison
type Filter struct {
	Field string      `json:"field"`
	Op    FilterOp    `json:"op"`
	Value interface{} `json:"value"`
}

// Validate checks the filter is well formed
func (f Filter) Validate() error {
	if strings.TrimSpace(f.Field) == "" {
		return NewValidationError(map[string]string{"field": "filter field is required"})
	}
	if !f.Op.Valid() {
		return NewValidationError(map[string]string{"op": fmt.Sprintf("unsupported operator %q", f.Op)})
	}
	return nil
}

// ParseFilter parses the "field,op,value" form used in query strings.
// Numeric and boolean literals are decoded to their typed values.
func ParseFilter(raw string) (Filter, error) {
	parts := strings.SplitN(raw, ",", 3)
	if len(parts) != 3 {
		return Filter{}, NewValidationError(map[string]string{"where": fmt.Sprintf("expected field,op,value but got %q", raw)})
	}
	f := Filter{Field: parts[0], Op: FilterOp(parts[1]), Value: parseLiteral(parts[2])}
	if err := f.Validate(); err != nil {
		return Filter{}, err
	}
	return f, nil
}

func parseLiteral(s string) interface{} {
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// Matches evaluates the filter against a field bag
func (f Filter) Matches(fields map[string]interface{}) bool {
	actual, ok := fields[f.Field]
	if !ok {
		return false
	}
	cmp, comparable := compareValues(actual, f.Value)
	if !comparable {
		if f.Op == OpNotEqual {
			return true
		}
		return false
	}
	switch f.Op {
	case OpEqual:
		return cmp == 0
	case OpNotEqual:
		return cmp != 0
	case OpLessThan:
		return cmp < 0
	case OpLessOrEqual:
		return cmp <= 0
	case OpGreaterThan:
		return cmp > 0
	case OpGreaterOrEqual:
		return cmp >= 0
	}
	return false
}

// MatchesAll reports whether every filter matches
func MatchesAll(fields map[string]interface{}, filters []Filter) bool {
	for _, f := range filters {
		if !f.Matches(fields) {
			return false
		}
	}
	return true
}

func compareValues(a, b interface{}) (int, bool) {
	if af, ok := ToFloat(a); ok {
		bf, ok := ToFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

// ToFloat converts any numeric field value to float64
func ToFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
