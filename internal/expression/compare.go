package expression

import (
	"strings"

	"github.com/flowgraph/runtime/internal/record"
)

// Compare evaluates a Router-style condition: left OP right, where OP is
// one of ==, !=, <, <=, >, >=, contains. Operands are compared as numbers
// when both sides parse as numbers, otherwise as strings, matching the
// teacher's loose scalar-comparison behavior in its condition actions.
func Compare(left record.Record, op string, right record.Record) (bool, error) {
	if op == "contains" {
		return contains(left, right), nil
	}

	ln, lok := left.Number()
	rn, rok := right.Number()
	if lok && rok {
		switch op {
		case "==":
			return ln == rn, nil
		case "!=":
			return ln != rn, nil
		case "<":
			return ln < rn, nil
		case "<=":
			return ln <= rn, nil
		case ">":
			return ln > rn, nil
		case ">=":
			return ln >= rn, nil
		}
	}

	if lb, lok := left.Bool(); lok {
		if rb, rok := right.Bool(); rok {
			switch op {
			case "==":
				return lb == rb, nil
			case "!=":
				return lb != rb, nil
			}
		}
	}

	ls, rs := ToString(left), ToString(right)
	switch op {
	case "==":
		return ls == rs, nil
	case "!=":
		return ls != rs, nil
	case "<":
		return ls < rs, nil
	case "<=":
		return ls <= rs, nil
	case ">":
		return ls > rs, nil
	case ">=":
		return ls >= rs, nil
	}
	return false, &UnknownOperatorError{Op: op}
}

// contains reports whether right appears in left: substring match when
// left is a string, element match when left is a slice.
func contains(left, right record.Record) bool {
	if arr, ok := left.Slice(); ok {
		for _, el := range arr {
			if record.Equal(el, right) {
				return true
			}
		}
		return false
	}
	return strings.Contains(ToString(left), ToString(right))
}

// UnknownOperatorError reports a Router/Switch condition using an
// operator outside the supported set.
type UnknownOperatorError struct {
	Op string
}

func (e *UnknownOperatorError) Error() string {
	return "expression: unknown operator " + e.Op
}
