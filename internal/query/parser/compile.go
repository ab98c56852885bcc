package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	cerrors "github.com/arkilian/cifstore/internal/errors"
	"github.com/arkilian/cifstore/pkg/cif"
)

// Compile parses expr and builds the equivalent condition.
func Compile(expr string) (cif.Condition, error) {
	ast, err := Parse(expr)
	if err != nil {
		return cif.Condition{}, cerrors.Wrap(cerrors.ErrCategoryStructure, cerrors.CodeParseError,
			fmt.Sprintf("invalid condition %q", expr), err)
	}
	cond, err := Build(ast)
	if err != nil {
		return cif.Condition{}, cerrors.Wrap(cerrors.ErrCategoryStructure, cerrors.CodeParseError,
			fmt.Sprintf("invalid condition %q", expr), err)
	}
	return cond, nil
}

// Build converts an expression tree into a condition.
func Build(expr Expression) (cif.Condition, error) {
	switch e := expr.(type) {
	case *ParenExpr:
		return Build(e.Expr)
	case *TrueExpr:
		return cif.All(), nil
	case *NotExpr:
		c, err := Build(e.Operand)
		if err != nil {
			return cif.Condition{}, err
		}
		return cif.Not(c), nil
	case *BinaryExpr:
		return buildBinary(e)
	case *ComparisonExpr:
		return buildComparison(e)
	case *LikeExpr:
		return buildLike(e)
	case *IsNullExpr:
		col, ok := e.Expr.(*ColumnRef)
		if !ok {
			return cif.Condition{}, fmt.Errorf("IS NULL needs an item name, got %s", e.Expr)
		}
		c := cif.Key(col.Tag).IsEmpty()
		if e.Not {
			c = cif.Not(c)
		}
		return c, nil
	default:
		return cif.Condition{}, fmt.Errorf("%s is not a condition", expr)
	}
}

func buildBinary(e *BinaryExpr) (cif.Condition, error) {
	left, err := Build(e.Left)
	if err != nil {
		return cif.Condition{}, err
	}
	right, err := Build(e.Right)
	if err != nil {
		return cif.Condition{}, err
	}
	if e.Operator == "OR" {
		return left.Or(right), nil
	}
	return left.And(right), nil
}

// value returns the text of a value operand. Bare words stand for
// themselves.
func value(expr Expression) (string, bool, error) {
	switch v := expr.(type) {
	case *Literal:
		return v.Value, v.Number, nil
	case *ColumnRef:
		return v.Tag, false, nil
	default:
		return "", false, fmt.Errorf("expected a value, got %s", expr)
	}
}

func buildComparison(e *ComparisonExpr) (cif.Condition, error) {
	text, number, err := value(e.Right)
	if err != nil {
		return cif.Condition{}, err
	}

	switch left := e.Left.(type) {
	case *StarExpr:
		switch e.Operator {
		case "=":
			return cif.Any().Eq(text), nil
		case "~":
			return cif.Any().Matches(text), nil
		default:
			return cif.Condition{}, fmt.Errorf("operator %s cannot be used with *", e.Operator)
		}
	case *ColumnRef:
		key := cif.Key(left.Tag)
		switch e.Operator {
		case "=":
			if number {
				f, err := strconv.ParseFloat(text, 64)
				if err != nil {
					return cif.Condition{}, err
				}
				return key.EqNumber(f), nil
			}
			return key.Eq(text), nil
		case "<>":
			return key.Ne(text), nil
		case "<":
			return key.Lt(text), nil
		case "<=":
			return key.Le(text), nil
		case ">":
			return key.Gt(text), nil
		case ">=":
			return key.Ge(text), nil
		case "~":
			return key.Matches(text), nil
		default:
			return cif.Condition{}, fmt.Errorf("unknown operator %s", e.Operator)
		}
	default:
		return cif.Condition{}, fmt.Errorf("expected an item name or *, got %s", e.Left)
	}
}

func buildLike(e *LikeExpr) (cif.Condition, error) {
	pattern, _, err := value(e.Pattern)
	if err != nil {
		return cif.Condition{}, err
	}
	rx := LikeToRegexp(pattern)

	var c cif.Condition
	switch left := e.Expr.(type) {
	case *StarExpr:
		c = cif.Any().Matches(rx)
	case *ColumnRef:
		c = cif.Key(left.Tag).Matches(rx)
	default:
		return cif.Condition{}, fmt.Errorf("expected an item name or *, got %s", e.Expr)
	}
	if e.Not {
		c = cif.Not(c)
	}
	return c, nil
}

// LikeToRegexp translates a LIKE pattern into a regular expression: % matches
// any run of characters and _ any single character. Conditions anchor the
// result.
func LikeToRegexp(pattern string) string {
	var sb strings.Builder
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString("(?s:.*)")
		case '_':
			sb.WriteString("(?s:.)")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return sb.String()
}
