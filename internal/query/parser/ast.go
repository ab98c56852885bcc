package parser

import (
	"fmt"
	"strings"
)

// Expression represents an expression in the AST.
type Expression interface {
	expressionNode()
	String() string
}

// BinaryExpr combines two conditions with AND or OR.
type BinaryExpr struct {
	Left     Expression
	Operator string
	Right    Expression
}

func (b *BinaryExpr) expressionNode() {}

// String returns the text representation of the binary expression.
func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left.String(), b.Operator, b.Right.String())
}

// ComparisonExpr compares an item, or any item, with a value.
type ComparisonExpr struct {
	Left     Expression
	Operator string // =, <>, <, <=, >, >=, ~
	Right    Expression
}

func (c *ComparisonExpr) expressionNode() {}

// String returns the text representation of the comparison.
func (c *ComparisonExpr) String() string {
	return fmt.Sprintf("%s %s %s", c.Left.String(), c.Operator, c.Right.String())
}

// NotExpr negates a condition.
type NotExpr struct {
	Operand Expression
}

func (n *NotExpr) expressionNode() {}

// String returns the text representation of the negation.
func (n *NotExpr) String() string {
	return "NOT " + n.Operand.String()
}

// ColumnRef names an item, with or without its category prefix.
type ColumnRef struct {
	Tag string
}

func (c *ColumnRef) expressionNode() {}

// String returns the tag.
func (c *ColumnRef) String() string { return c.Tag }

// StarExpr stands for any item of a row.
type StarExpr struct{}

func (s *StarExpr) expressionNode() {}

// String returns "*".
func (s *StarExpr) String() string { return "*" }

// Literal is a quoted or numeric value.
type Literal struct {
	Value  string
	Number bool
}

func (l *Literal) expressionNode() {}

// String returns the text representation of the literal.
func (l *Literal) String() string {
	if l.Number {
		return l.Value
	}
	return "'" + strings.ReplaceAll(l.Value, "'", "''") + "'"
}

// TrueExpr matches every row.
type TrueExpr struct{}

func (t *TrueExpr) expressionNode() {}

// String returns "TRUE".
func (t *TrueExpr) String() string { return "TRUE" }

// IsNullExpr represents an IS NULL or IS NOT NULL test. Missing, inapplicable
// and unknown values are all null.
type IsNullExpr struct {
	Expr Expression
	Not  bool
}

func (i *IsNullExpr) expressionNode() {}

// String returns the text representation of the IS NULL expression.
func (i *IsNullExpr) String() string {
	if i.Not {
		return fmt.Sprintf("%s IS NOT NULL", i.Expr.String())
	}
	return fmt.Sprintf("%s IS NULL", i.Expr.String())
}

// LikeExpr represents a LIKE expression with % and _ wildcards.
type LikeExpr struct {
	Expr    Expression
	Pattern Expression
	Not     bool
}

func (l *LikeExpr) expressionNode() {}

// String returns the text representation of the LIKE expression.
func (l *LikeExpr) String() string {
	if l.Not {
		return fmt.Sprintf("%s NOT LIKE %s", l.Expr.String(), l.Pattern.String())
	}
	return fmt.Sprintf("%s LIKE %s", l.Expr.String(), l.Pattern.String())
}

// ParenExpr represents a parenthesized expression.
type ParenExpr struct {
	Expr Expression
}

func (p *ParenExpr) expressionNode() {}

// String returns the text representation of the parenthesized expression.
func (p *ParenExpr) String() string {
	return fmt.Sprintf("(%s)", p.Expr.String())
}
