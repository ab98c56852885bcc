package cif

import (
	"cmp"
	"fmt"
	"regexp"
	"strings"

	cerrors "github.com/arkilian/cifstore/internal/errors"
	"github.com/arkilian/cifstore/pkg/types"
	"github.com/arkilian/cifstore/pkg/validator"
)

// conditionImpl is one node of a condition tree. prepare returns a copy
// bound to a category; test may only be called on prepared nodes.
type conditionImpl interface {
	prepare(c *Category) (conditionImpl, error)
	test(c *Category, s *rowSlot) bool
	String() string
}

// Condition is a predicate over the rows of one category. The zero value
// is the empty condition: it matches no row and is the identity for And
// and Or.
type Condition struct {
	impl conditionImpl
	cat  *Category
}

// Empty reports whether the condition has no predicate.
func (q Condition) Empty() bool { return q.impl == nil }

// Prepare resolves tag names against c. An undeclared tag in a validated
// category is reported through the category's validator.
func (q *Condition) Prepare(c *Category) error {
	if q.impl != nil {
		impl, err := q.impl.prepare(c)
		if err != nil {
			return err
		}
		q.impl = impl
	}
	q.cat = c
	return nil
}

// Test evaluates the condition for r. The condition must have been
// prepared for r's category.
func (q Condition) Test(r Row) bool {
	if q.cat == nil || q.cat != r.cat {
		panic("cif: condition tested without being prepared for this category")
	}
	s := r.slot()
	if s == nil {
		return false
	}
	return q.test(s)
}

func (q Condition) test(s *rowSlot) bool {
	if q.impl == nil {
		return false
	}
	return q.impl.test(q.cat, s)
}

// String renders the condition for diagnostics.
func (q Condition) String() string {
	if q.impl == nil {
		return "<empty>"
	}
	return q.impl.String()
}

// And combines two conditions. An empty operand yields the other one.
func (q Condition) And(o Condition) Condition {
	switch {
	case q.impl == nil:
		return Condition{impl: o.impl}
	case o.impl == nil:
		return Condition{impl: q.impl}
	}
	return Condition{impl: &andCondition{a: q.impl, b: o.impl}}
}

// Or combines two conditions. An empty operand yields the other one.
func (q Condition) Or(o Condition) Condition {
	switch {
	case q.impl == nil:
		return Condition{impl: o.impl}
	case o.impl == nil:
		return Condition{impl: q.impl}
	}
	return Condition{impl: &orCondition{a: q.impl, b: o.impl}}
}

// Not negates q. The negation of the empty condition matches every row.
func Not(q Condition) Condition {
	if q.impl == nil {
		return All()
	}
	return Condition{impl: &notCondition{a: q.impl}}
}

// All matches every row.
func All() Condition {
	return Condition{impl: allCondition{}}
}

// KeyRef builds conditions on a single item.
type KeyRef struct {
	tag string
}

// Key starts a condition on the item named tag.
func Key(tag string) KeyRef {
	_, item := types.SplitTagName(tag)
	return KeyRef{tag: item}
}

type compareOp uint8

const (
	opEq compareOp = iota
	opNe
	opLt
	opLe
	opGt
	opGe
)

var compareOpSymbols = [...]string{"==", "!=", "<", "<=", ">", ">="}

func (k KeyRef) compare(op compareOp, value string) Condition {
	return Condition{impl: &keyCompare{tag: k.tag, op: op, value: value, col: -1}}
}

// Eq matches rows whose value equals value under the item's type.
func (k KeyRef) Eq(value string) Condition { return k.compare(opEq, value) }

// Ne matches rows whose value differs from value.
func (k KeyRef) Ne(value string) Condition { return k.compare(opNe, value) }

// Lt matches rows whose value orders before value.
func (k KeyRef) Lt(value string) Condition { return k.compare(opLt, value) }

// Le matches rows whose value orders before or equal to value.
func (k KeyRef) Le(value string) Condition { return k.compare(opLe, value) }

// Gt matches rows whose value orders after value.
func (k KeyRef) Gt(value string) Condition { return k.compare(opGt, value) }

// Ge matches rows whose value orders after or equal to value.
func (k KeyRef) Ge(value string) Condition { return k.compare(opGe, value) }

// EqNumber matches rows whose value parses to exactly v.
func (k KeyRef) EqNumber(v float64) Condition {
	return Condition{impl: &keyNumber{tag: k.tag, value: v, col: -1}}
}

// IsEmpty matches rows where the item is absent, "." or "?".
func (k KeyRef) IsEmpty() Condition {
	return Condition{impl: &keyEmpty{tag: k.tag, col: -1}}
}

// IsNull matches rows where the item is ".". Absent items do not match.
func (k KeyRef) IsNull() Condition {
	return Condition{impl: &keyEmpty{tag: k.tag, marker: types.Null, col: -1}}
}

// IsUnknown matches rows where the item is "?". Absent items do not match.
func (k KeyRef) IsUnknown() Condition {
	return Condition{impl: &keyEmpty{tag: k.tag, marker: types.Unknown, col: -1}}
}

// Matches matches rows whose whole value matches the regular expression.
// A pattern that does not compile fails at Prepare.
func (k KeyRef) Matches(pattern string) Condition {
	rx, err := compileAnchored(pattern)
	return Condition{impl: &keyMatches{tag: k.tag, pattern: pattern, rx: rx, err: err, col: -1}}
}

// AnyRef builds conditions over all items of a row.
type AnyRef struct{}

// Any starts a condition that holds when any item of a row satisfies it.
func Any() AnyRef { return AnyRef{} }

// Eq matches rows having at least one item equal to value.
func (AnyRef) Eq(value string) Condition {
	return Condition{impl: &anyEq{value: value}}
}

// Matches matches rows having at least one item whose whole value matches
// the regular expression.
func (AnyRef) Matches(pattern string) Condition {
	rx, err := compileAnchored(pattern)
	return Condition{impl: &anyMatches{pattern: pattern, rx: rx, err: err}}
}

// keyEq is Eq for non-empty values and IsEmpty otherwise.
func keyEq(tag, value string) Condition {
	if types.IsEmpty(value) {
		return Key(tag).IsEmpty()
	}
	return Key(tag).Eq(value)
}

func compileAnchored(pattern string) (*regexp.Regexp, error) {
	rx, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCategorySchema, cerrors.CodeInvalidPattern,
			fmt.Sprintf("invalid regular expression %q", pattern), err)
	}
	return rx, nil
}

// resolveTag returns the column of tag in c, or -1, and its type.
func resolveTag(c *Category, tag string) (int, *validator.TypeValidator, error) {
	col, ok := c.ColumnIndex(tag)
	if !ok {
		col = -1
	}

	var tv *validator.TypeValidator
	if c.catValidator != nil {
		iv := c.catValidator.ItemValidator(tag)
		if iv == nil {
			if err := c.validator.ReportError(fmt.Sprintf("tag %s not defined in category %s", tag, c.name), false); err != nil {
				return -1, nil, err
			}
		} else {
			tv = iv.Type
		}
	}
	return col, tv, nil
}

func valueAt(s *rowSlot, col int) string {
	if col < 0 {
		return ""
	}
	v, _ := s.get(uint16(col))
	return v
}

// compareValues orders a and b using tv, or numerically when both parse
// as numbers, or byte-wise.
func compareValues(tv *validator.TypeValidator, a, b string) int {
	if tv != nil {
		return tv.Compare(a, b)
	}
	fa, errA := types.ParseFloat(a)
	fb, errB := types.ParseFloat(b)
	if errA == nil && errB == nil {
		return cmp.Compare(fa, fb)
	}
	return strings.Compare(a, b)
}

func equalValues(tv *validator.TypeValidator, a, b string) bool {
	if tv != nil {
		return tv.Compare(a, b) == 0
	}
	return a == b
}

type keyCompare struct {
	tag   string
	op    compareOp
	value string
	col   int
	tv    *validator.TypeValidator
}

func (k *keyCompare) prepare(c *Category) (conditionImpl, error) {
	col, tv, err := resolveTag(c, k.tag)
	if err != nil {
		return nil, err
	}
	return &keyCompare{tag: k.tag, op: k.op, value: k.value, col: col, tv: tv}, nil
}

func (k *keyCompare) test(_ *Category, s *rowSlot) bool {
	v := valueAt(s, k.col)
	switch k.op {
	case opEq:
		return equalValues(k.tv, v, k.value)
	case opNe:
		return !equalValues(k.tv, v, k.value)
	case opLt:
		return compareValues(k.tv, v, k.value) < 0
	case opLe:
		return compareValues(k.tv, v, k.value) <= 0
	case opGt:
		return compareValues(k.tv, v, k.value) > 0
	default:
		return compareValues(k.tv, v, k.value) >= 0
	}
}

func (k *keyCompare) String() string {
	return fmt.Sprintf("%s %s %q", k.tag, compareOpSymbols[k.op], k.value)
}

type keyNumber struct {
	tag   string
	value float64
	col   int
}

func (k *keyNumber) prepare(c *Category) (conditionImpl, error) {
	col, _, err := resolveTag(c, k.tag)
	if err != nil {
		return nil, err
	}
	return &keyNumber{tag: k.tag, value: k.value, col: col}, nil
}

func (k *keyNumber) test(_ *Category, s *rowSlot) bool {
	f, err := types.ParseFloat(valueAt(s, k.col))
	return err == nil && f == k.value
}

func (k *keyNumber) String() string {
	return fmt.Sprintf("%s == %g", k.tag, k.value)
}

// keyEmpty tests for one marker, or for any empty value when marker is "".
type keyEmpty struct {
	tag    string
	marker string
	col    int
}

func (k *keyEmpty) prepare(c *Category) (conditionImpl, error) {
	col, _, err := resolveTag(c, k.tag)
	if err != nil {
		return nil, err
	}
	return &keyEmpty{tag: k.tag, marker: k.marker, col: col}, nil
}

func (k *keyEmpty) test(_ *Category, s *rowSlot) bool {
	v := valueAt(s, k.col)
	if k.marker != "" {
		return v == k.marker
	}
	return types.IsEmpty(v)
}

func (k *keyEmpty) String() string {
	if k.marker != "" {
		return k.tag + " == " + k.marker
	}
	return k.tag + " IS NULL"
}

type keyMatches struct {
	tag     string
	pattern string
	rx      *regexp.Regexp
	err     error
	col     int
}

func (k *keyMatches) prepare(c *Category) (conditionImpl, error) {
	if k.err != nil {
		return nil, k.err
	}
	col, _, err := resolveTag(c, k.tag)
	if err != nil {
		return nil, err
	}
	return &keyMatches{tag: k.tag, pattern: k.pattern, rx: k.rx, col: col}, nil
}

func (k *keyMatches) test(_ *Category, s *rowSlot) bool {
	return k.rx.MatchString(valueAt(s, k.col))
}

func (k *keyMatches) String() string {
	return fmt.Sprintf("%s =~ /%s/", k.tag, k.pattern)
}

type anyEq struct {
	value string
}

func (a *anyEq) prepare(*Category) (conditionImpl, error) { return a, nil }

func (a *anyEq) test(c *Category, s *rowSlot) bool {
	for i := range s.items {
		if equalValues(c.typeFor(int(s.items[i].column)), s.items[i].text(), a.value) {
			return true
		}
	}
	return false
}

func (a *anyEq) String() string {
	return fmt.Sprintf("* == %q", a.value)
}

type anyMatches struct {
	pattern string
	rx      *regexp.Regexp
	err     error
}

func (a *anyMatches) prepare(*Category) (conditionImpl, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a, nil
}

func (a *anyMatches) test(_ *Category, s *rowSlot) bool {
	for i := range s.items {
		if a.rx.MatchString(s.items[i].text()) {
			return true
		}
	}
	return false
}

func (a *anyMatches) String() string {
	return fmt.Sprintf("* =~ /%s/", a.pattern)
}

type allCondition struct{}

func (allCondition) prepare(*Category) (conditionImpl, error) { return allCondition{}, nil }
func (allCondition) test(*Category, *rowSlot) bool            { return true }
func (allCondition) String() string                           { return "*" }

type andCondition struct {
	a, b conditionImpl
}

func (n *andCondition) prepare(c *Category) (conditionImpl, error) {
	a, err := n.a.prepare(c)
	if err != nil {
		return nil, err
	}
	b, err := n.b.prepare(c)
	if err != nil {
		return nil, err
	}
	return &andCondition{a: a, b: b}, nil
}

func (n *andCondition) test(c *Category, s *rowSlot) bool {
	return n.a.test(c, s) && n.b.test(c, s)
}

func (n *andCondition) String() string {
	return "(" + n.a.String() + " AND " + n.b.String() + ")"
}

type orCondition struct {
	a, b conditionImpl
}

func (n *orCondition) prepare(c *Category) (conditionImpl, error) {
	a, err := n.a.prepare(c)
	if err != nil {
		return nil, err
	}
	b, err := n.b.prepare(c)
	if err != nil {
		return nil, err
	}
	return &orCondition{a: a, b: b}, nil
}

func (n *orCondition) test(c *Category, s *rowSlot) bool {
	return n.a.test(c, s) || n.b.test(c, s)
}

func (n *orCondition) String() string {
	return "(" + n.a.String() + " OR " + n.b.String() + ")"
}

type notCondition struct {
	a conditionImpl
}

func (n *notCondition) prepare(c *Category) (conditionImpl, error) {
	a, err := n.a.prepare(c)
	if err != nil {
		return nil, err
	}
	return &notCondition{a: a}, nil
}

func (n *notCondition) test(c *Category, s *rowSlot) bool {
	return !n.a.test(c, s)
}

func (n *notCondition) String() string {
	return "NOT " + n.a.String()
}
