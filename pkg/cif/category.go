package cif

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	cerrors "github.com/arkilian/cifstore/internal/errors"
	"github.com/arkilian/cifstore/pkg/types"
	"github.com/arkilian/cifstore/pkg/validator"
)

type column struct {
	name      string
	validator *validator.ItemValidator
}

// Category is a named table of rows. Columns are registered once and never
// renumbered; rows live in an arena and are chained in insertion order.
type Category struct {
	name  string
	opts  *options
	block *Datablock
	jrnl  *journal

	columns  []column
	colIndex map[string]int

	rows       []rowSlot
	head, tail int32
	free       []int32
	size       int

	validator    *validator.Validator
	catValidator *validator.CategoryValidator
	index        *keyIndex
}

// NewCategory returns an empty category that is not part of a datablock.
// Such a category validates its own rows but has no linked categories.
func NewCategory(name string, opts ...Option) *Category {
	return newCategory(name, newOptions(opts), nil)
}

func newCategory(name string, o *options, block *Datablock) *Category {
	return &Category{
		name:     name,
		opts:     o,
		block:    block,
		jrnl:     newJournal(),
		colIndex: make(map[string]int),
		head:     -1,
		tail:     -1,
	}
}

// Name returns the category name.
func (c *Category) Name() string { return c.name }

// Len returns the number of rows.
func (c *Category) Len() int { return c.size }

// Empty reports whether the category has no rows.
func (c *Category) Empty() bool { return c.size == 0 }

// Validator returns the dictionary attached to the category, or nil.
func (c *Category) Validator() *validator.Validator { return c.validator }

// CategoryValidator returns the dictionary entry for this category, or nil.
func (c *Category) CategoryValidator() *validator.CategoryValidator { return c.catValidator }

func (c *Category) journal() *journal {
	if c.block != nil {
		return c.block.jrnl
	}
	return c.jrnl
}

// SetValidator attaches v, resolves item validators for the registered
// columns and builds the key index. Undeclared categories and tags are
// reported through the validator.
func (c *Category) SetValidator(v *validator.Validator) error {
	c.validator = v
	c.catValidator = nil
	c.index = nil
	for i := range c.columns {
		c.columns[i].validator = nil
	}
	if v == nil {
		return nil
	}

	c.catValidator = v.CategoryValidator(c.name)
	if c.catValidator == nil {
		return v.ReportError(fmt.Sprintf("undefined category %s", c.name), false)
	}

	var errs []error
	for i := range c.columns {
		iv := c.catValidator.ItemValidator(c.columns[i].name)
		if iv == nil {
			if err := v.ReportError(fmt.Sprintf("tag %s not allowed in category %s", c.columns[i].name, c.name), false); err != nil {
				errs = append(errs, err)
			}
		}
		c.columns[i].validator = iv
	}

	if len(c.catValidator.Keys) > 0 {
		c.index = newKeyIndex(c)
		if err := c.index.rebuild(); err != nil {
			if err := v.Report(err, false); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// AddColumn registers name and returns its index. Registering an existing
// name returns the existing index.
func (c *Category) AddColumn(name string) (int, error) {
	key := strings.ToLower(name)
	if i, ok := c.colIndex[key]; ok {
		return i, nil
	}
	if len(c.columns) > math.MaxUint16 {
		return -1, cerrors.NewStructureError(cerrors.CodeInvalidRow,
			fmt.Sprintf("too many columns in category %s", c.name))
	}

	var iv *validator.ItemValidator
	if c.catValidator != nil {
		iv = c.catValidator.ItemValidator(name)
		if iv == nil {
			if err := c.validator.ReportError(fmt.Sprintf("tag %s not allowed in category %s", name, c.name), false); err != nil {
				return -1, err
			}
		}
	}

	c.columns = append(c.columns, column{name: name, validator: iv})
	c.colIndex[key] = len(c.columns) - 1
	return len(c.columns) - 1, nil
}

// ColumnIndex returns the index of the named column.
func (c *Category) ColumnIndex(name string) (int, bool) {
	i, ok := c.colIndex[strings.ToLower(name)]
	return i, ok
}

// ColumnName returns the name of column i.
func (c *Category) ColumnName(i int) string {
	if i < 0 || i >= len(c.columns) {
		return ""
	}
	return c.columns[i].name
}

// Columns returns the column names in registration order.
func (c *Category) Columns() []string {
	out := make([]string, len(c.columns))
	for i, col := range c.columns {
		out[i] = col.name
	}
	return out
}

func (c *Category) typeFor(col int) *validator.TypeValidator {
	if col < 0 || col >= len(c.columns) || c.columns[col].validator == nil {
		return nil
	}
	return c.columns[col].validator.Type
}

func (c *Category) isKeyColumn(col int) bool {
	return c.catValidator != nil && c.catValidator.IsKey(c.columns[col].name)
}

// Fields returns the item names declared by the dictionary.
func (c *Category) Fields() []string {
	if c.catValidator == nil {
		return nil
	}
	return c.catValidator.Fields()
}

// MandatoryFields returns the mandatory item names declared by the dictionary.
func (c *Category) MandatoryFields() []string {
	if c.catValidator == nil {
		return nil
	}
	return c.catValidator.MandatoryFields()
}

// KeyFields returns the key item names declared by the dictionary.
func (c *Category) KeyFields() []string {
	if c.catValidator == nil {
		return nil
	}
	return slices.Clone(c.catValidator.Keys)
}

// GetTagOrder returns the full tag names in column order.
func (c *Category) GetTagOrder() []string {
	out := make([]string, len(c.columns))
	for i, col := range c.columns {
		out[i] = types.JoinTagName(c.name, col.name)
	}
	return out
}

// row arena

func (c *Category) handle(idx int32) Row {
	return Row{cat: c, idx: idx, gen: c.rows[idx].gen}
}

func (c *Category) alloc() int32 {
	if n := len(c.free); n > 0 {
		idx := c.free[n-1]
		c.free = c.free[:n-1]
		return idx
	}
	c.rows = append(c.rows, rowSlot{prev: -1, next: -1})
	return int32(len(c.rows) - 1)
}

func (c *Category) release(idx int32) {
	s := &c.rows[idx]
	s.items = nil
	s.live = false
	s.prev, s.next = -1, -1
	s.gen++
	c.free = append(c.free, idx)
}

// linkAfter inserts idx into the chain after prev, or at the head when
// prev is negative.
func (c *Category) linkAfter(idx, prev int32) {
	s := &c.rows[idx]
	s.prev = prev
	if prev < 0 {
		s.next = c.head
		c.head = idx
	} else {
		s.next = c.rows[prev].next
		c.rows[prev].next = idx
	}
	if s.next < 0 {
		c.tail = idx
	} else {
		c.rows[s.next].prev = idx
	}
	s.live = true
	c.size++
}

// unlinkChain removes idx from the chain and returns its predecessor.
func (c *Category) unlinkChain(idx int32) int32 {
	s := &c.rows[idx]
	prev, next := s.prev, s.next
	if prev < 0 {
		c.head = next
	} else {
		c.rows[prev].next = next
	}
	if next < 0 {
		c.tail = prev
	} else {
		c.rows[next].prev = prev
	}
	s.live = false
	c.size--
	return prev
}

// Rows returns handles for all rows in order.
func (c *Category) Rows() []Row {
	out := make([]Row, 0, c.size)
	for i := c.head; i >= 0; i = c.rows[i].next {
		out = append(out, c.handle(i))
	}
	return out
}

// Each calls fn for every row in order until fn returns false.
func (c *Category) Each(fn func(Row) bool) {
	for i := c.head; i >= 0; {
		next := c.rows[i].next
		if !fn(c.handle(i)) {
			return
		}
		i = next
	}
}

// Front returns the first row. The handle is invalid when the category is
// empty.
func (c *Category) Front() Row {
	if c.head < 0 {
		return Row{}
	}
	return c.handle(c.head)
}

// Emplace appends a row holding values. Every value is validated against
// its item validator and a failure leaves the category unchanged.
func (c *Category) Emplace(values ...types.Value) (Row, error) {
	cols := make([]int, len(values))
	for i, v := range values {
		col, err := c.AddColumn(v.Name)
		if err != nil {
			return Row{}, err
		}
		if iv := c.columns[col].validator; iv != nil {
			if err := iv.Validate(v.Text); err != nil {
				return Row{}, err
			}
		}
		cols[i] = col
	}

	idx := c.alloc()
	for i, v := range values {
		if err := c.rows[idx].put(uint16(cols[i]), v.Text); err != nil {
			c.release(idx)
			return Row{}, err
		}
	}

	if c.index != nil {
		if err := c.index.insert(idx); err != nil {
			c.release(idx)
			return Row{}, err
		}
	}

	c.linkAfter(idx, c.tail)
	c.journal().recordInsert(c, idx)
	return c.handle(idx), nil
}

// assign stores text in column col of row idx without cascading. A key
// change that would duplicate an existing key is rejected and undone,
// unless keepDuplicate is set, in which case the value is kept, the row is
// left out of the index and the duplicate error is still returned.
func (c *Category) assign(idx int32, col int, text string, keepDuplicate bool) error {
	if len(text) > MaxValueLength {
		return cerrors.NewValueError(cerrors.CodeValueTooLong,
			fmt.Sprintf("value for %s exceeds the maximum length", types.JoinTagName(c.name, c.columns[col].name)))
	}

	s := &c.rows[idx]
	old, _ := s.get(uint16(col))
	if old == text {
		return nil
	}

	isKey := c.index != nil && c.isKeyColumn(col)
	if isKey {
		c.index.remove(idx)
	}

	if err := s.put(uint16(col), text); err != nil {
		return err
	}
	c.journal().recordSet(c, idx, col, old)

	if isKey {
		if err := c.index.insert(idx); err != nil {
			if !keepDuplicate {
				_ = s.put(uint16(col), old)
				_ = c.index.insert(idx)
			}
			return err
		}
	}
	return nil
}

// produceItem stores a value delivered by a parser. Validation problems
// are reported non-fatally.
func (c *Category) produceItem(idx int32, tag, value string) error {
	col, err := c.AddColumn(tag)
	if err != nil {
		return err
	}
	if iv := c.columns[col].validator; iv != nil {
		if err := iv.Validate(value); err != nil {
			if err := c.validator.Report(err, false); err != nil {
				return err
			}
		}
	}

	err = c.assign(idx, col, value, true)
	if cerrors.GetCategory(err) == cerrors.ErrCategoryKey && c.validator != nil {
		return c.validator.Report(err, false)
	}
	return err
}

// Erase removes row and cascades the removal to orphaned children.
func (c *Category) Erase(row Row) error {
	if !row.Valid() || row.cat != c {
		return errInvalidRow()
	}
	j := c.journal()
	j.begin()
	return j.end(c.erase(row.idx))
}

func (c *Category) erase(idx int32) error {
	if !c.rows[idx].live {
		return nil
	}
	r := c.handle(idx)

	if c.index != nil {
		c.index.remove(idx)
	}
	prev := c.unlinkChain(idx)
	c.journal().recordUnlink(c, idx, prev)

	if c.validator == nil || c.block == nil {
		return nil
	}

	// the unlinked slot keeps its items until the journal commits
	for _, link := range c.validator.LinksForParent(c.name) {
		child := c.block.Get(link.ChildCategory)
		if child == nil {
			continue
		}
		var cond Condition
		for i, pk := range link.ParentKeys {
			ck := link.ChildKeys[i]
			pv := r.textUnchecked(pk)
			if types.IsEmpty(pv) {
				cond = cond.And(Key(ck).IsEmpty())
			} else {
				cond = cond.And(Key(ck).Eq(pv).Or(Key(ck).IsEmpty()))
			}
		}
		if err := child.eraseOrphans(cond); err != nil {
			return err
		}
	}
	return nil
}

// textUnchecked reads tag from the slot regardless of its live state.
func (r Row) textUnchecked(tag string) string {
	col, ok := r.cat.ColumnIndex(tag)
	if !ok {
		return ""
	}
	text, _ := r.cat.rows[r.idx].get(uint16(col))
	return text
}

// EraseWhere removes all rows matching cond and returns how many were
// removed. Removal cascades.
func (c *Category) EraseWhere(cond Condition) (int, error) {
	return c.EraseWhereFunc(cond, nil)
}

// EraseWhereFunc is EraseWhere with a callback invoked for each matching
// row before it is removed.
func (c *Category) EraseWhereFunc(cond Condition, visit func(Row)) (int, error) {
	rows, err := c.Find(cond)
	if err != nil {
		return 0, err
	}

	j := c.journal()
	j.begin()
	n := 0
	for _, r := range rows {
		if !r.Valid() {
			continue
		}
		if visit != nil {
			visit(r)
		}
		if err = c.erase(r.idx); err != nil {
			break
		}
		n++
	}
	if err = j.end(err); err != nil {
		return 0, err
	}
	return n, nil
}

// Find returns the rows matching cond in order.
func (c *Category) Find(cond Condition) ([]Row, error) {
	if err := cond.Prepare(c); err != nil {
		return nil, err
	}
	var out []Row
	for i := c.head; i >= 0; i = c.rows[i].next {
		if cond.test(&c.rows[i]) {
			out = append(out, c.handle(i))
		}
	}
	return out, nil
}

// Find1 returns the single row matching cond. It fails when no row or more
// than one row matches.
func (c *Category) Find1(cond Condition) (Row, error) {
	rows, err := c.Find(cond)
	if err != nil {
		return Row{}, err
	}
	if len(rows) != 1 {
		return Row{}, cerrors.NewStructureError(cerrors.CodeNotFound,
			fmt.Sprintf("expected exactly one row in %s matching %s, found %d", c.name, cond, len(rows)))
	}
	return rows[0], nil
}

// Exists reports whether any row matches cond.
func (c *Category) Exists(cond Condition) (bool, error) {
	if err := cond.Prepare(c); err != nil {
		return false, err
	}
	for i := c.head; i >= 0; i = c.rows[i].next {
		if cond.test(&c.rows[i]) {
			return true, nil
		}
	}
	return false, nil
}

// Count returns the number of rows matching cond.
func (c *Category) Count(cond Condition) (int, error) {
	if err := cond.Prepare(c); err != nil {
		return 0, err
	}
	n := 0
	for i := c.head; i >= 0; i = c.rows[i].next {
		if cond.test(&c.rows[i]) {
			n++
		}
	}
	return n, nil
}

// Lookup finds a row by its complete key, in the order of KeyFields.
func (c *Category) Lookup(keyValues ...string) (Row, bool) {
	if c.index == nil || len(keyValues) != len(c.catValidator.Keys) {
		return Row{}, false
	}
	idx := c.index.find(keyValues)
	if idx < 0 {
		return Row{}, false
	}
	return c.handle(idx), true
}

// Clear removes all rows without cascading.
func (c *Category) Clear() {
	c.rows = nil
	c.free = nil
	c.head, c.tail = -1, -1
	c.size = 0
	if c.index != nil {
		c.index = newKeyIndex(c)
	}
}

// Sort reorders the rows using cmp.
func (c *Category) Sort(cmp func(a, b Row) int) {
	rows := c.Rows()
	slices.SortStableFunc(rows, cmp)
	c.head, c.tail = -1, -1
	for i, r := range rows {
		if i == 0 {
			c.head = r.idx
			c.rows[r.idx].prev = -1
		} else {
			c.rows[rows[i-1].idx].next = r.idx
			c.rows[r.idx].prev = rows[i-1].idx
		}
		c.rows[r.idx].next = -1
		c.tail = r.idx
	}
}

// Equal reports whether both categories hold the same rows, in any order.
// Values compare through the column type; absent compares equal to "?".
func (c *Category) Equal(o *Category) bool {
	if c.size != o.size || !strings.EqualFold(c.name, o.name) {
		return false
	}

	seen := make(map[string]bool)
	var names []string
	for _, cat := range []*Category{c, o} {
		for _, col := range cat.columns {
			k := strings.ToLower(col.name)
			if !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
	}
	sort.Strings(names)

	a, b := c.canonicalRows(names), o.canonicalRows(names)
	return slices.Equal(a, b)
}

func (c *Category) canonicalRows(names []string) []string {
	out := make([]string, 0, c.size)
	var sb strings.Builder
	for i := c.head; i >= 0; i = c.rows[i].next {
		sb.Reset()
		for _, name := range names {
			v := ""
			col, ok := c.ColumnIndex(name)
			if ok {
				v, _ = c.rows[i].get(uint16(col))
			}
			if v == "" {
				v = types.Unknown
			}
			if tv := c.typeFor(col); ok && tv != nil {
				v = tv.Normalize(v)
			}
			sb.WriteString(v)
			sb.WriteByte(0)
		}
		out = append(out, sb.String())
	}
	sort.Strings(out)
	return out
}

// Validate checks mandatory fields and every value against the dictionary.
// All problems are returned joined.
func (c *Category) Validate() error {
	if c.validator == nil {
		return nil
	}
	if c.catValidator == nil {
		return cerrors.NewSchemaError(cerrors.CodeValidationFailed, fmt.Sprintf("undefined category %s", c.name))
	}

	var errs []error
	var mandatory []int
	for _, f := range c.catValidator.MandatoryFields() {
		col, ok := c.ColumnIndex(f)
		if !ok {
			errs = append(errs, cerrors.NewSchemaError(cerrors.CodeMissingMandatory,
				fmt.Sprintf("missing mandatory field %s", types.JoinTagName(c.name, f))))
			continue
		}
		mandatory = append(mandatory, col)
	}

	for i, col := range c.columns {
		if col.validator == nil {
			errs = append(errs, cerrors.NewSchemaError(cerrors.CodeUnknownTag,
				fmt.Sprintf("tag %s not allowed in category %s", col.name, c.name)).
				WithDetails(map[string]interface{}{"column": i}))
		}
	}

	for i := c.head; i >= 0; i = c.rows[i].next {
		s := &c.rows[i]
		for _, col := range mandatory {
			if _, ok := s.get(uint16(col)); !ok {
				errs = append(errs, cerrors.NewSchemaError(cerrors.CodeMissingMandatory,
					fmt.Sprintf("missing mandatory value for %s", types.JoinTagName(c.name, c.columns[col].name))))
			}
		}
		for j := range s.items {
			if iv := c.columns[s.items[j].column].validator; iv != nil {
				if err := iv.Validate(s.items[j].text()); err != nil {
					errs = append(errs, err)
				}
			}
		}
	}
	return errors.Join(errs...)
}

func errInvalidRow() error {
	return cerrors.NewStructureError(cerrors.CodeInvalidRow, "row handle is no longer valid")
}
