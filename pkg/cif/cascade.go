package cif

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	cerrors "github.com/arkilian/cifstore/internal/errors"
	"github.com/arkilian/cifstore/pkg/types"
	"github.com/arkilian/cifstore/pkg/validator"
)

// Update assigns value to tag in every row matching cond, cascading the
// change to child categories.
func (c *Category) Update(cond Condition, tag, value string) error {
	rows, err := c.Find(cond)
	if err != nil {
		return err
	}
	return c.UpdateValue(rows, tag, value)
}

// UpdateValue assigns value to tag in rows. All rows must hold the same old
// value. When tag is a parent key of a link, child rows referring to the old
// value are renamed as well; a child that is also referenced by another
// parent is split when its category has a single key. The whole operation
// is undone when any step fails.
func (c *Category) UpdateValue(rows []Row, tag, value string) error {
	if len(rows) == 0 {
		return nil
	}
	for _, r := range rows {
		if !r.Valid() || r.cat != c {
			return errInvalidRow()
		}
	}

	j := c.journal()
	j.begin()
	return j.end(c.updateValue(rows, tag, value))
}

func (c *Category) updateValue(rows []Row, tag, value string) error {
	col, err := c.AddColumn(tag)
	if err != nil {
		return err
	}
	if iv := c.columns[col].validator; iv != nil {
		if err := iv.Validate(value); err != nil {
			return err
		}
	}

	old := rows[0].Text(tag)
	for _, r := range rows[1:] {
		if r.Text(tag) != old {
			return cerrors.NewStructureError(cerrors.CodeInconsistentValues,
				fmt.Sprintf("rows to update have different values for %s", types.JoinTagName(c.name, tag)))
		}
	}
	if old == value {
		return nil
	}

	for _, r := range rows {
		if err := c.assign(r.idx, col, value, false); err != nil {
			return err
		}
	}

	if types.IsEmpty(old) || c.validator == nil || c.block == nil {
		return nil
	}

	for _, link := range c.validator.LinksForParent(c.name) {
		if err := c.cascadeRename(link, rows, tag, old, value); err != nil {
			return err
		}
	}
	return nil
}

func (c *Category) cascadeRename(link *validator.LinkValidator, rows []Row, tag, old, value string) error {
	pos := -1
	for i, pk := range link.ParentKeys {
		if strings.EqualFold(pk, tag) {
			pos = i
			break
		}
	}
	if pos < 0 {
		return nil
	}

	child := c.block.Get(link.ChildCategory)
	if child == nil {
		return nil
	}
	childTag := link.ChildKeys[pos]
	j := c.journal()

	for _, r := range rows {
		var cond Condition
		for i, pk := range link.ParentKeys {
			ck := link.ChildKeys[i]
			if i == pos {
				cond = cond.And(Key(ck).Eq(old))
				continue
			}
			pv := r.Text(pk)
			if types.IsEmpty(pv) {
				cond = cond.And(Key(ck).IsEmpty())
			} else {
				cond = cond.And(Key(ck).Eq(pv).Or(Key(ck).IsEmpty()))
			}
		}

		children, err := child.Find(cond)
		if err != nil {
			return err
		}

		var process []Row
		for _, cr := range children {
			other, err := c.hasOtherParent(link, cr)
			if err != nil {
				return err
			}
			if !other {
				process = append(process, cr)
				continue
			}

			exists, err := child.hasRenamedSibling(link, cr, pos, value)
			if err != nil {
				return err
			}
			if exists {
				continue
			}

			// a single key can be split unless it is another column of this link
			keys := child.KeyFields()
			splittable := len(keys) == 1 && (strings.EqualFold(keys[0], childTag) ||
				!slices.ContainsFunc(link.ChildKeys, func(ck string) bool { return strings.EqualFold(ck, keys[0]) }))
			if !splittable {
				if c.opts.verbosity > 0 {
					c.opts.logger.Warn("cascade: cannot update child row, it has other parents",
						"category", child.name, "tag", childTag, "op", j.op)
				}
				continue
			}

			copied, err := child.split(cr, childTag, value)
			if err != nil {
				return err
			}
			if !copied {
				process = append(process, cr)
			}
		}

		// children matched with a typed comparison may differ in spelling
		groups := make(map[string][]Row)
		var order []string
		for _, cr := range process {
			v := cr.Text(childTag)
			if _, ok := groups[v]; !ok {
				order = append(order, v)
			}
			groups[v] = append(groups[v], cr)
		}
		for _, v := range order {
			if err := child.updateValue(groups[v], childTag, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// hasOtherParent reports whether a row in c, the parent category of link,
// still refers to child row cr.
func (c *Category) hasOtherParent(link *validator.LinkValidator, cr Row) (bool, error) {
	var cond Condition
	for i, ck := range link.ChildKeys {
		cv := cr.Text(ck)
		if types.IsEmpty(cv) {
			continue
		}
		cond = cond.And(Key(link.ParentKeys[i]).Eq(cv))
	}
	if cond.Empty() {
		return false, nil
	}
	return c.Exists(cond)
}

// hasRenamedSibling reports whether a row already carries the key
// combination cr would have after the rename.
func (c *Category) hasRenamedSibling(link *validator.LinkValidator, cr Row, pos int, value string) (bool, error) {
	var cond Condition
	for i, ck := range link.ChildKeys {
		if i == pos {
			cond = cond.And(keyEq(ck, value))
		} else {
			cond = cond.And(keyEq(ck, cr.Text(ck)))
		}
	}
	return c.Exists(cond)
}

// split appends a copy of r so that its parents can diverge. When the key
// of c is tag itself the copy takes value and r stays with the remaining
// parents; copied is then true. Otherwise the copy holds a fresh key and
// the old linked values, and r is left to be renamed.
func (c *Category) split(r Row, tag, value string) (copied bool, err error) {
	key := c.KeyFields()[0]
	fresh := value
	copied = strings.EqualFold(key, tag)
	if !copied {
		if fresh, err = c.freshKey(key); err != nil {
			return false, err
		}
	}

	values := r.Values()
	found := false
	for i := range values {
		if strings.EqualFold(values[i].Name, key) {
			values[i].Text = fresh
			found = true
		}
	}
	if !found {
		values = append(values, types.NewValue(key, fresh))
	}

	if _, err := c.Emplace(values...); err != nil {
		return false, err
	}
	if c.opts.verbosity > 0 {
		c.opts.logger.Info("cascade: split child row",
			"category", c.name, "tag", key, "value", fresh, "op", c.journal().op)
	}
	return copied, nil
}

// freshKey returns an unused value for key: one more than the largest
// value for numeric keys, "<category>_id_<n>" otherwise.
func (c *Category) freshKey(key string) (string, error) {
	col, ok := c.ColumnIndex(key)
	if !ok {
		return "1", nil
	}
	tv := c.typeFor(col)

	numeric := tv != nil && tv.Primitive == validator.Numb
	if tv == nil {
		numeric = true
		for i := c.head; i >= 0 && numeric; i = c.rows[i].next {
			v, _ := c.rows[i].get(uint16(col))
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				numeric = false
			}
		}
	}

	if numeric {
		var highest int64
		for i := c.head; i >= 0; i = c.rows[i].next {
			v, _ := c.rows[i].get(uint16(col))
			if n, err := types.ParseInt(v); err == nil && n > highest {
				highest = n
			}
		}
		return strconv.FormatInt(highest+1, 10), nil
	}

	for n := c.size + 1; ; n++ {
		candidate := fmt.Sprintf("%s_id_%d", c.name, n)
		exists, err := c.Exists(Key(key).Eq(candidate))
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
}
