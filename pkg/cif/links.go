package cif

import (
	"errors"
	"fmt"
	"strings"

	cerrors "github.com/arkilian/cifstore/internal/errors"
	"github.com/arkilian/cifstore/pkg/types"
	"github.com/arkilian/cifstore/pkg/validator"
)

// parentCondition selects the parent rows referred to by child row r
// through link. Empty child values require an empty parent value.
func parentCondition(link *validator.LinkValidator, r Row) Condition {
	var cond Condition
	for i, ck := range link.ChildKeys {
		cond = cond.And(keyEq(link.ParentKeys[i], r.Text(ck)))
	}
	return cond
}

// childCondition selects the child rows referring to parent row r through
// link.
func childCondition(link *validator.LinkValidator, r Row) Condition {
	var cond Condition
	for i, pk := range link.ParentKeys {
		cond = cond.And(keyEq(link.ChildKeys[i], r.Text(pk)))
	}
	return cond
}

// IsOrphan reports whether row has no parent row through any of the links
// in which its category is the child. Categories without links never have
// orphans.
func (c *Category) IsOrphan(row Row) (bool, error) {
	if !row.Valid() || row.cat != c {
		return false, errInvalidRow()
	}
	if c.validator == nil || c.block == nil {
		return false, nil
	}

	links := c.validator.LinksForChild(c.name)
	if len(links) == 0 {
		return false, nil
	}

	for _, link := range links {
		parent := c.block.Get(link.ParentCategory)
		if parent == nil {
			continue
		}
		found, err := parent.Exists(parentCondition(link, row))
		if err != nil {
			return false, err
		}
		if found {
			return false, nil
		}
	}
	return true, nil
}

// EraseOrphans removes the rows matching cond that are orphans. Removal
// cascades.
func (c *Category) EraseOrphans(cond Condition) error {
	j := c.journal()
	j.begin()
	return j.end(c.eraseOrphans(cond))
}

func (c *Category) eraseOrphans(cond Condition) error {
	rows, err := c.Find(cond)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if !r.Valid() {
			continue
		}
		orphan, err := c.IsOrphan(r)
		if err != nil {
			return err
		}
		if !orphan {
			continue
		}
		if c.opts.verbosity > 1 {
			c.opts.logger.Debug("cascade: erase orphan", "category", c.name, "op", c.journal().op)
		}
		if err := c.erase(r.idx); err != nil {
			return err
		}
	}
	return nil
}

func (c *Category) linksTo(other *Category, parent bool) []*validator.LinkValidator {
	if c.validator == nil {
		return nil
	}
	var out []*validator.LinkValidator
	if parent {
		for _, l := range c.validator.LinksForParent(c.name) {
			if strings.EqualFold(l.ChildCategory, other.name) {
				out = append(out, l)
			}
		}
	} else {
		for _, l := range c.validator.LinksForChild(c.name) {
			if strings.EqualFold(l.ParentCategory, other.name) {
				out = append(out, l)
			}
		}
	}
	return out
}

// collect runs each condition against c and returns the union of the
// matching rows in c's order.
func (c *Category) collect(conds []Condition) ([]Row, error) {
	hit := make(map[int32]bool)
	for _, cond := range conds {
		rows, err := c.Find(cond)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			hit[r.idx] = true
		}
	}
	var out []Row
	for i := c.head; i >= 0; i = c.rows[i].next {
		if hit[i] {
			out = append(out, c.handle(i))
		}
	}
	return out, nil
}

// GetChildren returns the rows of childCat that refer to row.
func (c *Category) GetChildren(row Row, childCat *Category) ([]Row, error) {
	if !row.Valid() || row.cat != c {
		return nil, errInvalidRow()
	}
	var conds []Condition
	for _, link := range c.linksTo(childCat, true) {
		conds = append(conds, childCondition(link, row))
	}
	return childCat.collect(conds)
}

// GetParents returns the rows of parentCat that row refers to.
func (c *Category) GetParents(row Row, parentCat *Category) ([]Row, error) {
	if !row.Valid() || row.cat != c {
		return nil, errInvalidRow()
	}
	var conds []Condition
	for _, link := range c.linksTo(parentCat, false) {
		conds = append(conds, parentCondition(link, row))
	}
	return parentCat.collect(conds)
}

// GetLinked returns the children of row in cat, or its parents when cat is
// a parent category.
func (c *Category) GetLinked(row Row, cat *Category) ([]Row, error) {
	if len(c.linksTo(cat, true)) > 0 {
		return c.GetChildren(row, cat)
	}
	if len(c.linksTo(cat, false)) > 0 {
		return c.GetParents(row, cat)
	}
	return nil, nil
}

// HasChildren reports whether any row in a child category refers to row.
func (c *Category) HasChildren(row Row) (bool, error) {
	if !row.Valid() || row.cat != c {
		return false, errInvalidRow()
	}
	if c.validator == nil || c.block == nil {
		return false, nil
	}
	for _, link := range c.validator.LinksForParent(c.name) {
		child := c.block.Get(link.ChildCategory)
		if child == nil {
			continue
		}
		found, err := child.Exists(childCondition(link, row))
		if err != nil || found {
			return found, err
		}
	}
	return false, nil
}

// HasParents reports whether row refers to a row in any parent category.
func (c *Category) HasParents(row Row) (bool, error) {
	if !row.Valid() || row.cat != c {
		return false, errInvalidRow()
	}
	if c.validator == nil || c.block == nil {
		return false, nil
	}
	for _, link := range c.validator.LinksForChild(c.name) {
		parent := c.block.Get(link.ParentCategory)
		if parent == nil {
			continue
		}
		found, err := parent.Exists(parentCondition(link, row))
		if err != nil || found {
			return found, err
		}
	}
	return false, nil
}

// ValidateLinks reports every child row whose non-empty link values do not
// match a parent row.
func (d *Datablock) ValidateLinks() error {
	if d.validator == nil {
		return nil
	}

	var errs []error
	for _, link := range d.validator.Links() {
		child := d.Get(link.ChildCategory)
		if child == nil {
			continue
		}
		parent := d.Get(link.ParentCategory)

		for _, r := range child.Rows() {
			var cond Condition
			var values []string
			for i, ck := range link.ChildKeys {
				cv := r.Text(ck)
				if types.IsEmpty(cv) {
					continue
				}
				cond = cond.And(Key(link.ParentKeys[i]).Eq(cv))
				values = append(values, types.JoinTagName(child.name, ck)+"="+cv)
			}
			if cond.Empty() {
				continue
			}

			found := false
			if parent != nil {
				var err error
				if found, err = parent.Exists(cond); err != nil {
					return err
				}
			}
			if !found {
				errs = append(errs, cerrors.NewLinkError(cerrors.CodeMissingParent,
					fmt.Sprintf("no parent in %s for %s", link.ParentCategory, strings.Join(values, ", "))).
					WithDetails(map[string]interface{}{"link_group": link.LinkGroupID}))
			}
		}
	}
	return errors.Join(errs...)
}
