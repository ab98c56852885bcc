package cif

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	cerrors "github.com/arkilian/cifstore/internal/errors"
	"github.com/arkilian/cifstore/pkg/validator"
)

// Datablock is a named, ordered collection of categories.
type Datablock struct {
	name       string
	opts       *options
	jrnl       *journal
	categories []*Category
	validator  *validator.Validator
}

// NewDatablock returns an empty datablock.
func NewDatablock(name string, opts ...Option) *Datablock {
	return newDatablock(name, newOptions(opts))
}

func newDatablock(name string, o *options) *Datablock {
	return &Datablock{name: name, opts: o, jrnl: newJournal()}
}

// Name returns the datablock name.
func (d *Datablock) Name() string { return d.name }

// Len returns the number of categories.
func (d *Datablock) Len() int { return len(d.categories) }

// Categories returns the categories in order.
func (d *Datablock) Categories() []*Category { return slices.Clone(d.categories) }

// Validator returns the attached dictionary, or nil.
func (d *Datablock) Validator() *validator.Validator { return d.validator }

func (d *Datablock) find(name string) int {
	for i, c := range d.categories {
		if strings.EqualFold(c.name, name) {
			return i
		}
	}
	return -1
}

// Get returns the named category, or nil.
func (d *Datablock) Get(name string) *Category {
	if i := d.find(name); i >= 0 {
		return d.categories[i]
	}
	return nil
}

func (d *Datablock) newCategory(name string) *Category {
	c := newCategory(name, d.opts, d)
	if d.validator != nil {
		// an undeclared category is reported again by Validate
		_ = c.SetValidator(d.validator)
	}
	return c
}

// Category returns the named category, appending a new one when absent.
func (d *Datablock) Category(name string) *Category {
	if c := d.Get(name); c != nil {
		return c
	}
	c := d.newCategory(name)
	d.categories = append(d.categories, c)
	return c
}

// Emplace moves the named category to the front, creating it there when
// absent. It reports whether the category is new.
func (d *Datablock) Emplace(name string) (*Category, bool) {
	if i := d.find(name); i >= 0 {
		c := d.categories[i]
		if i > 0 {
			copy(d.categories[1:i+1], d.categories[:i])
			d.categories[0] = c
		}
		return c, false
	}
	c := d.newCategory(name)
	d.categories = append([]*Category{c}, d.categories...)
	return c, true
}

// Remove deletes the named category without cascading.
func (d *Datablock) Remove(name string) bool {
	i := d.find(name)
	if i < 0 {
		return false
	}
	d.categories = slices.Delete(d.categories, i, i+1)
	return true
}

// SetValidator attaches v to every category.
func (d *Datablock) SetValidator(v *validator.Validator) error {
	d.validator = v
	var errs []error
	for _, c := range d.categories {
		if err := c.SetValidator(v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Validate checks every category against the dictionary and reports missing
// mandatory categories.
func (d *Datablock) Validate() error {
	if d.validator == nil {
		return cerrors.NewSchemaError(cerrors.CodeValidationFailed,
			fmt.Sprintf("no dictionary attached to datablock %s", d.name))
	}

	var errs []error
	for _, cv := range d.validator.Categories() {
		if cv.Mandatory && d.Get(cv.Name) == nil {
			errs = append(errs, cerrors.NewSchemaError(cerrors.CodeMissingMandatory,
				fmt.Sprintf("missing mandatory category %s", cv.Name)))
		}
	}
	for _, c := range d.categories {
		if err := c.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GetTagOrder returns all tags in output order: entry first, then
// audit_conform, then the remaining categories.
func (d *Datablock) GetTagOrder() []string {
	var out []string
	for _, c := range d.outputOrder() {
		out = append(out, c.GetTagOrder()...)
	}
	return out
}

func (d *Datablock) outputOrder() []*Category {
	out := make([]*Category, 0, len(d.categories))
	for _, name := range []string{"entry", "audit_conform"} {
		if c := d.Get(name); c != nil {
			out = append(out, c)
		}
	}
	for _, c := range d.categories {
		if !strings.EqualFold(c.name, "entry") && !strings.EqualFold(c.name, "audit_conform") {
			out = append(out, c)
		}
	}
	return out
}

// Equal reports whether both datablocks hold the same non-empty categories
// with the same rows. Category order and row order are ignored.
func (d *Datablock) Equal(o *Datablock) bool {
	a, b := d.nonEmptyNames(), o.nonEmptyNames()
	if !slices.Equal(a, b) {
		return false
	}
	for _, name := range a {
		if !d.Get(name).Equal(o.Get(name)) {
			return false
		}
	}
	return true
}

func (d *Datablock) nonEmptyNames() []string {
	var out []string
	for _, c := range d.categories {
		if !c.Empty() {
			out = append(out, strings.ToLower(c.name))
		}
	}
	sort.Strings(out)
	return out
}
