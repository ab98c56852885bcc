package cif

import (
	"errors"
	"slices"
	"strings"

	"github.com/arkilian/cifstore/pkg/validator"
)

// File is an ordered collection of datablocks sharing one dictionary.
type File struct {
	opts      *options
	blocks    []*Datablock
	validator *validator.Validator
}

// NewFile returns an empty file.
func NewFile(opts ...Option) *File {
	return &File{opts: newOptions(opts)}
}

// Len returns the number of datablocks.
func (f *File) Len() int { return len(f.blocks) }

// Blocks returns the datablocks in order.
func (f *File) Blocks() []*Datablock { return slices.Clone(f.blocks) }

// Validator returns the attached dictionary, or nil.
func (f *File) Validator() *validator.Validator { return f.validator }

// Front returns the first datablock, or nil.
func (f *File) Front() *Datablock {
	if len(f.blocks) == 0 {
		return nil
	}
	return f.blocks[0]
}

func (f *File) find(name string) int {
	for i, d := range f.blocks {
		if strings.EqualFold(d.name, name) {
			return i
		}
	}
	return -1
}

// Get returns the named datablock, or nil.
func (f *File) Get(name string) *Datablock {
	if i := f.find(name); i >= 0 {
		return f.blocks[i]
	}
	return nil
}

func (f *File) newDatablock(name string) *Datablock {
	d := newDatablock(name, f.opts)
	if f.validator != nil {
		_ = d.SetValidator(f.validator)
	}
	return d
}

// Emplace moves the named datablock to the front, creating it there when
// absent. It reports whether the datablock is new.
func (f *File) Emplace(name string) (*Datablock, bool) {
	if i := f.find(name); i >= 0 {
		d := f.blocks[i]
		if i > 0 {
			copy(f.blocks[1:i+1], f.blocks[:i])
			f.blocks[0] = d
		}
		return d, false
	}
	d := f.newDatablock(name)
	f.blocks = append([]*Datablock{d}, f.blocks...)
	return d, true
}

// Append returns the named datablock, adding a new one at the back when
// absent.
func (f *File) Append(name string) *Datablock {
	if d := f.Get(name); d != nil {
		return d
	}
	d := f.newDatablock(name)
	f.blocks = append(f.blocks, d)
	return d
}

// SetValidator attaches v to every datablock and category.
func (f *File) SetValidator(v *validator.Validator) error {
	f.validator = v
	var errs []error
	for _, d := range f.blocks {
		if err := d.SetValidator(v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Validate validates every datablock.
func (f *File) Validate() error {
	var errs []error
	for _, d := range f.blocks {
		if err := d.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Equal reports whether both files hold equal datablocks in the same order.
func (f *File) Equal(o *File) bool {
	if len(f.blocks) != len(o.blocks) {
		return false
	}
	for i := range f.blocks {
		if !strings.EqualFold(f.blocks[i].name, o.blocks[i].name) || !f.blocks[i].Equal(o.blocks[i]) {
			return false
		}
	}
	return true
}
