package cif

import (
	"fmt"
	"io"
	"strings"

	"github.com/arkilian/cifstore/internal/cifparser"
	cerrors "github.com/arkilian/cifstore/internal/errors"
)

// Builder receives parser output and stores it in a File or a single
// Datablock. Values are validated non-fatally.
type Builder struct {
	file  *File
	block *Datablock
	cat   *Category
	row   Row
}

var _ cifparser.Producer = (*Builder)(nil)

// NewBuilder returns a Builder that adds datablocks to f.
func NewBuilder(f *File) *Builder {
	return &Builder{file: f}
}

// NewBlockBuilder returns a Builder that stores every category in d. A
// datablock header in the input is ignored.
func NewBlockBuilder(d *Datablock) *Builder {
	return &Builder{block: d}
}

// ProduceDatablock starts a new datablock.
func (b *Builder) ProduceDatablock(name string) error {
	if b.file != nil {
		b.block = b.file.Append(name)
	}
	b.cat = nil
	b.row = Row{}
	return nil
}

// ProduceCategory makes name the active category.
func (b *Builder) ProduceCategory(name string) error {
	if b.block == nil {
		return cerrors.NewStructureError(cerrors.CodeOutOfOrder, "category "+name+" outside a datablock")
	}
	b.cat = b.block.Category(name)
	b.row = Row{}
	return nil
}

// ProduceRow appends an empty row to the active category.
func (b *Builder) ProduceRow() error {
	if b.cat == nil {
		return cerrors.NewStructureError(cerrors.CodeOutOfOrder, "row outside a category")
	}
	row, err := b.cat.Emplace()
	if err != nil {
		return err
	}
	b.row = row
	return nil
}

// ProduceItem stores value in the active row.
func (b *Builder) ProduceItem(category, item, value string) error {
	if b.cat == nil || !b.row.Valid() {
		return cerrors.NewStructureError(cerrors.CodeOutOfOrder, "item outside a row")
	}
	if !strings.EqualFold(category, b.cat.name) {
		return cerrors.NewStructureError(cerrors.CodeInconsistentCategory,
			fmt.Sprintf("item for category %s while producing %s", category, b.cat.name))
	}
	return b.cat.produceItem(b.row.idx, item, value)
}

// Read parses r into a new File.
func Read(r io.Reader, opts ...Option) (*File, error) {
	f := NewFile(opts...)
	if err := f.Load(r); err != nil {
		return nil, err
	}
	return f, nil
}

// ReadString parses s into a new File.
func ReadString(s string, opts ...Option) (*File, error) {
	return Read(strings.NewReader(s), opts...)
}

// Load parses r and adds its datablocks to f. An attached dictionary is
// applied while loading.
func (f *File) Load(r io.Reader) error {
	return cifparser.Parse(r, NewBuilder(f))
}

// LoadString is Load for a string.
func (f *File) LoadString(s string) error {
	return cifparser.ParseString(s, NewBuilder(f))
}
