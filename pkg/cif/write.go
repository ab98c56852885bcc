package cif

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	cerrors "github.com/arkilian/cifstore/internal/errors"
	"github.com/arkilian/cifstore/pkg/types"
)

const separator = "# \n"

// Write writes the category in column order. Empty categories produce no
// output.
func (c *Category) Write(w io.Writer) error {
	return c.WriteOrdered(w, nil)
}

// WriteOrdered writes the category with the named items first, in the
// given order, followed by the remaining columns. Names may be given with
// or without the category prefix.
func (c *Category) WriteOrdered(w io.Writer, order []string) error {
	bw := bufio.NewWriter(w)
	if err := c.write(bw, c.columnOrder(order)); err != nil {
		return err
	}
	return bw.Flush()
}

func (c *Category) columnOrder(order []string) []int {
	cols := make([]int, 0, len(c.columns))
	used := make([]bool, len(c.columns))
	for _, tag := range order {
		cat, item := types.SplitTagName(tag)
		if cat != "" && !strings.EqualFold(cat, c.name) {
			continue
		}
		if col, ok := c.ColumnIndex(item); ok && !used[col] {
			used[col] = true
			cols = append(cols, col)
		}
	}
	for col := range c.columns {
		if !used[col] {
			cols = append(cols, col)
		}
	}
	return cols
}

func (c *Category) write(w *bufio.Writer, cols []int) error {
	if c.size == 0 || len(cols) == 0 {
		return nil
	}
	if err := c.checkWritable(cols); err != nil {
		return err
	}

	if c.size == 1 {
		c.writeSingle(w, cols)
	} else {
		c.writeLoop(w, cols)
	}
	w.WriteString(separator)
	return nil
}

// checkWritable fails on the first value that cannot be written back in a
// form the reader accepts.
func (c *Category) checkWritable(cols []int) error {
	for i := c.head; i >= 0; i = c.rows[i].next {
		for _, col := range cols {
			if v, _ := c.rows[i].get(uint16(col)); !isWritable(v) {
				return cerrors.NewValueError(cerrors.CodeUnwritable,
					fmt.Sprintf("value for %s cannot be written as CIF", types.JoinTagName(c.name, c.columns[col].name)))
			}
		}
	}
	return nil
}

func (c *Category) writeSingle(w *bufio.Writer, cols []int) {
	s := &c.rows[c.head]

	width := 0
	for _, col := range cols {
		if l := len(c.name) + len(c.columns[col].name) + 2; l > width {
			width = l
		}
	}

	for _, col := range cols {
		tag := types.JoinTagName(c.name, c.columns[col].name)
		v, _ := s.get(uint16(col))
		q, textField := quote(v)

		w.WriteString(tag)
		switch {
		case textField:
			w.WriteString("\n;")
			w.WriteString(q)
			w.WriteString("\n;\n")
		case width+1+len(q) > c.opts.lineWidth:
			w.WriteString("\n")
			w.WriteString(q)
			w.WriteString("\n")
		default:
			w.WriteString(strings.Repeat(" ", width+1-len(tag)))
			w.WriteString(q)
			w.WriteString("\n")
		}
	}
}

func (c *Category) writeLoop(w *bufio.Writer, cols []int) {
	w.WriteString("loop_\n")
	for _, col := range cols {
		w.WriteString(types.JoinTagName(c.name, c.columns[col].name))
		w.WriteString("\n")
	}

	widths := make([]int, len(cols))
	for i := c.head; i >= 0; i = c.rows[i].next {
		for j, col := range cols {
			v, _ := c.rows[i].get(uint16(col))
			if q, textField := quote(v); !textField && len(q) > widths[j] {
				widths[j] = len(q)
			}
		}
	}

	for i := c.head; i >= 0; i = c.rows[i].next {
		pos := 0
		for j, col := range cols {
			v, _ := c.rows[i].get(uint16(col))
			q, textField := quote(v)

			if textField {
				if pos > 0 {
					w.WriteString("\n")
				}
				w.WriteString(";")
				w.WriteString(q)
				w.WriteString("\n;\n")
				pos = 0
				continue
			}

			if pos > 0 {
				if pos+1+len(q) > c.opts.lineWidth {
					w.WriteString("\n")
					pos = 0
				} else {
					w.WriteString(" ")
					pos++
				}
			}
			w.WriteString(q)
			pos += len(q)
			if j < len(cols)-1 && len(q) < widths[j] {
				pad := widths[j] - len(q)
				w.WriteString(strings.Repeat(" ", pad))
				pos += pad
			}
		}
		if pos > 0 {
			w.WriteString("\n")
		}
	}
}

// Write writes the datablock: entry first, then audit_conform, then the
// remaining categories in order. When the dictionary declares
// audit_conform, that category is generated from the dictionary name and
// version.
func (d *Datablock) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	d.writeHeader(bw)

	conform := d.conformFromDictionary()
	wroteConform := false
	for _, c := range d.outputOrder() {
		if conform && strings.EqualFold(c.name, "audit_conform") {
			continue
		}
		if conform && !wroteConform && !strings.EqualFold(c.name, "entry") {
			d.writeAuditConform(bw)
			wroteConform = true
		}
		if err := c.write(bw, c.columnOrder(nil)); err != nil {
			return err
		}
	}
	if conform && !wroteConform {
		d.writeAuditConform(bw)
	}
	return bw.Flush()
}

func (d *Datablock) writeHeader(w *bufio.Writer) {
	w.WriteString("data_")
	w.WriteString(d.name)
	w.WriteString("\n")
	w.WriteString(separator)
}

func (d *Datablock) conformFromDictionary() bool {
	return d.validator != nil && d.validator.CategoryValidator("audit_conform") != nil
}

func (d *Datablock) writeAuditConform(w *bufio.Writer) {
	c := newCategory("audit_conform", d.opts, nil)
	values := []types.Value{types.NewValue("dict_name", d.validator.Name())}
	if v := d.validator.Version(); v != "" {
		values = append(values, types.NewValue("dict_version", v))
	}
	if _, err := c.Emplace(values...); err == nil {
		_ = c.write(w, c.columnOrder(nil))
	}
}

// WriteOrdered writes the datablock with categories and items in the order
// of the given tags. Categories not named in order follow in their usual
// output order.
func (d *Datablock) WriteOrdered(w io.Writer, order []string) error {
	bw := bufio.NewWriter(w)
	d.writeHeader(bw)

	var cats []*Category
	seen := make(map[*Category]bool)
	for _, tag := range order {
		cat, _ := types.SplitTagName(tag)
		if c := d.Get(cat); c != nil && !seen[c] {
			seen[c] = true
			cats = append(cats, c)
		}
	}
	for _, c := range d.outputOrder() {
		if !seen[c] {
			cats = append(cats, c)
		}
	}

	for _, c := range cats {
		if err := c.write(bw, c.columnOrder(order)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Write writes every datablock in order.
func (f *File) Write(w io.Writer) error {
	for _, d := range f.blocks {
		if err := d.Write(w); err != nil {
			return err
		}
	}
	return nil
}
