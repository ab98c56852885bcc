package cif

import (
	"github.com/arkilian/cifstore/pkg/types"
)

// Row is a lightweight reference to a row in a category. It stays valid
// until the row is erased; a stale handle reports Valid() == false and
// reads as an empty row.
type Row struct {
	cat *Category
	idx int32
	gen uint32
}

// Valid reports whether the handle still refers to a live row.
func (r Row) Valid() bool {
	return r.cat != nil && r.idx >= 0 && int(r.idx) < len(r.cat.rows) &&
		r.cat.rows[r.idx].live && r.cat.rows[r.idx].gen == r.gen
}

// Category returns the category the row belongs to.
func (r Row) Category() *Category { return r.cat }

func (r Row) slot() *rowSlot {
	if !r.Valid() {
		return nil
	}
	return &r.cat.rows[r.idx]
}

// Text returns the stored text for tag, or "" when absent.
func (r Row) Text(tag string) string {
	s := r.slot()
	if s == nil {
		return ""
	}
	col, ok := r.cat.ColumnIndex(tag)
	if !ok {
		return ""
	}
	text, _ := s.get(uint16(col))
	return text
}

// Has reports whether the row carries an item for tag.
func (r Row) Has(tag string) bool {
	s := r.slot()
	if s == nil {
		return false
	}
	col, ok := r.cat.ColumnIndex(tag)
	if !ok {
		return false
	}
	_, present := s.get(uint16(col))
	return present
}

// IsNull reports whether the value for tag is ".".
func (r Row) IsNull(tag string) bool { return r.Text(tag) == types.Null }

// IsUnknown reports whether the value for tag is "?".
func (r Row) IsUnknown(tag string) bool { return r.Text(tag) == types.Unknown }

// IsEmpty reports whether the value for tag is absent, null or unknown.
func (r Row) IsEmpty(tag string) bool { return types.IsEmpty(r.Text(tag)) }

func (r Row) convert(tag string, kind types.Kind, optional bool) types.Converted {
	c, err := types.Convert(r.Text(tag), kind, optional)
	if err != nil && r.cat != nil && r.cat.opts.verbosity > 0 {
		r.cat.opts.logger.Warn("row: conversion failed",
			"category", r.cat.name, "tag", tag, "kind", kind.String(), "error", err)
	}
	return c
}

// String returns the value for tag as text. Null and unknown read as "".
func (r Row) String(tag string) string { return r.convert(tag, types.KindText, false).Text }

// Int returns the value for tag as an integer, zero when empty or malformed.
func (r Row) Int(tag string) int64 { return r.convert(tag, types.KindInt, false).Int }

// Float returns the value for tag as a float, zero when empty or malformed.
func (r Row) Float(tag string) float64 { return r.convert(tag, types.KindFloat, false).Float }

// Bool returns true when the value for tag is "y", in any case.
func (r Row) Bool(tag string) bool { return r.convert(tag, types.KindBool, false).Bool }

// Optional converts the value for tag to kind. The result is not present
// when the value is empty.
func (r Row) Optional(tag string, kind types.Kind) types.Converted {
	return r.convert(tag, kind, true)
}

// Values returns the row's items in insertion order.
func (r Row) Values() []types.Value {
	s := r.slot()
	if s == nil {
		return nil
	}
	out := make([]types.Value, 0, len(s.items))
	for i := range s.items {
		out = append(out, types.NewValue(r.cat.columns[s.items[i].column].name, s.items[i].text()))
	}
	return out
}

// Set assigns value to tag and cascades the change to linked categories.
// Assigning "" removes the item.
func (r Row) Set(tag, value string) error {
	if !r.Valid() {
		return errInvalidRow()
	}
	return r.cat.UpdateValue([]Row{r}, tag, value)
}
