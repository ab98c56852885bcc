package cif

import (
	"fmt"
	"math"

	cerrors "github.com/arkilian/cifstore/internal/errors"
)

// inlineSize is the number of bytes stored inside the item record itself.
const inlineSize = 8

// MaxValueLength is the longest text an item can hold.
const MaxValueLength = math.MaxUint16

// item is one stored value. Short text lives in local; longer text is
// copied into data, which the item owns.
type item struct {
	column uint16
	length uint16
	local  [inlineSize]byte
	data   []byte
}

func newItem(column uint16, text string) (item, error) {
	if len(text) > MaxValueLength {
		return item{}, cerrors.NewValueError(cerrors.CodeValueTooLong,
			fmt.Sprintf("value of %d bytes exceeds the maximum of %d", len(text), MaxValueLength))
	}
	it := item{column: column, length: uint16(len(text))}
	if len(text) <= inlineSize {
		copy(it.local[:], text)
	} else {
		it.data = []byte(text)
	}
	return it, nil
}

func (it *item) text() string {
	if it.data != nil {
		return string(it.data)
	}
	return string(it.local[:it.length])
}

// rowSlot is an entry in a category's row arena.
type rowSlot struct {
	items []item
	prev  int32
	next  int32
	gen   uint32
	live  bool
}

func (s *rowSlot) find(column uint16) int {
	for i := range s.items {
		if s.items[i].column == column {
			return i
		}
	}
	return -1
}

// get returns the text for column and whether an item is present.
func (s *rowSlot) get(column uint16) (string, bool) {
	if i := s.find(column); i >= 0 {
		return s.items[i].text(), true
	}
	return "", false
}

// put stores text for column. An empty text removes the item.
func (s *rowSlot) put(column uint16, text string) error {
	i := s.find(column)
	if text == "" {
		if i >= 0 {
			s.items = append(s.items[:i], s.items[i+1:]...)
		}
		return nil
	}
	it, err := newItem(column, text)
	if err != nil {
		return err
	}
	if i >= 0 {
		s.items[i] = it
	} else {
		s.items = append(s.items, it)
	}
	return nil
}

// clone returns a deep copy of the slot's items.
func (s *rowSlot) clone() []item {
	out := make([]item, len(s.items))
	for i, it := range s.items {
		out[i] = it
		if it.data != nil {
			out[i].data = append([]byte(nil), it.data...)
		}
	}
	return out
}
