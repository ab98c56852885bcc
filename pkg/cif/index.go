package cif

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spaolacci/murmur3"

	cerrors "github.com/arkilian/cifstore/internal/errors"
	"github.com/arkilian/cifstore/pkg/types"
)

// keyIndex maps the hash of a row's complete key to the rows carrying it.
// Rows with an empty key value are not indexed.
type keyIndex struct {
	cat     *Category
	buckets map[uint64][]int32
}

func newKeyIndex(c *Category) *keyIndex {
	return &keyIndex{cat: c, buckets: make(map[uint64][]int32)}
}

// keyOf returns the key values of row idx and whether the key is complete.
func (ix *keyIndex) keyOf(idx int32) ([]string, bool) {
	keys := ix.cat.catValidator.Keys
	out := make([]string, len(keys))
	for i, k := range keys {
		col, ok := ix.cat.ColumnIndex(k)
		if !ok {
			return nil, false
		}
		v, _ := ix.cat.rows[idx].get(uint16(col))
		if types.IsEmpty(v) {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func (ix *keyIndex) normalize(i int, v string) string {
	if iv := ix.cat.catValidator.ItemValidator(ix.cat.catValidator.Keys[i]); iv != nil && iv.Type != nil {
		return iv.Type.Normalize(v)
	}
	return v
}

func (ix *keyIndex) hash(values []string) uint64 {
	var buf []byte
	for i, v := range values {
		if i > 0 {
			buf = append(buf, 0)
		}
		buf = append(buf, ix.normalize(i, v)...)
	}
	return murmur3.Sum64(buf)
}

func (ix *keyIndex) equal(a, b []string) bool {
	for i := range a {
		iv := ix.cat.catValidator.ItemValidator(ix.cat.catValidator.Keys[i])
		if iv != nil && iv.Type != nil {
			if iv.Type.Compare(a[i], b[i]) != 0 {
				return false
			}
		} else if a[i] != b[i] {
			return false
		}
	}
	return true
}

// find returns the row holding values as its key, or -1.
func (ix *keyIndex) find(values []string) int32 {
	for _, idx := range ix.buckets[ix.hash(values)] {
		if other, ok := ix.keyOf(idx); ok && ix.equal(values, other) {
			return idx
		}
	}
	return -1
}

// insert indexes row idx. A complete key that is already present is
// rejected with a KEY error.
func (ix *keyIndex) insert(idx int32) error {
	values, ok := ix.keyOf(idx)
	if !ok {
		return nil
	}
	h := ix.hash(values)
	for _, other := range ix.buckets[h] {
		if other == idx {
			return nil
		}
		if ov, ok := ix.keyOf(other); ok && ix.equal(values, ov) {
			return cerrors.NewKeyError(fmt.Sprintf("duplicate key (%s) in category %s",
				strings.Join(values, ", "), ix.cat.name)).
				WithDetails(map[string]interface{}{"category": ix.cat.name, "key": values})
		}
	}
	ix.buckets[h] = append(ix.buckets[h], idx)
	return nil
}

// remove drops row idx, using its current key values.
func (ix *keyIndex) remove(idx int32) {
	values, ok := ix.keyOf(idx)
	if !ok {
		return
	}
	h := ix.hash(values)
	bucket := ix.buckets[h]
	for i, other := range bucket {
		if other == idx {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(ix.buckets, h)
	} else {
		ix.buckets[h] = bucket
	}
}

// rebuild indexes all live rows. Duplicates are left out and returned.
func (ix *keyIndex) rebuild() error {
	ix.buckets = make(map[uint64][]int32)
	var errs []error
	for i := ix.cat.head; i >= 0; i = ix.cat.rows[i].next {
		if err := ix.insert(i); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
