// Package types provides the value types shared by the cifstore engine,
// the dictionary loaders and the CLI.
package types

import (
	"strconv"
	"strings"
)

// Reserved single character payloads.
const (
	// Null marks a value as explicitly inapplicable.
	Null = "."
	// Unknown marks a value as not supplied.
	Unknown = "?"
)

// Value is a (name, text) pair used to construct rows. It is never stored
// in this form; categories copy the text into their own item storage.
type Value struct {
	// Name is the item tag without category prefix, e.g. "id" for _atom_site.id
	Name string `json:"name" yaml:"name"`

	// Text is the value exactly as it appears in the exchange format
	Text string `json:"text" yaml:"text"`
}

// NewValue returns a value for name holding text.
func NewValue(name, text string) Value {
	return Value{Name: name, Text: text}
}

// NewInt returns a value holding the decimal representation of v.
func NewInt(name string, v int64) Value {
	return Value{Name: name, Text: strconv.FormatInt(v, 10)}
}

// NewNumber returns a value holding v formatted with a fixed number of
// decimals. A negative precision uses the shortest representation.
func NewNumber(name string, v float64, precision int) Value {
	return Value{Name: name, Text: strconv.FormatFloat(v, 'f', precision, 64)}
}

// NewBool returns a value holding "y" or "n".
func NewBool(name string, v bool) Value {
	if v {
		return Value{Name: name, Text: "y"}
	}
	return Value{Name: name, Text: "n"}
}

// Equal compares both name and text. Names always compare case-insensitively;
// foldCase selects case-insensitive comparison of the text as well.
func (v Value) Equal(o Value, foldCase bool) bool {
	if !strings.EqualFold(v.Name, o.Name) {
		return false
	}
	if foldCase {
		return strings.EqualFold(v.Text, o.Text)
	}
	return v.Text == o.Text
}

// IsEmpty reports whether the value is absent, null or unknown.
func (v Value) IsEmpty() bool { return IsEmpty(v.Text) }

// IsNull reports whether the value is the null marker.
func (v Value) IsNull() bool { return v.Text == Null }

// IsUnknown reports whether the value is the unknown marker.
func (v Value) IsUnknown() bool { return v.Text == Unknown }

// IsEmpty reports whether text is absent (""), null (".") or unknown ("?").
func IsEmpty(text string) bool {
	return text == "" || text == Null || text == Unknown
}

// SplitTagName splits "_category.item" into its category and item parts.
// The leading underscore is optional. A tag without a dot yields an empty
// category.
func SplitTagName(tag string) (category, item string) {
	tag = strings.TrimPrefix(tag, "_")
	if i := strings.IndexByte(tag, '.'); i >= 0 {
		return tag[:i], tag[i+1:]
	}
	return "", tag
}

// JoinTagName builds "_category.item".
func JoinTagName(category, item string) string {
	return "_" + category + "." + item
}
