package types

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	cerrors "github.com/arkilian/cifstore/internal/errors"
)

// Kind selects the result type of a conversion.
type Kind uint8

const (
	KindText Kind = iota
	KindInt
	KindFloat
	KindBool
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Converted is the result of converting stored text. Exactly one of the
// typed fields is meaningful, selected by Kind.
type Converted struct {
	// Kind is the requested result type
	Kind Kind

	// Optional is set when the caller asked for an optional-wrapped result
	Optional bool

	// Present is false only for optional conversions of an empty value
	Present bool

	Text  string
	Int   int64
	Float float64
	Bool  bool
}

// Convert converts text to the requested kind.
//
// Malformed numeric text yields the zero value together with a non-fatal
// MALFORMED_VALUE error; callers are expected to log it and carry on.
// Empty values (absent, "." or "?") convert to the zero value without error,
// or to a non-present result when optional is set.
func Convert(text string, kind Kind, optional bool) (Converted, error) {
	c := Converted{Kind: kind, Optional: optional, Present: true}

	if IsEmpty(text) {
		if optional {
			c.Present = false
		}
		return c, nil
	}

	switch kind {
	case KindText:
		c.Text = text
	case KindBool:
		c.Bool = strings.EqualFold(text, "y")
	case KindInt:
		v, err := ParseInt(text)
		if err != nil {
			return c, err
		}
		c.Int = v
	case KindFloat:
		v, err := ParseFloat(text)
		if err != nil {
			return c, err
		}
		c.Float = v
	default:
		return c, cerrors.NewValueError(cerrors.CodeMalformedValue, fmt.Sprintf("unsupported conversion to %s", kind))
	}
	return c, nil
}

// ParseFloat parses a number, ignoring a trailing standard uncertainty such
// as the "(5)" in "1.234(5)".
func ParseFloat(text string) (float64, error) {
	s := stripUncertainty(strings.TrimSpace(text))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, cerrors.NewValueError(cerrors.CodeMalformedValue, fmt.Sprintf("%q is not a number", text))
	}
	return v, nil
}

// ParseInt parses an integer. Text holding an integral floating point
// number is accepted and truncated.
func ParseInt(text string) (int64, error) {
	s := stripUncertainty(strings.TrimSpace(text))
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || math.Abs(f) > math.MaxInt64 {
		return 0, cerrors.NewValueError(cerrors.CodeMalformedValue, fmt.Sprintf("%q is not an integer", text))
	}
	return int64(f), nil
}

func stripUncertainty(s string) string {
	if strings.HasSuffix(s, ")") {
		if i := strings.LastIndexByte(s, '('); i > 0 {
			return s[:i]
		}
	}
	return s
}
