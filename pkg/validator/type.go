package validator

import (
	"fmt"
	"regexp"
	"strings"

	cerrors "github.com/arkilian/cifstore/internal/errors"
	"github.com/arkilian/cifstore/pkg/types"
)

// PrimitiveType is the DDL primitive code of a type.
type PrimitiveType uint8

const (
	// Char values compare literally.
	Char PrimitiveType = iota
	// UChar values compare case-insensitively.
	UChar
	// Numb values compare numerically.
	Numb
)

// String returns the DDL primitive code.
func (p PrimitiveType) String() string {
	switch p {
	case Char:
		return "char"
	case UChar:
		return "uchar"
	case Numb:
		return "numb"
	default:
		return fmt.Sprintf("primitive(%d)", uint8(p))
	}
}

// ParsePrimitiveType maps a DDL primitive code to a PrimitiveType.
func ParsePrimitiveType(s string) (PrimitiveType, error) {
	switch strings.ToLower(s) {
	case "char":
		return Char, nil
	case "uchar":
		return UChar, nil
	case "numb":
		return Numb, nil
	default:
		return Char, cerrors.NewSchemaError(cerrors.CodeValidationFailed, fmt.Sprintf("not a known primitive type: %q", s))
	}
}

// epsilon is the spacing of float64 values around 1.0.
const epsilon = 2.220446049250313e-16

// TypeValidator validates and compares values of one dictionary type.
type TypeValidator struct {
	Name      string
	Primitive PrimitiveType
	Pattern   string

	rx *regexp.Regexp
}

// NewTypeValidator compiles pattern for whole-value matching. An empty
// pattern accepts any non-empty value.
func NewTypeValidator(name string, primitive PrimitiveType, pattern string) (*TypeValidator, error) {
	if pattern == "" {
		pattern = ".+"
	}
	rx, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCategorySchema, cerrors.CodeInvalidPattern,
			fmt.Sprintf("invalid pattern for type %s", name), err)
	}
	return &TypeValidator{Name: name, Primitive: primitive, Pattern: pattern, rx: rx}, nil
}

// Match reports whether value matches the type's pattern.
func (t *TypeValidator) Match(value string) bool {
	return t.rx == nil || t.rx.MatchString(value)
}

// Compare orders a and b according to the primitive type. Empty values sort
// before anything else.
func (t *TypeValidator) Compare(a, b string) int {
	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		return -1
	case b == "":
		return 1
	}

	if t.Primitive == Numb {
		return compareNumb(a, b)
	}
	return compareChars(a, b, t.Primitive == UChar)
}

func compareNumb(a, b string) int {
	da, errA := types.ParseFloat(a)
	db, errB := types.ParseFloat(b)

	switch {
	case errA == nil && errB == nil:
		d := da - db
		if d > epsilon {
			return 1
		}
		if d < -epsilon {
			return -1
		}
		return 0
	case errA == nil:
		return 1
	case errB == nil:
		return -1
	default:
		return strings.Compare(a, b)
	}
}

// compareChars compares byte-wise, collapsing runs of spaces into one.
func compareChars(a, b string, fold bool) int {
	i, j := 0, 0
	for {
		if i == len(a) {
			if j != len(b) {
				return -1
			}
			return 0
		}
		if j == len(b) {
			return 1
		}

		ca, cb := a[i], b[j]
		if fold {
			ca, cb = lower(ca), lower(cb)
		}
		if ca != cb {
			if ca < cb {
				return -1
			}
			return 1
		}

		if ca == ' ' {
			for i+1 < len(a) && a[i+1] == ' ' {
				i++
			}
			for j+1 < len(b) && b[j+1] == ' ' {
				j++
			}
		}
		i++
		j++
	}
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}

// Normalize returns a representation of value such that two values compare
// equal under Compare only if their normalized forms are identical. Values
// of numb types that do not parse are returned unchanged.
func (t *TypeValidator) Normalize(value string) string {
	switch t.Primitive {
	case Numb:
		if f, err := types.ParseFloat(value); err == nil {
			return types.NewNumber("", f, -1).Text
		}
		return value
	case UChar:
		return collapseSpaces(strings.ToLower(value))
	default:
		return collapseSpaces(value)
	}
}

func collapseSpaces(s string) string {
	if !strings.Contains(s, "  ") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' && prevSpace {
			continue
		}
		prevSpace = c == ' '
		b.WriteByte(c)
	}
	return b.String()
}
