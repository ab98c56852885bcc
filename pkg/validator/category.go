package validator

import (
	"fmt"
	"sort"
	"strings"

	cerrors "github.com/arkilian/cifstore/internal/errors"
	"github.com/arkilian/cifstore/pkg/types"
)

// ItemValidator binds an item tag to its type and legal values.
type ItemValidator struct {
	// Tag is the item name without category prefix
	Tag string

	// Mandatory items must be present in every row
	Mandatory bool

	// Type is nil when the dictionary does not declare one
	Type *TypeValidator

	// Enums lists the legal values; empty means unrestricted
	Enums []string

	// Category is set when the validator is added to a category
	Category *CategoryValidator
}

// Validate checks value against the type pattern and the enumeration.
// Empty, null and unknown values are always accepted.
func (iv *ItemValidator) Validate(value string) error {
	if types.IsEmpty(value) {
		return nil
	}

	if iv.Type != nil && !iv.Type.Match(value) {
		return iv.errorf("value '%s' does not match type expression for type %s", value, iv.Type.Name)
	}

	if len(iv.Enums) > 0 && !iv.allowed(value) {
		return iv.errorf("value '%s' is not in the list of allowed values", value)
	}

	return nil
}

func (iv *ItemValidator) allowed(value string) bool {
	for _, e := range iv.Enums {
		if iv.Type != nil {
			if iv.Type.Compare(e, value) == 0 {
				return true
			}
		} else if e == value {
			return true
		}
	}
	return false
}

func (iv *ItemValidator) errorf(format string, args ...interface{}) error {
	cat := ""
	if iv.Category != nil {
		cat = iv.Category.Name
	}
	msg := fmt.Sprintf("when validating %s: %s", types.JoinTagName(cat, iv.Tag), fmt.Sprintf(format, args...))
	return cerrors.NewSchemaError(cerrors.CodeValidationFailed, msg).
		WithDetails(map[string]interface{}{"category": cat, "item": iv.Tag})
}

// CategoryValidator describes one category of a dictionary.
type CategoryValidator struct {
	Name string

	// Keys lists the item names forming the category key, in order
	Keys []string

	// Mandatory categories must be present in a datablock
	Mandatory bool

	mandatoryFields map[string]string
	items           map[string]*ItemValidator
	order           []string
}

// NewCategoryValidator returns an empty category declaration.
func NewCategoryValidator(name string, keys []string, mandatory bool) *CategoryValidator {
	return &CategoryValidator{
		Name:            name,
		Keys:            keys,
		Mandatory:       mandatory,
		mandatoryFields: make(map[string]string),
		items:           make(map[string]*ItemValidator),
	}
}

// AddItemValidator registers iv. It returns false when an item with the
// same tag was already declared; the first declaration wins.
func (cv *CategoryValidator) AddItemValidator(iv *ItemValidator) bool {
	k := strings.ToLower(iv.Tag)
	if _, ok := cv.items[k]; ok {
		return false
	}
	iv.Category = cv
	cv.items[k] = iv
	cv.order = append(cv.order, iv.Tag)
	if iv.Mandatory {
		cv.mandatoryFields[k] = iv.Tag
	}
	return true
}

// ItemValidator returns the validator for tag, or nil.
func (cv *CategoryValidator) ItemValidator(tag string) *ItemValidator {
	return cv.items[strings.ToLower(tag)]
}

// Fields returns the declared item names in declaration order.
func (cv *CategoryValidator) Fields() []string {
	out := make([]string, len(cv.order))
	copy(out, cv.order)
	return out
}

// MandatoryFields returns the mandatory item names, sorted.
func (cv *CategoryValidator) MandatoryFields() []string {
	out := make([]string, 0, len(cv.mandatoryFields))
	for _, f := range cv.mandatoryFields {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// IsKey reports whether tag is one of the key items.
func (cv *CategoryValidator) IsKey(tag string) bool {
	for _, k := range cv.Keys {
		if strings.EqualFold(k, tag) {
			return true
		}
	}
	return false
}
