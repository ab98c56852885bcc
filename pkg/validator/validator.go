// Package validator holds the dictionary model used to validate and link
// categories: type validators, category and item validators, and link
// declarations between parent and child categories.
//
// A Validator is built once, usually by one of the loaders in
// internal/dictionary, and is then shared read-only by every datablock and
// category that refers to it.
package validator

import (
	"fmt"
	"log/slog"
	"strings"

	cerrors "github.com/arkilian/cifstore/internal/errors"
	"github.com/arkilian/cifstore/pkg/types"
)

// LinkValidator declares that the child keys of ChildCategory refer to the
// parent keys of ParentCategory, position by position.
type LinkValidator struct {
	// LinkGroupID distinguishes independent links between the same pair
	// of categories. Zero when the dictionary does not group links.
	LinkGroupID int

	ParentCategory string
	ParentKeys     []string
	ChildCategory  string
	ChildKeys      []string

	// LinkGroupLabel is an optional human readable name for the group
	LinkGroupLabel string
}

// String renders the link for diagnostics.
func (l *LinkValidator) String() string {
	return fmt.Sprintf("%s[%s] -> %s[%s] (group %d)",
		l.ParentCategory, strings.Join(l.ParentKeys, ","),
		l.ChildCategory, strings.Join(l.ChildKeys, ","), l.LinkGroupID)
}

// Option configures a Validator.
type Option func(*Validator)

// WithVersion sets the dictionary version reported by Version.
func WithVersion(version string) Option {
	return func(v *Validator) { v.version = version }
}

// WithStrict makes every reported error fatal.
func WithStrict(strict bool) Option {
	return func(v *Validator) { v.strict = strict }
}

// WithVerbosity sets the diagnostic level. Non-fatal errors are logged only
// when the level is above zero.
func WithVerbosity(level int) Option {
	return func(v *Validator) { v.verbosity = level }
}

// WithLogger sets the logger used for non-fatal diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// Validator is a complete dictionary.
type Validator struct {
	name      string
	version   string
	strict    bool
	verbosity int
	logger    *slog.Logger

	types      map[string]*TypeValidator
	typeOrder  []string
	categories map[string]*CategoryValidator
	catOrder   []string
	links      []*LinkValidator
}

// New returns an empty validator named name.
func New(name string, opts ...Option) *Validator {
	v := &Validator{
		name:       name,
		logger:     slog.New(slog.DiscardHandler),
		types:      make(map[string]*TypeValidator),
		categories: make(map[string]*CategoryValidator),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Validator) Name() string    { return v.name }
func (v *Validator) Version() string { return v.version }
func (v *Validator) Strict() bool    { return v.strict }
func (v *Validator) Verbosity() int  { return v.verbosity }

// Logger returns the diagnostic logger, never nil.
func (v *Validator) Logger() *slog.Logger { return v.logger }

// SetVersion sets the dictionary version.
func (v *Validator) SetVersion(version string) { v.version = version }

// AddTypeValidator registers t. The first declaration of a name wins.
func (v *Validator) AddTypeValidator(t *TypeValidator) bool {
	k := strings.ToLower(t.Name)
	if _, ok := v.types[k]; ok {
		if v.verbosity > 4 {
			v.logger.Debug("validator: duplicate type", "type", t.Name)
		}
		return false
	}
	v.types[k] = t
	v.typeOrder = append(v.typeOrder, k)
	return true
}

// Types returns the declared types in declaration order.
func (v *Validator) Types() []*TypeValidator {
	out := make([]*TypeValidator, 0, len(v.typeOrder))
	for _, k := range v.typeOrder {
		out = append(out, v.types[k])
	}
	return out
}

// TypeValidator returns the type named code, or nil.
func (v *Validator) TypeValidator(code string) *TypeValidator {
	return v.types[strings.ToLower(code)]
}

// AddCategoryValidator registers c. The first declaration of a name wins.
func (v *Validator) AddCategoryValidator(c *CategoryValidator) bool {
	k := strings.ToLower(c.Name)
	if _, ok := v.categories[k]; ok {
		if v.verbosity > 4 {
			v.logger.Debug("validator: duplicate category", "category", c.Name)
		}
		return false
	}
	v.categories[k] = c
	v.catOrder = append(v.catOrder, c.Name)
	return true
}

// CategoryValidator returns the category named name, or nil.
func (v *Validator) CategoryValidator(name string) *CategoryValidator {
	return v.categories[strings.ToLower(name)]
}

// Categories returns the declared category validators in declaration order.
func (v *Validator) Categories() []*CategoryValidator {
	out := make([]*CategoryValidator, 0, len(v.catOrder))
	for _, name := range v.catOrder {
		out = append(out, v.categories[strings.ToLower(name)])
	}
	return out
}

// ItemValidator returns the validator for a full "_category.item" tag.
func (v *Validator) ItemValidator(tag string) *ItemValidator {
	cat, item := types.SplitTagName(tag)
	cv := v.CategoryValidator(cat)
	if cv == nil {
		return nil
	}
	return cv.ItemValidator(item)
}

// AddLinkValidator registers a link after checking that both categories and
// all key items are declared and that the key lists have equal length. A
// child key without a type inherits the type of its parent key.
func (v *Validator) AddLinkValidator(l *LinkValidator) error {
	if len(l.ParentKeys) != len(l.ChildKeys) {
		return cerrors.NewLinkError(cerrors.CodeLinkArity,
			fmt.Sprintf("unequal number of keys for parent and child in link %s", l))
	}

	pcv := v.CategoryValidator(l.ParentCategory)
	if pcv == nil {
		return cerrors.NewLinkError(cerrors.CodeLinkUnknownCategory, "unknown parent category "+l.ParentCategory)
	}
	ccv := v.CategoryValidator(l.ChildCategory)
	if ccv == nil {
		return cerrors.NewLinkError(cerrors.CodeLinkUnknownCategory, "unknown child category "+l.ChildCategory)
	}

	for i := range l.ParentKeys {
		piv := pcv.ItemValidator(l.ParentKeys[i])
		if piv == nil {
			return cerrors.NewLinkError(cerrors.CodeLinkUnknownTag,
				"unknown parent tag "+types.JoinTagName(l.ParentCategory, l.ParentKeys[i]))
		}
		civ := ccv.ItemValidator(l.ChildKeys[i])
		if civ == nil {
			return cerrors.NewLinkError(cerrors.CodeLinkUnknownTag,
				"unknown child tag "+types.JoinTagName(l.ChildCategory, l.ChildKeys[i]))
		}
		if civ.Type == nil && piv.Type != nil {
			civ.Type = piv.Type
		}
	}

	v.links = append(v.links, l)
	return nil
}

// Links returns all link declarations in declaration order.
func (v *Validator) Links() []*LinkValidator {
	out := make([]*LinkValidator, len(v.links))
	copy(out, v.links)
	return out
}

// LinksForParent returns the links in which category is the parent.
func (v *Validator) LinksForParent(category string) []*LinkValidator {
	var out []*LinkValidator
	for _, l := range v.links {
		if strings.EqualFold(l.ParentCategory, category) {
			out = append(out, l)
		}
	}
	return out
}

// LinksForChild returns the links in which category is the child.
func (v *Validator) LinksForChild(category string) []*LinkValidator {
	var out []*LinkValidator
	for _, l := range v.links {
		if strings.EqualFold(l.ChildCategory, category) {
			out = append(out, l)
		}
	}
	return out
}

// ReportError returns a validation error when the validator is strict or
// the caller marks the problem fatal. Otherwise the message is logged when
// the verbosity is above zero and nil is returned.
func (v *Validator) ReportError(msg string, fatal bool) error {
	if v.strict || fatal {
		return cerrors.NewSchemaError(cerrors.CodeValidationFailed, msg)
	}
	if v.verbosity > 0 {
		v.logger.Warn(msg, "dictionary", v.name)
	}
	return nil
}

// Report is ReportError for an error value. Errors that are already
// StoreErrors keep their category and code when they are returned.
func (v *Validator) Report(err error, fatal bool) error {
	if err == nil {
		return nil
	}
	if v.strict || fatal {
		return err
	}
	if v.verbosity > 0 {
		v.logger.Warn(err.Error(), "dictionary", v.name)
	}
	return nil
}
