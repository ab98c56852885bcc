package validator

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	cerrors "github.com/arkilian/cifstore/internal/errors"
)

func mustType(t *testing.T, name string, p PrimitiveType, rx string) *TypeValidator {
	t.Helper()
	tv, err := NewTypeValidator(name, p, rx)
	if err != nil {
		t.Fatalf("NewTypeValidator(%s): %v", name, err)
	}
	return tv
}

func TestTypeValidatorCompare(t *testing.T) {
	numb := mustType(t, "float", Numb, "")
	char := mustType(t, "code", Char, "")
	uchar := mustType(t, "ucode", UChar, "")

	tests := []struct {
		name string
		tv   *TypeValidator
		a, b string
		want int
	}{
		{"empty equal", char, "", "", 0},
		{"empty lesser", char, "", "a", -1},
		{"non-empty greater", numb, "1", "", 1},
		{"numb equal", numb, "1.0", "1", 0},
		{"numb less", numb, "2", "10", -1},
		{"numb greater", numb, "10", "2", 1},
		{"numb esd", numb, "1.5(2)", "1.5", 0},
		{"numb a unparsable", numb, "x", "1", -1},
		{"numb b unparsable", numb, "1", "x", 1},
		{"numb both unparsable", numb, "x", "y", -1},
		{"numb both unparsable reversed", numb, "y", "x", 1},
		{"numb both unparsable equal", numb, "x", "x", 0},
		{"char case", char, "Aap", "aap", -1},
		{"char equal", char, "aap", "aap", 0},
		{"char prefix", char, "aa", "aap", -1},
		{"char spaces", char, "a  b", "a b", 0},
		{"uchar case", uchar, "AAP", "aap", 0},
		{"uchar spaces", uchar, "Een   Dier", "een dier", 0},
		{"uchar order", uchar, "b", "A", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tv.Compare(tt.a, tt.b); got != tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestTypeValidatorNormalize(t *testing.T) {
	tests := []struct {
		tv   *TypeValidator
		a, b string
	}{
		{mustType(t, "int", Numb, ""), "1.0", "1"},
		{mustType(t, "ucode", UChar, ""), "Een  Dier", "een dier"},
		{mustType(t, "code", Char, ""), "a   b", "a b"},
	}

	for _, tt := range tests {
		if tt.tv.Normalize(tt.a) != tt.tv.Normalize(tt.b) {
			t.Errorf("%s: Normalize(%q)=%q differs from Normalize(%q)=%q",
				tt.tv.Name, tt.a, tt.tv.Normalize(tt.a), tt.b, tt.tv.Normalize(tt.b))
		}
	}
}

func TestTypeValidatorPattern(t *testing.T) {
	code := mustType(t, "code", Char, `[A-Za-z0-9_.;:"&<>()/{}'~!@#$%*|+-]*`)
	if !code.Match("A_1") || code.Match("two words") {
		t.Error("code pattern should accept single words only")
	}

	free := mustType(t, "any", Char, "")
	if !free.Match("x") || free.Match("") {
		t.Error("empty pattern should default to .+")
	}

	if _, err := NewTypeValidator("bad", Char, "(unclosed"); err == nil {
		t.Error("expected error for invalid pattern")
	} else if cerrors.GetCode(err) != cerrors.CodeInvalidPattern {
		t.Errorf("got code %q", cerrors.GetCode(err))
	}

	if _, err := ParsePrimitiveType("bogus"); err == nil {
		t.Error("expected error for unknown primitive type")
	}
	if p, err := ParsePrimitiveType("UCHAR"); err != nil || p != UChar {
		t.Errorf("ParsePrimitiveType(UCHAR) = %v, %v", p, err)
	}
}

func TestItemValidatorValidate(t *testing.T) {
	cv := NewCategoryValidator("cat_1", []string{"id"}, false)
	iv := &ItemValidator{Tag: "id", Mandatory: true, Type: mustType(t, "int", Numb, "[+-]?[0-9]+")}
	cv.AddItemValidator(iv)
	ev := &ItemValidator{Tag: "flag", Enums: []string{"yes", "no"}}
	cv.AddItemValidator(ev)

	for _, v := range []string{"1", "-20", ".", "?", ""} {
		if err := iv.Validate(v); err != nil {
			t.Errorf("Validate(%q): %v", v, err)
		}
	}

	err := iv.Validate("vijf")
	if err == nil {
		t.Fatal("expected error for non-integer")
	}
	if !strings.Contains(err.Error(), "_cat_1.id") {
		t.Errorf("error should name the item: %v", err)
	}

	if err := ev.Validate("maybe"); err == nil {
		t.Error("expected enumeration error")
	}
	if err := ev.Validate("yes"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ev.Validate("?"); err != nil {
		t.Errorf("unknown must skip enumeration: %v", err)
	}

	if got := cv.MandatoryFields(); len(got) != 1 || got[0] != "id" {
		t.Errorf("MandatoryFields = %v", got)
	}
	if cv.AddItemValidator(&ItemValidator{Tag: "ID"}) {
		t.Error("duplicate item declaration should be rejected")
	}
	if cv.ItemValidator("FLAG") != ev {
		t.Error("item lookup should be case-insensitive")
	}
}

func newLinkTestValidator(t *testing.T) *Validator {
	t.Helper()
	v := New("test.dic")
	intType := mustType(t, "int", Numb, "[+-]?[0-9]+")
	v.AddTypeValidator(intType)

	parent := NewCategoryValidator("cat_1", []string{"id"}, false)
	parent.AddItemValidator(&ItemValidator{Tag: "id", Mandatory: true, Type: intType})
	v.AddCategoryValidator(parent)

	child := NewCategoryValidator("cat_2", []string{"id"}, false)
	child.AddItemValidator(&ItemValidator{Tag: "id", Mandatory: true, Type: intType})
	child.AddItemValidator(&ItemValidator{Tag: "parent_id"})
	v.AddCategoryValidator(child)
	return v
}

func TestAddLinkValidator(t *testing.T) {
	tests := []struct {
		name string
		link *LinkValidator
		code string
	}{
		{"arity", &LinkValidator{ParentCategory: "cat_1", ParentKeys: []string{"id"}, ChildCategory: "cat_2", ChildKeys: []string{"parent_id", "id"}}, cerrors.CodeLinkArity},
		{"unknown parent", &LinkValidator{ParentCategory: "cat_x", ParentKeys: []string{"id"}, ChildCategory: "cat_2", ChildKeys: []string{"parent_id"}}, cerrors.CodeLinkUnknownCategory},
		{"unknown child", &LinkValidator{ParentCategory: "cat_1", ParentKeys: []string{"id"}, ChildCategory: "cat_x", ChildKeys: []string{"parent_id"}}, cerrors.CodeLinkUnknownCategory},
		{"unknown parent tag", &LinkValidator{ParentCategory: "cat_1", ParentKeys: []string{"nope"}, ChildCategory: "cat_2", ChildKeys: []string{"parent_id"}}, cerrors.CodeLinkUnknownTag},
		{"unknown child tag", &LinkValidator{ParentCategory: "cat_1", ParentKeys: []string{"id"}, ChildCategory: "cat_2", ChildKeys: []string{"nope"}}, cerrors.CodeLinkUnknownTag},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newLinkTestValidator(t)
			err := v.AddLinkValidator(tt.link)
			if err == nil {
				t.Fatal("expected error")
			}
			if cerrors.GetCategory(err) != cerrors.ErrCategoryLink || cerrors.GetCode(err) != tt.code {
				t.Errorf("got %v, want LINK:%s", err, tt.code)
			}
			if len(v.Links()) != 0 {
				t.Error("failed link must not be registered")
			}
		})
	}
}

func TestAddLinkValidatorInheritsType(t *testing.T) {
	v := newLinkTestValidator(t)
	link := &LinkValidator{ParentCategory: "cat_1", ParentKeys: []string{"id"}, ChildCategory: "cat_2", ChildKeys: []string{"parent_id"}}
	if err := v.AddLinkValidator(link); err != nil {
		t.Fatalf("AddLinkValidator: %v", err)
	}

	child := v.ItemValidator("_cat_2.parent_id")
	if child == nil || child.Type == nil || child.Type.Name != "int" {
		t.Fatalf("child key should inherit the parent type, got %+v", child)
	}

	if got := v.LinksForParent("CAT_1"); len(got) != 1 || got[0] != link {
		t.Errorf("LinksForParent = %v", got)
	}
	if got := v.LinksForChild("cat_2"); len(got) != 1 {
		t.Errorf("LinksForChild = %v", got)
	}
	if got := v.LinksForChild("cat_1"); len(got) != 0 {
		t.Errorf("cat_1 is not a child, got %v", got)
	}
}

func TestReportError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	quiet := New("d", WithLogger(logger))
	if err := quiet.ReportError("tag x not allowed", false); err != nil {
		t.Errorf("non-strict report should not fail: %v", err)
	}
	if buf.Len() != 0 {
		t.Error("verbosity 0 should not log")
	}

	loud := New("d", WithLogger(logger), WithVerbosity(1))
	if err := loud.ReportError("tag y not allowed", false); err != nil {
		t.Errorf("non-strict report should not fail: %v", err)
	}
	if !strings.Contains(buf.String(), "tag y not allowed") {
		t.Errorf("expected logged warning, got %q", buf.String())
	}

	if err := quiet.ReportError("fatal problem", true); err == nil {
		t.Error("fatal report must return an error")
	}

	strict := New("d", WithStrict(true))
	err := strict.ReportError("strict problem", false)
	if err == nil || cerrors.GetCode(err) != cerrors.CodeValidationFailed {
		t.Errorf("strict report must return VALIDATION_FAILED, got %v", err)
	}
}
