package cif_test

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/arkilian/cifstore/internal/dictionary"
	cerrors "github.com/arkilian/cifstore/internal/errors"
	"github.com/arkilian/cifstore/pkg/cif"
	"github.com/arkilian/cifstore/pkg/types"
	"github.com/arkilian/cifstore/pkg/validator"
)

const testLoop = `data_TEST
#
loop_
_test.id
_test.name
_test.value
1 aap   1.0
2 noot  1.1
3 mies  1.2
4 boom  .
5 roos  ?
`

func TestEmplaceAndIterate(t *testing.T) {
	c := cif.NewCategory("foo")
	names := []string{"aap", "noot", "mies"}
	for i, s := range names {
		if _, err := c.Emplace(types.NewInt("id", int64(i+1)), types.NewValue("s", s)); err != nil {
			t.Fatalf("Emplace failed: %v", err)
		}
	}

	if c.Empty() || c.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", c.Len())
	}

	for i, r := range c.Rows() {
		if got := r.Int("id"); got != int64(i+1) {
			t.Errorf("row %d: id = %d", i, got)
		}
		if got := r.String("s"); got != names[i] {
			t.Errorf("row %d: s = %q", i, got)
		}
	}

	if got := c.Columns(); strings.Join(got, ",") != "id,s" {
		t.Errorf("unexpected columns %v", got)
	}
	if got := c.GetTagOrder(); got[0] != "_foo.id" {
		t.Errorf("unexpected tag order %v", got)
	}
}

func TestEmplaceLongValues(t *testing.T) {
	c := cif.NewCategory("foo")
	for i := 1; i < 256; i++ {
		if _, err := c.Emplace(types.NewInt("id", int64(i)), types.NewValue("txt", strings.Repeat("x", i))); err != nil {
			t.Fatalf("Emplace %d failed: %v", i, err)
		}
	}
	last, err := c.Find1(cif.Key("id").Eq("255"))
	if err != nil {
		t.Fatal(err)
	}
	if got := len(last.Text("txt")); got != 255 {
		t.Errorf("expected 255 characters, got %d", got)
	}

	_, err = c.Emplace(types.NewValue("txt", strings.Repeat("x", cif.MaxValueLength+1)))
	if cerrors.GetCode(err) != cerrors.CodeValueTooLong {
		t.Errorf("expected VALUE_TOO_LONG, got %v", err)
	}
	if c.Len() != 255 {
		t.Errorf("failed Emplace changed the category")
	}
}

func TestTypedAccessors(t *testing.T) {
	c := cif.NewCategory("foo")
	r, err := c.Emplace(
		types.NewInt("f-1", 1),
		types.NewValue("f-2", "two"),
		types.NewNumber("f-3", 3.0, 3),
		types.NewBool("f-4", true),
		types.NewValue("f-5", "1.25(3)"),
		types.NewValue("f-6", "abc"),
	)
	if err != nil {
		t.Fatal(err)
	}

	if r.Int("f-1") != 1 || r.String("f-2") != "two" || r.Float("f-3") != 3.0 || !r.Bool("f-4") {
		t.Errorf("unexpected values %v", r.Values())
	}
	if r.Text("f-3") != "3.000" {
		t.Errorf("expected 3.000, got %q", r.Text("f-3"))
	}
	if r.Float("f-5") != 1.25 {
		t.Errorf("uncertainty not stripped: %v", r.Float("f-5"))
	}
	if r.Int("f-6") != 0 {
		t.Errorf("malformed numbers must convert to zero")
	}
	if r.Has("missing") || r.Text("missing") != "" {
		t.Errorf("missing column reported as present")
	}
}

func TestLoadLoop(t *testing.T) {
	db := mustLoad(t, nil, testLoop)
	if db.Name() != "TEST" {
		t.Errorf("expected datablock TEST, got %q", db.Name())
	}

	test := db.Get("test")
	if test == nil {
		t.Fatal("category test not loaded")
	}
	checkSize(t, test, 5)

	rows, err := test.Find(cif.Key("name").Eq("aap"))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Int("id") != 1 || rows[0].Float("value") != 1.0 {
		t.Errorf("unexpected rows for name == aap")
	}

	r, err := test.Find1(cif.Key("value").EqNumber(1.2))
	if err != nil {
		t.Fatal(err)
	}
	if r.String("name") != "mies" {
		t.Errorf("expected mies, got %s", r.String("name"))
	}

	if _, err := test.Find1(cif.Key("id").Gt("3")); cerrors.GetCode(err) != cerrors.CodeNotFound {
		t.Errorf("Find1 with two matches should fail, got %v", err)
	}
}

func TestNullAndUnknown(t *testing.T) {
	test := mustLoad(t, nil, testLoop).Get("test")

	if n := count(t, test, cif.Key("value").IsEmpty()); n != 2 {
		t.Errorf("expected 2 empty values, got %d", n)
	}

	boom, _ := test.Find1(cif.Key("id").Eq("4"))
	roos, _ := test.Find1(cif.Key("id").Eq("5"))

	if !boom.IsNull("value") || boom.IsUnknown("value") {
		t.Error("'.' must read as null")
	}
	if roos.IsNull("value") || !roos.IsUnknown("value") {
		t.Error("'?' must read as unknown")
	}
	if boom.Text("value") != "." || roos.Text("value") != "?" {
		t.Error("raw text of empty markers must be preserved")
	}
	if boom.String("value") != "" || roos.String("value") != "" {
		t.Error("empty markers must convert to an empty string")
	}

	for _, r := range test.Rows() {
		opt := r.Optional("name", types.KindText)
		if !opt.Present {
			t.Errorf("name of row %d should be present", r.Int("id"))
		}
		v := r.Optional("value", types.KindFloat)
		if want := r.Int("id") <= 3; v.Present != want {
			t.Errorf("row %d: value present = %v", r.Int("id"), v.Present)
		}
	}
}

func TestFindAll(t *testing.T) {
	test := mustLoad(t, nil, testLoop).Get("test")

	if n := count(t, test, cif.All()); n != 5 {
		t.Errorf("All matched %d rows", n)
	}
	if n := count(t, test, cif.Condition{}); n != 0 {
		t.Errorf("the empty condition matched %d rows", n)
	}
	if ok, _ := test.Exists(cif.Key("name").Eq("roos")); !ok {
		t.Error("Exists did not find roos")
	}
}

func TestEraseWhere(t *testing.T) {
	test := mustLoad(t, nil, testLoop).Get("test")

	var seen []string
	n, err := test.EraseWhereFunc(cif.Key("id").Eq("1"), func(r cif.Row) {
		seen = append(seen, r.String("name"))
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || len(seen) != 1 || seen[0] != "aap" {
		t.Errorf("unexpected erase result %d %v", n, seen)
	}
	checkSize(t, test, 4)

	front := test.Front()
	if err := test.Erase(front); err != nil {
		t.Fatal(err)
	}
	if front.Valid() {
		t.Error("erased row handle is still valid")
	}
	if err := front.Set("name", "x"); cerrors.GetCode(err) != cerrors.CodeInvalidRow {
		t.Errorf("expected INVALID_ROW for a stale handle, got %v", err)
	}
	checkSize(t, test, 3)

	// released slots are reused without reviving old handles
	r, err := test.Emplace(types.NewValue("id", "6"))
	if err != nil {
		t.Fatal(err)
	}
	if front.Valid() || !r.Valid() {
		t.Error("slot reuse confused row handles")
	}

	test.Clear()
	if !test.Empty() || r.Valid() {
		t.Error("Clear left rows behind")
	}
}

func TestEraseKeepsChain(t *testing.T) {
	c := cif.NewCategory("test")
	const n = 3000
	for i := 1; i <= n; i++ {
		drop := "no"
		if i%3 == 0 {
			drop = "yes"
		}
		if _, err := c.Emplace(types.NewInt("id", int64(i)), types.NewValue("drop", drop)); err != nil {
			t.Fatal(err)
		}
	}

	erased, err := c.EraseWhere(cif.Key("drop").Eq("yes"))
	if err != nil {
		t.Fatal(err)
	}
	if erased != n/3 {
		t.Errorf("erased %d rows, want %d", erased, n/3)
	}
	checkSize(t, c, n-n/3)

	checkIDs := func(want []int64) {
		t.Helper()
		got := make([]int64, 0, c.Len())
		for _, r := range c.Rows() {
			got = append(got, r.Int("id"))
		}
		if !slices.Equal(got, want) {
			t.Fatalf("expected %d ids %v..., got %d ids %v...", len(want), want[:min(5, len(want))], len(got), got[:min(5, len(got))])
		}
	}

	var want []int64
	for i := 1; i <= n; i++ {
		if i%3 != 0 {
			want = append(want, int64(i))
		}
	}
	checkIDs(want)

	// head and tail
	rows := c.Rows()
	if err := c.Erase(rows[0]); err != nil {
		t.Fatal(err)
	}
	if err := c.Erase(rows[len(rows)-1]); err != nil {
		t.Fatal(err)
	}
	want = want[1 : len(want)-1]
	checkIDs(want)

	if _, err := c.Emplace(types.NewInt("id", n+1)); err != nil {
		t.Fatal(err)
	}
	want = append(want, n+1)
	checkIDs(want)

	c.Sort(func(a, b cif.Row) int { return int(b.Int("id") - a.Int("id")) })
	if _, err := c.EraseWhere(cif.Key("id").Eq("2")); err != nil {
		t.Fatal(err)
	}
	if got := c.Rows()[c.Len()-1].Int("id"); got != 4 {
		t.Errorf("last row after sort and erase has id %d, want 4", got)
	}
	if got := c.Front().Int("id"); got != n+1 {
		t.Errorf("first row after sort has id %d", got)
	}
}

func TestSort(t *testing.T) {
	test := mustLoad(t, nil, testLoop).Get("test")

	test.Sort(func(a, b cif.Row) int {
		return strings.Compare(a.Text("name"), b.Text("name"))
	})

	var names []string
	test.Each(func(r cif.Row) bool {
		names = append(names, r.Text("name"))
		return true
	})
	if got := strings.Join(names, " "); got != "aap boom mies noot roos" {
		t.Errorf("unexpected order %q", got)
	}

	// appends go after the sorted rows
	if _, err := test.Emplace(types.NewValue("name", "a")); err != nil {
		t.Fatal(err)
	}
	rows := test.Rows()
	if rows[len(rows)-1].Text("name") != "a" {
		t.Error("row not appended at the end after Sort")
	}
}

func TestCategoryEqual(t *testing.T) {
	a := cif.NewCategory("foo")
	b := cif.NewCategory("FOO")

	a.Emplace(types.NewValue("id", "1"), types.NewValue("s", "aap"))
	a.Emplace(types.NewValue("id", "2"))
	b.Emplace(types.NewValue("id", "2"), types.NewValue("s", "?"))
	b.Emplace(types.NewValue("s", "aap"), types.NewValue("id", "1"))

	if !a.Equal(b) {
		t.Error("categories with the same rows in another order must be equal")
	}

	b.Emplace(types.NewValue("id", "3"))
	if a.Equal(b) {
		t.Error("categories of different size reported equal")
	}
}

func TestDatablockCategories(t *testing.T) {
	db := cif.NewDatablock("test")
	db.Category("b")
	db.Category("c")

	a, created := db.Emplace("a")
	if !created || db.Categories()[0] != a {
		t.Error("Emplace must create new categories at the front")
	}
	c, created := db.Emplace("C")
	if created || db.Categories()[0] != c {
		t.Error("Emplace must move existing categories to the front")
	}

	if !db.Remove("b") || db.Remove("b") || db.Len() != 2 {
		t.Error("Remove did not delete exactly once")
	}

	f := cif.NewFile()
	d1, _ := f.Emplace("one")
	f.Append("two")
	d2, created := f.Emplace("TWO")
	if created || f.Front() != d2 || f.Blocks()[1] != d1 {
		t.Error("File.Emplace must move existing datablocks to the front")
	}
}

func TestValidateWithoutDictionary(t *testing.T) {
	db := mustLoad(t, nil, testLoop)
	if err := db.Validate(); cerrors.GetCategory(err) != cerrors.ErrCategorySchema {
		t.Errorf("validating without a dictionary should fail, got %v", err)
	}
	if err := db.Get("test").Validate(); err != nil {
		t.Errorf("a category without a dictionary has nothing to check: %v", err)
	}
}

func TestValidate(t *testing.T) {
	v := mustDictionary(t,
		ddlCategory("cat_1", "id"),
		ddlItem("_cat_1.id", "int", true),
		ddlItem("_cat_1.name", "text", true),
	)

	db := mustLoad(t, v, `data_test
loop_
_cat_1.id
_cat_1.name
1 aap
2 ?
`)
	if err := db.Validate(); err != nil {
		t.Errorf("valid data rejected: %v", err)
	}

	c := db.Get("cat_1")
	if _, err := c.Emplace(types.NewValue("id", "3")); err != nil {
		t.Fatal(err)
	}
	err := db.Validate()
	if !errors.Is(err, cerrors.NewSchemaError(cerrors.CodeMissingMandatory, "")) {
		t.Errorf("expected a missing mandatory value, got %v", err)
	}

	// undeclared tags are accepted while loading and reported by Validate
	db = mustLoad(t, v, "data_test\n_cat_1.id 1\n_cat_1.name x\n_cat_1.extra y\n")
	if err := db.Validate(); !errors.Is(err, cerrors.NewSchemaError(cerrors.CodeUnknownTag, "")) {
		t.Errorf("expected UNKNOWN_TAG, got %v", err)
	}
}

func TestStrictLoadRejectsBadValues(t *testing.T) {
	dict := ddlHeader + ddlCategory("cat_1", "id") + ddlItem("_cat_1.id", "int", true)
	data := "data_test\nloop_\n_cat_1.id\n1\nx\n"

	// lenient dictionaries report and keep the value
	lenient, err := dictionary.ParseDDL("test", strings.NewReader(dict))
	if err != nil {
		t.Fatal(err)
	}
	checkSize(t, mustLoad(t, lenient, data).Get("cat_1"), 2)

	strict, err := dictionary.ParseDDL("test", strings.NewReader(dict), validator.WithStrict(true))
	if err != nil {
		t.Fatal(err)
	}
	f := cif.NewFile()
	if err := f.SetValidator(strict); err != nil {
		t.Fatal(err)
	}
	if err := f.LoadString(data); cerrors.GetCode(err) != cerrors.CodeValidationFailed {
		t.Errorf("strict dictionary accepted a malformed value: %v", err)
	}
}
