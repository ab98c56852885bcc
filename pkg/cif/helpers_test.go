package cif_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/arkilian/cifstore/internal/dictionary"
	"github.com/arkilian/cifstore/pkg/cif"
	"github.com/arkilian/cifstore/pkg/types"
	"github.com/arkilian/cifstore/pkg/validator"
)

const ddlHeader = `
data_test_dict.dic
    _dictionary.title           test_dict.dic
    _dictionary.version         1.0

loop_
_item_type_list.code
_item_type_list.primitive_code
_item_type_list.construct
code   char   '[][_,.;:"&<>()/\{}'~!@#$%A-Za-z0-9*|+-]*'
ucode  uchar  '[][_,.;:"&<>()/\{}'~!@#$%A-Za-z0-9*|+-]*'
text   char   '[][ \n\t()_,.;:"&<>/\{}'~!@#$%?+=*A-Za-z0-9|^-]*'
int    numb   '[+-]?[0-9]+'
`

// ddlCategory renders a category save frame.
func ddlCategory(name string, keys ...string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "save_%s\n    _category.id %s\n    _category.mandatory_code no\n", name, name)
	if len(keys) > 0 {
		sb.WriteString("    loop_\n    _category_key.name\n")
		for _, k := range keys {
			fmt.Fprintf(&sb, "    '%s'\n", types.JoinTagName(name, k))
		}
	}
	sb.WriteString("    save_\n")
	return sb.String()
}

// ddlItem renders an item save frame.
func ddlItem(tag, typ string, mandatory bool) string {
	cat, _ := types.SplitTagName(tag)
	code := "no"
	if mandatory {
		code = "yes"
	}
	return fmt.Sprintf("save_%s\n    _item.name '%s'\n    _item.category_id %s\n    _item.mandatory_code %s\n    _item_type.code %s\n    save_\n",
		tag, tag, cat, code, typ)
}

// ddlLinked renders _item_linked pairs given as child, parent, child, parent...
func ddlLinked(pairs ...string) string {
	var sb strings.Builder
	sb.WriteString("loop_\n_item_linked.child_name\n_item_linked.parent_name\n")
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Fprintf(&sb, "'%s' '%s'\n", pairs[i], pairs[i+1])
	}
	return sb.String()
}

// ddlGroups renders pdbx_item_linked_group_list rows, each given as
// "child_category group child_name parent_name parent_category".
func ddlGroups(rows ...string) string {
	var sb strings.Builder
	sb.WriteString("loop_\n")
	for _, f := range []string{"child_category_id", "link_group_id", "child_name", "parent_name", "parent_category_id"} {
		sb.WriteString("_pdbx_item_linked_group_list." + f + "\n")
	}
	for _, r := range rows {
		sb.WriteString(r + "\n")
	}
	return sb.String()
}

func mustDictionary(t *testing.T, parts ...string) *validator.Validator {
	t.Helper()
	v, err := dictionary.ParseDDL("test", strings.NewReader(ddlHeader+strings.Join(parts, "")))
	if err != nil {
		t.Fatalf("failed to parse dictionary: %v", err)
	}
	return v
}

func mustLoad(t *testing.T, v *validator.Validator, data string) *cif.Datablock {
	t.Helper()
	f := cif.NewFile()
	if v != nil {
		if err := f.SetValidator(v); err != nil {
			t.Fatalf("SetValidator failed: %v", err)
		}
	}
	if err := f.LoadString(data); err != nil {
		t.Fatalf("failed to load data: %v", err)
	}
	if f.Len() == 0 {
		t.Fatal("no datablock loaded")
	}
	return f.Front()
}

func count(t *testing.T, c *cif.Category, cond cif.Condition) int {
	t.Helper()
	n, err := c.Count(cond)
	if err != nil {
		t.Fatalf("Count(%s) failed: %v", cond, err)
	}
	return n
}

// rename sets tag to value in the single row where tag equals old.
func rename(t *testing.T, c *cif.Category, tag, old, value string) {
	t.Helper()
	r, err := c.Find1(cif.Key(tag).Eq(old))
	if err != nil {
		t.Fatalf("Find1 failed: %v", err)
	}
	if err := r.Set(tag, value); err != nil {
		t.Fatalf("rename %s from %s to %s failed: %v", tag, old, value, err)
	}
}

func checkSize(t *testing.T, c *cif.Category, want int) {
	t.Helper()
	if c.Len() != want {
		t.Errorf("%s: expected %d rows, got %d", c.Name(), want, c.Len())
	}
}
