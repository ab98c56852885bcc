// Package dictionary builds validators from dictionary files. Two forms
// are understood: DDL2 dictionaries as distributed for mmCIF, and a YAML
// document describing the resolved shape directly.
package dictionary

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/arkilian/cifstore/internal/cifparser"
	cerrors "github.com/arkilian/cifstore/internal/errors"
	"github.com/arkilian/cifstore/pkg/cif"
	"github.com/arkilian/cifstore/pkg/types"
	"github.com/arkilian/cifstore/pkg/validator"
)

// ddlProducer stores the top level of a dictionary in one datablock and
// every save frame in a datablock of its own.
type ddlProducer struct {
	*cif.Builder

	top    *cif.Datablock
	topB   *cif.Builder
	frames []*cif.Datablock
}

var _ cifparser.SaveFrameProducer = (*ddlProducer)(nil)

func newDDLProducer() *ddlProducer {
	top := cif.NewDatablock("dictionary")
	b := cif.NewBlockBuilder(top)
	return &ddlProducer{Builder: b, top: top, topB: b}
}

func (p *ddlProducer) BeginSaveFrame(name string) error {
	frame := cif.NewDatablock(name)
	p.frames = append(p.frames, frame)
	p.Builder = cif.NewBlockBuilder(frame)
	return nil
}

func (p *ddlProducer) EndSaveFrame() error {
	p.Builder = p.topB
	return nil
}

// ParseDDL reads a DDL2 dictionary. When name is empty the dictionary title
// is used.
func ParseDDL(name string, r io.Reader, opts ...validator.Option) (*validator.Validator, error) {
	p := newDDLProducer()
	if err := cifparser.Parse(r, p); err != nil {
		return nil, err
	}

	if name == "" {
		name = first(p.top.Get("dictionary"), "title")
	}
	v := validator.New(name, opts...)
	if version := first(p.top.Get("dictionary"), "version"); version != "" {
		v.SetVersion(version)
	}

	if err := addTypes(v, p.top.Get("item_type_list")); err != nil {
		return nil, err
	}
	for _, frame := range p.frames {
		if err := addCategory(v, frame); err != nil {
			return nil, err
		}
	}

	var linked []linkPair
	for _, frame := range p.frames {
		if err := addItems(v, frame); err != nil {
			return nil, err
		}
		linked = append(linked, linkPairs(frame.Get("item_linked"))...)
	}
	linked = append(linked, linkPairs(p.top.Get("item_linked"))...)

	if err := addLinks(v, p.top, linked); err != nil {
		return nil, err
	}
	return v, nil
}

// first returns the text of tag in the first row of c.
func first(c *cif.Category, tag string) string {
	if c == nil || c.Empty() {
		return ""
	}
	return c.Front().String(tag)
}

func addTypes(v *validator.Validator, list *cif.Category) error {
	if list == nil {
		return nil
	}
	for _, r := range list.Rows() {
		code := r.String("code")
		if code == "" {
			continue
		}
		prim, err := validator.ParsePrimitiveType(r.String("primitive_code"))
		if err != nil {
			return err
		}
		t, err := validator.NewTypeValidator(code, prim, r.String("construct"))
		if err != nil {
			// patterns outside RE2 syntax fall back to accepting any value
			if err := v.Report(err, false); err != nil {
				return err
			}
			if t, err = validator.NewTypeValidator(code, prim, ""); err != nil {
				return err
			}
		}
		v.AddTypeValidator(t)
	}
	return nil
}

func addCategory(v *validator.Validator, frame *cif.Datablock) error {
	c := frame.Get("category")
	if c == nil || c.Empty() {
		return nil
	}
	id := c.Front().String("id")
	if id == "" {
		return v.ReportError("category save frame "+frame.Name()+" without _category.id", false)
	}

	var keys []string
	if kc := frame.Get("category_key"); kc != nil {
		for _, r := range kc.Rows() {
			cat, item := types.SplitTagName(r.String("name"))
			if cat != "" && !strings.EqualFold(cat, id) {
				if err := v.ReportError(fmt.Sprintf("key %s does not belong to category %s", r.String("name"), id), false); err != nil {
					return err
				}
				continue
			}
			keys = append(keys, item)
		}
	}

	mandatory := strings.EqualFold(c.Front().String("mandatory_code"), "yes")
	v.AddCategoryValidator(validator.NewCategoryValidator(id, keys, mandatory))
	return nil
}

func addItems(v *validator.Validator, frame *cif.Datablock) error {
	items := frame.Get("item")
	if items == nil {
		return nil
	}

	var typ *validator.TypeValidator
	if code := first(frame.Get("item_type"), "code"); code != "" {
		if typ = v.TypeValidator(code); typ == nil {
			if err := v.ReportError(fmt.Sprintf("undefined type %s in save frame %s", code, frame.Name()), false); err != nil {
				return err
			}
		}
	}

	var enums []string
	if ec := frame.Get("item_enumeration"); ec != nil {
		for _, r := range ec.Rows() {
			if e := r.String("value"); e != "" {
				enums = append(enums, e)
			}
		}
	}

	for _, r := range items.Rows() {
		cat, item := types.SplitTagName(r.String("name"))
		if id := r.String("category_id"); id != "" {
			cat = id
		}
		if item == "" {
			continue
		}

		cv := v.CategoryValidator(cat)
		if cv == nil {
			if err := v.ReportError(fmt.Sprintf("undefined category %s for item %s", cat, r.String("name")), false); err != nil {
				return err
			}
			continue
		}
		cv.AddItemValidator(&validator.ItemValidator{
			Tag:       item,
			Mandatory: strings.EqualFold(r.String("mandatory_code"), "yes"),
			Type:      typ,
			Enums:     enums,
		})
	}
	return nil
}

type linkPair struct {
	childCategory, childItem   string
	parentCategory, parentItem string
}

func linkPairs(c *cif.Category) []linkPair {
	if c == nil {
		return nil
	}
	var out []linkPair
	for _, r := range c.Rows() {
		cc, ci := types.SplitTagName(r.String("child_name"))
		pc, pi := types.SplitTagName(r.String("parent_name"))
		if cc == "" || pc == "" {
			continue
		}
		out = append(out, linkPair{childCategory: cc, childItem: ci, parentCategory: pc, parentItem: pi})
	}
	return out
}

type groupKey struct {
	parent, child string
	group         int
}

// addLinks groups link pairs per parent, child and link group. The
// pdbx_item_linked_group_list category takes precedence over _item_linked.
func addLinks(v *validator.Validator, top *cif.Datablock, linked []linkPair) error {
	groups := make(map[groupKey]*validator.LinkValidator)
	var order []groupKey

	add := func(group int, p linkPair) {
		k := groupKey{strings.ToLower(p.parentCategory), strings.ToLower(p.childCategory), group}
		l, ok := groups[k]
		if !ok {
			l = &validator.LinkValidator{
				LinkGroupID:    group,
				ParentCategory: p.parentCategory,
				ChildCategory:  p.childCategory,
			}
			groups[k] = l
			order = append(order, k)
		}
		for i := range l.ChildKeys {
			if strings.EqualFold(l.ChildKeys[i], p.childItem) && strings.EqualFold(l.ParentKeys[i], p.parentItem) {
				return
			}
		}
		l.ParentKeys = append(l.ParentKeys, p.parentItem)
		l.ChildKeys = append(l.ChildKeys, p.childItem)
	}

	if list := top.Get("pdbx_item_linked_group_list"); list != nil && !list.Empty() {
		for _, r := range list.Rows() {
			group, err := strconv.Atoi(r.String("link_group_id"))
			if err != nil {
				return cerrors.NewLinkError(cerrors.CodeLinkArity,
					fmt.Sprintf("invalid link group id %q", r.Text("link_group_id")))
			}
			cc, ci := types.SplitTagName(r.String("child_name"))
			pc, pi := types.SplitTagName(r.String("parent_name"))
			if id := r.String("child_category_id"); id != "" {
				cc = id
			}
			if id := r.String("parent_category_id"); id != "" {
				pc = id
			}
			add(group, linkPair{childCategory: cc, childItem: ci, parentCategory: pc, parentItem: pi})
		}
	} else {
		for _, p := range linked {
			add(0, p)
		}
	}

	if labels := top.Get("pdbx_item_linked_group"); labels != nil {
		for _, r := range labels.Rows() {
			group, err := strconv.Atoi(r.String("link_group_id"))
			if err != nil {
				continue
			}
			for _, k := range order {
				if k.group == group && strings.EqualFold(k.child, r.String("category_id")) {
					groups[k].LinkGroupLabel = r.String("label")
				}
			}
		}
	}

	for _, k := range order {
		if err := v.AddLinkValidator(groups[k]); err != nil {
			return err
		}
	}
	return nil
}
