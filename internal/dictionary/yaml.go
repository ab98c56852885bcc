package dictionary

import (
	"io"

	"gopkg.in/yaml.v3"

	cerrors "github.com/arkilian/cifstore/internal/errors"
	"github.com/arkilian/cifstore/pkg/validator"
)

// Document is the resolved shape of a dictionary as stored in YAML or JSON.
type Document struct {
	Name       string        `yaml:"name" json:"name"`
	Version    string        `yaml:"version,omitempty" json:"version,omitempty"`
	Types      []TypeDef     `yaml:"types,omitempty" json:"types,omitempty"`
	Categories []CategoryDef `yaml:"categories" json:"categories"`
	Links      []LinkDef     `yaml:"links,omitempty" json:"links,omitempty"`
}

// TypeDef declares an item type.
type TypeDef struct {
	Code      string `yaml:"code" json:"code"`
	Primitive string `yaml:"primitive" json:"primitive"`
	Construct string `yaml:"construct,omitempty" json:"construct,omitempty"`
}

// CategoryDef declares a category and its items.
type CategoryDef struct {
	Name      string    `yaml:"name" json:"name"`
	Keys      []string  `yaml:"keys,omitempty" json:"keys,omitempty"`
	Mandatory bool      `yaml:"mandatory,omitempty" json:"mandatory,omitempty"`
	Items     []ItemDef `yaml:"items" json:"items"`
}

// ItemDef declares an item of a category.
type ItemDef struct {
	Name      string   `yaml:"name" json:"name"`
	Type      string   `yaml:"type,omitempty" json:"type,omitempty"`
	Mandatory bool     `yaml:"mandatory,omitempty" json:"mandatory,omitempty"`
	Enums     []string `yaml:"enums,omitempty" json:"enums,omitempty"`
}

// LinkDef declares a parent/child link.
type LinkDef struct {
	Group      int      `yaml:"group,omitempty" json:"group,omitempty"`
	Label      string   `yaml:"label,omitempty" json:"label,omitempty"`
	Parent     string   `yaml:"parent" json:"parent"`
	ParentKeys []string `yaml:"parent_keys" json:"parent_keys"`
	Child      string   `yaml:"child" json:"child"`
	ChildKeys  []string `yaml:"child_keys" json:"child_keys"`
}

// LoadYAML reads a Document from r and builds its validator. JSON input is
// accepted as well.
func LoadYAML(r io.Reader, opts ...validator.Option) (*validator.Validator, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCategorySchema, cerrors.CodeValidationFailed,
			"failed to parse dictionary document", err)
	}
	return doc.Build(opts...)
}

// Build resolves the document into a validator.
func (d *Document) Build(opts ...validator.Option) (*validator.Validator, error) {
	v := validator.New(d.Name, opts...)
	if d.Version != "" {
		v.SetVersion(d.Version)
	}

	for _, td := range d.Types {
		prim, err := validator.ParsePrimitiveType(td.Primitive)
		if err != nil {
			return nil, err
		}
		t, err := validator.NewTypeValidator(td.Code, prim, td.Construct)
		if err != nil {
			return nil, err
		}
		v.AddTypeValidator(t)
	}

	for _, cd := range d.Categories {
		cv := validator.NewCategoryValidator(cd.Name, cd.Keys, cd.Mandatory)
		for _, id := range cd.Items {
			iv := &validator.ItemValidator{Tag: id.Name, Mandatory: id.Mandatory, Enums: id.Enums}
			if id.Type != "" {
				if iv.Type = v.TypeValidator(id.Type); iv.Type == nil {
					if err := v.ReportError("undefined type "+id.Type+" for item "+id.Name, false); err != nil {
						return nil, err
					}
				}
			}
			cv.AddItemValidator(iv)
		}
		for _, k := range cd.Keys {
			if cv.ItemValidator(k) == nil {
				return nil, cerrors.NewSchemaError(cerrors.CodeUnknownTag,
					"key "+k+" is not an item of category "+cd.Name)
			}
		}
		v.AddCategoryValidator(cv)
	}

	for _, ld := range d.Links {
		err := v.AddLinkValidator(&validator.LinkValidator{
			LinkGroupID:    ld.Group,
			LinkGroupLabel: ld.Label,
			ParentCategory: ld.Parent,
			ParentKeys:     ld.ParentKeys,
			ChildCategory:  ld.Child,
			ChildKeys:      ld.ChildKeys,
		})
		if err != nil {
			return nil, err
		}
	}
	return v, nil
}

// FromValidator returns the resolved shape of v.
func FromValidator(v *validator.Validator) *Document {
	d := &Document{Name: v.Name(), Version: v.Version()}
	for _, t := range v.Types() {
		d.Types = append(d.Types, TypeDef{Code: t.Name, Primitive: t.Primitive.String(), Construct: t.Pattern})
	}
	for _, cv := range v.Categories() {
		cd := CategoryDef{Name: cv.Name, Keys: cv.Keys, Mandatory: cv.Mandatory}
		for _, f := range cv.Fields() {
			iv := cv.ItemValidator(f)
			id := ItemDef{Name: iv.Tag, Mandatory: iv.Mandatory, Enums: iv.Enums}
			if iv.Type != nil {
				id.Type = iv.Type.Name
			}
			cd.Items = append(cd.Items, id)
		}
		d.Categories = append(d.Categories, cd)
	}
	for _, l := range v.Links() {
		d.Links = append(d.Links, LinkDef{
			Group:      l.LinkGroupID,
			Label:      l.LinkGroupLabel,
			Parent:     l.ParentCategory,
			ParentKeys: l.ParentKeys,
			Child:      l.ChildCategory,
			ChildKeys:  l.ChildKeys,
		})
	}
	return d
}

// WriteYAML writes the resolved shape of v to w.
func WriteYAML(w io.Writer, v *validator.Validator) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(FromValidator(v)); err != nil {
		return err
	}
	return enc.Close()
}
