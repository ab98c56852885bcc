package dictionary

import (
	"fmt"
	"path/filepath"
	"strings"

	cerrors "github.com/arkilian/cifstore/internal/errors"
	"github.com/arkilian/cifstore/internal/storage"
	"github.com/arkilian/cifstore/pkg/validator"
)

// Load reads the dictionary at path, choosing the loader by extension:
// ".dic" and ".cif" are DDL, ".yaml", ".yml" and ".json" are documents. A
// trailing ".gz" or ".sz" is decoded first. DDL dictionaries take the name
// of their _dictionary.title.
func Load(path string, opts ...validator.Option) (*validator.Validator, error) {
	base := filepath.Base(storage.TrimCompression(path))
	ext := strings.ToLower(filepath.Ext(base))

	rc, err := storage.OpenFile(path)
	if err != nil {
		return nil, cerrors.Wrap(cerrors.ErrCategorySchema, cerrors.CodeValidationFailed,
			fmt.Sprintf("failed to open dictionary %s", path), err)
	}
	defer rc.Close()

	switch ext {
	case ".dic", ".cif":
		return ParseDDL("", rc, opts...)
	case ".yaml", ".yml", ".json":
		return LoadYAML(rc, opts...)
	default:
		return nil, cerrors.NewSchemaError(cerrors.CodeValidationFailed,
			fmt.Sprintf("unsupported dictionary format %q", ext))
	}
}
