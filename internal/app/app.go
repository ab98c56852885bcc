// Package app implements the cifstore operations behind the command line:
// validating, querying, renaming, erasing and reformatting documents.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/arkilian/cifstore/internal/config"
	"github.com/arkilian/cifstore/internal/dictionary"
	cerrors "github.com/arkilian/cifstore/internal/errors"
	"github.com/arkilian/cifstore/internal/query/parser"
	"github.com/arkilian/cifstore/internal/storage"
	"github.com/arkilian/cifstore/pkg/cif"
	"github.com/arkilian/cifstore/pkg/validator"
)

// ErrValidationFailed is returned by Validate when a document has problems.
var ErrValidationFailed = errors.New("validation failed")

// App holds the resources shared by all operations.
type App struct {
	cfg       *config.Config
	logger    *slog.Logger
	validator *validator.Validator

	// store holds documents addressed by key; local holds documents
	// addressed by a path on disk.
	store *storage.Documents
	local *storage.Documents
}

// New creates an App for cfg. The dictionary is loaded when configured.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	a := &App{cfg: cfg, logger: logger}

	if cfg.Dictionary.Path != "" {
		opts := append(cfg.ValidatorOptions(), validator.WithLogger(logger))
		v, err := dictionary.Load(cfg.Dictionary.Path, opts...)
		if err != nil {
			return nil, err
		}
		a.validator = v
		logger.Debug("app: loaded dictionary", "name", v.Name(), "version", v.Version())
	}

	docOpts, err := cfg.DocumentsOptions()
	if err != nil {
		return nil, err
	}
	docOpts = append(docOpts,
		storage.WithCIFOptions(cif.WithLogger(logger)),
		storage.WithDocumentsLogger(logger),
	)
	if a.validator != nil {
		docOpts = append(docOpts, storage.WithValidator(a.validator))
	}

	store, err := cfg.OpenStorage(ctx)
	if err != nil {
		return nil, err
	}
	diskCache, err := cfg.OpenCache(logger)
	if err != nil {
		return nil, err
	}
	storeOpts := docOpts
	if diskCache != nil {
		storeOpts = append(slices.Clone(docOpts), storage.WithCache(diskCache))
	}
	a.store = storage.NewDocuments(store, storeOpts...)

	root, err := filesystemRoot()
	if err != nil {
		return nil, err
	}
	local, err := storage.NewLocalStorage(root)
	if err != nil {
		return nil, err
	}
	a.local = storage.NewDocuments(local, docOpts...)

	return a, nil
}

// Validator returns the loaded dictionary, or nil.
func (a *App) Validator() *validator.Validator { return a.validator }

func filesystemRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", cerrors.NewConfigError("failed to determine working directory", err)
	}
	return filepath.VolumeName(wd) + string(filepath.Separator), nil
}

// resolve maps a document reference to a document store and key. An
// existing file on disk wins over a key in the configured storage.
func (a *App) resolve(ref string) (*storage.Documents, string) {
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return a.local, localKey(ref)
	}
	return a.store, ref
}

// resolveOutput maps an output reference. Paths whose directory exists on
// disk are written there, anything else goes to the configured storage.
func (a *App) resolveOutput(ref string) (*storage.Documents, string) {
	if info, err := os.Stat(filepath.Dir(ref)); err == nil && info.IsDir() {
		return a.local, localKey(ref)
	}
	return a.store, ref
}

func localKey(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	abs = strings.TrimPrefix(abs, filepath.VolumeName(abs))
	return filepath.ToSlash(strings.TrimPrefix(abs, string(filepath.Separator)))
}

// Load reads the document at ref.
func (a *App) Load(ctx context.Context, ref string) (*cif.File, error) {
	docs, key := a.resolve(ref)
	return docs.Load(ctx, key)
}

// LoadAll reads the documents at refs in parallel, keeping their order.
func (a *App) LoadAll(ctx context.Context, refs []string) ([]*cif.File, error) {
	var localRefs, storeRefs []string
	var localIdx, storeIdx []int
	for i, ref := range refs {
		docs, key := a.resolve(ref)
		if docs == a.local {
			localRefs = append(localRefs, key)
			localIdx = append(localIdx, i)
		} else {
			storeRefs = append(storeRefs, key)
			storeIdx = append(storeIdx, i)
		}
	}

	files := make([]*cif.File, len(refs))
	for _, group := range []struct {
		docs *storage.Documents
		keys []string
		idx  []int
	}{
		{a.local, localRefs, localIdx},
		{a.store, storeRefs, storeIdx},
	} {
		if len(group.keys) == 0 {
			continue
		}
		loaded, err := group.docs.LoadAll(ctx, group.keys)
		if err != nil {
			return nil, err
		}
		for i, f := range loaded {
			files[group.idx[i]] = f
		}
	}
	return files, nil
}

// Save writes f to out, or to w when out is empty.
func (a *App) Save(ctx context.Context, f *cif.File, out string, w io.Writer) error {
	if out == "" {
		return f.Write(w)
	}
	docs, key := a.resolveOutput(out)
	return docs.Save(ctx, key, f)
}

// Validate checks every document at refs against the dictionary and its
// links, reporting one line per document to w.
func (a *App) Validate(ctx context.Context, refs []string, w io.Writer) error {
	if a.validator == nil {
		return cerrors.NewConfigError("validation needs a dictionary", nil)
	}

	files, err := a.LoadAll(ctx, refs)
	if err != nil {
		return err
	}

	failed := 0
	for i, f := range files {
		err := f.Validate()
		for _, d := range f.Blocks() {
			err = errors.Join(err, d.ValidateLinks())
		}
		if err != nil {
			failed++
			fmt.Fprintf(w, "%s: FAILED\n", refs[i])
			for _, line := range strings.Split(err.Error(), "\n") {
				fmt.Fprintf(w, "  %s\n", line)
			}
			continue
		}
		fmt.Fprintf(w, "%s: OK\n", refs[i])
	}

	a.logger.Info("app: validated documents", "count", len(files), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d documents", ErrValidationFailed, failed, len(files))
	}
	return nil
}

// categories returns the named category of every datablock in f that has
// one.
func categories(f *cif.File, name string) []*cif.Category {
	var out []*cif.Category
	for _, d := range f.Blocks() {
		if c := d.Get(name); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// writeRows writes rows as a copy of their category, one datablock per
// source datablock.
func (a *App) writeRows(w io.Writer, block, category string, rows []cif.Row) error {
	if len(rows) == 0 {
		return nil
	}
	d := cif.NewDatablock(block, a.cfg.CIFOptions()...)
	c := d.Category(category)
	for _, r := range rows {
		if _, err := c.Emplace(r.Values()...); err != nil {
			return err
		}
	}
	return d.Write(w)
}

// Find writes the rows of category matching expr to w and returns how many
// were found.
func (a *App) Find(ctx context.Context, ref, category, expr string, w io.Writer) (int, error) {
	cond, err := parser.Compile(expr)
	if err != nil {
		return 0, err
	}
	f, err := a.Load(ctx, ref)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, d := range f.Blocks() {
		c := d.Get(category)
		if c == nil {
			continue
		}
		rows, err := c.Find(cond)
		if err != nil {
			return total, err
		}
		if err := a.writeRows(w, d.Name(), c.Name(), rows); err != nil {
			return total, err
		}
		total += len(rows)
	}
	return total, nil
}

// Rename assigns value to tag in the rows of category matching expr, with
// cascading, and saves the result to out (or w).
func (a *App) Rename(ctx context.Context, ref, category, expr, tag, value, out string, w io.Writer) (int, error) {
	cond, err := parser.Compile(expr)
	if err != nil {
		return 0, err
	}
	f, err := a.Load(ctx, ref)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, c := range categories(f, category) {
		n, err := c.Count(cond)
		if err != nil {
			return 0, err
		}
		if err := c.Update(cond, tag, value); err != nil {
			return 0, err
		}
		total += n
	}
	a.logger.Info("app: renamed rows", "category", category, "tag", tag, "count", total)
	return total, a.Save(ctx, f, out, w)
}

// Erase removes the rows of category matching expr, with cascading, and
// saves the result to out (or w).
func (a *App) Erase(ctx context.Context, ref, category, expr, out string, w io.Writer) (int, error) {
	cond, err := parser.Compile(expr)
	if err != nil {
		return 0, err
	}
	f, err := a.Load(ctx, ref)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, c := range categories(f, category) {
		n, err := c.EraseWhere(cond)
		if err != nil {
			return 0, err
		}
		total += n
	}
	a.logger.Info("app: erased rows", "category", category, "count", total)
	return total, a.Save(ctx, f, out, w)
}

// Orphans lists the rows of category without a parent. With erase set the
// orphans are removed instead and the document is saved to out (or w).
func (a *App) Orphans(ctx context.Context, ref, category string, erase bool, out string, w io.Writer) (int, error) {
	if a.validator == nil {
		return 0, cerrors.NewConfigError("orphan detection needs a dictionary", nil)
	}
	f, err := a.Load(ctx, ref)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, d := range f.Blocks() {
		c := d.Get(category)
		if c == nil {
			continue
		}
		var orphans []cif.Row
		for _, r := range c.Rows() {
			orphan, err := c.IsOrphan(r)
			if err != nil {
				return 0, err
			}
			if orphan {
				orphans = append(orphans, r)
			}
		}
		total += len(orphans)

		if erase {
			if err := c.EraseOrphans(cif.All()); err != nil {
				return 0, err
			}
			continue
		}
		if err := a.writeRows(w, d.Name(), c.Name(), orphans); err != nil {
			return 0, err
		}
	}

	if erase {
		a.logger.Info("app: erased orphans", "category", category, "count", total)
		return total, a.Save(ctx, f, out, w)
	}
	return total, nil
}

// Format rewrites the document at ref in canonical order to out (or w).
func (a *App) Format(ctx context.Context, ref, out string, w io.Writer) error {
	f, err := a.Load(ctx, ref)
	if err != nil {
		return err
	}
	return a.Save(ctx, f, out, w)
}

// WriteDictionary writes the loaded dictionary as YAML.
func (a *App) WriteDictionary(w io.Writer) error {
	if a.validator == nil {
		return cerrors.NewConfigError("no dictionary configured", nil)
	}
	return dictionary.WriteYAML(w, a.validator)
}
