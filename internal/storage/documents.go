package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arkilian/cifstore/internal/cache"
	cerrors "github.com/arkilian/cifstore/internal/errors"
	"github.com/arkilian/cifstore/pkg/cif"
	"github.com/arkilian/cifstore/pkg/validator"
)

// DefaultMaxParallelLoads bounds LoadAll when no limit is configured.
const DefaultMaxParallelLoads = 4

// Documents loads and saves whole CIF files in an ObjectStorage. Keys ending
// in .gz or .sz are compressed unless a fixed compression is configured.
type Documents struct {
	store       ObjectStorage
	compression Compression
	validator   *validator.Validator
	maxParallel int
	cifOptions  []cif.Option
	cache       *cache.DiskCache
	logger      *slog.Logger
}

// DocumentsOption configures Documents.
type DocumentsOption func(*Documents)

// WithCompression fixes the compression instead of detecting it per key.
func WithCompression(c Compression) DocumentsOption {
	return func(d *Documents) { d.compression = c }
}

// WithValidator attaches a dictionary to every loaded file.
func WithValidator(v *validator.Validator) DocumentsOption {
	return func(d *Documents) { d.validator = v }
}

// WithMaxParallelLoads bounds the number of concurrent loads in LoadAll.
func WithMaxParallelLoads(n int) DocumentsOption {
	return func(d *Documents) {
		if n > 0 {
			d.maxParallel = n
		}
	}
}

// WithCIFOptions sets the options for loaded files.
func WithCIFOptions(opts ...cif.Option) DocumentsOption {
	return func(d *Documents) { d.cifOptions = append(d.cifOptions, opts...) }
}

// WithCache keeps downloaded documents in c. Saving a document drops its
// cached copy.
func WithCache(c *cache.DiskCache) DocumentsOption {
	return func(d *Documents) { d.cache = c }
}

// WithDocumentsLogger sets the logger.
func WithDocumentsLogger(logger *slog.Logger) DocumentsOption {
	return func(d *Documents) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDocuments returns a document store on top of store.
func NewDocuments(store ObjectStorage, opts ...DocumentsOption) *Documents {
	d := &Documents{
		store:       store,
		compression: CompressionAuto,
		maxParallel: DefaultMaxParallelLoads,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Storage returns the underlying object storage.
func (d *Documents) Storage() ObjectStorage { return d.store }

// Load downloads and parses the document at key.
func (d *Documents) Load(ctx context.Context, key string) (*cif.File, error) {
	if d.cache != nil {
		if local, ok := d.cache.Acquire(key); ok {
			defer d.cache.Unpin(key)
			return d.parse(key, local)
		}
	}

	dir, err := os.MkdirTemp("", "cifstore-load-*")
	if err != nil {
		return nil, downloadError(key, err)
	}
	defer os.RemoveAll(dir)

	local := filepath.Join(dir, "document")
	if err := d.store.Download(ctx, key, local); err != nil {
		return nil, err
	}
	d.remember(key, local)
	return d.parse(key, local)
}

// remember copies a downloaded document into the cache. Failures only cost
// a later download.
func (d *Documents) remember(key, local string) {
	if d.cache == nil {
		return
	}
	if _, err := d.cache.Put(key, local); err != nil {
		d.logger.Warn("storage: failed to cache document", "key", key, "error", err)
	}
}

// LoadAll loads the documents at keys, at most maxParallel at a time. The
// files are returned in key order. The first failure cancels the rest.
func (d *Documents) LoadAll(ctx context.Context, keys []string) ([]*cif.File, error) {
	start := time.Now()
	paths := make(map[string]string, len(keys))
	var missing []string
	for _, key := range keys {
		if _, seen := paths[key]; seen {
			continue
		}
		if d.cache != nil {
			if local, ok := d.cache.Acquire(key); ok {
				defer d.cache.Unpin(key)
				paths[key] = local
				continue
			}
		}
		paths[key] = ""
		missing = append(missing, key)
	}

	downloads := 0
	if len(missing) > 0 {
		dir, err := os.MkdirTemp("", "cifstore-batch-*")
		if err != nil {
			return nil, downloadError("batch", err)
		}
		defer os.RemoveAll(dir)

		downloader := NewBatchDownloader(d.store, d.maxParallel, dir)
		result, err := downloader.Download(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, key := range missing {
			if err := result.Errors[key]; err != nil {
				return nil, err
			}
			paths[key] = result.LocalPaths[key]
			d.remember(key, paths[key])
		}
		downloads = result.Downloads
	}

	files := make([]*cif.File, len(keys))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.maxParallel)
	for i, key := range keys {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := d.parse(key, paths[key])
			if err != nil {
				return err
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d.logger.Debug("storage: loaded documents",
		"count", len(keys),
		"downloads", downloads,
		"cached", len(paths)-len(missing),
		"duration", time.Since(start))
	return files, nil
}

func (d *Documents) parse(key, local string) (*cif.File, error) {
	in, err := os.Open(local)
	if err != nil {
		return nil, downloadError(key, err)
	}
	defer in.Close()

	r, err := NewReader(in, d.compression.resolve(key))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	f := cif.NewFile(d.cifOptions...)
	if d.validator != nil {
		if err := f.SetValidator(d.validator); err != nil {
			return nil, err
		}
	}
	if err := f.Load(r); err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}

	d.logger.Debug("storage: loaded document", "key", key, "datablocks", f.Len())
	return f, nil
}

// Save writes f to key, replacing any existing object.
func (d *Documents) Save(ctx context.Context, key string, f *cif.File) error {
	tmp, err := os.CreateTemp("", "cifstore-save-*")
	if err != nil {
		return uploadError(key, err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	w, err := NewWriter(tmp, d.compression.resolve(key))
	if err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return uploadError(key, err)
	}
	if err := w.Close(); err != nil {
		return cerrors.NewStorageError(cerrors.CodeCodecFailed, "failed to finish "+key, err)
	}
	if err := tmp.Close(); err != nil {
		return uploadError(key, err)
	}

	if err := d.store.Upload(ctx, tmp.Name(), key); err != nil {
		return err
	}
	if d.cache != nil {
		d.cache.Remove(key)
	}
	d.logger.Debug("storage: saved document", "key", key, "datablocks", f.Len())
	return nil
}
