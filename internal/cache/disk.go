// Package cache keeps documents downloaded from object storage on local disk
// so that later runs can skip the download.
package cache

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spaolacci/murmur3"

	cerrors "github.com/arkilian/cifstore/internal/errors"
)

// DefaultMaxBytes is the capacity used when none is configured.
const DefaultMaxBytes = 1 << 30

const tempPrefix = ".put-"

// Metrics holds cache statistics.
type Metrics struct {
	Hits      atomic.Int64
	Misses    atomic.Int64
	Evictions atomic.Int64
}

// DiskCache is a size-bounded cache of object files in a directory. Entries
// are named after a hash of their key, so the cache survives restarts; the
// least recently used entries are evicted first.
type DiskCache struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger
	metrics  Metrics

	mu      sync.Mutex
	entries map[string]*entry // file name → entry
	size    int64
}

type entry struct {
	name       string
	size       int64
	lastAccess time.Time
	pins       int
}

// New opens the cache in dir, creating it when needed. Files already in dir
// become entries.
func New(dir string, maxBytes int64, logger *slog.Logger) (*DiskCache, error) {
	if maxBytes <= 0 {
		return nil, cerrors.NewConfigError(fmt.Sprintf("cache size must be positive, got %d", maxBytes), nil)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, cerrors.NewStorageError(cerrors.CodeCacheFailed, "failed to create cache directory", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &DiskCache{
		dir:      dir,
		maxBytes: maxBytes,
		logger:   logger,
		entries:  make(map[string]*entry),
	}
	if err := c.scan(); err != nil {
		return nil, cerrors.NewStorageError(cerrors.CodeCacheFailed, "failed to scan cache directory", err)
	}
	return c, nil
}

func (c *DiskCache) scan() error {
	files, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		if strings.HasPrefix(f.Name(), tempPrefix) {
			os.Remove(filepath.Join(c.dir, f.Name()))
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		c.entries[f.Name()] = &entry{name: f.Name(), size: info.Size(), lastAccess: info.ModTime()}
		c.size += info.Size()
	}
	return nil
}

// fileName maps a key to its file in the cache. The extension of the key is
// kept.
func fileName(key string) string {
	return fmt.Sprintf("%016x%s", murmur3.Sum64([]byte(key)), filepath.Ext(key))
}

func (c *DiskCache) path(name string) string {
	return filepath.Join(c.dir, name)
}

// Get returns the cached file for key.
func (c *DiskCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fileName(key)]
	if !ok {
		c.metrics.Misses.Add(1)
		return "", false
	}
	c.metrics.Hits.Add(1)
	c.touch(e)
	return c.path(e.name), true
}

// Acquire is Get followed by Pin, done atomically. Call Unpin when the file
// is no longer needed.
func (c *DiskCache) Acquire(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fileName(key)]
	if !ok {
		c.metrics.Misses.Add(1)
		return "", false
	}
	c.metrics.Hits.Add(1)
	e.pins++
	c.touch(e)
	return c.path(e.name), true
}

// touch records an access. The file time carries it across restarts.
func (c *DiskCache) touch(e *entry) {
	e.lastAccess = time.Now()
	os.Chtimes(c.path(e.name), e.lastAccess, e.lastAccess)
}

// Put copies the file at sourcePath into the cache as key and returns the
// cached path. Older entries are evicted to stay within capacity.
func (c *DiskCache) Put(key, sourcePath string) (string, error) {
	name := fileName(key)

	src, err := os.Open(sourcePath)
	if err != nil {
		return "", cerrors.NewStorageError(cerrors.CodeCacheFailed, "failed to open "+sourcePath, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(c.dir, tempPrefix+"*")
	if err != nil {
		return "", cerrors.NewStorageError(cerrors.CodeCacheFailed, "failed to create cache file", err)
	}
	size, err := io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", cerrors.NewStorageError(cerrors.CodeCacheFailed, "failed to copy "+key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Rename(tmp.Name(), c.path(name)); err != nil {
		os.Remove(tmp.Name())
		return "", cerrors.NewStorageError(cerrors.CodeCacheFailed, "failed to store "+key, err)
	}

	e, ok := c.entries[name]
	if ok {
		c.size -= e.size
		e.size = size
	} else {
		e = &entry{name: name, size: size}
		c.entries[name] = e
	}
	c.size += size
	e.lastAccess = time.Now()

	c.evict(name)
	return c.path(name), nil
}

// evict removes least recently used entries until the cache fits. Pinned
// entries and keep stay.
func (c *DiskCache) evict(keep string) {
	if c.size <= c.maxBytes {
		return
	}

	candidates := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		if e.pins == 0 && e.name != keep {
			candidates = append(candidates, e)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].lastAccess.Before(candidates[j].lastAccess)
	})

	for _, e := range candidates {
		if c.size <= c.maxBytes {
			break
		}
		if err := os.Remove(c.path(e.name)); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("cache: eviction failed", "file", e.name, "error", err)
			continue
		}
		delete(c.entries, e.name)
		c.size -= e.size
		c.metrics.Evictions.Add(1)
		c.logger.Debug("cache: evicted", "file", e.name, "bytes", e.size)
	}
}

// Pin keeps the entry for key from being evicted until a matching Unpin.
func (c *DiskCache) Pin(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[fileName(key)]; ok {
		e.pins++
	}
}

// Unpin releases a Pin.
func (c *DiskCache) Unpin(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[fileName(key)]; ok && e.pins > 0 {
		e.pins--
	}
}

// Remove drops the entry for key.
func (c *DiskCache) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := fileName(key)
	e, ok := c.entries[name]
	if !ok {
		return false
	}
	os.Remove(c.path(name))
	delete(c.entries, name)
	c.size -= e.size
	return true
}

// Clear removes every entry.
func (c *DiskCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for name := range c.entries {
		os.Remove(c.path(name))
	}
	c.entries = make(map[string]*entry)
	c.size = 0
}

// Size returns the cached bytes.
func (c *DiskCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Count returns the number of entries.
func (c *DiskCache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Capacity returns the maximum size in bytes.
func (c *DiskCache) Capacity() int64 { return c.maxBytes }

// Metrics returns the hit, miss and eviction counts.
func (c *DiskCache) Metrics() (hits, misses, evictions int64) {
	return c.metrics.Hits.Load(), c.metrics.Misses.Load(), c.metrics.Evictions.Load()
}

// HitRate returns the share of lookups that hit, as a percentage.
func (c *DiskCache) HitRate() float64 {
	hits, misses, _ := c.Metrics()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses) * 100
}
