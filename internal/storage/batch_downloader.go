package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"
)

// BatchDownloader fetches many objects in parallel into a local directory.
// Objects already present in the directory are not downloaded again.
type BatchDownloader struct {
	storage     ObjectStorage
	concurrency int
	cacheDir    string
}

// BatchResult contains the outcome of a batch download.
type BatchResult struct {
	LocalPaths map[string]string
	Errors     map[string]error
	CacheHits  int
	Downloads  int
}

// NewBatchDownloader creates a new batch downloader writing into cacheDir.
// A concurrency below one downloads sequentially.
func NewBatchDownloader(storage ObjectStorage, concurrency int, cacheDir string) *BatchDownloader {
	if concurrency < 1 {
		concurrency = 1
	}
	return &BatchDownloader{
		storage:     storage,
		concurrency: concurrency,
		cacheDir:    cacheDir,
	}
}

// Download fetches the given objects. Failures are reported per object in
// the result; the returned error is set only when ctx ends first.
func (b *BatchDownloader) Download(ctx context.Context, objectPaths []string) (*BatchResult, error) {
	result := &BatchResult{
		LocalPaths: make(map[string]string),
		Errors:     make(map[string]error),
	}

	var queue []string
	seen := make(map[string]bool, len(objectPaths))
	for _, p := range objectPaths {
		if seen[p] {
			continue
		}
		seen[p] = true

		local := b.LocalPath(p)
		if _, err := os.Stat(local); err == nil {
			result.LocalPaths[p] = local
			result.CacheHits++
			continue
		}
		queue = append(queue, p)
	}

	sem := semaphore.NewWeighted(int64(b.concurrency))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, p := range queue {
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return result, err
		}

		wg.Add(1)
		go func(path, local string) {
			defer sem.Release(1)
			defer wg.Done()

			err := b.storage.Download(ctx, path, local)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors[path] = err
				return
			}
			result.LocalPaths[path] = local
			result.Downloads++
		}(p, b.LocalPath(p))
	}

	wg.Wait()
	return result, nil
}

// LocalPath returns the cache location of an object. Directory separators
// in the object path are flattened so every object lands in cacheDir.
func (b *BatchDownloader) LocalPath(objectPath string) string {
	name := strings.ReplaceAll(objectPath, "/", "_")
	name = strings.ReplaceAll(name, string(filepath.Separator), "_")
	return filepath.Join(b.cacheDir, name)
}
