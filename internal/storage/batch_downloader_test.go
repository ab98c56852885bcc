package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
)

func uploadObjects(t *testing.T, storage ObjectStorage, paths []string) {
	t.Helper()
	ctx := context.Background()
	for _, p := range paths {
		src := writeSource(t, "data_"+p+"\n")
		if err := storage.Upload(ctx, src, p); err != nil {
			t.Fatalf("Upload failed for %s: %v", p, err)
		}
	}
}

func TestBatchDownloader_BasicDownload(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	var paths []string
	for i := 0; i < 10; i++ {
		paths = append(paths, fmt.Sprintf("dir/obj%d.cif", i))
	}
	uploadObjects(t, storage, paths)

	cacheDir := t.TempDir()
	downloader := NewBatchDownloader(storage, 3, cacheDir)
	result, err := downloader.Download(context.Background(), paths)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}

	if len(result.LocalPaths) != len(paths) {
		t.Errorf("expected %d local paths, got %d", len(paths), len(result.LocalPaths))
	}
	if len(result.Errors) != 0 {
		t.Errorf("expected no errors, got %v", result.Errors)
	}
	if result.CacheHits != 0 {
		t.Errorf("expected 0 cache hits, got %d", result.CacheHits)
	}
	if result.Downloads != len(paths) {
		t.Errorf("expected %d downloads, got %d", len(paths), result.Downloads)
	}
	for _, p := range paths {
		if _, err := os.Stat(result.LocalPaths[p]); err != nil {
			t.Errorf("downloaded file for %s missing: %v", p, err)
		}
	}
}

func TestBatchDownloader_CacheHit(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	paths := []string{"a.cif", "b.cif"}
	uploadObjects(t, storage, paths)

	downloader := NewBatchDownloader(storage, 2, t.TempDir())
	ctx := context.Background()
	if _, err := downloader.Download(ctx, paths); err != nil {
		t.Fatalf("first Download failed: %v", err)
	}

	result, err := downloader.Download(ctx, append(paths, "a.cif"))
	if err != nil {
		t.Fatalf("second Download failed: %v", err)
	}
	if result.CacheHits != 2 || result.Downloads != 0 {
		t.Errorf("expected 2 cache hits and no downloads, got %d and %d", result.CacheHits, result.Downloads)
	}
}

func TestBatchDownloader_PartialFailure(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	uploadObjects(t, storage, []string{"ok.cif"})

	downloader := NewBatchDownloader(storage, 2, t.TempDir())
	result, err := downloader.Download(context.Background(), []string{"ok.cif", "missing.cif"})
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if _, ok := result.LocalPaths["ok.cif"]; !ok {
		t.Error("expected ok.cif to be downloaded")
	}
	if !errors.Is(result.Errors["missing.cif"], ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound for missing.cif, got %v", result.Errors["missing.cif"])
	}
}

func TestBatchDownloader_EmptyRequest(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	result, err := NewBatchDownloader(storage, 0, t.TempDir()).Download(context.Background(), nil)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if len(result.LocalPaths) != 0 || len(result.Errors) != 0 {
		t.Errorf("expected an empty result, got %+v", result)
	}
}

func TestBatchDownloader_LocalPath(t *testing.T) {
	downloader := NewBatchDownloader(nil, 1, "cache")
	a, b := downloader.LocalPath("x/1.cif"), downloader.LocalPath("y/1.cif")
	if a == b {
		t.Errorf("objects in different directories share cache path %s", a)
	}
}
