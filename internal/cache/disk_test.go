package cache

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	cerrors "github.com/arkilian/cifstore/internal/errors"
)

func writeSource(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to create source file: %v", err)
	}
	return path
}

func TestDiskCache_PutGet(t *testing.T) {
	c, err := New(t.TempDir(), 1024*1024, nil)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	key := "entries/1abc.cif.gz"
	if _, ok := c.Get(key); ok {
		t.Fatal("expected a miss on an empty cache")
	}

	put, err := c.Put(key, writeSource(t, []byte("data_1abc\n")))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if filepath.Ext(put) != ".gz" {
		t.Errorf("cached file %s lost the key extension", put)
	}

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected a hit")
	}
	if got != put {
		t.Errorf("Get = %s, Put returned %s", got, put)
	}
	content, err := os.ReadFile(got)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "data_1abc\n" {
		t.Errorf("cached content = %q", content)
	}

	hits, misses, _ := c.Metrics()
	if hits != 1 || misses != 1 {
		t.Errorf("hits = %d, misses = %d, want 1 and 1", hits, misses)
	}
	if c.HitRate() != 50 {
		t.Errorf("HitRate = %v, want 50", c.HitRate())
	}
}

func TestDiskCache_Replace(t *testing.T) {
	c, err := New(t.TempDir(), 1024, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.Put("doc.cif", writeSource(t, bytes.Repeat([]byte("a"), 10))); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Put("doc.cif", writeSource(t, bytes.Repeat([]byte("b"), 4))); err != nil {
		t.Fatal(err)
	}
	if c.Count() != 1 || c.Size() != 4 {
		t.Errorf("Count = %d, Size = %d, want 1 and 4", c.Count(), c.Size())
	}
}

func TestDiskCache_Eviction(t *testing.T) {
	c, err := New(t.TempDir(), 100, nil)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("doc-%d.cif", i)
		if _, err := c.Put(key, writeSource(t, bytes.Repeat([]byte{byte(i)}, 30))); err != nil {
			t.Fatalf("Put %s failed: %v", key, err)
		}
		time.Sleep(time.Millisecond)
	}

	if c.Size() > 100 {
		t.Errorf("size %d exceeds capacity", c.Size())
	}
	if _, ok := c.Get("doc-4.cif"); !ok {
		t.Error("most recent entry was evicted")
	}
	if _, ok := c.Get("doc-0.cif"); ok {
		t.Error("oldest entry survived")
	}
	if _, _, evictions := c.Metrics(); evictions != 2 {
		t.Errorf("evictions = %d, want 2", evictions)
	}
}

func TestDiskCache_Pinned(t *testing.T) {
	c, err := New(t.TempDir(), 100, nil)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	if _, err := c.Put("pinned.cif", writeSource(t, []byte("pinned content"))); err != nil {
		t.Fatal(err)
	}
	c.Pin("pinned.cif")

	for i := 0; i < 4; i++ {
		key := fmt.Sprintf("doc-%d.cif", i)
		if _, err := c.Put(key, writeSource(t, make([]byte, 25))); err != nil {
			t.Fatal(err)
		}
	}

	if _, ok := c.Get("pinned.cif"); !ok {
		t.Fatal("pinned entry was evicted")
	}

	c.Unpin("pinned.cif")
	if _, err := c.Put("last.cif", writeSource(t, make([]byte, 90))); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("pinned.cif"); ok {
		t.Error("unpinned entry survived")
	}
}

func TestDiskCache_Reopen(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, 1024, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Put("a.cif", writeSource(t, []byte("one"))); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Put("b.cif", writeSource(t, []byte("three"))); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, tempPrefix+"stale"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	reopened, err := New(dir, 1024, nil)
	if err != nil {
		t.Fatal(err)
	}
	if reopened.Count() != 2 || reopened.Size() != 8 {
		t.Errorf("Count = %d, Size = %d, want 2 and 8", reopened.Count(), reopened.Size())
	}
	if _, ok := reopened.Get("b.cif"); !ok {
		t.Error("entry lost across reopen")
	}
	if _, err := os.Stat(filepath.Join(dir, tempPrefix+"stale")); !os.IsNotExist(err) {
		t.Error("stale temp file was not removed")
	}
}

func TestDiskCache_RemoveClear(t *testing.T) {
	c, err := New(t.TempDir(), 1024, nil)
	if err != nil {
		t.Fatal(err)
	}
	path, err := c.Put("a.cif", writeSource(t, []byte("one")))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Put("b.cif", writeSource(t, []byte("two"))); err != nil {
		t.Fatal(err)
	}

	if !c.Remove("a.cif") {
		t.Error("Remove reported a missing entry")
	}
	if c.Remove("a.cif") {
		t.Error("second Remove reported success")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("removed file still exists")
	}

	c.Clear()
	if c.Count() != 0 || c.Size() != 0 {
		t.Errorf("Count = %d, Size = %d after Clear", c.Count(), c.Size())
	}
}

func TestDiskCache_InvalidCapacity(t *testing.T) {
	_, err := New(t.TempDir(), 0, nil)
	if cerrors.GetCode(err) != cerrors.CodeInvalidConfig {
		t.Errorf("expected INVALID_CONFIG, got %v", err)
	}
}

func TestDiskCache_Concurrent(t *testing.T) {
	c, err := New(t.TempDir(), 1024*1024, nil)
	if err != nil {
		t.Fatal(err)
	}
	source := writeSource(t, []byte("test content"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if id%2 == 0 {
				c.Get("shared.cif")
			} else if _, err := c.Put("shared.cif", source); err != nil {
				t.Errorf("Put failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if c.Count() != 1 || c.Size() != 12 {
		t.Errorf("Count = %d, Size = %d, want 1 and 12", c.Count(), c.Size())
	}
}

func TestDiskCache_Acquire(t *testing.T) {
	c, err := New(t.TempDir(), 50, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Acquire("held.cif"); ok {
		t.Fatal("expected a miss")
	}
	if _, err := c.Put("held.cif", writeSource(t, make([]byte, 20))); err != nil {
		t.Fatal(err)
	}

	path, ok := c.Acquire("held.cif")
	if !ok {
		t.Fatal("expected a hit")
	}
	if _, err := c.Put("big.cif", writeSource(t, make([]byte, 40))); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("acquired file was evicted: %v", err)
	}

	c.Unpin("held.cif")
	if _, err := c.Put("other.cif", writeSource(t, make([]byte, 10))); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("released file survived eviction")
	}
}
