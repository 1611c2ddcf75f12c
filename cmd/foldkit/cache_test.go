package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"foldkit/internal/snapshot"
)

func TestClearCache(t *testing.T) {
	dir := t.TempDir()
	cache, err := snapshot.OpenDiskCache(dir, "foldkit")
	if err != nil {
		t.Fatal(err)
	}
	if err := cache.Put(&snapshot.Record{Path: "/src/a.cy"}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := clearCache(&buf, dir); err != nil {
		t.Fatalf("clearCache: %v", err)
	}
	if !strings.Contains(buf.String(), dir) {
		t.Fatalf("output %q does not name the cache", buf.String())
	}
	if _, ok, _ := cache.Get("/src/a.cy"); ok {
		t.Fatal("record survived clear")
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("cache directory gone: %v", err)
	}
	leftovers, _ := filepath.Glob(dir + ".old-*")
	if len(leftovers) != 0 {
		t.Fatalf("old cache left behind: %v", leftovers)
	}
}
