package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"foldkit/internal/driver"
)

func TestPrintScan(t *testing.T) {
	results := []driver.ScanResult{
		{Path: "a.cy", Regions: 4, Collapsed: 1},
		{Path: "b.cy", Err: errors.New("boom")},
		{Path: "c.cy", Regions: 2},
	}
	var buf bytes.Buffer
	if failed := printScan(&buf, results, false); failed != 1 {
		t.Fatalf("failed = %d, want 1", failed)
	}
	out := buf.String()
	for _, want := range []string{"a.cy", "error: boom", "6 regions", "1 collapsed", "3 files, 1 failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}

	buf.Reset()
	printScan(&buf, results, true)
	if strings.Contains(buf.String(), "a.cy") {
		t.Fatalf("quiet output lists files:\n%s", buf.String())
	}
}

func TestAbsPaths(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	got, err := absPaths([]string{"main.cy", filepath.Join(dir, "x.cy")})
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != filepath.Join(dir, "main.cy") || got[1] != filepath.Join(dir, "x.cy") {
		t.Fatalf("absPaths = %v", got)
	}
}
