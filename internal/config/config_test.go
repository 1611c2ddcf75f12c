package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, FileName)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	want := writeConfig(t, root, "")
	deep := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatal(err)
	}
	got, err := Find(deep)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got != want {
		t.Fatalf("Find = %q, want %q", got, want)
	}
}

func TestDiscoverDefaults(t *testing.T) {
	dir := t.TempDir()
	if _, err := Find(dir); !errors.Is(err, ErrNotFound) {
		t.Skipf("%s above %s", FileName, dir)
	}
	cfg, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("got %+v, want defaults", cfg)
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
		check   func(t *testing.T, c Config)
	}{
		{
			name: "empty keeps defaults",
			body: "",
			check: func(t *testing.T, c Config) {
				if c != withPath(Default(), c.Path) {
					t.Fatalf("got %+v", c)
				}
			},
		},
		{
			name: "sections",
			body: "[folding]\nkeep_collapsed = false\nplaceholder_width = 12\ncollapse_imports = false\n[session]\nmax_entries = 10\n[update]\njobs = 3\n",
			check: func(t *testing.T, c Config) {
				if c.Folding.KeepCollapsed || c.Folding.PlaceholderWidth != 12 || c.Session.MaxEntries != 10 || c.Update.Jobs != 3 {
					t.Fatalf("got %+v", c)
				}
				if s := c.Curly(); s.CollapseImports || s.PlaceholderWidth != 12 {
					t.Fatalf("curly settings %+v", s)
				}
				if c.Update.CacheSize != 128 {
					t.Fatalf("untouched key lost its default: %+v", c.Update)
				}
			},
		},
		{name: "unknown key", body: "[folding]\ncolapse_imports = true\n", wantErr: "folding.colapse_imports"},
		{name: "unknown section", body: "[theme]\nname = \"x\"\n", wantErr: "theme.name"},
		{name: "bad width", body: "[folding]\nplaceholder_width = 1\n", wantErr: "placeholder_width"},
		{name: "syntax", body: "[folding\n", wantErr: "failed to parse TOML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := writeConfig(t, t.TempDir(), tt.body)
			c, err := Load(p)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if c.Path != p {
				t.Fatalf("Path = %q", c.Path)
			}
			tt.check(t, c)
		})
	}
}

func withPath(c Config, p string) Config {
	c.Path = p
	return c
}
