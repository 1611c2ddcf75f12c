// Package config loads foldkit.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"foldkit/internal/lang/curly"
)

// FileName is the config file looked up from the working directory upward.
const FileName = "foldkit.toml"

// ErrNotFound is returned by Find when no config file exists up to the root.
var ErrNotFound = errors.New(FileName + " not found")

type Folding struct {
	KeepCollapsed       bool `toml:"keep_collapsed"`
	ValidateSignatures  bool `toml:"validate_signatures"`
	Quick               bool `toml:"quick"`
	CollapseImports     bool `toml:"collapse_imports"`
	CollapseFileHeader  bool `toml:"collapse_file_header"`
	CollapseDocComments bool `toml:"collapse_doc_comments"`
	PlaceholderWidth    int  `toml:"placeholder_width"`
}

type Session struct {
	Dir        string `toml:"dir"`
	MaxEntries int    `toml:"max_entries"`
}

type Update struct {
	CacheSize int `toml:"cache_size"`
	Jobs      int `toml:"jobs"`
}

// Config is the decoded file. Sections left out keep their defaults.
type Config struct {
	Folding Folding `toml:"folding"`
	Session Session `toml:"session"`
	Update  Update  `toml:"update"`

	// Path is the file the config was read from, "" for defaults.
	Path string `toml:"-"`
}

func Default() Config {
	s := curly.DefaultSettings()
	return Config{
		Folding: Folding{
			KeepCollapsed:       true,
			CollapseImports:     s.CollapseImports,
			CollapseFileHeader:  s.CollapseFileHeader,
			CollapseDocComments: s.CollapseDocComments,
			PlaceholderWidth:    s.PlaceholderWidth,
		},
		Session: Session{MaxEntries: 4096},
		Update:  Update{CacheSize: 128},
	}
}

// Curly returns the analyzer settings of the [folding] section.
func (c Config) Curly() curly.Settings {
	return curly.Settings{
		CollapseImports:     c.Folding.CollapseImports,
		CollapseFileHeader:  c.Folding.CollapseFileHeader,
		CollapseDocComments: c.Folding.CollapseDocComments,
		PlaceholderWidth:    c.Folding.PlaceholderWidth,
	}
}

// Find walks up from startDir to locate foldkit.toml.
func Find(startDir string) (string, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNotFound
		}
		dir = parent
	}
}

// Load decodes path over the defaults. Keys foldkit does not know are an
// error.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

// Discover loads the nearest foldkit.toml above startDir, or the defaults
// when there is none.
func Discover(startDir string) (Config, error) {
	path, err := Find(startDir)
	if errors.Is(err, ErrNotFound) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, err
	}
	return Load(path)
}

func (c Config) validate() error {
	switch {
	case c.Folding.PlaceholderWidth < 4:
		return fmt.Errorf("[folding].placeholder_width must be at least 4, got %d", c.Folding.PlaceholderWidth)
	case c.Session.MaxEntries < 0:
		return fmt.Errorf("[session].max_entries must not be negative")
	case c.Update.CacheSize < 1:
		return fmt.Errorf("[update].cache_size must be positive, got %d", c.Update.CacheSize)
	case c.Update.Jobs < 0:
		return fmt.Errorf("[update].jobs must not be negative")
	}
	return nil
}
