package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"foldkit/internal/editor"
	"foldkit/internal/fold"
	"foldkit/internal/source"
)

// Current schema version - increment when Record format changes
const recordSchemaVersion uint16 = 1

// DiskCache хранит состояние сворачивания между сессиями, по одному файлу
// на документ. Thread-safe for concurrent access.
type DiskCache struct {
	mu  sync.RWMutex
	dir string
}

// Record is the stored session state of one document.
type Record struct {
	Schema uint16
	Path   string

	// ContentHash is the document content the zombies were taken from.
	ContentHash [32]byte
	Saved       int64 // unix nanos

	Elements []ElementRecord
	Markers  []MarkerRecord
	Zombies  []ZombieRecord
}

type ElementRecord struct {
	Signature string
	Expanded  bool
}

type MarkerRecord struct {
	Start, End  uint32
	Expanded    bool
	Placeholder string
	Date        int64
}

// ZombieRecord is an auto-created region to pre-seed before analysis runs.
type ZombieRecord struct {
	Start, End  uint32
	Placeholder string
	Group       string
	NeverExpand bool
	Expanded    bool
}

// OpenDiskCache opens the cache in dir, or in $XDG_CACHE_HOME/app when dir
// is empty.
func OpenDiskCache(dir, app string) (*DiskCache, error) {
	if dir == "" {
		base := os.Getenv("XDG_CACHE_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			base = filepath.Join(home, ".cache")
		}
		dir = filepath.Join(base, app)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskCache{dir: dir}, nil
}

func (c *DiskCache) Dir() string { return c.dir }

func (c *DiskCache) pathFor(docPath string) string {
	sum := sha256.Sum256([]byte(docPath))
	return filepath.Join(c.dir, "docs", hex.EncodeToString(sum[:16])+".mp")
}

// Put writes rec, replacing the previous record of rec.Path atomically.
func (c *DiskCache) Put(rec *Record) error {
	if c == nil || rec == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	rec.Schema = recordSchemaVersion
	p := c.pathFor(rec.Path)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if rmErr := os.Remove(tmp); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "failed to remove temp file: %v\n", rmErr)
		}
	}()

	if err := msgpack.NewEncoder(f).Encode(rec); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode session %s: %w", rec.Path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	return os.Rename(tmp, p)
}

// Get reads the record of docPath. A record of another schema reads as
// missing.
func (c *DiskCache) Get(docPath string) (*Record, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(docPath))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()
	var rec Record
	if err := msgpack.NewDecoder(f).Decode(&rec); err != nil {
		return nil, false, fmt.Errorf("decode session %s: %w", docPath, err)
	}
	if rec.Schema != recordSchemaVersion || rec.Path != docPath {
		return nil, false, nil
	}
	return &rec, true, nil
}

// Delete drops the record of docPath.
func (c *DiskCache) Delete(docPath string) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	err := os.Remove(c.pathFor(docPath))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// DropAll invalidates the cache, useful after format changes.
func (c *DiskCache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		return err
	}
	if err := os.RemoveAll(old); err != nil {
		return err
	}
	return os.MkdirAll(c.dir, 0o755)
}

// NewRecord builds the record of doc from its snapshot and, when v is set,
// the zombies of v. Undated markers are not recorded.
func NewRecord(doc *source.Document, s *Snapshot, v *editor.View, limit int) *Record {
	rec := &Record{
		Schema:      recordSchemaVersion,
		Path:        doc.Path(),
		ContentHash: doc.ContentHash(),
		Saved:       time.Now().UnixNano(),
	}
	n := 0
	for _, e := range s.Entries {
		if limit > 0 && n >= limit {
			break
		}
		switch e := e.(type) {
		case BySignature:
			rec.Elements = append(rec.Elements, ElementRecord(e))
			n++
		case ByMarker:
			if !e.Dated {
				continue
			}
			rec.Markers = append(rec.Markers, MarkerRecord{
				Start:       e.Span.Start,
				End:         e.Span.End,
				Expanded:    e.Expanded,
				Placeholder: e.Placeholder,
				Date:        e.Date,
			})
			n++
		}
	}
	if v != nil {
		rec.Zombies = CaptureZombies(v)
	}
	return rec
}

// Snapshot returns the entries of rec.
func (rec *Record) Snapshot() *Snapshot {
	s := &Snapshot{Path: rec.Path}
	for _, e := range rec.Elements {
		s.Entries = append(s.Entries, BySignature(e))
	}
	for _, m := range rec.Markers {
		s.Entries = append(s.Entries, ByMarker{
			Span:        source.NewSpan(m.Start, m.End),
			Expanded:    m.Expanded,
			Placeholder: m.Placeholder,
			Date:        m.Date,
			Dated:       true,
		})
	}
	return s
}

// CaptureZombies lists the auto-created regions of v.
func CaptureZombies(v *editor.View) []ZombieRecord {
	if v.Disposed() {
		return nil
	}
	m := v.Model()
	var out []ZombieRecord
	for _, r := range m.Live() {
		if !r.Valid() || !r.Has(fold.AutoCreated) || r.Has(fold.Transient) {
			continue
		}
		span := r.Span()
		out = append(out, ZombieRecord{
			Start:       span.Start,
			End:         span.End,
			Placeholder: r.Placeholder(),
			Group:       m.GroupName(r.Group()),
			NeverExpand: r.NeverExpand(),
			Expanded:    r.Expanded(),
		})
	}
	return out
}

// SeedZombies pre-seeds v with the zombies of rec when the document still
// has the content they were taken from. It returns the number seeded.
func SeedZombies(v *editor.View, rec *Record) int {
	if rec == nil || v.Disposed() || v.Initialized() || rec.ContentHash != v.Document().ContentHash() {
		return 0
	}
	m := v.Model()
	n := 0
	m.Batch(func() {
		for _, z := range rec.Zombies {
			span := source.NewSpan(z.Start, z.End)
			if _, err := m.CreateZombie(span, z.Placeholder, z.Group, z.NeverExpand, z.Expanded); err == nil {
				n++
			}
		}
	})
	return n
}
