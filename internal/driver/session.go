// Package driver runs the folding engine for one process. A Session opens
// documents into views, brings back their folding state from the session
// store and the disk cache, and captures it again when the views close.
package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"foldkit/internal/config"
	"foldkit/internal/descriptor"
	"foldkit/internal/diag"
	"foldkit/internal/editor"
	"foldkit/internal/fold"
	"foldkit/internal/lang/curly"
	"foldkit/internal/lang/doc"
	"foldkit/internal/reconcile"
	"foldkit/internal/signature"
	"foldkit/internal/snapshot"
	"foldkit/internal/source"
	"foldkit/internal/trace"
	"foldkit/internal/tree"
	"foldkit/internal/update"
)

// ErrNoRegion is returned by Toggle when no region starts on the line.
var ErrNoRegion = errors.New("no folding region on line")

// Options configure a Session.
type Options struct {
	Config config.Config
	// Loop receives follow-up work of reconcile passes; nil runs it inline.
	Loop     *editor.Loop
	Reporter diag.Reporter
	// Memory keeps session state in memory only.
	Memory bool
}

// Session owns the views of a process and the state they share.
type Session struct {
	cfg     config.Config
	loop    *editor.Loop
	reg     *signature.Registry
	updater *update.Updater
	store   *snapshot.Store
	disk    *snapshot.DiskCache
	rep     diag.Reporter

	mu    sync.Mutex
	views map[string][]*editor.View
}

// OpenStats describe what Open restored.
type OpenStats struct {
	Zombies   int
	Reconcile reconcile.Stats
	Restore   snapshot.ApplyStats
	// FromDisk is set when the state came from the disk cache rather than
	// the in-memory store.
	FromDisk bool
}

func NewSession(opts Options) (*Session, error) {
	rep := opts.Reporter
	if rep == nil {
		rep = diag.NopReporter{}
	}
	cfg := opts.Config
	reg := signature.Default()
	reg.SetValidation(cfg.Folding.ValidateSignatures, rep)

	u, err := update.New(opts.Loop, update.Config{
		Analyzers:     []descriptor.Analyzer{curly.NewAnalyzer(cfg.Curly()), doc.Analyzer{}},
		Signer:        reg,
		Quick:         cfg.Folding.Quick,
		KeepCollapsed: cfg.Folding.KeepCollapsed,
		CacheSize:     cfg.Update.CacheSize,
		Reporter:      rep,
		Injections:    curly.Injections,
		Parsers:       []tree.Parser{curly.Parser{}},
	})
	if err != nil {
		return nil, err
	}
	s := &Session{
		cfg:     cfg,
		loop:    opts.Loop,
		reg:     reg,
		updater: u,
		store:   snapshot.NewStore(),
		rep:     rep,
		views:   make(map[string][]*editor.View),
	}
	if !opts.Memory {
		disk, err := snapshot.OpenDiskCache(cfg.Session.Dir, "foldkit")
		if err != nil {
			// без диска работаем только в памяти
			diag.ReportDefect(rep, diag.FoldSessionCache, "", source.Span{}, err.Error()).Emit()
		} else {
			s.disk = disk
		}
	}
	return s, nil
}

func (s *Session) Config() config.Config         { return s.cfg }
func (s *Session) Registry() *signature.Registry { return s.reg }
func (s *Session) Store() *snapshot.Store        { return s.store }
func (s *Session) Updater() *update.Updater      { return s.updater }

// Disk is the session disk cache, nil when the session is memory-only.
func (s *Session) Disk() *snapshot.DiskCache { return s.disk }

// Parsers returns the structural roots every document is parsed into.
func Parsers() []tree.Parser {
	return []tree.Parser{curly.Parser{}, doc.Parser{}}
}

// Open creates a view on d, seeds zombies from the disk record, runs the
// first reconcile with default states and applies the stored snapshot.
// It must run on the goroutine that owns the views.
func (s *Session) Open(ctx context.Context, d *source.Document) (*editor.View, OpenStats, error) {
	return s.open(ctx, d, nil)
}

// OpenAt is Open with the caret at offset. Regions touching the caret line
// start expanded instead of taking their default.
func (s *Session) OpenAt(ctx context.Context, d *source.Document, caret uint32) (*editor.View, OpenStats, error) {
	return s.open(ctx, d, &caret)
}

func (s *Session) open(ctx context.Context, d *source.Document, caret *uint32) (*editor.View, OpenStats, error) {
	ctx, span := trace.Start(ctx, trace.ScopeDriver, "open", d.Path())
	defer span.End("")

	var st OpenStats
	v := editor.NewView(tree.NewFile(d, Parsers()...))
	if caret != nil {
		v.SetCaret(*caret)
		v.SetReveal(v.CaretLineSpan())
	}

	snap, ok := s.store.Get(d.Path())
	if rec := s.record(d.Path()); rec != nil {
		st.Zombies = snapshot.SeedZombies(v, rec)
		if !ok {
			snap, ok = rec.Snapshot(), true
			st.FromDisk = true
		}
	}

	rs, err := s.updater.UpdateNow(ctx, v, reconcile.ApplyDefaultsExceptCaret)
	v.ClearReveal()
	if err != nil {
		s.updater.Forget(v)
		v.Dispose()
		return nil, st, fmt.Errorf("open %s: %w", d.Path(), err)
	}
	st.Reconcile = rs
	if ok {
		as, err := snapshot.Apply(v, snap, s.reg, s.rep)
		if err != nil {
			return nil, st, fmt.Errorf("restore %s: %w", d.Path(), err)
		}
		st.Restore = as
	}
	span.WithExtra("zombies", fmt.Sprint(st.Zombies)).WithExtra("restored", fmt.Sprint(st.Restore.Restored))

	s.mu.Lock()
	s.views[d.Path()] = append(s.views[d.Path()], v)
	s.mu.Unlock()
	return v, st, nil
}

// OpenFile loads path from disk and opens it.
func (s *Session) OpenFile(ctx context.Context, path string) (*editor.View, OpenStats, error) {
	d, err := source.LoadDocument(path)
	if err != nil {
		return nil, OpenStats{}, err
	}
	return s.Open(ctx, d)
}

// OpenFileAt loads path and opens it with the caret at the start of line.
func (s *Session) OpenFileAt(ctx context.Context, path string, line int) (*editor.View, OpenStats, error) {
	d, err := source.LoadDocument(path)
	if err != nil {
		return nil, OpenStats{}, err
	}
	if line < 0 || line >= d.LineCount() {
		return nil, OpenStats{}, fmt.Errorf("open %s: line %d out of range [0, %d)", path, line, d.LineCount())
	}
	return s.OpenAt(ctx, d, d.LineStart(line))
}

func (s *Session) record(path string) *snapshot.Record {
	if s.disk == nil {
		return nil
	}
	rec, ok, err := s.disk.Get(path)
	if err != nil {
		diag.ReportDefect(s.rep, diag.FoldSnapshotDecode, path, source.Span{}, err.Error()).Emit()
		return nil
	}
	if !ok {
		return nil
	}
	return rec
}

// Refresh reconciles v after an edit, keeping the states of regions that
// survive it. A pass overtaken by a newer edit is not an error.
func (s *Session) Refresh(ctx context.Context, v *editor.View) (reconcile.Stats, error) {
	st, err := s.updater.UpdateNow(ctx, v, reconcile.KeepState)
	if errors.Is(err, reconcile.ErrStale) || errors.Is(err, descriptor.ErrNotReady) {
		return st, nil
	}
	return st, err
}

// Schedule recomputes v off the loop and reconciles it there; see
// update.Updater.Schedule.
func (s *Session) Schedule(ctx context.Context, v *editor.View, done func(reconcile.Stats, error)) {
	s.updater.Schedule(ctx, v, reconcile.KeepState, done)
}

// Views returns the open views on path.
func (s *Session) Views(path string) []*editor.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*editor.View(nil), s.views[path]...)
}

// Close captures the state of v together with the other views on its
// document, persists it when v is the last one and disposes v.
func (s *Session) Close(v *editor.View) (*snapshot.Snapshot, error) {
	d := v.Document()
	views := s.Views(d.Path())
	snap := s.store.Capture(d, views, s.rep)
	last := s.forget(v) == 0

	var err error
	if last && s.disk != nil {
		rec := snapshot.NewRecord(d, snap, v, s.cfg.Session.MaxEntries)
		if err = s.disk.Put(rec); err != nil {
			err = fmt.Errorf("save session state of %s: %w", d.Path(), err)
		}
	}
	s.updater.Forget(v)
	v.Dispose()
	return snap, err
}

// Discard disposes v without recording its state.
func (s *Session) Discard(v *editor.View) {
	s.forget(v)
	s.updater.Forget(v)
	v.Dispose()
}

// forget drops v from the open list and returns how many views remain on
// its document.
func (s *Session) forget(v *editor.View) int {
	path := v.Document().Path()
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.views[path]
	for i, o := range list {
		if o == v {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(s.views, path)
	} else {
		s.views[path] = list
	}
	return len(list)
}

// Toggle flips the region starting on the zero-based line. Collapsing a
// region that holds the caret moves the caret to the region start.
func (s *Session) Toggle(v *editor.View, line int) (*fold.Region, error) {
	if v.Disposed() {
		return nil, editor.ErrDisposed
	}
	m := v.Model()
	r := m.RegionAtLine(line)
	if r == nil {
		return nil, fmt.Errorf("%w %d", ErrNoRegion, line+1)
	}
	expand := !r.Expanded()
	if !expand && r.Span().StrictlyContains(v.Caret()) {
		v.SetCaret(r.Span().Start)
	}
	m.SetExpanded(r, expand)
	return r, nil
}

// FoldAll collapses or expands every region of v and returns how many are
// collapsed afterwards. A caret left inside a collapsed region moves to the
// start of the outermost one.
func (s *Session) FoldAll(v *editor.View, collapse bool) (int, error) {
	if v.Disposed() {
		return 0, editor.ErrDisposed
	}
	m := v.Model()
	if !collapse {
		m.ExpandAll()
		return 0, nil
	}
	m.CollapseAll()
	caret := v.Caret()
	var outer *fold.Region
	collapsed := 0
	for _, r := range m.Live() {
		if r.Expanded() {
			continue
		}
		collapsed++
		if !r.Span().StrictlyContains(caret) {
			continue
		}
		if outer == nil || r.Span().Start < outer.Span().Start {
			outer = r
		}
	}
	if outer != nil {
		v.SetCaret(outer.Span().Start)
	}
	return collapsed, nil
}

// Import stores s for its document. Open views apply it right away; the
// rest pick it up on their next Open.
func (s *Session) Import(snap *snapshot.Snapshot) (snapshot.ApplyStats, error) {
	s.store.Put(snap)
	var total snapshot.ApplyStats
	for _, v := range s.Views(snap.Path) {
		st, err := snapshot.Apply(v, snap, s.reg, s.rep)
		if err != nil {
			return total, err
		}
		total.Restored += st.Restored
		total.Created += st.Created
		total.Skipped += st.Skipped
	}
	return total, nil
}

// Shutdown closes every open view.
func (s *Session) Shutdown() error {
	s.mu.Lock()
	var all []*editor.View
	for _, list := range s.views {
		all = append(all, list...)
	}
	s.mu.Unlock()
	var errs []error
	for _, v := range all {
		if _, err := s.Close(v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
