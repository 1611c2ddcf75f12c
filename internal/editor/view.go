// Package editor holds the editor view state the folding engine works on:
// the document, its structural file, the fold model, the runtime map, caret
// and reveal range. Views are mutated on their Loop only.
package editor

import (
	"errors"
	"sync"
	"sync/atomic"

	"foldkit/internal/fold"
	"foldkit/internal/runtimemap"
	"foldkit/internal/source"
	"foldkit/internal/tree"
)

var (
	ErrDisposed = errors.New("view disposed")
	ErrClosed   = errors.New("loop closed")
)

var nextViewID atomic.Uint64

// View is one editor showing a document.
type View struct {
	id    uint64
	doc   *source.Document
	file  *tree.File
	model *fold.Model
	rmap  *runtimemap.Map

	mu          sync.Mutex
	caret       uint32
	reveal      source.Span
	hasReveal   bool
	initialized bool
	disposed    bool
	// injectedStamp is the document stamp of the last injected run.
	injectedStamp uint64
	injectedRun   bool
	onDispose     []func()
}

// NewView opens a view on file's document with the caret at 0.
func NewView(file *tree.File) *View {
	doc := file.Document()
	v := &View{
		id:    nextViewID.Add(1),
		doc:   doc,
		file:  file,
		model: fold.NewModel(doc),
		rmap:  runtimemap.New(),
	}
	doc.OnChange(v.follow)
	doc.OnDispose(v.Dispose)
	return v
}

func (v *View) ID() uint64                 { return v.id }
func (v *View) Document() *source.Document { return v.doc }
func (v *View) File() *tree.File           { return v.file }
func (v *View) Model() *fold.Model         { return v.model }
func (v *View) Map() *runtimemap.Map       { return v.rmap }

// follow keeps caret and reveal range on the same text across edits.
func (v *View) follow(c source.Change) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.disposed {
		return
	}
	v.caret = moveOffset(v.caret, c)
	if v.hasReveal {
		v.reveal = source.NewSpan(moveOffset(v.reveal.Start, c), moveOffset(v.reveal.End, c))
	}
}

func moveOffset(off uint32, c source.Change) uint32 {
	switch {
	case off <= c.Old.Start:
		return off
	case off >= c.Old.End:
		n := int64(off) + c.Delta()
		if n < 0 {
			return 0
		}
		return uint32(n)
	default:
		return c.Old.Start + c.NewLen
	}
}

func (v *View) Caret() uint32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.caret
}

// SetCaret moves the caret, clamped to the document.
func (v *View) SetCaret(off uint32) {
	if n := v.doc.Len(); off > n {
		off = n
	}
	v.mu.Lock()
	v.caret = off
	v.mu.Unlock()
}

// CaretLineSpan is the line the caret is on.
func (v *View) CaretLineSpan() source.Span {
	return v.doc.LineSpan(v.doc.LineOf(v.Caret()))
}

// Reveal is the range to keep visible when the view first opens.
func (v *View) Reveal() (source.Span, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.reveal, v.hasReveal
}

func (v *View) SetReveal(s source.Span) {
	v.mu.Lock()
	v.reveal, v.hasReveal = s, true
	v.mu.Unlock()
}

func (v *View) ClearReveal() {
	v.mu.Lock()
	v.hasReveal = false
	v.mu.Unlock()
}

// Initialized is set after the first reconcile; snapshots only capture
// initialized views.
func (v *View) Initialized() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.initialized
}

func (v *View) MarkInitialized() {
	v.mu.Lock()
	v.initialized = true
	v.mu.Unlock()
}

// InjectedStamp returns the stamp of the last injected reconcile.
func (v *View) InjectedStamp() (uint64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.injectedStamp, v.injectedRun
}

func (v *View) SetInjectedStamp(stamp uint64) {
	v.mu.Lock()
	v.injectedStamp, v.injectedRun = stamp, true
	v.mu.Unlock()
}

func (v *View) Disposed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.disposed
}

// OnDispose registers fn to run once when the view closes. Hooks run in
// registration order before the model is torn down.
func (v *View) OnDispose(fn func()) {
	if fn == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.disposed {
		return
	}
	v.onDispose = append(v.onDispose, fn)
}

// Dispose closes the view: hooks run, the runtime map and model are cleared.
func (v *View) Dispose() {
	v.mu.Lock()
	if v.disposed {
		v.mu.Unlock()
		return
	}
	hooks := v.onDispose
	v.onDispose = nil
	v.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}

	v.mu.Lock()
	v.disposed = true
	v.mu.Unlock()
	v.rmap.Clear()
	v.model.Dispose()
}
