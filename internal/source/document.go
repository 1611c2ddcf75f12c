package source

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"sync"

	"fortio.org/safecast"
)

// ErrDisposed is returned by operations on a document that was closed.
var ErrDisposed = errors.New("document disposed")

// Document is a text buffer with a modification stamp, an optional on-disk
// timestamp and live range markers that follow edits.
//
// Reads are safe from any goroutine; edits must come from the goroutine that
// owns the editor views on this document.
type Document struct {
	mu         sync.RWMutex
	path       string
	text       []byte
	lineIdx    []uint32
	modStamp   uint64
	savedStamp uint64
	diskTime   int64 // unix nanos of the backing file at last load/save
	hasDisk    bool
	markers    map[*Marker]struct{}
	listeners  []func(Change)
	onDispose  []func()
	disposed   bool
}

// NewDocument creates an in-memory document. It has no on-disk timestamp
// until SetDiskTimestamp or Save is called.
func NewDocument(path string, content []byte) *Document {
	content, _ = removeBOM(content)
	content, _ = normalizeCRLF(content)
	return &Document{
		path:    normalizePath(path),
		text:    content,
		lineIdx: buildLineIndex(content),
		markers: make(map[*Marker]struct{}),
	}
}

// LoadDocument reads a document from disk, normalizes CRLF/BOM and records
// the file's modification time as its timestamp.
func LoadDocument(path string) (*Document, error) {
	// #nosec G304 -- path is provided by the caller
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	doc := NewDocument(path, content)
	doc.diskTime = info.ModTime().UnixNano()
	doc.hasDisk = true
	return doc, nil
}

func (d *Document) Path() string {
	return d.path
}

// Text returns the current content.
func (d *Document) Text() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return string(d.text)
}

// Bytes returns a copy of the current content.
func (d *Document) Bytes() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]byte, len(d.text))
	copy(out, d.text)
	return out
}

// Snapshot returns the content together with the stamp it belongs to.
func (d *Document) Snapshot() (string, uint64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return string(d.text), d.modStamp
}

// Len returns the content length in bytes.
func (d *Document) Len() uint32 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return mustUint32(len(d.text))
}

// Slice returns the text covered by span, clamped to the buffer.
func (d *Document) Slice(span Span) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := mustUint32(len(d.text))
	if span.Start > n {
		return ""
	}
	if span.End > n {
		span.End = n
	}
	return string(d.text[span.Start:span.End])
}

// ModStamp increases on every edit.
func (d *Document) ModStamp() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.modStamp
}

// Timestamp returns the backing file's timestamp if one can be computed.
func (d *Document) Timestamp() (int64, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.diskTime, d.hasDisk
}

// SetDiskTimestamp records an externally known file timestamp, e.g. after the
// host saved the buffer itself.
func (d *Document) SetDiskTimestamp(ts int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.diskTime = ts
	d.hasDisk = true
	d.savedStamp = d.modStamp
}

// HasUnsavedChanges reports edits made since the last load or save.
func (d *Document) HasUnsavedChanges() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.modStamp != d.savedStamp
}

// ContentHash returns the SHA-256 of the current content.
func (d *Document) ContentHash() [32]byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return sha256.Sum256(d.text)
}

// Save writes the content back to its path and refreshes the timestamp.
func (d *Document) Save() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.disposed {
		return ErrDisposed
	}
	if d.path == "" {
		return fmt.Errorf("save: document has no path")
	}
	if err := os.WriteFile(d.path, d.text, 0o644); err != nil {
		return fmt.Errorf("save %s: %w", d.path, err)
	}
	info, err := os.Stat(d.path)
	if err != nil {
		return fmt.Errorf("save %s: %w", d.path, err)
	}
	d.diskTime = info.ModTime().UnixNano()
	d.hasDisk = true
	d.savedStamp = d.modStamp
	return nil
}

// Replace substitutes span with text, moves markers and notifies listeners.
func (d *Document) Replace(span Span, text string) error {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return ErrDisposed
	}
	n := mustUint32(len(d.text))
	if span.End < span.Start || span.End > n {
		d.mu.Unlock()
		return fmt.Errorf("replace %s: out of bounds (len %d)", span, n)
	}
	newLen, err := safecast.Conv[uint32](len(text))
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("replace %s: %w", span, err)
	}

	out := make([]byte, 0, len(d.text)-int(span.Len())+len(text))
	out = append(out, d.text[:span.Start]...)
	out = append(out, text...)
	out = append(out, d.text[span.End:]...)
	d.text = out
	d.lineIdx = buildLineIndex(out)
	d.modStamp++

	change := Change{Old: span, NewLen: newLen, Stamp: d.modStamp}
	for m := range d.markers {
		m.apply(change)
	}
	listeners := append([]func(Change){}, d.listeners...)
	d.mu.Unlock()

	for _, fn := range listeners {
		fn(change)
	}
	return nil
}

// SetText replaces the content with text by rewriting only the part between
// the common prefix and suffix, so markers outside that part keep their
// ranges. Equal text is a no-op.
func (d *Document) SetText(text string) error {
	cur := d.Text()
	if cur == text {
		return nil
	}
	pre := 0
	for pre < len(cur) && pre < len(text) && cur[pre] == text[pre] {
		pre++
	}
	suf := 0
	for suf < len(cur)-pre && suf < len(text)-pre && cur[len(cur)-1-suf] == text[len(text)-1-suf] {
		suf++
	}
	return d.Replace(Span{Start: mustUint32(pre), End: mustUint32(len(cur) - suf)}, text[pre:len(text)-suf])
}

// Insert is Replace with an empty span.
func (d *Document) Insert(offset uint32, text string) error {
	return d.Replace(Span{Start: offset, End: offset}, text)
}

// Delete removes span.
func (d *Document) Delete(span Span) error {
	return d.Replace(span, "")
}

// OnChange registers a listener called after every edit, outside the lock.
func (d *Document) OnChange(fn func(Change)) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// OnDispose registers a hook run once when the document is disposed.
func (d *Document) OnDispose(fn func()) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onDispose = append(d.onDispose, fn)
}

// Dispose invalidates all markers and runs dispose hooks.
func (d *Document) Dispose() {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return
	}
	d.disposed = true
	for m := range d.markers {
		m.valid = false
	}
	d.markers = map[*Marker]struct{}{}
	hooks := d.onDispose
	d.onDispose = nil
	d.listeners = nil
	d.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

func (d *Document) Disposed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.disposed
}

// LineCount returns the number of lines (a trailing newline opens an empty line).
func (d *Document) LineCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.lineIdx) + 1
}

// LineOf returns the 0-based line containing offset.
func (d *Document) LineOf(offset uint32) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return lineOf(d.lineIdx, offset)
}

// LineStart returns the offset of the first byte of a 0-based line.
func (d *Document) LineStart(line int) uint32 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return lineStart(d.lineIdx, line)
}

// LineEnd returns the offset of the newline ending a 0-based line (or the buffer length).
func (d *Document) LineEnd(line int) uint32 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if line < 0 {
		return 0
	}
	if line < len(d.lineIdx) {
		return d.lineIdx[line]
	}
	return mustUint32(len(d.text))
}

// LineSpan returns [start of line, end of line) for a 0-based line.
func (d *Document) LineSpan(line int) Span {
	return Span{Start: d.LineStart(line), End: d.LineEnd(line)}
}

// Resolve converts an offset into a 1-based line and column.
func (d *Document) Resolve(offset uint32) LineCol {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return toLineCol(d.lineIdx, offset)
}

// CreateMarker starts tracking span through subsequent edits.
func (d *Document) CreateMarker(span Span) *Marker {
	d.mu.Lock()
	defer d.mu.Unlock()
	m := &Marker{doc: d, start: span.Start, end: span.End, valid: !d.disposed}
	if m.valid {
		d.markers[m] = struct{}{}
	}
	return m
}
