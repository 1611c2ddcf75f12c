package diag

import (
	"sync"

	"foldkit/internal/source"
)

type dedupKey struct {
	code Code
	sev  Severity
	path string
	span source.Span
	msg  string
}

// DedupReporter suppresses repeats with the same code, severity, path, span
// and message.
type DedupReporter struct {
	next Reporter
	mu   sync.Mutex
	seen map[dedupKey]struct{}
}

func NewDedupReporter(next Reporter) *DedupReporter {
	return &DedupReporter{next: next, seen: make(map[dedupKey]struct{})}
}

func (r *DedupReporter) Report(code Code, sev Severity, path string, primary source.Span, msg string, notes []Note) {
	if r == nil {
		return
	}
	key := dedupKey{code: code, sev: sev, path: path, span: primary, msg: msg}
	r.mu.Lock()
	_, dup := r.seen[key]
	r.seen[key] = struct{}{}
	r.mu.Unlock()
	if dup || r.next == nil {
		return
	}
	r.next.Report(code, sev, path, primary, msg, notes)
}
