// Package snapshot persists the folding state of a document between
// sessions.
//
// A Snapshot holds two kinds of entries. Signature entries name a structural
// element and survive any edit that keeps the element. Marker entries are raw
// ranges of light regions; they are replayed only onto the exact file they
// were taken from.
package snapshot

import (
	"errors"
	"fmt"
	"io"

	"foldkit/internal/diag"
	"foldkit/internal/editor"
	"foldkit/internal/fold"
	"foldkit/internal/source"
	"foldkit/internal/tree"
)

// ErrUnsupportedFormat is returned when stored state is not a foldkit snapshot.
var ErrUnsupportedFormat = errors.New("unsupported snapshot format")

// Entry is BySignature or ByMarker.
type Entry interface {
	isEntry()
}

// BySignature restores the expand state of the region of an element.
type BySignature struct {
	Signature string
	Expanded  bool
}

// ByMarker restores a light region by range. Date is the file timestamp the
// range belongs to; undated entries are never written or replayed.
type ByMarker struct {
	Span        source.Span
	Expanded    bool
	Placeholder string
	Date        int64
	Dated       bool
}

func (BySignature) isEntry() {}
func (ByMarker) isEntry()    {}

// Snapshot is the folding state of one document. A Snapshot is not modified
// after it is built; Store replaces it as a whole.
type Snapshot struct {
	Path    string
	Entries []Entry
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Entries)
}

// Resolver finds the element a signature names.
type Resolver interface {
	Restore(file *tree.File, sig string, trace io.Writer) (tree.Element, bool)
}

// Capture collects the state of every initialized view on doc. The first
// view to mention a signature or range wins.
func Capture(doc *source.Document, views []*editor.View, rep diag.Reporter) *Snapshot {
	if rep == nil {
		rep = diag.NopReporter{}
	}
	s := &Snapshot{Path: doc.Path()}
	date, dated := doc.Timestamp()
	dated = dated && !doc.HasUnsavedChanges()

	bySig := make(map[string]bool)
	bySpan := make(map[source.Span]bool)
	for _, v := range views {
		if v == nil || v.Disposed() || v.Document() != doc || !v.Initialized() {
			continue
		}
		local := make(map[string]*fold.Region)
		for _, r := range v.Model().Live() {
			if !r.Valid() || r.NeverExpand() || r.Has(fold.Transient) {
				continue
			}
			sig := r.Signature()
			switch sig.Kind {
			case fold.SigKnown:
				if prev, ok := local[sig.Value]; ok {
					msg := fmt.Sprintf("regions %s and %s share signature %q", prev.Span(), r.Span(), sig.Value)
					diag.ReportDefect(rep, diag.FoldSignatureCollision, doc.Path(), r.Span(), msg).Emit()
					continue
				}
				local[sig.Value] = r
				if bySig[sig.Value] {
					continue
				}
				bySig[sig.Value] = true
				if redundant(r) {
					continue
				}
				s.Entries = append(s.Entries, BySignature{Signature: sig.Value, Expanded: r.Expanded()})
			case fold.SigLight:
				span := r.Span()
				if bySpan[span] {
					continue
				}
				bySpan[span] = true
				s.Entries = append(s.Entries, ByMarker{
					Span:        span,
					Expanded:    r.Expanded(),
					Placeholder: r.Placeholder(),
					Date:        date,
					Dated:       dated,
				})
			}
		}
	}
	return s
}

// redundant reports an auto-created region whose state is what the
// analyzer would pick anyway.
func redundant(r *fold.Region) bool {
	if !r.Has(fold.AutoCreated) {
		return false
	}
	cbd, ok := r.CollapsedByDefault()
	return ok && r.Expanded() == !cbd
}

// ApplyStats counts what Apply did.
type ApplyStats struct {
	Restored int
	Created  int
	Skipped  int
}

// Apply sets the state stored in s on v. It runs on v's loop after the
// first reconcile.
func Apply(v *editor.View, s *Snapshot, res Resolver, rep diag.Reporter) (ApplyStats, error) {
	var st ApplyStats
	if v.Disposed() {
		return st, editor.ErrDisposed
	}
	if s == nil {
		return st, nil
	}
	if rep == nil {
		rep = diag.NopReporter{}
	}
	doc := v.Document()
	m := v.Model()
	now, hasNow := doc.Timestamp()
	fresh := hasNow && !doc.HasUnsavedChanges()
	seen := make(map[string]bool)

	m.Batch(func() {
		for _, e := range s.Entries {
			switch e := e.(type) {
			case BySignature:
				if seen[e.Signature] {
					msg := fmt.Sprintf("signature %q stored twice", e.Signature)
					diag.ReportDefect(rep, diag.FoldSignatureCollision, doc.Path(), source.Span{}, msg).Emit()
					st.Skipped++
					continue
				}
				seen[e.Signature] = true
				if res == nil {
					st.Skipped++
					continue
				}
				r := regionOf(v, res, e.Signature)
				if r == nil || r.Has(fold.Bitten) {
					st.Skipped++
					continue
				}
				m.SetExpanded(r, e.Expanded)
				st.Restored++
			case ByMarker:
				// смещения верны только для того же файла
				if !e.Dated || !fresh || e.Date != now {
					st.Skipped++
					continue
				}
				r := m.RegionAt(e.Span)
				if r == nil {
					if e.Placeholder == "" {
						st.Skipped++
						continue
					}
					created, err := m.Create(e.Span, e.Placeholder, fold.NoGroup, false)
					if err != nil {
						msg := fmt.Sprintf("stored region %s: %v", e.Span, err)
						diag.ReportDefect(rep, diag.FoldRegionRejected, doc.Path(), e.Span, msg).Emit()
						st.Skipped++
						continue
					}
					created.SetSignature(fold.LightSignature())
					r = created
					st.Created++
				} else {
					st.Restored++
				}
				if !r.Has(fold.Bitten) {
					m.SetExpanded(r, e.Expanded)
				}
			}
		}
	})
	return st, nil
}

func regionOf(v *editor.View, res Resolver, sig string) *fold.Region {
	e, ok := res.Restore(v.File(), sig, nil)
	if !ok || !e.IsValid() {
		return nil
	}
	if r, ok := v.Map().RegionOf(e); ok && r.Valid() {
		return r
	}
	return v.Model().RegionAt(e.Body())
}
