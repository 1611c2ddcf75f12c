package update

import (
	"context"
	"errors"
	"fmt"

	"fortio.org/safecast"

	"foldkit/internal/descriptor"
	"foldkit/internal/editor"
	"foldkit/internal/reconcile"
	"foldkit/internal/runtimemap"
	"foldkit/internal/source"
	"foldkit/internal/tree"
)

// InjectionFinder lists the embedded fragments of a host root.
type InjectionFinder func(root *tree.Tree) []tree.Injection

// fragment is an embedded document kept across host edits. Its text is
// synced by replacing only the changed middle, so markers and pointers in
// the fragment survive like they do in the host.
type fragment struct {
	lang        tree.Language
	marker      *source.Marker
	doc         *source.Document
	file        *tree.File
	inj         *runtimemap.Injected
	host        *runtimemap.Map
	initialized bool
}

func (f *fragment) dispose() {
	f.marker.Dispose()
	f.host.Detach(f.inj)
	f.doc.Dispose()
}

func u32(n int) uint32 {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		return ^uint32(0)
	}
	return v
}

func (f *fragment) sync(host *source.Document, span source.Span, body string) error {
	if err := f.doc.SetText(body); err != nil {
		return fmt.Errorf("sync fragment %s: %w", f.doc.Path(), err)
	}
	if !f.marker.Valid() || f.marker.Span() != span {
		f.marker.Dispose()
		f.marker = host.CreateMarker(span)
	}
	f.inj.SetOffset(span.Start)
	return nil
}

func (u *Updater) parser(lang tree.Language) tree.Parser {
	for _, p := range u.cfg.Parsers {
		if p.Language() == lang {
			return p
		}
	}
	return nil
}

// UpdateInjected reconciles the fragments embedded in v's primary root. A
// run at an unchanged document stamp is skipped. It must be called on the
// UI loop after the host pass.
func (u *Updater) UpdateInjected(ctx context.Context, v *editor.View) (reconcile.Stats, error) {
	var total reconcile.Stats
	if u.cfg.Injections == nil || v.Disposed() {
		return total, nil
	}
	doc := v.Document()
	text, stamp := doc.Snapshot()
	if last, ok := v.InjectedStamp(); ok && last == stamp {
		return total, nil
	}
	root, ok := v.File().Current(v.File().Primary())
	if !ok || root.Stamp() != stamp {
		return total, nil
	}

	u.mu.Lock()
	old := u.fragments[v.ID()]
	u.mu.Unlock()

	used := make(map[*fragment]bool, len(old))
	var next []*fragment
	for _, in := range u.cfg.Injections(root) {
		p := u.parser(in.Lang)
		if p == nil || in.Span.End > u32(len(text)) {
			continue
		}
		body := text[in.Span.Start:in.Span.End]
		f := matchFragment(old, used, in)
		if f == nil {
			fdoc := source.NewDocument(fmt.Sprintf("%s#%d", doc.Path(), in.Span.Start), []byte(body))
			f = &fragment{
				lang:   in.Lang,
				marker: doc.CreateMarker(in.Span),
				doc:    fdoc,
				file:   tree.NewFile(fdoc, p),
				inj:    v.Map().Inject(in.Span.Start),
				host:   v.Map(),
			}
		} else if err := f.sync(doc, in.Span, body); err != nil {
			return total, err
		}
		used[f] = true
		next = append(next, f)
	}

	for _, f := range old {
		if used[f] {
			continue
		}
		// фрагмент исчез: его регионы уходят вместе с ним
		st, err := reconcile.Reconcile(ctx, reconcile.Input{View: v, Lookup: f.inj, Stamp: stamp, Reporter: u.cfg.Reporter})
		if err != nil {
			return total, err
		}
		total.Removed += st.Removed
		f.dispose()
	}

	for _, f := range next {
		st, err := u.reconcileFragment(ctx, v, f, stamp)
		if err != nil {
			return total, err
		}
		total.Kept += st.Kept
		total.Created += st.Created
		total.Reused += st.Reused
		total.Removed += st.Removed
		total.Rejected += st.Rejected
	}

	u.mu.Lock()
	u.fragments[v.ID()] = next
	u.mu.Unlock()
	v.SetInjectedStamp(stamp)
	return total, nil
}

func matchFragment(old []*fragment, used map[*fragment]bool, in tree.Injection) *fragment {
	for _, f := range old {
		if used[f] || f.lang != in.Lang || !f.marker.Valid() {
			continue
		}
		if f.marker.Span().Intersects(in.Span) {
			return f
		}
	}
	return nil
}

func (u *Updater) reconcileFragment(ctx context.Context, v *editor.View, f *fragment, stamp uint64) (reconcile.Stats, error) {
	res, err := descriptor.Build(ctx, f.file, u.cfg.Analyzers, descriptor.Options{
		Quick:    u.cfg.Quick,
		Signer:   u.cfg.Signer,
		Reporter: u.cfg.Reporter,
	})
	if err != nil {
		if errors.Is(err, descriptor.ErrNotReady) {
			return reconcile.Stats{}, nil
		}
		return reconcile.Stats{}, err
	}
	for _, d := range res.Descriptors {
		d.Span = f.inj.HostSpan(d.Span)
	}
	mode := reconcile.KeepState
	if !f.initialized {
		mode = reconcile.ApplyDefaults
	}
	st, err := reconcile.Reconcile(ctx, reconcile.Input{
		View:            v,
		Descriptors:     res.Descriptors,
		Stamp:           stamp,
		Lookup:          f.inj,
		Mode:            mode,
		KeepCollapsed:   u.cfg.KeepCollapsed,
		FrontendCreated: u.cfg.FrontendCreated,
		Reporter:        u.cfg.Reporter,
	})
	if err != nil {
		return st, err
	}
	f.initialized = true
	return st, nil
}

// Fragments returns the number of live fragments of v.
func (u *Updater) Fragments(v *editor.View) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.fragments[v.ID()])
}
