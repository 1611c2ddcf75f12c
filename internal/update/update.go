// Package update is the background folding path of a view: descriptors are
// computed off the UI loop, cached with the versions of everything they
// depend on, and handed back to the loop as a Pass that reconciles once.
package update

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"foldkit/internal/descriptor"
	"foldkit/internal/diag"
	"foldkit/internal/editor"
	"foldkit/internal/reconcile"
	"foldkit/internal/trace"
	"foldkit/internal/tree"
)

const modelDep = "model"

// Config wires the analyzers and policies of an Updater.
type Config struct {
	Analyzers       []descriptor.Analyzer
	Signer          descriptor.Signer
	Quick           bool
	KeepCollapsed   bool
	FrontendCreated bool
	CacheSize       int
	Reporter        diag.Reporter
	// Injections finds embedded fragments in the host root; nil disables
	// injected folding. Fragments are parsed with the parser of their
	// language from Parsers.
	Injections InjectionFinder
	Parsers    []tree.Parser
}

type key struct {
	path string
	view uint64
}

func (k key) String() string { return fmt.Sprintf("%s#%d", k.path, k.view) }

// Updater owns the pass cache of every view it serves.
type Updater struct {
	cfg   Config
	loop  *editor.Loop
	cache *lru.Cache[key, *Pass]
	group singleflight.Group

	mu        sync.Mutex
	fragments map[uint64][]*fragment
}

func New(loop *editor.Loop, cfg Config) (*Updater, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 128
	}
	if cfg.Reporter == nil {
		cfg.Reporter = diag.NopReporter{}
	}
	cache, err := lru.New[key, *Pass](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("pass cache: %w", err)
	}
	return &Updater{cfg: cfg, loop: loop, cache: cache, fragments: make(map[uint64][]*fragment)}, nil
}

// Pass is a computed descriptor set bound to one view. Run applies it at
// most once.
type Pass struct {
	view     *editor.View
	result   *descriptor.Result
	versions map[string]uint64
	mode     reconcile.Mode
	post     func(func())
	cfg      *Config

	ran   atomic.Bool
	stats reconcile.Stats
}

func (p *Pass) Result() *descriptor.Result { return p.result }

// Fresh reports whether every dependency still has the version the pass
// was computed against.
func (p *Pass) Fresh() bool {
	if p.view.Disposed() {
		return false
	}
	for k, want := range p.versions {
		if p.version(k) != want {
			return false
		}
	}
	return true
}

func (p *Pass) version(k string) uint64 {
	switch {
	case strings.HasPrefix(k, "root:"):
		return p.view.Document().ModStamp()
	case k == modelDep:
		return p.view.Model().ModCount()
	}
	if dep, ok := p.result.Tokens[k]; ok && dep != nil {
		return dep.Version()
	}
	return 0
}

// Run reconciles the view. It must be called on the UI loop. Later calls,
// and calls after the view closed, do nothing.
func (p *Pass) Run(ctx context.Context) (reconcile.Stats, error) {
	if !p.ran.CompareAndSwap(false, true) {
		return p.stats, nil
	}
	if p.view.Disposed() {
		return reconcile.Stats{}, nil
	}
	res := p.result
	if len(res.Skipped) > 0 {
		// roots without background support are analyzed here, on the loop
		full, err := descriptor.Build(ctx, p.view.File(), p.cfg.Analyzers, descriptor.Options{
			Quick:    p.cfg.Quick,
			Signer:   p.cfg.Signer,
			Reporter: p.cfg.Reporter,
		})
		if err != nil {
			return reconcile.Stats{}, err
		}
		res = full
	}
	st, err := reconcile.Reconcile(ctx, reconcile.Input{
		View:            p.view,
		Descriptors:     res.Descriptors,
		Stamp:           res.Stamp,
		Mode:            p.mode,
		KeepCollapsed:   p.cfg.KeepCollapsed,
		FrontendCreated: p.cfg.FrontendCreated,
		Reporter:        p.cfg.Reporter,
		Post:            p.post,
	})
	if err != nil {
		return st, err
	}
	p.view.MarkInitialized()
	p.stats = st
	return st, nil
}

// Compute returns a fresh pass for v, building descriptors when the cached
// one is stale. Concurrent calls for the same view share one build.
func (u *Updater) Compute(ctx context.Context, v *editor.View, mode reconcile.Mode) (*Pass, error) {
	if v.Disposed() {
		return nil, editor.ErrDisposed
	}
	k := key{path: v.Document().Path(), view: v.ID()}
	if p, ok := u.cache.Get(k); ok && p.mode == mode && !p.ran.Load() && p.Fresh() {
		return p, nil
	}
	val, err, _ := u.group.Do(k.String()+"/"+mode.String(), func() (any, error) {
		modCount := v.Model().ModCount()
		res, err := descriptor.Build(ctx, v.File(), u.cfg.Analyzers, descriptor.Options{
			Quick:      u.cfg.Quick,
			Background: true,
			Signer:     u.cfg.Signer,
			Reporter:   u.cfg.Reporter,
		})
		if err != nil {
			return nil, err
		}
		versions := make(map[string]uint64, len(res.Deps)+1)
		for dk, dv := range res.Deps {
			versions[dk] = dv
		}
		versions[modelDep] = modCount
		p := &Pass{view: v, result: res, versions: versions, mode: mode, cfg: &u.cfg}
		if u.loop != nil {
			p.post = u.loop.Post
		}
		u.cache.Add(k, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(*Pass), nil
}

// Schedule computes on the calling goroutine and hands the pass to the UI
// loop, followed by the injected fragments. done, if set, runs on the loop.
// Without a loop everything runs on the caller, which then is the UI
// goroutine. A pass abandoned because analysis was not ready, or because
// the document moved on, is dropped silently; the next edit schedules again.
func (u *Updater) Schedule(ctx context.Context, v *editor.View, mode reconcile.Mode, done func(reconcile.Stats, error)) {
	post := func(fn func()) { fn() }
	if u.loop != nil {
		post = u.loop.Post
	}
	p, err := u.Compute(ctx, v, mode)
	if err != nil {
		if errors.Is(err, descriptor.ErrNotReady) || errors.Is(err, editor.ErrDisposed) {
			err = nil
		}
		if done != nil {
			post(func() { done(reconcile.Stats{}, err) })
		}
		return
	}
	post(func() {
		st, err := p.Run(ctx)
		if errors.Is(err, reconcile.ErrStale) {
			err = nil
		}
		if err == nil {
			_, err = u.UpdateInjected(ctx, v)
		}
		if done != nil {
			done(st, err)
		}
	})
}

// UpdateNow runs the whole path on the caller, which must be the UI
// goroutine (e.g. a CLI command with no loop running).
func (u *Updater) UpdateNow(ctx context.Context, v *editor.View, mode reconcile.Mode) (reconcile.Stats, error) {
	ctx, span := trace.Start(ctx, trace.ScopePass, "update", v.Document().Path())
	defer span.End(mode.String())

	p, err := u.Compute(ctx, v, mode)
	if err != nil {
		return reconcile.Stats{}, err
	}
	st, err := p.Run(ctx)
	if err != nil {
		return st, err
	}
	if _, err := u.UpdateInjected(ctx, v); err != nil {
		return st, err
	}
	return st, nil
}

// Forget drops cached state of v; call when the view closes.
func (u *Updater) Forget(v *editor.View) {
	u.cache.Remove(key{path: v.Document().Path(), view: v.ID()})
	u.mu.Lock()
	frags := u.fragments[v.ID()]
	delete(u.fragments, v.ID())
	u.mu.Unlock()
	for _, f := range frags {
		f.dispose()
	}
}
