package descriptor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"

	"foldkit/internal/diag"
	"foldkit/internal/fold"
	"foldkit/internal/source"
	"foldkit/internal/trace"
	"foldkit/internal/tree"
)

// Signer computes element signatures.
type Signer interface {
	SignatureOf(e tree.Element) (string, bool)
}

// Options configure a build.
type Options struct {
	Quick      bool
	Background bool // skip analyzers that do not support background builds
	Jobs       int  // parallel roots, 0 = GOMAXPROCS
	Signer     Signer
	Reporter   diag.Reporter
}

// Result is the output of one build.
type Result struct {
	Descriptors []*Descriptor
	// Stamp is the document stamp the roots were parsed at.
	Stamp uint64
	// Deps maps dependency keys to versions, root stamps included.
	Deps map[string]uint64
	// Tokens are the declared dependencies by key, for re-checking versions.
	Tokens map[string]Dependency
	// Skipped lists languages left out of a background build.
	Skipped []tree.Language
}

type rootResult struct {
	lang    tree.Language
	descs   []*Descriptor
	deps    map[string]uint64
	tokens  map[string]Dependency
	skipped bool
	err     error
}

// Build runs the analyzers over every root of file. Roots are built in
// parallel and merged in file order, primary root first.
func Build(ctx context.Context, file *tree.File, analyzers []Analyzer, opts Options) (*Result, error) {
	ctx, span := trace.Start(ctx, trace.ScopePass, "descriptors", file.Document().Path())
	defer span.End("")

	if opts.Reporter == nil {
		opts.Reporter = diag.NopReporter{}
	}
	roots, err := file.Roots()
	if err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		return &Result{Stamp: file.Document().ModStamp(), Deps: map[string]uint64{}, Tokens: map[string]Dependency{}}, nil
	}
	byLang := make(map[tree.Language]Analyzer, len(analyzers))
	for _, a := range analyzers {
		byLang[a.Language()] = a
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	// индексы уникальны для каждой горутины, мьютекс не нужен
	results := make([]rootResult, len(roots))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(roots)))
	for i, root := range roots {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			a, ok := byLang[root.Language()]
			if !ok {
				results[i] = rootResult{lang: root.Language()}
				return nil
			}
			if opts.Background && !a.SupportsBackground() {
				results[i] = rootResult{lang: root.Language(), skipped: true}
				return nil
			}
			_, span := trace.Start(gctx, trace.ScopePass, "root:"+string(root.Language()), "")
			results[i] = buildRoot(file, root, a, opts)
			span.WithExtra("descriptors", strconv.Itoa(len(results[i].descs))).End("")
			if errors.Is(results[i].err, ErrNotReady) {
				return results[i].err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, ErrNotReady) {
			diag.ReportDefect(opts.Reporter, diag.FoldAnalyzerNotReady, file.Document().Path(), source.Span{}, err.Error()).Emit()
		}
		return nil, err
	}

	res := &Result{Stamp: roots[0].Stamp(), Deps: make(map[string]uint64), Tokens: make(map[string]Dependency)}
	for _, root := range roots {
		res.Deps["root:"+string(root.Language())] = root.Stamp()
	}
	var accepted []*Descriptor
	for _, rr := range results {
		if rr.skipped {
			res.Skipped = append(res.Skipped, rr.lang)
		}
		for k, v := range rr.deps {
			res.Deps[k] = v
			res.Tokens[k] = rr.tokens[k]
		}
		for _, d := range rr.descs {
			if overlapsAny(accepted, d) {
				diag.ReportDefect(opts.Reporter, diag.FoldAmbiguousOverlap, file.Document().Path(), d.Span,
					fmt.Sprintf("%s descriptor %s crosses an accepted range", rr.lang, d.Span)).Emit()
				continue
			}
			accepted = append(accepted, d)
		}
	}
	res.Descriptors = accepted
	span.WithExtra("descriptors", fmt.Sprint(len(accepted)))
	return res, nil
}

// overlapsAny only checks across roots; one analyzer's own output is trusted.
func overlapsAny(accepted []*Descriptor, d *Descriptor) bool {
	for _, a := range accepted {
		if a.Language != d.Language && a.Span.PartiallyOverlaps(d.Span) {
			return true
		}
	}
	return false
}

func buildRoot(file *tree.File, root *tree.Tree, a Analyzer, opts Options) rootResult {
	out := rootResult{lang: root.Language(), deps: map[string]uint64{}, tokens: map[string]Dependency{}}
	path := file.Document().Path()
	cands, err := a.BuildDescriptors(root, file.Document(), opts.Quick)
	if err != nil {
		if errors.Is(err, ErrNotReady) {
			out.err = err
			return out
		}
		diag.ReportDefect(opts.Reporter, diag.FoldAnalyzerFailed, path, source.Span{},
			fmt.Sprintf("%s: %v", root.Language(), err)).Emit()
		return out
	}
	n := file.Document().Len()
	for _, c := range cands {
		switch {
		case c.Span.End > n || c.Span.Start > c.Span.End:
			diag.ReportDefect(opts.Reporter, diag.FoldDescriptorOutOfBounds, path, c.Span,
				fmt.Sprintf("%s descriptor %s of %s past end %d", root.Language(), c.Span, c.Element, n)).Emit()
			continue
		case c.Span.Empty():
			diag.ReportDefect(opts.Reporter, diag.FoldDescriptorEmpty, path, c.Span,
				fmt.Sprintf("%s descriptor %s is empty", root.Language(), c.Span)).Emit()
			continue
		}
		cbd, set := c.CollapsedByDefault.Get()
		if !set {
			cbd, err = a.IsCollapsedByDefault(c)
			if err != nil {
				code := diag.FoldAnalyzerFailed
				if errors.Is(err, ErrNotReady) {
					code = diag.FoldAnalyzerNotReady
				}
				diag.ReportDefect(opts.Reporter, code, path, c.Span, err.Error()).Emit()
				cbd = false
			}
		}
		d := &Descriptor{
			Span:                           c.Span,
			Element:                        c.Element,
			Group:                          c.Group,
			NeverExpand:                    c.NonExpandable,
			CollapsedByDefault:             cbd,
			KeepExpandedOnFirstCollapseAll: c.KeepExpandedOnFirstCollapseAll,
			Language:                       root.Language(),
			placeholder:                    c.PlaceholderText,
			placeholderFn:                  c.Placeholder,
		}
		d.Signature = signatureOf(opts.Signer, c.Element)
		for _, dep := range c.Deps {
			out.deps[dep.DepKey()] = dep.Version()
			out.tokens[dep.DepKey()] = dep
		}
		out.descs = append(out.descs, d)
	}
	sort.SliceStable(out.descs, func(i, j int) bool {
		si, sj := out.descs[i].Span, out.descs[j].Span
		if si.Start != sj.Start {
			return si.Start < sj.Start
		}
		return si.End > sj.End
	})
	return out
}

func signatureOf(s Signer, e tree.Element) fold.Signature {
	if e.IsZero() {
		return fold.LightSignature()
	}
	if s == nil {
		return fold.MissingSignature()
	}
	if sig, ok := s.SignatureOf(e); ok {
		return fold.KnownSignature(sig)
	}
	return fold.MissingSignature()
}
