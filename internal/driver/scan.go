package driver

import (
	"context"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"foldkit/internal/editor"
	"foldkit/internal/fold"
	"foldkit/internal/reconcile"
	"foldkit/internal/source"
	"foldkit/internal/tree"
	"foldkit/internal/ui"
)

// Ext is the file extension of curly sources.
const Ext = ".cy"

// ScanResult is the folding of one file with default states.
type ScanResult struct {
	Path      string
	Regions   int
	Collapsed int
	Stats     reconcile.Stats
	Err       error
}

// ListFiles returns the sorted *.cy files under dir.
func ListFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, Ext) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Scan folds files in parallel, at most jobs at a time (0 = GOMAXPROCS).
// Per-file failures land in ScanResult.Err; the returned error is only set
// when ctx is cancelled.
func (s *Session) Scan(ctx context.Context, files []string, jobs int, sink ui.Sink) ([]ScanResult, error) {
	if sink == nil {
		sink = ui.NopSink{}
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	results := make([]ScanResult, len(files))
	if len(files) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(files)))
	for i, path := range files {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			// индекс i у каждой горутины свой, мьютекс не нужен
			results[i] = s.scanFile(gctx, path, sink)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (s *Session) scanFile(ctx context.Context, path string, sink ui.Sink) ScanResult {
	res := ScanResult{Path: path}
	fail := func(err error) ScanResult {
		res.Err = err
		sink.Emit(ui.Event{File: path, Stage: ui.StageError, Err: err})
		return res
	}

	sink.Emit(ui.Event{File: path, Stage: ui.StageParse})
	d, err := source.LoadDocument(path)
	if err != nil {
		return fail(err)
	}
	defer d.Dispose()
	file := tree.NewFile(d, Parsers()...)
	if _, err := file.Roots(); err != nil {
		return fail(err)
	}
	v := editor.NewView(file)
	defer s.updater.Forget(v)

	sink.Emit(ui.Event{File: path, Stage: ui.StageAnalyze})
	p, err := s.updater.Compute(ctx, v, reconcile.ApplyDefaults)
	if err != nil {
		return fail(err)
	}
	sink.Emit(ui.Event{File: path, Stage: ui.StageReconcile})
	st, err := p.Run(ctx)
	if err != nil {
		return fail(err)
	}
	if _, err := s.updater.UpdateInjected(ctx, v); err != nil {
		return fail(err)
	}
	res.Stats = st
	res.Regions, res.Collapsed = countRegions(v.Model())
	sink.Emit(ui.Event{File: path, Stage: ui.StageDone, Regions: res.Regions})
	return res
}

func countRegions(m *fold.Model) (total, collapsed int) {
	for _, r := range m.Live() {
		total++
		if !r.Expanded() {
			collapsed++
		}
	}
	return total, collapsed
}
