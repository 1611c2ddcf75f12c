package descriptor_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"foldkit/internal/descriptor"
	"foldkit/internal/diag"
	"foldkit/internal/fold"
	"foldkit/internal/lang/curly"
	"foldkit/internal/lang/doc"
	"foldkit/internal/signature"
	"foldkit/internal/source"
	"foldkit/internal/tree"
)

type fakeAnalyzer struct {
	lang   tree.Language
	cands  []descriptor.Candidate
	err    error
	cbd    bool
	cbdErr error
	noBg   bool
}

func (f *fakeAnalyzer) Language() tree.Language { return f.lang }

func (f *fakeAnalyzer) BuildDescriptors(*tree.Tree, *source.Document, bool) ([]descriptor.Candidate, error) {
	return f.cands, f.err
}

func (f *fakeAnalyzer) IsCollapsedByDefault(descriptor.Candidate) (bool, error) { return f.cbd, f.cbdErr }

func (f *fakeAnalyzer) SupportsBackground() bool { return !f.noBg }

type version struct {
	key string
	v   uint64
}

func (d version) DepKey() string  { return d.key }
func (d version) Version() uint64 { return d.v }

const text = "0123456789012345678901234567890123456789"

func newFile(t *testing.T, body string) *tree.File {
	t.Helper()
	return tree.NewFile(source.NewDocument("b.cy", []byte(body)), curly.Parser{}, doc.Parser{})
}

func cand(start, end uint32) descriptor.Candidate {
	return descriptor.Candidate{Span: source.NewSpan(start, end), PlaceholderText: fmt.Sprintf("%d-%d", start, end)}
}

func spans(res *descriptor.Result) []source.Span {
	out := make([]source.Span, 0, len(res.Descriptors))
	for _, d := range res.Descriptors {
		out = append(out, d.Span)
	}
	return out
}

func TestBuildValidatesCandidates(t *testing.T) {
	f := newFile(t, text)
	bag := diag.NewBag(16)
	a := &fakeAnalyzer{lang: curly.Language, cands: []descriptor.Candidate{
		cand(30, 50), // past end
		cand(7, 7),   // empty
		cand(2, 12),
	}}
	res, err := descriptor.Build(context.Background(), f, []descriptor.Analyzer{a},
		descriptor.Options{Reporter: diag.BagReporter{Bag: bag}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := spans(res); len(got) != 1 || got[0] != source.NewSpan(2, 12) {
		t.Fatalf("descriptors %v", got)
	}
	if !bag.Has(diag.FoldDescriptorOutOfBounds) || !bag.Has(diag.FoldDescriptorEmpty) {
		t.Fatalf("codes %v", bag.Codes())
	}
	if res.Descriptors[0].Signature.Kind != fold.SigLight {
		t.Fatalf("element-less descriptor signature %v", res.Descriptors[0].Signature)
	}
}

func TestBuildBoundsAgainstDocument(t *testing.T) {
	tests := []struct {
		name string
		c    descriptor.Candidate
		ok   bool
	}{
		{"ends at buffer end", cand(30, 40), true},
		{"one past buffer end", cand(30, 41), false},
		{"inverted", descriptor.Candidate{Span: source.Span{Start: 12, End: 4}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bag := diag.NewBag(16)
			a := &fakeAnalyzer{lang: curly.Language, cands: []descriptor.Candidate{tt.c}}
			res, err := descriptor.Build(context.Background(), newFile(t, text), []descriptor.Analyzer{a},
				descriptor.Options{Reporter: diag.BagReporter{Bag: bag}})
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if got := len(res.Descriptors) == 1; got != tt.ok {
				t.Fatalf("accepted=%v, want %v (%v)", got, tt.ok, bag.Codes())
			}
			if tt.ok {
				return
			}
			items := bag.Items()
			if len(items) != 1 || items[0].Code != diag.FoldDescriptorOutOfBounds {
				t.Fatalf("diagnostics %v", bag.Codes())
			}
			msg := items[0].Message
			if !strings.Contains(msg, "<none>") || !strings.Contains(msg, "past end 40") {
				t.Fatalf("message %q lacks the element or the buffer length", msg)
			}
		})
	}
}

func TestBuildMergesRootsPrimaryFirst(t *testing.T) {
	f := newFile(t, text)
	bag := diag.NewBag(16)
	primary := &fakeAnalyzer{lang: curly.Language, cands: []descriptor.Candidate{cand(0, 20), cand(25, 35)}}
	embedded := &fakeAnalyzer{lang: doc.Language, cands: []descriptor.Candidate{
		cand(0, 20),  // exact duplicate: kept
		cand(15, 30), // crosses both primary ranges
		cand(2, 10),  // nested
	}}
	res, err := descriptor.Build(context.Background(), f, []descriptor.Analyzer{embedded, primary},
		descriptor.Options{Reporter: diag.BagReporter{Bag: bag}, Jobs: 1})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := []source.Span{
		source.NewSpan(0, 20), source.NewSpan(25, 35),
		source.NewSpan(0, 20), source.NewSpan(2, 10),
	}
	got := spans(res)
	if len(got) != len(want) {
		t.Fatalf("descriptors %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("descriptors %v, want %v", got, want)
		}
	}
	if res.Descriptors[0].Language != curly.Language {
		t.Fatalf("primary root not first: %s", res.Descriptors[0].Language)
	}
	if !bag.Has(diag.FoldAmbiguousOverlap) {
		t.Fatalf("overlap not reported: %v", bag.Codes())
	}
	for _, key := range []string{"root:curly", "root:doc"} {
		if _, ok := res.Deps[key]; !ok {
			t.Errorf("deps miss %s: %v", key, res.Deps)
		}
	}
}

func TestBuildNotReadyAbandonsPass(t *testing.T) {
	f := newFile(t, text)
	bag := diag.NewBag(4)
	a := &fakeAnalyzer{lang: curly.Language, err: fmt.Errorf("index: %w", descriptor.ErrNotReady)}
	_, err := descriptor.Build(context.Background(), f, []descriptor.Analyzer{a},
		descriptor.Options{Reporter: diag.BagReporter{Bag: bag}})
	if !errors.Is(err, descriptor.ErrNotReady) {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
	if !bag.Has(diag.FoldAnalyzerNotReady) {
		t.Fatalf("codes %v", bag.Codes())
	}
}

func TestBuildSwallowsTransientFailures(t *testing.T) {
	f := newFile(t, text)
	bag := diag.NewBag(4)
	c := cand(0, 10)
	c.Placeholder = func() (string, error) { return "", descriptor.ErrNotReady }
	a := &fakeAnalyzer{lang: curly.Language, cands: []descriptor.Candidate{c}, cbd: true, cbdErr: descriptor.ErrNotReady}
	res, err := descriptor.Build(context.Background(), f, []descriptor.Analyzer{a},
		descriptor.Options{Reporter: diag.BagReporter{Bag: bag}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	d := res.Descriptors[0]
	if d.CollapsedByDefault {
		t.Fatal("not-ready default read as collapsed")
	}
	if d.Placeholder() != descriptor.DefaultPlaceholder {
		t.Fatalf("placeholder %q", d.Placeholder())
	}
	if bag.HasErrors() {
		t.Fatalf("transient failure surfaced as error: %v", bag.Items())
	}
}

func TestBuildOverrideAndDeps(t *testing.T) {
	f := newFile(t, text)
	c := cand(0, 10)
	c.CollapsedByDefault = fold.TriTrue
	c.Deps = []descriptor.Dependency{version{"settings", 7}}
	a := &fakeAnalyzer{lang: curly.Language, cands: []descriptor.Candidate{c}, cbdErr: errors.New("must not be asked")}
	res, err := descriptor.Build(context.Background(), f, []descriptor.Analyzer{a}, descriptor.Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !res.Descriptors[0].CollapsedByDefault {
		t.Fatal("override ignored")
	}
	if res.Deps["settings"] != 7 {
		t.Fatalf("deps %v", res.Deps)
	}
}

func TestBuildBackgroundSkips(t *testing.T) {
	f := newFile(t, text)
	a := &fakeAnalyzer{lang: doc.Language, cands: []descriptor.Candidate{cand(0, 10)}, noBg: true}
	res, err := descriptor.Build(context.Background(), f, []descriptor.Analyzer{a}, descriptor.Options{Background: true})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(res.Descriptors) != 0 || len(res.Skipped) != 1 || res.Skipped[0] != doc.Language {
		t.Fatalf("descriptors %v skipped %v", spans(res), res.Skipped)
	}
}

func TestBuildWithRealAnalyzers(t *testing.T) {
	src := "/**\n * Adds.\n * @example\n *   add(1)\n *   add(2)\n */\nfn add(a) {\n\treturn a\n}\n"
	f := newFile(t, src)
	res, err := descriptor.Build(context.Background(), f, []descriptor.Analyzer{
		curly.NewAnalyzer(curly.DefaultSettings()), doc.Analyzer{},
	}, descriptor.Options{Signer: signature.Default()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var langs []tree.Language
	for _, d := range res.Descriptors {
		langs = append(langs, d.Language)
		if d.Signature.Kind != fold.SigKnown {
			t.Errorf("%v has no signature", d)
		}
	}
	if len(langs) != 3 || langs[2] != doc.Language {
		t.Fatalf("languages %v, want doc comment, fn, then @example", langs)
	}
}
