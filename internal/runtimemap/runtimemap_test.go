package runtimemap

import (
	"testing"

	"foldkit/internal/fold"
	"foldkit/internal/lang/curly"
	"foldkit/internal/source"
	"foldkit/internal/tree"
)

const text = "fn a() {\n  x()\n}\n\nfn b() {\n  y()\n}\n"

func setup(t *testing.T, text string) (*source.Document, *tree.File, *fold.Model) {
	t.Helper()
	doc := source.NewDocument("m.cy", []byte(text))
	f := tree.NewFile(doc, curly.Parser{})
	if _, err := f.Roots(); err != nil {
		t.Fatalf("Roots: %v", err)
	}
	return doc, f, fold.NewModel(doc)
}

func fnElement(t *testing.T, f *tree.File, name string) tree.Element {
	t.Helper()
	root, err := f.Root(curly.Language)
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	for _, e := range root.Root().Children() {
		if e.Kind() == curly.KindFn && e.Name() == name {
			return e
		}
	}
	t.Fatalf("no fn %s", name)
	return tree.Element{}
}

func TestLinkSurvivesReparse(t *testing.T) {
	doc, f, model := setup(t, text)
	m := New()
	b := fnElement(t, f, "b")
	r, err := model.Create(b.Body(), "{...}", fold.NoGroup, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	m.Add(r, b)

	if err := doc.Insert(0, "// lead\n"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, ok := m.ElementOf(r); ok {
		t.Fatal("resolved against a tree that was not reparsed")
	}
	if _, err := f.Roots(); err != nil {
		t.Fatalf("Roots: %v", err)
	}
	got, ok := m.ElementOf(r)
	if !ok || got.Name() != "b" || !got.IsValid() {
		t.Fatalf("ElementOf = %v, %v", got, ok)
	}
	if span, ok := m.RangeOf(r); !ok || span != got.Span() {
		t.Fatalf("RangeOf = %v, %v", span, ok)
	}
	if reg, ok := m.RegionOf(got); !ok || reg != r {
		t.Fatal("RegionOf did not find the region")
	}

	m.Remove(r)
	if _, ok := m.ElementOf(r); ok || m.Len() != 0 {
		t.Fatal("link kept after Remove")
	}
}

func TestInjectedOwnership(t *testing.T) {
	host := "x := `fn c() {\n}`\n"
	_, _, model := setup(t, host)
	m := New()

	frag := source.NewDocument("m.cy#0", []byte("fn c() {\n}"))
	ff := tree.NewFile(frag, curly.Parser{})
	c := fnElement(t, ff, "c")
	inj := m.Inject(6)

	hostSpan := inj.HostSpan(c.Body())
	if inj.LocalSpan(hostSpan) != c.Body() {
		t.Fatalf("span translation is not symmetric: %v", hostSpan)
	}
	r, err := model.Create(hostSpan, "{...}", fold.NoGroup, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	inj.Add(r, c)

	light, err := model.Create(source.NewSpan(0, 4), "x", fold.NoGroup, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	tests := []struct {
		name   string
		lookup Lookup
		region *fold.Region
		want   bool
	}{
		{"host does not own injected", m, r, false},
		{"fragment owns its region", inj, r, true},
		{"host owns unlinked", m, light, true},
		{"fragment ignores host regions", inj, light, false},
	}
	for _, tt := range tests {
		if got := tt.lookup.Owns(tt.region); got != tt.want {
			t.Errorf("%s: Owns = %v, want %v", tt.name, got, tt.want)
		}
	}
	if span, ok := inj.RangeOf(r); !ok || span != inj.HostSpan(c.Span()) {
		t.Fatalf("RangeOf = %v, %v", span, ok)
	}

	m.Clear()
	if inj.Owns(r) {
		t.Fatal("clearing the host kept fragment links")
	}
}

func TestDetach(t *testing.T) {
	_, _, model := setup(t, text)
	m := New()
	inj := m.Inject(0)
	frag := source.NewDocument("f", []byte("fn z() {\n}"))
	z := fnElement(t, tree.NewFile(frag, curly.Parser{}), "z")
	r, err := model.Create(z.Body(), "{...}", fold.NoGroup, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	inj.Add(r, z)
	m.Detach(inj)
	if !m.Owns(r) {
		t.Fatal("detached fragment still claims its region")
	}
}
