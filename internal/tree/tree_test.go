package tree

import (
	"strings"
	"testing"

	"foldkit/internal/source"
)

// lineParser makes one "line" node per non-empty line, named by its first word.
type lineParser struct{}

func (lineParser) Language() Language { return "lines" }

func (lineParser) Parse(b *Builder) error {
	text := b.Text()
	off := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		trimmed := strings.TrimRight(line, "\n")
		if trimmed != "" {
			name := strings.Fields(trimmed)[0]
			span := source.NewSpan(uint32(off), uint32(off+len(trimmed)))
			b.Add(b.Root(), Node{Kind: "line", Name: name, Span: span, Body: span})
		}
		off += len(line)
	}
	return nil
}

func newLinesFile(t *testing.T, text string) (*source.Document, *File) {
	t.Helper()
	doc := source.NewDocument("t.txt", []byte(text))
	return doc, NewFile(doc, lineParser{})
}

func TestFileReparsesOnEdit(t *testing.T) {
	doc, f := newLinesFile(t, "alpha 1\nbeta 2\n")
	roots, err := f.Roots()
	if err != nil {
		t.Fatalf("Roots: %v", err)
	}
	if got := roots[0].Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}
	if _, err := f.Roots(); err != nil {
		t.Fatalf("Roots: %v", err)
	}
	if f.ParseCount() != 1 {
		t.Fatalf("expected cached tree, parse count %d", f.ParseCount())
	}

	el := roots[0].Root().Child(1)
	if !el.IsValid() || el.Name() != "beta" {
		t.Fatalf("unexpected element %v", el)
	}
	if err := doc.Insert(0, "gamma 0\n"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if el.IsValid() {
		t.Fatal("element of stale tree still valid")
	}
	if _, ok := f.Current("lines"); ok {
		t.Fatal("Current returned a stale tree")
	}
	if _, err := f.Root("lines"); err != nil {
		t.Fatalf("Root: %v", err)
	}
	if f.ParseCount() != 2 {
		t.Fatalf("parse count = %d, want 2", f.ParseCount())
	}
}

func TestPointerRefindsAfterReparse(t *testing.T) {
	doc, f := newLinesFile(t, "alpha 1\nbeta 2\n")
	root, err := f.Root("lines")
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	p := NewPointer(root.Root().Child(1))
	if err := doc.Insert(0, "zz "); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, ok := p.Element(); ok {
		t.Fatal("pointer resolved without a current tree")
	}
	if _, err := f.Roots(); err != nil {
		t.Fatalf("Roots: %v", err)
	}
	el, ok := p.Element()
	if !ok {
		t.Fatal("pointer lost its element")
	}
	if el.Name() != "beta" || el.Text() != "beta 2" {
		t.Fatalf("pointer resolved to %v (%q)", el, el.Text())
	}

	if err := doc.Delete(el.Span()); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.Roots(); err != nil {
		t.Fatalf("Roots: %v", err)
	}
	if _, ok := p.Element(); ok {
		t.Fatal("pointer to deleted text still resolves")
	}
}

func TestElementNavigation(t *testing.T) {
	_, f := newLinesFile(t, "a\nb\nc\n")
	root, err := f.Root("lines")
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	b := root.Root().Child(1)
	if b.PrevSibling().Name() != "a" || b.NextSibling().Name() != "c" {
		t.Fatalf("siblings of %v wrong", b)
	}
	if b.Parent() != root.Root() {
		t.Fatal("parent is not root")
	}
	if !root.Root().Child(5).IsZero() {
		t.Fatal("out of range child not zero")
	}
	if got := len(root.AtSpan("line", b.Span())); got != 1 {
		t.Fatalf("AtSpan returned %d elements", got)
	}
}
