package curly

import (
	"strings"
	"testing"

	"foldkit/internal/descriptor"
	"foldkit/internal/source"
	"foldkit/internal/tree"
)

const sample = `// Package header
// second line
import a
import b

/**
 * Adds numbers.
 * @example add(1, 2)
 */
fn add(a, b) {
	return a + b
}

fn main() {
	if x {
		one()
	} else if y {
		two()
	} else {
		three()
	}
	// region Setup
	s := "{"
	// endregion
}
`

func parse(t *testing.T, text string) *tree.Tree {
	t.Helper()
	doc := source.NewDocument("sample.cy", []byte(text))
	root, err := tree.NewFile(doc, Parser{}).Root(Language)
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	return root
}

func kinds(els []tree.Element) string {
	parts := make([]string, 0, len(els))
	for _, e := range els {
		s := string(e.Kind())
		if e.Name() != "" {
			s += "(" + e.Name() + ")"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

func TestParserStructure(t *testing.T) {
	root := parse(t, sample)
	top := root.Root().Children()
	if got, want := kinds(top), "comments imports doccomment fn(add) fn(main)"; got != want {
		t.Fatalf("top level = %q, want %q", got, want)
	}
	main := top[4]
	if got, want := kinds(main.Children()), "if else else region(Setup)"; got != want {
		t.Fatalf("main children = %q, want %q", got, want)
	}
	body := root.Slice(main.Body())
	if !strings.HasPrefix(body, "{") || !strings.HasSuffix(body, "}") {
		t.Fatalf("main body %q not brace-delimited", body)
	}
	if !strings.HasPrefix(main.Text(), "fn main()") {
		t.Fatalf("main span %q does not start at the header", main.Text())
	}

	elseIf, last := main.Child(1), main.Child(2)
	if elseIf.Link() != main.Child(0) || last.Link() != elseIf {
		t.Fatal("else chain not linked")
	}
	imports := top[1]
	if got := root.Slice(imports.Body()); got != "a\nimport b" {
		t.Fatalf("imports body = %q", got)
	}
}

func TestParserTolerance(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"unclosed block keeps children", "fn a() {\n  fn b() {\n  }\n", "fn(b)"},
		{"stray close", "}\nfn a() {\n}\n", "fn(a)"},
		{"brace in string", "fn a() {\n  x := \"}\"\n}\n", "fn(a)"},
		{"brace in comment", "fn a() {\n  // }\n}\n", "fn(a)"},
		{"go receiver", "func (r *T) Name() {\n}\n", "fn(Name)"},
		{"modifiers", "pub async fn run() {\n}\n", "fn(run)"},
		{"unclosed region", "// region x\nfn a() {\n}\n", "fn(a)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := parse(t, tt.text)
			var named []tree.Element
			root.Walk(func(e tree.Element) bool {
				if e.Kind() == KindFn && e.Parent() == root.Root() {
					named = append(named, e)
				}
				return true
			})
			if got := kinds(named); got != tt.want {
				t.Fatalf("top-level fns = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnalyzerCandidates(t *testing.T) {
	root := parse(t, sample)
	a := NewAnalyzer(Settings{CollapseImports: true, CollapseFileHeader: true, PlaceholderWidth: 13})
	cands, err := a.BuildDescriptors(root, nil, false)
	if err != nil {
		t.Fatalf("BuildDescriptors: %v", err)
	}
	if len(cands) != 9 {
		t.Fatalf("got %d candidates, want 9", len(cands))
	}

	byKind := map[tree.Kind][]descriptor.Candidate{}
	for _, c := range cands {
		byKind[c.Element.Kind()] = append(byKind[c.Element.Kind()], c)
	}
	header := byKind[KindComments][0]
	if ph, _ := header.Placeholder(); ph != "// Package..." {
		t.Errorf("header placeholder = %q", ph)
	}
	if cbd, _ := a.IsCollapsedByDefault(header); !cbd {
		t.Error("file header not collapsed by default")
	}
	if cbd, _ := a.IsCollapsedByDefault(byKind[KindImports][0]); !cbd {
		t.Error("imports not collapsed by default")
	}
	if ph, _ := byKind[KindDocComment][0].Placeholder(); ph != "/** Adds numbers. */" {
		t.Errorf("doc placeholder = %q", ph)
	}
	if got := byKind[KindRegion][0].PlaceholderText; got != "Setup" {
		t.Errorf("region placeholder = %q", got)
	}

	g := byKind[KindIf][0].Group
	if g == nil || byKind[KindElse][0].Group != g || byKind[KindElse][1].Group != g {
		t.Fatal("if/else chain does not share a group")
	}
	if byKind[KindFn][0].Group != nil {
		t.Fatal("function joined a group")
	}
}

func TestAnalyzerQuickSkipsPlaceholders(t *testing.T) {
	root := parse(t, sample)
	cands, err := NewAnalyzer(DefaultSettings()).BuildDescriptors(root, nil, true)
	if err != nil {
		t.Fatalf("BuildDescriptors: %v", err)
	}
	for _, c := range cands {
		if c.Placeholder != nil {
			t.Fatalf("quick build computed placeholder for %v", c.Element)
		}
	}
}

func TestInjections(t *testing.T) {
	text := "fn host() {\n\t// language=curly\n\tsrc := `fn inner() {\n}`\n\tplain := `x`\n}\n"
	root := parse(t, text)
	got := Injections(root)
	if len(got) != 1 {
		t.Fatalf("got %d injections, want 1", len(got))
	}
	if got[0].Lang != Language || root.Slice(got[0].Span) != "fn inner() {\n}" {
		t.Fatalf("injection %+v = %q", got[0], root.Slice(got[0].Span))
	}
	host := root.Root().Child(0)
	if host.Kind() != KindFn || host.Name() != "host" {
		t.Fatalf("raw string braces broke the host block: %v", host)
	}
}
