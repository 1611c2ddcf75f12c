package curly

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"foldkit/internal/descriptor"
	"foldkit/internal/source"
	"foldkit/internal/tree"
)

// Settings are the user-facing folding defaults.
type Settings struct {
	CollapseImports     bool
	CollapseFileHeader  bool
	CollapseDocComments bool
	PlaceholderWidth    int // display cells for comment placeholders
}

// DefaultSettings matches an empty [folding] config section.
func DefaultSettings() Settings {
	return Settings{CollapseImports: true, PlaceholderWidth: 40}
}

// Analyzer folds curly trees.
type Analyzer struct {
	Settings Settings
}

func NewAnalyzer(s Settings) *Analyzer { return &Analyzer{Settings: s} }

func (a *Analyzer) Language() tree.Language { return Language }

func (a *Analyzer) SupportsBackground() bool { return true }

var blockKinds = map[tree.Kind]bool{
	KindFn: true, KindType: true, KindIf: true, KindElse: true,
	KindLoop: true, KindMatch: true, KindBlock: true,
}

func (a *Analyzer) BuildDescriptors(root *tree.Tree, _ *source.Document, quick bool) ([]descriptor.Candidate, error) {
	groups := chainGroups(root)
	var out []descriptor.Candidate
	root.Walk(func(e tree.Element) bool {
		if e == root.Root() {
			return true
		}
		body := e.Body()
		if body.Empty() || !strings.Contains(root.Slice(body), "\n") {
			return true
		}
		c := descriptor.Candidate{Span: body, Element: e}
		switch k := e.Kind(); {
		case blockKinds[k]:
			c.PlaceholderText = "{...}"
			c.Group = groups[e.ID()]
		case k == KindComments:
			c.PlaceholderText = "//..."
			if !quick {
				c.Placeholder = a.lineCommentPlaceholder(root, body)
			}
		case k == KindComment:
			c.PlaceholderText = "/*...*/"
		case k == KindDocComment:
			c.PlaceholderText = "/**...*/"
			if !quick {
				c.Placeholder = a.docPlaceholder(root, body)
			}
		case k == KindImports:
			c.PlaceholderText = descriptor.DefaultPlaceholder
		case k == KindRegion:
			c.PlaceholderText = e.Name()
			if c.PlaceholderText == "" {
				c.PlaceholderText = descriptor.DefaultPlaceholder
			}
			c.KeepExpandedOnFirstCollapseAll = true
		default:
			return true
		}
		out = append(out, c)
		return true
	})
	return out, nil
}

// chainGroups assigns one group to every if/else chain with two or more
// multi-line members.
func chainGroups(root *tree.Tree) map[tree.NodeID]*descriptor.Group {
	heads := make(map[tree.NodeID][]tree.Element)
	root.Walk(func(e tree.Element) bool {
		if e.Kind() != KindElse || e.Link().IsZero() {
			return true
		}
		head := e.Link()
		for !head.Link().IsZero() {
			head = head.Link()
		}
		if len(heads[head.ID()]) == 0 {
			heads[head.ID()] = append(heads[head.ID()], head)
		}
		heads[head.ID()] = append(heads[head.ID()], e)
		return true
	})
	out := make(map[tree.NodeID]*descriptor.Group)
	for _, members := range heads {
		var foldable []tree.Element
		for _, m := range members {
			if strings.Contains(root.Slice(m.Body()), "\n") {
				foldable = append(foldable, m)
			}
		}
		if len(foldable) < 2 {
			continue
		}
		g := &descriptor.Group{Name: "if-chain"}
		for _, m := range foldable {
			out[m.ID()] = g
		}
	}
	return out
}

func (a *Analyzer) width() int {
	if a.Settings.PlaceholderWidth <= 0 {
		return 40
	}
	return a.Settings.PlaceholderWidth
}

func (a *Analyzer) lineCommentPlaceholder(root *tree.Tree, body source.Span) func() (string, error) {
	return func() (string, error) {
		first, _, _ := strings.Cut(root.Slice(body), "\n")
		first = strings.TrimSpace(first)
		return runewidth.Truncate(first, a.width(), "..."), nil
	}
}

func (a *Analyzer) docPlaceholder(root *tree.Tree, body source.Span) func() (string, error) {
	return func() (string, error) {
		inner := strings.TrimSuffix(strings.TrimPrefix(root.Slice(body), "/**"), "*/")
		for _, line := range strings.Split(inner, "\n") {
			line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "*"))
			if line == "" || strings.HasPrefix(line, "@") {
				continue
			}
			return "/** " + runewidth.Truncate(line, a.width(), "...") + " */", nil
		}
		return "/**...*/", nil
	}
}

func (a *Analyzer) IsCollapsedByDefault(c descriptor.Candidate) (bool, error) {
	e := c.Element
	switch e.Kind() {
	case KindImports:
		return a.Settings.CollapseImports, nil
	case KindDocComment:
		if isFileHeader(e) {
			return a.Settings.CollapseFileHeader, nil
		}
		return a.Settings.CollapseDocComments, nil
	case KindComment, KindComments:
		return isFileHeader(e) && a.Settings.CollapseFileHeader, nil
	}
	return false, nil
}

// isFileHeader reports a comment that opens the file.
func isFileHeader(e tree.Element) bool {
	p := e.Parent()
	if p.IsZero() || !p.Parent().IsZero() || p.Child(0) != e {
		return false
	}
	return strings.TrimSpace(e.Tree().Slice(source.NewSpan(0, e.Span().Start))) == ""
}
