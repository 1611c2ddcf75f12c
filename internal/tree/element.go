package tree

import (
	"foldkit/internal/source"
)

// Element is a value handle to a node. It is comparable and may be used as a
// map key; two handles are equal when they point at the same node of the same
// tree.
type Element struct {
	tree *Tree
	id   NodeID
}

// IsZero reports the empty handle.
func (e Element) IsZero() bool { return e.tree == nil || !e.id.IsValid() }

// IsValid reports whether the element belongs to the current tree of its file
// for the document's current stamp.
func (e Element) IsValid() bool {
	if e.IsZero() {
		return false
	}
	if e.tree.file == nil {
		return true
	}
	return e.tree.file.isCurrent(e.tree)
}

func (e Element) Tree() *Tree { return e.tree }

func (e Element) ID() NodeID { return e.id }

func (e Element) Language() Language {
	if e.tree == nil {
		return ""
	}
	return e.tree.lang
}

func (e Element) node() *Node {
	if e.tree == nil {
		return nil
	}
	return e.tree.node(e.id)
}

func (e Element) Kind() Kind {
	if n := e.node(); n != nil {
		return n.Kind
	}
	return ""
}

func (e Element) Name() string {
	if n := e.node(); n != nil {
		return n.Name
	}
	return ""
}

// Span is the whole construct.
func (e Element) Span() source.Span {
	if n := e.node(); n != nil {
		return n.Span
	}
	return source.Span{}
}

// Body is the foldable part of the construct.
func (e Element) Body() source.Span {
	if n := e.node(); n != nil {
		return n.Body
	}
	return source.Span{}
}

// Text returns the source text of the construct.
func (e Element) Text() string {
	if e.tree == nil {
		return ""
	}
	return e.tree.Slice(e.Span())
}

func (e Element) Parent() Element {
	if n := e.node(); n != nil && n.Parent.IsValid() {
		return Element{tree: e.tree, id: n.Parent}
	}
	return Element{}
}

// Link returns the previous element of a chain (e.g. the `if` of an `else`).
func (e Element) Link() Element {
	if n := e.node(); n != nil && n.Link.IsValid() {
		return Element{tree: e.tree, id: n.Link}
	}
	return Element{}
}

func (e Element) Children() []Element {
	n := e.node()
	if n == nil {
		return nil
	}
	out := make([]Element, 0, len(n.Children))
	for _, id := range n.Children {
		out = append(out, Element{tree: e.tree, id: id})
	}
	return out
}

// Child returns the i-th child or the zero handle.
func (e Element) Child(i int) Element {
	n := e.node()
	if n == nil || i < 0 || i >= len(n.Children) {
		return Element{}
	}
	return Element{tree: e.tree, id: n.Children[i]}
}

// NextSibling returns the following sibling or the zero handle.
func (e Element) NextSibling() Element {
	p := e.Parent()
	if p.IsZero() {
		return Element{}
	}
	siblings := p.node().Children
	for i, id := range siblings {
		if id == e.id && i+1 < len(siblings) {
			return Element{tree: e.tree, id: siblings[i+1]}
		}
	}
	return Element{}
}

// PrevSibling returns the preceding sibling or the zero handle.
func (e Element) PrevSibling() Element {
	p := e.Parent()
	if p.IsZero() {
		return Element{}
	}
	siblings := p.node().Children
	for i, id := range siblings {
		if id == e.id && i > 0 {
			return Element{tree: e.tree, id: siblings[i-1]}
		}
	}
	return Element{}
}

func (e Element) String() string {
	if e.IsZero() {
		return "<none>"
	}
	n := e.node()
	if n.Name != "" {
		return string(e.tree.lang) + ":" + string(n.Kind) + "(" + n.Name + ")@" + n.Span.String()
	}
	return string(e.tree.lang) + ":" + string(n.Kind) + "@" + n.Span.String()
}
