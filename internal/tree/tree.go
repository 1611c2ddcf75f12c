// Package tree holds the structural view of a document: one tree per
// language root, arena-allocated nodes and value handles to them.
//
// Trees are immutable once built. A document edit makes every tree of its
// File stale; the next Roots call reparses. Element handles into a stale tree
// report IsValid() == false, and Pointer re-finds the matching element in the
// fresh tree.
package tree

import (
	"sort"

	"fortio.org/safecast"

	"foldkit/internal/source"
)

// Language identifies a structural root kind, e.g. "curly" or "doc".
type Language string

// Kind is a language-specific node type.
type Kind string

// NodeID indexes a node inside its tree. Zero means none.
type NodeID uint32

// NoNodeID is the invalid node.
const NoNodeID NodeID = 0

func (id NodeID) IsValid() bool { return id != NoNodeID }

// Node is one structural element.
type Node struct {
	Kind     Kind
	Name     string      // declaration name or region label; may be empty
	Span     source.Span // whole construct, header included
	Body     source.Span // the part that folds; empty when nothing folds
	Parent   NodeID
	Children []NodeID
	Link     NodeID // previous node in a linked chain (if/else); NoNodeID otherwise
}

// Tree is the parse result of one language root at one document stamp.
type Tree struct {
	file  *File
	lang  Language
	stamp uint64
	text  string
	nodes []Node // nodes[0] is a sentinel
	root  NodeID

	byStart map[uint32][]NodeID
}

// Builder assembles a tree; parsers receive one.
type Builder struct {
	t *Tree
}

// NewBuilder starts a tree for lang over text. The root node covers the whole text.
func NewBuilder(lang Language, text string) *Builder {
	t := &Tree{
		lang:  lang,
		text:  text,
		nodes: make([]Node, 1, 64),
	}
	n, err := safecast.Conv[uint32](len(text))
	if err != nil {
		n = ^uint32(0)
	}
	t.nodes = append(t.nodes, Node{Kind: "file", Span: source.Span{End: n}})
	t.root = 1
	return &Builder{t: t}
}

// Text returns the text being parsed.
func (b *Builder) Text() string { return b.t.text }

// Root returns the root node id.
func (b *Builder) Root() NodeID { return b.t.root }

// Add appends node under parent and returns its id.
func (b *Builder) Add(parent NodeID, node Node) NodeID {
	idx, err := safecast.Conv[uint32](len(b.t.nodes))
	if err != nil {
		panic(err)
	}
	id := NodeID(idx)
	node.Parent = parent
	node.Children = nil
	b.t.nodes = append(b.t.nodes, node)
	if parent.IsValid() {
		p := &b.t.nodes[parent]
		p.Children = append(p.Children, id)
	}
	return id
}

// Attach makes child (created with no parent) a child of parent.
func (b *Builder) Attach(parent, child NodeID) {
	c := b.Node(child)
	p := b.Node(parent)
	if c == nil || p == nil || c.Parent.IsValid() {
		return
	}
	c.Parent = parent
	p.Children = append(p.Children, child)
}

// Reparent moves every child of from under to.
func (b *Builder) Reparent(from, to NodeID) {
	f := b.Node(from)
	t := b.Node(to)
	if f == nil || t == nil {
		return
	}
	for _, id := range f.Children {
		b.t.nodes[id].Parent = to
		t = b.Node(to)
		t.Children = append(t.Children, id)
	}
	f.Children = nil
}

// Node gives mutable access while building (e.g. to close a block span).
func (b *Builder) Node(id NodeID) *Node {
	if !id.IsValid() || int(id) >= len(b.t.nodes) {
		return nil
	}
	return &b.t.nodes[id]
}

// Finish orders every child list by start offset and returns the tree.
// The builder must not be used afterwards.
func (b *Builder) Finish() *Tree {
	t := b.t
	b.t = nil
	for i := range t.nodes {
		children := t.nodes[i].Children
		sort.SliceStable(children, func(x, y int) bool {
			return t.nodes[children[x]].Span.Start < t.nodes[children[y]].Span.Start
		})
	}
	return t
}

func (t *Tree) Language() Language { return t.lang }

// Stamp is the document modification stamp the tree was parsed at.
func (t *Tree) Stamp() uint64 { return t.stamp }

func (t *Tree) File() *File { return t.file }

// Text returns the document text the tree was parsed from.
func (t *Tree) Text() string { return t.text }

// Slice returns the text under span, clamped to the parsed text.
func (t *Tree) Slice(span source.Span) string {
	n := len(t.text)
	start, end := int(span.Start), int(span.End)
	if start > n {
		return ""
	}
	if end > n {
		end = n
	}
	return t.text[start:end]
}

func (t *Tree) Root() Element { return Element{tree: t, id: t.root} }

// Len returns the number of nodes, root included.
func (t *Tree) Len() int { return len(t.nodes) - 1 }

func (t *Tree) node(id NodeID) *Node {
	if !id.IsValid() || int(id) >= len(t.nodes) {
		return nil
	}
	return &t.nodes[id]
}

// Element wraps id into a handle.
func (t *Tree) Element(id NodeID) Element {
	if t.node(id) == nil {
		return Element{}
	}
	return Element{tree: t, id: id}
}

// Walk visits nodes depth-first in document order; returning false skips children.
func (t *Tree) Walk(fn func(Element) bool) {
	var visit func(id NodeID)
	visit = func(id NodeID) {
		if !fn(Element{tree: t, id: id}) {
			return
		}
		for _, child := range t.nodes[id].Children {
			visit(child)
		}
	}
	visit(t.root)
}

// AtSpan returns elements of kind whose Span equals span.
func (t *Tree) AtSpan(kind Kind, span source.Span) []Element {
	if t.byStart == nil {
		idx := make(map[uint32][]NodeID, len(t.nodes))
		for i := 1; i < len(t.nodes); i++ {
			idx[t.nodes[i].Span.Start] = append(idx[t.nodes[i].Span.Start], NodeID(i))
		}
		t.byStart = idx
	}
	var out []Element
	for _, id := range t.byStart[span.Start] {
		n := &t.nodes[id]
		if n.Kind == kind && n.Span == span {
			out = append(out, Element{tree: t, id: id})
		}
	}
	return out
}
