// Package runtimemap links live fold regions to the structural elements they
// were created for. Links hold smart pointers, so they survive reparses; the
// map itself is only touched on the UI goroutine.
package runtimemap

import (
	"foldkit/internal/fold"
	"foldkit/internal/source"
	"foldkit/internal/tree"
)

// Lookup is the region→element association a reconcile works against.
type Lookup interface {
	Add(r *fold.Region, e tree.Element)
	Remove(r *fold.Region)
	ElementOf(r *fold.Region) (tree.Element, bool)
	// RangeOf is the element range in host document coordinates.
	RangeOf(r *fold.Region) (source.Span, bool)
	// Owns reports whether r is managed through this lookup.
	Owns(r *fold.Region) bool
	Clear()
}

// Map is the primary lookup of a view.
type Map struct {
	links    map[*fold.Region]*tree.Pointer
	injected []*Injected
}

func New() *Map {
	return &Map{links: make(map[*fold.Region]*tree.Pointer)}
}

func (m *Map) Add(r *fold.Region, e tree.Element) {
	if r == nil || e.IsZero() {
		return
	}
	if old, ok := m.links[r]; ok {
		old.Dispose()
	}
	m.links[r] = tree.NewPointer(e)
}

func (m *Map) Remove(r *fold.Region) {
	if p, ok := m.links[r]; ok {
		p.Dispose()
		delete(m.links, r)
	}
}

// ElementOf resolves the element of r in the current tree.
func (m *Map) ElementOf(r *fold.Region) (tree.Element, bool) {
	p, ok := m.links[r]
	if !ok {
		return tree.Element{}, false
	}
	return p.Element()
}

func (m *Map) RangeOf(r *fold.Region) (source.Span, bool) {
	e, ok := m.ElementOf(r)
	if !ok {
		return source.Span{}, false
	}
	return e.Span(), true
}

// Owns is true for every region not claimed by an injected fragment.
func (m *Map) Owns(r *fold.Region) bool {
	for _, inj := range m.injected {
		if _, ok := inj.links[r]; ok {
			return false
		}
	}
	return true
}

// RegionOf finds the region linked to e, if any.
func (m *Map) RegionOf(e tree.Element) (*fold.Region, bool) {
	for r, p := range m.links {
		if got, ok := p.Element(); ok && got == e {
			return r, true
		}
	}
	return nil, false
}

func (m *Map) Len() int { return len(m.links) }

// Clear drops every link, injected fragments included.
func (m *Map) Clear() {
	for r, p := range m.links {
		p.Dispose()
		delete(m.links, r)
	}
	for _, inj := range m.injected {
		inj.clearLocal()
	}
}

// Inject registers a fragment that starts at offset of the host document.
func (m *Map) Inject(offset uint32) *Injected {
	inj := &Injected{host: m, offset: offset, links: make(map[*fold.Region]*tree.Pointer)}
	m.injected = append(m.injected, inj)
	return inj
}

// Detach unregisters inj and drops its links.
func (m *Map) Detach(inj *Injected) {
	for i, cur := range m.injected {
		if cur == inj {
			m.injected = append(m.injected[:i], m.injected[i+1:]...)
			break
		}
	}
	inj.clearLocal()
}

// Injected is the lookup of a fragment embedded in the host document, e.g.
// code inside a string literal. Elements live in the fragment's own tree;
// regions live in the host model, shifted by the fragment offset.
type Injected struct {
	host   *Map
	offset uint32
	links  map[*fold.Region]*tree.Pointer
}

func (i *Injected) Offset() uint32 { return i.offset }

// SetOffset moves the fragment after an edit in front of it.
func (i *Injected) SetOffset(off uint32) { i.offset = off }

// HostSpan converts a fragment range to host coordinates.
func (i *Injected) HostSpan(local source.Span) source.Span { return local.ShiftRight(i.offset) }

// LocalSpan converts a host range to fragment coordinates.
func (i *Injected) LocalSpan(host source.Span) source.Span { return host.ShiftLeft(i.offset) }

func (i *Injected) Add(r *fold.Region, e tree.Element) {
	if r == nil || e.IsZero() {
		return
	}
	if old, ok := i.links[r]; ok {
		old.Dispose()
	}
	i.links[r] = tree.NewPointer(e)
}

func (i *Injected) Remove(r *fold.Region) {
	if p, ok := i.links[r]; ok {
		p.Dispose()
		delete(i.links, r)
	}
}

func (i *Injected) ElementOf(r *fold.Region) (tree.Element, bool) {
	p, ok := i.links[r]
	if !ok {
		return tree.Element{}, false
	}
	return p.Element()
}

func (i *Injected) RangeOf(r *fold.Region) (source.Span, bool) {
	e, ok := i.ElementOf(r)
	if !ok {
		return source.Span{}, false
	}
	return i.HostSpan(e.Span()), true
}

func (i *Injected) Owns(r *fold.Region) bool {
	_, ok := i.links[r]
	return ok
}

// Clear on a fragment clears only the fragment's links.
func (i *Injected) Clear() { i.clearLocal() }

func (i *Injected) clearLocal() {
	for r, p := range i.links {
		p.Dispose()
		delete(i.links, r)
	}
}
