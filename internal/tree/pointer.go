package tree

import (
	"foldkit/internal/source"
)

// Pointer survives reparses: it remembers the node's language, kind and name
// and tracks its span with a document marker. Element re-finds the node in
// the current tree.
type Pointer struct {
	file   *File
	lang   Language
	kind   Kind
	name   string
	marker *source.Marker
	cached Element
}

// NewPointer creates a pointer to e. The element must belong to a File.
func NewPointer(e Element) *Pointer {
	if e.IsZero() || e.tree.file == nil {
		return nil
	}
	f := e.tree.file
	return &Pointer{
		file:   f,
		lang:   e.Language(),
		kind:   e.Kind(),
		name:   e.Name(),
		marker: f.doc.CreateMarker(e.Span()),
		cached: e,
	}
}

// Element returns the pointed element in the current tree. It does not parse:
// when the current tree is not available the pointer resolves to nothing.
func (p *Pointer) Element() (Element, bool) {
	if p == nil {
		return Element{}, false
	}
	if p.cached.IsValid() {
		return p.cached, true
	}
	if !p.marker.Valid() {
		return Element{}, false
	}
	t, ok := p.file.Current(p.lang)
	if !ok {
		return Element{}, false
	}
	candidates := t.AtSpan(p.kind, p.marker.Span())
	if len(candidates) == 0 {
		return Element{}, false
	}
	found := candidates[0]
	for _, c := range candidates {
		if c.Name() == p.name {
			found = c
			break
		}
	}
	p.cached = found
	p.name = found.Name()
	return found, true
}

// Span returns the tracked span.
func (p *Pointer) Span() (source.Span, bool) {
	if p == nil || !p.marker.Valid() {
		return source.Span{}, false
	}
	return p.marker.Span(), true
}

func (p *Pointer) Dispose() {
	if p == nil {
		return
	}
	p.marker.Dispose()
	p.cached = Element{}
}
