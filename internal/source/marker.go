package source

// Marker is a range that follows edits of its document.
//
// Insertions at the start offset push the marker right, insertions at the end
// stay outside. Any edit touching the interior sets the mutated flag; an edit
// that swallows the whole range invalidates the marker.
type Marker struct {
	doc     *Document
	start   uint32
	end     uint32
	valid   bool
	mutated bool
}

// Span returns the current range.
func (m *Marker) Span() Span {
	m.doc.mu.RLock()
	defer m.doc.mu.RUnlock()
	return Span{Start: m.start, End: m.end}
}

// Valid reports whether the range still exists in the document.
func (m *Marker) Valid() bool {
	m.doc.mu.RLock()
	defer m.doc.mu.RUnlock()
	return m.valid
}

// Mutated reports whether an edit changed text inside the range since the last ClearMutated.
func (m *Marker) Mutated() bool {
	m.doc.mu.RLock()
	defer m.doc.mu.RUnlock()
	return m.mutated
}

func (m *Marker) ClearMutated() {
	m.doc.mu.Lock()
	defer m.doc.mu.Unlock()
	m.mutated = false
}

func (m *Marker) Document() *Document {
	return m.doc
}

// Dispose stops tracking and invalidates the marker.
func (m *Marker) Dispose() {
	m.doc.mu.Lock()
	defer m.doc.mu.Unlock()
	m.valid = false
	delete(m.doc.markers, m)
}

// apply runs under the document write lock.
func (m *Marker) apply(c Change) {
	if !m.valid {
		return
	}
	es, ee := c.Old.Start, c.Old.End
	newEnd := es + c.NewLen

	switch {
	case ee <= m.start && !(es == ee && es == m.start && m.start == m.end):
		// целиком до маркера
		m.start = shift(m.start, c)
		m.end = shift(m.end, c)
		return
	case es >= m.end:
		return
	}

	m.mutated = true
	switch {
	case es <= m.start && ee >= m.end:
		m.valid = false
	case es >= m.start && ee <= m.end:
		m.end = shift(m.end, c)
	case es < m.start:
		m.start = newEnd
		m.end = shift(m.end, c)
	default:
		m.end = es
	}
	if m.start >= m.end {
		m.valid = false
	}
}

func shift(off uint32, c Change) uint32 {
	v := int64(off) + c.Delta()
	if v < 0 {
		return 0
	}
	return uint32(v)
}
