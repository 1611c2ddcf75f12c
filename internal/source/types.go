package source

// LineCol represents a human-readable position in a document.
type LineCol struct {
	Line uint32 // 1-based
	Col  uint32 // 1-based
}

// Change describes one applied buffer edit.
type Change struct {
	Old    Span   // replaced range in pre-edit coordinates
	NewLen uint32 // length of the inserted text
	Stamp  uint64 // modification stamp after the edit
}

// Delta returns how much offsets after the edit moved.
func (c Change) Delta() int64 {
	return int64(c.NewLen) - int64(c.Old.Len())
}
