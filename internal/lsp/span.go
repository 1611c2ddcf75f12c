package lsp

import (
	"unicode/utf8"

	"fortio.org/safecast"

	"foldkit/internal/source"
)

const maxUint32 = ^uint32(0)

func safeUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		return maxUint32
	}
	return v
}

// offsetOf converts a UTF-16 protocol position to a byte offset in doc.
// Positions past a line end clamp to it; lines past the end clamp to the
// document length.
func offsetOf(doc *source.Document, pos position) uint32 {
	if pos.Line < 0 || pos.Character < 0 {
		return 0
	}
	if pos.Line >= doc.LineCount() {
		return doc.Len()
	}
	span := doc.LineSpan(pos.Line)
	line := doc.Slice(span)
	units := 0
	i := 0
	for i < len(line) {
		r, size := utf8.DecodeRuneInString(line[i:])
		need := 1
		if r > 0xFFFF {
			need = 2
		}
		if units+need > pos.Character {
			break
		}
		units += need
		i += size
	}
	return span.Start + safeUint32(i)
}

// positionOf converts a byte offset in doc to a UTF-16 protocol position.
func positionOf(doc *source.Document, offset uint32) position {
	if n := doc.Len(); offset > n {
		offset = n
	}
	line := doc.LineOf(offset)
	start := doc.LineStart(line)
	units := 0
	for _, r := range doc.Slice(source.NewSpan(start, offset)) {
		if r > 0xFFFF {
			units += 2
		} else {
			units++
		}
	}
	return position{Line: line, Character: units}
}

func rangeOf(doc *source.Document, span source.Span) lspRange {
	return lspRange{
		Start: positionOf(doc, span.Start),
		End:   positionOf(doc, span.End),
	}
}
