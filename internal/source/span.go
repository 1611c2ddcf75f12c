package source

import (
	"fmt"
	"strconv"
	"strings"
)

// Span is a half-open byte range [Start, End) in a document.
type Span struct {
	Start uint32 // в байтах включительно
	End   uint32 // в байтах не включительно
}

// NewSpan builds a span, swapping the bounds if they come reversed.
func NewSpan(start, end uint32) Span {
	if end < start {
		start, end = end, start
	}
	return Span{Start: start, End: end}
}

func (s Span) Empty() bool {
	return s.Start == s.End
}

func (s Span) Len() uint32 {
	return s.End - s.Start
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d", s.Start, s.End)
}

// ParseSpan reads the "start:end" form produced by String.
func ParseSpan(text string) (Span, error) {
	startText, endText, ok := strings.Cut(strings.TrimSpace(text), ":")
	if !ok {
		return Span{}, fmt.Errorf("invalid span %q: expected start:end", text)
	}
	start, err := strconv.ParseUint(startText, 10, 32)
	if err != nil {
		return Span{}, fmt.Errorf("invalid span start %q: %w", startText, err)
	}
	end, err := strconv.ParseUint(endText, 10, 32)
	if err != nil {
		return Span{}, fmt.Errorf("invalid span end %q: %w", endText, err)
	}
	if end < start {
		return Span{}, fmt.Errorf("invalid span %q: end before start", text)
	}
	return Span{Start: uint32(start), End: uint32(end)}, nil
}

func (s Span) Cover(other Span) Span {
	if other.Start < s.Start {
		s.Start = other.Start
	}
	if other.End > s.End {
		s.End = other.End
	}
	return s
}

func (s Span) ShiftLeft(n uint32) Span {
	if n > s.Start {
		return s
	}
	return Span{Start: s.Start - n, End: s.End - n}
}

func (s Span) ShiftRight(n uint32) Span {
	return Span{Start: s.Start + n, End: s.End + n}
}

// Contains reports whether offset lies in [Start, End).
func (s Span) Contains(offset uint32) bool {
	return s.Start <= offset && offset < s.End
}

// StrictlyContains reports whether offset lies in (Start, End).
// The start offset itself stays visible when a region is collapsed.
func (s Span) StrictlyContains(offset uint32) bool {
	return s.Start < offset && offset < s.End
}

// ContainsSpan reports whether other lies entirely within s.
func (s Span) ContainsSpan(other Span) bool {
	return s.Start <= other.Start && other.End <= s.End
}

// Intersects reports whether the two spans share at least one offset.
// An empty span is treated as a point.
func (s Span) Intersects(other Span) bool {
	if other.Empty() {
		return s.Start <= other.Start && other.Start < s.End
	}
	if s.Empty() {
		return other.Start <= s.Start && s.Start < other.End
	}
	return s.Start < other.End && other.Start < s.End
}

// PartiallyOverlaps reports an ambiguous overlap: the spans intersect but
// neither contains the other.
func (s Span) PartiallyOverlaps(other Span) bool {
	if !s.Intersects(other) {
		return false
	}
	return !s.ContainsSpan(other) && !other.ContainsSpan(s)
}
