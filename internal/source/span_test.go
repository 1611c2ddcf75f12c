package source

import (
	"testing"
)

func TestSpan_ShiftLeft(t *testing.T) {
	tests := []struct {
		name     string
		span     Span
		shift    uint32
		expected Span
	}{
		{
			name:     "shift normal span left by 5",
			span:     Span{Start: 10, End: 20},
			shift:    5,
			expected: Span{Start: 5, End: 15},
		},
		{
			name:     "shift equals start - boundary case",
			span:     Span{Start: 10, End: 20},
			shift:    10,
			expected: Span{Start: 0, End: 10},
		},
		{
			name:     "shift larger than start - returns original",
			span:     Span{Start: 10, End: 20},
			shift:    15,
			expected: Span{Start: 10, End: 20},
		},
		{
			name:     "shift zero-length span",
			span:     Span{Start: 10, End: 10},
			shift:    3,
			expected: Span{Start: 7, End: 7},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.span.ShiftLeft(tt.shift)
			if result != tt.expected {
				t.Errorf("ShiftLeft(%d) = %v, want %v", tt.shift, result, tt.expected)
			}
		})
	}
}

func TestSpan_Relations(t *testing.T) {
	outer := Span{Start: 10, End: 40}
	tests := []struct {
		name      string
		other     Span
		intersect bool
		partial   bool
		contains  bool
	}{
		{"nested", Span{Start: 12, End: 20}, true, false, true},
		{"identical", Span{Start: 10, End: 40}, true, false, true},
		{"crossing start", Span{Start: 5, End: 15}, true, true, false},
		{"crossing end", Span{Start: 35, End: 50}, true, true, false},
		{"encloses", Span{Start: 0, End: 50}, true, false, false},
		{"touching end", Span{Start: 40, End: 45}, false, false, false},
		{"before", Span{Start: 0, End: 10}, false, false, false},
		{"point inside", Span{Start: 25, End: 25}, true, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outer.Intersects(tt.other); got != tt.intersect {
				t.Errorf("Intersects(%v) = %v, want %v", tt.other, got, tt.intersect)
			}
			if got := outer.PartiallyOverlaps(tt.other); got != tt.partial {
				t.Errorf("PartiallyOverlaps(%v) = %v, want %v", tt.other, got, tt.partial)
			}
			if got := outer.ContainsSpan(tt.other); got != tt.contains {
				t.Errorf("ContainsSpan(%v) = %v, want %v", tt.other, got, tt.contains)
			}
		})
	}
}

func TestSpan_StrictlyContains(t *testing.T) {
	sp := Span{Start: 10, End: 40}
	cases := map[uint32]bool{9: false, 10: false, 11: true, 39: true, 40: false}
	for off, want := range cases {
		if got := sp.StrictlyContains(off); got != want {
			t.Errorf("StrictlyContains(%d) = %v, want %v", off, got, want)
		}
	}
}

func TestParseSpanRoundTrip(t *testing.T) {
	sp := Span{Start: 3, End: 17}
	got, err := ParseSpan(sp.String())
	if err != nil {
		t.Fatalf("ParseSpan: %v", err)
	}
	if got != sp {
		t.Fatalf("ParseSpan(%q) = %v, want %v", sp.String(), got, sp)
	}
	for _, bad := range []string{"", "12", "a:b", "9:3"} {
		if _, err := ParseSpan(bad); err == nil {
			t.Errorf("ParseSpan(%q) expected error", bad)
		}
	}
}
