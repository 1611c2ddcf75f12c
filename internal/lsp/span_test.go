package lsp

import (
	"testing"

	"foldkit/internal/source"
)

func TestUTF16Positions(t *testing.T) {
	doc := source.NewDocument("u.cy", []byte("fn a() {\n\ts := \"e\u0301\U0001F642x\"\n}\n"))
	lineStart := doc.LineStart(1)
	tests := []struct {
		name   string
		offset uint32
		pos    position
	}{
		{"start", 0, position{Line: 0, Character: 0}},
		{"line start", lineStart, position{Line: 1, Character: 0}},
		// tab, "s := \"", e, combining accent
		{"before emoji", lineStart + 1 + 6 + 1 + 2, position{Line: 1, Character: 9}},
		{"after emoji", lineStart + 1 + 6 + 1 + 2 + 4, position{Line: 1, Character: 11}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := positionOf(doc, tt.offset); got != tt.pos {
				t.Fatalf("positionOf(%d) = %+v, want %+v", tt.offset, got, tt.pos)
			}
			if got := offsetOf(doc, tt.pos); got != tt.offset {
				t.Fatalf("offsetOf(%+v) = %d, want %d", tt.pos, got, tt.offset)
			}
		})
	}
	if got := offsetOf(doc, position{Line: 0, Character: 99}); got != doc.LineEnd(0) {
		t.Errorf("past line end: %d", got)
	}
	if got := offsetOf(doc, position{Line: 99}); got != doc.Len() {
		t.Errorf("past last line: %d", got)
	}
}

func TestApplyChanges(t *testing.T) {
	doc := source.NewDocument("c.cy", []byte("one\ntwo\n"))
	err := applyChanges(doc, []textDocumentContentChangeEvent{
		{Range: &lspRange{Start: position{Line: 1, Character: 0}, End: position{Line: 1, Character: 3}}, Text: "2"},
		{Range: &lspRange{Start: position{Line: 0, Character: 0}, End: position{Line: 0, Character: 0}}, Text: "// "},
	})
	if err != nil {
		t.Fatalf("applyChanges: %v", err)
	}
	if got := doc.Text(); got != "// one\n2\n" {
		t.Fatalf("text %q", got)
	}
	if err := applyChanges(doc, []textDocumentContentChangeEvent{{Text: "all new"}}); err != nil || doc.Text() != "all new" {
		t.Fatalf("full sync: %q %v", doc.Text(), err)
	}
}
