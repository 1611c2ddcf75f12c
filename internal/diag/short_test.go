package diag

import (
	"testing"

	"foldkit/internal/source"
)

func TestFormatShort(t *testing.T) {
	doc := source.NewDocument("/w/a.cy", []byte("a\nb\n"))
	diags := []Diagnostic{
		New(SevWarning, FoldGroupInconsistent, "/w/a.cy", source.NewSpan(2, 3), "group\nchanged"),
		New(SevInfo, FoldRegionRejected, "/w/a.cy", source.NewSpan(0, 1), "duplicate"),
		New(SevError, FoldSnapshotDecode, "other.xml", source.NewSpan(4, 9), "bad xml"),
	}
	got := FormatShort(diags, map[string]Locator{"/w/a.cy": doc})
	want := "info FLD3004 /w/a.cy:1:1 duplicate\n" +
		"warning FLD3001 /w/a.cy:2:1 group changed\n" +
		"error FLD4001 other.xml:4:9 bad xml"
	if got != want {
		t.Fatalf("FormatShort:\nwant:\n%s\n\ngot:\n%s", want, got)
	}
}

func TestDedupReporter(t *testing.T) {
	bag := NewBag(10)
	r := NewDedupReporter(BagReporter{Bag: bag})
	for range 3 {
		ReportDefect(r, FoldSignatureMismatch, "x", source.NewSpan(1, 2), "sig").Emit()
	}
	ReportDefect(r, FoldSignatureMismatch, "x", source.NewSpan(1, 3), "sig").Emit()
	if bag.Len() != 2 {
		t.Fatalf("bag has %d diagnostics, want 2", bag.Len())
	}
	if got := bag.Items()[0].Severity; got != SevWarning {
		t.Fatalf("default severity = %v, want warning", got)
	}
}
