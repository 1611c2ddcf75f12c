package snapshot

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"foldkit/internal/descriptor"
	"foldkit/internal/diag"
	"foldkit/internal/editor"
	"foldkit/internal/fold"
	"foldkit/internal/lang/curly"
	"foldkit/internal/reconcile"
	"foldkit/internal/signature"
	"foldkit/internal/source"
	"foldkit/internal/tree"
)

const program = "import a\nimport b\n\nfn main() {\n\tif x {\n\t\tone()\n\t} else {\n\t\ttwo()\n\t}\n}\n"

func openDoc(t *testing.T, doc *source.Document) *editor.View {
	t.Helper()
	return editor.NewView(tree.NewFile(doc, curly.Parser{}))
}

func openView(t *testing.T, text string) *editor.View {
	t.Helper()
	return openDoc(t, source.NewDocument("s.cy", []byte(text)))
}

func reconciled(t *testing.T, v *editor.View, mode reconcile.Mode) reconcile.Stats {
	t.Helper()
	res, err := descriptor.Build(context.Background(), v.File(),
		[]descriptor.Analyzer{curly.NewAnalyzer(curly.DefaultSettings())},
		descriptor.Options{Signer: signature.Default()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	st, err := reconcile.Reconcile(context.Background(), reconcile.Input{
		View:        v,
		Descriptors: res.Descriptors,
		Stamp:       res.Stamp,
		Mode:        mode,
	})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	v.MarkInitialized()
	return st
}

func TestCapture(t *testing.T) {
	v := openView(t, program)
	if s := Capture(v.Document(), []*editor.View{v}, nil); s.Len() != 0 {
		t.Fatalf("uninitialized view captured: %v", s.Entries)
	}
	reconciled(t, v, reconcile.ApplyDefaults)
	if s := Capture(v.Document(), []*editor.View{v}, nil); s.Len() != 0 {
		t.Fatalf("default states captured: %v", s.Entries)
	}

	m := v.Model()
	fn := m.RegionAtLine(3)
	m.SetExpanded(fn, false)
	manual, err := m.Create(source.NewSpan(1, 7), "mport", fold.NoGroup, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	manual.SetSignature(fold.LightSignature())

	s := Capture(v.Document(), []*editor.View{v}, nil)
	if s.Len() != 2 {
		t.Fatalf("entries %v", s.Entries)
	}
	var sig BySignature
	var mark ByMarker
	for _, e := range s.Entries {
		switch e := e.(type) {
		case BySignature:
			sig = e
		case ByMarker:
			mark = e
		}
	}
	if !strings.Contains(sig.Signature, "main") || sig.Expanded {
		t.Errorf("signature entry %+v", sig)
	}
	if mark.Span != source.NewSpan(1, 7) || mark.Placeholder != "mport" || mark.Dated {
		t.Errorf("marker entry %+v", mark)
	}
}

func TestApplyFollowsElementAcrossEdits(t *testing.T) {
	v := openView(t, program)
	reconciled(t, v, reconcile.ApplyDefaults)
	v.Model().SetExpanded(v.Model().RegionAtLine(3), false)
	s := Capture(v.Document(), []*editor.View{v}, nil)

	moved := openView(t, "// header\n\n"+program)
	reconciled(t, moved, reconcile.ApplyDefaults)
	st, err := Apply(moved, s, signature.Default(), nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	fn := moved.Model().RegionAtLine(5)
	if st.Restored != 1 || fn == nil || fn.Expanded() {
		t.Fatalf("stats %+v, fn region %v", st, fn)
	}
}

func TestApplySkipsBittenRegions(t *testing.T) {
	v := openView(t, program)
	reconciled(t, v, reconcile.ApplyDefaults)
	fn := v.Model().RegionAtLine(3)
	sigv, _ := fn.Signature().Known()
	fn.SetFlag(fold.Bitten)
	st, err := Apply(v, &Snapshot{Entries: []Entry{BySignature{Signature: sigv}}}, signature.Default(), nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if st.Restored != 0 || !fn.Expanded() {
		t.Fatalf("bitten region overridden: %+v %v", st, fn)
	}
}

func TestApplyReportsDuplicateSignatures(t *testing.T) {
	v := openView(t, program)
	reconciled(t, v, reconcile.ApplyDefaults)
	sigv, _ := v.Model().RegionAtLine(3).Signature().Known()
	bag := diag.NewBag(4)
	s := &Snapshot{Entries: []Entry{BySignature{Signature: sigv}, BySignature{Signature: sigv, Expanded: true}}}
	if _, err := Apply(v, s, signature.Default(), diag.BagReporter{Bag: bag}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !bag.Has(diag.FoldSignatureCollision) {
		t.Fatalf("codes %v", bag.Codes())
	}
	if v.Model().RegionAtLine(3).Expanded() {
		t.Fatal("second entry applied")
	}
}

func TestMarkerTimestampGating(t *testing.T) {
	span := source.NewSpan(1, 7)
	tests := []struct {
		name    string
		entry   ByMarker
		unsaved bool
		created bool
	}{
		{"same file", ByMarker{Span: span, Placeholder: "p", Date: 100, Dated: true}, false, true},
		{"older file", ByMarker{Span: span, Placeholder: "p", Date: 99, Dated: true}, false, false},
		{"unsaved edits", ByMarker{Span: span, Placeholder: "p", Date: 100, Dated: true}, true, false},
		{"undated", ByMarker{Span: span, Placeholder: "p"}, false, false},
		{"no placeholder", ByMarker{Span: span, Date: 100, Dated: true}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := source.NewDocument("m.cy", []byte(program))
			doc.SetDiskTimestamp(100)
			if tt.unsaved {
				if err := doc.Insert(doc.Len(), "\n"); err != nil {
					t.Fatalf("Insert: %v", err)
				}
			}
			v := openDoc(t, doc)
			st, err := Apply(v, &Snapshot{Entries: []Entry{tt.entry}}, nil, nil)
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			r := v.Model().RegionAt(span)
			if (r != nil) != tt.created || (st.Created == 1) != tt.created {
				t.Fatalf("region %v stats %+v, want created=%v", r, st, tt.created)
			}
			if r != nil && (r.Expanded() || r.Signature().Kind != fold.SigLight) {
				t.Fatalf("restored region %v sig %v", r, r.Signature())
			}
		})
	}
}

func TestEncode(t *testing.T) {
	s := &Snapshot{Path: "a.cy", Entries: []Entry{
		BySignature{Signature: "curly:decl:fn#main", Expanded: true},
		BySignature{Signature: "curly:decl:fn#other"},
		ByMarker{Span: source.NewSpan(3, 9), Placeholder: "x", Date: 42, Dated: true},
		ByMarker{Span: source.NewSpan(10, 19), Placeholder: "undated"},
	}}
	var buf bytes.Buffer
	n, err := Encode(&buf, s, 0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out := buf.String()
	if n != 3 || strings.Contains(out, "undated") {
		t.Fatalf("wrote %d entries:\n%s", n, out)
	}
	for _, want := range []string{
		`<element signature="curly:decl:fn#main" expanded="true"></element>`,
		`<element signature="curly:decl:fn#other"></element>`,
		`<marker signature="3:9" date="42" placeholder="x"></marker>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in\n%s", want, out)
		}
	}

	back, err := Decode(strings.NewReader(out), 2)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if back.Len() != 2 || back.Path != "a.cy" {
		t.Fatalf("decoded %+v", back)
	}
	if e, ok := back.Entries[1].(BySignature); !ok || e.Expanded {
		t.Fatalf("absent expanded attribute read as %+v", back.Entries[1])
	}
}

func TestDecodeRejectsForeignXML(t *testing.T) {
	_, err := Decode(strings.NewReader(`<project><component/></project>`), 0)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestStoreCopyOnWrite(t *testing.T) {
	st := NewStore()
	orig := &Snapshot{Path: "a.cy", Entries: []Entry{BySignature{Signature: "x"}}}
	st.Put(orig)
	orig.Entries[0] = BySignature{Signature: "mutated"}
	got, _ := st.Get("a.cy")
	if got.Entries[0].(BySignature).Signature != "x" {
		t.Fatal("Put kept the caller's slice")
	}
	st.Put(&Snapshot{Path: "a.cy", Entries: []Entry{BySignature{Signature: "y"}, BySignature{Signature: "z"}}})
	if got.Entries[0].(BySignature).Signature != "x" || got.Len() != 1 {
		t.Fatal("Put changed a snapshot already handed out")
	}
	if next, _ := st.Get("a.cy"); next.Len() != 2 {
		t.Fatalf("replaced %+v", next)
	}
}
