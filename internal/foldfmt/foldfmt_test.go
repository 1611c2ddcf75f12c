package foldfmt

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"foldkit/internal/source"
)

func rows() []Row {
	return []Row{
		{Span: source.NewSpan(0, 17), Start: source.LineCol{Line: 1, Col: 8}, End: source.LineCol{Line: 2, Col: 9}, Placeholder: "...", Kind: "known", Signature: "curly:path:e#imports#0"},
		{Span: source.NewSpan(29, 60), Start: source.LineCol{Line: 4, Col: 11}, End: source.LineCol{Line: 10, Col: 2}, Placeholder: "{...}", Expanded: true, Group: "if-chain"},
	}
}

func TestText(t *testing.T) {
	var buf bytes.Buffer
	if err := Text(&buf, "a.cy", rows(), Options{Signatures: true, Offsets: true}); err != nil {
		t.Fatalf("Text: %v", err)
	}
	want := "a.cy: 2 regions\n" +
		"  1:8-2:9         collapsed ... @0:17 curly:path:e#imports#0\n" +
		"  4:11-10:2       expanded  {...} [if-chain] @29:60\n"
	if got := buf.String(); got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := JSON(&buf, ToJSON("a.cy", rows())); err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var back FileJSON
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.File != "a.cy" || len(back.Regions) != 2 || back.Regions[1].Group != "if-chain" || back.Regions[0].Expanded {
		t.Fatalf("got %+v", back)
	}
}

func TestDiff(t *testing.T) {
	a := rows()
	b := rows()
	if d, err := Diff("old", "new", a, b, 0); err != nil || d != "" {
		t.Fatalf("equal listings diff %q %v", d, err)
	}
	b[1].Expanded = false
	d, err := Diff("old", "new", a, b, 0)
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	for _, want := range []string{"--- old", "+++ new", "-4:11-10:2 expanded {...} [if-chain]", "+4:11-10:2 collapsed {...} [if-chain]"} {
		if !strings.Contains(d, want) {
			t.Errorf("diff lacks %q:\n%s", want, d)
		}
	}
}
