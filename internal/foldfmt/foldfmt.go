// Package foldfmt renders the regions of a view for the CLI: an aligned
// listing, JSON, and a unified diff between two listings.
package foldfmt

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	difflib "github.com/pmezard/go-difflib/difflib"

	"foldkit/internal/editor"
	"foldkit/internal/fold"
	"foldkit/internal/source"
)

// Row is one region as shown to the user.
type Row struct {
	Span        source.Span
	Start       source.LineCol
	End         source.LineCol
	Placeholder string
	Expanded    bool
	Group       string
	Signature   string // "" for light and unsigned regions
	Kind        string // signature kind
	Injected    bool
}

// Rows lists the live regions of v in document order.
func Rows(v *editor.View) []Row {
	if v.Disposed() {
		return nil
	}
	live := v.Model().Live()
	rows := make([]Row, 0, len(live))
	for _, r := range live {
		rows = append(rows, RowOf(v, r))
	}
	return rows
}

// RowOf renders one region of v.
func RowOf(v *editor.View, r *fold.Region) Row {
	doc := v.Document()
	span := r.Span()
	sig, _ := r.Signature().Known()
	return Row{
		Span:        span,
		Start:       doc.Resolve(span.Start),
		End:         doc.Resolve(span.End),
		Placeholder: r.Placeholder(),
		Expanded:    r.Expanded(),
		Group:       v.Model().GroupName(r.Group()),
		Signature:   sig,
		Kind:        r.Signature().Kind.String(),
		Injected:    !v.Map().Owns(r),
	}
}

// Options tune the text listing.
type Options struct {
	Color      bool
	Signatures bool
	Offsets    bool
}

var (
	collapsedColor = color.New(color.FgYellow, color.Bold)
	expandedColor  = color.New(color.FgGreen)
	groupColor     = color.New(color.FgCyan)
	faintColor     = color.New(color.Faint)
)

func state(expanded bool) string {
	if expanded {
		return "expanded"
	}
	return "collapsed"
}

// Line renders one row without colour; Diff compares these.
func Line(r Row) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d:%d-%d:%d %s %s", r.Start.Line, r.Start.Col, r.End.Line, r.End.Col, state(r.Expanded), r.Placeholder)
	if r.Group != "" {
		b.WriteString(" [" + r.Group + "]")
	}
	if r.Injected {
		b.WriteString(" (injected)")
	}
	return b.String()
}

// Text writes the listing of path.
func Text(w io.Writer, path string, rows []Row, opts Options) error {
	paint := func(c *color.Color, s string) string {
		if !opts.Color {
			return s
		}
		return c.Sprint(s)
	}
	if _, err := fmt.Fprintf(w, "%s: %d regions\n", path, len(rows)); err != nil {
		return err
	}
	for _, r := range rows {
		pos := fmt.Sprintf("%d:%d-%d:%d", r.Start.Line, r.Start.Col, r.End.Line, r.End.Col)
		st := paint(expandedColor, fmt.Sprintf("%-9s", state(r.Expanded)))
		if !r.Expanded {
			st = paint(collapsedColor, fmt.Sprintf("%-9s", state(r.Expanded)))
		}
		line := fmt.Sprintf("  %-15s %s %s", pos, st, r.Placeholder)
		if r.Group != "" {
			line += " " + paint(groupColor, "["+r.Group+"]")
		}
		if r.Injected {
			line += " " + paint(faintColor, "(injected)")
		}
		if opts.Offsets {
			line += " " + paint(faintColor, "@"+r.Span.String())
		}
		if opts.Signatures && r.Signature != "" {
			line += " " + paint(faintColor, r.Signature)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RegionJSON is the JSON form of a Row.
type RegionJSON struct {
	StartByte   uint32 `json:"start_byte"`
	EndByte     uint32 `json:"end_byte"`
	StartLine   uint32 `json:"start_line"`
	StartCol    uint32 `json:"start_col"`
	EndLine     uint32 `json:"end_line"`
	EndCol      uint32 `json:"end_col"`
	Placeholder string `json:"placeholder"`
	Expanded    bool   `json:"expanded"`
	Group       string `json:"group,omitempty"`
	Signature   string `json:"signature,omitempty"`
	Kind        string `json:"kind"`
	Injected    bool   `json:"injected,omitempty"`
}

// FileJSON is the root of the JSON listing of one file.
type FileJSON struct {
	File    string       `json:"file"`
	Regions []RegionJSON `json:"regions"`
}

func ToJSON(path string, rows []Row) FileJSON {
	out := FileJSON{File: path, Regions: make([]RegionJSON, 0, len(rows))}
	for _, r := range rows {
		out.Regions = append(out.Regions, RegionJSON{
			StartByte:   r.Span.Start,
			EndByte:     r.Span.End,
			StartLine:   r.Start.Line,
			StartCol:    r.Start.Col,
			EndLine:     r.End.Line,
			EndCol:      r.End.Col,
			Placeholder: r.Placeholder,
			Expanded:    r.Expanded,
			Group:       r.Group,
			Signature:   r.Signature,
			Kind:        r.Kind,
			Injected:    r.Injected,
		})
	}
	return out
}

// JSON writes one or more file listings, indented.
func JSON(w io.Writer, files ...FileJSON) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if len(files) == 1 {
		return enc.Encode(files[0])
	}
	return enc.Encode(files)
}

// Diff returns a unified diff of two listings, "" when they are equal.
func Diff(aName, bName string, a, b []Row, context int) (string, error) {
	if context <= 0 {
		context = 3
	}
	u := difflib.UnifiedDiff{
		A:        lines(a),
		B:        lines(b),
		FromFile: aName,
		ToFile:   bName,
		Context:  context,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return "", fmt.Errorf("diff %s %s: %w", aName, bName, err)
	}
	return s, nil
}

func lines(rows []Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, Line(r)+"\n")
	}
	return out
}
