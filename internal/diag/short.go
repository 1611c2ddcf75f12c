package diag

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"foldkit/internal/source"
)

// Locator resolves offsets of one document into line/column.
type Locator interface {
	Resolve(offset uint32) source.LineCol
}

// FormatShort renders one line per diagnostic: "severity CODE path:line:col message".
// Diagnostics whose path has no locator are printed with the raw span.
func FormatShort(diags []Diagnostic, locators map[string]Locator) string {
	type row struct {
		sev, code, path string
		line, col       uint32
		pos, msg        string
	}
	rows := make([]row, 0, len(diags))
	for _, d := range diags {
		r := row{
			sev:  severityLabel(d.Severity),
			code: d.Code.ID(),
			path: filepath.ToSlash(d.Path),
			msg:  sanitizeMessage(d.Message),
		}
		if loc, ok := locators[d.Path]; ok && loc != nil {
			lc := loc.Resolve(d.Primary.Start)
			r.line, r.col = lc.Line, lc.Col
			r.pos = fmt.Sprintf("%d:%d", lc.Line, lc.Col)
		} else {
			r.pos = d.Primary.String()
		}
		rows = append(rows, r)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		ri, rj := rows[i], rows[j]
		if ri.path != rj.path {
			return ri.path < rj.path
		}
		if ri.line != rj.line {
			return ri.line < rj.line
		}
		if ri.col != rj.col {
			return ri.col < rj.col
		}
		return ri.code < rj.code
	})

	var b strings.Builder
	for i, r := range rows {
		fmt.Fprintf(&b, "%s %s %s:%s %s", r.sev, r.code, r.path, r.pos, r.msg)
		if i < len(rows)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func severityLabel(sev Severity) string {
	switch sev {
	case SevError:
		return "error"
	case SevWarning:
		return "warning"
	default:
		return "info"
	}
}

func sanitizeMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "\r\n", "\n")
	msg = strings.ReplaceAll(msg, "\n", " ")
	return strings.TrimSpace(msg)
}
