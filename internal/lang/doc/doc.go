// Package doc is the documentation-comment root: it parses /** ... */
// comments into tag sections and folds @example sections. It runs next to
// the curly root of the same file.
package doc

import (
	"strings"

	"fortio.org/safecast"

	"foldkit/internal/descriptor"
	"foldkit/internal/source"
	"foldkit/internal/tree"
)

const Language tree.Language = "doc"

const (
	KindDoc     tree.Kind = "doc"
	KindSection tree.Kind = "section"
)

type Parser struct{}

func (Parser) Language() tree.Language { return Language }

func off(n int) uint32 {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		return ^uint32(0)
	}
	return v
}

func (Parser) Parse(b *tree.Builder) error {
	text := b.Text()
	pos := 0
	for {
		i := strings.Index(text[pos:], "/**")
		if i < 0 {
			return nil
		}
		start := pos + i
		if strings.HasPrefix(text[start:], "/**/") {
			pos = start + 4
			continue
		}
		end := len(text)
		if j := strings.Index(text[start+3:], "*/"); j >= 0 {
			end = start + 3 + j + 2
		}
		span := source.NewSpan(off(start), off(end))
		id := b.Add(b.Root(), tree.Node{Kind: KindDoc, Span: span, Body: span})
		sections(b, id, text, start, end)
		pos = end
	}
}

// sections splits a comment into "@tag" sections; a section runs until the
// next tag line or the closing line.
func sections(b *tree.Builder, parent tree.NodeID, text string, start, end int) {
	var (
		open     bool
		secStart int
		secEnd   int
		tag      string
		caption  string
	)
	flush := func() {
		if open && secEnd > secStart {
			span := source.NewSpan(off(secStart), off(secEnd))
			name := tag
			if caption != "" {
				name += " " + caption
			}
			b.Add(parent, tree.Node{Kind: KindSection, Name: name, Span: span, Body: span})
		}
		open = false
	}
	lineStart := start
	for lineStart < end {
		lineEnd := strings.IndexByte(text[lineStart:end], '\n')
		if lineEnd < 0 {
			lineEnd = end
		} else {
			lineEnd += lineStart
		}
		line := text[lineStart:lineEnd]
		content := strings.TrimSpace(line)
		content = strings.TrimPrefix(content, "/**")
		closing := strings.HasSuffix(content, "*/")
		content = strings.TrimSpace(strings.TrimPrefix(strings.TrimSuffix(content, "*/"), "*"))

		if strings.HasPrefix(content, "@") {
			flush()
			fields := strings.SplitN(content, " ", 2)
			tag = fields[0]
			caption = ""
			if len(fields) == 2 {
				caption = strings.TrimSpace(fields[1])
			}
			open = true
			secStart = lineStart + strings.Index(line, "@")
			secEnd = lineEnd
		} else if open && !closing {
			secEnd = lineEnd
		}
		if closing {
			if strings.HasPrefix(content, "@") {
				// "@tag ... */" on one line: the section stops before "*/"
				secEnd = lineStart + strings.LastIndex(line, "*/")
			}
			break
		}
		lineStart = lineEnd + 1
	}
	flush()
}

// Analyzer folds multi-line @example sections.
type Analyzer struct{}

func (Analyzer) Language() tree.Language { return Language }

func (Analyzer) SupportsBackground() bool { return true }

func (Analyzer) BuildDescriptors(root *tree.Tree, _ *source.Document, _ bool) ([]descriptor.Candidate, error) {
	var out []descriptor.Candidate
	root.Walk(func(e tree.Element) bool {
		if e.Kind() != KindSection || !strings.HasPrefix(e.Name(), "@example") {
			return true
		}
		if !strings.Contains(root.Slice(e.Body()), "\n") {
			return false
		}
		out = append(out, descriptor.Candidate{
			Span:            e.Body(),
			Element:         e,
			PlaceholderText: e.Name(),
		})
		return false
	})
	return out, nil
}

func (Analyzer) IsCollapsedByDefault(descriptor.Candidate) (bool, error) { return false, nil }
