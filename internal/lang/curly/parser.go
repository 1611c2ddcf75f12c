// Package curly is a tolerant structural parser and folding analyzer for
// brace-delimited languages. It recognizes blocks, if/else chains, comments,
// import runs and "// region" markers; it does not resolve expressions.
package curly

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"fortio.org/safecast"

	"foldkit/internal/source"
	"foldkit/internal/tree"
)

// Language is the root language id.
const Language tree.Language = "curly"

// Node kinds.
const (
	KindFn         tree.Kind = "fn"
	KindType       tree.Kind = "type"
	KindIf         tree.Kind = "if"
	KindElse       tree.Kind = "else"
	KindLoop       tree.Kind = "loop"
	KindMatch      tree.Kind = "match"
	KindBlock      tree.Kind = "block"
	KindComment    tree.Kind = "comment"
	KindDocComment tree.Kind = "doccomment"
	KindComments   tree.Kind = "comments"
	KindImports    tree.Kind = "imports"
	KindRegion     tree.Kind = "region"
	// KindRaw is a raw string marked with "// language=<id>"; Name is the id
	// and Span the text between the backticks.
	KindRaw tree.Kind = "raw"
)

var keywordKinds = map[string]tree.Kind{
	"fn": KindFn, "func": KindFn, "function": KindFn, "def": KindFn,
	"type": KindType, "struct": KindType, "class": KindType, "interface": KindType,
	"enum": KindType, "impl": KindType, "trait": KindType, "union": KindType,
	"if": KindIf, "else": KindElse,
	"for": KindLoop, "while": KindLoop, "loop": KindLoop, "do": KindLoop,
	"switch": KindMatch, "match": KindMatch, "select": KindMatch,
}

var modifiers = map[string]bool{
	"pub": true, "export": true, "public": true, "private": true, "protected": true,
	"static": true, "async": true, "extern": true, "unsafe": true, "override": true,
}

// Parser builds curly trees.
type Parser struct{}

func (Parser) Language() tree.Language { return Language }

type frame struct {
	id          tree.NodeID
	brace       uint32
	headerStart uint32
	kind        tree.Kind
	name        string
	regions     []openRegion
	lastComment tree.NodeID
	lastImport  tree.NodeID
	lastClosed  tree.NodeID
	inject      string
}

type openRegion struct {
	start uint32
	label string
}

type scanner struct {
	b         *tree.Builder
	text      string
	pos       int
	stmtStart int
	stack     []*frame
}

func (Parser) Parse(b *tree.Builder) error {
	s := &scanner{b: b, text: b.Text()}
	s.stack = []*frame{{id: b.Root()}}
	s.run()
	return nil
}

func off(n int) uint32 {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		return ^uint32(0)
	}
	return v
}

func (s *scanner) top() *frame { return s.stack[len(s.stack)-1] }

func (s *scanner) run() {
	for s.pos < len(s.text) {
		c := s.text[s.pos]
		switch {
		case c == '/' && s.peek(1) == '/':
			s.lineComment()
		case c == '/' && s.peek(1) == '*':
			s.blockComment()
		case c == '"' || c == '\'':
			s.quoted(c)
		case c == '`':
			s.raw()
		case c == '{':
			s.open()
		case c == '}':
			s.close()
		case c == ';':
			s.pos++
			s.stmtStart = s.pos
			s.top().inject = ""
		case c == 'i' && len(s.stack) == 1 && s.atLineStart() && s.wordAt(s.pos) == "import":
			s.importLine()
		default:
			s.pos++
		}
	}
	// незакрытые блоки отбрасываются, их дети поднимаются наверх
	for len(s.stack) > 1 {
		f := s.top()
		s.stack = s.stack[:len(s.stack)-1]
		s.b.Reparent(f.id, s.top().id)
	}
}

func (s *scanner) peek(n int) byte {
	if s.pos+n < len(s.text) {
		return s.text[s.pos+n]
	}
	return 0
}

func (s *scanner) atLineStart() bool {
	for i := s.pos - 1; i >= 0; i-- {
		switch s.text[i] {
		case ' ', '\t':
			continue
		case '\n':
			return true
		default:
			return false
		}
	}
	return true
}

func (s *scanner) wordAt(i int) string {
	j := i
	for j < len(s.text) {
		r, size := utf8.DecodeRuneInString(s.text[j:])
		if !isIdent(r) {
			break
		}
		j += size
	}
	return s.text[i:j]
}

func isIdent(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

func (s *scanner) lineEnd(from int) int {
	if i := strings.IndexByte(s.text[from:], '\n'); i >= 0 {
		return from + i
	}
	return len(s.text)
}

// onlySpaceWithOneNewline reports text[a:b] is whitespace holding exactly one '\n'.
func (s *scanner) onlySpaceWithOneNewline(a, b int) bool {
	if a > b {
		return false
	}
	seg := s.text[a:b]
	return strings.TrimSpace(seg) == "" && strings.Count(seg, "\n") == 1
}

func (s *scanner) lineComment() {
	start := s.pos
	end := s.lineEnd(start)
	body := strings.TrimSpace(s.text[start+2 : end])
	s.pos = end
	s.stmtStart = end
	f := s.top()

	switch {
	case body == "region" || strings.HasPrefix(body, "region "):
		f.regions = append(f.regions, openRegion{start: off(start), label: strings.TrimSpace(strings.TrimPrefix(body, "region"))})
		f.lastComment = tree.NoNodeID
		return
	case strings.HasPrefix(body, "language="):
		f.inject = strings.TrimSpace(strings.TrimPrefix(body, "language="))
	case body == "endregion" || strings.HasPrefix(body, "endregion "):
		if n := len(f.regions); n > 0 {
			open := f.regions[n-1]
			f.regions = f.regions[:n-1]
			span := source.NewSpan(open.start, off(end))
			s.b.Add(f.id, tree.Node{Kind: KindRegion, Name: open.label, Span: span, Body: span})
		}
		f.lastComment = tree.NoNodeID
		return
	}

	if f.lastComment.IsValid() {
		prev := s.b.Node(f.lastComment)
		if s.onlySpaceWithOneNewline(int(prev.Span.End), start) {
			prev.Span.End = off(end)
			prev.Body.End = off(end)
			return
		}
	}
	span := source.NewSpan(off(start), off(end))
	f.lastComment = s.b.Add(f.id, tree.Node{Kind: KindComments, Span: span, Body: span})
}

func (s *scanner) blockComment() {
	start := s.pos
	i := strings.Index(s.text[start+2:], "*/")
	end := len(s.text)
	if i >= 0 {
		end = start + 2 + i + 2
	}
	kind := KindComment
	if strings.HasPrefix(s.text[start:], "/**") && !strings.HasPrefix(s.text[start:], "/**/") {
		kind = KindDocComment
	}
	span := source.NewSpan(off(start), off(end))
	f := s.top()
	s.b.Add(f.id, tree.Node{Kind: kind, Span: span, Body: span})
	f.lastComment = tree.NoNodeID
	s.pos = end
	s.stmtStart = end
}

func (s *scanner) quoted(q byte) {
	s.pos++
	for s.pos < len(s.text) {
		c := s.text[s.pos]
		switch c {
		case '\\':
			s.pos += 2
			continue
		case '\n':
			// незакрытая строка заканчивается на конце строки
			return
		}
		s.pos++
		if c == q {
			return
		}
	}
}

func (s *scanner) raw() {
	f := s.top()
	lang := f.inject
	f.inject = ""
	start := s.pos + 1
	end := len(s.text)
	if i := strings.IndexByte(s.text[start:], '`'); i >= 0 {
		end = start + i
		s.pos = end + 1
	} else {
		s.pos = end
	}
	if lang != "" {
		span := source.NewSpan(off(start), off(end))
		s.b.Add(f.id, tree.Node{Kind: KindRaw, Name: lang, Span: span, Body: span})
	}
}

func (s *scanner) importLine() {
	f := s.top()
	start := s.pos
	end := s.lineEnd(start)
	s.pos = end
	s.stmtStart = end
	if f.lastImport.IsValid() {
		prev := s.b.Node(f.lastImport)
		if s.onlySpaceWithOneNewline(int(prev.Span.End), start) {
			prev.Span.End = off(end)
			prev.Body.End = off(end)
			return
		}
	}
	bodyStart := start + len("import")
	for bodyStart < end && s.text[bodyStart] == ' ' {
		bodyStart++
	}
	f.lastImport = s.b.Add(f.id, tree.Node{
		Kind: KindImports,
		Span: source.NewSpan(off(start), off(end)),
		Body: source.NewSpan(off(bodyStart), off(end)),
	})
	f.lastComment = tree.NoNodeID
}

func (s *scanner) open() {
	brace := s.pos
	headerStart, kind, name := s.header(s.stmtStart, brace)
	s.stack = append(s.stack, &frame{
		brace:       off(brace),
		headerStart: off(headerStart),
		kind:        kind,
		name:        name,
	})
	// attached to the parent on close
	s.pos++
	s.stmtStart = s.pos
	s.top().id = s.b.Add(tree.NoNodeID, tree.Node{Kind: kind, Name: name})
}

func (s *scanner) close() {
	s.pos++
	s.stmtStart = s.pos
	if len(s.stack) == 1 {
		return
	}
	f := s.top()
	s.stack = s.stack[:len(s.stack)-1]
	parent := s.top()

	n := s.b.Node(f.id)
	n.Span = source.NewSpan(f.headerStart, off(s.pos))
	n.Body = source.NewSpan(f.brace, off(s.pos))
	s.b.Attach(parent.id, f.id)

	if f.kind == KindElse && parent.lastClosed.IsValid() {
		prev := s.b.Node(parent.lastClosed)
		between := s.text[prev.Span.End:f.headerStart]
		if (prev.Kind == KindIf || prev.Kind == KindElse) && strings.TrimSpace(between) == "" {
			n.Link = parent.lastClosed
		}
	}
	parent.lastClosed = f.id
	parent.lastComment = tree.NoNodeID
	parent.lastImport = tree.NoNodeID
}

// header picks the statement line owning the brace and derives kind and name.
func (s *scanner) header(from, brace int) (int, tree.Kind, string) {
	if from > brace {
		from = brace
	}
	region := s.text[from:brace]
	lines := strings.Split(region, "\n")
	lineOff := make([]int, len(lines))
	acc := from
	for i, l := range lines {
		lineOff[i] = acc
		acc += len(l) + 1
	}
	pick := -1
	for i := len(lines) - 1; i >= 0; i-- {
		if _, ok := keywordKinds[firstKeyword(lines[i])]; ok {
			pick = i
			break
		}
	}
	if pick < 0 {
		for i := len(lines) - 1; i >= 0; i-- {
			if strings.TrimSpace(lines[i]) != "" {
				pick = i
				break
			}
		}
	}
	if pick < 0 {
		return brace, KindBlock, ""
	}
	line := lines[pick]
	start := lineOff[pick] + len(line) - len(strings.TrimLeft(line, " \t"))
	text := strings.TrimSpace(s.text[start:brace])
	kw := firstKeyword(text)
	kind, ok := keywordKinds[kw]
	if !ok {
		return start, KindBlock, ""
	}
	name := ""
	if kind == KindFn || kind == KindType {
		name = declName(text, kw)
	}
	return start, kind, name
}

func firstKeyword(line string) string {
	for _, w := range strings.Fields(line) {
		w = strings.TrimRight(w, "({")
		if modifiers[w] {
			continue
		}
		return w
	}
	return ""
}

// declName returns the identifier after kw, skipping a Go-style receiver.
func declName(header, kw string) string {
	i := strings.Index(header, kw)
	if i < 0 {
		return ""
	}
	rest := strings.TrimLeft(header[i+len(kw):], " \t")
	if strings.HasPrefix(rest, "(") {
		depth := 0
		for j, r := range rest {
			if r == '(' {
				depth++
			} else if r == ')' {
				depth--
				if depth == 0 {
					rest = strings.TrimLeft(rest[j+1:], " \t")
					break
				}
			}
		}
	}
	end := 0
	for end < len(rest) {
		r, size := utf8.DecodeRuneInString(rest[end:])
		if !isIdent(r) {
			break
		}
		end += size
	}
	return rest[:end]
}
