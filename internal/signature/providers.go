package signature

import (
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"foldkit/internal/tree"
)

var escaper = strings.NewReplacer("%", "%25", "#", "%23", ";", "%3B", ">", "%3E")
var unescaper = strings.NewReplacer("%23", "#", "%3B", ";", "%3E", ">", "%25", "%")

func normName(name string) string { return norm.NFC.String(name) }

func escapeName(name string) string { return escaper.Replace(normName(name)) }

// step encodes e relative to its parent.
func step(e tree.Element, named bool) string {
	kind, name := e.Kind(), e.Name()
	idx := 0
	for s := e.PrevSibling(); !s.IsZero(); s = s.PrevSibling() {
		if s.Kind() != kind {
			continue
		}
		if named && name != "" && normName(s.Name()) != normName(name) {
			continue
		}
		idx++
	}
	if named && name != "" {
		return "n#" + string(kind) + "#" + escapeName(name) + "#" + strconv.Itoa(idx)
	}
	return "e#" + string(kind) + "#" + strconv.Itoa(idx)
}

func chain(e tree.Element, named bool) string {
	var steps []string
	for cur := e; !cur.IsZero() && !cur.Parent().IsZero(); cur = cur.Parent() {
		steps = append(steps, step(cur, named))
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return strings.Join(steps, ";")
}

// walk restores a chain from root.
func walk(root *tree.Tree, body string, trace io.Writer) (tree.Element, bool) {
	cur := root.Root()
	if body == "" {
		logf(trace, "empty chain")
		return tree.Element{}, false
	}
	for i, raw := range strings.Split(body, ";") {
		parts := strings.Split(raw, "#")
		var (
			kind  tree.Kind
			name  string
			named bool
			want  int
			err   error
		)
		switch {
		case len(parts) == 4 && parts[0] == "n":
			kind, name, named = tree.Kind(parts[1]), normName(unescaper.Replace(parts[2])), true
			want, err = strconv.Atoi(parts[3])
		case len(parts) == 3 && parts[0] == "e":
			kind = tree.Kind(parts[1])
			want, err = strconv.Atoi(parts[2])
		default:
			logf(trace, "step %d %q: malformed", i, raw)
			return tree.Element{}, false
		}
		if err != nil {
			logf(trace, "step %d %q: bad index: %v", i, raw, err)
			return tree.Element{}, false
		}
		next, seen := tree.Element{}, 0
		for _, child := range cur.Children() {
			if child.Kind() != kind || (named && normName(child.Name()) != name) {
				continue
			}
			if seen == want {
				next = child
				break
			}
			seen++
		}
		if next.IsZero() {
			logf(trace, "step %d %q: %d matching children under %v", i, raw, seen, cur)
			return tree.Element{}, false
		}
		cur = next
	}
	return cur, true
}

// DeclProvider encodes named elements by their name chain.
type DeclProvider struct{}

func (DeclProvider) Tag() string { return "decl" }

func (DeclProvider) SignatureOf(e tree.Element) (string, bool) {
	if e.Name() == "" || e.Parent().IsZero() {
		return "", false
	}
	return chain(e, true), true
}

func (DeclProvider) Restore(root *tree.Tree, body string, trace io.Writer) (tree.Element, bool) {
	return walk(root, body, trace)
}

// AnchorProvider encodes comments by the named element that follows them, so
// a doc comment keeps its identity when code above it moves.
type AnchorProvider struct{}

var commentKinds = map[tree.Kind]bool{"comment": true, "comments": true, "doccomment": true}

func (AnchorProvider) Tag() string { return "anchor" }

func (AnchorProvider) SignatureOf(e tree.Element) (string, bool) {
	if !commentKinds[e.Kind()] {
		return "", false
	}
	next := e.NextSibling()
	if next.IsZero() || next.Name() == "" {
		return "", false
	}
	return string(e.Kind()) + ">" + chain(next, true), true
}

func (AnchorProvider) Restore(root *tree.Tree, body string, trace io.Writer) (tree.Element, bool) {
	kind, rest, ok := strings.Cut(body, ">")
	if !ok {
		logf(trace, "anchor %q: malformed", body)
		return tree.Element{}, false
	}
	anchor, ok := walk(root, rest, trace)
	if !ok {
		return tree.Element{}, false
	}
	prev := anchor.PrevSibling()
	if prev.Kind() != tree.Kind(kind) {
		logf(trace, "anchor %v: previous sibling is %v, want %s", anchor, prev, kind)
		return tree.Element{}, false
	}
	return prev, true
}

// PathProvider is the positional fallback; it claims every non-root element.
type PathProvider struct{}

func (PathProvider) Tag() string { return "path" }

func (PathProvider) SignatureOf(e tree.Element) (string, bool) {
	if e.Parent().IsZero() {
		return "", false
	}
	return chain(e, false), true
}

func (PathProvider) Restore(root *tree.Tree, body string, trace io.Writer) (tree.Element, bool) {
	return walk(root, body, trace)
}
