package curly

import (
	"foldkit/internal/tree"
)

// Injections lists the marked raw strings of root in document order.
func Injections(root *tree.Tree) []tree.Injection {
	var out []tree.Injection
	root.Walk(func(e tree.Element) bool {
		if e.Kind() == KindRaw {
			out = append(out, tree.Injection{Lang: tree.Language(e.Name()), Span: e.Span()})
		}
		return true
	})
	return out
}
