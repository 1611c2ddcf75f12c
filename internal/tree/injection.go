package tree

import "foldkit/internal/source"

// Injection is a fragment of some language embedded in a host tree, e.g.
// code inside a string literal. Span is in host coordinates.
type Injection struct {
	Lang Language
	Span source.Span
}
