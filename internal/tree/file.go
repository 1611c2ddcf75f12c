package tree

import (
	"errors"
	"fmt"
	"sync"

	"foldkit/internal/source"
)

// ErrNoParser is returned when a file has no root for the requested language.
var ErrNoParser = errors.New("no parser for language")

// Parser builds one language root.
type Parser interface {
	Language() Language
	Parse(b *Builder) error
}

// File is the structural side of a document: one root per language, the
// first being the primary root. Roots are parsed lazily and reparsed when the
// document stamp moves.
type File struct {
	doc     *source.Document
	parsers []Parser

	mu     sync.Mutex
	trees  map[Language]*Tree
	parses int
}

// NewFile binds parsers to doc. The first parser's language is the primary one.
func NewFile(doc *source.Document, parsers ...Parser) *File {
	return &File{
		doc:     doc,
		parsers: parsers,
		trees:   make(map[Language]*Tree, len(parsers)),
	}
}

func (f *File) Document() *source.Document { return f.doc }

// Primary returns the primary root language.
func (f *File) Primary() Language {
	if len(f.parsers) == 0 {
		return ""
	}
	return f.parsers[0].Language()
}

// Languages lists root languages, primary first.
func (f *File) Languages() []Language {
	out := make([]Language, 0, len(f.parsers))
	for _, p := range f.parsers {
		out = append(out, p.Language())
	}
	return out
}

// Roots returns all language roots for the current stamp, primary first,
// parsing the stale ones.
func (f *File) Roots() ([]*Tree, error) {
	text, stamp := f.doc.Snapshot()
	out := make([]*Tree, 0, len(f.parsers))
	for _, p := range f.parsers {
		t, err := f.root(p, text, stamp)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Root returns (parsing if necessary) the root for lang.
func (f *File) Root(lang Language) (*Tree, error) {
	for _, p := range f.parsers {
		if p.Language() == lang {
			text, stamp := f.doc.Snapshot()
			return f.root(p, text, stamp)
		}
	}
	return nil, fmt.Errorf("%w %q", ErrNoParser, lang)
}

// Current returns the root for lang only if it was already parsed at the
// current stamp. It never parses.
func (f *File) Current(lang Language) (*Tree, bool) {
	stamp := f.doc.ModStamp()
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trees[lang]
	if !ok || t.stamp != stamp {
		return nil, false
	}
	return t, true
}

// ParseCount returns how many parses the file performed.
func (f *File) ParseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.parses
}

func (f *File) root(p Parser, text string, stamp uint64) (*Tree, error) {
	lang := p.Language()
	f.mu.Lock()
	if t, ok := f.trees[lang]; ok && t.stamp == stamp {
		f.mu.Unlock()
		return t, nil
	}
	f.mu.Unlock()

	b := NewBuilder(lang, text)
	if err := p.Parse(b); err != nil {
		return nil, fmt.Errorf("parse %s: %w", lang, err)
	}
	t := b.Finish()
	t.file = f
	t.stamp = stamp

	f.mu.Lock()
	defer f.mu.Unlock()
	f.parses++
	// another goroutine may have parsed the same stamp meanwhile
	if cur, ok := f.trees[lang]; ok && cur.stamp >= stamp {
		return cur, nil
	}
	f.trees[lang] = t
	return t, nil
}

func (f *File) isCurrent(t *Tree) bool {
	stamp := f.doc.ModStamp()
	if t.stamp != stamp {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.trees[t.lang] == t
}
