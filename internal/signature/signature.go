// Package signature turns structural elements into stable strings and back.
//
// A signature reads "<language>:<provider>:<body>". Providers are tried in
// order; the first one that claims an element encodes it. Restore parses the
// language root on demand and asks the named provider to walk the body.
package signature

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"foldkit/internal/diag"
	"foldkit/internal/tree"
)

// Provider encodes a class of elements.
type Provider interface {
	Tag() string
	// SignatureOf returns the body for e, or false when e is not claimed.
	SignatureOf(e tree.Element) (string, bool)
	// Restore finds the element for body in root. Steps are logged to trace when it is non-nil.
	Restore(root *tree.Tree, body string, trace io.Writer) (tree.Element, bool)
}

// Registry is the ordered provider list.
type Registry struct {
	providers []Provider

	mu       sync.RWMutex
	validate bool
	reporter diag.Reporter
}

func NewRegistry(providers ...Provider) *Registry {
	return &Registry{providers: providers, reporter: diag.NopReporter{}}
}

// Default returns declarations first, comment anchors next, positional paths last.
func Default() *Registry {
	return NewRegistry(DeclProvider{}, AnchorProvider{}, PathProvider{})
}

// SetValidation turns on restore-after-encode checks. Mismatches go to rep.
func (r *Registry) SetValidation(on bool, rep diag.Reporter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validate = on
	if rep != nil {
		r.reporter = rep
	}
}

// SignatureOf encodes e with the first provider that claims it.
func (r *Registry) SignatureOf(e tree.Element) (string, bool) {
	if e.IsZero() {
		return "", false
	}
	for _, p := range r.providers {
		body, ok := p.SignatureOf(e)
		if !ok {
			continue
		}
		sig := string(e.Language()) + ":" + p.Tag() + ":" + body
		r.check(p, e, sig, body)
		return sig, true
	}
	return "", false
}

func (r *Registry) check(p Provider, e tree.Element, sig, body string) {
	r.mu.RLock()
	on, rep := r.validate, r.reporter
	r.mu.RUnlock()
	if !on {
		return
	}
	var log bytes.Buffer
	restored, ok := p.Restore(e.Tree(), body, &log)
	if ok && restored == e {
		return
	}
	path := ""
	if f := e.Tree().File(); f != nil {
		path = f.Document().Path()
	}
	msg := fmt.Sprintf("signature %q of %v restores to %v", sig, e, restored)
	b := diag.ReportDefect(rep, diag.FoldSignatureMismatch, path, e.Span(), msg)
	if log.Len() > 0 {
		b.WithNote(e.Span(), strings.TrimSpace(log.String()))
	}
	b.Emit()
}

// Restore finds the element sig names in file, parsing the root if needed.
func (r *Registry) Restore(file *tree.File, sig string, trace io.Writer) (tree.Element, bool) {
	lang, tag, body, ok := Split(sig)
	if !ok {
		logf(trace, "malformed signature %q", sig)
		return tree.Element{}, false
	}
	root, err := file.Root(tree.Language(lang))
	if err != nil {
		logf(trace, "%v", err)
		return tree.Element{}, false
	}
	for _, p := range r.providers {
		if p.Tag() == tag {
			return p.Restore(root, body, trace)
		}
	}
	logf(trace, "no provider %q", tag)
	return tree.Element{}, false
}

// Split breaks a signature into language, provider tag and body.
func Split(sig string) (lang, tag, body string, ok bool) {
	parts := strings.SplitN(sig, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

func logf(w io.Writer, format string, args ...any) {
	if w == nil {
		return
	}
	fmt.Fprintf(w, format+"\n", args...)
}
