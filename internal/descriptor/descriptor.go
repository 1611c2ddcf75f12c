// Package descriptor turns language roots into fold descriptors: the
// ranges that should fold, with their placeholder, group and default state.
//
// Builds are pure with respect to the fold model. They may run on any
// goroutine; the reconcile on the UI goroutine consumes the Result.
package descriptor

import (
	"errors"
	"sync"

	"foldkit/internal/fold"
	"foldkit/internal/source"
	"foldkit/internal/tree"
)

// ErrNotReady is returned by analyzers whose inputs are not available yet
// (e.g. an index still loading). From BuildDescriptors it abandons the pass,
// which is retried later; from IsCollapsedByDefault or a placeholder it reads
// as false or DefaultPlaceholder.
var ErrNotReady = errors.New("analyzer not ready")

// DefaultPlaceholder replaces placeholders that failed to compute.
const DefaultPlaceholder = "..."

// Group ties descriptors that expand and collapse together. Identity is the
// pointer; Name is what gets persisted.
type Group struct {
	Name string
}

// Dependency is an extra input a descriptor depends on. A cached pass is
// reused only while every dependency reports the same version.
type Dependency interface {
	DepKey() string
	Version() uint64
}

// Candidate is what an analyzer emits.
type Candidate struct {
	Span    source.Span
	Element tree.Element // zero for light regions

	PlaceholderText string
	Placeholder     func() (string, error) // overrides PlaceholderText when set

	Group              *Group
	NonExpandable      bool
	CollapsedByDefault fold.Tri // TriUnset asks the analyzer

	KeepExpandedOnFirstCollapseAll bool
	Deps                           []Dependency
}

// Analyzer builds candidates for one language.
type Analyzer interface {
	Language() tree.Language
	BuildDescriptors(root *tree.Tree, doc *source.Document, quick bool) ([]Candidate, error)
	IsCollapsedByDefault(c Candidate) (bool, error)
	SupportsBackground() bool
}

// Descriptor is a validated candidate.
type Descriptor struct {
	Span        source.Span
	Element     tree.Element
	Group       *Group
	NeverExpand bool
	// CollapsedByDefault is resolved at build time.
	CollapsedByDefault             bool
	KeepExpandedOnFirstCollapseAll bool
	Signature                      fold.Signature
	Language                       tree.Language

	placeholderOnce sync.Once
	placeholder     string
	placeholderFn   func() (string, error)
}

// Placeholder computes the text once; errors fall back to DefaultPlaceholder.
func (d *Descriptor) Placeholder() string {
	d.placeholderOnce.Do(func() {
		if d.placeholderFn == nil {
			if d.placeholder == "" {
				d.placeholder = DefaultPlaceholder
			}
			return
		}
		text, err := d.placeholderFn()
		if err != nil || text == "" {
			text = DefaultPlaceholder
		}
		d.placeholder = text
		d.placeholderFn = nil
	})
	return d.placeholder
}

// GroupName returns the group name or "".
func (d *Descriptor) GroupName() string {
	if d.Group == nil {
		return ""
	}
	return d.Group.Name
}

// New builds a descriptor directly; used by tests and manual regions.
func New(span source.Span, placeholder string, el tree.Element) *Descriptor {
	return &Descriptor{Span: span, Element: el, placeholder: placeholder}
}

func (d *Descriptor) String() string {
	return d.Span.String() + " " + d.Placeholder()
}
