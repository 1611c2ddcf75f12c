package fold

import (
	"foldkit/internal/source"
)

// SignatureKind tells how a region is identified across sessions.
type SignatureKind uint8

const (
	// SigLight regions have no element; they are stored by range.
	SigLight SignatureKind = iota
	// SigMissing regions have an element without a signature; they are not persisted.
	SigMissing
	// SigKnown regions carry a signature value.
	SigKnown
)

func (k SignatureKind) String() string {
	switch k {
	case SigLight:
		return "light"
	case SigMissing:
		return "missing"
	case SigKnown:
		return "known"
	default:
		return "unknown"
	}
}

// Signature is the stored identity of a region.
type Signature struct {
	Kind  SignatureKind
	Value string
}

func LightSignature() Signature            { return Signature{Kind: SigLight} }
func MissingSignature() Signature          { return Signature{Kind: SigMissing} }
func KnownSignature(v string) Signature    { return Signature{Kind: SigKnown, Value: v} }
func (s Signature) Known() (string, bool)  { return s.Value, s.Kind == SigKnown }
func (s Signature) Equal(o Signature) bool { return s == o }

// Flags are the region tags the engine keeps.
type Flags uint16

const (
	// AutoCreated marks regions made by reconcile.
	AutoCreated Flags = 1 << iota
	// FrontendCreated marks regions made for a thin client.
	FrontendCreated
	// RemovableWhenCollapsed lets reconcile drop a collapsed region in keep-collapsed mode.
	RemovableWhenCollapsed
	// Transient regions are never persisted.
	Transient
	// ForceUpdate disbands the region's group on the next reconcile.
	ForceUpdate
	// Zombie regions are restored placeholders awaiting reuse; never shown.
	Zombie
	// Bitten marks a reused zombie; snapshots must not override its state.
	Bitten
)

// GroupID identifies a folding group inside a Model. Zero is "no group".
type GroupID uint32

const NoGroup GroupID = 0

// Tri is an optional bool.
type Tri uint8

const (
	TriUnset Tri = iota
	TriFalse
	TriTrue
)

func TriOf(b bool) Tri {
	if b {
		return TriTrue
	}
	return TriFalse
}

// Get returns the value and whether it is set.
func (t Tri) Get() (bool, bool) { return t == TriTrue, t != TriUnset }

// Region is a folded-or-foldable range of a document. Regions are created
// and mutated by their Model on the UI goroutine.
type Region struct {
	model       *Model
	id          uint64
	marker      *source.Marker
	placeholder string
	expanded    bool
	group       GroupID
	neverExpand bool
	flags       Flags
	sig         Signature
	cbd         Tri

	keepExpandedOnFirstCollapseAll bool
	collapseAllSeen                bool

	// zombie payload
	zombieGroup string
}

func (r *Region) ID() uint64 { return r.id }

// Span returns the current range, following edits.
func (r *Region) Span() source.Span { return r.marker.Span() }

// Valid reports whether the region still has a range in a live model.
func (r *Region) Valid() bool {
	return r.model != nil && !r.model.disposed && r.marker.Valid()
}

// Mutated reports an edit inside the range since the last reconcile.
func (r *Region) Mutated() bool { return r.marker.Mutated() }

// ClearMutated resets the edit flag once a reconcile has seen the region.
func (r *Region) ClearMutated() { r.marker.ClearMutated() }

func (r *Region) Placeholder() string { return r.placeholder }

func (r *Region) Expanded() bool { return r.expanded }

func (r *Region) Group() GroupID { return r.group }

func (r *Region) NeverExpand() bool { return r.neverExpand }

func (r *Region) Has(f Flags) bool { return r.flags&f == f }

func (r *Region) Flags() Flags { return r.flags }

func (r *Region) SetFlag(f Flags) { r.flags |= f }

func (r *Region) ClearFlag(f Flags) { r.flags &^= f }

func (r *Region) Signature() Signature { return r.sig }

func (r *Region) SetSignature(s Signature) { r.sig = s }

// CollapsedByDefault returns the analyzer default recorded at creation.
func (r *Region) CollapsedByDefault() (bool, bool) { return r.cbd.Get() }

func (r *Region) SetCollapsedByDefault(t Tri) { r.cbd = t }

func (r *Region) KeepExpandedOnFirstCollapseAll() bool { return r.keepExpandedOnFirstCollapseAll }

func (r *Region) SetKeepExpandedOnFirstCollapseAll(v bool) { r.keepExpandedOnFirstCollapseAll = v }

// ZombieGroup is the group name a zombie was saved with.
func (r *Region) ZombieGroup() string { return r.zombieGroup }

func (r *Region) String() string {
	state := "expanded"
	if !r.expanded {
		state = "collapsed"
	}
	return r.Span().String() + " " + state + " " + r.placeholder
}
