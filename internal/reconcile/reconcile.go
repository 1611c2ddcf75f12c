// Package reconcile applies a descriptor set to the fold model of a view.
//
// A pass has three phases, run in order on the UI goroutine: removal of
// regions that no longer match a descriptor, creation of regions for the
// remaining descriptors (reusing zombies where they fit), and expand-state
// assignment for what was created. All phases run inside one model batch,
// so listeners observe the result of the whole pass at once.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"foldkit/internal/descriptor"
	"foldkit/internal/diag"
	"foldkit/internal/editor"
	"foldkit/internal/fold"
	"foldkit/internal/runtimemap"
	"foldkit/internal/source"
	"foldkit/internal/trace"
	"foldkit/internal/tree"
)

// ErrStale means the document changed after the descriptors were computed.
// Nothing is applied; the caller schedules a new pass.
var ErrStale = errors.New("document changed since descriptors were computed")

// Mode selects how created regions get their expand state.
type Mode uint8

const (
	// KeepState restores states recorded for removed regions at the same
	// range. The caret is never left inside a collapsed region.
	KeepState Mode = iota
	// ApplyDefaults sets created regions to their default state.
	ApplyDefaults
	// ApplyDefaultsExceptCaret is ApplyDefaults, except regions touching the
	// view's reveal range open expanded.
	ApplyDefaultsExceptCaret
)

func (m Mode) String() string {
	switch m {
	case KeepState:
		return "keep-state"
	case ApplyDefaults:
		return "apply-default"
	case ApplyDefaultsExceptCaret:
		return "apply-default-except-caret"
	default:
		return "mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	for _, m := range []Mode{KeepState, ApplyDefaults, ApplyDefaultsExceptCaret} {
		if m.String() == s {
			return m, nil
		}
	}
	return KeepState, fmt.Errorf("unknown reconcile mode %q", s)
}

// Input is one pass.
type Input struct {
	View        *editor.View
	Descriptors []*descriptor.Descriptor
	// Stamp is the document stamp the descriptors were computed at.
	Stamp uint64
	// Lookup defaults to the view's runtime map. Only regions it owns take
	// part in the removal phase.
	Lookup runtimemap.Lookup
	Mode   Mode
	// KeepCollapsed keeps collapsed regions that lost their element, unless
	// they were edited, sit on the caret line or are removable-when-collapsed.
	KeepCollapsed   bool
	FrontendCreated bool
	Reporter        diag.Reporter
	// Post schedules follow-up work on the UI loop; nil runs it inline.
	Post func(func())
}

// Stats counts what a pass did.
type Stats struct {
	Kept     int
	Created  int
	Reused   int
	Removed  int
	Rejected int
}

// Applied is the number of regions backed by a descriptor after the pass.
func (s Stats) Applied() int { return s.Kept + s.Created + s.Reused }

type entry struct {
	d    *descriptor.Descriptor
	used bool
}

type verdict uint8

const (
	untouched verdict = iota
	matched
	removed
)

type created struct {
	r      *fold.Region
	d      *descriptor.Descriptor
	reused bool
}

type pass struct {
	in        Input
	view      *editor.View
	model     *fold.Model
	lookup    runtimemap.Lookup
	rep       diag.Reporter
	tr        trace.Tracer
	path      string
	entries   []*entry
	byElem    map[tree.Element][]*entry
	groupLen  map[*descriptor.Group]int
	prior     map[source.Span]bool
	caret     uint32
	caretLine source.Span
	stats     Stats
}

// Reconcile runs one pass. Per-descriptor and per-region problems are
// reported and skipped; only a disposed view or a stale pass is an error.
func Reconcile(ctx context.Context, in Input) (Stats, error) {
	v := in.View
	if v == nil || v.Disposed() {
		return Stats{}, editor.ErrDisposed
	}
	if in.Reporter == nil {
		in.Reporter = diag.NopReporter{}
	}
	doc := v.Document()
	if stamp := doc.ModStamp(); stamp != in.Stamp {
		diag.ReportDefect(in.Reporter, diag.FoldStalePass, doc.Path(), source.Span{},
			fmt.Sprintf("descriptors at stamp %d, document at %d", in.Stamp, stamp)).Emit()
		return Stats{}, ErrStale
	}
	_, span := trace.Start(ctx, trace.ScopePass, "reconcile", doc.Path())

	p := newPass(in, trace.FromContext(ctx))
	p.model.Batch(func() {
		p.applyRemovals(p.phaseRemove())
		p.phaseExpand(p.phaseCreate())
		if in.Mode == KeepState {
			p.revealCaret()
		}
		for _, r := range p.model.Live() {
			if p.lookup.Owns(r) {
				r.ClearMutated()
			}
		}
	})
	p.scheduleZombieCleanup()

	span.WithExtra("kept", strconv.Itoa(p.stats.Kept)).
		WithExtra("created", strconv.Itoa(p.stats.Created)).
		WithExtra("reused", strconv.Itoa(p.stats.Reused)).
		WithExtra("removed", strconv.Itoa(p.stats.Removed))
	span.End(in.Mode.String())
	return p.stats, nil
}

func newPass(in Input, t trace.Tracer) *pass {
	v := in.View
	lookup := in.Lookup
	if lookup == nil {
		lookup = v.Map()
	}
	p := &pass{
		in:        in,
		view:      v,
		model:     v.Model(),
		lookup:    lookup,
		rep:       in.Reporter,
		tr:        t,
		path:      v.Document().Path(),
		byElem:    make(map[tree.Element][]*entry),
		groupLen:  make(map[*descriptor.Group]int),
		prior:     make(map[source.Span]bool),
		caret:     v.Caret(),
		caretLine: v.CaretLineSpan(),
	}
	for _, d := range in.Descriptors {
		if d == nil {
			continue
		}
		e := &entry{d: d}
		p.entries = append(p.entries, e)
		if !d.Element.IsZero() {
			p.byElem[d.Element] = append(p.byElem[d.Element], e)
		}
		if d.Group != nil {
			p.groupLen[d.Group]++
		}
	}
	return p
}

func (p *pass) point(name string, r *fold.Region) {
	trace.Point(p.tr, trace.ScopeRegion, name, r.String(), nil)
}

func (p *pass) report(code diag.Code, span source.Span, msg string) {
	diag.ReportDefect(p.rep, code, p.path, span, msg).Emit()
}

// phaseRemove decides which owned regions go. Groups are judged as a whole.
func (p *pass) phaseRemove() []*fold.Region {
	var groups [][]*fold.Region
	index := make(map[fold.GroupID]int)
	for _, r := range p.model.Live() {
		if !p.lookup.Owns(r) {
			continue
		}
		g := r.Group()
		if g == fold.NoGroup {
			groups = append(groups, []*fold.Region{r})
			continue
		}
		if i, ok := index[g]; ok {
			groups[i] = append(groups[i], r)
			continue
		}
		index[g] = len(groups)
		groups = append(groups, []*fold.Region{r})
	}

	var out []*fold.Region
	for _, members := range groups {
		if p.forced(members) {
			out = append(out, members...)
			continue
		}
		out = append(out, p.judgeGroup(members)...)
	}
	return out
}

func (p *pass) forced(members []*fold.Region) bool {
	hit := false
	for _, r := range members {
		if r.Has(fold.ForceUpdate) {
			hit = true
			break
		}
	}
	if !hit {
		return false
	}
	for _, r := range members {
		p.prior[r.Span()] = r.Expanded()
	}
	return true
}

// forceKeep is the keep-collapsed policy for regions without a match.
func (p *pass) forceKeep(r *fold.Region) bool {
	if !p.in.KeepCollapsed || r.Expanded() || !r.Valid() {
		return false
	}
	return !r.Has(fold.RemovableWhenCollapsed) && !r.Mutated() && !r.Span().Intersects(p.caretLine)
}

func (p *pass) unused(el tree.Element) []*entry {
	var out []*entry
	for _, e := range p.byElem[el] {
		if !e.used {
			out = append(out, e)
		}
	}
	return out
}

func (p *pass) judge(r *fold.Region) (verdict, *entry) {
	keep := p.forceKeep(r)
	var cands []*entry
	if el, ok := p.lookup.ElementOf(r); ok {
		cands = p.unused(el)
	}
	if len(cands) == 0 {
		if keep || r.Signature().Kind == fold.SigLight {
			return untouched, nil
		}
		return removed, nil
	}

	span := r.Span()
	for _, e := range cands {
		if e.d.Span != span {
			continue
		}
		if r.Placeholder() != e.d.Placeholder() || span.Len() < 2 {
			return removed, nil
		}
		if cbd, set := r.CollapsedByDefault(); set && cbd != e.d.CollapsedByDefault {
			p.prior[span] = !e.d.CollapsedByDefault
			return removed, nil
		}
		return matched, e
	}
	if keep {
		return untouched, nil
	}
	// элемент сдвинулся: новое место наследует состояние
	for _, e := range cands {
		p.prior[e.d.Span] = r.Expanded()
	}
	return removed, nil
}

func (p *pass) judgeGroup(members []*fold.Region) []*fold.Region {
	if len(members) == 1 {
		r := members[0]
		v, e := p.judge(r)
		switch v {
		case removed:
			return members
		case matched:
			if e.d.Group != nil {
				p.report(diag.FoldGroupInconsistent, r.Span(),
					fmt.Sprintf("ungrouped region %s now belongs to group %q", r.Span(), e.d.Group.Name))
				return members
			}
			p.keep(r, e)
		}
		return nil
	}

	for _, r := range members {
		if _, ok := p.lookup.ElementOf(r); !ok && (p.forceKeep(r) || r.Signature().Kind == fold.SigLight) {
			return nil
		}
	}
	hits := make([]*entry, 0, len(members))
	anyUntouched := false
	for _, r := range members {
		v, e := p.judge(r)
		switch v {
		case removed:
			return members
		case untouched:
			anyUntouched = true
		case matched:
			hits = append(hits, e)
		}
	}
	if anyUntouched {
		for _, e := range hits {
			e.used = true
		}
		p.stats.Kept += len(members)
		return nil
	}

	g := hits[0].d.Group
	ok := g != nil && p.groupLen[g] == len(hits)
	for _, e := range hits {
		if e.d.Group != g {
			ok = false
		}
	}
	if !ok {
		p.report(diag.FoldGroupInconsistent, members[0].Span(),
			fmt.Sprintf("group %q: %d regions do not match one complete descriptor group",
				p.model.GroupName(members[0].Group()), len(members)))
		return members
	}
	for i, r := range members {
		p.keep(r, hits[i])
	}
	return nil
}

func (p *pass) keep(r *fold.Region, e *entry) {
	e.used = true
	if !r.Signature().Equal(e.d.Signature) {
		r.SetSignature(e.d.Signature)
	}
	p.stats.Kept++
	p.point("keep", r)
}

func (p *pass) applyRemovals(rs []*fold.Region) {
	for _, r := range rs {
		span := r.Span()
		if _, ok := p.prior[span]; !ok {
			p.prior[span] = r.Expanded()
		}
		p.point("remove", r)
		p.lookup.Remove(r)
		p.model.Remove(r)
		p.stats.Removed++
	}
}

// phaseCreate materializes every descriptor not consumed by a kept region.
func (p *pass) phaseCreate() []created {
	docLen := p.view.Document().Len()
	groupIDs := make(map[*descriptor.Group]fold.GroupID)
	var out []created
	for _, e := range p.entries {
		if e.used {
			continue
		}
		d := e.d
		if !d.Element.IsZero() && !d.Element.IsValid() {
			p.report(diag.FoldElementInvalidAtCommit, d.Span,
				fmt.Sprintf("element %s of %s is no longer valid", d.Element.Kind(), d.Span))
			p.stats.Rejected++
			continue
		}
		if d.Span.End > docLen {
			p.report(diag.FoldRangeOutOfBoundsAtCommit, d.Span,
				fmt.Sprintf("%s past end %d", d.Span, docLen))
			p.stats.Rejected++
			continue
		}
		if d.Element.IsZero() {
			if r := p.model.RegionAt(d.Span); r != nil && p.lookup.Owns(r) &&
				r.Signature().Kind == fold.SigLight && r.Placeholder() == d.Placeholder() {
				e.used = true
				p.stats.Kept++
				continue
			}
		}

		gid := fold.NoGroup
		if d.Group != nil {
			id, ok := groupIDs[d.Group]
			if !ok {
				id = p.model.NewGroup(d.Group.Name)
				groupIDs[d.Group] = id
			}
			gid = id
		}

		r, reused := p.reuseZombie(d, gid)
		if r == nil {
			var err error
			r, err = p.model.Create(d.Span, d.Placeholder(), gid, d.NeverExpand)
			if err != nil {
				p.report(diag.FoldRegionRejected, d.Span, err.Error())
				p.stats.Rejected++
				continue
			}
			p.stats.Created++
			p.point("create", r)
		} else {
			p.stats.Reused++
			p.point("reuse", r)
		}
		r.SetFlag(fold.AutoCreated)
		if p.in.FrontendCreated {
			r.SetFlag(fold.FrontendCreated)
		}
		r.SetCollapsedByDefault(fold.TriOf(d.CollapsedByDefault))
		r.SetKeepExpandedOnFirstCollapseAll(d.KeepExpandedOnFirstCollapseAll)
		r.SetSignature(d.Signature)
		if !d.Element.IsZero() {
			p.lookup.Add(r, d.Element)
		}
		e.used = true
		out = append(out, created{r: r, d: d, reused: reused})
	}
	return out
}

// reuseZombie revives the zombie at d's range when it was saved with the
// same placeholder, group and never-expand flag. A zombie that does not fit
// is discarded.
func (p *pass) reuseZombie(d *descriptor.Descriptor, gid fold.GroupID) (*fold.Region, bool) {
	z := p.model.ZombieAt(d.Span)
	if z == nil {
		return nil, false
	}
	if z.Placeholder() != d.Placeholder() || z.ZombieGroup() != d.GroupName() || z.NeverExpand() != d.NeverExpand {
		p.model.Remove(z)
		return nil, false
	}
	if err := p.model.Revive(z, gid); err != nil {
		p.model.Remove(z)
		return nil, false
	}
	return z, true
}

// phaseExpand assigns states; a group takes the value of its first created
// member unless any member must open.
func (p *pass) phaseExpand(cs []created) {
	groups := make(map[fold.GroupID]bool)
	var order []fold.GroupID
	for _, c := range cs {
		value, forced := p.decide(c)
		g := c.r.Group()
		if g == fold.NoGroup {
			p.model.SetExpanded(c.r, value)
			continue
		}
		if _, ok := groups[g]; !ok {
			groups[g] = value
			order = append(order, g)
			continue
		}
		if forced {
			groups[g] = true
		}
	}
	for _, g := range order {
		if members := p.model.GroupMembers(g); len(members) > 0 {
			p.model.SetExpanded(members[0], groups[g])
		}
	}
}

// decide returns the state of a created region and whether it was forced
// open by the caret or the reveal range. Revived zombies start from their
// saved state.
func (p *pass) decide(c created) (bool, bool) {
	span := c.r.Span()
	value := !c.d.CollapsedByDefault
	if c.reused {
		value = c.r.Expanded()
	}
	switch p.in.Mode {
	case ApplyDefaults:
		return value, false
	case ApplyDefaultsExceptCaret:
		if rv, ok := p.view.Reveal(); ok && span.Intersects(rv) {
			return true, true
		}
		return value, false
	}
	if prior, ok := p.prior[span]; ok && !c.reused {
		value = prior
	}
	if span.StrictlyContains(p.caret) {
		return true, true
	}
	return value, false
}

// revealCaret opens kept regions hiding the caret as well.
func (p *pass) revealCaret() {
	for _, r := range p.model.Containing(p.caret) {
		if !r.Expanded() && p.lookup.Owns(r) {
			p.model.SetExpanded(r, true)
		}
	}
}

func (p *pass) scheduleZombieCleanup() {
	if len(p.model.Zombies()) == 0 {
		return
	}
	m := p.model
	cleanup := func() {
		if m.Disposed() {
			return
		}
		m.Batch(func() {
			for _, z := range m.Zombies() {
				m.Remove(z)
			}
		})
	}
	if p.in.Post != nil {
		p.in.Post(cleanup)
		return
	}
	cleanup()
}
