// Package fold is the per-view fold model: the set of regions, their groups
// and expand state.
//
// Regions never partially overlap and no two live regions share a range.
// Members of a group always share one expand state. Zombies are regions
// restored from a previous session; they take part in neither check and are
// never reported as visible.
package fold

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"foldkit/internal/source"
)

var (
	// ErrRejected wraps every reason a region could not be created.
	ErrRejected    = errors.New("region rejected")
	ErrOutOfBounds = fmt.Errorf("%w: out of bounds", ErrRejected)
	ErrTooShort    = fmt.Errorf("%w: shorter than 2", ErrRejected)
	ErrDuplicate   = fmt.Errorf("%w: duplicate range", ErrRejected)
	ErrOverlap     = fmt.Errorf("%w: partial overlap", ErrRejected)
	ErrDisposed    = errors.New("fold model disposed")
)

type groupInfo struct {
	name    string
	members []*Region
}

// Model holds the regions of one view. It is not goroutine-safe; all calls
// come from the UI goroutine, except ModCount.
type Model struct {
	doc       *source.Document
	regions   []*Region
	groups    map[GroupID]*groupInfo
	nextGroup GroupID
	nextID    uint64
	modCount  atomic.Uint64
	batch     int
	dirty     bool
	listeners []func()
	disposed  bool
}

func NewModel(doc *source.Document) *Model {
	return &Model{doc: doc, groups: make(map[GroupID]*groupInfo)}
}

func (m *Model) Document() *source.Document { return m.doc }

// ModCount increases once per change or once per batch. It may be read
// from any goroutine; background builds date their passes with it.
func (m *Model) ModCount() uint64 { return m.modCount.Load() }

// OnChange registers a listener called after every change or batch.
func (m *Model) OnChange(fn func()) {
	if fn != nil {
		m.listeners = append(m.listeners, fn)
	}
}

// Regions returns all regions, zombies included, ordered by start then by
// decreasing end.
func (m *Model) Regions() []*Region {
	out := append([]*Region(nil), m.regions...)
	sortRegions(out)
	return out
}

// Live returns the valid non-zombie regions in order.
func (m *Model) Live() []*Region {
	out := make([]*Region, 0, len(m.regions))
	for _, r := range m.regions {
		if r.Valid() && !r.Has(Zombie) {
			out = append(out, r)
		}
	}
	sortRegions(out)
	return out
}

// Zombies returns the zombie regions in order.
func (m *Model) Zombies() []*Region {
	var out []*Region
	for _, r := range m.regions {
		if r.Has(Zombie) {
			out = append(out, r)
		}
	}
	sortRegions(out)
	return out
}

func sortRegions(rs []*Region) {
	sort.SliceStable(rs, func(i, j int) bool {
		si, sj := rs[i].Span(), rs[j].Span()
		if si.Start != sj.Start {
			return si.Start < sj.Start
		}
		return si.End > sj.End
	})
}

// NewGroup allocates a group id.
func (m *Model) NewGroup(name string) GroupID {
	m.nextGroup++
	m.groups[m.nextGroup] = &groupInfo{name: name}
	return m.nextGroup
}

func (m *Model) GroupName(id GroupID) string {
	if g, ok := m.groups[id]; ok {
		return g.name
	}
	return ""
}

// GroupMembers returns the regions of a group.
func (m *Model) GroupMembers(id GroupID) []*Region {
	g, ok := m.groups[id]
	if !ok {
		return nil
	}
	out := append([]*Region(nil), g.members...)
	sortRegions(out)
	return out
}

// Create adds a live region. The region starts expanded. group may be NoGroup.
func (m *Model) Create(span source.Span, placeholder string, group GroupID, neverExpand bool) (*Region, error) {
	if err := m.checkNew(span, false); err != nil {
		return nil, err
	}
	r := m.newRegion(span, placeholder, neverExpand)
	r.expanded = !neverExpand
	if group != NoGroup {
		g, ok := m.groups[group]
		if !ok {
			return nil, fmt.Errorf("%w: unknown group %d", ErrRejected, group)
		}
		r.group = group
		g.members = append(g.members, r)
		// новый участник получает состояние группы
		if len(g.members) > 1 {
			r.expanded = g.members[0].expanded
		}
	}
	m.regions = append(m.regions, r)
	m.changed()
	return r, nil
}

// CreateZombie adds a restored placeholder region carrying a saved state.
func (m *Model) CreateZombie(span source.Span, placeholder, groupName string, neverExpand, expanded bool) (*Region, error) {
	if err := m.checkNew(span, true); err != nil {
		return nil, err
	}
	r := m.newRegion(span, placeholder, neverExpand)
	r.flags = Zombie
	r.expanded = expanded && !neverExpand
	r.zombieGroup = groupName
	m.regions = append(m.regions, r)
	m.changed()
	return r, nil
}

func (m *Model) newRegion(span source.Span, placeholder string, neverExpand bool) *Region {
	m.nextID++
	return &Region{
		model:       m,
		id:          m.nextID,
		marker:      m.doc.CreateMarker(span),
		placeholder: placeholder,
		neverExpand: neverExpand,
	}
}

func (m *Model) checkNew(span source.Span, zombie bool) error {
	if m.disposed {
		return ErrDisposed
	}
	if span.End > m.doc.Len() || span.Start > span.End {
		return fmt.Errorf("%w %s", ErrOutOfBounds, span)
	}
	if span.Len() < 2 {
		return fmt.Errorf("%w %s", ErrTooShort, span)
	}
	for _, r := range m.regions {
		if r.Has(Zombie) != zombie || !r.Valid() {
			continue
		}
		other := r.Span()
		if other == span {
			return fmt.Errorf("%w %s", ErrDuplicate, span)
		}
		if other.PartiallyOverlaps(span) {
			return fmt.Errorf("%w %s with %s", ErrOverlap, span, other)
		}
	}
	return nil
}

// Remove deletes r from the model. Removing an unknown region is a no-op.
func (m *Model) Remove(r *Region) {
	if r == nil || r.model != m {
		return
	}
	for i, cur := range m.regions {
		if cur == r {
			m.regions = append(m.regions[:i], m.regions[i+1:]...)
			break
		}
	}
	if r.group != NoGroup {
		if g, ok := m.groups[r.group]; ok {
			for i, cur := range g.members {
				if cur == r {
					g.members = append(g.members[:i], g.members[i+1:]...)
					break
				}
			}
			if len(g.members) == 0 {
				delete(m.groups, r.group)
			}
		}
	}
	r.marker.Dispose()
	r.model = nil
	m.changed()
}

// Revive turns a zombie into a live region of group and marks it bitten.
func (m *Model) Revive(r *Region, group GroupID) error {
	if r == nil || r.model != m || !r.Has(Zombie) {
		return fmt.Errorf("%w: not a zombie", ErrRejected)
	}
	span := r.Span()
	for _, other := range m.regions {
		if other == r || other.Has(Zombie) || !other.Valid() {
			continue
		}
		if other.Span() == span {
			return fmt.Errorf("%w %s", ErrDuplicate, span)
		}
		if other.Span().PartiallyOverlaps(span) {
			return fmt.Errorf("%w %s", ErrOverlap, span)
		}
	}
	r.ClearFlag(Zombie)
	r.SetFlag(Bitten)
	r.zombieGroup = ""
	if group != NoGroup {
		g, ok := m.groups[group]
		if !ok {
			return fmt.Errorf("%w: unknown group %d", ErrRejected, group)
		}
		r.group = group
		g.members = append(g.members, r)
		if len(g.members) > 1 {
			r.expanded = g.members[0].expanded
		}
	}
	m.changed()
	return nil
}

// SetExpanded changes the state of r and of every member of its group.
// A never-expand region cannot be expanded.
func (m *Model) SetExpanded(r *Region, expanded bool) {
	if r == nil || r.model != m {
		return
	}
	targets := []*Region{r}
	if g, ok := m.groups[r.group]; ok && r.group != NoGroup {
		targets = g.members
	}
	if expanded {
		for _, t := range targets {
			if t.neverExpand {
				return
			}
		}
	}
	changed := false
	for _, t := range targets {
		if t.expanded != expanded {
			t.expanded = expanded
			changed = true
		}
	}
	if changed {
		m.changed()
	}
}

// Batch runs fn as one change: listeners fire once after fn returns.
func (m *Model) Batch(fn func()) {
	m.batch++
	defer func() {
		m.batch--
		if m.batch == 0 && m.dirty {
			m.dirty = false
			m.modCount.Add(1)
			m.notify()
		}
	}()
	fn()
}

func (m *Model) changed() {
	if m.batch > 0 {
		m.dirty = true
		return
	}
	m.modCount.Add(1)
	m.notify()
}

func (m *Model) notify() {
	for _, fn := range m.listeners {
		fn()
	}
}

// RegionAt returns the live region with exactly span.
func (m *Model) RegionAt(span source.Span) *Region {
	for _, r := range m.regions {
		if !r.Has(Zombie) && r.Valid() && r.Span() == span {
			return r
		}
	}
	return nil
}

// ZombieAt returns the zombie with exactly span.
func (m *Model) ZombieAt(span source.Span) *Region {
	for _, r := range m.regions {
		if r.Has(Zombie) && r.Valid() && r.Span() == span {
			return r
		}
	}
	return nil
}

// RegionAtLine returns the innermost live region starting on line.
func (m *Model) RegionAtLine(line int) *Region {
	var best *Region
	for _, r := range m.Live() {
		if m.doc.LineOf(r.Span().Start) != line {
			continue
		}
		if best == nil || best.Span().ContainsSpan(r.Span()) {
			best = r
		}
	}
	return best
}

// Containing returns the live regions whose range strictly contains offset.
func (m *Model) Containing(offset uint32) []*Region {
	var out []*Region
	for _, r := range m.Live() {
		if r.Span().StrictlyContains(offset) {
			out = append(out, r)
		}
	}
	return out
}

// CollapseAll collapses every live region except those asking to stay
// expanded on their first collapse-all.
func (m *Model) CollapseAll() {
	m.Batch(func() {
		for _, r := range m.Live() {
			if r.keepExpandedOnFirstCollapseAll && !r.collapseAllSeen {
				r.collapseAllSeen = true
				continue
			}
			m.SetExpanded(r, false)
		}
	})
}

func (m *Model) ExpandAll() {
	m.Batch(func() {
		for _, r := range m.Live() {
			m.SetExpanded(r, true)
		}
	})
}

// Clear removes every region.
func (m *Model) Clear() {
	m.Batch(func() {
		for _, r := range append([]*Region(nil), m.regions...) {
			m.Remove(r)
		}
	})
}

func (m *Model) Disposed() bool { return m.disposed }

// Dispose detaches all regions. The model is unusable afterwards.
func (m *Model) Dispose() {
	if m.disposed {
		return
	}
	for _, r := range m.regions {
		r.marker.Dispose()
	}
	m.regions = nil
	m.groups = map[GroupID]*groupInfo{}
	m.disposed = true
	m.listeners = nil
}
