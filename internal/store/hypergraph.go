package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Harshitk-cp/cogsync/internal/domain"
)

// ErrNotFound is returned for lookups of unknown handles or (kind, name)
// pairs. It is a locally recoverable condition, never a panic.
var ErrNotFound = errors.New("not found")

// ErrEmptyOutgoing is returned when a link is created with no outgoing atoms.
var ErrEmptyOutgoing = errors.New("link outgoing set is empty")

const defaultAttentionQueueSize = 256

type atomKey struct {
	kind domain.AtomKind
	name string
}

// Hypergraph is the in-memory hypergraph engine. It owns every atom and link,
// assigns handles from a single monotonic counter, and keeps three indexes
// consistent under one lock: atoms by handle, atoms by (kind, name), links by
// handle. Mutation happens only through its methods; every mutating operation
// either updates all indexes or none.
type Hypergraph struct {
	mu sync.RWMutex

	atoms       map[uint64]*domain.Atom
	atomsByName map[atomKey]uint64
	links       map[uint64]*domain.Link
	nextHandle  uint64

	// attentionQueue holds the handles of the highest-STI atoms, rebuilt by
	// UpdateAttention. Used for priority queries, never for correctness.
	attentionQueue []uint64
	queueSize      int
}

// NewHypergraph creates an empty hypergraph. Handles start at 1.
func NewHypergraph() *Hypergraph {
	return &Hypergraph{
		atoms:       make(map[uint64]*domain.Atom),
		atomsByName: make(map[atomKey]uint64),
		links:       make(map[uint64]*domain.Link),
		nextHandle:  1,
		queueSize:   defaultAttentionQueueSize,
	}
}

// CreateAtom adds a node, or returns the existing one when the (kind, name)
// pair is already present. Creation is an idempotent upsert: the store never
// holds two atoms with the same kind and name.
func (g *Hypergraph) CreateAtom(kind domain.AtomKind, name string) domain.Atom {
	g.mu.Lock()
	defer g.mu.Unlock()

	if h, ok := g.atomsByName[atomKey{kind, name}]; ok {
		return *g.atoms[h]
	}

	now := time.Now()
	a := &domain.Atom{
		Handle:         g.nextHandle,
		Kind:           kind,
		Name:           name,
		TV:             domain.DefaultTruthValue(),
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	g.nextHandle++
	g.atoms[a.Handle] = a
	g.atomsByName[atomKey{kind, name}] = a.Handle
	return *a
}

// GetAtom looks an atom up by handle. A successful lookup counts as an access:
// it bumps the access count and the last-accessed time, which the belief
// algebra later reads as an implicit confidence signal.
func (g *Hypergraph) GetAtom(handle uint64) (domain.Atom, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	a, ok := g.atoms[handle]
	if !ok {
		return domain.Atom{}, ErrNotFound
	}
	a.LastAccessedAt = time.Now()
	a.AccessCount++
	return *a, nil
}

// FindAtom looks an atom up by (kind, name). Counts as an access, like GetAtom.
func (g *Hypergraph) FindAtom(kind domain.AtomKind, name string) (domain.Atom, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	h, ok := g.atomsByName[atomKey{kind, name}]
	if !ok {
		return domain.Atom{}, ErrNotFound
	}
	a := g.atoms[h]
	a.LastAccessedAt = time.Now()
	a.AccessCount++
	return *a, nil
}

// PeekAtom reads an atom without counting the read as an access. Used by the
// belief algebra and conflict resolution, which must not disturb the
// access-derived confidence signal.
func (g *Hypergraph) PeekAtom(handle uint64) (domain.Atom, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	a, ok := g.atoms[handle]
	if !ok {
		return domain.Atom{}, ErrNotFound
	}
	return *a, nil
}

// PeekAtomByName is FindAtom without the access bump, for replication paths
// that compare versions rather than consume the belief.
func (g *Hypergraph) PeekAtomByName(kind domain.AtomKind, name string) (domain.Atom, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	h, ok := g.atomsByName[atomKey{kind, name}]
	if !ok {
		return domain.Atom{}, ErrNotFound
	}
	return *g.atoms[h], nil
}

// CreateLink adds a hyperedge over the given outgoing handles. Every
// referenced atom must exist at creation time; afterwards the link tolerates
// referenced atoms being removed (dereference reports not-found).
func (g *Hypergraph) CreateLink(kind domain.LinkKind, outgoing []uint64) (domain.Link, error) {
	if len(outgoing) == 0 {
		return domain.Link{}, ErrEmptyOutgoing
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, h := range outgoing {
		if _, ok := g.atoms[h]; !ok {
			return domain.Link{}, ErrNotFound
		}
	}

	l := &domain.Link{
		Handle:    g.nextHandle,
		Kind:      kind,
		Outgoing:  append([]uint64(nil), outgoing...),
		TV:        domain.DefaultTruthValue(),
		CreatedAt: time.Now(),
	}
	g.nextHandle++
	g.links[l.Handle] = l
	return *l, nil
}

// GetLink looks a link up by handle.
func (g *Hypergraph) GetLink(handle uint64) (domain.Link, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	l, ok := g.links[handle]
	if !ok {
		return domain.Link{}, ErrNotFound
	}
	return copyLink(l), nil
}

// Outgoing resolves a link's outgoing set. Handles whose atoms have been
// removed are returned separately as missing rather than failing the call.
func (g *Hypergraph) Outgoing(linkHandle uint64) (atoms []domain.Atom, missing []uint64, err error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	l, ok := g.links[linkHandle]
	if !ok {
		return nil, nil, ErrNotFound
	}
	for _, h := range l.Outgoing {
		if a, ok := g.atoms[h]; ok {
			atoms = append(atoms, *a)
		} else {
			missing = append(missing, h)
		}
	}
	return atoms, missing, nil
}

// SetTruthValue replaces an atom's truth value. Strength and confidence are
// clamped to [0,1]. Counts as a modification for incremental sync.
func (g *Hypergraph) SetTruthValue(handle uint64, strength, confidence float32) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	a, ok := g.atoms[handle]
	if !ok {
		return ErrNotFound
	}
	a.TV = domain.TruthValue{Strength: clampUnit(strength), Confidence: clampUnit(confidence)}
	a.LastAccessedAt = time.Now()
	return nil
}

// SetLinkTruthValue replaces a link's truth value.
func (g *Hypergraph) SetLinkTruthValue(handle uint64, strength, confidence float32) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	l, ok := g.links[handle]
	if !ok {
		return ErrNotFound
	}
	l.TV = domain.TruthValue{Strength: clampUnit(strength), Confidence: clampUnit(confidence)}
	return nil
}

// SetSTI sets short-term importance, saturated to the attention range.
func (g *Hypergraph) SetSTI(handle uint64, sti int32) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	a, ok := g.atoms[handle]
	if !ok {
		return ErrNotFound
	}
	a.AV.STI = domain.ClampImportance(sti)
	a.LastAccessedAt = time.Now()
	return nil
}

// SetLTI sets long-term importance, saturated to the attention range.
func (g *Hypergraph) SetLTI(handle uint64, lti int32) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	a, ok := g.atoms[handle]
	if !ok {
		return ErrNotFound
	}
	a.AV.LTI = domain.ClampImportance(lti)
	a.LastAccessedAt = time.Now()
	return nil
}

// RecordAccess bumps an atom's access bookkeeping without reading it.
func (g *Hypergraph) RecordAccess(handle uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	a, ok := g.atoms[handle]
	if !ok {
		return ErrNotFound
	}
	a.LastAccessedAt = time.Now()
	a.AccessCount++
	return nil
}

// RemoveAtom detaches an atom from both indexes. Links referencing it keep
// their handle references; dereferencing them later reports the atom missing.
func (g *Hypergraph) RemoveAtom(handle uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	a, ok := g.atoms[handle]
	if !ok {
		return ErrNotFound
	}
	delete(g.atoms, handle)
	delete(g.atomsByName, atomKey{a.Kind, a.Name})
	return nil
}

// RemoveLink detaches a link from the handle index.
func (g *Hypergraph) RemoveLink(handle uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.links[handle]; !ok {
		return ErrNotFound
	}
	delete(g.links, handle)
	return nil
}

// Atoms returns a snapshot of every atom. Enumeration does not count as an
// access: a full sync must not disturb the incremental-sync watermark.
func (g *Hypergraph) Atoms() []domain.Atom {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]domain.Atom, 0, len(g.atoms))
	for _, a := range g.atoms {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

// Links returns a snapshot of every link in handle order.
func (g *Hypergraph) Links() []domain.Link {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]domain.Link, 0, len(g.links))
	for _, l := range g.links {
		out = append(out, copyLink(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

// AtomsModifiedSince returns atoms accessed or modified after t, for
// incremental sync.
func (g *Hypergraph) AtomsModifiedSince(t time.Time) []domain.Atom {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []domain.Atom
	for _, a := range g.atoms {
		if a.LastAccessedAt.After(t) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

// LinksCreatedSince returns links created after t.
func (g *Hypergraph) LinksCreatedSince(t time.Time) []domain.Link {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []domain.Link
	for _, l := range g.links {
		if l.CreatedAt.After(t) {
			out = append(out, copyLink(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

// EnumerateByKind returns all atoms of one kind, for pattern discovery.
func (g *Hypergraph) EnumerateByKind(kind domain.AtomKind) []domain.Atom {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []domain.Atom
	for _, a := range g.atoms {
		if a.Kind == kind {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

// LinksByKind returns all links of one kind in handle order.
func (g *Hypergraph) LinksByKind(kind domain.LinkKind) []domain.Link {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []domain.Link
	for _, l := range g.links {
		if l.Kind == kind {
			out = append(out, copyLink(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

// HasAtom reports whether a handle refers to a live atom. Does not count as
// an access.
func (g *Hypergraph) HasAtom(handle uint64) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.atoms[handle]
	return ok
}

// AtomCount returns the number of atoms in the store.
func (g *Hypergraph) AtomCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.atoms)
}

// LinkCount returns the number of links in the store.
func (g *Hypergraph) LinkCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.links)
}

// UpdateAttention rebuilds the attention queue: the queueSize atoms with the
// highest STI, descending. Returns the new queue contents.
func (g *Hypergraph) UpdateAttention() []domain.Atom {
	g.mu.Lock()
	defer g.mu.Unlock()

	all := make([]*domain.Atom, 0, len(g.atoms))
	for _, a := range g.atoms {
		all = append(all, a)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].AV.STI != all[j].AV.STI {
			return all[i].AV.STI > all[j].AV.STI
		}
		return all[i].Handle < all[j].Handle
	})

	n := g.queueSize
	if n > len(all) {
		n = len(all)
	}
	g.attentionQueue = g.attentionQueue[:0]
	out := make([]domain.Atom, 0, n)
	for _, a := range all[:n] {
		g.attentionQueue = append(g.attentionQueue, a.Handle)
		out = append(out, *a)
	}
	return out
}

// AttentionTop returns up to n atoms from the current attention queue.
// Handles whose atoms were removed since the last rebuild are skipped.
func (g *Hypergraph) AttentionTop(n int) []domain.Atom {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []domain.Atom
	for _, h := range g.attentionQueue {
		if len(out) == n {
			break
		}
		if a, ok := g.atoms[h]; ok {
			out = append(out, *a)
		}
	}
	return out
}

// PutAtom is the replication entry point: it upserts an atom that originated
// in another store. If the (kind, name) pair already exists locally the
// existing atom keeps its handle and adopts the incoming values; otherwise the
// atom is inserted, preserving the incoming handle when it is free. Returns
// the stored copy and whether a new atom was created.
func (g *Hypergraph) PutAtom(in domain.Atom) (domain.Atom, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if h, ok := g.atomsByName[atomKey{in.Kind, in.Name}]; ok {
		a := g.atoms[h]
		a.TV = in.TV
		a.AV = in.AV
		a.LastAccessedAt = in.LastAccessedAt
		if in.AccessCount > a.AccessCount {
			a.AccessCount = in.AccessCount
		}
		return *a, false
	}

	a := in
	if a.Handle == 0 || g.handleTaken(a.Handle) {
		a.Handle = g.nextHandle
	}
	if a.Handle >= g.nextHandle {
		g.nextHandle = a.Handle + 1
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	stored := a
	g.atoms[stored.Handle] = &stored
	g.atomsByName[atomKey{stored.Kind, stored.Name}] = stored.Handle
	return stored, true
}

// PutLink upserts a replicated link under its incoming handle. Outgoing
// handles are stored as-is; they may refer to atoms that have not arrived yet,
// which later dereference reports as missing.
func (g *Hypergraph) PutLink(in domain.Link) (domain.Link, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if l, ok := g.links[in.Handle]; ok {
		l.TV = in.TV
		l.AV = in.AV
		return copyLink(l), false
	}

	l := in
	l.Outgoing = append([]uint64(nil), in.Outgoing...)
	if l.Handle == 0 || g.handleTaken(l.Handle) {
		l.Handle = g.nextHandle
	}
	if l.Handle >= g.nextHandle {
		g.nextHandle = l.Handle + 1
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	g.links[l.Handle] = &l
	return copyLink(&l), true
}

func (g *Hypergraph) handleTaken(h uint64) bool {
	if _, ok := g.atoms[h]; ok {
		return true
	}
	_, ok := g.links[h]
	return ok
}

func copyLink(l *domain.Link) domain.Link {
	out := *l
	out.Outgoing = append([]uint64(nil), l.Outgoing...)
	return out
}

func clampUnit(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
