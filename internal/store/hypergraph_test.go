package store

import (
	"errors"
	"testing"
	"time"

	"github.com/Harshitk-cp/cogsync/internal/domain"
)

func TestCreateAtomIdempotent(t *testing.T) {
	g := NewHypergraph()

	first := g.CreateAtom(domain.AtomConcept, "sync_cluster")
	second := g.CreateAtom(domain.AtomConcept, "sync_cluster")

	if first.Handle != second.Handle {
		t.Errorf("handle = %d, want %d (same kind+name must reuse the atom)", second.Handle, first.Handle)
	}
	if g.AtomCount() != 1 {
		t.Errorf("atom count = %d, want 1", g.AtomCount())
	}

	// Same name under a different kind is a distinct atom.
	other := g.CreateAtom(domain.AtomDaemon, "sync_cluster")
	if other.Handle == first.Handle {
		t.Error("different kind with same name must get its own handle")
	}
}

func TestHandlesMonotonicAndNeverReused(t *testing.T) {
	g := NewHypergraph()

	a := g.CreateAtom(domain.AtomNode, "a")
	b := g.CreateAtom(domain.AtomNode, "b")
	if b.Handle <= a.Handle {
		t.Fatalf("handles not monotonic: %d then %d", a.Handle, b.Handle)
	}

	link, err := g.CreateLink(domain.LinkInheritance, []uint64{a.Handle, b.Handle})
	if err != nil {
		t.Fatalf("CreateLink: %v", err)
	}
	if link.Handle <= b.Handle {
		t.Errorf("atoms and links must share the handle counter: link %d after atom %d", link.Handle, b.Handle)
	}

	if err := g.RemoveAtom(b.Handle); err != nil {
		t.Fatalf("RemoveAtom: %v", err)
	}
	c := g.CreateAtom(domain.AtomNode, "c")
	if c.Handle <= link.Handle {
		t.Errorf("removed handle must not be reused: got %d after %d", c.Handle, link.Handle)
	}
}

func TestDefaultTruthValue(t *testing.T) {
	g := NewHypergraph()
	a := g.CreateAtom(domain.AtomNode, "fresh")

	if a.TV.Strength != 1.0 || a.TV.Confidence != 0.0 {
		t.Errorf("new atom TV = {%f, %f}, want {1, 0}", a.TV.Strength, a.TV.Confidence)
	}
}

func TestGetAtomCountsAccess(t *testing.T) {
	g := NewHypergraph()
	a := g.CreateAtom(domain.AtomNode, "tracked")

	if _, err := g.GetAtom(a.Handle); err != nil {
		t.Fatalf("GetAtom: %v", err)
	}
	got, err := g.GetAtom(a.Handle)
	if err != nil {
		t.Fatalf("GetAtom: %v", err)
	}
	if got.AccessCount != 2 {
		t.Errorf("access count = %d, want 2", got.AccessCount)
	}

	peeked, err := g.PeekAtom(a.Handle)
	if err != nil {
		t.Fatalf("PeekAtom: %v", err)
	}
	if peeked.AccessCount != 2 {
		t.Errorf("PeekAtom must not bump access count: got %d", peeked.AccessCount)
	}
}

func TestEnumerationDoesNotCountAccess(t *testing.T) {
	g := NewHypergraph()
	a := g.CreateAtom(domain.AtomNode, "quiet")

	g.Atoms()
	g.EnumerateByKind(domain.AtomNode)

	got, err := g.PeekAtom(a.Handle)
	if err != nil {
		t.Fatalf("PeekAtom: %v", err)
	}
	if got.AccessCount != 0 {
		t.Errorf("enumeration bumped access count to %d", got.AccessCount)
	}
}

func TestCreateLinkValidation(t *testing.T) {
	g := NewHypergraph()
	a := g.CreateAtom(domain.AtomNode, "a")

	if _, err := g.CreateLink(domain.LinkInheritance, nil); !errors.Is(err, ErrEmptyOutgoing) {
		t.Errorf("empty outgoing: err = %v, want ErrEmptyOutgoing", err)
	}
	if _, err := g.CreateLink(domain.LinkInheritance, []uint64{a.Handle, 9999}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown target: err = %v, want ErrNotFound", err)
	}
}

func TestOutgoingReportsMissingAfterRemoval(t *testing.T) {
	g := NewHypergraph()
	a := g.CreateAtom(domain.AtomNode, "a")
	b := g.CreateAtom(domain.AtomNode, "b")

	link, err := g.CreateLink(domain.LinkSimilarity, []uint64{a.Handle, b.Handle})
	if err != nil {
		t.Fatalf("CreateLink: %v", err)
	}

	if err := g.RemoveAtom(b.Handle); err != nil {
		t.Fatalf("RemoveAtom: %v", err)
	}

	atoms, missing, err := g.Outgoing(link.Handle)
	if err != nil {
		t.Fatalf("Outgoing: %v", err)
	}
	if len(atoms) != 1 || atoms[0].Handle != a.Handle {
		t.Errorf("resolved atoms = %v, want only %d", atoms, a.Handle)
	}
	if len(missing) != 1 || missing[0] != b.Handle {
		t.Errorf("missing = %v, want [%d]", missing, b.Handle)
	}
}

func TestSetTruthValueClamps(t *testing.T) {
	g := NewHypergraph()
	a := g.CreateAtom(domain.AtomNode, "clamped")

	if err := g.SetTruthValue(a.Handle, 1.5, -0.3); err != nil {
		t.Fatalf("SetTruthValue: %v", err)
	}
	got, _ := g.PeekAtom(a.Handle)
	if got.TV.Strength != 1.0 {
		t.Errorf("strength = %f, want clamp to 1", got.TV.Strength)
	}
	if got.TV.Confidence != 0.0 {
		t.Errorf("confidence = %f, want clamp to 0", got.TV.Confidence)
	}
}

func TestImportanceSaturates(t *testing.T) {
	g := NewHypergraph()
	a := g.CreateAtom(domain.AtomNode, "hot")

	if err := g.SetSTI(a.Handle, 5000); err != nil {
		t.Fatalf("SetSTI: %v", err)
	}
	if err := g.SetLTI(a.Handle, -5000); err != nil {
		t.Fatalf("SetLTI: %v", err)
	}

	got, _ := g.PeekAtom(a.Handle)
	if got.AV.STI != domain.AttentionSaturation {
		t.Errorf("STI = %d, want %d", got.AV.STI, domain.AttentionSaturation)
	}
	if got.AV.LTI != -domain.AttentionSaturation {
		t.Errorf("LTI = %d, want %d", got.AV.LTI, -domain.AttentionSaturation)
	}
}

func TestRemoveAtomFreesName(t *testing.T) {
	g := NewHypergraph()
	a := g.CreateAtom(domain.AtomNode, "reborn")

	if err := g.RemoveAtom(a.Handle); err != nil {
		t.Fatalf("RemoveAtom: %v", err)
	}
	if _, err := g.FindAtom(domain.AtomNode, "reborn"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindAtom after removal: err = %v, want ErrNotFound", err)
	}

	again := g.CreateAtom(domain.AtomNode, "reborn")
	if again.Handle == a.Handle {
		t.Error("recreated atom must not reuse the removed handle")
	}
}

func TestUpdateAttentionOrdering(t *testing.T) {
	g := NewHypergraph()
	low := g.CreateAtom(domain.AtomNode, "low")
	high := g.CreateAtom(domain.AtomNode, "high")
	mid := g.CreateAtom(domain.AtomNode, "mid")

	_ = g.SetSTI(low.Handle, 1)
	_ = g.SetSTI(high.Handle, 900)
	_ = g.SetSTI(mid.Handle, 450)

	queue := g.UpdateAttention()
	if len(queue) != 3 {
		t.Fatalf("queue length = %d, want 3", len(queue))
	}
	if queue[0].Handle != high.Handle || queue[1].Handle != mid.Handle || queue[2].Handle != low.Handle {
		t.Errorf("queue order = [%d %d %d], want [%d %d %d]",
			queue[0].Handle, queue[1].Handle, queue[2].Handle,
			high.Handle, mid.Handle, low.Handle)
	}

	top := g.AttentionTop(1)
	if len(top) != 1 || top[0].Handle != high.Handle {
		t.Errorf("AttentionTop(1) = %v, want the highest-STI atom", top)
	}
}

func TestAtomsModifiedSince(t *testing.T) {
	g := NewHypergraph()
	old := g.CreateAtom(domain.AtomNode, "old")

	cutoff := time.Now()
	time.Sleep(2 * time.Millisecond)

	fresh := g.CreateAtom(domain.AtomNode, "fresh")
	if _, err := g.GetAtom(old.Handle); err != nil {
		t.Fatalf("GetAtom: %v", err)
	}

	modified := g.AtomsModifiedSince(cutoff)
	handles := make(map[uint64]bool)
	for _, a := range modified {
		handles[a.Handle] = true
	}
	if !handles[fresh.Handle] {
		t.Error("newly created atom missing from modified set")
	}
	if !handles[old.Handle] {
		t.Error("accessed atom missing from modified set")
	}
}

func TestPutAtomPreservesHandleWhenFree(t *testing.T) {
	g := NewHypergraph()

	in := domain.Atom{
		Handle: 42,
		Kind:   domain.AtomConcept,
		Name:   "remote",
		TV:     domain.TruthValue{Strength: 0.7, Confidence: 0.4},
	}
	stored, created := g.PutAtom(in)
	if !created {
		t.Fatal("expected creation")
	}
	if stored.Handle != 42 {
		t.Errorf("handle = %d, want incoming 42", stored.Handle)
	}

	// Counter must have advanced past the adopted handle.
	next := g.CreateAtom(domain.AtomNode, "local")
	if next.Handle <= 42 {
		t.Errorf("local handle = %d, must be past the adopted 42", next.Handle)
	}
}

func TestPutAtomKeepsLocalHandleOnNameCollision(t *testing.T) {
	g := NewHypergraph()
	local := g.CreateAtom(domain.AtomConcept, "shared")

	stored, created := g.PutAtom(domain.Atom{
		Handle: 99,
		Kind:   domain.AtomConcept,
		Name:   "shared",
		TV:     domain.TruthValue{Strength: 0.2, Confidence: 0.9},
	})
	if created {
		t.Fatal("collision must update, not create")
	}
	if stored.Handle != local.Handle {
		t.Errorf("handle = %d, want local %d", stored.Handle, local.Handle)
	}
	if stored.TV.Confidence != 0.9 {
		t.Errorf("confidence = %f, want adopted 0.9", stored.TV.Confidence)
	}
	if g.AtomCount() != 1 {
		t.Errorf("atom count = %d, want 1", g.AtomCount())
	}
}

func TestPutLinkToleratesUnknownOutgoing(t *testing.T) {
	g := NewHypergraph()

	link, created := g.PutLink(domain.Link{
		Handle:   7,
		Kind:     domain.LinkInheritance,
		Outgoing: []uint64{100, 101},
		TV:       domain.TruthValue{Strength: 0.5, Confidence: 0.5},
	})
	if !created {
		t.Fatal("expected creation")
	}

	atoms, missing, err := g.Outgoing(link.Handle)
	if err != nil {
		t.Fatalf("Outgoing: %v", err)
	}
	if len(atoms) != 0 || len(missing) != 2 {
		t.Errorf("resolved = %d, missing = %d; want 0 resolved, 2 missing", len(atoms), len(missing))
	}
}
