package store

import (
	"errors"
	"testing"

	"github.com/Harshitk-cp/cogsync/internal/domain"
)

func TestAddDaemonAttachesToRoot(t *testing.T) {
	g := NewHypergraph()

	daemon, err := g.AddDaemon("syncd-alpha")
	if err != nil {
		t.Fatalf("AddDaemon: %v", err)
	}
	if daemon.Kind != domain.AtomDaemon {
		t.Errorf("kind = %v, want daemon", daemon.Kind)
	}

	root, err := g.PeekAtomByName(domain.AtomConcept, TopologyRootName)
	if err != nil {
		t.Fatalf("topology root missing: %v", err)
	}

	links := g.LinksByKind(domain.LinkSyncTopology)
	if len(links) != 1 {
		t.Fatalf("topology links = %d, want 1", len(links))
	}
	if links[0].Source() != root.Handle || links[0].Target() != daemon.Handle {
		t.Errorf("link %d->%d, want %d->%d", links[0].Source(), links[0].Target(), root.Handle, daemon.Handle)
	}
}

func TestSyncPathsPerDaemon(t *testing.T) {
	g := NewHypergraph()

	if _, err := g.AddDaemon("syncd-alpha"); err != nil {
		t.Fatalf("AddDaemon: %v", err)
	}
	if _, err := g.AddDaemon("syncd-beta"); err != nil {
		t.Fatalf("AddDaemon: %v", err)
	}

	if _, err := g.AddSyncPath("syncd-alpha", "/var/data/photos"); err != nil {
		t.Fatalf("AddSyncPath: %v", err)
	}
	if _, err := g.AddSyncPath("syncd-alpha", "/var/data/docs"); err != nil {
		t.Fatalf("AddSyncPath: %v", err)
	}
	if _, err := g.AddSyncPath("syncd-beta", "/var/data/music"); err != nil {
		t.Fatalf("AddSyncPath: %v", err)
	}

	paths, err := g.SyncPaths("syncd-alpha")
	if err != nil {
		t.Fatalf("SyncPaths: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("alpha paths = %d, want 2", len(paths))
	}
	for _, p := range paths {
		if p.Name == "/var/data/music" {
			t.Error("beta's path leaked into alpha's sync paths")
		}
	}

	if _, err := g.AddSyncPath("syncd-gone", "/tmp"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown daemon: err = %v, want ErrNotFound", err)
	}
}

func TestCreateSwarm(t *testing.T) {
	g := NewHypergraph()

	a, _ := g.AddDaemon("syncd-alpha")
	b, _ := g.AddDaemon("syncd-beta")

	swarm, err := g.CreateSwarm("edge-cluster", []uint64{a.Handle, b.Handle})
	if err != nil {
		t.Fatalf("CreateSwarm: %v", err)
	}
	if swarm.Kind != domain.AtomSwarm {
		t.Errorf("kind = %v, want swarm", swarm.Kind)
	}

	members, err := g.SwarmMembers("edge-cluster")
	if err != nil {
		t.Fatalf("SwarmMembers: %v", err)
	}
	if len(members) != 2 {
		t.Errorf("members = %d, want 2", len(members))
	}
}

func TestCreateSwarmValidatesMembers(t *testing.T) {
	g := NewHypergraph()
	a, _ := g.AddDaemon("syncd-alpha")

	before := g.AtomCount()
	if _, err := g.CreateSwarm("ghost", []uint64{a.Handle, 9999}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if g.AtomCount() != before {
		t.Error("failed swarm creation must not leave a swarm atom behind")
	}
	if _, err := g.CreateSwarm("empty", nil); !errors.Is(err, ErrEmptyOutgoing) {
		t.Errorf("err = %v, want ErrEmptyOutgoing", err)
	}
}
