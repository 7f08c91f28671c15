package store

import (
	"github.com/Harshitk-cp/cogsync/internal/domain"
)

// TopologyRootName is the (Concept) atom anchoring the sync topology graph.
const TopologyRootName = "sync_topology_root"

// BuildTopologyRoot creates (or returns) the topology root concept.
func (g *Hypergraph) BuildTopologyRoot() domain.Atom {
	return g.CreateAtom(domain.AtomConcept, TopologyRootName)
}

// AddDaemon registers a daemon node and attaches it to the topology root with
// a SyncTopology link.
func (g *Hypergraph) AddDaemon(name string) (domain.Atom, error) {
	root := g.BuildTopologyRoot()
	daemon := g.CreateAtom(domain.AtomDaemon, name)
	if _, err := g.CreateLink(domain.LinkSyncTopology, []uint64{root.Handle, daemon.Handle}); err != nil {
		return domain.Atom{}, err
	}
	return daemon, nil
}

// DaemonNode finds a daemon node by name.
func (g *Hypergraph) DaemonNode(name string) (domain.Atom, error) {
	return g.FindAtom(domain.AtomDaemon, name)
}

// AddSyncPath registers a sync path served by the named daemon.
func (g *Hypergraph) AddSyncPath(daemonName, path string) (domain.Atom, error) {
	daemon, err := g.FindAtom(domain.AtomDaemon, daemonName)
	if err != nil {
		return domain.Atom{}, err
	}
	pathAtom := g.CreateAtom(domain.AtomSyncPath, path)
	if _, err := g.CreateLink(domain.LinkSyncTopology, []uint64{daemon.Handle, pathAtom.Handle}); err != nil {
		return domain.Atom{}, err
	}
	return pathAtom, nil
}

// SyncPaths returns the sync-path atoms reachable from the named daemon over
// SyncTopology links. Dangling link targets are skipped.
func (g *Hypergraph) SyncPaths(daemonName string) ([]domain.Atom, error) {
	daemon, err := g.FindAtom(domain.AtomDaemon, daemonName)
	if err != nil {
		return nil, err
	}

	var paths []domain.Atom
	for _, l := range g.LinksByKind(domain.LinkSyncTopology) {
		if l.Arity() < 2 || l.Source() != daemon.Handle {
			continue
		}
		atoms, _, err := g.Outgoing(l.Handle)
		if err != nil {
			continue
		}
		for _, a := range atoms {
			if a.Kind == domain.AtomSyncPath {
				paths = append(paths, a)
			}
		}
	}
	return paths, nil
}

// CreateSwarm creates a swarm formation: a Swarm atom plus one SwarmMember
// link from the swarm to each member. All members must already exist.
func (g *Hypergraph) CreateSwarm(name string, members []uint64) (domain.Atom, error) {
	if len(members) == 0 {
		return domain.Atom{}, ErrEmptyOutgoing
	}
	for _, m := range members {
		if !g.HasAtom(m) {
			return domain.Atom{}, ErrNotFound
		}
	}

	swarm := g.CreateAtom(domain.AtomSwarm, name)
	for _, m := range members {
		if _, err := g.CreateLink(domain.LinkSwarmMember, []uint64{swarm.Handle, m}); err != nil {
			return domain.Atom{}, err
		}
	}
	return swarm, nil
}

// SwarmMembers returns the member atoms of the named swarm. Members that have
// been removed since formation are skipped.
func (g *Hypergraph) SwarmMembers(name string) ([]domain.Atom, error) {
	swarm, err := g.FindAtom(domain.AtomSwarm, name)
	if err != nil {
		return nil, err
	}

	var members []domain.Atom
	for _, l := range g.LinksByKind(domain.LinkSwarmMember) {
		if l.Arity() < 2 || l.Source() != swarm.Handle {
			continue
		}
		atoms, _, err := g.Outgoing(l.Handle)
		if err != nil {
			continue
		}
		for _, a := range atoms {
			if a.Handle != swarm.Handle {
				members = append(members, a)
			}
		}
	}
	return members, nil
}
