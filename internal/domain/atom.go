package domain

import (
	"time"
)

// AtomKind identifies the type of a hypergraph node.
// Values are wire-stable: they are serialized as a single byte.
type AtomKind uint8

const (
	AtomNode AtomKind = iota
	AtomConcept
	AtomDaemon
	AtomSyncPath
	AtomHost
	AtomModule
	AtomSwarm
)

var atomKindNames = map[AtomKind]string{
	AtomNode:     "node",
	AtomConcept:  "concept",
	AtomDaemon:   "daemon",
	AtomSyncPath: "sync_path",
	AtomHost:     "host",
	AtomModule:   "module",
	AtomSwarm:    "swarm",
}

func (k AtomKind) String() string {
	if s, ok := atomKindNames[k]; ok {
		return s
	}
	return "unknown"
}

func ValidAtomKind(k AtomKind) bool {
	_, ok := atomKindNames[k]
	return ok
}

// ParseAtomKind maps a kind name back to its AtomKind.
func ParseAtomKind(s string) (AtomKind, bool) {
	for k, name := range atomKindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// LinkKind identifies the type of a hyperedge. Wire-stable, one byte.
type LinkKind uint8

const (
	LinkInheritance LinkKind = iota
	LinkSimilarity
	LinkSyncTopology
	LinkSwarmMember
	LinkAuthTrust
	LinkDependency
)

var linkKindNames = map[LinkKind]string{
	LinkInheritance:  "inheritance",
	LinkSimilarity:   "similarity",
	LinkSyncTopology: "sync_topology",
	LinkSwarmMember:  "swarm_member",
	LinkAuthTrust:    "auth_trust",
	LinkDependency:   "dependency",
}

func (k LinkKind) String() string {
	if s, ok := linkKindNames[k]; ok {
		return s
	}
	return "unknown"
}

func ValidLinkKind(k LinkKind) bool {
	_, ok := linkKindNames[k]
	return ok
}

func ParseLinkKind(s string) (LinkKind, bool) {
	for k, name := range linkKindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// TruthValue is a probabilistic belief: a strength (probability) and the
// confidence held in that probability. Both live in [0,1]. Copied freely,
// never mutated in place.
type TruthValue struct {
	Strength   float32 `json:"strength"`
	Confidence float32 `json:"confidence"`
}

// DefaultTruthValue is assigned to newly created atoms and links: fully
// asserted but with zero evidence behind it.
func DefaultTruthValue() TruthValue {
	return TruthValue{Strength: 1.0, Confidence: 0.0}
}

// AttentionSaturation bounds STI and LTI. Updates clamp rather than overflow.
const AttentionSaturation = 1000

// AttentionValue allocates short/long/very-long-term importance to an entity.
type AttentionValue struct {
	STI  int16  `json:"sti"`
	LTI  int16  `json:"lti"`
	VLTI uint16 `json:"vlti"`
}

// ClampImportance saturates an importance delta result to ±AttentionSaturation.
func ClampImportance(v int32) int16 {
	if v > AttentionSaturation {
		return AttentionSaturation
	}
	if v < -AttentionSaturation {
		return -AttentionSaturation
	}
	return int16(v)
}

// Atom is a named, typed hypergraph node. Identity within a store is the
// (Kind, Name) pair; Handle is the store-assigned numeric identity used by
// links and by the sync wire format.
type Atom struct {
	Handle         uint64         `json:"handle"`
	Kind           AtomKind       `json:"kind"`
	Name           string         `json:"name"`
	TV             TruthValue     `json:"tv"`
	AV             AttentionValue `json:"av"`
	CreatedAt      time.Time      `json:"created_at"`
	LastAccessedAt time.Time      `json:"last_accessed_at"`
	AccessCount    uint32         `json:"access_count"`
}

// Link is a typed hyperedge over an ordered outgoing set of atoms. Atoms are
// referenced by handle, never embedded: the store owns atom lifetime, and a
// link must tolerate a referenced atom having been removed.
type Link struct {
	Handle    uint64         `json:"handle"`
	Kind      LinkKind       `json:"kind"`
	Outgoing  []uint64       `json:"outgoing"`
	TV        TruthValue     `json:"tv"`
	AV        AttentionValue `json:"av"`
	CreatedAt time.Time      `json:"created_at"`
}

// Arity returns the size of the outgoing set.
func (l *Link) Arity() int {
	return len(l.Outgoing)
}

// Source and Target view a binary link as a directed edge, the shape the
// deduction rule operates on.
func (l *Link) Source() uint64 { return l.Outgoing[0] }

func (l *Link) Target() uint64 { return l.Outgoing[len(l.Outgoing)-1] }
