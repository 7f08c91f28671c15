package domain

import (
	"time"
)

// PeerState tracks the connection lifecycle of a remote peer.
// Disconnected → Connecting → Connected → Syncing → Connected; any transport
// error returns the peer to Disconnected. Reconnecting is the caller's job.
type PeerState int32

const (
	PeerDisconnected PeerState = iota
	PeerConnecting
	PeerConnected
	PeerSyncing
)

func (s PeerState) String() string {
	switch s {
	case PeerDisconnected:
		return "disconnected"
	case PeerConnecting:
		return "connecting"
	case PeerConnected:
		return "connected"
	case PeerSyncing:
		return "syncing"
	}
	return "unknown"
}

// ConflictPolicy selects how divergent versions of the same atom are
// reconciled during sync.
type ConflictPolicy int

const (
	// ConflictLatestWins keeps whichever version was accessed most recently.
	ConflictLatestWins ConflictPolicy = iota
	// ConflictHighestConfidence keeps the version whose truth value carries
	// the larger confidence.
	ConflictHighestConfidence
	// ConflictMergeBelief revises the local truth value with the remote one,
	// treating the two as independent observations of the same belief.
	ConflictMergeBelief
	// ConflictManual keeps the local version untouched and surfaces the
	// conflict for out-of-band resolution.
	ConflictManual
)

var conflictPolicyNames = map[ConflictPolicy]string{
	ConflictLatestWins:        "latest_wins",
	ConflictHighestConfidence: "highest_confidence",
	ConflictMergeBelief:       "merge_belief",
	ConflictManual:            "manual",
}

func (p ConflictPolicy) String() string {
	if s, ok := conflictPolicyNames[p]; ok {
		return s
	}
	return "unknown"
}

func ParseConflictPolicy(s string) (ConflictPolicy, bool) {
	for p, name := range conflictPolicyNames {
		if name == s {
			return p, true
		}
	}
	return 0, false
}

// Conflict records a divergence that policy Manual declined to resolve.
type Conflict struct {
	PeerID     uint64    `json:"peer_id"`
	Local      Atom      `json:"local"`
	Remote     Atom      `json:"remote"`
	DetectedAt time.Time `json:"detected_at"`
}

// SyncStats aggregates replication counters across all peers.
type SyncStats struct {
	AtomsSent           uint64    `json:"atoms_sent"`
	AtomsReceived       uint64    `json:"atoms_received"`
	LinksSent           uint64    `json:"links_sent"`
	LinksReceived       uint64    `json:"links_received"`
	ConflictsResolved   uint64    `json:"conflicts_resolved"`
	LastFullSync        time.Time `json:"last_full_sync"`
	LastIncrementalSync time.Time `json:"last_incremental_sync"`
}
