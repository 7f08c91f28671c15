// Package peer drives replication of a hypergraph across remote peers: one
// TCP connection per peer, explicit frames (see internal/wire), full and
// incremental sync, and policy-driven conflict resolution.
package peer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Harshitk-cp/cogsync/internal/domain"
	"github.com/Harshitk-cp/cogsync/internal/service"
	"github.com/Harshitk-cp/cogsync/internal/store"
	"github.com/Harshitk-cp/cogsync/internal/wire"
	"go.uber.org/zap"
)

// AllPeers targets every registered peer in sync calls.
const AllPeers uint64 = 0

const (
	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 30 * time.Second
	defaultWriteTimeout = 30 * time.Second
)

// ErrUnknownPeer is returned for operations on a peer ID that was never added.
var ErrUnknownPeer = errors.New("unknown peer")

// ErrNotConnected is returned when a sync is attempted against a peer whose
// connection is down. The caller decides whether to reconnect.
var ErrNotConnected = errors.New("peer not connected")

// Peer is one collaborating node. Its mirror hypergraph is a local,
// eventually consistent cache of the remote store, owned exclusively by this
// entry.
type Peer struct {
	ID      uint64
	Address string
	Port    int
	Mirror  *store.Hypergraph

	mu         sync.Mutex
	state      domain.PeerState
	conn       net.Conn
	lastSyncAt time.Time
}

// State returns the peer's current connection state.
func (p *Peer) State() domain.PeerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// LastSyncAt returns the watermark of the last acknowledged sync.
func (p *Peer) LastSyncAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSyncAt
}

func (p *Peer) setState(s domain.PeerState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// dropConn closes the connection and returns the peer to Disconnected.
func (p *Peer) dropConn() {
	p.mu.Lock()
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
	p.state = domain.PeerDisconnected
	p.mu.Unlock()
}

// PeerInfo is the read-only view of a peer handed to callers.
type PeerInfo struct {
	ID         uint64           `json:"id"`
	Address    string           `json:"address"`
	Port       int              `json:"port"`
	State      domain.PeerState `json:"-"`
	StateName  string           `json:"state"`
	LastSyncAt time.Time        `json:"last_sync_at"`
	MirrorSize int              `json:"mirror_atoms"`
}

// Overlay coordinates replication of one local hypergraph across a set of
// peers. It borrows the local store, never owns it.
type Overlay struct {
	local  *store.Hypergraph
	logger *zap.Logger

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	mu         sync.RWMutex
	peers      map[uint64]*Peer
	nextPeerID uint64
	policy     domain.ConflictPolicy
	conflicts  []domain.Conflict

	atomsSent         atomic.Uint64
	atomsReceived     atomic.Uint64
	linksSent         atomic.Uint64
	linksReceived     atomic.Uint64
	conflictsResolved atomic.Uint64

	timesMu             sync.Mutex
	lastFullSync        time.Time
	lastIncrementalSync time.Time
}

// NewOverlay creates an overlay for the local hypergraph. The default
// conflict policy is MergeBelief: divergent beliefs are treated as two
// independent observations and revised together.
func NewOverlay(local *store.Hypergraph, logger *zap.Logger) *Overlay {
	return &Overlay{
		local:        local,
		logger:       logger,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		peers:        make(map[uint64]*Peer),
		nextPeerID:   1,
		policy:       domain.ConflictMergeBelief,
	}
}

// AddPeer registers a remote node and returns its peer ID. The peer starts
// Disconnected; Connect establishes the transport.
func (o *Overlay) AddPeer(address string, port int) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()

	p := &Peer{
		ID:      o.nextPeerID,
		Address: address,
		Port:    port,
		Mirror:  store.NewHypergraph(),
		state:   domain.PeerDisconnected,
	}
	o.nextPeerID++
	o.peers[p.ID] = p

	o.logger.Info("peer added",
		zap.Uint64("peer_id", p.ID),
		zap.String("address", address),
		zap.Int("port", port))
	return p.ID
}

// RemovePeer drops a peer and closes its connection.
func (o *Overlay) RemovePeer(id uint64) error {
	o.mu.Lock()
	p, ok := o.peers[id]
	if ok {
		delete(o.peers, id)
	}
	o.mu.Unlock()
	if !ok {
		return ErrUnknownPeer
	}
	p.dropConn()
	return nil
}

// Peer returns the read-only view of one peer.
func (o *Overlay) Peer(id uint64) (PeerInfo, error) {
	o.mu.RLock()
	p, ok := o.peers[id]
	o.mu.RUnlock()
	if !ok {
		return PeerInfo{}, ErrUnknownPeer
	}
	return o.info(p), nil
}

// Peers returns read-only views of every registered peer, ordered by ID.
func (o *Overlay) Peers() []PeerInfo {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]PeerInfo, 0, len(o.peers))
	for id := uint64(1); id < o.nextPeerID; id++ {
		if p, ok := o.peers[id]; ok {
			out = append(out, o.info(p))
		}
	}
	return out
}

func (o *Overlay) info(p *Peer) PeerInfo {
	st := p.State()
	return PeerInfo{
		ID:         p.ID,
		Address:    p.Address,
		Port:       p.Port,
		State:      st,
		StateName:  st.String(),
		LastSyncAt: p.LastSyncAt(),
		MirrorSize: p.Mirror.AtomCount(),
	}
}

// SetConflictPolicy switches the reconciliation rule for future conflicts.
func (o *Overlay) SetConflictPolicy(p domain.ConflictPolicy) {
	o.mu.Lock()
	o.policy = p
	o.mu.Unlock()
	o.logger.Info("conflict policy set", zap.String("policy", p.String()))
}

// ConflictPolicy returns the active reconciliation rule.
func (o *Overlay) ConflictPolicy() domain.ConflictPolicy {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.policy
}

// Connect dials the peer's sync endpoint. A failed dial leaves the peer
// Disconnected; the caller owns retry policy.
func (o *Overlay) Connect(ctx context.Context, id uint64) error {
	o.mu.RLock()
	p, ok := o.peers[id]
	o.mu.RUnlock()
	if !ok {
		return ErrUnknownPeer
	}

	p.setState(domain.PeerConnecting)

	d := net.Dialer{Timeout: o.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(p.Address, fmt.Sprintf("%d", p.Port)))
	if err != nil {
		p.setState(domain.PeerDisconnected)
		return fmt.Errorf("connect peer %d: %w", id, err)
	}

	p.mu.Lock()
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn = conn
	p.state = domain.PeerConnected
	p.mu.Unlock()

	o.logger.Info("peer connected", zap.Uint64("peer_id", id), zap.String("remote", conn.RemoteAddr().String()))
	return nil
}

// Disconnect closes the peer's connection.
func (o *Overlay) Disconnect(id uint64) error {
	o.mu.RLock()
	p, ok := o.peers[id]
	o.mu.RUnlock()
	if !ok {
		return ErrUnknownPeer
	}
	p.dropConn()
	return nil
}

// SyncFull replicates the entire local store to one peer, or to every
// connected peer when id is AllPeers. Peers are drained sequentially; frames
// to one peer go out in store enumeration order.
func (o *Overlay) SyncFull(ctx context.Context, id uint64) error {
	atoms := o.local.Atoms()
	links := o.local.Links()

	err := o.eachTarget(id, func(p *Peer) error {
		if err := o.syncPeer(ctx, p, atoms, links); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	o.timesMu.Lock()
	o.lastFullSync = time.Now()
	o.timesMu.Unlock()
	return nil
}

// SyncIncremental replicates only entities changed since the peer's last
// acknowledged sync. The watermark advances only after the batch is acked, so
// a failed sync is retried in full next time.
func (o *Overlay) SyncIncremental(ctx context.Context, id uint64) error {
	err := o.eachTarget(id, func(p *Peer) error {
		since := p.LastSyncAt()
		atoms := o.local.AtomsModifiedSince(since)
		links := o.local.LinksCreatedSince(since)
		if len(atoms) == 0 && len(links) == 0 {
			return nil
		}
		return o.syncPeer(ctx, p, atoms, links)
	})
	if err != nil {
		return err
	}

	o.timesMu.Lock()
	o.lastIncrementalSync = time.Now()
	o.timesMu.Unlock()
	return nil
}

// eachTarget runs fn against one peer or all of them, sequentially. With
// AllPeers, the first failure aborts the remaining peers and is returned.
func (o *Overlay) eachTarget(id uint64, fn func(*Peer) error) error {
	if id != AllPeers {
		o.mu.RLock()
		p, ok := o.peers[id]
		o.mu.RUnlock()
		if !ok {
			return ErrUnknownPeer
		}
		return fn(p)
	}

	for _, info := range o.Peers() {
		o.mu.RLock()
		p, ok := o.peers[info.ID]
		o.mu.RUnlock()
		if !ok {
			continue
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

// syncPeer streams one batch: announce, atoms, links, completion marker, then
// wait for the ack. Any transport or protocol error drops the connection and
// leaves the peer Disconnected.
func (o *Overlay) syncPeer(ctx context.Context, p *Peer, atoms []domain.Atom, links []domain.Link) error {
	p.mu.Lock()
	conn := p.conn
	if conn == nil || p.state == domain.PeerDisconnected {
		p.mu.Unlock()
		return fmt.Errorf("peer %d: %w", p.ID, ErrNotConnected)
	}
	p.state = domain.PeerSyncing
	p.mu.Unlock()

	start := time.Now()
	fail := func(err error) error {
		p.dropConn()
		o.logger.Warn("sync failed", zap.Uint64("peer_id", p.ID), zap.Error(err))
		return err
	}

	if err := o.writeFrame(conn, wire.EncodeControl(wire.MsgSyncRequest)); err != nil {
		return fail(err)
	}

	for _, a := range atoms {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if err := o.writeFrame(conn, wire.EncodeAtom(a, wire.MsgSyncAtom)); err != nil {
			return fail(err)
		}
		p.Mirror.PutAtom(a)
		o.atomsSent.Add(1)
	}
	for _, l := range links {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if err := o.writeFrame(conn, wire.EncodeLink(l)); err != nil {
			return fail(err)
		}
		p.Mirror.PutLink(l)
		o.linksSent.Add(1)
	}

	if err := o.writeFrame(conn, wire.EncodeControl(wire.MsgSyncComplete)); err != nil {
		return fail(err)
	}
	if err := o.awaitAck(conn, p); err != nil {
		return fail(err)
	}

	p.mu.Lock()
	p.lastSyncAt = start
	p.state = domain.PeerConnected
	p.mu.Unlock()

	o.logger.Info("sync completed",
		zap.Uint64("peer_id", p.ID),
		zap.Int("atoms", len(atoms)),
		zap.Int("links", len(links)),
		zap.Duration("took", time.Since(start)))
	return nil
}

// awaitAck reads frames until the peer acknowledges the batch. Conflict
// notifications arriving before the ack are recorded for the caller. The read
// is deadline-bounded: a stalled peer fails the sync instead of blocking it
// forever.
func (o *Overlay) awaitAck(conn net.Conn, p *Peer) error {
	for {
		if err := conn.SetReadDeadline(time.Now().Add(o.ReadTimeout)); err != nil {
			return err
		}
		h, payload, err := wire.ReadFrame(conn)
		if err != nil {
			return fmt.Errorf("await ack: %w", err)
		}
		switch h.Type {
		case wire.MsgSyncAck:
			return nil
		case wire.MsgConflictNotify:
			remote, err := wire.DecodeAtom(h, payload)
			if err != nil {
				return err
			}
			o.recordConflict(p.ID, domain.Atom{}, remote)
		default:
			return fmt.Errorf("await ack: unexpected %s frame", h.Type)
		}
	}
}

func (o *Overlay) writeFrame(conn net.Conn, frame []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(o.WriteTimeout)); err != nil {
		return err
	}
	return wire.WriteFrame(conn, frame)
}

// ApplyRemoteAtom folds an atom received from remoteHost into the local store
// under the active conflict policy, and records it in the sending peer's
// mirror when the host maps to a registered peer. It returns the remote atom
// when the Manual policy left the conflict unresolved, so the listener can
// notify the sender.
func (o *Overlay) ApplyRemoteAtom(remoteHost string, remote domain.Atom) (unresolved *domain.Atom) {
	o.atomsReceived.Add(1)

	if p := o.peerByHost(remoteHost); p != nil {
		p.Mirror.PutAtom(remote)
	}

	local, err := o.local.PeekAtomByName(remote.Kind, remote.Name)
	if err != nil {
		// New to this store: adopt it as-is.
		o.local.PutAtom(remote)
		return nil
	}

	switch o.ConflictPolicy() {
	case domain.ConflictLatestWins:
		if remote.LastAccessedAt.After(local.LastAccessedAt) {
			o.local.PutAtom(remote)
		}
		o.conflictsResolved.Add(1)

	case domain.ConflictHighestConfidence:
		if remote.TV.Confidence > local.TV.Confidence {
			o.local.PutAtom(remote)
		}
		o.conflictsResolved.Add(1)

	case domain.ConflictMergeBelief:
		merged := service.Revise(local.TV, remote.TV)
		_ = o.local.SetTruthValue(local.Handle, merged.Strength, merged.Confidence)
		o.conflictsResolved.Add(1)

	case domain.ConflictManual:
		peerID := uint64(0)
		if p := o.peerByHost(remoteHost); p != nil {
			peerID = p.ID
		}
		o.recordConflict(peerID, local, remote)
		return &remote
	}
	return nil
}

// ApplyRemoteLink folds a received link into the local store and the sender's
// mirror. Links conflict only on handle; the incoming truth value replaces
// the stored one (links carry no access history to arbitrate with).
func (o *Overlay) ApplyRemoteLink(remoteHost string, remote domain.Link) {
	o.linksReceived.Add(1)

	if p := o.peerByHost(remoteHost); p != nil {
		p.Mirror.PutLink(remote)
	}
	o.local.PutLink(remote)
}

func (o *Overlay) recordConflict(peerID uint64, local, remote domain.Atom) {
	o.mu.Lock()
	o.conflicts = append(o.conflicts, domain.Conflict{
		PeerID:     peerID,
		Local:      local,
		Remote:     remote,
		DetectedAt: time.Now(),
	})
	o.mu.Unlock()
	o.logger.Warn("conflict left unresolved",
		zap.Uint64("peer_id", peerID),
		zap.String("atom", remote.Name))
}

// Conflicts drains the pending manual conflicts.
func (o *Overlay) Conflicts() []domain.Conflict {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.conflicts
	o.conflicts = nil
	return out
}

// peerByHost maps a remote host (no port) back to a registered peer. Peers
// dial from ephemeral ports, so only the host side is comparable.
func (o *Overlay) peerByHost(host string) *Peer {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, p := range o.peers {
		if p.Address == host {
			return p
		}
	}
	return nil
}

// Stats reports the overlay's replication counters.
func (o *Overlay) Stats() domain.SyncStats {
	o.timesMu.Lock()
	full, incr := o.lastFullSync, o.lastIncrementalSync
	o.timesMu.Unlock()

	return domain.SyncStats{
		AtomsSent:           o.atomsSent.Load(),
		AtomsReceived:       o.atomsReceived.Load(),
		LinksSent:           o.linksSent.Load(),
		LinksReceived:       o.linksReceived.Load(),
		ConflictsResolved:   o.conflictsResolved.Load(),
		LastFullSync:        full,
		LastIncrementalSync: incr,
	}
}
