package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Harshitk-cp/cogsync/internal/domain"
	"github.com/Harshitk-cp/cogsync/internal/peer"
	"github.com/go-chi/chi/v5"
)

type SyncHandler struct {
	overlay *peer.Overlay
}

func NewSyncHandler(overlay *peer.Overlay) *SyncHandler {
	return &SyncHandler{overlay: overlay}
}

type addPeerRequest struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
}

type addPeerResponse struct {
	ID uint64 `json:"id"`
}

func (h *SyncHandler) AddPeer(w http.ResponseWriter, r *http.Request) {
	var req addPeerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}
	if req.Port <= 0 || req.Port > 65535 {
		writeError(w, http.StatusBadRequest, "invalid port")
		return
	}

	id := h.overlay.AddPeer(req.Address, req.Port)
	writeJSON(w, http.StatusCreated, addPeerResponse{ID: id})
}

type listPeersResponse struct {
	Peers []peer.PeerInfo `json:"peers"`
	Count int             `json:"count"`
}

func (h *SyncHandler) ListPeers(w http.ResponseWriter, r *http.Request) {
	peers := h.overlay.Peers()
	writeJSON(w, http.StatusOK, listPeersResponse{Peers: peers, Count: len(peers)})
}

func (h *SyncHandler) GetPeer(w http.ResponseWriter, r *http.Request) {
	id, err := parseHandle(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid peer id")
		return
	}

	info, err := h.overlay.Peer(id)
	if err != nil {
		writePeerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *SyncHandler) RemovePeer(w http.ResponseWriter, r *http.Request) {
	id, err := parseHandle(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid peer id")
		return
	}

	if err := h.overlay.RemovePeer(id); err != nil {
		writePeerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SyncHandler) Connect(w http.ResponseWriter, r *http.Request) {
	id, err := parseHandle(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid peer id")
		return
	}

	if err := h.overlay.Connect(r.Context(), id); err != nil {
		if errors.Is(err, peer.ErrUnknownPeer) {
			writeError(w, http.StatusNotFound, "peer not found")
			return
		}
		writeError(w, http.StatusBadGateway, "failed to connect to peer")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SyncHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	id, err := parseHandle(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid peer id")
		return
	}

	if err := h.overlay.Disconnect(id); err != nil {
		writePeerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type syncRequest struct {
	PeerID uint64 `json:"peer_id"`
}

func (h *SyncHandler) SyncFull(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.overlay.SyncFull(r.Context(), req.PeerID); err != nil {
		writeSyncError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.overlay.Stats())
}

func (h *SyncHandler) SyncIncremental(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.overlay.SyncIncremental(r.Context(), req.PeerID); err != nil {
		writeSyncError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.overlay.Stats())
}

type policyRequest struct {
	Policy string `json:"policy"`
}

type policyResponse struct {
	Policy string `json:"policy"`
}

func (h *SyncHandler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, policyResponse{Policy: h.overlay.ConflictPolicy().String()})
}

func (h *SyncHandler) SetPolicy(w http.ResponseWriter, r *http.Request) {
	var req policyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	policy, ok := domain.ParseConflictPolicy(req.Policy)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid conflict policy")
		return
	}

	h.overlay.SetConflictPolicy(policy)
	writeJSON(w, http.StatusOK, policyResponse{Policy: policy.String()})
}

func (h *SyncHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.overlay.Stats())
}

type conflictsResponse struct {
	Conflicts []domain.Conflict `json:"conflicts"`
	Count     int               `json:"count"`
}

func (h *SyncHandler) Conflicts(w http.ResponseWriter, r *http.Request) {
	conflicts := h.overlay.Conflicts()
	writeJSON(w, http.StatusOK, conflictsResponse{Conflicts: conflicts, Count: len(conflicts)})
}

func writePeerError(w http.ResponseWriter, err error) {
	if errors.Is(err, peer.ErrUnknownPeer) {
		writeError(w, http.StatusNotFound, "peer not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "peer operation failed")
}

func writeSyncError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, peer.ErrUnknownPeer):
		writeError(w, http.StatusNotFound, "peer not found")
	case errors.Is(err, peer.ErrNotConnected):
		writeError(w, http.StatusConflict, "peer is not connected")
	default:
		writeError(w, http.StatusBadGateway, "sync failed")
	}
}
