package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Harshitk-cp/cogsync/internal/domain"
	"github.com/Harshitk-cp/cogsync/internal/store"
	"github.com/go-chi/chi/v5"
)

type TopologyHandler struct {
	graph *store.Hypergraph
}

func NewTopologyHandler(graph *store.Hypergraph) *TopologyHandler {
	return &TopologyHandler{graph: graph}
}

type addDaemonRequest struct {
	Name string `json:"name"`
}

func (h *TopologyHandler) AddDaemon(w http.ResponseWriter, r *http.Request) {
	var req addDaemonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	daemon, err := h.graph.AddDaemon(req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to add daemon")
		return
	}
	writeJSON(w, http.StatusCreated, daemon)
}

func (h *TopologyHandler) ListDaemons(w http.ResponseWriter, r *http.Request) {
	daemons := h.graph.EnumerateByKind(domain.AtomDaemon)
	writeJSON(w, http.StatusOK, listAtomsResponse{Atoms: daemons, Count: len(daemons)})
}

type addSyncPathRequest struct {
	Path string `json:"path"`
}

func (h *TopologyHandler) AddSyncPath(w http.ResponseWriter, r *http.Request) {
	daemon := chi.URLParam(r, "daemon")
	var req addSyncPathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	atom, err := h.graph.AddSyncPath(daemon, req.Path)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "daemon not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to add sync path")
		return
	}
	writeJSON(w, http.StatusCreated, atom)
}

func (h *TopologyHandler) SyncPaths(w http.ResponseWriter, r *http.Request) {
	daemon := chi.URLParam(r, "daemon")

	paths, err := h.graph.SyncPaths(daemon)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "daemon not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list sync paths")
		return
	}
	writeJSON(w, http.StatusOK, listAtomsResponse{Atoms: paths, Count: len(paths)})
}

type createSwarmRequest struct {
	Name    string   `json:"name"`
	Members []uint64 `json:"members"`
}

func (h *TopologyHandler) CreateSwarm(w http.ResponseWriter, r *http.Request) {
	var req createSwarmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	swarm, err := h.graph.CreateSwarm(req.Name, req.Members)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "swarm member not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create swarm")
		return
	}
	writeJSON(w, http.StatusCreated, swarm)
}

func (h *TopologyHandler) SwarmMembers(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	members, err := h.graph.SwarmMembers(name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "swarm not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list swarm members")
		return
	}
	writeJSON(w, http.StatusOK, listAtomsResponse{Atoms: members, Count: len(members)})
}
