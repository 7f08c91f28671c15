package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Harshitk-cp/cogsync/internal/domain"
	"github.com/Harshitk-cp/cogsync/internal/store"
	"github.com/go-chi/chi/v5"
)

type LinkHandler struct {
	graph *store.Hypergraph
}

func NewLinkHandler(graph *store.Hypergraph) *LinkHandler {
	return &LinkHandler{graph: graph}
}

type createLinkRequest struct {
	Kind     string   `json:"kind"`
	Outgoing []uint64 `json:"outgoing"`
}

func (h *LinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	kind, ok := domain.ParseLinkKind(req.Kind)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid link kind")
		return
	}

	link, err := h.graph.CreateLink(kind, req.Outgoing)
	if err != nil {
		if errors.Is(err, store.ErrEmptyOutgoing) {
			writeError(w, http.StatusBadRequest, "outgoing set is empty")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create link")
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

func (h *LinkHandler) GetByHandle(w http.ResponseWriter, r *http.Request) {
	handle, err := parseHandle(chi.URLParam(r, "handle"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid handle")
		return
	}

	link, err := h.graph.GetLink(handle)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "link not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get link")
		return
	}
	writeJSON(w, http.StatusOK, link)
}

type listLinksResponse struct {
	Links []domain.Link `json:"links"`
	Count int           `json:"count"`
}

func (h *LinkHandler) ListByKind(w http.ResponseWriter, r *http.Request) {
	kind, ok := domain.ParseLinkKind(r.URL.Query().Get("kind"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid link kind")
		return
	}
	links := h.graph.LinksByKind(kind)
	writeJSON(w, http.StatusOK, listLinksResponse{Links: links, Count: len(links)})
}

type outgoingResponse struct {
	Atoms   []domain.Atom `json:"atoms"`
	Missing []uint64      `json:"missing,omitempty"`
}

func (h *LinkHandler) Outgoing(w http.ResponseWriter, r *http.Request) {
	handle, err := parseHandle(chi.URLParam(r, "handle"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid handle")
		return
	}

	atoms, missing, err := h.graph.Outgoing(handle)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "link not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to resolve outgoing set")
		return
	}
	writeJSON(w, http.StatusOK, outgoingResponse{Atoms: atoms, Missing: missing})
}

func (h *LinkHandler) SetTruth(w http.ResponseWriter, r *http.Request) {
	handle, err := parseHandle(chi.URLParam(r, "handle"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid handle")
		return
	}
	var req setTruthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.graph.SetLinkTruthValue(handle, req.Strength, req.Confidence); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "link not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to set truth value")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LinkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	handle, err := parseHandle(chi.URLParam(r, "handle"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid handle")
		return
	}

	if err := h.graph.RemoveLink(handle); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "link not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to remove link")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
