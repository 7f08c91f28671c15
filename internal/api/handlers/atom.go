package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Harshitk-cp/cogsync/internal/domain"
	"github.com/Harshitk-cp/cogsync/internal/store"
	"github.com/go-chi/chi/v5"
)

type AtomHandler struct {
	graph *store.Hypergraph
}

func NewAtomHandler(graph *store.Hypergraph) *AtomHandler {
	return &AtomHandler{graph: graph}
}

type createAtomRequest struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

func (h *AtomHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAtomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	kind, ok := domain.ParseAtomKind(req.Kind)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid atom kind")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	atom := h.graph.CreateAtom(kind, req.Name)
	writeJSON(w, http.StatusCreated, atom)
}

func (h *AtomHandler) GetByHandle(w http.ResponseWriter, r *http.Request) {
	handle, err := parseHandle(chi.URLParam(r, "handle"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid handle")
		return
	}

	atom, err := h.graph.GetAtom(handle)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "atom not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get atom")
		return
	}
	writeJSON(w, http.StatusOK, atom)
}

func (h *AtomHandler) Find(w http.ResponseWriter, r *http.Request) {
	kind, ok := domain.ParseAtomKind(r.URL.Query().Get("kind"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid atom kind")
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	atom, err := h.graph.FindAtom(kind, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "atom not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to find atom")
		return
	}
	writeJSON(w, http.StatusOK, atom)
}

type listAtomsResponse struct {
	Atoms []domain.Atom `json:"atoms"`
	Count int           `json:"count"`
}

func (h *AtomHandler) ListByKind(w http.ResponseWriter, r *http.Request) {
	kind, ok := domain.ParseAtomKind(r.URL.Query().Get("kind"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid atom kind")
		return
	}
	atoms := h.graph.EnumerateByKind(kind)
	writeJSON(w, http.StatusOK, listAtomsResponse{Atoms: atoms, Count: len(atoms)})
}

func (h *AtomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	handle, err := parseHandle(chi.URLParam(r, "handle"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid handle")
		return
	}

	if err := h.graph.RemoveAtom(handle); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "atom not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to remove atom")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setTruthRequest struct {
	Strength   float32 `json:"strength"`
	Confidence float32 `json:"confidence"`
}

func (h *AtomHandler) SetTruth(w http.ResponseWriter, r *http.Request) {
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

	if err := h.graph.SetTruthValue(handle, req.Strength, req.Confidence); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "atom not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to set truth value")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setAttentionRequest struct {
	STI *int32 `json:"sti,omitempty"`
	LTI *int32 `json:"lti,omitempty"`
}

func (h *AtomHandler) SetAttention(w http.ResponseWriter, r *http.Request) {
	handle, err := parseHandle(chi.URLParam(r, "handle"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid handle")
		return
	}
	var req setAttentionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.STI == nil && req.LTI == nil {
		writeError(w, http.StatusBadRequest, "sti or lti is required")
		return
	}

	if req.STI != nil {
		if err := h.graph.SetSTI(handle, *req.STI); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "atom not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to set sti")
			return
		}
	}
	if req.LTI != nil {
		if err := h.graph.SetLTI(handle, *req.LTI); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "atom not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to set lti")
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AtomHandler) Attention(w http.ResponseWriter, r *http.Request) {
	n := 10
	if s := r.URL.Query().Get("n"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid n")
			return
		}
		n = parsed
	}

	h.graph.UpdateAttention()
	atoms := h.graph.AttentionTop(n)
	writeJSON(w, http.StatusOK, listAtomsResponse{Atoms: atoms, Count: len(atoms)})
}

func parseHandle(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}
