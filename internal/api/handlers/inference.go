package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Harshitk-cp/cogsync/internal/domain"
	"github.com/Harshitk-cp/cogsync/internal/service"
	"github.com/Harshitk-cp/cogsync/internal/store"
	"github.com/go-chi/chi/v5"
)

type InferenceHandler struct {
	graph     *store.Hypergraph
	inference *service.InferenceService
}

func NewInferenceHandler(graph *store.Hypergraph, inference *service.InferenceService) *InferenceHandler {
	return &InferenceHandler{graph: graph, inference: inference}
}

type deduceRequest struct {
	AB uint64 `json:"ab"`
	BC uint64 `json:"bc"`
}

type deduceResponse struct {
	Inferred *domain.Link `json:"inferred"`
}

func (h *InferenceHandler) Deduce(w http.ResponseWriter, r *http.Request) {
	var req deduceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ab, err := h.graph.GetLink(req.AB)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "link not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get link")
		return
	}
	bc, err := h.graph.GetLink(req.BC)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "link not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get link")
		return
	}

	inferred, err := h.inference.Deduce(ab, bc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "deduction failed")
		return
	}
	writeJSON(w, http.StatusOK, deduceResponse{Inferred: inferred})
}

type reviseRequest struct {
	First  domain.TruthValue `json:"first"`
	Second domain.TruthValue `json:"second"`
}

func (h *InferenceHandler) Revise(w http.ResponseWriter, r *http.Request) {
	var req reviseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	writeJSON(w, http.StatusOK, service.Revise(req.First, req.Second))
}

type observeRequest struct {
	Success    bool  `json:"success"`
	DurationMS int64 `json:"duration_ms"`
	Bytes      uint64 `json:"bytes"`
}

func (h *InferenceHandler) Observe(w http.ResponseWriter, r *http.Request) {
	handle, err := parseHandle(chi.URLParam(r, "handle"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid handle")
		return
	}
	var req observeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tv, err := h.inference.UpdateFromObservation(handle, req.Success, time.Duration(req.DurationMS)*time.Millisecond, req.Bytes)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "atom not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to record observation")
		return
	}
	writeJSON(w, http.StatusOK, tv)
}

func (h *InferenceHandler) Predict(w http.ResponseWriter, r *http.Request) {
	handle, err := parseHandle(chi.URLParam(r, "handle"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid handle")
		return
	}

	tv, err := h.inference.Predict(handle)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "atom not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "prediction failed")
		return
	}
	writeJSON(w, http.StatusOK, tv)
}

type similarityRequest struct {
	First  uint64 `json:"first"`
	Second uint64 `json:"second"`
}

func (h *InferenceHandler) Similarity(w http.ResponseWriter, r *http.Request) {
	var req similarityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tv, err := h.inference.SimilarityByHandle(req.First, req.Second)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "atom not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "similarity failed")
		return
	}
	writeJSON(w, http.StatusOK, tv)
}

type patternsResponse struct {
	Patterns []service.SyncPattern `json:"patterns"`
	Count    int                   `json:"count"`
}

func (h *InferenceHandler) Patterns(w http.ResponseWriter, r *http.Request) {
	patterns := h.inference.SyncPatterns(0)
	writeJSON(w, http.StatusOK, patternsResponse{Patterns: patterns, Count: len(patterns)})
}

type intervalResponse struct {
	Interval string `json:"interval"`
	Seconds  int64  `json:"seconds"`
}

func (h *InferenceHandler) Interval(w http.ResponseWriter, r *http.Request) {
	handle, err := parseHandle(chi.URLParam(r, "handle"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid handle")
		return
	}

	interval, err := h.inference.OptimalInterval(handle)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "atom not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to compute interval")
		return
	}
	writeJSON(w, http.StatusOK, intervalResponse{Interval: interval.String(), Seconds: int64(interval.Seconds())})
}

func (h *InferenceHandler) Counters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.inference.Counters())
}
