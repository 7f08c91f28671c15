package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/Harshitk-cp/cogsync/internal/domain"
	"github.com/Harshitk-cp/cogsync/internal/peer"
	"github.com/Harshitk-cp/cogsync/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testServer(t *testing.T) (*httptest.Server, *store.Hypergraph) {
	t.Helper()
	graph := store.NewHypergraph()
	overlay := peer.NewOverlay(graph, zap.NewNop())
	app := NewApp(graph, overlay, zap.NewNop())
	srv := httptest.NewServer(app.Router)
	t.Cleanup(srv.Close)
	return srv, graph
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req, err := http.NewRequest(method, url, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestAtomEndpoints(t *testing.T) {
	srv, graph := testServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/atoms", map[string]any{
		"kind": "daemon", "name": "syncd-alpha",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created domain.Atom
	decode(t, resp, &created)
	assert.NotZero(t, created.Handle)
	assert.Equal(t, "syncd-alpha", created.Name)
	assert.Equal(t, domain.AtomDaemon, created.Kind)

	resp = doJSON(t, http.MethodGet, srv.URL+"/v1/atoms/find?kind=daemon&name=syncd-alpha", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var found domain.Atom
	decode(t, resp, &found)
	assert.Equal(t, created.Handle, found.Handle)

	resp = doJSON(t, http.MethodGet, srv.URL+"/v1/atoms/999999", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/atoms", map[string]any{
		"kind": "nonsense", "name": "x",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()

	resp = doJSON(t, http.MethodPut, srv.URL+"/v1/atoms/"+itoa(created.Handle)+"/truth", map[string]any{
		"strength": 0.6, "confidence": 0.4,
	})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = resp.Body.Close()

	got, err := graph.PeekAtom(created.Handle)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, got.TV.Strength, 1e-6)
	assert.InDelta(t, 0.4, got.TV.Confidence, 1e-6)
}

func TestLinkAndInferenceEndpoints(t *testing.T) {
	srv, graph := testServer(t)

	a := graph.CreateAtom(domain.AtomDaemon, "a")
	b := graph.CreateAtom(domain.AtomDaemon, "b")
	c := graph.CreateAtom(domain.AtomDaemon, "c")

	resp := doJSON(t, http.MethodPost, srv.URL+"/v1/links", map[string]any{
		"kind": "inheritance", "outgoing": []uint64{a.Handle, b.Handle},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var ab domain.Link
	decode(t, resp, &ab)

	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/links", map[string]any{
		"kind": "inheritance", "outgoing": []uint64{b.Handle, c.Handle},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var bc domain.Link
	decode(t, resp, &bc)

	require.NoError(t, graph.SetLinkTruthValue(ab.Handle, 0.9, 0.8))
	require.NoError(t, graph.SetLinkTruthValue(bc.Handle, 0.8, 0.7))

	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/inference/deduce", map[string]any{
		"ab": ab.Handle, "bc": bc.Handle,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var deduced struct {
		Inferred *domain.Link `json:"inferred"`
	}
	decode(t, resp, &deduced)
	require.NotNil(t, deduced.Inferred)
	assert.Equal(t, a.Handle, deduced.Inferred.Outgoing[0])
	assert.Equal(t, c.Handle, deduced.Inferred.Outgoing[1])

	resp = doJSON(t, http.MethodPost, srv.URL+"/v1/atoms/"+itoa(a.Handle)+"/observe", map[string]any{
		"success": true, "duration_ms": 100, "bytes": 2048,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var tv domain.TruthValue
	decode(t, resp, &tv)
	assert.Greater(t, tv.Confidence, float32(0))
}

func TestSyncPolicyEndpoints(t *testing.T) {
	srv, _ := testServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/v1/sync/policy", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var policy struct {
		Policy string `json:"policy"`
	}
	decode(t, resp, &policy)
	assert.Equal(t, "merge_belief", policy.Policy)

	resp = doJSON(t, http.MethodPut, srv.URL+"/v1/sync/policy", map[string]any{
		"policy": "highest_confidence",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &policy)
	assert.Equal(t, "highest_confidence", policy.Policy)

	resp = doJSON(t, http.MethodPut, srv.URL+"/v1/sync/policy", map[string]any{
		"policy": "coin_flip",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestHealthEndpoint(t *testing.T) {
	srv, graph := testServer(t)
	graph.CreateAtom(domain.AtomNode, "x")

	resp := doJSON(t, http.MethodGet, srv.URL+"/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health struct {
		Status string `json:"status"`
		Atoms  int    `json:"atoms"`
	}
	decode(t, resp, &health)
	assert.Equal(t, "ok", health.Status)
	// The topology root is created at app construction.
	assert.Equal(t, 2, health.Atoms)
}

func itoa(v uint64) string {
	return strconv.FormatUint(v, 10)
}
