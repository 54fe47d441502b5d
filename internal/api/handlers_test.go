package api_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asmit27rai/cardsight/internal/api"
	"github.com/asmit27rai/cardsight/internal/engine"
	"github.com/asmit27rai/cardsight/pkg/estimates"
)

func setupTestRouter(t *testing.T, words []string) (*mux.Router, *engine.EstimationEngine) {
	t.Helper()
	e := engine.NewEstimationEngine(engine.EngineConfig{MaxItemsPerCollection: 100000})
	router := mux.NewRouter()
	api.RegisterRoutes(router.PathPrefix("/api/v1").Subrouter(), api.NewHandler(e, words))
	return router, e
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) (int, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	resp := w.Result()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(data)
}

func TestIngestAndEstimate(t *testing.T) {
	router, _ := setupTestRouter(t, nil)

	status, body := doRequest(t, router, "POST", "/api/v1/collections/letters/items", `{"items":["a","b","a","c","b","d"]}`)
	require.Equal(t, http.StatusAccepted, status, body)
	assert.Contains(t, body, `"ingested":6`)

	status, body = doRequest(t, router, "GET", "/api/v1/estimate?collection=letters&algorithm=exact", "")
	require.Equal(t, http.StatusOK, status, body)

	var result estimates.EstimateResult
	require.NoError(t, json.Unmarshal([]byte(body), &result))
	assert.Equal(t, 4.0, result.Estimate)
	assert.Equal(t, 6, result.Items)
	assert.NotEmpty(t, result.ID)

	status, body = doRequest(t, router, "POST", "/api/v1/estimate", `{"id":"q2","collection":"letters","algorithm":"hyperloglog","b":4}`)
	require.Equal(t, http.StatusOK, status, body)
	require.NoError(t, json.Unmarshal([]byte(body), &result))
	assert.Equal(t, "q2", result.ID)
	assert.InDelta(t, 22.18070977791825, result.Estimate, 1e-9)
	assert.True(t, result.IsApproximate)
}

func TestEstimateErrors(t *testing.T) {
	router, e := setupTestRouter(t, nil)
	require.NoError(t, e.Ingest("letters", "a", "b"))

	cases := []struct {
		method, path, body string
		status             int
	}{
		{"GET", "/api/v1/estimate", "", http.StatusBadRequest},
		{"GET", "/api/v1/estimate?collection=letters&b=abc", "", http.StatusBadRequest},
		{"GET", "/api/v1/estimate?collection=letters&algorithm=hyperloglog&b=17", "", http.StatusBadRequest},
		{"GET", "/api/v1/estimate?collection=letters&algorithm=hyperloglog&b=3", "", http.StatusBadRequest},
		{"GET", "/api/v1/estimate?collection=letters&hasher=md5", "", http.StatusBadRequest},
		{"GET", "/api/v1/estimate?collection=letters&algorithm=median", "", http.StatusBadRequest},
		{"GET", "/api/v1/estimate?collection=nope", "", http.StatusNotFound},
		{"POST", "/api/v1/estimate", "{bad json", http.StatusBadRequest},
		{"POST", "/api/v1/collections/x/items", "not json", http.StatusBadRequest},
	}

	for _, tc := range cases {
		status, body := doRequest(t, router, tc.method, tc.path, tc.body)
		assert.Equalf(t, tc.status, status, "%s %s: %s", tc.method, tc.path, body)
		assert.Contains(t, body, `"error"`)
	}
}

func TestEstimateBatch(t *testing.T) {
	router, e := setupTestRouter(t, nil)
	require.NoError(t, e.Ingest("letters", "a", "b", "c"))

	status, body := doRequest(t, router, "POST", "/api/v1/estimate/batch",
		`[{"collection":"letters","algorithm":"exact"},{"collection":"missing","algorithm":"exact"}]`)
	require.Equal(t, http.StatusOK, status, body)

	var resp struct {
		Count   int `json:"count"`
		Results []struct {
			ID       string  `json:"id"`
			Estimate float64 `json:"estimate"`
			Error    string  `json:"error"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, 3.0, resp.Results[0].Estimate)
	assert.Empty(t, resp.Results[0].Error)
	assert.Contains(t, resp.Results[1].Error, "unknown collection")
	assert.NotEmpty(t, resp.Results[1].ID)
}

func TestCollectionsLifecycle(t *testing.T) {
	router, e := setupTestRouter(t, nil)
	require.NoError(t, e.Ingest("one", "x"))

	status, body := doRequest(t, router, "GET", "/api/v1/collections", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"name":"one"`)

	status, _ = doRequest(t, router, "DELETE", "/api/v1/collections/one", "")
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = doRequest(t, router, "DELETE", "/api/v1/collections/one", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCollectionFull(t *testing.T) {
	e := engine.NewEstimationEngine(engine.EngineConfig{MaxItemsPerCollection: 2})
	router := mux.NewRouter()
	api.RegisterRoutes(router.PathPrefix("/api/v1").Subrouter(), api.NewHandler(e, nil))

	status, _ := doRequest(t, router, "POST", "/api/v1/collections/c/items", `{"items":["a","b","c"]}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)
}

func TestGenerateTestData(t *testing.T) {
	router, e := setupTestRouter(t, []string{"apple", "banana", "cherry"})

	status, body := doRequest(t, router, "POST", "/api/v1/demo/generate", `{"collection":"fruit","count":50,"seed":3}`)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Contains(t, body, `"source":"words"`)

	result, err := e.Execute(&estimates.EstimateRequest{Collection: "fruit", Algorithm: estimates.Exact})
	require.NoError(t, err)
	assert.LessOrEqual(t, result.Estimate, 3.0)
	assert.Equal(t, 50, result.Items)

	synthetic, se := setupTestRouter(t, nil)
	status, body = doRequest(t, synthetic, "POST", "/api/v1/demo/generate", `{}`)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Contains(t, body, `"source":"synthetic"`)

	result, err = se.Execute(&estimates.EstimateRequest{Collection: "demo", Algorithm: estimates.Exact})
	require.NoError(t, err)
	assert.Equal(t, 1000.0, result.Estimate)
}

func TestStatsHealthMetrics(t *testing.T) {
	router, e := setupTestRouter(t, nil)
	require.NoError(t, e.Ingest("letters", "a", "b"))
	doRequest(t, router, "GET", "/api/v1/estimate?collection=letters&algorithm=exact", "")

	status, body := doRequest(t, router, "GET", "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"healthy"`)

	status, body = doRequest(t, router, "GET", "/api/v1/stats", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"total_estimates":1`)

	status, body = doRequest(t, router, "GET", "/api/v1/stats/engine", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"items_ingested":2`)

	status, body = doRequest(t, router, "GET", "/api/v1/metrics", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `cardsight_estimates_total{type="total"} 1`)
	assert.Contains(t, body, `cardsight_collection_items{collection="letters"} 2`)

	status, body = doRequest(t, router, "GET", "/api/v1/hashers", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"xxh3"`)
}
