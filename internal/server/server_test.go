package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyconnectsl/travelcore-router/internal/classifier"
	"github.com/skyconnectsl/travelcore-router/internal/corerouter"
	"github.com/skyconnectsl/travelcore-router/internal/dataengine"
	"github.com/skyconnectsl/travelcore-router/internal/observability"
	"github.com/skyconnectsl/travelcore-router/internal/ragengine"
	"github.com/skyconnectsl/travelcore-router/internal/store/memstore"
	"github.com/skyconnectsl/travelcore-router/internal/types"
	"github.com/skyconnectsl/travelcore-router/internal/vectorstore/memvectorstore"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := testLogger()
	cls := classifier.New(context.Background(), nil, 0.6, logger)
	de := dataengine.New(memstore.New())
	re := ragengine.New(memvectorstore.New(memvectorstore.BagOfWordsEmbedder{}), nil, 0.75)
	rec := observability.NewRecorder(logger, prometheus.NewRegistry(), 64)
	router := corerouter.New(cls, de, re, nil, rec, logger, corerouter.Config{})

	srv, err := NewServer(router, &ServerConfig{Port: "0"}, logger)
	require.NoError(t, err)
	return srv
}

func TestHandleQuery_ReturnsRouterResponse(t *testing.T) {
	srv := newTestServer(t)
	r := srv.setupRoutes()

	body, _ := json.Marshal(types.CoreRequest{
		Query:  "find a tour in Kandy",
		UserID: "u1",
		Role:   types.RoleTraveler,
	})
	req := httptest.NewRequest("POST", "/v1/query", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))

	var resp types.QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, types.IntentRecommendation, resp.Intent)
	assert.Equal(t, types.DataSourceDatabase, resp.DataSource)
}

func TestHandleQuery_RejectsInvalidRole(t *testing.T) {
	srv := newTestServer(t)
	r := srv.setupRoutes()

	body, _ := json.Marshal(map[string]interface{}{
		"query":   "find a tour",
		"user_id": "u1",
		"role":    "super-admin",
	})
	req := httptest.NewRequest("POST", "/v1/query", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleQuery_RejectsMalformedJSON(t *testing.T) {
	srv := newTestServer(t)
	r := srv.setupRoutes()

	req := httptest.NewRequest("POST", "/v1/query", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleHealthCheck_ReportsHealthy(t *testing.T) {
	srv := newTestServer(t)
	r := srv.setupRoutes()

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestMetricsEndpoint_ServesPrometheusFormat(t *testing.T) {
	srv := newTestServer(t)
	r := srv.setupRoutes()

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}
