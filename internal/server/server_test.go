package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prometheus88/Simple-PFT-Node/internal/analysis"
	"github.com/prometheus88/Simple-PFT-Node/internal/metrics"
	"github.com/prometheus88/Simple-PFT-Node/internal/models"
	"github.com/prometheus88/Simple-PFT-Node/internal/monitor"
)

var (
	_ StatusSource = (*monitor.Monitor)(nil)
	_ Analyzer     = (*analysis.Client)(nil)
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

type fakeStatus struct {
	status *models.NodeStatus
}

func (f *fakeStatus) Status() *models.NodeStatus { return f.status }

type fakeAnalyzer struct {
	result *models.AnalysisResult
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, memo string) *models.AnalysisResult {
	return f.result
}

func newTestServer(t *testing.T, h *Handlers, cfg ServerConfig) *Server {
	t.Helper()
	if h.Logger == nil {
		h.Logger = quietLogger()
	}
	srv, err := NewServer(h, cfg)
	require.NoError(t, err)
	return srv
}

func doRequest(srv *Server, method, target string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &Handlers{}, ServerConfig{})

	rec := doRequest(srv, http.MethodGet, "/v1/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
}

func TestNodeStatus_LiveSource(t *testing.T) {
	srv := newTestServer(t, &Handlers{
		Status: &fakeStatus{status: &models.NodeStatus{
			State:     "SUBSCRIBED",
			Wallet:    "NodeWallet111",
			Mint:      "Mint111",
			Processed: 7,
			Responded: 5,
			Skipped:   2,
			StartedAt: time.Now().UTC(),
		}},
	}, ServerConfig{})

	rec := doRequest(srv, http.MethodGet, "/v1/status", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.NodeStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "SUBSCRIBED", resp.State)
	assert.Equal(t, "NodeWallet111", resp.Wallet)
	assert.Equal(t, uint64(5), resp.Responded)
}

func TestNodeStatus_Unavailable(t *testing.T) {
	srv := newTestServer(t, &Handlers{}, ServerConfig{})

	rec := doRequest(srv, http.MethodGet, "/v1/status", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestRecentResponses_NoStore(t *testing.T) {
	srv := newTestServer(t, &Handlers{}, ServerConfig{})

	rec := doRequest(srv, http.MethodGet, "/v1/responses/recent", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRecentResponses_InvalidLimit(t *testing.T) {
	srv := newTestServer(t, &Handlers{}, ServerConfig{})

	for _, limit := range []string{"abc", "0", "201", "-5"} {
		rec := doRequest(srv, http.MethodGet, "/v1/responses/recent?limit="+limit, nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
}

func TestAnalyze(t *testing.T) {
	srv := newTestServer(t, &Handlers{
		Analyzer: &fakeAnalyzer{result: &models.AnalysisResult{
			Text:  "sender is asking about fees",
			Model: "test-model",
			OK:    true,
		}},
	}, ServerConfig{})

	body := strings.NewReader(`{"memo":"what are your fees?"}`)
	rec := doRequest(srv, http.MethodPost, "/v1/analyze", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sender is asking about fees", resp.Analysis)
	assert.Equal(t, "test-model", resp.Model)
}

func TestAnalyze_NotConfigured(t *testing.T) {
	srv := newTestServer(t, &Handlers{}, ServerConfig{})

	rec := doRequest(srv, http.MethodPost, "/v1/analyze", strings.NewReader(`{"memo":"hi"}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyze_EmptyMemo(t *testing.T) {
	srv := newTestServer(t, &Handlers{
		Analyzer: &fakeAnalyzer{result: &models.AnalysisResult{OK: true}},
	}, ServerConfig{})

	rec := doRequest(srv, http.MethodPost, "/v1/analyze", strings.NewReader(`{"memo":"  "}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyze_BackendFailure(t *testing.T) {
	srv := newTestServer(t, &Handlers{
		Analyzer: &fakeAnalyzer{result: &models.AnalysisResult{OK: false}},
	}, ServerConfig{})

	rec := doRequest(srv, http.MethodPost, "/v1/analyze", strings.NewReader(`{"memo":"hi"}`), nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestAnalyze_RateLimited(t *testing.T) {
	srv := newTestServer(t, &Handlers{
		Analyzer: &fakeAnalyzer{result: &models.AnalysisResult{Text: "ok", OK: true}},
	}, ServerConfig{})

	var last int
	for i := 0; i < 3; i++ {
		rec := doRequest(srv, http.MethodPost, "/v1/analyze", strings.NewReader(`{"memo":"hi"}`), nil)
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestKeyAuth(t *testing.T) {
	srv := newTestServer(t, &Handlers{
		Status: &fakeStatus{status: &models.NodeStatus{State: "SUBSCRIBED"}},
	}, ServerConfig{APIKey: "secret"})

	// Protected route without a key.
	rec := doRequest(srv, http.MethodGet, "/v1/status", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong key.
	rec = doRequest(srv, http.MethodGet, "/v1/status", nil, map[string]string{"X-API-Key": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Correct key.
	rec = doRequest(srv, http.MethodGet, "/v1/status", nil, map[string]string{"X-API-Key": "secret"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays open for probes.
	rec = doRequest(srv, http.MethodGet, "/v1/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)
	m.RecordPaymentObserved()

	srv := newTestServer(t, &Handlers{Metrics: registry}, ServerConfig{APIKey: "secret"})

	// Scrapers need no key.
	rec := doRequest(srv, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "payments_observed_total")
}

func TestRouteNotFound(t *testing.T) {
	srv := newTestServer(t, &Handlers{}, ServerConfig{})

	rec := doRequest(srv, http.MethodGet, "/nope", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
