package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creditpulse/internal/merton"
	"creditpulse/internal/services"
)

type fakeEquity struct {
	fin merton.FirmFinancials
	err error
}

func (f *fakeEquity) Financials(ctx context.Context, ticker string) (merton.FirmFinancials, error) {
	if f.err != nil {
		return merton.FirmFinancials{}, f.err
	}
	fin := f.fin
	fin.Ticker = ticker
	return fin, nil
}

type fakeSpreads struct {
	bps float64
	err error
}

func (f *fakeSpreads) SpreadBps(ctx context.Context, rating merton.Rating) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.bps, nil
}

func newTestRouter(t *testing.T, equity services.EquityDataProvider, spreads services.MarketSpreadProvider) *chi.Mux {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	analyzer, err := merton.NewAnalyzer(merton.DefaultConfig(), logger)
	require.NoError(t, err)
	svc := services.NewAnalysisService(analyzer, equity, spreads, nil, logger)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		NewAnalysisHandler(svc, logger).RegisterRoutes(r)
	})
	return r
}

func distressedBody(marketSpread float64) string {
	return fmt.Sprintf(`{
		"ticker": "DSTR",
		"equity": 1e9,
		"debt": 4e9,
		"equity_vol": 0.80,
		"risk_free": 0.045,
		"horizon": 1.0,
		"market_spread_bps": %g
	}`, marketSpread)
}

func postJSON(t *testing.T, r http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeEndpointWithInputs(t *testing.T) {
	r := newTestRouter(t, nil, nil)

	rec := postJSON(t, r, "/api/v1/analysis", distressedBody(80))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res merton.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, merton.SignalStrongShort, res.Signal.Signal)
	assert.Equal(t, 80.0, res.MarketSpreadBps)
	assert.Greater(t, res.Solution.AssetValue, res.Inputs.Equity)
}

func TestAnalyzeEndpointByTicker(t *testing.T) {
	equity := &fakeEquity{fin: merton.FirmFinancials{
		Equity: 1e9, Debt: 4e9, EquityVol: 0.80, RiskFree: 0.045, Horizon: 1.0,
	}}
	spreads := &fakeSpreads{bps: 900}
	r := newTestRouter(t, equity, spreads)

	rec := postJSON(t, r, "/api/v1/analysis", `{"ticker":"DSTR"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res merton.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "DSTR", res.Inputs.Ticker)
	assert.Equal(t, 900.0, res.MarketSpreadBps)
}

func TestAnalyzeEndpointRejectsEmptyRequest(t *testing.T) {
	r := newTestRouter(t, nil, nil)

	rec := postJSON(t, r, "/api/v1/analysis", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "/errors/validation")
}

func TestAnalyzeEndpointRejectsMalformedJSON(t *testing.T) {
	r := newTestRouter(t, nil, nil)

	rec := postJSON(t, r, "/api/v1/analysis", `{"equity": `)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeEndpointInvalidInputs(t *testing.T) {
	r := newTestRouter(t, nil, nil)

	body := `{"equity": 1e9, "debt": -4e9, "equity_vol": 0.8, "market_spread_bps": 80}`
	rec := postJSON(t, r, "/api/v1/analysis", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "/errors/analysis/invalid-inputs")
}

func TestAnalyzeEndpointSolverFailure(t *testing.T) {
	r := newTestRouter(t, nil, nil)

	body := `{"equity": 1, "debt": 1e12, "equity_vol": 0.01, "risk_free": 0.04, "horizon": 1.0, "market_spread_bps": 100}`
	rec := postJSON(t, r, "/api/v1/analysis", body)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	var problem map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "/errors/analysis/solver-not-converged", problem["type"])
	assert.Contains(t, problem, "best_residual")
}

func TestAnalyzeEndpointUpstreamFailure(t *testing.T) {
	equity := &fakeEquity{err: &services.DataUnavailableError{Ticker: "DSTR", Cause: services.ErrTickerNotFound}}
	r := newTestRouter(t, equity, nil)

	rec := postJSON(t, r, "/api/v1/analysis", `{"ticker":"DSTR","market_spread_bps":80}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "/errors/providers/equity-data-unavailable")
}

func TestSensitivityEndpoint(t *testing.T) {
	r := newTestRouter(t, nil, nil)

	rec := postJSON(t, r, "/api/v1/analysis/sensitivity", distressedBody(80))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report merton.SensitivityReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.NotEmpty(t, report.Volatility)
	assert.NotEmpty(t, report.Debt)
	assert.NotEmpty(t, report.Stress)
	assert.Equal(t, 80.0, report.MarketSpreadBps)
}

func TestLatestEndpoint(t *testing.T) {
	r := newTestRouter(t, nil, nil)

	// No analysis yet.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/DSTR", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Run one, then fetch it back.
	postJSON(t, r, "/api/v1/analysis", distressedBody(80))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/analysis/dstr", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var res merton.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "DSTR", res.Inputs.Ticker)
}

func TestExportEndpointCSV(t *testing.T) {
	r := newTestRouter(t, nil, nil)
	postJSON(t, r, "/api/v1/analysis", distressedBody(80))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/DSTR/export?format=csv", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "ticker,timestamp"))
	assert.Contains(t, rec.Body.String(), "DSTR")
}

func TestExportEndpointXLSX(t *testing.T) {
	r := newTestRouter(t, nil, nil)
	postJSON(t, r, "/api/v1/analysis", distressedBody(80))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/DSTR/export?format=xlsx", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	// XLSX payloads are zip archives.
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))
}

func TestExportEndpointUnknownFormat(t *testing.T) {
	r := newTestRouter(t, nil, nil)
	postJSON(t, r, "/api/v1/analysis", distressedBody(80))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/DSTR/export?format=pdf", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		NewHealthHandler("1.2.3", logger).RegisterRoutes(r)
	})

	for _, path := range []string{"/api/v1/health", "/api/v1/health/live", "/api/v1/health/ready", "/api/v1/version"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/version", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Contains(t, rec.Body.String(), "1.2.3")
}
