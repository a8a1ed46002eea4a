package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEquityClient(t *testing.T, handler http.HandlerFunc) *EquityClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewEquityClient(srv.URL, 5*time.Second, 100, 100, logger)
}

// testWriter routes client log output into the test log.
type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestEquityClientFinancials(t *testing.T) {
	var gotPath string
	client := newTestEquityClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"ticker": "ACME",
			"market_cap": 2.5e9,
			"total_debt": 4.0e9,
			"equity_vol": 0.62,
			"risk_free_rate": 0.045,
			"debt_horizon_years": 2.0
		}`))
	})

	fin, err := client.Financials(context.Background(), "ACME")
	require.NoError(t, err)

	assert.Equal(t, "/v1/financials/ACME", gotPath)
	assert.Equal(t, "ACME", fin.Ticker)
	assert.Equal(t, 2.5e9, fin.Equity)
	assert.Equal(t, 4.0e9, fin.Debt)
	assert.Equal(t, 0.62, fin.EquityVol)
	assert.Equal(t, 0.045, fin.RiskFree)
	assert.Equal(t, 2.0, fin.Horizon)
}

func TestEquityClientDefaultsHorizon(t *testing.T) {
	client := newTestEquityClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ticker":"ACME","market_cap":1e9,"total_debt":1e9,"equity_vol":0.4,"risk_free_rate":0.03}`))
	})

	fin, err := client.Financials(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, 1.0, fin.Horizon, "missing horizon should default to one year")
}

func TestEquityClientTickerNotFound(t *testing.T) {
	client := newTestEquityClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := client.Financials(context.Background(), "NOPE")
	require.Error(t, err)

	var dataErr *DataUnavailableError
	require.ErrorAs(t, err, &dataErr)
	assert.Equal(t, "NOPE", dataErr.Ticker)
	assert.True(t, errors.Is(err, ErrTickerNotFound))
}

func TestEquityClientUpstreamFailure(t *testing.T) {
	client := newTestEquityClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Financials(context.Background(), "ACME")

	var dataErr *DataUnavailableError
	require.ErrorAs(t, err, &dataErr)
	assert.Contains(t, dataErr.Error(), "unexpected status 500")
}

func TestEquityClientMalformedBody(t *testing.T) {
	client := newTestEquityClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"market_cap": `))
	})

	_, err := client.Financials(context.Background(), "ACME")

	var dataErr *DataUnavailableError
	require.ErrorAs(t, err, &dataErr)
}

func TestEquityClientEscapesTicker(t *testing.T) {
	var gotPath string
	client := newTestEquityClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.Write([]byte(`{"market_cap":1e9,"total_debt":1e9,"equity_vol":0.4}`))
	})

	_, err := client.Financials(context.Background(), "BRK/B")
	require.NoError(t, err)
	assert.Equal(t, "/v1/financials/BRK%2FB", gotPath)
}
