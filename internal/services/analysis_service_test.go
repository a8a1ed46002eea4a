package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creditpulse/internal/merton"
)

type stubEquity struct {
	fin merton.FirmFinancials
	err error
}

func (s *stubEquity) Financials(ctx context.Context, ticker string) (merton.FirmFinancials, error) {
	if s.err != nil {
		return merton.FirmFinancials{}, s.err
	}
	fin := s.fin
	fin.Ticker = ticker
	return fin, nil
}

type stubSpreads struct {
	bps  float64
	err  error
	seen []merton.Rating
}

func (s *stubSpreads) SpreadBps(ctx context.Context, rating merton.Rating) (float64, error) {
	s.seen = append(s.seen, rating)
	if s.err != nil {
		return 0, s.err
	}
	return s.bps, nil
}

type stubMetrics struct {
	mu           sync.Mutex
	analyses     []string
	sensitivity  int
	sensScenN    int
	sensFailedN  int
	lastDuration time.Duration
}

func (m *stubMetrics) RecordAnalysis(outcome, method string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyses = append(m.analyses, outcome)
	m.lastDuration = d
}

func (m *stubMetrics) RecordSensitivity(scenarios, failed int, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sensitivity++
	m.sensScenN = scenarios
	m.sensFailedN = failed
}

func distressedFirm() merton.FirmFinancials {
	return merton.FirmFinancials{
		Ticker:    "DSTR",
		Equity:    1.0e9,
		Debt:      4.0e9,
		EquityVol: 0.80,
		RiskFree:  0.045,
		Horizon:   1.0,
	}
}

func newTestService(t *testing.T, equity EquityDataProvider, spreads MarketSpreadProvider, metrics AnalysisMetrics) *AnalysisService {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))
	analyzer, err := merton.NewAnalyzer(merton.DefaultConfig(), logger)
	require.NoError(t, err)
	return NewAnalysisService(analyzer, equity, spreads, metrics, logger)
}

func TestAnalyzeInputsWithExplicitSpread(t *testing.T) {
	spreads := &stubSpreads{bps: 999}
	metrics := &stubMetrics{}
	svc := newTestService(t, nil, spreads, metrics)

	market := 80.0
	res, err := svc.AnalyzeInputs(context.Background(), distressedFirm(), &market)
	require.NoError(t, err)

	assert.Equal(t, 80.0, res.MarketSpreadBps)
	assert.Empty(t, spreads.seen, "explicit spread should bypass the benchmark provider")
	assert.Equal(t, []string{"success"}, metrics.analyses)

	// The result is retained for later retrieval.
	latest, err := svc.Latest("dstr")
	require.NoError(t, err)
	assert.Equal(t, res.ID, latest.ID)
}

func TestAnalyzeInputsResolvesBenchmarkSpread(t *testing.T) {
	spreads := &stubSpreads{bps: 900}
	svc := newTestService(t, nil, spreads, nil)

	res, err := svc.AnalyzeInputs(context.Background(), distressedFirm(), nil)
	require.NoError(t, err)

	require.Len(t, spreads.seen, 1)
	assert.Equal(t, merton.RatingCCC, spreads.seen[0])
	assert.Equal(t, 900.0, res.MarketSpreadBps)
}

func TestAnalyzeInputsBenchmarkProviderFailure(t *testing.T) {
	sentinel := errors.New("fred is down")
	spreads := &stubSpreads{err: &BenchmarkUnavailableError{Rating: merton.RatingCCC, Cause: sentinel}}
	metrics := &stubMetrics{}
	svc := newTestService(t, nil, spreads, metrics)

	_, err := svc.AnalyzeInputs(context.Background(), distressedFirm(), nil)
	require.Error(t, err)

	var benchErr *BenchmarkUnavailableError
	assert.ErrorAs(t, err, &benchErr)
	assert.Equal(t, []string{"failed"}, metrics.analyses)
}

func TestAnalyzeInputsBenchmarkDisabled(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)

	_, err := svc.AnalyzeInputs(context.Background(), distressedFirm(), nil)

	var benchErr *BenchmarkUnavailableError
	require.ErrorAs(t, err, &benchErr)
	assert.True(t, errors.Is(err, ErrProviderDisabled))
}

func TestAnalyzeInputsRecordsFailure(t *testing.T) {
	metrics := &stubMetrics{}
	svc := newTestService(t, nil, nil, metrics)

	bad := distressedFirm()
	bad.Equity = -1
	market := 100.0
	_, err := svc.AnalyzeInputs(context.Background(), bad, &market)

	require.Error(t, err)
	assert.Equal(t, []string{"failed"}, metrics.analyses)
}

func TestAnalyzeTicker(t *testing.T) {
	equity := &stubEquity{fin: distressedFirm()}
	svc := newTestService(t, equity, nil, nil)

	market := 80.0
	res, err := svc.AnalyzeTicker(context.Background(), "DSTR", &market)
	require.NoError(t, err)
	assert.Equal(t, "DSTR", res.Inputs.Ticker)

	// Retrieval is case-insensitive on ticker.
	_, err = svc.Latest("DsTr")
	assert.NoError(t, err)
}

func TestAnalyzeTickerEquityProviderDisabled(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)

	market := 80.0
	_, err := svc.AnalyzeTicker(context.Background(), "DSTR", &market)

	var dataErr *DataUnavailableError
	require.ErrorAs(t, err, &dataErr)
	assert.Equal(t, "DSTR", dataErr.Ticker)
	assert.True(t, errors.Is(err, ErrProviderDisabled))
}

func TestAnalyzeTickerEquityProviderFailure(t *testing.T) {
	equity := &stubEquity{err: &DataUnavailableError{Ticker: "DSTR", Cause: ErrTickerNotFound}}
	svc := newTestService(t, equity, nil, nil)

	market := 80.0
	_, err := svc.AnalyzeTicker(context.Background(), "DSTR", &market)
	assert.True(t, errors.Is(err, ErrTickerNotFound))
}

func TestLatestUnknownTicker(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)

	_, err := svc.Latest("GHOST")
	assert.ErrorIs(t, err, ErrAnalysisNotFound)
}

func TestSensitivityWithExplicitSpread(t *testing.T) {
	metrics := &stubMetrics{}
	svc := newTestService(t, nil, nil, metrics)

	market := 80.0
	report, err := svc.Sensitivity(context.Background(), distressedFirm(), &market)
	require.NoError(t, err)

	assert.Equal(t, 80.0, report.MarketSpreadBps)
	assert.Equal(t, 1, metrics.sensitivity)
	expected := len(report.Volatility) + len(report.Debt) + len(report.Stress)
	assert.Equal(t, expected, metrics.sensScenN)
}

func TestSensitivityResolvesBenchmarkSpread(t *testing.T) {
	spreads := &stubSpreads{bps: 900}
	svc := newTestService(t, nil, spreads, nil)

	report, err := svc.Sensitivity(context.Background(), distressedFirm(), nil)
	require.NoError(t, err)

	require.Len(t, spreads.seen, 1)
	assert.Equal(t, merton.RatingCCC, spreads.seen[0])
	assert.Equal(t, 900.0, report.MarketSpreadBps)
}
