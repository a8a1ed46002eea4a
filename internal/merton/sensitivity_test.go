package merton

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSensitivityReportShape(t *testing.T) {
	fin := FirmFinancials{Ticker: "DSTR", Equity: 1e9, Debt: 4e9, EquityVol: 0.80, RiskFree: 0.045, Horizon: 1.0}

	a := newTestAnalyzer(t)
	report, err := a.Sensitivity(context.Background(), fin, 80.0)
	require.NoError(t, err)

	cfg := a.Config()
	require.Len(t, report.Volatility, len(cfg.VolShockGrid))
	require.Len(t, report.Debt, len(cfg.DebtShockGrid))
	require.Len(t, report.Stress, len(cfg.StressScenarios))

	// Rows come back in grid order regardless of completion order.
	for i, row := range report.Volatility {
		assert.Equal(t, cfg.VolShockGrid[i], row.ShockPct)
		assert.InDelta(t, fin.EquityVol*(1+row.ShockPct), row.ShockedEquityVol, 1e-12)
	}
	for i, row := range report.Debt {
		assert.Equal(t, cfg.DebtShockGrid[i], row.ShockPct)
		assert.InDelta(t, fin.Debt*(1+row.ShockPct), row.ShockedDebt, 1e-6)
	}
	for i, row := range report.Stress {
		assert.Equal(t, cfg.StressScenarios[i].Name, row.Scenario.Name)
	}

	assert.Equal(t, fin, report.Inputs)
	assert.Equal(t, 80.0, report.MarketSpreadBps)
	assert.Greater(t, report.BaseSpreadBps, 500.0)
	assert.Equal(t, SignalStrongShort, report.BaseSignal.Signal)
}

func TestSensitivityZeroShockMatchesBase(t *testing.T) {
	fin := FirmFinancials{Equity: 1e9, Debt: 4e9, EquityVol: 0.80, RiskFree: 0.045, Horizon: 1.0}

	a := newTestAnalyzer(t)
	report, err := a.Sensitivity(context.Background(), fin, 80.0)
	require.NoError(t, err)

	for _, row := range report.Volatility {
		if row.ShockPct == 0 {
			require.False(t, row.Failed)
			assert.InDelta(t, 0, row.DeltaBps, 1e-6)
			assert.InEpsilon(t, report.BaseSpreadBps, row.SpreadBps, 1e-9)
		}
	}
	for _, row := range report.Stress {
		if row.Scenario.Name == "base" {
			require.False(t, row.Failed)
			assert.InDelta(t, 0, row.DeltaBps, 1e-6)
		}
	}
}

func TestSensitivityMonotoneInVolShock(t *testing.T) {
	// More equity volatility means a wider theoretical spread; the
	// ordered shock grid must produce an ordered spread column.
	fin := FirmFinancials{Equity: 1e9, Debt: 4e9, EquityVol: 0.80, RiskFree: 0.045, Horizon: 1.0}

	a := newTestAnalyzer(t)
	report, err := a.Sensitivity(context.Background(), fin, 80.0)
	require.NoError(t, err)

	prev := -1.0
	for _, row := range report.Volatility {
		require.False(t, row.Failed)
		assert.Greater(t, row.SpreadBps, prev,
			"spread must increase with the volatility shock (shock=%.2f)", row.ShockPct)
		prev = row.SpreadBps
	}
}

func TestSensitivityDeterministic(t *testing.T) {
	// Scenarios run in parallel but merge by grid index; two runs with
	// the same inputs must produce identical reports.
	fin := FirmFinancials{Ticker: "DSTR", Equity: 1e9, Debt: 4e9, EquityVol: 0.80, RiskFree: 0.045, Horizon: 1.0}

	a := newTestAnalyzer(t)
	first, err := a.Sensitivity(context.Background(), fin, 80.0)
	require.NoError(t, err)
	second, err := a.Sensitivity(context.Background(), fin, 80.0)
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestSensitivityBaseFailureFailsRequest(t *testing.T) {
	fin := FirmFinancials{Equity: 1, Debt: 1e12, EquityVol: 0.01, RiskFree: 0.04, Horizon: 1.0}

	a := newTestAnalyzer(t)
	report, err := a.Sensitivity(context.Background(), fin, 100.0)
	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, IsConvergenceError(err))
}

func TestSensitivityPartialScenarioFailure(t *testing.T) {
	// A shock that collapses equity volatility to 0.003% pushes the
	// scenario outside the feasible volatility box. The row is marked
	// failed, the rest of the report survives, and aggregates are
	// computed over the successes only.
	cfg := DefaultConfig()
	cfg.VolShockGrid = []float64{-0.9999, 0, 0.10}

	a, err := NewAnalyzer(cfg, testLogger())
	require.NoError(t, err)

	fin := FirmFinancials{Ticker: "SAFE", Equity: 2e11, Debt: 5e10, EquityVol: 0.30, RiskFree: 0.04, Horizon: 1.0}
	report, err := a.Sensitivity(context.Background(), fin, 50.0)
	require.NoError(t, err)

	require.Len(t, report.Volatility, 3)
	assert.True(t, report.Volatility[0].Failed)
	assert.NotEmpty(t, report.Volatility[0].Error)
	assert.False(t, report.Volatility[1].Failed)
	assert.False(t, report.Volatility[2].Failed)

	// Both surviving scenarios keep the neutral base direction.
	assert.Equal(t, SignalNeutral, report.BaseSignal.Signal)
	assert.True(t, report.IsRobust)
	assert.GreaterOrEqual(t, report.SpreadRange, 0.0)
}

func TestSensitivityRobustnessBreaksOnDirectionFlip(t *testing.T) {
	// Pin the market spread just below the base theoretical spread so
	// the base signal is a moderate short. Shocking a highly levered
	// firm's volatility down 20% moves the spread by far more than the
	// classification band, flipping the direction and breaking
	// robustness.
	fin := FirmFinancials{Equity: 1e9, Debt: 4e9, EquityVol: 0.80, RiskFree: 0.045, Horizon: 1.0}

	a := newTestAnalyzer(t)
	base, err := a.Evaluate(context.Background(), fin)
	require.NoError(t, err)

	market := base.Metrics.SpreadBps - 100
	report, err := a.Sensitivity(context.Background(), fin, market)
	require.NoError(t, err)

	require.Equal(t, SignalModerateShort, report.BaseSignal.Signal)
	assert.False(t, report.IsRobust)
}

func TestSensitivityRobustWhenSignalStable(t *testing.T) {
	// A deeply mispriced safe name stays a strong long across the whole
	// volatility grid: near-zero theoretical spread against an 800bps
	// market quote.
	fin := FirmFinancials{Equity: 2e11, Debt: 5e10, EquityVol: 0.30, RiskFree: 0.04, Horizon: 1.0}

	a := newTestAnalyzer(t)
	report, err := a.Sensitivity(context.Background(), fin, 800.0)
	require.NoError(t, err)

	require.Equal(t, SignalStrongLong, report.BaseSignal.Signal)
	for _, row := range report.Volatility {
		require.False(t, row.Failed)
		assert.Equal(t, SignalStrongLong, row.Signal)
	}
	assert.True(t, report.IsRobust)
}

func TestSensitivityStressBattery(t *testing.T) {
	fin := FirmFinancials{Equity: 1e9, Debt: 4e9, EquityVol: 0.80, RiskFree: 0.045, Horizon: 1.0}

	a := newTestAnalyzer(t)
	report, err := a.Sensitivity(context.Background(), fin, 80.0)
	require.NoError(t, err)

	rows := make(map[string]StressResult, len(report.Stress))
	for _, row := range report.Stress {
		rows[row.Scenario.Name] = row
	}

	severe, ok := rows["severe_stress"]
	require.True(t, ok)
	require.False(t, severe.Failed)
	assert.Greater(t, severe.DeltaBps, 0.0)

	benign, ok := rows["benign"]
	require.True(t, ok)
	require.False(t, benign.Failed)
	assert.Less(t, benign.DeltaBps, 0.0)

	crash, ok := rows["equity_crash"]
	require.True(t, ok)
	require.False(t, crash.Failed)
	assert.Greater(t, crash.SpreadBps, rows["base"].SpreadBps)
}

func TestSensitivityHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := newTestAnalyzer(t)
	fin := FirmFinancials{Equity: 1e9, Debt: 4e9, EquityVol: 0.80, RiskFree: 0.045, Horizon: 1.0}
	_, err := a.Sensitivity(ctx, fin, 80.0)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
