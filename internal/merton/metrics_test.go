package merton

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solutionFor(v, sigmaV float64) MertonSolution {
	return MertonSolution{AssetValue: v, AssetVol: sigmaV, Converged: true, Method: MethodPrimary}
}

func TestComputeCreditMetricsKnownState(t *testing.T) {
	fin := FirmFinancials{Equity: 2e9, Debt: 5e9, EquityVol: 0.5, RiskFree: 0.04, Horizon: 1.0}
	sol := solutionFor(7e9, 0.20)

	m, err := ComputeCreditMetrics(fin, sol, 0.40)
	require.NoError(t, err)

	wantDD := (math.Log(7.0/5.0) + (0.04 - 0.5*0.2*0.2)) / 0.2
	assert.InDelta(t, wantDD, m.DistanceToDefault, 1e-12)
	assert.InDelta(t, NormCDF(-wantDD), m.DefaultProbability, 1e-15)
	assert.Greater(t, m.SpreadBps, 0.0)
	assert.Equal(t, 0.40, m.RecoveryRate)
}

func TestDefaultProbabilityIsPhiOfMinusDD(t *testing.T) {
	// PD has no independent source of truth: it is exactly Phi(-DD).
	fin := FirmFinancials{Equity: 1e9, Debt: 4e9, EquityVol: 0.8, RiskFree: 0.045, Horizon: 1.0}
	for _, sigmaV := range []float64{0.1, 0.2, 0.3, 0.5} {
		m, err := ComputeCreditMetrics(fin, solutionFor(5e9, sigmaV), 0.40)
		require.NoError(t, err)
		assert.Equal(t, NormCDF(-m.DistanceToDefault), m.DefaultProbability)
	}
}

func TestDDStrictlyDecreasingInAssetVol(t *testing.T) {
	fin := FirmFinancials{Equity: 3e9, Debt: 5e9, EquityVol: 0.5, RiskFree: 0.04, Horizon: 1.0}

	prev := math.Inf(1)
	for sigmaV := 0.10; sigmaV <= 0.60; sigmaV += 0.05 {
		m, err := ComputeCreditMetrics(fin, solutionFor(8e9, sigmaV), 0.40)
		require.NoError(t, err)
		assert.Less(t, m.DistanceToDefault, prev,
			"DD must strictly decrease as asset volatility rises (sigma_V=%.2f)", sigmaV)
		prev = m.DistanceToDefault
	}
}

func TestSpreadStrictlyIncreasingInPD(t *testing.T) {
	fin := FirmFinancials{Equity: 3e9, Debt: 8e9, EquityVol: 0.5, RiskFree: 0.04, Horizon: 1.0}

	prevPD, prevSpread := -1.0, -1.0
	for sigmaV := 0.10; sigmaV <= 0.60; sigmaV += 0.05 {
		m, err := ComputeCreditMetrics(fin, solutionFor(10e9, sigmaV), 0.40)
		require.NoError(t, err)
		assert.Greater(t, m.DefaultProbability, prevPD)
		assert.Greater(t, m.SpreadBps, prevSpread,
			"spread must strictly increase with PD at fixed recovery (sigma_V=%.2f)", sigmaV)
		prevPD, prevSpread = m.DefaultProbability, m.SpreadBps
	}
}

func TestSpreadDecreasingInRecovery(t *testing.T) {
	fin := FirmFinancials{Equity: 1e9, Debt: 4e9, EquityVol: 0.8, RiskFree: 0.045, Horizon: 1.0}
	sol := solutionFor(4.8e9, 0.19)

	low, err := ComputeCreditMetrics(fin, sol, 0.20)
	require.NoError(t, err)
	high, err := ComputeCreditMetrics(fin, sol, 0.60)
	require.NoError(t, err)
	assert.Greater(t, low.SpreadBps, high.SpreadBps)
}

func TestSpreadNonNegativeForNearRisklessFirm(t *testing.T) {
	fin := FirmFinancials{Equity: 99e9, Debt: 1e9, EquityVol: 0.2, RiskFree: 0.04, Horizon: 1.0}
	m, err := ComputeCreditMetrics(fin, solutionFor(100e9, 0.18), 0.40)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, m.SpreadBps, 0.0)
	assert.Less(t, m.SpreadBps, 1.0)
	assert.Greater(t, m.DistanceToDefault, 4.0)
}

func TestComputeCreditMetricsDomainErrors(t *testing.T) {
	fin := FirmFinancials{Equity: 1e9, Debt: 1e9, EquityVol: 0.3, RiskFree: 0.04, Horizon: 1.0}

	t.Run("invalid recovery", func(t *testing.T) {
		_, err := ComputeCreditMetrics(fin, solutionFor(2e9, 0.2), 1.0)
		require.Error(t, err)
		assert.True(t, IsDomainError(err))
		_, err = ComputeCreditMetrics(fin, solutionFor(2e9, 0.2), -0.1)
		require.Error(t, err)
		assert.True(t, IsDomainError(err))
	})

	t.Run("non-positive solution", func(t *testing.T) {
		_, err := ComputeCreditMetrics(fin, solutionFor(0, 0.2), 0.4)
		require.Error(t, err)
		assert.True(t, IsDomainError(err))
		_, err = ComputeCreditMetrics(fin, solutionFor(2e9, 0), 0.4)
		require.Error(t, err)
		assert.True(t, IsDomainError(err))
	})

	t.Run("degenerate state propagates, never clamps", func(t *testing.T) {
		// V so far below D that every spread term underflows to zero.
		degenerate := FirmFinancials{Equity: 1, Debt: 1e9, EquityVol: 0.3, RiskFree: 0, Horizon: 1.0}
		_, err := ComputeCreditMetrics(degenerate, solutionFor(1e-320, 0.1), 0.4)
		require.Error(t, err)
		assert.True(t, IsDomainError(err))
	})
}
