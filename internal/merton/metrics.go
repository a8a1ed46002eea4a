package merton

import (
	"math"
)

// ComputeCreditMetrics derives distance to default, default probability
// and the recovery-adjusted theoretical credit spread from a converged
// solution.
//
// DD is computed under the risk-neutral measure (drift r, not an
// estimated real-world mu), keeping it consistent with the spread
// pricing below. PD is always exactly Phi(-DD); there is no second
// source of truth for the default probability.
func ComputeCreditMetrics(fin FirmFinancials, sol MertonSolution, recoveryRate float64) (CreditMetrics, error) {
	if recoveryRate < 0 || recoveryRate >= 1 {
		return CreditMetrics{}, newDomainError("creditMetrics",
			"recovery rate must be in [0,1), got %g", recoveryRate)
	}

	v, sigmaV := sol.AssetValue, sol.AssetVol
	t := fin.Horizon
	if v <= 0 || sigmaV <= 0 {
		return CreditMetrics{}, newDomainError("creditMetrics",
			"requires positive solution: V=%g sigma_V=%g", v, sigmaV)
	}

	sqrtT := math.Sqrt(t)
	dd := (math.Log(v/fin.Debt) + (fin.RiskFree-0.5*sigmaV*sigmaV)*t) / (sigmaV * sqrtT)
	pd := NormCDF(-dd)

	d1, d2, err := D1D2(v, fin.Debt, fin.RiskFree, sigmaV, t)
	if err != nil {
		return CreditMetrics{}, err
	}

	// Risk-neutral debt pricing with fractional recovery of face value:
	// the log argument is the survival-weighted payoff ratio. A
	// non-positive argument means the solved state is numerically
	// degenerate; propagate rather than clamp, since it signals an
	// upstream solver inconsistency.
	arg := NormCDF(d2) + (v/fin.Debt)*NormCDF(-d1)*(1-recoveryRate)
	if arg <= 0 {
		return CreditMetrics{}, newDomainError("creditMetrics",
			"non-positive spread argument %g at V=%g sigma_V=%g", arg, v, sigmaV)
	}

	spreadBps := -math.Log(arg) / t * 10000
	if spreadBps < 0 {
		// arg can marginally exceed 1 for near-riskless names; the
		// model spread is then indistinguishable from zero.
		spreadBps = 0
	}

	return CreditMetrics{
		DistanceToDefault:  dd,
		DefaultProbability: pd,
		SpreadBps:          spreadBps,
		RecoveryRate:       recoveryRate,
	}, nil
}
