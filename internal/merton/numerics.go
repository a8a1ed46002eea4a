package merton

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// NormCDF is the standard normal cumulative distribution function.
func NormCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// NormPDF is the standard normal probability density function.
func NormPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}

// D1D2 computes the Black-Scholes-Merton d1 and d2 terms for asset
// value v, debt face value d, risk-free rate r, asset volatility
// sigmaV and horizon t.
func D1D2(v, d, r, sigmaV, t float64) (d1, d2 float64, err error) {
	if v <= 0 || d <= 0 || sigmaV <= 0 || t <= 0 {
		return 0, 0, newDomainError("d1d2",
			"requires positive arguments: V=%g D=%g sigma_V=%g T=%g", v, d, sigmaV, t)
	}
	sqrtT := math.Sqrt(t)
	d1 = (math.Log(v/d) + (r+0.5*sigmaV*sigmaV)*t) / (sigmaV * sqrtT)
	d2 = d1 - sigmaV*sqrtT
	return d1, d2, nil
}

// EquityValue prices the firm's equity as a European call on the assets
// with strike equal to the debt face value:
//
//	E = V*N(d1) - D*exp(-rT)*N(d2)
func EquityValue(v, d, r, sigmaV, t float64) (float64, error) {
	d1, d2, err := D1D2(v, d, r, sigmaV, t)
	if err != nil {
		return 0, err
	}
	return v*NormCDF(d1) - d*math.Exp(-r*t)*NormCDF(d2), nil
}

// EquityVolImplied returns the equity volatility implied by an asset
// state through the Ito volatility linkage:
//
//	sigma_E = sigma_V * V * N(d1) / E
func EquityVolImplied(v, d, r, sigmaV, t, e float64) (float64, error) {
	if e <= 0 {
		return 0, newDomainError("equityVolImplied", "requires positive equity, got %g", e)
	}
	d1, _, err := D1D2(v, d, r, sigmaV, t)
	if err != nil {
		return 0, err
	}
	return sigmaV * v * NormCDF(d1) / e, nil
}

// residuals evaluates the scaled residual pair of the inversion system
// at asset value v and asset volatility sigmaV:
//
//	f1 = (V*N(d1) - D*exp(-rT)*N(d2) - E) / E
//	f2 = (sigma_V*V*N(d1) - sigma_E*E) / (sigma_E*E)
//
// Scaling by E and sigma_E*E keeps both residuals dimensionless so one
// tolerance applies regardless of the firm's size. Out-of-domain points
// reached during iteration return a large penalty residual rather than
// an error, matching how the optimizer stages probe the boundary.
func residuals(fin FirmFinancials, v, sigmaV float64) (f1, f2 float64) {
	const penalty = 1e10
	if v <= 0 || sigmaV <= 0 {
		return penalty, penalty
	}
	d1, d2, err := D1D2(v, fin.Debt, fin.RiskFree, sigmaV, fin.Horizon)
	if err != nil {
		return penalty, penalty
	}
	nd1 := NormCDF(d1)
	theoE := v*nd1 - fin.Debt*math.Exp(-fin.RiskFree*fin.Horizon)*NormCDF(d2)
	theoVol := sigmaV * v * nd1

	f1 = (theoE - fin.Equity) / fin.Equity
	f2 = (theoVol - fin.EquityVol*fin.Equity) / (fin.EquityVol * fin.Equity)
	if math.IsNaN(f1) || math.IsInf(f1, 0) {
		f1 = penalty
	}
	if math.IsNaN(f2) || math.IsInf(f2, 0) {
		f2 = penalty
	}
	return f1, f2
}

// residualNorm is the max-norm of the scaled residual pair.
func residualNorm(f1, f2 float64) float64 {
	return math.Max(math.Abs(f1), math.Abs(f2))
}

// jacobian evaluates the analytic Jacobian of the scaled residuals with
// respect to (V, sigma_V). The entries follow from the Black-Scholes
// delta and vega and from differentiating the volatility linkage:
//
//	dR1/dV  = N(d1)              dR1/ds = V*phi(d1)*sqrt(T)
//	dR2/dV  = s*N(d1) + phi(d1)/sqrt(T)
//	dR2/ds  = V*N(d1) - V*phi(d1)*d2
func jacobian(fin FirmFinancials, v, sigmaV float64) (j11, j12, j21, j22 float64, ok bool) {
	d1, d2, err := D1D2(v, fin.Debt, fin.RiskFree, sigmaV, fin.Horizon)
	if err != nil {
		return 0, 0, 0, 0, false
	}
	sqrtT := math.Sqrt(fin.Horizon)
	nd1 := NormCDF(d1)
	pd1 := NormPDF(d1)

	scale1 := fin.Equity
	scale2 := fin.EquityVol * fin.Equity

	j11 = nd1 / scale1
	j12 = v * pd1 * sqrtT / scale1
	j21 = (sigmaV*nd1 + pd1/sqrtT) / scale2
	j22 = (v*nd1 - v*pd1*d2) / scale2

	for _, x := range []float64{j11, j12, j21, j22} {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, 0, 0, 0, false
		}
	}
	return j11, j12, j21, j22, true
}
