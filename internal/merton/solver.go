package merton

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// solver inverts the two-equation Merton system for (V, sigma_V).
//
// The search is an explicit ordered strategy chain: a derivative-based
// Levenberg-Marquardt stage is tried across the full multi-start seed
// schedule first; only if no seed reaches a feasible root does the
// bounded least-squares fallback stage run. Each stage draws residual
// evaluations from a shared budget so the whole schedule terminates on
// pathological inputs.
type solver struct {
	cfg    SolverConfig
	logger *slog.Logger
}

func newSolver(cfg SolverConfig, logger *slog.Logger) *solver {
	if logger == nil {
		logger = slog.Default()
	}
	return &solver{cfg: cfg, logger: logger}
}

// evalBudget caps total residual evaluations across seeds and stages.
type evalBudget struct {
	remaining int
	used      int
}

func (b *evalBudget) spend(n int) bool {
	if b.remaining < n {
		b.remaining = 0
		return false
	}
	b.remaining -= n
	b.used += n
	return true
}

func (b *evalBudget) exhausted() bool { return b.remaining <= 0 }

// candidate is an accepted or best-so-far point from one stage attempt.
type candidate struct {
	v, sigmaV float64
	residual  float64
	method    SolveMethod
}

// solverStage is one strategy in the ordered chain.
type solverStage interface {
	method() SolveMethod
	// trySeed attempts a solve from one seed. ok is true when the
	// returned candidate is feasible within the stage's tolerance.
	trySeed(fin FirmFinancials, seed Seed, budget *evalBudget) (candidate, bool)
}

// Solve inverts the Merton system for the given financials.
//
// The returned solution always satisfies V > E and
// sigmaVMin < sigma_V < sigma_E, with the distressed-firm volatility
// floor applied when warranted. When no stage converges to a feasible
// root within the evaluation budget, Solve fails with a
// *ConvergenceError carrying diagnostics; it never fabricates a
// solution.
func (s *solver) Solve(ctx context.Context, fin FirmFinancials) (*MertonSolution, error) {
	if fin.Equity <= 0 || fin.Debt <= 0 || fin.EquityVol <= 0 || fin.Horizon <= 0 {
		return nil, newDomainError("solve",
			"requires E>0, D>0, sigma_E>0, T>0: E=%g D=%g sigma_E=%g T=%g",
			fin.Equity, fin.Debt, fin.EquityVol, fin.Horizon)
	}

	seeds := s.seedSchedule(fin)
	budget := &evalBudget{remaining: s.cfg.MaxEvaluations}
	stages := []solverStage{
		&primaryStage{solver: s},
		&fallbackStage{solver: s},
	}

	best := candidate{residual: math.Inf(1)}
	for _, stage := range stages {
		found := candidate{residual: math.Inf(1)}
		haveFound := false

		for _, seed := range seeds {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("merton solve cancelled: %w", ctx.Err())
			default:
			}
			if budget.exhausted() {
				break
			}

			cand, ok := stage.trySeed(fin, seed, budget)
			if cand.residual < best.residual {
				best = cand
			}
			if !ok {
				continue
			}
			// The primary stage accepts the first feasible root; the
			// fallback keeps the lowest-residual feasible minimum
			// across all seeds.
			if stage.method() == MethodPrimary {
				found = cand
				haveFound = true
				break
			}
			if !haveFound || cand.residual < found.residual {
				found = cand
				haveFound = true
			}
		}

		if haveFound {
			s.logger.Debug("merton solve converged",
				"ticker", fin.Ticker,
				"method", string(found.method),
				"asset_value", found.v,
				"asset_vol", found.sigmaV,
				"residual", found.residual,
				"evaluations", budget.used,
			)
			return s.finalize(fin, found)
		}
	}

	s.logger.Warn("merton solve failed to converge",
		"ticker", fin.Ticker,
		"best_residual", best.residual,
		"seeds", len(seeds),
		"evaluations", budget.used,
	)
	return nil, &ConvergenceError{
		Ticker:       fin.Ticker,
		BestResidual: best.residual,
		Seeds:        seeds,
		Evaluations:  budget.used,
	}
}

// seedSchedule builds the multi-start schedule: the leverage-adjusted
// standard seed perturbed across the configured sigma factors, plus the
// distressed-firm seeds that rescue highly levered names where the
// Jacobian near the standard seed is close to singular.
func (s *solver) seedSchedule(fin FirmFinancials) []Seed {
	book := fin.BookValue()
	sigma0 := fin.EquityVol * fin.Equity / book

	clampSigma := func(x float64) float64 {
		lo := s.cfg.SigmaVMin * 1.01
		hi := fin.EquityVol * 0.99
		if hi <= lo {
			return lo
		}
		return math.Min(math.Max(x, lo), hi)
	}

	var seeds []Seed
	for _, f := range s.cfg.SigmaSeedFactors {
		seeds = append(seeds, Seed{AssetValue: book, AssetVol: clampSigma(sigma0 * f)})
	}
	seeds = append(seeds,
		Seed{AssetValue: fin.Equity + 0.8*fin.Debt, AssetVol: clampSigma(0.25)},
		Seed{AssetValue: fin.Equity + 0.5*fin.Debt, AssetVol: clampSigma(0.5 * fin.EquityVol)},
		Seed{AssetValue: book, AssetVol: clampSigma(0.40)},
	)

	// Drop duplicates introduced by clamping.
	uniq := seeds[:0]
	for _, sd := range seeds {
		dup := false
		for _, u := range uniq {
			if math.Abs(u.AssetValue-sd.AssetValue) < 1e-12*book &&
				math.Abs(u.AssetVol-sd.AssetVol) < 1e-9 {
				dup = true
				break
			}
		}
		if !dup {
			uniq = append(uniq, sd)
		}
	}
	return uniq
}

// feasible checks the structural constraints every accepted solution
// must satisfy: implied assets exceed equity and the implied asset
// volatility sits strictly inside (sigmaVMin, sigma_E).
func (s *solver) feasible(fin FirmFinancials, v, sigmaV float64) bool {
	return v > fin.Equity && sigmaV > s.cfg.SigmaVMin && sigmaV < fin.EquityVol
}

// finalize applies the risk-aware volatility floor and assembles the
// immutable solution.
func (s *solver) finalize(fin FirmFinancials, cand candidate) (*MertonSolution, error) {
	floored := false
	if fin.BookLeverage() > s.cfg.LeverageThreshold && cand.sigmaV < s.cfg.VolatilityFloor {
		// A naive inversion of a deeply levered capital structure can
		// report an implausibly low asset volatility, manufacturing a
		// false "safe" signal. Clamp sigma_V and re-solve the equity
		// equation alone for V. This is a deliberate conservative
		// bias, not error suppression.
		v, err := s.solveEquityForAsset(fin, s.cfg.VolatilityFloor)
		if err != nil {
			return nil, err
		}
		s.logger.Info("applied distressed-firm volatility floor",
			"ticker", fin.Ticker,
			"book_leverage", fin.BookLeverage(),
			"unfloored_vol", cand.sigmaV,
			"floor", s.cfg.VolatilityFloor,
			"asset_value", v,
		)
		f1, _ := residuals(fin, v, s.cfg.VolatilityFloor)
		cand.v = v
		cand.sigmaV = s.cfg.VolatilityFloor
		cand.residual = math.Abs(f1)
		floored = true
	}

	return &MertonSolution{
		AssetValue: cand.v,
		AssetVol:   cand.sigmaV,
		Leverage:   fin.Debt / cand.v,
		Method:     cand.method,
		Converged:  true,
		Floored:    floored,
		Residual:   cand.residual,
	}, nil
}

// solveEquityForAsset solves R1(V) = equityValue(V) - E = 0 for V with
// sigma_V held fixed. The equity value is strictly increasing in V
// (its derivative is the call delta N(d1) > 0), so a safeguarded
// Newton iteration over an expanding bracket is exact enough here;
// no general-purpose scalar root finder is required.
func (s *solver) solveEquityForAsset(fin FirmFinancials, sigmaV float64) (float64, error) {
	r1 := func(v float64) (float64, error) {
		e, err := EquityValue(v, fin.Debt, fin.RiskFree, sigmaV, fin.Horizon)
		if err != nil {
			return 0, err
		}
		return e - fin.Equity, nil
	}

	lo := fin.Equity
	hi := fin.BookValue()
	fhi, err := r1(hi)
	if err != nil {
		return 0, err
	}
	for i := 0; fhi < 0 && i < 64; i++ {
		hi *= 2
		if fhi, err = r1(hi); err != nil {
			return 0, err
		}
	}
	if fhi < 0 {
		return 0, &ConvergenceError{Ticker: fin.Ticker, BestResidual: math.Abs(fhi) / fin.Equity}
	}

	v := 0.5 * (lo + hi)
	for i := 0; i < 200; i++ {
		fv, err := r1(v)
		if err != nil {
			return 0, err
		}
		if math.Abs(fv) <= s.cfg.Tolerance*fin.Equity {
			return v, nil
		}
		if fv > 0 {
			hi = v
		} else {
			lo = v
		}
		d1, _, derr := D1D2(v, fin.Debt, fin.RiskFree, sigmaV, fin.Horizon)
		if derr != nil {
			return 0, derr
		}
		step := v - fv/NormCDF(d1)
		if step <= lo || step >= hi || math.IsNaN(step) {
			step = 0.5 * (lo + hi) // Newton left the bracket; bisect.
		}
		v = step
	}
	fv, _ := r1(v)
	return 0, &ConvergenceError{Ticker: fin.Ticker, BestResidual: math.Abs(fv) / fin.Equity}
}

// primaryStage runs a damped Levenberg-Marquardt iteration on the
// scaled residual pair with the analytic Jacobian. Asset value is
// rescaled by E+D so both unknowns are O(1) and the normal equations
// stay well conditioned for large-cap names.
type primaryStage struct {
	*solver
}

func (st *primaryStage) method() SolveMethod { return MethodPrimary }

func (st *primaryStage) trySeed(fin FirmFinancials, seed Seed, budget *evalBudget) (candidate, bool) {
	scale := fin.BookValue()
	x := [2]float64{seed.AssetValue / scale, seed.AssetVol}

	if !budget.spend(1) {
		return candidate{residual: math.Inf(1), method: MethodPrimary}, false
	}
	f1, f2 := residuals(fin, x[0]*scale, x[1])
	norm := residualNorm(f1, f2)

	best := candidate{v: x[0] * scale, sigmaV: x[1], residual: norm, method: MethodPrimary}
	lambda := 1e-3

	for iter := 0; iter < st.cfg.MaxIterations && !budget.exhausted(); iter++ {
		if norm <= st.cfg.Tolerance {
			break
		}

		j11, j12, j21, j22, ok := jacobian(fin, x[0]*scale, x[1])
		if !ok {
			break
		}
		// Chain rule for the rescaled asset variable.
		j11 *= scale
		j21 *= scale

		// Normal equations: (J^T J + lambda*diag(J^T J)) delta = -J^T f.
		a11 := j11*j11 + j21*j21
		a12 := j11*j12 + j21*j22
		a22 := j12*j12 + j22*j22
		g1 := j11*f1 + j21*f2
		g2 := j12*f1 + j22*f2

		improved := false
		for damp := 0; damp < 12; damp++ {
			lhs := mat.NewDense(2, 2, []float64{
				a11 + lambda*a11, a12,
				a12, a22 + lambda*a22,
			})
			rhs := mat.NewVecDense(2, []float64{-g1, -g2})
			var delta mat.VecDense
			if err := delta.SolveVec(lhs, rhs); err != nil {
				lambda *= 10
				continue
			}

			trial := [2]float64{x[0] + delta.AtVec(0), x[1] + delta.AtVec(1)}
			if trial[0] <= 0 || trial[1] <= 0 {
				lambda *= 10
				continue
			}
			if !budget.spend(1) {
				break
			}
			t1, t2 := residuals(fin, trial[0]*scale, trial[1])
			tnorm := residualNorm(t1, t2)
			if tnorm < norm {
				x, f1, f2, norm = trial, t1, t2, tnorm
				lambda = math.Max(lambda/10, 1e-12)
				improved = true
				break
			}
			lambda *= 10
		}
		if !improved {
			break
		}
		if norm < best.residual {
			best = candidate{v: x[0] * scale, sigmaV: x[1], residual: norm, method: MethodPrimary}
		}
	}

	ok := norm <= st.cfg.Tolerance && st.feasible(fin, x[0]*scale, x[1])
	if ok {
		best = candidate{v: x[0] * scale, sigmaV: x[1], residual: norm, method: MethodPrimary}
	}
	return best, ok
}

// fallbackStage minimizes the sum of squared residuals with a
// quasi-Newton method under box constraints, reached by a logistic
// reparameterization of the box onto the plane. Slower but tolerant of
// the near-singular Jacobians that defeat the primary stage for
// distressed names.
type fallbackStage struct {
	*solver
}

func (st *fallbackStage) method() SolveMethod { return MethodFallback }

func (st *fallbackStage) trySeed(fin FirmFinancials, seed Seed, budget *evalBudget) (candidate, bool) {
	vLo, vHi := fin.Equity, st.cfg.AssetCeilMult*fin.BookValue()
	sLo, sHi := st.cfg.SigmaVMin, math.Min(st.cfg.SigmaVMax, fin.EquityVol)
	if sHi <= sLo || vHi <= vLo {
		return candidate{residual: math.Inf(1), method: MethodFallback}, false
	}

	fromBox := func(u []float64) (v, sigma float64) {
		v = vLo + (vHi-vLo)*logistic(u[0])
		sigma = sLo + (sHi-sLo)*logistic(u[1])
		return v, sigma
	}

	problem := optimize.Problem{
		Func: func(u []float64) float64 {
			if !budget.spend(1) {
				return math.Inf(1)
			}
			v, sigma := fromBox(u)
			f1, f2 := residuals(fin, v, sigma)
			return f1*f1 + f2*f2
		},
	}

	u0 := []float64{
		logit((seed.AssetValue - vLo) / (vHi - vLo)),
		logit((seed.AssetVol - sLo) / (sHi - sLo)),
	}
	settings := &optimize.Settings{
		MajorIterations: st.cfg.MaxIterations,
		FuncEvaluations: budget.remaining,
	}

	result, err := optimize.Minimize(problem, u0, settings, &optimize.LBFGS{})
	if err != nil && result == nil {
		return candidate{residual: math.Inf(1), method: MethodFallback}, false
	}

	v, sigma := fromBox(result.X)
	f1, f2 := residuals(fin, v, sigma)
	norm := residualNorm(f1, f2)
	cand := candidate{v: v, sigmaV: sigma, residual: norm, method: MethodFallback}

	// Boundary-hugging minima with large residual are infeasible
	// points dressed up as solutions; reject them.
	ok := norm <= st.cfg.FallbackTolerance && st.feasible(fin, v, sigma)
	return cand, ok
}

func logistic(u float64) float64 {
	return 1 / (1 + math.Exp(-u))
}

func logit(p float64) float64 {
	const eps = 1e-9
	p = math.Min(math.Max(p, eps), 1-eps)
	return math.Log(p / (1 - p))
}
