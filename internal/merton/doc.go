// Package merton implements structural credit analysis based on the
// Merton (1974) model, treating a firm's equity as a call option on its
// unobservable assets.
//
// The package recovers the implied asset value V and asset volatility
// sigma_V from observable equity-market inputs (market capitalization,
// equity volatility, debt face value, risk-free rate, horizon) by
// inverting the coupled Black-Scholes-Merton system:
//
//	E       = V*N(d1) - D*exp(-rT)*N(d2)
//	sigma_E = sigma_V * V * N(d1) / E
//
// From the solved pair it derives distance to default, a one-period
// default probability, and a recovery-adjusted theoretical credit
// spread, then classifies a trading signal against an observed market
// spread and quantifies the signal's robustness under input shocks.
//
// # Architecture
//
//   - types.go: input/output data structures and signal enums
//   - numerics.go: normal distribution helpers, d1/d2, forward equations
//   - solver.go: multi-start hybrid root finder (Levenberg-Marquardt
//     primary stage, bounded quasi-Newton fallback, distressed-firm
//     volatility floor)
//   - metrics.go: distance to default, default probability, credit spread
//   - signal.go: threshold-based signal classification
//   - rating.go: leverage-based rating bucket estimation
//   - sensitivity.go: volatility/debt shock grids and stress scenarios
//   - analyzer.go: orchestration of solve -> metrics -> signal
//   - state.go: analysis lifecycle tracking
//
// # Usage
//
//	analyzer := merton.NewAnalyzer(merton.DefaultConfig(), slog.Default())
//	fin := merton.FirmFinancials{
//	    Equity:    2.0e11,
//	    Debt:      5.0e10,
//	    EquityVol: 0.30,
//	    RiskFree:  0.04,
//	    Horizon:   1.0,
//	}
//	result, err := analyzer.Analyze(ctx, fin, 80.0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Signal.Signal, result.Metrics.SpreadBps)
//
// All computations are pure and deterministic: two calls with identical
// inputs and configuration produce identical results. No function in
// this package performs I/O beyond structured logging.
//
// # Error model
//
// Invalid mathematical preconditions surface as *DomainError. Solver
// exhaustion without a feasible root surfaces as *ConvergenceError
// carrying the best achieved residual and the attempted seed schedule.
// Neither is ever silently replaced by a guessed solution.
package merton
