package merton

import (
	"time"
)

// FirmFinancials holds the observable market inputs for one analysis.
// Values are immutable once an analysis starts; shocked copies are
// constructed by the sensitivity engine rather than mutated in place.
type FirmFinancials struct {
	// Ticker is optional and used for labeling only.
	Ticker string `json:"ticker,omitempty" yaml:"ticker"`
	// Equity is the market value of equity (market capitalization).
	Equity float64 `json:"equity" yaml:"equity" validate:"required,gt=0"`
	// Debt is the face value of total debt, treated as a single
	// zero-coupon issue maturing at Horizon.
	Debt float64 `json:"debt" yaml:"debt" validate:"required,gt=0"`
	// EquityVol is the annualized equity volatility.
	EquityVol float64 `json:"equity_vol" yaml:"equity_vol" validate:"required,gt=0"`
	// RiskFree is the annualized risk-free rate. May be negative.
	RiskFree float64 `json:"risk_free" yaml:"risk_free"`
	// Horizon is the debt maturity horizon in years, typically 1.0.
	Horizon float64 `json:"horizon" yaml:"horizon" validate:"required,gt=0"`
}

// BookValue returns the naive asset value approximation E + D used to
// seed the solver.
func (f FirmFinancials) BookValue() float64 {
	return f.Equity + f.Debt
}

// BookLeverage returns D/(E+D), the leverage proxy used to detect
// distressed capital structures before the implied asset value exists.
func (f FirmFinancials) BookLeverage() float64 {
	if f.Equity+f.Debt <= 0 {
		return 0
	}
	return f.Debt / (f.Equity + f.Debt)
}

// SolveMethod identifies which solver stage produced a solution.
type SolveMethod string

const (
	// MethodPrimary is the derivative-based root-finding stage.
	MethodPrimary SolveMethod = "primary"
	// MethodFallback is the bounded least-squares minimization stage.
	MethodFallback SolveMethod = "fallback"
)

// MertonSolution is the solved implied asset state. It is created by a
// single solver invocation and never mutated afterwards.
type MertonSolution struct {
	// AssetValue is the implied asset value V. Always > Equity.
	AssetValue float64 `json:"asset_value"`
	// AssetVol is the implied asset volatility sigma_V.
	AssetVol float64 `json:"asset_vol"`
	// Leverage is D/V computed from the implied asset value.
	Leverage float64 `json:"leverage"`
	// Method tags which stage converged, for auditability.
	Method SolveMethod `json:"method"`
	// Converged is true for every returned solution; failures are
	// reported as *ConvergenceError instead.
	Converged bool `json:"converged"`
	// Floored is true when the distressed-firm volatility floor was
	// applied after the unconstrained solve.
	Floored bool `json:"floored,omitempty"`
	// Residual is the largest scaled residual at the accepted point.
	Residual float64 `json:"residual"`
}

// CreditMetrics are the risk measures derived from a converged solution.
type CreditMetrics struct {
	// DistanceToDefault is the signed number of asset-volatility
	// standard deviations between the implied asset value and the
	// default threshold at the horizon. Uses the risk-free drift,
	// consistent with risk-neutral spread pricing.
	DistanceToDefault float64 `json:"distance_to_default"`
	// DefaultProbability is Phi(-DD). Always in (0, 1).
	DefaultProbability float64 `json:"default_probability"`
	// SpreadBps is the recovery-adjusted theoretical credit spread in
	// basis points. Never negative.
	SpreadBps float64 `json:"spread_bps"`
	// RecoveryRate is the recovery assumption the spread was priced
	// with, recorded for reproducibility.
	RecoveryRate float64 `json:"recovery_rate"`
}

// Signal is the discrete trading signal emitted by the classifier.
type Signal string

const (
	SignalStrongShort   Signal = "STRONG_SHORT"
	SignalModerateShort Signal = "MODERATE_SHORT"
	SignalNeutral       Signal = "NEUTRAL"
	SignalModerateLong  Signal = "MODERATE_LONG"
	SignalStrongLong    Signal = "STRONG_LONG"
)

// Direction reduces a signal to its trade direction: -1 short credit,
// 0 neutral, +1 long credit.
func (s Signal) Direction() int {
	switch s {
	case SignalStrongShort, SignalModerateShort:
		return -1
	case SignalModerateLong, SignalStrongLong:
		return 1
	default:
		return 0
	}
}

// SignalResult is the classifier output. Stateless and recomputed on
// every call.
type SignalResult struct {
	Signal Signal `json:"signal"`
	// Strength is the ordinal signal strength, 1 (neutral) to 5.
	Strength int `json:"strength"`
	// SpreadDiffBps is theoretical minus market spread in basis points.
	SpreadDiffBps float64 `json:"spread_diff_bps"`
}

// AnalysisResult bundles one complete base-case analysis.
type AnalysisResult struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	Inputs          FirmFinancials `json:"inputs"`
	Solution        MertonSolution `json:"solution"`
	Metrics         CreditMetrics  `json:"metrics"`
	Signal          SignalResult   `json:"signal"`
	MarketSpreadBps float64        `json:"market_spread_bps"`
	// Rating is the leverage-implied rating bucket, when estimated.
	Rating Rating `json:"rating,omitempty"`

	// Trace records the lifecycle phases the analysis went through.
	Trace []PhaseTransition `json:"trace,omitempty"`
}

// VolShockResult is one row of the volatility sensitivity grid.
type VolShockResult struct {
	// ShockPct is the multiplicative shock applied to sigma_E, e.g.
	// -0.20 for a 20% reduction.
	ShockPct float64 `json:"shock_pct"`
	// ShockedEquityVol is sigma_E * (1 + ShockPct).
	ShockedEquityVol float64 `json:"shocked_equity_vol"`

	SpreadBps         float64     `json:"spread_bps"`
	DeltaBps          float64     `json:"delta_bps"`
	DistanceToDefault float64     `json:"distance_to_default"`
	Method            SolveMethod `json:"method,omitempty"`
	Signal            Signal      `json:"signal,omitempty"`

	// Failed marks a scenario whose solve did not converge. Failed
	// scenarios are excluded from the aggregate statistics.
	Failed bool   `json:"failed,omitempty"`
	Error  string `json:"error,omitempty"`
}

// DebtShockResult is one row of the debt sensitivity grid.
type DebtShockResult struct {
	ShockPct    float64 `json:"shock_pct"`
	ShockedDebt float64 `json:"shocked_debt"`

	SpreadBps         float64     `json:"spread_bps"`
	DeltaBps          float64     `json:"delta_bps"`
	Leverage          float64     `json:"leverage"`
	DistanceToDefault float64     `json:"distance_to_default"`
	Method            SolveMethod `json:"method,omitempty"`
	Signal            Signal      `json:"signal,omitempty"`

	Failed bool   `json:"failed,omitempty"`
	Error  string `json:"error,omitempty"`
}

// StressScenario defines a named combined shock.
type StressScenario struct {
	Name        string  `json:"name" yaml:"name"`
	VolShock    float64 `json:"vol_shock" yaml:"vol_shock"`
	DebtShock   float64 `json:"debt_shock" yaml:"debt_shock"`
	EquityShock float64 `json:"equity_shock" yaml:"equity_shock"`
}

// StressResult is the outcome of one combined stress scenario.
type StressResult struct {
	Scenario StressScenario `json:"scenario"`

	SpreadBps         float64     `json:"spread_bps"`
	DeltaBps          float64     `json:"delta_bps"`
	DistanceToDefault float64     `json:"distance_to_default"`
	Method            SolveMethod `json:"method,omitempty"`
	Signal            Signal      `json:"signal,omitempty"`

	Failed bool   `json:"failed,omitempty"`
	Error  string `json:"error,omitempty"`
}

// SensitivityReport quantifies signal robustness under input shocks.
// It is rebuilt in full on every request and reported in grid order
// regardless of the order scenarios finished computing.
type SensitivityReport struct {
	Inputs          FirmFinancials `json:"inputs"`
	MarketSpreadBps float64        `json:"market_spread_bps"`
	BaseSpreadBps   float64        `json:"base_spread_bps"`
	BaseSignal      SignalResult   `json:"base_signal"`

	Volatility []VolShockResult  `json:"volatility"`
	Debt       []DebtShockResult `json:"debt"`
	Stress     []StressResult    `json:"stress"`

	// SpreadStd is the population standard deviation of the shocked
	// spreads over the volatility grid, excluding failed scenarios.
	SpreadStd float64 `json:"spread_std"`
	// SpreadRange is max - min over the same set.
	SpreadRange float64 `json:"spread_range"`
	// IsRobust is true iff the signal direction is unchanged across
	// every successfully computed volatility scenario, with no collapse
	// to NEUTRAL from a non-neutral base signal.
	IsRobust bool `json:"is_robust"`
}
