package merton

// SignalThresholds is the named threshold table used by the classifier.
// Values are absolute spread differences in basis points.
type SignalThresholds struct {
	// StrongBps separates moderate from strong signals. Default 150.
	StrongBps float64 `json:"strong_bps" yaml:"strong_bps" envconfig:"STRONG_BPS" default:"150"`
	// ModerateBps separates neutral from moderate signals. Default 75.
	ModerateBps float64 `json:"moderate_bps" yaml:"moderate_bps" envconfig:"MODERATE_BPS" default:"75"`
}

// IsValid checks the thresholds are positive and ordered.
func (t SignalThresholds) IsValid() bool {
	return t.ModerateBps > 0 && t.StrongBps > t.ModerateBps
}

// SolverConfig bounds and tunes the implied-asset solver.
type SolverConfig struct {
	// Tolerance is the scaled residual tolerance for the primary stage.
	Tolerance float64 `json:"tolerance" yaml:"tolerance" envconfig:"TOLERANCE" default:"1e-6"`
	// FallbackTolerance is the looser acceptance tolerance for the
	// bounded minimization stage.
	FallbackTolerance float64 `json:"fallback_tolerance" yaml:"fallback_tolerance" envconfig:"FALLBACK_TOLERANCE" default:"1e-4"`
	// MaxIterations caps iterations of a single stage attempt.
	MaxIterations int `json:"max_iterations" yaml:"max_iterations" envconfig:"MAX_ITERATIONS" default:"200"`
	// MaxEvaluations caps total residual evaluations across the whole
	// multi-start schedule, guaranteeing termination on pathological
	// inputs. Exceeding it is a ConvergenceError.
	MaxEvaluations int `json:"max_evaluations" yaml:"max_evaluations" envconfig:"MAX_EVALUATIONS" default:"20000"`
	// SigmaSeedFactors are multiplicative perturbations applied to the
	// leverage-adjusted volatility seed to escape local failure basins.
	SigmaSeedFactors []float64 `json:"sigma_seed_factors" yaml:"sigma_seed_factors" envconfig:"SIGMA_SEED_FACTORS" default:"0.5,1.0,1.5"`
	// SigmaVMin and SigmaVMax are the asset-volatility box bounds for
	// the fallback stage and the feasibility check of both stages.
	SigmaVMin float64 `json:"sigma_v_min" yaml:"sigma_v_min" envconfig:"SIGMA_V_MIN" default:"0.01"`
	SigmaVMax float64 `json:"sigma_v_max" yaml:"sigma_v_max" envconfig:"SIGMA_V_MAX" default:"2.0"`
	// AssetCeilMult caps the fallback search at AssetCeilMult*(E+D).
	AssetCeilMult float64 `json:"asset_ceil_mult" yaml:"asset_ceil_mult" envconfig:"ASSET_CEIL_MULT" default:"10"`
	// LeverageThreshold and VolatilityFloor implement the risk-aware
	// floor: when book leverage D/(E+D) exceeds the threshold and the
	// solved sigma_V falls below the floor, sigma_V is clamped and V
	// re-solved from the equity equation alone. Both are calibration
	// heuristics inherited from empirical work, not derived constants.
	LeverageThreshold float64 `json:"leverage_threshold" yaml:"leverage_threshold" envconfig:"LEVERAGE_THRESHOLD" default:"0.7"`
	VolatilityFloor   float64 `json:"volatility_floor" yaml:"volatility_floor" envconfig:"VOLATILITY_FLOOR" default:"0.15"`
}

// IsValid checks the solver configuration for internal consistency.
func (c SolverConfig) IsValid() bool {
	return c.Tolerance > 0 &&
		c.FallbackTolerance >= c.Tolerance &&
		c.MaxIterations > 0 &&
		c.MaxEvaluations > 0 &&
		c.SigmaVMin > 0 &&
		c.SigmaVMax > c.SigmaVMin &&
		c.AssetCeilMult > 1 &&
		c.LeverageThreshold > 0 && c.LeverageThreshold < 1 &&
		c.VolatilityFloor > c.SigmaVMin
}

// Config is the immutable configuration for one Analyzer. It replaces
// process-wide constants so alternate calibrations can be tested
// side by side.
type Config struct {
	// RecoveryRate is the assumed fractional recovery of debt face
	// value in default. Default 0.40 (long-run senior unsecured
	// average).
	RecoveryRate float64 `json:"recovery_rate" yaml:"recovery_rate" envconfig:"RECOVERY_RATE" default:"0.40"`

	Thresholds SignalThresholds `json:"thresholds" yaml:"thresholds" envconfig:"THRESHOLDS"`
	Solver     SolverConfig     `json:"solver" yaml:"solver" envconfig:"SOLVER"`

	// VolShockGrid and DebtShockGrid are the fixed multiplicative shock
	// grids for the sensitivity engine, as fractions.
	VolShockGrid  []float64 `json:"vol_shock_grid" yaml:"vol_shock_grid" envconfig:"VOL_SHOCK_GRID" default:"-0.20,-0.10,-0.05,0,0.05,0.10,0.20"`
	DebtShockGrid []float64 `json:"debt_shock_grid" yaml:"debt_shock_grid" envconfig:"DEBT_SHOCK_GRID" default:"-0.20,-0.10,-0.05,0,0.05,0.10,0.20"`

	// StressScenarios are the named combined shocks evaluated by the
	// stress engine.
	StressScenarios []StressScenario `json:"stress_scenarios" yaml:"stress_scenarios"`

	// MaxConcurrency bounds the number of sensitivity scenarios solved
	// in parallel. Scenarios are independent and merged by grid index.
	MaxConcurrency int `json:"max_concurrency" yaml:"max_concurrency" envconfig:"MAX_CONCURRENCY" default:"4"`
}

// DefaultStressScenarios mirrors the standard combined stress battery:
// escalating joint volatility/debt shocks, an equity-crash case, and a
// benign unwinding case.
func DefaultStressScenarios() []StressScenario {
	return []StressScenario{
		{Name: "base", VolShock: 0, DebtShock: 0},
		{Name: "mild_stress", VolShock: 0.10, DebtShock: 0.10},
		{Name: "moderate_stress", VolShock: 0.20, DebtShock: 0.20},
		{Name: "severe_stress", VolShock: 0.30, DebtShock: 0.30},
		{Name: "extreme_stress", VolShock: 0.50, DebtShock: 0.30},
		{Name: "equity_crash", VolShock: 0.40, EquityShock: -0.30},
		{Name: "benign", VolShock: -0.20, DebtShock: -0.20},
	}
}

// DefaultConfig returns the standard calibration.
func DefaultConfig() Config {
	return Config{
		RecoveryRate: 0.40,
		Thresholds: SignalThresholds{
			StrongBps:   150,
			ModerateBps: 75,
		},
		Solver: SolverConfig{
			Tolerance:         1e-6,
			FallbackTolerance: 1e-4,
			MaxIterations:     200,
			MaxEvaluations:    20000,
			SigmaSeedFactors:  []float64{0.5, 1.0, 1.5},
			SigmaVMin:         0.01,
			SigmaVMax:         2.0,
			AssetCeilMult:     10,
			LeverageThreshold: 0.7,
			VolatilityFloor:   0.15,
		},
		VolShockGrid:    []float64{-0.20, -0.10, -0.05, 0, 0.05, 0.10, 0.20},
		DebtShockGrid:   []float64{-0.20, -0.10, -0.05, 0, 0.05, 0.10, 0.20},
		StressScenarios: DefaultStressScenarios(),
		MaxConcurrency:  4,
	}
}

// Validate checks the configuration, applying defaults for omitted
// optional sections.
func (c *Config) Validate() error {
	if c.RecoveryRate < 0 || c.RecoveryRate >= 1 {
		return newDomainError("config", "recovery rate must be in [0,1), got %g", c.RecoveryRate)
	}
	if !c.Thresholds.IsValid() {
		return newDomainError("config", "signal thresholds invalid: strong=%g moderate=%g",
			c.Thresholds.StrongBps, c.Thresholds.ModerateBps)
	}
	if !c.Solver.IsValid() {
		return newDomainError("config", "solver configuration invalid")
	}
	if len(c.VolShockGrid) == 0 {
		return newDomainError("config", "volatility shock grid is empty")
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 1
	}
	if len(c.StressScenarios) == 0 {
		c.StressScenarios = DefaultStressScenarios()
	}
	return nil
}
