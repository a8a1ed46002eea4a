package merton

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Analyzer orchestrates one analysis pipeline: solve -> credit metrics
// -> signal. It is safe for concurrent use; all per-analysis state
// lives on the stack of each call.
type Analyzer struct {
	cfg      Config
	logger   *slog.Logger
	solver   *solver
	validate *validator.Validate
}

// NewAnalyzer creates an analyzer with the given configuration.
func NewAnalyzer(cfg Config, logger *slog.Logger) (*Analyzer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate analyzer config: %w", err)
	}
	return &Analyzer{
		cfg:      cfg,
		logger:   logger,
		solver:   newSolver(cfg.Solver, logger),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// Config returns the analyzer's immutable configuration.
func (a *Analyzer) Config() Config { return a.cfg }

// Evaluation is the solved state and derived risk metrics of one firm,
// before any market comparison.
type Evaluation struct {
	Solution MertonSolution `json:"solution"`
	Metrics  CreditMetrics  `json:"metrics"`
}

// Evaluate validates the inputs, inverts the Merton system and derives
// credit metrics. It is the market-independent half of an analysis.
func (a *Analyzer) Evaluate(ctx context.Context, fin FirmFinancials) (*Evaluation, error) {
	if err := a.validate.Struct(fin); err != nil {
		return nil, newDomainError("inputs", "invalid firm financials: %v", err)
	}

	sol, err := a.solver.Solve(ctx, fin)
	if err != nil {
		return nil, err
	}

	metrics, err := ComputeCreditMetrics(fin, *sol, a.cfg.RecoveryRate)
	if err != nil {
		return nil, err
	}

	return &Evaluation{Solution: *sol, Metrics: metrics}, nil
}

// Analyze runs the full pipeline against an externally supplied market
// spread and returns the assembled result or a typed error.
func (a *Analyzer) Analyze(ctx context.Context, fin FirmFinancials, marketSpreadBps float64) (*AnalysisResult, error) {
	return a.AnalyzeWithSpread(ctx, fin, func(Rating) (float64, error) {
		return marketSpreadBps, nil
	})
}

// AnalyzeWithSpread runs the full pipeline, resolving the market spread
// through spreadFor once the leverage-implied rating bucket is known.
// This lets callers wire in a benchmark provider without the core
// depending on it.
func (a *Analyzer) AnalyzeWithSpread(ctx context.Context, fin FirmFinancials, spreadFor func(Rating) (float64, error)) (*AnalysisResult, error) {
	start := time.Now()
	tracker := newStateTracker()

	fail := func(err error) (*AnalysisResult, error) {
		tracker.advance(PhaseFailed)
		a.logger.WarnContext(ctx, "analysis failed",
			"ticker", fin.Ticker,
			"phase", string(tracker.current()),
			"error", err,
		)
		return nil, err
	}

	if err := a.validate.Struct(fin); err != nil {
		return fail(newDomainError("inputs", "invalid firm financials: %v", err))
	}

	tracker.advance(PhaseSolving)
	sol, err := a.solver.Solve(ctx, fin)
	if err != nil {
		return fail(err)
	}
	tracker.advance(PhaseSolved)

	metrics, err := ComputeCreditMetrics(fin, *sol, a.cfg.RecoveryRate)
	if err != nil {
		return fail(err)
	}
	tracker.advance(PhaseMetricsComputed)

	rating := EstimateRating(sol.AssetValue, fin.Debt)
	marketSpreadBps, err := spreadFor(rating)
	if err != nil {
		return fail(err)
	}

	signal := Classify(metrics.SpreadBps, marketSpreadBps, a.cfg.Thresholds)
	tracker.advance(PhaseSignalComputed)

	a.logger.InfoContext(ctx, "analysis completed",
		"ticker", fin.Ticker,
		"method", string(sol.Method),
		"asset_value", sol.AssetValue,
		"asset_vol", sol.AssetVol,
		"distance_to_default", metrics.DistanceToDefault,
		"spread_bps", metrics.SpreadBps,
		"market_spread_bps", marketSpreadBps,
		"signal", string(signal.Signal),
		"duration", time.Since(start),
	)

	return &AnalysisResult{
		ID:              uuid.NewString(),
		Timestamp:       time.Now().UTC(),
		Inputs:          fin,
		Solution:        *sol,
		Metrics:         metrics,
		Signal:          signal,
		MarketSpreadBps: marketSpreadBps,
		Rating:          rating,
		Trace:           tracker.trace,
	}, nil
}
