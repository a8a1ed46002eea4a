package merton

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Sensitivity quantifies how robust the base-case signal is under input
// perturbation: a volatility shock grid, a debt shock grid, and a set
// of named combined stress scenarios.
//
// The base case must converge; a base-case failure fails the whole
// request. Individual shocked scenarios however have partial-failure
// semantics: a scenario that does not converge is recorded as failed in
// its grid slot and excluded from the aggregates, and the rest of the
// report is still produced.
//
// Scenarios are independent pure computations and run in parallel, but
// results are merged by grid index, so the report is deterministic and
// ordered by the configured shock grid regardless of completion order.
func (a *Analyzer) Sensitivity(ctx context.Context, fin FirmFinancials, marketSpreadBps float64) (*SensitivityReport, error) {
	start := time.Now()

	base, err := a.Evaluate(ctx, fin)
	if err != nil {
		return nil, err
	}
	baseSpread := base.Metrics.SpreadBps
	baseSignal := Classify(baseSpread, marketSpreadBps, a.cfg.Thresholds)

	report := &SensitivityReport{
		Inputs:          fin,
		MarketSpreadBps: marketSpreadBps,
		BaseSpreadBps:   baseSpread,
		BaseSignal:      baseSignal,
		Volatility:      make([]VolShockResult, len(a.cfg.VolShockGrid)),
		Debt:            make([]DebtShockResult, len(a.cfg.DebtShockGrid)),
		Stress:          make([]StressResult, len(a.cfg.StressScenarios)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.MaxConcurrency)

	for i, shock := range a.cfg.VolShockGrid {
		g.Go(func() error {
			report.Volatility[i] = a.volScenario(gctx, fin, shock, baseSpread, marketSpreadBps)
			return nil
		})
	}
	for i, shock := range a.cfg.DebtShockGrid {
		g.Go(func() error {
			report.Debt[i] = a.debtScenario(gctx, fin, shock, baseSpread, marketSpreadBps)
			return nil
		})
	}
	for i, sc := range a.cfg.StressScenarios {
		g.Go(func() error {
			report.Stress[i] = a.stressScenario(gctx, fin, sc, baseSpread, marketSpreadBps)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	a.aggregate(report)

	a.logger.InfoContext(ctx, "sensitivity analysis completed",
		"ticker", fin.Ticker,
		"vol_scenarios", len(report.Volatility),
		"debt_scenarios", len(report.Debt),
		"stress_scenarios", len(report.Stress),
		"spread_std", report.SpreadStd,
		"spread_range", report.SpreadRange,
		"is_robust", report.IsRobust,
		"duration", time.Since(start),
	)
	return report, nil
}

// volScenario re-runs the solver and metric calculator with sigma_E
// shocked by the given fraction.
func (a *Analyzer) volScenario(ctx context.Context, fin FirmFinancials, shock, baseSpread, marketSpreadBps float64) VolShockResult {
	shocked := fin
	shocked.EquityVol = fin.EquityVol * (1 + shock)

	row := VolShockResult{
		ShockPct:         shock,
		ShockedEquityVol: shocked.EquityVol,
	}

	eval, err := a.Evaluate(ctx, shocked)
	if err != nil {
		a.recordScenarioFailure(ctx, "volatility", fin.Ticker, shock, err)
		row.Failed = true
		row.Error = err.Error()
		return row
	}

	row.SpreadBps = eval.Metrics.SpreadBps
	row.DeltaBps = eval.Metrics.SpreadBps - baseSpread
	row.DistanceToDefault = eval.Metrics.DistanceToDefault
	row.Method = eval.Solution.Method
	row.Signal = Classify(eval.Metrics.SpreadBps, marketSpreadBps, a.cfg.Thresholds).Signal
	return row
}

// debtScenario re-runs the pipeline with the debt face value shocked.
func (a *Analyzer) debtScenario(ctx context.Context, fin FirmFinancials, shock, baseSpread, marketSpreadBps float64) DebtShockResult {
	shocked := fin
	shocked.Debt = fin.Debt * (1 + shock)

	row := DebtShockResult{
		ShockPct:    shock,
		ShockedDebt: shocked.Debt,
	}

	eval, err := a.Evaluate(ctx, shocked)
	if err != nil {
		a.recordScenarioFailure(ctx, "debt", fin.Ticker, shock, err)
		row.Failed = true
		row.Error = err.Error()
		return row
	}

	row.SpreadBps = eval.Metrics.SpreadBps
	row.DeltaBps = eval.Metrics.SpreadBps - baseSpread
	row.Leverage = eval.Solution.Leverage
	row.DistanceToDefault = eval.Metrics.DistanceToDefault
	row.Method = eval.Solution.Method
	row.Signal = Classify(eval.Metrics.SpreadBps, marketSpreadBps, a.cfg.Thresholds).Signal
	return row
}

// stressScenario applies a named combined shock to volatility, debt
// and equity simultaneously.
func (a *Analyzer) stressScenario(ctx context.Context, fin FirmFinancials, sc StressScenario, baseSpread, marketSpreadBps float64) StressResult {
	shocked := fin
	shocked.EquityVol = fin.EquityVol * (1 + sc.VolShock)
	shocked.Debt = fin.Debt * (1 + sc.DebtShock)
	shocked.Equity = fin.Equity * (1 + sc.EquityShock)

	row := StressResult{Scenario: sc}

	eval, err := a.Evaluate(ctx, shocked)
	if err != nil {
		a.logger.WarnContext(ctx, "stress scenario failed",
			"ticker", fin.Ticker,
			"scenario", sc.Name,
			"error", err,
		)
		row.Failed = true
		row.Error = err.Error()
		return row
	}

	row.SpreadBps = eval.Metrics.SpreadBps
	row.DeltaBps = eval.Metrics.SpreadBps - baseSpread
	row.DistanceToDefault = eval.Metrics.DistanceToDefault
	row.Method = eval.Solution.Method
	row.Signal = Classify(eval.Metrics.SpreadBps, marketSpreadBps, a.cfg.Thresholds).Signal
	return row
}

func (a *Analyzer) recordScenarioFailure(ctx context.Context, kind, ticker string, shock float64, err error) {
	a.logger.WarnContext(ctx, "sensitivity scenario failed",
		"ticker", ticker,
		"kind", kind,
		"shock_pct", shock,
		"error", err,
	)
}

// aggregate fills the report's summary statistics and robustness flag
// from the volatility grid. Failed scenarios are excluded from the
// statistics; robustness requires the signal direction of every
// successful scenario to match the base case, and a collapse to
// NEUTRAL from a non-neutral base breaks robustness.
func (a *Analyzer) aggregate(report *SensitivityReport) {
	var spreads []float64
	baseDir := report.BaseSignal.Signal.Direction()
	robust := true

	for _, row := range report.Volatility {
		if row.Failed {
			continue
		}
		spreads = append(spreads, row.SpreadBps)
		if row.Signal.Direction() != baseDir {
			robust = false
		}
	}

	if len(spreads) > 0 {
		report.SpreadStd = stat.PopStdDev(spreads, nil)
		report.SpreadRange = floats.Max(spreads) - floats.Min(spreads)
	} else {
		robust = false
	}
	report.IsRobust = robust
}
