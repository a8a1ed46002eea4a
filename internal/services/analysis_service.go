package services

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"creditpulse/internal/merton"
)

// AnalysisMetrics is the narrow metrics surface the service records
// to. A nil implementation disables recording.
type AnalysisMetrics interface {
	RecordAnalysis(outcome, method string, duration time.Duration)
	RecordSensitivity(scenarios, failed int, duration time.Duration)
}

// AnalysisService composes the Merton analyzer with the external data
// providers and keeps the latest result per ticker for retrieval.
//
// Both providers are optional: with no equity provider, only
// caller-supplied inputs can be analyzed; with no spread provider, the
// caller must supply the market spread explicitly.
type AnalysisService struct {
	analyzer *merton.Analyzer
	equity   EquityDataProvider
	spreads  MarketSpreadProvider
	metrics  AnalysisMetrics
	logger   *slog.Logger

	mu     sync.RWMutex
	latest map[string]*merton.AnalysisResult
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(analyzer *merton.Analyzer, equity EquityDataProvider, spreads MarketSpreadProvider, metrics AnalysisMetrics, logger *slog.Logger) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisService{
		analyzer: analyzer,
		equity:   equity,
		spreads:  spreads,
		metrics:  metrics,
		logger:   logger,
		latest:   make(map[string]*merton.AnalysisResult),
	}
}

// AnalyzeInputs runs a full analysis on caller-supplied financials.
// When marketSpreadBps is nil the spread is resolved from the
// benchmark provider using the leverage-implied rating.
func (s *AnalysisService) AnalyzeInputs(ctx context.Context, fin merton.FirmFinancials, marketSpreadBps *float64) (*merton.AnalysisResult, error) {
	start := time.Now()

	var res *merton.AnalysisResult
	var err error
	if marketSpreadBps != nil {
		res, err = s.analyzer.Analyze(ctx, fin, *marketSpreadBps)
	} else {
		res, err = s.analyzer.AnalyzeWithSpread(ctx, fin, func(rating merton.Rating) (float64, error) {
			return s.benchmarkSpread(ctx, rating)
		})
	}
	if err != nil {
		s.recordAnalysis("failed", "", time.Since(start))
		return nil, err
	}

	s.recordAnalysis("success", string(res.Solution.Method), time.Since(start))
	s.remember(res)
	return res, nil
}

// AnalyzeTicker resolves financials from the equity provider and runs
// a full analysis.
func (s *AnalysisService) AnalyzeTicker(ctx context.Context, ticker string, marketSpreadBps *float64) (*merton.AnalysisResult, error) {
	fin, err := s.ResolveFinancials(ctx, ticker)
	if err != nil {
		return nil, err
	}
	return s.AnalyzeInputs(ctx, fin, marketSpreadBps)
}

// Sensitivity runs the shock and stress battery on caller-supplied
// financials. A nil market spread is resolved from the benchmark
// provider before the grid runs, so every scenario compares against
// the same quote.
func (s *AnalysisService) Sensitivity(ctx context.Context, fin merton.FirmFinancials, marketSpreadBps *float64) (*merton.SensitivityReport, error) {
	start := time.Now()

	spread, err := s.resolveSpread(ctx, fin, marketSpreadBps)
	if err != nil {
		return nil, err
	}

	report, err := s.analyzer.Sensitivity(ctx, fin, spread)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		scenarios := len(report.Volatility) + len(report.Debt) + len(report.Stress)
		failed := 0
		for _, row := range report.Volatility {
			if row.Failed {
				failed++
			}
		}
		for _, row := range report.Debt {
			if row.Failed {
				failed++
			}
		}
		for _, row := range report.Stress {
			if row.Failed {
				failed++
			}
		}
		s.metrics.RecordSensitivity(scenarios, failed, time.Since(start))
	}
	return report, nil
}

// ResolveFinancials fetches solver inputs for a ticker from the equity
// provider.
func (s *AnalysisService) ResolveFinancials(ctx context.Context, ticker string) (merton.FirmFinancials, error) {
	if s.equity == nil {
		return merton.FirmFinancials{}, &DataUnavailableError{Ticker: ticker, Cause: ErrProviderDisabled}
	}
	return s.equity.Financials(ctx, ticker)
}

// Latest returns the most recent analysis result for a ticker, or
// ErrAnalysisNotFound.
func (s *AnalysisService) Latest(ticker string) (*merton.AnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.latest[strings.ToUpper(ticker)]
	if !ok {
		return nil, ErrAnalysisNotFound
	}
	return res, nil
}

func (s *AnalysisService) resolveSpread(ctx context.Context, fin merton.FirmFinancials, marketSpreadBps *float64) (float64, error) {
	if marketSpreadBps != nil {
		return *marketSpreadBps, nil
	}
	// The rating depends on the implied asset value, so a base solve
	// runs before the benchmark lookup.
	eval, err := s.analyzer.Evaluate(ctx, fin)
	if err != nil {
		return 0, err
	}
	rating := merton.EstimateRating(eval.Solution.AssetValue, fin.Debt)
	return s.benchmarkSpread(ctx, rating)
}

func (s *AnalysisService) benchmarkSpread(ctx context.Context, rating merton.Rating) (float64, error) {
	if s.spreads == nil {
		return 0, &BenchmarkUnavailableError{Rating: rating, Cause: ErrProviderDisabled}
	}
	return s.spreads.SpreadBps(ctx, rating)
}

func (s *AnalysisService) remember(res *merton.AnalysisResult) {
	if res.Inputs.Ticker == "" {
		return
	}
	s.mu.Lock()
	s.latest[strings.ToUpper(res.Inputs.Ticker)] = res
	s.mu.Unlock()
}

func (s *AnalysisService) recordAnalysis(outcome, method string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordAnalysis(outcome, method, d)
	}
}
