package services

import (
	"errors"
	"fmt"

	"creditpulse/internal/merton"
)

// General service errors
var (
	ErrAnalysisNotFound   = errors.New("analysis not found")
	ErrTickerNotFound     = errors.New("ticker not found")
	ErrProviderDisabled   = errors.New("provider not configured")
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
)

// DataUnavailableError reports a failure to assemble solver inputs for
// a ticker from the equity data provider.
type DataUnavailableError struct {
	Ticker string
	Cause  error
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("equity data unavailable for %s: %v", e.Ticker, e.Cause)
}

func (e *DataUnavailableError) Unwrap() error { return e.Cause }

// BenchmarkUnavailableError reports a failure to resolve the market
// spread benchmark for a rating bucket.
type BenchmarkUnavailableError struct {
	Rating merton.Rating
	Series string
	Cause  error
}

func (e *BenchmarkUnavailableError) Error() string {
	return fmt.Sprintf("benchmark spread unavailable for rating %s (series %s): %v",
		e.Rating, e.Series, e.Cause)
}

func (e *BenchmarkUnavailableError) Unwrap() error { return e.Cause }
