package merton

import (
	"errors"
	"fmt"
)

// DomainError reports an invalid mathematical precondition, such as a
// non-positive argument to a logarithm. It always indicates a data
// validation or solver consistency bug upstream and is never retried.
type DomainError struct {
	Op  string
	Msg string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("domain error in %s: %s", e.Op, e.Msg)
}

func newDomainError(op, format string, args ...any) *DomainError {
	return &DomainError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// IsDomainError reports whether err is or wraps a *DomainError.
func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

// Seed is one starting point of the multi-start schedule, recorded on
// convergence failures for diagnostics.
type Seed struct {
	AssetValue float64 `json:"asset_value"`
	AssetVol   float64 `json:"asset_vol"`
}

// ConvergenceError reports that the solver exhausted its multi-start
// budget without finding a feasible root. It carries the best achieved
// scaled residual and the seed schedule that was attempted so callers
// can surface diagnostics instead of a placeholder solution.
type ConvergenceError struct {
	Ticker       string
	BestResidual float64
	Seeds        []Seed
	Evaluations  int
}

func (e *ConvergenceError) Error() string {
	if e.Ticker != "" {
		return fmt.Sprintf("merton solver did not converge for %s: best residual %.3e after %d seeds (%d evaluations)",
			e.Ticker, e.BestResidual, len(e.Seeds), e.Evaluations)
	}
	return fmt.Sprintf("merton solver did not converge: best residual %.3e after %d seeds (%d evaluations)",
		e.BestResidual, len(e.Seeds), e.Evaluations)
}

// IsConvergenceError reports whether err is or wraps a *ConvergenceError.
func IsConvergenceError(err error) bool {
	var ce *ConvergenceError
	return errors.As(err, &ce)
}
