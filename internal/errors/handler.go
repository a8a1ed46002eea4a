package errors

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/render"

	"creditpulse/internal/infrastructure"
	"creditpulse/internal/merton"
	"creditpulse/internal/services"
)

// Common error types following RFC 7807
const (
	TypeValidation  = "/errors/validation"
	TypeNotFound    = "/errors/not-found"
	TypeRateLimit   = "/errors/rate-limit"
	TypeInternal    = "/errors/internal"
	TypeServiceDown = "/errors/service-unavailable"
	TypeTimeout     = "/errors/timeout"
)

// Domain-specific error types
const (
	TypeInvalidInputs     = "/errors/analysis/invalid-inputs"
	TypeSolverFailure     = "/errors/analysis/solver-not-converged"
	TypeEquityDataFailure = "/errors/providers/equity-data-unavailable"
	TypeBenchmarkFailure  = "/errors/providers/benchmark-unavailable"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := infrastructure.GetTraceID(r.Context())

	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("error", err.Error()),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
	)

	problem := h.ErrorToProblem(err, r)
	problem.WithExtension("trace_id", reqID)

	if h.includeStack {
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details.
//
// The typed analysis and provider errors carry their own diagnostics,
// which surface as problem extensions: a non-converged solve reports
// the residual and evaluation count it got stuck at, and a benchmark
// failure reports the rating and series it was resolving.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	// Context errors first: a cancelled request is a timeout, whatever
	// wrapped it.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			r.URL.Path,
		)
	}

	var domainErr *merton.DomainError
	if errors.As(err, &domainErr) {
		return NewProblemDetails(
			http.StatusBadRequest,
			TypeInvalidInputs,
			"Invalid Analysis Inputs",
			domainErr.Error(),
			r.URL.Path,
		).WithExtension("op", domainErr.Op)
	}

	var convErr *merton.ConvergenceError
	if errors.As(err, &convErr) {
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeSolverFailure,
			"Solver Did Not Converge",
			convErr.Error(),
			r.URL.Path,
		).WithExtension("best_residual", convErr.BestResidual).
			WithExtension("evaluations", convErr.Evaluations)
	}

	var dataErr *services.DataUnavailableError
	if errors.As(err, &dataErr) {
		return NewProblemDetails(
			http.StatusBadGateway,
			TypeEquityDataFailure,
			"Equity Data Unavailable",
			dataErr.Error(),
			r.URL.Path,
		).WithExtension("ticker", dataErr.Ticker)
	}

	var benchErr *services.BenchmarkUnavailableError
	if errors.As(err, &benchErr) {
		return NewProblemDetails(
			http.StatusBadGateway,
			TypeBenchmarkFailure,
			"Benchmark Spread Unavailable",
			benchErr.Error(),
			r.URL.Path,
		).WithExtension("rating", string(benchErr.Rating)).
			WithExtension("series", benchErr.Series)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	return NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred while processing your request",
		r.URL.Path,
	)
}

// apiErrorToProblem converts APIError to ProblemDetails
func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case "VALIDATION_FAILED", "INVALID_REQUEST":
		problemType = TypeValidation
	case "NOT_FOUND", "TICKER_NOT_FOUND":
		problemType = TypeNotFound
	case "SOLVER_NOT_CONVERGED":
		problemType = TypeSolverFailure
	case "UPSTREAM_DATA_ERROR":
		problemType = TypeEquityDataFailure
	case "RATE_LIMIT_EXCEEDED":
		problemType = TypeRateLimit
	case "SERVICE_UNAVAILABLE":
		problemType = TypeServiceDown
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}

	return problem
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := infrastructure.GetTraceID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", reqID)

	if h.includeStack {
		problem.WithExtension("stack", getStackTrace())
	}

	render.Render(w, r, problem)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", infrastructure.GetTraceID(r.Context()))

	render.Render(w, r, problem)
}

// getStackTrace returns the current stack trace
func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
