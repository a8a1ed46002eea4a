package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "creditpulse/internal/errors"
	"creditpulse/internal/exporter"
	"creditpulse/internal/merton"
	"creditpulse/internal/services"
)

// AnalysisHandler handles credit analysis HTTP requests
type AnalysisHandler struct {
	service      *services.AnalysisService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(service *services.AnalysisService, logger *slog.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		service:      service,
		logger:       logger.With(slog.String("handler", "analysis")),
		errorHandler: apierrors.NewErrorHandler(logger, false),
	}
}

// RegisterRoutes registers the analysis routes
func (h *AnalysisHandler) RegisterRoutes(r chi.Router) {
	r.Route("/analysis", func(r chi.Router) {
		r.Post("/", h.Analyze)
		r.Post("/sensitivity", h.Sensitivity)
		r.Get("/{ticker}", h.Latest)
		r.Get("/{ticker}/export", h.Export)
	})
}

// AnalysisRequest is the request body for POST /analysis and
// POST /analysis/sensitivity. Either a ticker (resolved through the
// equity data provider) or explicit solver inputs must be supplied.
// The market spread is optional; when absent it is resolved from the
// benchmark spread provider using the leverage-implied rating.
type AnalysisRequest struct {
	Ticker          string   `json:"ticker,omitempty"`
	Equity          float64  `json:"equity,omitempty"`
	Debt            float64  `json:"debt,omitempty"`
	EquityVol       float64  `json:"equity_vol,omitempty"`
	RiskFree        float64  `json:"risk_free,omitempty"`
	Horizon         float64  `json:"horizon,omitempty"`
	MarketSpreadBps *float64 `json:"market_spread_bps,omitempty"`
}

// hasInputs reports whether the request carries explicit solver inputs
// rather than just a ticker to resolve.
func (req *AnalysisRequest) hasInputs() bool {
	return req.Equity != 0 || req.Debt != 0 || req.EquityVol != 0
}

func (req *AnalysisRequest) financials() merton.FirmFinancials {
	horizon := req.Horizon
	if horizon == 0 {
		horizon = 1.0
	}
	return merton.FirmFinancials{
		Ticker:    req.Ticker,
		Equity:    req.Equity,
		Debt:      req.Debt,
		EquityVol: req.EquityVol,
		RiskFree:  req.RiskFree,
		Horizon:   horizon,
	}
}

// Analyze handles POST /api/v1/analysis
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req AnalysisRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	if !req.hasInputs() && req.Ticker == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation(
			"ticker", "either a ticker or explicit inputs (equity, debt, equity_vol) are required"))
		return
	}

	h.logger.InfoContext(ctx, "analysis requested",
		slog.String("ticker", req.Ticker),
		slog.Bool("explicit_inputs", req.hasInputs()),
	)

	var res *merton.AnalysisResult
	var err error
	if req.hasInputs() {
		res, err = h.service.AnalyzeInputs(ctx, req.financials(), req.MarketSpreadBps)
	} else {
		res, err = h.service.AnalyzeTicker(ctx, req.Ticker, req.MarketSpreadBps)
	}
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, res)
}

// Sensitivity handles POST /api/v1/analysis/sensitivity
func (h *AnalysisHandler) Sensitivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req AnalysisRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	fin := req.financials()
	if !req.hasInputs() {
		if req.Ticker == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation(
				"ticker", "either a ticker or explicit inputs (equity, debt, equity_vol) are required"))
			return
		}
		resolved, err := h.service.ResolveFinancials(ctx, req.Ticker)
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		fin = resolved
	}

	h.logger.InfoContext(ctx, "sensitivity requested",
		slog.String("ticker", fin.Ticker))

	report, err := h.service.Sensitivity(ctx, fin, req.MarketSpreadBps)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, report)
}

// Latest handles GET /api/v1/analysis/{ticker}
func (h *AnalysisHandler) Latest(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	res, err := h.service.Latest(ticker)
	if err != nil {
		if errors.Is(err, services.ErrAnalysisNotFound) {
			h.errorHandler.HandleError(w, r, apierrors.NotFoundError("analysis for "+strings.ToUpper(ticker)))
			return
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, res)
}

// Export handles GET /api/v1/analysis/{ticker}/export?format=csv|xlsx.
// It streams the latest retained analysis for the ticker.
func (h *AnalysisHandler) Export(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	res, err := h.service.Latest(ticker)
	if err != nil {
		if errors.Is(err, services.ErrAnalysisNotFound) {
			h.errorHandler.HandleError(w, r, apierrors.NotFoundError("analysis for "+strings.ToUpper(ticker)))
			return
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "csv"
	}

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="analysis_`+strings.ToUpper(ticker)+`.csv"`)
		if err := exporter.WriteAnalysisCSV(w, res); err != nil {
			h.logger.ErrorContext(r.Context(), "csv export failed",
				slog.String("ticker", ticker),
				slog.String("error", err.Error()))
		}
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="analysis_`+strings.ToUpper(ticker)+`.xlsx"`)
		if err := exporter.WriteAnalysisXLSX(w, res, nil); err != nil {
			h.logger.ErrorContext(r.Context(), "xlsx export failed",
				slog.String("ticker", ticker),
				slog.String("error", err.Error()))
		}
	default:
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation(
			"format", "unsupported export format, use csv or xlsx"))
	}
}
