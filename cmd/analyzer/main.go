// Command analyzer runs a single Merton analysis from the command line
// and prints the result as JSON or exports it to CSV/XLSX.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"creditpulse/internal/config"
	"creditpulse/internal/exporter"
	"creditpulse/internal/infrastructure"
	"creditpulse/internal/merton"
	"creditpulse/internal/services"
)

func main() {
	var (
		ticker       = flag.String("ticker", "", "Ticker symbol (resolves financials from the equity provider when no inputs are given)")
		equity       = flag.Float64("equity", 0, "Market value of equity")
		debt         = flag.Float64("debt", 0, "Face value of debt")
		equityVol    = flag.Float64("equity-vol", 0, "Annualized equity volatility (e.g. 0.40)")
		riskFree     = flag.Float64("risk-free", 0, "Continuously compounded risk-free rate (e.g. 0.045)")
		horizon      = flag.Float64("horizon", 1.0, "Horizon in years")
		marketSpread = flag.Float64("market-spread", 0, "Observed market spread in bps (benchmark provider is used when omitted)")
		sensitivity  = flag.Bool("sensitivity", false, "Run the sensitivity and stress battery as well")
		out          = flag.String("out", "", "Output file path (prints JSON to stdout when omitted)")
		format       = flag.String("format", "csv", "Export format when -out is set: csv or xlsx")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := run(cfg, logger, cliOptions{
		ticker:          *ticker,
		equity:          *equity,
		debt:            *debt,
		equityVol:       *equityVol,
		riskFree:        *riskFree,
		horizon:         *horizon,
		marketSpreadBps: marketSpreadFlag(marketSpread),
		sensitivity:     *sensitivity,
		out:             *out,
		format:          strings.ToLower(*format),
	}); err != nil {
		logger.Error("Analysis failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

type cliOptions struct {
	ticker          string
	equity          float64
	debt            float64
	equityVol       float64
	riskFree        float64
	horizon         float64
	marketSpreadBps *float64
	sensitivity     bool
	out             string
	format          string
}

// marketSpreadFlag returns the spread pointer only when the flag was
// set on the command line, so an omitted flag falls through to the
// benchmark provider.
func marketSpreadFlag(value *float64) *float64 {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "market-spread" {
			set = true
		}
	})
	if !set {
		return nil
	}
	return value
}

func run(cfg *config.Config, logger *slog.Logger, opts cliOptions) error {
	if opts.ticker == "" && opts.equity == 0 && opts.debt == 0 {
		return fmt.Errorf("either -ticker or explicit -equity/-debt/-equity-vol inputs are required")
	}
	if opts.out != "" && opts.format != "csv" && opts.format != "xlsx" {
		return fmt.Errorf("unsupported export format %q, expected csv or xlsx", opts.format)
	}

	analyzer, err := merton.NewAnalyzer(cfg.Analysis, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize analyzer: %w", err)
	}

	var equityProvider services.EquityDataProvider
	if cfg.Providers.Equity.BaseURL != "" {
		equityProvider = services.NewEquityClient(
			cfg.Providers.Equity.BaseURL,
			cfg.Providers.Equity.Timeout,
			cfg.Providers.Equity.RPS,
			cfg.Providers.Equity.Burst,
			logger,
		)
	}

	var spreadProvider services.MarketSpreadProvider
	if cfg.Providers.FRED.APIKey != "" {
		spreadProvider = services.NewFREDClient(
			cfg.Providers.FRED.BaseURL,
			cfg.Providers.FRED.APIKey,
			cfg.Providers.FRED.Series,
			cfg.Providers.FRED.Timeout,
			cfg.Providers.FRED.RPS,
			cfg.Providers.FRED.Burst,
			logger,
		)
	}

	service := services.NewAnalysisService(analyzer, equityProvider, spreadProvider, nil, logger)
	ctx := context.Background()

	fin := merton.FirmFinancials{
		Ticker:    strings.ToUpper(opts.ticker),
		Equity:    opts.equity,
		Debt:      opts.debt,
		EquityVol: opts.equityVol,
		RiskFree:  opts.riskFree,
		Horizon:   opts.horizon,
	}

	var res *merton.AnalysisResult
	if opts.equity == 0 && opts.debt == 0 {
		res, err = service.AnalyzeTicker(ctx, opts.ticker, opts.marketSpreadBps)
		if err != nil {
			return err
		}
		fin = res.Inputs
	} else {
		res, err = service.AnalyzeInputs(ctx, fin, opts.marketSpreadBps)
		if err != nil {
			return err
		}
	}

	var report *merton.SensitivityReport
	if opts.sensitivity {
		report, err = service.Sensitivity(ctx, fin, &res.MarketSpreadBps)
		if err != nil {
			return err
		}
	}

	if opts.out == "" {
		return printJSON(res, report)
	}
	return export(cfg, logger, opts, res, report)
}

func printJSON(res *merton.AnalysisResult, report *merton.SensitivityReport) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if report != nil {
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode sensitivity report: %w", err)
		}
	}
	return nil
}

func export(cfg *config.Config, logger *slog.Logger, opts cliOptions, res *merton.AnalysisResult, report *merton.SensitivityReport) error {
	if opts.format == "xlsx" {
		path := opts.out
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.Export.Dir, path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
		if err := exporter.SaveAnalysisXLSX(path, res, report); err != nil {
			return err
		}
		logger.Info("Exported analysis workbook", slog.String("path", path))
		return nil
	}

	writer := exporter.NewCSVWriter(cfg.Export.Dir)
	if err := writer.WriteAnalysis(opts.out, res); err != nil {
		return err
	}
	logger.Info("Exported analysis CSV", slog.String("path", opts.out))

	if report != nil {
		reportPath := sensitivityPath(opts.out)
		if err := writer.WriteSensitivity(reportPath, report); err != nil {
			return err
		}
		logger.Info("Exported sensitivity CSV", slog.String("path", reportPath))
	}
	return nil
}

// sensitivityPath derives the sensitivity file name from the analysis
// file name, e.g. dstr.csv -> dstr_sensitivity.csv.
func sensitivityPath(out string) string {
	ext := filepath.Ext(out)
	return strings.TrimSuffix(out, ext) + "_sensitivity" + ext
}
