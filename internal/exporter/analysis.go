package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"creditpulse/internal/merton"
)

// analysisHeaders is the column layout of an analysis export row.
var analysisHeaders = []string{
	"ticker", "timestamp",
	"equity", "debt", "equity_vol", "risk_free", "horizon",
	"asset_value", "asset_vol", "leverage", "method", "floored",
	"distance_to_default", "default_probability", "spread_bps",
	"market_spread_bps", "spread_diff_bps", "signal", "strength", "rating",
}

// AnalysisRecord flattens one analysis result into a CSV record.
func AnalysisRecord(res *merton.AnalysisResult) []string {
	return []string{
		res.Inputs.Ticker,
		res.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
		money(res.Inputs.Equity),
		money(res.Inputs.Debt),
		ratio(res.Inputs.EquityVol),
		ratio(res.Inputs.RiskFree),
		ratio(res.Inputs.Horizon),
		money(res.Solution.AssetValue),
		ratio(res.Solution.AssetVol),
		ratio(res.Solution.Leverage),
		string(res.Solution.Method),
		strconv.FormatBool(res.Solution.Floored),
		ratio(res.Metrics.DistanceToDefault),
		prob(res.Metrics.DefaultProbability),
		bps(res.Metrics.SpreadBps),
		bps(res.MarketSpreadBps),
		bps(res.Signal.SpreadDiffBps),
		string(res.Signal.Signal),
		strconv.Itoa(res.Signal.Strength),
		string(res.Rating),
	}
}

// WriteAnalysisCSV streams one analysis result as CSV.
func WriteAnalysisCSV(w io.Writer, res *merton.AnalysisResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(analysisHeaders); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	if err := cw.Write(AnalysisRecord(res)); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// sensitivityHeaders is the column layout of a sensitivity export row.
// The three scenario families share one flat grid keyed by scenario_type.
var sensitivityHeaders = []string{
	"scenario_type", "scenario", "shock",
	"spread_bps", "delta_bps", "signal", "failed", "error",
}

// SensitivityRecords flattens a sensitivity report into CSV records,
// preserving grid order.
func SensitivityRecords(report *merton.SensitivityReport) [][]string {
	records := make([][]string, 0, len(report.Volatility)+len(report.Debt)+len(report.Stress))

	for _, row := range report.Volatility {
		records = append(records, []string{
			"volatility",
			fmt.Sprintf("equity_vol %+.0f%%", row.ShockPct*100),
			ratio(row.ShockPct),
			failedOr(row.Failed, bps(row.SpreadBps)),
			failedOr(row.Failed, bps(row.DeltaBps)),
			failedOr(row.Failed, string(row.Signal)),
			strconv.FormatBool(row.Failed),
			row.Error,
		})
	}

	for _, row := range report.Debt {
		records = append(records, []string{
			"debt",
			fmt.Sprintf("debt %+.0f%%", row.ShockPct*100),
			ratio(row.ShockPct),
			failedOr(row.Failed, bps(row.SpreadBps)),
			failedOr(row.Failed, bps(row.DeltaBps)),
			failedOr(row.Failed, string(row.Signal)),
			strconv.FormatBool(row.Failed),
			row.Error,
		})
	}

	for _, row := range report.Stress {
		records = append(records, []string{
			"stress",
			row.Scenario.Name,
			"",
			failedOr(row.Failed, bps(row.SpreadBps)),
			failedOr(row.Failed, bps(row.DeltaBps)),
			failedOr(row.Failed, string(row.Signal)),
			strconv.FormatBool(row.Failed),
			row.Error,
		})
	}

	return records
}

// WriteSensitivityCSV streams a sensitivity report as CSV.
func WriteSensitivityCSV(w io.Writer, report *merton.SensitivityReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(sensitivityHeaders); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for i, record := range SensitivityRecords(report) {
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAnalysis writes one analysis result to a CSV file under the
// export directory.
func (w *CSVWriter) WriteAnalysis(filePath string, res *merton.AnalysisResult) error {
	return w.WriteSimpleCSV(filePath, analysisHeaders, [][]string{AnalysisRecord(res)})
}

// WriteSensitivity writes a sensitivity report to a CSV file under the
// export directory.
func (w *CSVWriter) WriteSensitivity(filePath string, report *merton.SensitivityReport) error {
	return w.WriteSimpleCSV(filePath, sensitivityHeaders, SensitivityRecords(report))
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func ratio(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func prob(v float64) string {
	return strconv.FormatFloat(v, 'e', 6, 64)
}

func bps(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func failedOr(failed bool, value string) string {
	if failed {
		return ""
	}
	return value
}
