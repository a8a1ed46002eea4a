// Package exporter provides CSV and XLSX export of analysis results.
//
// This package contains two main components:
//
// CSVWriter: Core CSV writing functionality with support for headers,
// streaming, and UTF-8 BOM for Excel compatibility, rooted at the
// configured reports directory.
//
// Workbook export: WriteAnalysisXLSX / SaveAnalysisXLSX build an Excel
// workbook with the base-case analysis and, optionally, the full
// sensitivity scenario grid.
//
// Example usage:
//
//	w := exporter.NewCSVWriter(cfg.Export.Dir)
//	err := w.WriteAnalysis("analysis_ACME.csv", result)
//
//	err = exporter.SaveAnalysisXLSX("reports/analysis_ACME.xlsx", result, report)
package exporter
