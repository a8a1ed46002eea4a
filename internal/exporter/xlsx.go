package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"creditpulse/internal/merton"
)

// WriteAnalysisXLSX writes an analysis workbook. The first sheet holds
// the base-case analysis; when a sensitivity report is supplied its
// scenario grid is added as a second sheet.
func WriteAnalysisXLSX(w io.Writer, res *merton.AnalysisResult, report *merton.SensitivityReport) error {
	f := excelize.NewFile()
	defer f.Close()

	const analysisSheet = "Analysis"
	if err := f.SetSheetName("Sheet1", analysisSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	if err := writeSheet(f, analysisSheet, analysisHeaders, [][]string{AnalysisRecord(res)}); err != nil {
		return err
	}

	if report != nil {
		const sensitivitySheet = "Sensitivity"
		if _, err := f.NewSheet(sensitivitySheet); err != nil {
			return fmt.Errorf("failed to add sheet: %w", err)
		}
		if err := writeSheet(f, sensitivitySheet, sensitivityHeaders, SensitivityRecords(report)); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// SaveAnalysisXLSX writes the analysis workbook to a file path.
func SaveAnalysisXLSX(path string, res *merton.AnalysisResult, report *merton.SensitivityReport) error {
	f := excelize.NewFile()
	defer f.Close()

	const analysisSheet = "Analysis"
	if err := f.SetSheetName("Sheet1", analysisSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	if err := writeSheet(f, analysisSheet, analysisHeaders, [][]string{AnalysisRecord(res)}); err != nil {
		return err
	}

	if report != nil {
		const sensitivitySheet = "Sensitivity"
		if _, err := f.NewSheet(sensitivitySheet); err != nil {
			return fmt.Errorf("failed to add sheet: %w", err)
		}
		if err := writeSheet(f, sensitivitySheet, sensitivityHeaders, SensitivityRecords(report)); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// writeSheet fills a sheet with a bold header row followed by records.
func writeSheet(f *excelize.File, sheet string, headers []string, records [][]string) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	headerRow := make([]interface{}, len(headers))
	for i, h := range headers {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerRow); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return fmt.Errorf("failed to compute header range: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style header row: %w", err)
	}

	for i, record := range records {
		row := make([]interface{}, len(record))
		for j, cell := range record {
			row[j] = cell
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to compute cell name: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	return nil
}
