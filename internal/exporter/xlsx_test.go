package exporter

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteAnalysisXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAnalysisXLSX(&buf, sampleResult(), sampleReport()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{"Analysis", "Sensitivity"}, f.GetSheetList())

	rows, err := f.GetRows("Analysis")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ticker", rows[0][0])
	assert.Equal(t, "DSTR", rows[1][0])

	sens, err := f.GetRows("Sensitivity")
	require.NoError(t, err)
	// header + 3 vol + 1 debt + 2 stress
	require.Len(t, sens, 7)
	assert.Equal(t, "scenario_type", sens[0][0])
	assert.Equal(t, "severe_stress", sens[5][1])
}

func TestWriteAnalysisXLSXWithoutReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAnalysisXLSX(&buf, sampleResult(), nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Analysis"}, f.GetSheetList())
}

func TestSaveAnalysisXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analysis_DSTR.xlsx")
	require.NoError(t, SaveAnalysisXLSX(path, sampleResult(), sampleReport()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Analysis")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "STRONG_SHORT", rows[1][17])
}
