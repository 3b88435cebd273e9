package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	analytics "gridflow/internal/analytics/domain"
)

// BuildAnalysisPDF renders a minimal PDF report for an analysis.
func BuildAnalysisPDF(analysis *analytics.Analysis) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Telemetry Analysis Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Organization: %s", analysis.OrganizationID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Analyzed: %s", analysis.AnalyzedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Records: %d", analysis.Overall.Records))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Devices: %d", analysis.Overall.Devices))
	pdf.Ln(8)

	// Metric statistics table
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 6, "Metric", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Count", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Min", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Max", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Mean", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "StdDev", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, stats := range analysis.Metrics {
		pdf.CellFormat(40, 6, stats.Metric, "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", stats.Count), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.3f", stats.Min), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.3f", stats.Max), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.3f", stats.Mean), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.3f", stats.StdDev), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Anomalies: %d", len(analysis.Anomalies)))
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 10)
	for _, anomaly := range analysis.Anomalies {
		pdf.Cell(0, 5, fmt.Sprintf("%s device=%s value=%.3f (%.1f stddev) at %s",
			anomaly.Metric, anomaly.DeviceID, anomaly.Value, anomaly.Deviations,
			anomaly.Timestamp.Format(time.RFC3339)))
		pdf.Ln(5)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, "Trends")
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 10)
	for _, trend := range analysis.Trends {
		pdf.Cell(0, 5, fmt.Sprintf("%s: %s (first half %.3f, second half %.3f)",
			trend.Metric, trend.Direction, trend.FirstHalfMean, trend.SecondHalfMean))
		pdf.Ln(5)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildAnalysisXLSX renders a minimal XLSX report for an analysis.
func BuildAnalysisXLSX(analysis *analytics.Analysis) ([]byte, error) {
	f := excelize.NewFile()
	metricsSheet := "metrics"
	anomaliesSheet := "anomalies"
	trendsSheet := "trends"
	f.SetSheetName("Sheet1", metricsSheet)
	f.NewSheet(anomaliesSheet)
	f.NewSheet(trendsSheet)

	_ = f.SetCellValue(metricsSheet, "A1", "Organization")
	_ = f.SetCellValue(metricsSheet, "B1", analysis.OrganizationID)
	_ = f.SetCellValue(metricsSheet, "A2", "Analyzed")
	_ = f.SetCellValue(metricsSheet, "B2", analysis.AnalyzedAt.Format(time.RFC3339))
	_ = f.SetCellValue(metricsSheet, "A3", "Records")
	_ = f.SetCellValue(metricsSheet, "B3", analysis.Overall.Records)
	_ = f.SetCellValue(metricsSheet, "A4", "Devices")
	_ = f.SetCellValue(metricsSheet, "B4", analysis.Overall.Devices)

	_ = f.SetCellValue(metricsSheet, "A6", "Metric")
	_ = f.SetCellValue(metricsSheet, "B6", "Count")
	_ = f.SetCellValue(metricsSheet, "C6", "Min")
	_ = f.SetCellValue(metricsSheet, "D6", "Max")
	_ = f.SetCellValue(metricsSheet, "E6", "Mean")
	_ = f.SetCellValue(metricsSheet, "F6", "StdDev")
	for i, stats := range analysis.Metrics {
		row := i + 7
		_ = f.SetCellValue(metricsSheet, fmt.Sprintf("A%d", row), stats.Metric)
		_ = f.SetCellValue(metricsSheet, fmt.Sprintf("B%d", row), stats.Count)
		_ = f.SetCellValue(metricsSheet, fmt.Sprintf("C%d", row), stats.Min)
		_ = f.SetCellValue(metricsSheet, fmt.Sprintf("D%d", row), stats.Max)
		_ = f.SetCellValue(metricsSheet, fmt.Sprintf("E%d", row), stats.Mean)
		_ = f.SetCellValue(metricsSheet, fmt.Sprintf("F%d", row), stats.StdDev)
	}

	_ = f.SetCellValue(anomaliesSheet, "A1", "Metric")
	_ = f.SetCellValue(anomaliesSheet, "B1", "Device")
	_ = f.SetCellValue(anomaliesSheet, "C1", "Timestamp")
	_ = f.SetCellValue(anomaliesSheet, "D1", "Value")
	_ = f.SetCellValue(anomaliesSheet, "E1", "Deviations")
	for i, anomaly := range analysis.Anomalies {
		row := i + 2
		_ = f.SetCellValue(anomaliesSheet, fmt.Sprintf("A%d", row), anomaly.Metric)
		_ = f.SetCellValue(anomaliesSheet, fmt.Sprintf("B%d", row), anomaly.DeviceID)
		_ = f.SetCellValue(anomaliesSheet, fmt.Sprintf("C%d", row), anomaly.Timestamp.Format(time.RFC3339))
		_ = f.SetCellValue(anomaliesSheet, fmt.Sprintf("D%d", row), anomaly.Value)
		_ = f.SetCellValue(anomaliesSheet, fmt.Sprintf("E%d", row), anomaly.Deviations)
	}

	_ = f.SetCellValue(trendsSheet, "A1", "Metric")
	_ = f.SetCellValue(trendsSheet, "B1", "Direction")
	_ = f.SetCellValue(trendsSheet, "C1", "First Half Mean")
	_ = f.SetCellValue(trendsSheet, "D1", "Second Half Mean")
	_ = f.SetCellValue(trendsSheet, "E1", "Change Ratio")
	for i, trend := range analysis.Trends {
		row := i + 2
		_ = f.SetCellValue(trendsSheet, fmt.Sprintf("A%d", row), trend.Metric)
		_ = f.SetCellValue(trendsSheet, fmt.Sprintf("B%d", row), string(trend.Direction))
		_ = f.SetCellValue(trendsSheet, fmt.Sprintf("C%d", row), trend.FirstHalfMean)
		_ = f.SetCellValue(trendsSheet, fmt.Sprintf("D%d", row), trend.SecondHalfMean)
		_ = f.SetCellValue(trendsSheet, fmt.Sprintf("E%d", row), trend.ChangeRatio)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
