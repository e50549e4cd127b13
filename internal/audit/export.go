package audit

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// BuildPumpLogPDF renders a garden's pump log as a PDF table.
func BuildPumpLogPDF(gardenID string, entries []Entry, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Pump Log")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Garden: %s", gardenID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Entries: %d", len(entries)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, "Started", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Action", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Duration (s)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Initiated By", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Device", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Actor", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, entry := range entries {
		pdf.CellFormat(50, 6, entry.StartedAt.UTC().Format(time.RFC3339), "1", 0, "L", false, 0, "")
		pdf.CellFormat(20, 6, string(entry.Action), "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, formatDuration(entry.DurationSeconds), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, string(entry.InitiatedBy), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, entry.DeviceID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 6, entry.Actor, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, string(entry.Status), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildPumpLogXLSX renders a garden's pump log as a workbook.
func BuildPumpLogXLSX(gardenID string, entries []Entry, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	logSheet := "pump_log"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(logSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Pump Log")
	_ = f.SetCellValue(summarySheet, "A3", "Garden")
	_ = f.SetCellValue(summarySheet, "B3", gardenID)
	_ = f.SetCellValue(summarySheet, "A4", "Generated")
	_ = f.SetCellValue(summarySheet, "B4", generatedAt.UTC().Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A5", "Entries")
	_ = f.SetCellValue(summarySheet, "B5", len(entries))

	headers := []string{"ID", "Started", "Action", "Duration (s)", "Initiated By", "Device", "Actor", "Status"}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(logSheet, cell, header)
	}
	for i, entry := range entries {
		row := i + 2
		_ = f.SetCellValue(logSheet, fmt.Sprintf("A%d", row), entry.ID)
		_ = f.SetCellValue(logSheet, fmt.Sprintf("B%d", row), entry.StartedAt.UTC().Format(time.RFC3339))
		_ = f.SetCellValue(logSheet, fmt.Sprintf("C%d", row), string(entry.Action))
		if entry.DurationSeconds != nil {
			_ = f.SetCellValue(logSheet, fmt.Sprintf("D%d", row), *entry.DurationSeconds)
		}
		_ = f.SetCellValue(logSheet, fmt.Sprintf("E%d", row), string(entry.InitiatedBy))
		_ = f.SetCellValue(logSheet, fmt.Sprintf("F%d", row), entry.DeviceID)
		_ = f.SetCellValue(logSheet, fmt.Sprintf("G%d", row), entry.Actor)
		_ = f.SetCellValue(logSheet, fmt.Sprintf("H%d", row), string(entry.Status))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatDuration(seconds *int) string {
	if seconds == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *seconds)
}
