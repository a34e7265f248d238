package report

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/livercare-risk-server/internal/history"
)

// HistorySheet is the name of the only sheet in a history workbook.
const HistorySheet = "History"

// HistoryHeader is the first row of the history sheet.
var HistoryHeader = []string{
	"Date",
	"Age",
	"Gender",
	"BMI",
	"Alcohol (units/week)",
	"Smoking",
	"Genetic Risk",
	"Physical Activity (hours/week)",
	"Diabetes",
	"Hypertension",
	"Liver Function Test (IU/L)",
	"Probability (%)",
	"Risk Level",
}

var historyColumnWidths = []float64{20, 8, 10, 8, 20, 10, 14, 28, 10, 14, 24, 16, 14}

// HistoryWorkbook writes records, newest first as given, into an XLSX file.
func HistoryWorkbook(records []*history.Record) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(HistorySheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E8F8F0"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	header := make([]interface{}, len(HistoryHeader))
	for i, h := range HistoryHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(HistorySheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(HistoryHeader))
	if err != nil {
		return nil, fmt.Errorf("failed to convert column number: %w", err)
	}
	if err := f.SetCellStyle(HistorySheet, "A1", lastCol+"1", headerStyle); err != nil {
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}

	for i, width := range historyColumnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(HistorySheet, col, col, width); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		row := []interface{}{
			r.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			r.Age,
			choose(r.IsMale(), "Male", "Female"),
			r.BMI,
			r.Alcohol,
			yesNo(r.Smokes()),
			yesNo(r.HasGeneticRisk()),
			r.PhysicalActivity,
			yesNo(r.HasDiabetes()),
			yesNo(r.HasHypertension()),
			r.LiverFunctionTest,
			r.Probability,
			r.RiskLevel.Label(),
		}
		if err := f.SetSheetRow(HistorySheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(HistorySheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// HistoryFilename names the workbook exported for userID.
func HistoryFilename(userID int64) string {
	return fmt.Sprintf("LiverCare_History_%d.xlsx", userID)
}
