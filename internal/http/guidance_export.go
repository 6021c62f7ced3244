package httpapi

import (
	"bytes"
	"fmt"

	"github.com/ARodriguezHacks/covid-calendar/internal/domain"
	"github.com/ARodriguezHacks/covid-calendar/internal/evaluator"

	"github.com/xuri/excelize/v2"
)

const guidanceSheet = "Guidance"

// GuidanceExportHeader 导出表头
var GuidanceExportHeader = []string{
	"Name",
	"Last Close Contact",
	"Positive Test",
	"Symptoms Start",
	"Symptoms End",
	"Contagious",
	"Isolation Ends",
}

var guidanceColumnWidths = []float64{24, 18, 16, 16, 16, 12, 16}

// GenerateGuidanceExport 生成家庭指导 Excel；无可用指导的成员 "Isolation Ends" 留空
func GenerateGuidanceExport(results []domain.GuidanceResult) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(guidanceSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range GuidanceExportHeader {
		if err := setCellValue(f, guidanceSheet, col+1, 1, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header: %w", err)
		}
		colName, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(guidanceSheet, colName, colName, guidanceColumnWidths[col]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(GuidanceExportHeader), 1)
	if err := f.SetCellStyle(guidanceSheet, "A1", lastHeader, headerStyle); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}

	for i, r := range results {
		row := i + 2
		if r.Person == nil {
			continue
		}
		events := r.Person.CovidEvents
		contagious := "No"
		if evaluator.IsContagious(r.Person) {
			contagious = "Yes"
		}
		ends := ""
		if r.Date != nil {
			ends = r.Date.String()
		}

		values := []string{
			r.Person.Name,
			events.Get(domain.LastCloseContact).String(),
			events.Get(domain.PositiveTest).String(),
			events.Get(domain.SymptomsStart).String(),
			events.Get(domain.SymptomsEnd).String(),
			contagious,
			ends,
		}
		for col, v := range values {
			if v == "" {
				continue
			}
			if err := setCellValue(f, guidanceSheet, col+1, row, v); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell at row %d: %w", row, err)
			}
		}
	}

	if err := f.SetPanes(guidanceSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

// setCellValue 设置单元格值
func setCellValue(f *excelize.File, sheet string, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}
