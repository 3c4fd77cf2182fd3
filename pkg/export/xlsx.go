package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Sheet struct {
	Name    string
	Headers []string
	Widths  []float64
	Rows    [][]any
}

// XLSX renders sheets into a workbook with a styled, frozen header row.
func XLSX(sheets ...Sheet) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, sh := range sheets {
		if err := writeSheet(f, sh, headerStyle); err != nil {
			return nil, err
		}
		if i == 0 {
			idx, err := f.GetSheetIndex(sh.Name)
			if err != nil {
				return nil, err
			}
			f.SetActiveSheet(idx)
		}
	}
	if len(sheets) > 0 {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sh Sheet, headerStyle int) error {
	if _, err := f.NewSheet(sh.Name); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	for col, header := range sh.Headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sh.Name, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sh.Name, cell, cell, headerStyle); err != nil {
			return err
		}
		if col < len(sh.Widths) && sh.Widths[col] > 0 {
			name, _ := excelize.ColumnNumberToName(col + 1)
			if err := f.SetColWidth(sh.Name, name, name, sh.Widths[col]); err != nil {
				return err
			}
		}
	}

	for r, row := range sh.Rows {
		for c, v := range row {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sh.Name, cell, v); err != nil {
				return fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	return f.SetPanes(sh.Name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
