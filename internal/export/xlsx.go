package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"extinguisher_map/internal/dataset"
)

const (
	extinguisherSheet = "Extinguishers"
	buildingSheet     = "Buildings"
)

var buildingHeader = []string{"id", "name", "extinguishers", "color"}

var columnWidths = []float64{12, 10, 22, 10, 10, 22, 14, 10, 18, 16, 16}

// XLSX builds a workbook with an Extinguishers sheet (same columns as the
// CSV export) and a Buildings sheet.
func XLSX(snap *dataset.Snapshot) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(extinguisherSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if _, err := f.NewSheet(buildingSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

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
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := writeHeader(f, extinguisherSheet, Header, headerStyle); err != nil {
		f.Close()
		return nil, err
	}
	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetColWidth(extinguisherSheet, col, col, width); err != nil {
			f.Close()
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}
	for i, e := range snap.Extinguishers {
		row := []any{e.ID, e.Building, e.BuildingName, e.X, e.Y, string(e.Status), e.Type, e.Size, e.Manufacturer, e.LastInspection, e.NextDue}
		if err := writeRow(f, extinguisherSheet, i+2, row); err != nil {
			f.Close()
			return nil, err
		}
	}

	if err := writeHeader(f, buildingSheet, buildingHeader, headerStyle); err != nil {
		f.Close()
		return nil, err
	}
	for i, b := range snap.Buildings {
		if err := writeRow(f, buildingSheet, i+2, []any{b.ID, b.Name, b.ExtinguisherCount, b.Color}); err != nil {
			f.Close()
			return nil, err
		}
	}

	for _, sheet := range []string{extinguisherSheet, buildingSheet} {
		if err := f.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			f.Close()
			return nil, fmt.Errorf("freeze panes: %w", err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeHeader(f *excelize.File, sheet string, header []string, style int) error {
	for col, title := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return fmt.Errorf("set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return fmt.Errorf("set header style: %w", err)
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("set cell %s: %w", cell, err)
		}
	}
	return nil
}
