package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// XLSXExporter renders datasets into workbooks. With a template path it fills
// Dataset.Cells into the template's first sheet instead of building a table.
type XLSXExporter struct {
	templatePath string
}

// NewXLSXExporter constructs an exporter; templatePath may be empty.
func NewXLSXExporter(templatePath string) *XLSXExporter {
	return &XLSXExporter{templatePath: templatePath}
}

// Render produces xlsx bytes for the dataset.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if e.templatePath != "" && len(data.Cells) > 0 {
		return e.renderTemplate(data)
	}
	return e.renderTable(data)
}

func (e *XLSXExporter) renderTemplate(data Dataset) ([]byte, error) {
	f, err := excelize.OpenFile(e.templatePath)
	if err != nil {
		return nil, fmt.Errorf("open xlsx template: %w", err)
	}
	defer f.Close() //nolint:errcheck

	sheet := f.GetSheetName(0)
	for cell, value := range data.Cells {
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			return nil, fmt.Errorf("fill template cell %s: %w", cell, err)
		}
	}
	return writeWorkbook(f)
}

func (e *XLSXExporter) renderTable(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	sheet := defaultSheet
	if data.Title != "" {
		if err := f.SetSheetName(defaultSheet, truncateSheetName(data.Title)); err != nil {
			return nil, fmt.Errorf("name sheet: %w", err)
		}
		sheet = truncateSheetName(data.Title)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := writeRow(f, sheet, 1, data.Headers); err != nil {
		return nil, err
	}
	last, _ := excelize.CoordinatesToCellName(len(data.Headers), 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}

	rowIdx := 2
	for _, row := range data.Rows {
		if err := writeRow(f, sheet, rowIdx, data.record(row)); err != nil {
			return nil, err
		}
		rowIdx++
	}
	if len(data.Summary) > 0 {
		rowIdx++
		for _, line := range data.Summary {
			if err := writeRow(f, sheet, rowIdx, []string{line}); err != nil {
				return nil, err
			}
			rowIdx++
		}
	}
	return writeWorkbook(f)
}

func writeRow(f *excelize.File, sheet string, row int, values []string) error {
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			return fmt.Errorf("write cell %s: %w", cell, err)
		}
	}
	return nil
}

func writeWorkbook(f *excelize.File) ([]byte, error) {
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// Sheet names are capped at 31 characters by the format.
func truncateSheetName(name string) string {
	runes := []rune(name)
	if len(runes) > 31 {
		runes = runes[:31]
	}
	return string(runes)
}
