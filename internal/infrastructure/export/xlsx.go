package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// XLSXWriter writes a single-sheet workbook. Numeric columns are stored as
// numbers so that spreadsheet totals work.
type XLSXWriter struct {
	SheetName string
}

// NewXLSXWriter creates an XLSX writer
func NewXLSXWriter(sheetName string) *XLSXWriter {
	if sheetName == "" {
		sheetName = "Invoices"
	}
	return &XLSXWriter{SheetName: sheetName}
}

// Format implements Writer
func (w *XLSXWriter) Format() Format { return FormatXLSX }

// ContentType implements Writer
func (w *XLSXWriter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// FileName implements Writer
func (w *XLSXWriter) FileName(base string) string { return base + ".xlsx" }

// Write implements Writer
func (w *XLSXWriter) Write(out io.Writer, t *Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	defaultSheet := f.GetSheetName(0)
	if err := f.SetSheetName(defaultSheet, w.SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(t.Header))
	for i, h := range t.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(w.SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range t.Rows {
		cells := make([]any, len(row))
		for col, value := range row {
			cells[col] = value
			if t.IsNumeric(col) {
				if n, err := strconv.ParseFloat(value, 64); err == nil {
					cells[col] = n
				}
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(w.SheetName, cell, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := f.Write(out); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
