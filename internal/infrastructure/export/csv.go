package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// recordSeparator ends every row, including the last one.
const recordSeparator = "\r\n"

// unsafeChars are the characters that split a value when written unquoted.
const unsafeChars = ",\r\n"

// CSVWriter writes comma separated values with CRLF row endings.
//
// By default fields are written verbatim, which is what downstream
// accounting imports have always received: a value holding a comma or line
// break shifts the columns of its row. Such values are logged. Set Escape to
// quote fields per RFC 4180 instead.
type CSVWriter struct {
	Escape bool
	logger *zap.Logger
}

// NewCSVWriter creates a CSV writer
func NewCSVWriter(escape bool, logger *zap.Logger) *CSVWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVWriter{Escape: escape, logger: logger.Named("csv")}
}

// Format implements Writer
func (w *CSVWriter) Format() Format { return FormatCSV }

// ContentType implements Writer
func (w *CSVWriter) ContentType() string { return "text/csv; charset=utf-8" }

// FileName implements Writer
func (w *CSVWriter) FileName(base string) string { return base + ".csv" }

// Write implements Writer
func (w *CSVWriter) Write(out io.Writer, t *Table) error {
	if w.Escape {
		return w.writeQuoted(out, t)
	}
	return w.writeRaw(out, t)
}

func (w *CSVWriter) writeRaw(out io.Writer, t *Table) error {
	var sb strings.Builder
	sb.WriteString(strings.Join(t.Header, ","))
	sb.WriteString(recordSeparator)
	for i, row := range t.Rows {
		for col, value := range row {
			if strings.ContainsAny(value, unsafeChars) {
				w.logger.Warn("Unescaped export value contains a separator",
					zap.Int("row", i+1),
					zap.String("column", columnName(t, col)),
					zap.String("value", value),
				)
			}
		}
		sb.WriteString(strings.Join(row, ","))
		sb.WriteString(recordSeparator)
	}
	if _, err := io.WriteString(out, sb.String()); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func (w *CSVWriter) writeQuoted(out io.Writer, t *Table) error {
	cw := csv.NewWriter(out)
	cw.UseCRLF = true
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}

func columnName(t *Table, col int) string {
	if col < len(t.Header) {
		return t.Header[col]
	}
	return fmt.Sprintf("#%d", col+1)
}
